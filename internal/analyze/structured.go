package analyze

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Structured-format signature extraction. Each extractor returns the ordered
// key paths in document order plus the parse verdict. A real parser decides
// validity; there are no regex heuristics here.

const keyPathSeparator = "."

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}

	return prefix + keyPathSeparator + key
}

// jsonSignature extracts dotted key paths from a JSON document using the
// token stream, which preserves document order.
func jsonSignature(content []byte) ([]string, Validity) {
	decoder := json.NewDecoder(bytes.NewReader(content))
	decoder.UseNumber()

	var signature []string

	err := walkJSONValue(decoder, "", &signature)
	if err != nil {
		return nil, SyntaxInvalid
	}

	// Trailing garbage after the document is a parse failure too.
	_, err = decoder.Token()
	if !errors.Is(err, io.EOF) {
		return nil, SyntaxInvalid
	}

	return signature, SyntaxValid
}

func walkJSONValue(decoder *json.Decoder, prefix string, signature *[]string) error {
	token, err := decoder.Token()
	if err != nil {
		return err
	}

	delim, isDelim := token.(json.Delim)
	if !isDelim {
		return nil
	}

	switch delim {
	case '{':
		for decoder.More() {
			keyToken, keyErr := decoder.Token()
			if keyErr != nil {
				return keyErr
			}

			key, isString := keyToken.(string)
			if !isString {
				return errors.New("object key is not a string")
			}

			path := joinPath(prefix, key)
			*signature = append(*signature, path)

			valueErr := walkJSONValue(decoder, path, signature)
			if valueErr != nil {
				return valueErr
			}
		}

		_, err = decoder.Token() // consume '}'

		return err
	case '[':
		for decoder.More() {
			elemErr := walkJSONValue(decoder, prefix, signature)
			if elemErr != nil {
				return elemErr
			}
		}

		_, err = decoder.Token() // consume ']'

		return err
	default:
		return nil
	}
}

// yamlSignature extracts dotted key paths from a YAML document. yaml.Node
// keeps mapping entries in document order.
func yamlSignature(content []byte) ([]string, Validity) {
	var root yaml.Node

	err := yaml.Unmarshal(content, &root)
	if err != nil {
		return nil, SyntaxInvalid
	}

	var signature []string

	for _, doc := range root.Content {
		walkYAMLNode(doc, "", &signature)
	}

	return signature, SyntaxValid
}

func walkYAMLNode(node *yaml.Node, prefix string, signature *[]string) {
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			value := node.Content[i+1]

			path := joinPath(prefix, key.Value)
			*signature = append(*signature, path)

			walkYAMLNode(value, path, signature)
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			walkYAMLNode(item, prefix, signature)
		}
	case yaml.AliasNode:
		// Aliases reuse anchored content; the anchor's paths are already
		// recorded where it was defined.
	default:
	}
}

// tomlSignature extracts dotted key paths from a TOML document. The decoder
// metadata reports keys in document order.
func tomlSignature(content []byte) ([]string, Validity) {
	var value any

	meta, err := toml.Decode(string(content), &value)
	if err != nil {
		return nil, SyntaxInvalid
	}

	keys := meta.Keys()
	signature := make([]string, 0, len(keys))

	for _, key := range keys {
		signature = append(signature, key.String())
	}

	return signature, SyntaxValid
}
