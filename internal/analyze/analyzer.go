package analyze

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/src-d/enry/v2"
)

// Analyze inspects content found at path and returns its analysis. The path
// only routes to the right extractor; content is never read from disk here.
func Analyze(path string, content []byte) Result {
	result := Result{
		SyntaxValid: SyntaxUnknown,
		Lines:       countLines(content),
		Bytes:       len(content),
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		result.Language = "JSON"
		result.Signature, result.SyntaxValid = jsonSignature(content)

		return result
	case ".yaml", ".yml":
		result.Language = "YAML"
		result.Signature, result.SyntaxValid = yamlSignature(content)

		return result
	case ".toml":
		result.Language = "TOML"
		result.Signature, result.SyntaxValid = tomlSignature(content)

		return result
	}

	if enry.IsBinary(content) {
		return result
	}

	lang := enry.GetLanguage(filepath.Base(path), content)
	result.Language = lang

	if lang == "Go" {
		result.Signature, result.SyntaxValid = goSignature(content)
	}

	return result
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}

	n := bytes.Count(content, []byte{'\n'})
	if content[len(content)-1] != '\n' {
		n++
	}

	return n
}
