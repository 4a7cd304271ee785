package analyze

import (
	"context"
	"strings"
	"sync"

	golang "github.com/alexaandru/go-sitter-forest/go"
	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Go source signature extraction via tree-sitter. Only top-level
// declarations enter the signature; bodies are irrelevant for dependency
// compatibility.

var goParserPool = sync.Pool{
	New: func() any {
		parser := sitter.NewParser()
		parser.SetLanguage(sitter.NewLanguage(golang.GetLanguage()))

		return parser
	},
}

// goSignature parses Go source and extracts imports plus top-level declared
// symbols in document order.
func goSignature(content []byte) ([]string, Validity) {
	parser, ok := goParserPool.Get().(*sitter.Parser)
	if !ok {
		return nil, SyntaxUnknown
	}
	defer goParserPool.Put(parser)

	tree, err := parser.ParseString(context.Background(), nil, content)
	if err != nil {
		return nil, SyntaxInvalid
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return nil, SyntaxInvalid
	}

	validity := SyntaxValid
	if root.HasError() {
		validity = SyntaxInvalid
	}

	var signature []string

	for idx := range root.NamedChildCount() {
		child := root.NamedChild(idx)
		signature = appendGoDecl(signature, child, content)
	}

	return signature, validity
}

func appendGoDecl(signature []string, node sitter.Node, source []byte) []string {
	switch node.Type() {
	case "import_declaration":
		return appendGoImports(signature, node, source)
	case "function_declaration":
		return appendNamed(signature, "func", node, source)
	case "method_declaration":
		return appendNamed(signature, "method", node, source)
	case "type_declaration":
		return appendSpecs(signature, "type", node, source, "type_spec", "type_alias")
	case "const_declaration":
		return appendSpecs(signature, "const", node, source, "const_spec")
	case "var_declaration":
		return appendSpecs(signature, "var", node, source, "var_spec")
	default:
		return signature
	}
}

func appendGoImports(signature []string, node sitter.Node, source []byte) []string {
	for idx := range node.NamedChildCount() {
		child := node.NamedChild(idx)

		switch child.Type() {
		case "import_spec":
			signature = appendImportSpec(signature, child, source)
		case "import_spec_list":
			for specIdx := range child.NamedChildCount() {
				spec := child.NamedChild(specIdx)
				if spec.Type() == "import_spec" {
					signature = appendImportSpec(signature, spec, source)
				}
			}
		}
	}

	return signature
}

func appendImportSpec(signature []string, spec sitter.Node, source []byte) []string {
	pathNode := spec.ChildByFieldName("path")
	if pathNode.IsNull() {
		return signature
	}

	path := strings.Trim(nodeText(pathNode, source), "`\"")
	if path == "" {
		return signature
	}

	return append(signature, "import:"+path)
}

func appendNamed(signature []string, kind string, node sitter.Node, source []byte) []string {
	nameNode := node.ChildByFieldName("name")
	if nameNode.IsNull() {
		return signature
	}

	return append(signature, kind+":"+nodeText(nameNode, source))
}

// appendSpecs handles declarations that group specs, like `type (...)` and
// `const (...)` blocks.
func appendSpecs(signature []string, kind string, node sitter.Node, source []byte, specTypes ...string) []string {
	for idx := range node.NamedChildCount() {
		child := node.NamedChild(idx)

		for _, specType := range specTypes {
			if child.Type() == specType {
				signature = appendNamed(signature, kind, child, source)

				break
			}
		}
	}

	return signature
}

func nodeText(node sitter.Node, source []byte) string {
	start, end := node.StartByte(), node.EndByte()
	if uint(end) > uint(len(source)) || start >= end {
		return ""
	}

	return string(source[start:end])
}
