package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_JSON(t *testing.T) {
	t.Parallel()

	content := []byte(`{"server": {"host": "localhost", "port": 8080}, "debug": true}`)

	result := Analyze("config.json", content)

	assert.Equal(t, "JSON", result.Language)
	assert.Equal(t, SyntaxValid, result.SyntaxValid)
	assert.Equal(t, []string{"server", "server.host", "server.port", "debug"}, result.Signature)
	assert.Equal(t, len(content), result.Bytes)
}

func TestAnalyze_InvalidJSON(t *testing.T) {
	t.Parallel()

	result := Analyze("config.json", []byte(`{"key": `))

	assert.Equal(t, SyntaxInvalid, result.SyntaxValid)
	assert.Empty(t, result.Signature)
}

func TestAnalyze_JSONTrailingGarbage(t *testing.T) {
	t.Parallel()

	result := Analyze("config.json", []byte(`{"a": 1} trailing`))

	assert.Equal(t, SyntaxInvalid, result.SyntaxValid)
}

func TestAnalyze_YAML(t *testing.T) {
	t.Parallel()

	content := []byte("server:\n  host: localhost\n  port: 8080\nitems:\n  - name: one\n")

	result := Analyze("config.yaml", content)

	assert.Equal(t, SyntaxValid, result.SyntaxValid)
	assert.Equal(t, []string{"server", "server.host", "server.port", "items", "items.name"}, result.Signature)
}

func TestAnalyze_InvalidYAML(t *testing.T) {
	t.Parallel()

	result := Analyze("broken.yml", []byte("key: [unclosed\n  nested: wrong"))

	assert.Equal(t, SyntaxInvalid, result.SyntaxValid)
}

func TestAnalyze_TOML(t *testing.T) {
	t.Parallel()

	content := []byte("title = \"demo\"\n\n[server]\nhost = \"localhost\"\nport = 8080\n")

	result := Analyze("config.toml", content)

	assert.Equal(t, SyntaxValid, result.SyntaxValid)
	assert.Contains(t, result.Signature, "title")
	assert.Contains(t, result.Signature, "server.host")
	assert.Contains(t, result.Signature, "server.port")
}

func TestAnalyze_GoSource(t *testing.T) {
	t.Parallel()

	content := []byte(`package demo

import (
	"fmt"
	"os"
)

const answer = 42

type Server struct{}

func (s *Server) Start() error { return nil }

func Main() {
	fmt.Fprintln(os.Stdout, answer)
}
`)

	result := Analyze("server.go", content)

	require.Equal(t, SyntaxValid, result.SyntaxValid)
	assert.Equal(t, []string{
		"import:fmt",
		"import:os",
		"const:answer",
		"type:Server",
		"method:Start",
		"func:Main",
	}, result.Signature)
}

func TestAnalyze_BrokenGoSource(t *testing.T) {
	t.Parallel()

	result := Analyze("broken.go", []byte("package demo\n\nfunc oops( {\n"))

	assert.Equal(t, SyntaxInvalid, result.SyntaxValid)
}

func TestAnalyze_OpaqueContent(t *testing.T) {
	t.Parallel()

	result := Analyze("image.bin", []byte{0x00, 0x01, 0x02, 0xff})

	assert.Equal(t, SyntaxUnknown, result.SyntaxValid)
	assert.Empty(t, result.Signature)
	assert.Equal(t, 4, result.Bytes)
}

func TestAnalyze_Deterministic(t *testing.T) {
	t.Parallel()

	content := []byte(`{"z": 1, "a": {"m": 2}}`)

	first := Analyze("x.json", content)
	second := Analyze("x.json", content)

	assert.Equal(t, first, second)
}

func TestCountLines(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, countLines(nil))
	assert.Equal(t, 1, countLines([]byte("one line, no newline")))
	assert.Equal(t, 2, countLines([]byte("a\nb\n")))
	assert.Equal(t, 3, countLines([]byte("a\nb\nc")))
}

func TestDiff(t *testing.T) {
	t.Parallel()

	baseline := []byte("alpha\nbeta\ngamma\n")
	candidate := []byte("alpha\ndelta\ngamma\nextra\n")

	stats := Diff(baseline, candidate)

	assert.Equal(t, 2, stats.LinesInserted)
	assert.Equal(t, 1, stats.LinesDeleted)
	assert.Equal(t, 2, stats.LinesEqual)
	assert.False(t, stats.Identical())
}

func TestDiff_Identical(t *testing.T) {
	t.Parallel()

	content := []byte("same\ncontent\n")

	assert.True(t, Diff(content, content).Identical())
}
