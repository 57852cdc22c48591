package tool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportYAML_RoundTrip(t *testing.T) {
	source := NewToolRegistry()
	require.NoError(t, source.Register(validDescriptor()))
	require.NoError(t, source.Register(ToolDescriptor{
		Name:           "web_check",
		BuildType:      BuildTypeScripted,
		BuildCommand:   []string{"npm", "install", "&&", "npm", "run", "build"},
		ExecutablePath: "tools/web_check/server.js",
		DefaultPort:    7017,
		Enabled:        true,
		Optional:       true,
	}))

	var buf bytes.Buffer
	require.NoError(t, ExportYAML(source, &buf))
	assert.Contains(t, buf.String(), "web_check")

	dest := NewToolRegistry()
	imported, err := ImportYAML(dest, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, imported)

	for _, want := range source.ListAll() {
		got, err := dest.Get(want.Name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestImportYAML_IdempotentSkip(t *testing.T) {
	source := NewToolRegistry()
	require.NoError(t, source.Register(validDescriptor()))

	var buf bytes.Buffer
	require.NoError(t, ExportYAML(source, &buf))
	exported := buf.Bytes()

	dest := NewToolRegistry()
	imported, err := ImportYAML(dest, bytes.NewReader(exported))
	require.NoError(t, err)
	assert.Equal(t, 1, imported)

	imported, err = ImportYAML(dest, bytes.NewReader(exported))
	require.NoError(t, err)
	assert.Equal(t, 0, imported)
	assert.Equal(t, 1, dest.Count())
}

func TestImportYAML_InvalidDocument(t *testing.T) {
	dest := NewToolRegistry()
	_, err := ImportYAML(dest, bytes.NewReader([]byte("{not yaml")))
	assert.Error(t, err)
}

func TestImportYAML_InvalidDescriptorAborts(t *testing.T) {
	doc := []byte(`tools:
  - name: good
    build_type: compiled
    executable_path: tools/good/run
    enabled: true
  - name: bad
    build_type: jarfile
    executable_path: tools/bad/run
`)

	dest := NewToolRegistry()
	imported, err := ImportYAML(dest, bytes.NewReader(doc))
	require.Error(t, err)
	assert.Equal(t, 1, imported)
	assert.Contains(t, err.Error(), "bad")
}
