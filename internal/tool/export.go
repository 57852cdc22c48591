package tool

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// catalogDocument is the on-disk YAML shape for an exported tool catalog.
type catalogDocument struct {
	Tools []ToolDescriptor `yaml:"tools"`
}

// ExportYAML writes every registered descriptor to w as a YAML catalog
// document, ordered by name. The output round-trips through ImportYAML.
func ExportYAML(registry ToolRegistry, w io.Writer) error {
	doc := catalogDocument{Tools: registry.ListAll()}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("failed to encode tool catalog: %w", err)
	}

	return enc.Close()
}

// ImportYAML reads a YAML catalog document from r and registers each
// descriptor. Names that are already registered are skipped, making the
// import idempotent; the count of newly registered tools is returned.
// A descriptor that fails validation aborts the import.
func ImportYAML(registry ToolRegistry, r io.Reader) (int, error) {
	var doc catalogDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return 0, fmt.Errorf("failed to decode tool catalog: %w", err)
	}

	imported := 0
	for _, d := range doc.Tools {
		if _, err := registry.Get(d.Name); err == nil {
			continue
		}

		if err := registry.Register(d); err != nil {
			return imported, fmt.Errorf("failed to register tool %s: %w", d.Name, err)
		}
		imported++
	}

	return imported, nil
}
