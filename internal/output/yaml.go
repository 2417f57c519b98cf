package output

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/virsh/internal/storage"
	"github.com/jbweber/virsh/internal/vm"
)

// YAMLFormatter formats resources as YAML.
type YAMLFormatter struct{}

// FormatDomain formats a single domain as YAML.
func (f *YAMLFormatter) FormatDomain(info vm.DomainInfo) (string, error) {
	return marshalYAML("domain", info)
}

// FormatDomainList formats domains as a YAML stream (multiple documents
// separated by ---).
func (f *YAMLFormatter) FormatDomainList(infos []vm.DomainInfo) (string, error) {
	items := make([]any, len(infos))
	for i := range infos {
		items[i] = infos[i]
	}
	return yamlStream("domain", items)
}

// FormatPool formats a single pool as YAML.
func (f *YAMLFormatter) FormatPool(info storage.PoolInfo) (string, error) {
	return marshalYAML("pool", info)
}

// FormatPoolList formats pools as a YAML stream.
func (f *YAMLFormatter) FormatPoolList(infos []storage.PoolInfo) (string, error) {
	items := make([]any, len(infos))
	for i := range infos {
		items[i] = infos[i]
	}
	return yamlStream("pool", items)
}

// FormatVolumeList formats volumes as a YAML stream.
func (f *YAMLFormatter) FormatVolumeList(infos []storage.VolumeInfo) (string, error) {
	items := make([]any, len(infos))
	for i := range infos {
		items[i] = infos[i]
	}
	return yamlStream("volume", items)
}

func marshalYAML(what string, v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s to YAML: %w", what, err)
	}
	return string(data), nil
}

func yamlStream(what string, items []any) (string, error) {
	var buf bytes.Buffer

	for i, item := range items {
		data, err := yaml.Marshal(item)
		if err != nil {
			return "", fmt.Errorf("failed to marshal %s to YAML: %w", what, err)
		}

		// Add document separator between items (but not before the first one)
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}

	return buf.String(), nil
}
