package output

import (
	"encoding/json"
	"fmt"

	"github.com/jbweber/virsh/internal/storage"
	"github.com/jbweber/virsh/internal/vm"
)

// JSONFormatter formats resources as JSON.
type JSONFormatter struct{}

// FormatDomain formats a single domain as JSON.
func (f *JSONFormatter) FormatDomain(info vm.DomainInfo) (string, error) {
	return marshalJSON("domain", info)
}

// FormatDomainList formats a list of domains as a JSON array.
func (f *JSONFormatter) FormatDomainList(infos []vm.DomainInfo) (string, error) {
	if len(infos) == 0 {
		return "[]\n", nil
	}
	return marshalJSON("domains", infos)
}

// FormatPool formats a single pool as JSON.
func (f *JSONFormatter) FormatPool(info storage.PoolInfo) (string, error) {
	return marshalJSON("pool", info)
}

// FormatPoolList formats a list of pools as a JSON array.
func (f *JSONFormatter) FormatPoolList(infos []storage.PoolInfo) (string, error) {
	if len(infos) == 0 {
		return "[]\n", nil
	}
	return marshalJSON("pools", infos)
}

// FormatVolumeList formats a list of volumes as a JSON array.
func (f *JSONFormatter) FormatVolumeList(infos []storage.VolumeInfo) (string, error) {
	if len(infos) == 0 {
		return "[]\n", nil
	}
	return marshalJSON("volumes", infos)
}

func marshalJSON(what string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s to JSON: %w", what, err)
	}
	return string(data) + "\n", nil
}
