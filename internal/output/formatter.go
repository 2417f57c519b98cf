// Package output renders domains, pools and volumes for the list and info
// commands. The table layout reproduces classic virsh text; yaml and json
// are offered for scripts.
package output

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jbweber/virsh/internal/storage"
	"github.com/jbweber/virsh/internal/vm"
)

// Format names an output layout.
type Format string

const (
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
)

// Formatter renders shell resources.
type Formatter interface {
	FormatDomain(info vm.DomainInfo) (string, error)
	FormatDomainList(infos []vm.DomainInfo) (string, error)
	FormatPool(info storage.PoolInfo) (string, error)
	FormatPoolList(infos []storage.PoolInfo) (string, error)
	FormatVolumeList(infos []storage.VolumeInfo) (string, error)
}

// Options select a Formatter.
type Options struct {
	Format Format
	// NoHeaders drops the header rows of the table layout.
	NoHeaders bool
}

var formats = map[Format]func(Options) Formatter{
	FormatTable: func(o Options) Formatter { return &TableFormatter{NoHeaders: o.NoHeaders} },
	FormatYAML:  func(Options) Formatter { return &YAMLFormatter{} },
	FormatJSON:  func(Options) Formatter { return &JSONFormatter{} },
}

func supported() string {
	names := make([]string, 0, len(formats))
	for f := range formats {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// NewFormatter returns the Formatter for opts.Format. An empty format is
// the table layout.
func NewFormatter(opts Options) (Formatter, error) {
	if opts.Format == "" {
		opts.Format = FormatTable
	}
	mk, ok := formats[opts.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported output format: %s (supported: %s)", opts.Format, supported())
	}
	return mk(opts), nil
}

// ValidateFormat checks a --format value. The empty string selects the
// default layout and is accepted.
func ValidateFormat(format string) error {
	if format == "" {
		return nil
	}
	if _, ok := formats[Format(format)]; !ok {
		return fmt.Errorf("invalid format: %s (valid formats: %s)", format, supported())
	}
	return nil
}
