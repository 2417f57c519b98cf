package output

import (
	"bytes"
	"fmt"

	"github.com/jbweber/virsh/internal/storage"
	"github.com/jbweber/virsh/internal/vm"
)

// TableFormatter formats resources in the fixed-width layouts of virsh.
type TableFormatter struct {
	// NoHeaders omits the header rows.
	NoHeaders bool
}

// FormatDomain formats a domain as "Key: value" lines.
func (f *TableFormatter) FormatDomain(info vm.DomainInfo) (string, error) {
	var buf bytes.Buffer
	field := func(key, format string, args ...any) {
		_, _ = fmt.Fprintf(&buf, "%-15s "+format+"\n", append([]any{key}, args...)...)
	}

	if info.Active() {
		field("Id:", "%d", info.ID)
	} else {
		field("Id:", "%s", "-")
	}
	field("Name:", "%s", info.Name)
	field("UUID:", "%s", info.UUID)
	if info.OSType != "" {
		field("OS Type:", "%s", info.OSType)
	}
	field("State:", "%s", info.State)
	field("CPU(s):", "%d", info.VCPUs)
	if info.CPUTime != 0 {
		field("CPU time:", "%.1fs", float64(info.CPUTime)/1e9)
	}
	if info.MaxMemKiB != 0 {
		field("Max memory:", "%d KiB", info.MaxMemKiB)
	} else {
		field("Max memory:", "%s", "no limit")
	}
	field("Used memory:", "%d KiB", info.MemoryKiB)
	field("Persistent:", "%s", yesNo(info.Persistent))
	if info.Autostart {
		field("Autostart:", "%s", "enable")
	} else {
		field("Autostart:", "%s", "disable")
	}

	return buf.String(), nil
}

// FormatDomainList formats domains as the list command table.
func (f *TableFormatter) FormatDomainList(infos []vm.DomainInfo) (string, error) {
	var buf bytes.Buffer

	if !f.NoHeaders {
		_, _ = fmt.Fprintf(&buf, " %-5s %-30s %s\n", "Id", "Name", "State")
		buf.WriteString("----------------------------------------------------\n")
	}

	for _, info := range infos {
		if info.Active() {
			_, _ = fmt.Fprintf(&buf, " %-5d %-30s %s\n", info.ID, info.Name, info.State)
		} else {
			_, _ = fmt.Fprintf(&buf, " %-5s %-30s %s\n", "-", info.Name, info.State)
		}
	}

	return buf.String(), nil
}

// FormatPool formats a pool as "Key: value" lines.
func (f *TableFormatter) FormatPool(info storage.PoolInfo) (string, error) {
	var buf bytes.Buffer
	field := func(key, value string) {
		_, _ = fmt.Fprintf(&buf, "%-15s %s\n", key, value)
	}

	field("Name:", info.Name)
	field("UUID:", info.UUID)
	field("State:", info.State)
	field("Persistent:", yesNo(info.Persistent))
	field("Autostart:", yesNo(info.Autostart))

	if info.Active {
		for _, c := range []struct {
			key   string
			bytes uint64
		}{
			{"Capacity:", info.Capacity},
			{"Allocation:", info.Allocation},
			{"Available:", info.Available},
		} {
			v, unit := storage.PrettyCapacity(c.bytes)
			_, _ = fmt.Fprintf(&buf, "%-15s %2.2f %s\n", c.key, v, unit)
		}
	}

	return buf.String(), nil
}

// FormatPoolList formats pools as the pool-list table.
func (f *TableFormatter) FormatPoolList(infos []storage.PoolInfo) (string, error) {
	var buf bytes.Buffer

	if !f.NoHeaders {
		_, _ = fmt.Fprintf(&buf, " %-20s %-10s %-10s\n", "Name", "State", "Autostart")
		buf.WriteString("-----------------------------------------\n")
	}

	for _, info := range infos {
		state := "inactive"
		if info.Active {
			state = "active"
		}
		_, _ = fmt.Fprintf(&buf, " %-20s %-10s %-10s\n", info.Name, state, yesNo(info.Autostart))
	}

	return buf.String(), nil
}

// FormatVolumeList formats volumes as the vol-list table.
func (f *TableFormatter) FormatVolumeList(infos []storage.VolumeInfo) (string, error) {
	var buf bytes.Buffer

	if !f.NoHeaders {
		_, _ = fmt.Fprintf(&buf, " %-20s %-40s\n", "Name", "Path")
		buf.WriteString("-----------------------------------------\n")
	}

	for _, info := range infos {
		_, _ = fmt.Fprintf(&buf, " %-20s %-40s\n", info.Name, info.Path)
	}

	return buf.String(), nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
