package vm

import (
	"context"
	"fmt"
	"sort"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"libvirt.org/go/libvirtxml"
)

// DomainInfo represents information about a domain.
type DomainInfo struct {
	ID         int32  `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	UUID       string `json:"uuid" yaml:"uuid"`
	OSType     string `json:"os_type,omitempty" yaml:"os_type,omitempty"`
	State      string `json:"state" yaml:"state"`
	StateCode  int32  `json:"-" yaml:"-"`
	VCPUs      uint16 `json:"vcpus" yaml:"vcpus"`
	CPUTime    uint64 `json:"cpu_time_ns" yaml:"cpu_time_ns"`
	MaxMemKiB  uint64 `json:"max_memory_kib" yaml:"max_memory_kib"`
	MemoryKiB  uint64 `json:"memory_kib" yaml:"memory_kib"`
	Persistent bool   `json:"persistent" yaml:"persistent"`
	Autostart  bool   `json:"autostart" yaml:"autostart"`
}

// Active reports whether the domain is running.
func (d DomainInfo) Active() bool {
	return d.ID >= 0
}

// ListOptions selects which domains ListDomains returns.
type ListOptions struct {
	Active   bool
	Inactive bool
}

// ListDomains lists domains selected by opts. Running domains come first
// ordered by id, followed by inactive domains ordered by name.
func ListDomains(_ context.Context, lv LibvirtClient, opts ListOptions) ([]DomainInfo, error) {
	var flags libvirt.ConnectListAllDomainsFlags
	if opts.Active {
		flags |= libvirt.ConnectListDomainsActive
	}
	if opts.Inactive {
		flags |= libvirt.ConnectListDomainsInactive
	}
	if flags == 0 {
		return []DomainInfo{}, nil
	}

	domains, _, err := lv.ConnectListAllDomains(1, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}

	infos := make([]DomainInfo, 0, len(domains))
	for _, dom := range domains {
		info, err := summary(lv, dom)
		if err != nil {
			// Domains can vanish between the list and the query.
			log.Debugf("failed to get info for domain %s: %v", dom.Name, err)
			continue
		}
		infos = append(infos, info)
	}

	sort.SliceStable(infos, func(i, j int) bool {
		a, b := infos[i], infos[j]
		if a.Active() != b.Active() {
			return a.Active()
		}
		if a.Active() {
			return a.ID < b.ID
		}
		return a.Name < b.Name
	})
	return infos, nil
}

func summary(lv LibvirtClient, dom libvirt.Domain) (DomainInfo, error) {
	state, _, err := lv.DomainGetState(dom, 0)
	if err != nil {
		return DomainInfo{}, fmt.Errorf("failed to get domain state: %w", err)
	}
	id := dom.ID
	if state == int32(libvirt.DomainShutoff) {
		id = -1
	}
	return DomainInfo{
		ID:        id,
		Name:      dom.Name,
		UUID:      uuid.UUID(dom.UUID).String(),
		State:     StateString(state),
		StateCode: state,
	}, nil
}

// GetDomainInfo returns the full dominfo record for dom.
func GetDomainInfo(lv LibvirtClient, dom libvirt.Domain) (DomainInfo, error) {
	info, err := summary(lv, dom)
	if err != nil {
		return DomainInfo{}, err
	}

	_, maxMem, memory, nrVirtCPU, cpuTime, err := lv.DomainGetInfo(dom)
	if err != nil {
		return DomainInfo{}, fmt.Errorf("failed to get domain info: %w", err)
	}
	info.MaxMemKiB = maxMem
	info.MemoryKiB = memory
	info.VCPUs = nrVirtCPU
	info.CPUTime = cpuTime

	if desc, err := lv.DomainGetXMLDesc(dom, 0); err == nil {
		var def libvirtxml.Domain
		if err := def.Unmarshal(desc); err == nil && def.OS != nil && def.OS.Type != nil {
			info.OSType = def.OS.Type.Type
		}
	}

	persistent, err := lv.DomainIsPersistent(dom)
	if err != nil {
		log.Debugf("failed to get persistence of %s: %v", dom.Name, err)
	}
	info.Persistent = persistent == 1

	autostart, err := lv.DomainGetAutostart(dom)
	if err != nil {
		log.Debugf("failed to get autostart of %s: %v", dom.Name, err)
	}
	info.Autostart = autostart != 0

	return info, nil
}

// StateString converts a libvirt domain state to the text virsh prints.
func StateString(state int32) string {
	switch libvirt.DomainState(state) {
	case libvirt.DomainRunning:
		return "running"
	case libvirt.DomainBlocked:
		return "idle"
	case libvirt.DomainPaused:
		return "paused"
	case libvirt.DomainShutdown:
		return "in shutdown"
	case libvirt.DomainShutoff:
		return "shut off"
	case libvirt.DomainCrashed:
		return "crashed"
	case libvirt.DomainPmsuspended:
		return "pmsuspended"
	default:
		return "no state"
	}
}
