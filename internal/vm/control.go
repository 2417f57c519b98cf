package vm

import (
	"fmt"

	"github.com/digitalocean/go-libvirt"
	log "github.com/sirupsen/logrus"
)

// Modification impact flags shared by the vcpu and memory setters.
const (
	affectLive    = 1
	affectConfig  = 2
	affectMaximum = 4
)

// Scope selects which copy of the domain a change applies to. The zero
// value affects the current state only.
type Scope struct {
	Live    bool
	Config  bool
	Maximum bool
}

func (s Scope) flags() uint32 {
	var f uint32
	if s.Live {
		f |= affectLive
	}
	if s.Config {
		f |= affectConfig
	}
	if s.Maximum {
		f |= affectMaximum
	}
	return f
}

// SetVCPUs changes the number of virtual CPUs.
func SetVCPUs(lv LibvirtClient, dom libvirt.Domain, count uint32, scope Scope) error {
	if count == 0 {
		return fmt.Errorf("invalid vcpu count: %d", count)
	}
	if err := lv.DomainSetVcpusFlags(dom, count, scope.flags()); err != nil {
		return fmt.Errorf("failed to set vcpus of %s: %w", dom.Name, err)
	}
	return nil
}

// SetMemory changes the current memory in KiB, or the maximum when
// scope.Maximum is set. The current allocation cannot exceed the maximum.
func SetMemory(lv LibvirtClient, dom libvirt.Domain, kib uint64, scope Scope) error {
	if kib == 0 {
		return fmt.Errorf("invalid memory size: %d", kib)
	}
	if !scope.Maximum {
		_, maxMem, _, _, _, err := lv.DomainGetInfo(dom)
		if err != nil {
			return fmt.Errorf("failed to get domain info: %w", err)
		}
		if kib > maxMem {
			return fmt.Errorf("requested memory %d KiB exceeds maximum %d KiB", kib, maxMem)
		}
	}
	if err := lv.DomainSetMemoryFlags(dom, kib, scope.flags()); err != nil {
		return fmt.Errorf("failed to set memory of %s: %w", dom.Name, err)
	}
	return nil
}

// SetAutostart marks the domain to start, or not, when the host boots.
func SetAutostart(lv LibvirtClient, dom libvirt.Domain, enable bool) error {
	var v int32
	if enable {
		v = 1
	}
	if err := lv.DomainSetAutostart(dom, v); err != nil {
		if enable {
			return fmt.Errorf("failed to mark domain %s as autostarted: %w", dom.Name, err)
		}
		return fmt.Errorf("failed to unmark domain %s as autostarted: %w", dom.Name, err)
	}
	return nil
}

// Undefine removes the persistent configuration of dom along with its
// managed save image and snapshot metadata. Daemons that reject the flags
// get a plain undefine.
func Undefine(lv LibvirtClient, dom libvirt.Domain) error {
	flags := libvirt.DomainUndefineManagedSave | libvirt.DomainUndefineSnapshotsMetadata
	err := lv.DomainUndefineFlags(dom, flags)
	if err == nil {
		return nil
	}
	log.Debugf("undefine with flags failed for %s, retrying plain undefine: %v", dom.Name, err)
	if err := lv.DomainUndefine(dom); err != nil {
		return fmt.Errorf("failed to undefine domain %s: %w", dom.Name, err)
	}
	return nil
}

// DumpXML returns the domain XML description.
func DumpXML(lv LibvirtClient, dom libvirt.Domain, inactive, secure bool) (string, error) {
	var flags libvirt.DomainXMLFlags
	if secure {
		flags |= libvirt.DomainXMLSecure
	}
	if inactive {
		flags |= libvirt.DomainXMLInactive
	}
	xml, err := lv.DomainGetXMLDesc(dom, flags)
	if err != nil {
		return "", fmt.Errorf("failed to get xml of %s: %w", dom.Name, err)
	}
	return xml, nil
}
