package vm

import (
	"fmt"
	"strconv"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"
)

// Lookup resolves name the way virsh does: a non-negative number is tried
// as an id, a 36 character string as a uuid, and anything else (or a failed
// attempt) as a name.
func Lookup(lv LibvirtClient, name string) (libvirt.Domain, error) {
	if id, err := strconv.ParseInt(name, 10, 32); err == nil && id >= 0 {
		if dom, err := lv.DomainLookupByID(int32(id)); err == nil {
			return dom, nil
		}
	}
	if len(name) == 36 {
		if u, err := uuid.Parse(name); err == nil {
			if dom, err := lv.DomainLookupByUUID(libvirt.UUID(u)); err == nil {
				return dom, nil
			}
		}
	}
	dom, err := lv.DomainLookupByName(name)
	if err != nil {
		return libvirt.Domain{}, fmt.Errorf("failed to get domain '%s': %w", name, err)
	}
	return dom, nil
}
