package vm

import (
	"context"
	"fmt"

	"github.com/digitalocean/go-libvirt"
	log "github.com/sirupsen/logrus"
	"libvirt.org/go/libvirtxml"
)

// volumeRemover deletes storage volumes. *storage.Manager satisfies it.
type volumeRemover interface {
	DeleteVolume(ctx context.Context, poolName, volName string) error
	DeleteVolumeByPath(ctx context.Context, path string) (string, error)
}

// StorageRef is a disk source backing a domain. Pool volumes carry Pool
// and Volume; file and block disks carry Path.
type StorageRef struct {
	Target string
	Path   string
	Pool   string
	Volume string
}

// Source names the disk source for messages.
func (r StorageRef) Source() string {
	if r.Path != "" {
		return r.Path
	}
	return r.Pool + "/" + r.Volume
}

// RemovedVolume is the outcome of deleting one StorageRef.
type RemovedVolume struct {
	Ref StorageRef
	Err error
}

// Storage lists the file, block and pool volume disks of dom. CD-ROM and
// floppy media are left out.
func Storage(lv LibvirtClient, dom libvirt.Domain) ([]StorageRef, error) {
	desc, err := lv.DomainGetXMLDesc(dom, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get xml of %s: %w", dom.Name, err)
	}
	var def libvirtxml.Domain
	if err := def.Unmarshal(desc); err != nil {
		return nil, fmt.Errorf("failed to parse xml of %s: %w", dom.Name, err)
	}
	if def.Devices == nil {
		return nil, nil
	}

	var refs []StorageRef
	for _, disk := range def.Devices.Disks {
		if disk.Device == "cdrom" || disk.Device == "floppy" || disk.Source == nil {
			continue
		}
		var ref StorageRef
		if disk.Target != nil {
			ref.Target = disk.Target.Dev
		}
		switch src := disk.Source; {
		case src.File != nil && src.File.File != "":
			ref.Path = src.File.File
		case src.Block != nil && src.Block.Dev != "":
			ref.Path = src.Block.Dev
		case src.Volume != nil && src.Volume.Volume != "":
			ref.Pool, ref.Volume = src.Volume.Pool, src.Volume.Volume
		default:
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// UndefineRemoveStorage undefines dom and then deletes the volumes behind
// its disks. Every disk is tried; failures are reported per volume.
func UndefineRemoveStorage(ctx context.Context, lv LibvirtClient, dom libvirt.Domain, vr volumeRemover) ([]RemovedVolume, error) {
	refs, err := Storage(lv, dom)
	if err != nil {
		return nil, err
	}
	if err := Undefine(lv, dom); err != nil {
		return nil, err
	}

	out := make([]RemovedVolume, 0, len(refs))
	for _, ref := range refs {
		if ref.Path != "" {
			_, err = vr.DeleteVolumeByPath(ctx, ref.Path)
		} else {
			err = vr.DeleteVolume(ctx, ref.Pool, ref.Volume)
		}
		if err != nil {
			log.Warnf("failed to remove storage %s of %s: %v", ref.Source(), dom.Name, err)
		}
		out = append(out, RemovedVolume{Ref: ref, Err: err})
	}
	return out, nil
}
