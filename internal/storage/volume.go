package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"libvirt.org/go/libvirtxml"
)

// CreateVolume creates a volume in poolName. A backing volume is looked up
// in the same pool and its path recorded in the new volume's backing store.
func (m *Manager) CreateVolume(ctx context.Context, poolName string, spec VolumeSpec) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("invalid volume spec: %w", err)
	}
	pool, err := m.lookupPool(poolName)
	if err != nil {
		return err
	}

	var backingPath string
	if spec.BackingVolume != "" {
		backingPath, err = m.GetVolumePath(ctx, poolName, spec.BackingVolume)
		if err != nil {
			return fmt.Errorf("failed to get backing volume: %w", err)
		}
	}
	desc, err := volumeXML(spec, backingPath)
	if err != nil {
		return fmt.Errorf("failed to generate volume XML: %w", err)
	}

	if _, err := m.client.StorageVolCreateXML(pool, desc, 0); err != nil {
		return fmt.Errorf("failed to create vol %s: %w", spec.Name, err)
	}
	return nil
}

// DeleteVolume deletes a volume and its data.
func (m *Manager) DeleteVolume(_ context.Context, poolName, volName string) error {
	vol, err := m.lookupVolume(poolName, volName)
	if err != nil {
		return err
	}
	if err := m.client.StorageVolDelete(vol, 0); err != nil {
		return fmt.Errorf("failed to delete vol %s: %w", volName, err)
	}
	return nil
}

// ListVolumes returns the volumes of poolName ordered by name. Volumes
// removed while listing are skipped.
func (m *Manager) ListVolumes(_ context.Context, poolName string) ([]VolumeInfo, error) {
	pool, err := m.lookupPool(poolName)
	if err != nil {
		return nil, err
	}
	vols, _, err := m.client.StoragePoolListAllVolumes(pool, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list volumes: %w", err)
	}

	infos := make([]VolumeInfo, 0, len(vols))
	for _, vol := range vols {
		path, err := m.client.StorageVolGetPath(vol)
		if err != nil {
			log.Debugf("failed to get path of vol %s: %v", vol.Name, err)
			continue
		}
		_, capacity, allocation, err := m.client.StorageVolGetInfo(vol)
		if err != nil {
			log.Debugf("failed to get info of vol %s: %v", vol.Name, err)
			continue
		}
		infos = append(infos, VolumeInfo{
			Name:       vol.Name,
			Path:       path,
			Pool:       poolName,
			Capacity:   capacity,
			Allocation: allocation,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// DeleteVolumeByPath deletes the volume stored at path and returns its
// name.
func (m *Manager) DeleteVolumeByPath(_ context.Context, path string) (string, error) {
	vol, err := m.client.StorageVolLookupByPath(path)
	if err != nil {
		return "", fmt.Errorf("failed to get vol for path '%s': %w", path, err)
	}
	if err := m.client.StorageVolDelete(vol, 0); err != nil {
		return "", fmt.Errorf("failed to delete vol %s: %w", vol.Name, err)
	}
	return vol.Name, nil
}

// GetVolumePath returns the host path of a volume.
func (m *Manager) GetVolumePath(_ context.Context, poolName, volName string) (string, error) {
	vol, err := m.lookupVolume(poolName, volName)
	if err != nil {
		return "", err
	}
	path, err := m.client.StorageVolGetPath(vol)
	if err != nil {
		return "", fmt.Errorf("failed to get path of vol %s: %w", volName, err)
	}
	return path, nil
}

// UploadVolume copies length bytes from r to the start of a volume.
func (m *Manager) UploadVolume(_ context.Context, poolName, volName string, r io.Reader, length uint64) error {
	vol, err := m.lookupVolume(poolName, volName)
	if err != nil {
		return err
	}
	if err := m.client.StorageVolUpload(vol, r, 0, length, 0); err != nil {
		return fmt.Errorf("cannot upload to volume %s: %w", volName, err)
	}
	return nil
}

// volumeXML renders the definition of a new volume. Sizes are in bytes.
func volumeXML(spec VolumeSpec, backingPath string) (string, error) {
	def := libvirtxml.StorageVolume{
		Name:       spec.Name,
		Capacity:   &libvirtxml.StorageVolumeSize{Unit: "bytes", Value: spec.Capacity},
		Allocation: &libvirtxml.StorageVolumeSize{Unit: "bytes", Value: spec.Allocation},
	}
	var format *libvirtxml.StorageVolumeTargetFormat
	if spec.Format != "" {
		format = &libvirtxml.StorageVolumeTargetFormat{Type: string(spec.Format)}
		def.Target = &libvirtxml.StorageVolumeTarget{Format: format}
	}
	if backingPath != "" {
		def.BackingStore = &libvirtxml.StorageVolumeBackingStore{Path: backingPath, Format: format}
	}

	out, err := def.Marshal()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
