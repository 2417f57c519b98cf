package storage

import (
	"fmt"
	"io"

	"github.com/digitalocean/go-libvirt"
)

// poolClient lists the pool lifecycle calls.
type poolClient interface {
	ConnectListAllStoragePools(needResults int32, flags libvirt.ConnectListAllStoragePoolsFlags) ([]libvirt.StoragePool, uint32, error)
	StoragePoolLookupByName(name string) (libvirt.StoragePool, error)
	StoragePoolDefineXML(xml string, flags uint32) (libvirt.StoragePool, error)
	StoragePoolBuild(pool libvirt.StoragePool, flags libvirt.StoragePoolBuildFlags) error
	StoragePoolCreate(pool libvirt.StoragePool, flags libvirt.StoragePoolCreateFlags) error
	StoragePoolDestroy(pool libvirt.StoragePool) error
	StoragePoolUndefine(pool libvirt.StoragePool) error
	StoragePoolRefresh(pool libvirt.StoragePool, flags uint32) error
	StoragePoolGetInfo(pool libvirt.StoragePool) (state uint8, capacity uint64, allocation uint64, available uint64, err error)
	StoragePoolGetXMLDesc(pool libvirt.StoragePool, flags libvirt.StorageXMLFlags) (string, error)
	StoragePoolGetAutostart(pool libvirt.StoragePool) (int32, error)
	StoragePoolSetAutostart(pool libvirt.StoragePool, autostart int32) error
	StoragePoolIsPersistent(pool libvirt.StoragePool) (int32, error)
}

// volumeClient lists the volume calls.
type volumeClient interface {
	StoragePoolListAllVolumes(pool libvirt.StoragePool, needResults int32, flags uint32) ([]libvirt.StorageVol, uint32, error)
	StorageVolLookupByName(pool libvirt.StoragePool, name string) (libvirt.StorageVol, error)
	StorageVolLookupByPath(path string) (libvirt.StorageVol, error)
	StorageVolCreateXML(pool libvirt.StoragePool, xml string, flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error)
	StorageVolDelete(vol libvirt.StorageVol, flags libvirt.StorageVolDeleteFlags) error
	StorageVolGetPath(vol libvirt.StorageVol) (string, error)
	StorageVolGetInfo(vol libvirt.StorageVol) (volType int8, capacity uint64, allocation uint64, err error)
	StorageVolUpload(vol libvirt.StorageVol, outStream io.Reader, offset uint64, length uint64, flags libvirt.StorageVolUploadFlags) error
}

// LibvirtClient is every storage call the Manager makes. *libvirt.Libvirt
// satisfies it.
type LibvirtClient interface {
	poolClient
	volumeClient
}

// Manager runs pool and volume operations by name.
type Manager struct {
	client LibvirtClient
}

// NewManager returns a Manager calling client.
func NewManager(client LibvirtClient) *Manager {
	return &Manager{client: client}
}

func (m *Manager) lookupPool(name string) (libvirt.StoragePool, error) {
	pool, err := m.client.StoragePoolLookupByName(name)
	if err != nil {
		return libvirt.StoragePool{}, fmt.Errorf("failed to get pool '%s': %w", name, err)
	}
	return pool, nil
}

// lookupVolume resolves a volume inside the named pool.
func (m *Manager) lookupVolume(poolName, volName string) (libvirt.StorageVol, error) {
	pool, err := m.lookupPool(poolName)
	if err != nil {
		return libvirt.StorageVol{}, err
	}
	vol, err := m.client.StorageVolLookupByName(pool, volName)
	if err != nil {
		return libvirt.StorageVol{}, fmt.Errorf("failed to get vol '%s': %w", volName, err)
	}
	return vol, nil
}
