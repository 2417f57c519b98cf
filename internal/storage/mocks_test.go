package storage

import (
	"io"
	"path"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"
	"libvirt.org/go/libvirtxml"
)

// libvirt error codes returned by the mock.
const (
	errNoStoragePool    = 49
	errNoStorageVol     = 50
	errOperationInvalid = 55
)

// mockLibvirtClient keeps pools and volumes in memory. Pool and volume
// names are read from the XML the Manager generates.
type mockLibvirtClient struct {
	pools   map[string]*mockPool
	volumes map[string]map[string]*mockVolume

	lastVolumeXML string
	uploadErr     error
}

type mockPool struct {
	def       libvirtxml.StoragePool
	uuid      libvirt.UUID
	state     libvirt.StoragePoolState
	autostart int32
}

type mockVolume struct {
	path      string
	capacity  uint64
	allocated uint64
	data      []byte
}

func newMockLibvirtClient() *mockLibvirtClient {
	return &mockLibvirtClient{
		pools:   make(map[string]*mockPool),
		volumes: make(map[string]map[string]*mockVolume),
	}
}

func noPool(name string) error {
	return libvirt.Error{Code: errNoStoragePool, Message: "Storage pool not found: no storage pool with matching name '" + name + "'"}
}

func noVol(name string) error {
	return libvirt.Error{Code: errNoStorageVol, Message: "Storage volume not found: no storage vol with matching name '" + name + "'"}
}

func (m *mockLibvirtClient) pool(p libvirt.StoragePool) (*mockPool, error) {
	mp, ok := m.pools[p.Name]
	if !ok {
		return nil, noPool(p.Name)
	}
	return mp, nil
}

func (m *mockLibvirtClient) volume(v libvirt.StorageVol) (*mockVolume, error) {
	vols, ok := m.volumes[v.Pool]
	if !ok {
		return nil, noPool(v.Pool)
	}
	mv, ok := vols[v.Name]
	if !ok {
		return nil, noVol(v.Name)
	}
	return mv, nil
}

func (mp *mockPool) handle() libvirt.StoragePool {
	return libvirt.StoragePool{Name: mp.def.Name, UUID: mp.uuid}
}

func (m *mockLibvirtClient) ConnectListAllStoragePools(needResults int32, flags libvirt.ConnectListAllStoragePoolsFlags) ([]libvirt.StoragePool, uint32, error) {
	var out []libvirt.StoragePool
	for _, mp := range m.pools {
		active := mp.state == libvirt.StoragePoolRunning
		if (active && flags&listPoolsActive != 0) || (!active && flags&listPoolsInactive != 0) {
			out = append(out, mp.handle())
		}
	}
	return out, uint32(len(out)), nil
}

func (m *mockLibvirtClient) StoragePoolLookupByName(name string) (libvirt.StoragePool, error) {
	mp, ok := m.pools[name]
	if !ok {
		return libvirt.StoragePool{}, noPool(name)
	}
	return mp.handle(), nil
}

func (m *mockLibvirtClient) StoragePoolDefineXML(xml string, flags uint32) (libvirt.StoragePool, error) {
	var def libvirtxml.StoragePool
	if err := def.Unmarshal(xml); err != nil {
		return libvirt.StoragePool{}, libvirt.Error{Code: 27, Message: err.Error()}
	}
	if _, ok := m.pools[def.Name]; ok {
		return libvirt.StoragePool{}, libvirt.Error{Code: errOperationInvalid, Message: "pool '" + def.Name + "' already exists"}
	}
	mp := &mockPool{
		def:   def,
		uuid:  libvirt.UUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(def.Name))),
		state: libvirt.StoragePoolInactive,
	}
	m.pools[def.Name] = mp
	m.volumes[def.Name] = make(map[string]*mockVolume)
	return mp.handle(), nil
}

func (m *mockLibvirtClient) StoragePoolBuild(p libvirt.StoragePool, flags libvirt.StoragePoolBuildFlags) error {
	_, err := m.pool(p)
	return err
}

func (m *mockLibvirtClient) StoragePoolCreate(p libvirt.StoragePool, flags libvirt.StoragePoolCreateFlags) error {
	mp, err := m.pool(p)
	if err != nil {
		return err
	}
	if mp.state == libvirt.StoragePoolRunning {
		return libvirt.Error{Code: errOperationInvalid, Message: "storage pool '" + p.Name + "' is already active"}
	}
	mp.state = libvirt.StoragePoolRunning
	return nil
}

func (m *mockLibvirtClient) StoragePoolDestroy(p libvirt.StoragePool) error {
	mp, err := m.pool(p)
	if err != nil {
		return err
	}
	mp.state = libvirt.StoragePoolInactive
	return nil
}

func (m *mockLibvirtClient) StoragePoolUndefine(p libvirt.StoragePool) error {
	if _, err := m.pool(p); err != nil {
		return err
	}
	delete(m.pools, p.Name)
	delete(m.volumes, p.Name)
	return nil
}

func (m *mockLibvirtClient) StoragePoolRefresh(p libvirt.StoragePool, flags uint32) error {
	_, err := m.pool(p)
	return err
}

func (m *mockLibvirtClient) StoragePoolGetInfo(p libvirt.StoragePool) (uint8, uint64, uint64, uint64, error) {
	mp, err := m.pool(p)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	var used uint64
	for _, v := range m.volumes[p.Name] {
		used += v.allocated
	}
	const size = 1 << 40
	return uint8(mp.state), size, used, size - used, nil
}

func (m *mockLibvirtClient) StoragePoolGetXMLDesc(p libvirt.StoragePool, flags libvirt.StorageXMLFlags) (string, error) {
	mp, err := m.pool(p)
	if err != nil {
		return "", err
	}
	return mp.def.Marshal()
}

func (m *mockLibvirtClient) StoragePoolGetAutostart(p libvirt.StoragePool) (int32, error) {
	mp, err := m.pool(p)
	if err != nil {
		return 0, err
	}
	return mp.autostart, nil
}

func (m *mockLibvirtClient) StoragePoolSetAutostart(p libvirt.StoragePool, autostart int32) error {
	mp, err := m.pool(p)
	if err != nil {
		return err
	}
	mp.autostart = autostart
	return nil
}

func (m *mockLibvirtClient) StoragePoolIsPersistent(p libvirt.StoragePool) (int32, error) {
	if _, err := m.pool(p); err != nil {
		return 0, err
	}
	return 1, nil
}

func (m *mockLibvirtClient) StoragePoolListAllVolumes(p libvirt.StoragePool, needResults int32, flags uint32) ([]libvirt.StorageVol, uint32, error) {
	if _, err := m.pool(p); err != nil {
		return nil, 0, err
	}
	var out []libvirt.StorageVol
	for name := range m.volumes[p.Name] {
		out = append(out, libvirt.StorageVol{Pool: p.Name, Name: name})
	}
	return out, uint32(len(out)), nil
}

func (m *mockLibvirtClient) StorageVolLookupByName(p libvirt.StoragePool, name string) (libvirt.StorageVol, error) {
	v := libvirt.StorageVol{Pool: p.Name, Name: name}
	if _, err := m.volume(v); err != nil {
		return libvirt.StorageVol{}, err
	}
	return v, nil
}

// StorageVolCreateXML places volumes under the pool's target path.
func (m *mockLibvirtClient) StorageVolCreateXML(p libvirt.StoragePool, xml string, flags libvirt.StorageVolCreateFlags) (libvirt.StorageVol, error) {
	mp, err := m.pool(p)
	if err != nil {
		return libvirt.StorageVol{}, err
	}
	var def libvirtxml.StorageVolume
	if err := def.Unmarshal(xml); err != nil {
		return libvirt.StorageVol{}, libvirt.Error{Code: 27, Message: err.Error()}
	}
	if _, ok := m.volumes[p.Name][def.Name]; ok {
		return libvirt.StorageVol{}, libvirt.Error{Code: errOperationInvalid, Message: "volume '" + def.Name + "' already exists"}
	}

	m.lastVolumeXML = xml
	dir := "/var/lib/libvirt/images/" + p.Name
	if mp.def.Target != nil && mp.def.Target.Path != "" {
		dir = mp.def.Target.Path
	}
	mv := &mockVolume{path: path.Join(dir, def.Name)}
	if def.Capacity != nil {
		mv.capacity = def.Capacity.Value
	}
	if def.Allocation != nil {
		mv.allocated = def.Allocation.Value
	}
	m.volumes[p.Name][def.Name] = mv
	return libvirt.StorageVol{Pool: p.Name, Name: def.Name}, nil
}

func (m *mockLibvirtClient) StorageVolLookupByPath(path string) (libvirt.StorageVol, error) {
	for pool, vols := range m.volumes {
		for name, mv := range vols {
			if mv.path == path {
				return libvirt.StorageVol{Pool: pool, Name: name}, nil
			}
		}
	}
	return libvirt.StorageVol{}, libvirt.Error{Code: errNoStorageVol, Message: "Storage volume not found: no storage vol with matching path '" + path + "'"}
}

func (m *mockLibvirtClient) StorageVolDelete(v libvirt.StorageVol, flags libvirt.StorageVolDeleteFlags) error {
	if _, err := m.volume(v); err != nil {
		return err
	}
	delete(m.volumes[v.Pool], v.Name)
	return nil
}

func (m *mockLibvirtClient) StorageVolGetPath(v libvirt.StorageVol) (string, error) {
	mv, err := m.volume(v)
	if err != nil {
		return "", err
	}
	return mv.path, nil
}

func (m *mockLibvirtClient) StorageVolGetInfo(v libvirt.StorageVol) (int8, uint64, uint64, error) {
	mv, err := m.volume(v)
	if err != nil {
		return 0, 0, 0, err
	}
	return 0, mv.capacity, mv.allocated, nil
}

func (m *mockLibvirtClient) StorageVolUpload(v libvirt.StorageVol, r io.Reader, offset uint64, length uint64, flags libvirt.StorageVolUploadFlags) error {
	mv, err := m.volume(v)
	if err != nil {
		return err
	}
	if m.uploadErr != nil {
		return m.uploadErr
	}
	data, err := io.ReadAll(io.LimitReader(r, int64(length)))
	if err != nil {
		return err
	}
	mv.data = data
	if n := uint64(len(data)); n > mv.allocated {
		mv.allocated = n
	}
	return nil
}
