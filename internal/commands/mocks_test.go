package commands

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/virsh/internal/cmdline"
	"github.com/jbweber/virsh/internal/shell"
)

// mockHypervisor implements the hypervisor calls the command tests make.
// Calls it does not implement go to the nil embedded interface and panic.
type mockHypervisor struct {
	hypervisor

	mu       sync.Mutex
	domains  []libvirt.Domain
	states   map[string]int32
	networks map[string]*mockNetwork
	calls    []string

	getStateErr error
	sendKeys    []uint32
	sendCodeset uint32
	vcpus       uint32
	vcpuFlags   uint32

	migrateURI   string
	migrateFlags libvirt.DomainMigrateFlags

	// disks holds <disk> elements per domain; volumes maps the paths the
	// storage side knows to volume names.
	disks      map[string]string
	volumes    map[string]string
	undefined  []string
	volDeletes []string
}

type mockNetwork struct {
	active    bool
	autostart bool
}

func newMockHypervisor() *mockHypervisor {
	return &mockHypervisor{
		states:   make(map[string]int32),
		networks: make(map[string]*mockNetwork),
		disks:    make(map[string]string),
		volumes:  make(map[string]string),
	}
}

func (m *mockHypervisor) addDomain(id int32, name string, state libvirt.DomainState) libvirt.Domain {
	dom := libvirt.Domain{ID: id, Name: name, UUID: libvirt.UUID{byte(len(m.domains) + 1)}}
	m.domains = append(m.domains, dom)
	m.states[name] = int32(state)
	return dom
}

func (m *mockHypervisor) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockHypervisor) ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
	var out []libvirt.Domain
	for _, d := range m.domains {
		active := m.states[d.Name] != int32(libvirt.DomainShutoff)
		if (active && flags&libvirt.ConnectListDomainsActive != 0) || (!active && flags&libvirt.ConnectListDomainsInactive != 0) {
			out = append(out, d)
		}
	}
	return out, uint32(len(out)), nil
}

func (m *mockHypervisor) DomainLookupByName(name string) (libvirt.Domain, error) {
	for _, d := range m.domains {
		if d.Name == name {
			return d, nil
		}
	}
	return libvirt.Domain{}, libvirt.Error{Code: 42, Message: fmt.Sprintf("Domain not found: no domain with matching name '%s'", name)}
}

func (m *mockHypervisor) DomainLookupByID(id int32) (libvirt.Domain, error) {
	for _, d := range m.domains {
		if d.ID == id && m.states[d.Name] != int32(libvirt.DomainShutoff) {
			return d, nil
		}
	}
	return libvirt.Domain{}, libvirt.Error{Code: 42, Message: "Domain not found"}
}

func (m *mockHypervisor) DomainLookupByUUID(uuid libvirt.UUID) (libvirt.Domain, error) {
	for _, d := range m.domains {
		if d.UUID == uuid {
			return d, nil
		}
	}
	return libvirt.Domain{}, libvirt.Error{Code: 42, Message: "Domain not found"}
}

func (m *mockHypervisor) DomainGetState(dom libvirt.Domain, flags uint32) (int32, int32, error) {
	m.record("DomainGetState")
	if m.getStateErr != nil {
		return 0, 0, m.getStateErr
	}
	return m.states[dom.Name], 0, nil
}

func (m *mockHypervisor) DomainGetInfo(dom libvirt.Domain) (uint8, uint64, uint64, uint16, uint64, error) {
	m.record("DomainGetInfo")
	return uint8(m.states[dom.Name]), 2097152, 1048576, 2, 0, nil
}

func (m *mockHypervisor) DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error) {
	return fmt.Sprintf("<domain type='kvm'><name>%s</name><os><type>hvm</type></os><devices>%s</devices></domain>\n", dom.Name, m.disks[dom.Name]), nil
}

func (m *mockHypervisor) DomainIsPersistent(dom libvirt.Domain) (int32, error) {
	return 1, nil
}

func (m *mockHypervisor) DomainGetAutostart(dom libvirt.Domain) (int32, error) {
	return 0, nil
}

func (m *mockHypervisor) DomainCreate(dom libvirt.Domain) error {
	m.record("DomainCreate " + dom.Name)
	m.states[dom.Name] = int32(libvirt.DomainRunning)
	return nil
}

func (m *mockHypervisor) DomainDestroy(dom libvirt.Domain) error {
	m.record("DomainDestroy " + dom.Name)
	m.states[dom.Name] = int32(libvirt.DomainShutoff)
	return nil
}

func (m *mockHypervisor) DomainSendKey(dom libvirt.Domain, codeset uint32, holdtime uint32, keycodes []uint32, flags uint32) error {
	m.record("DomainSendKey " + dom.Name)
	m.sendCodeset = codeset
	m.sendKeys = keycodes
	return nil
}

func (m *mockHypervisor) DomainSetVcpusFlags(dom libvirt.Domain, nvcpus uint32, flags uint32) error {
	m.record("DomainSetVcpusFlags " + dom.Name)
	m.vcpus = nvcpus
	m.vcpuFlags = flags
	return nil
}

func (m *mockHypervisor) ConnectListAllNetworks(needResults int32, flags libvirt.ConnectListAllNetworksFlags) ([]libvirt.Network, uint32, error) {
	var out []libvirt.Network
	for name, n := range m.networks {
		if (n.active && flags&listNetworksActive != 0) || (!n.active && flags&listNetworksInactive != 0) {
			out = append(out, libvirt.Network{Name: name})
		}
	}
	return out, uint32(len(out)), nil
}

func (m *mockHypervisor) NetworkLookupByName(name string) (libvirt.Network, error) {
	if _, ok := m.networks[name]; !ok {
		return libvirt.Network{}, libvirt.Error{Code: 43, Message: "Network not found"}
	}
	return libvirt.Network{Name: name}, nil
}

func (m *mockHypervisor) NetworkCreate(net libvirt.Network) error {
	m.record("NetworkCreate " + net.Name)
	m.networks[net.Name].active = true
	return nil
}

func (m *mockHypervisor) NetworkIsActive(net libvirt.Network) (int32, error) {
	if m.networks[net.Name].active {
		return 1, nil
	}
	return 0, nil
}

func (m *mockHypervisor) NetworkGetAutostart(net libvirt.Network) (int32, error) {
	if m.networks[net.Name].autostart {
		return 1, nil
	}
	return 0, nil
}

func (m *mockHypervisor) ConnectGetType() (string, error)         { return "QEMU", nil }
func (m *mockHypervisor) ConnectGetLibVersion() (uint64, error)   { return 9000000, nil }
func (m *mockHypervisor) ConnectGetVersion() (uint64, error)      { return 8002001, nil }
func (m *mockHypervisor) ConnectGetHostname() (string, error)     { return "node1", nil }
func (m *mockHypervisor) NodeGetFreeMemory() (uint64, error)      { return 4 << 30, nil }
func (m *mockHypervisor) ConnectGetCapabilities() (string, error) { return "<capabilities/>", nil }

type fakeConn struct {
	gone chan struct{}
}

func (f *fakeConn) Close() error                  { return nil }
func (f *fakeConn) Disconnected() <-chan struct{} { return f.gone }
func (f *fakeConn) URI() string                   { return "test:///default" }
func (f *fakeConn) Libvirt() *libvirt.Libvirt     { return nil }

type testEnv struct {
	ctl    *shell.Control
	mock   *mockHypervisor
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{mock: newMockHypervisor(), out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}

	reg := cmdline.NewRegistry(groupsWithDeps(func(*shell.Control) (hypervisor, error) {
		return env.mock, nil
	})...)
	if err := reg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	dial := func(context.Context, string, bool) (shell.Connection, error) {
		return &fakeConn{gone: make(chan struct{})}, nil
	}
	env.ctl = shell.New(reg, dial, shell.Options{Out: env.out, Err: env.errOut})
	return env
}

// run executes line and fails the test when it reports an error.
func (e *testEnv) run(t *testing.T, line string) string {
	t.Helper()
	e.out.Reset()
	if !e.ctl.Run(context.Background(), line) {
		t.Fatalf("%q failed: %s", line, e.errOut.String())
	}
	return e.out.String()
}

// fail executes line and returns its error output.
func (e *testEnv) fail(t *testing.T, line string) string {
	t.Helper()
	e.errOut.Reset()
	if e.ctl.Run(context.Background(), line) {
		t.Fatalf("%q succeeded, expected failure", line)
	}
	return e.errOut.String()
}

func (m *mockHypervisor) DomainMigratePerform3Params(dom libvirt.Domain, dconnuri libvirt.OptString, params []libvirt.TypedParam, cookieIn []byte, flags libvirt.DomainMigrateFlags) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "migrate "+dom.Name)
	if len(dconnuri) > 0 {
		m.migrateURI = dconnuri[0]
	}
	m.migrateFlags = flags
	return nil, nil
}

func (m *mockHypervisor) DomainUndefineFlags(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undefined = append(m.undefined, dom.Name)
	return nil
}

func (m *mockHypervisor) StorageVolLookupByPath(path string) (libvirt.StorageVol, error) {
	name, ok := m.volumes[path]
	if !ok {
		return libvirt.StorageVol{}, libvirt.Error{Code: 50, Message: "Storage volume not found: no storage vol with matching path '" + path + "'"}
	}
	return libvirt.StorageVol{Pool: "images", Name: name}, nil
}

func (m *mockHypervisor) StorageVolDelete(vol libvirt.StorageVol, flags libvirt.StorageVolDeleteFlags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volDeletes = append(m.volDeletes, vol.Name)
	return nil
}
