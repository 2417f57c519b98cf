package vm

import (
	"fmt"
	"sync"

	"github.com/digitalocean/go-libvirt"
)

// mockLibvirtClient is a mock implementation of LibvirtClient and
// migrationClient for testing.
type mockLibvirtClient struct {
	mu sync.Mutex

	// Configurable behavior
	connectListAllDomainsFunc func(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)
	domainLookupByNameFunc    func(name string) (libvirt.Domain, error)
	domainLookupByIDFunc      func(id int32) (libvirt.Domain, error)
	domainLookupByUUIDFunc    func(uuid libvirt.UUID) (libvirt.Domain, error)
	domainGetStateFunc        func(dom libvirt.Domain, flags uint32) (int32, int32, error)
	domainGetInfoFunc         func(dom libvirt.Domain) (uint8, uint64, uint64, uint16, uint64, error)
	domainGetAutostartFunc    func(dom libvirt.Domain) (int32, error)
	domainIsPersistentFunc    func(dom libvirt.Domain) (int32, error)
	domainGetXMLDescFunc      func(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error)
	domainSetVcpusFlagsFunc   func(dom libvirt.Domain, nvcpus uint32, flags uint32) error
	domainSetMemoryFlagsFunc  func(dom libvirt.Domain, memory uint64, flags uint32) error
	domainSetAutostartFunc    func(dom libvirt.Domain, autostart int32) error
	domainUndefineFlagsFunc   func(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error
	domainUndefineFunc        func(dom libvirt.Domain) error
	domainMigrateFunc         func(dom libvirt.Domain, dconnuri libvirt.OptString, flags libvirt.DomainMigrateFlags) error
	domainAbortJobFunc        func(dom libvirt.Domain) error
	domainSuspendFunc         func(dom libvirt.Domain) error
	domainGetJobInfoFunc      func(dom libvirt.Domain) (total, remaining uint64, err error)

	// Call tracking
	connectListAllDomainsCalls []libvirt.ConnectListAllDomainsFlags
	domainLookupByNameCalls    []string
	domainLookupByIDCalls      []int32
	domainLookupByUUIDCalls    []libvirt.UUID
	domainGetXMLDescCalls      []libvirt.DomainXMLFlags
	domainSetVcpusFlagsCalls   []uint32 // flags
	domainSetMemoryFlagsCalls  []uint32 // flags
	domainSetAutostartCalls    []int32
	domainUndefineFlagsCalls   []libvirt.DomainUndefineFlagsValues
	domainUndefineCalls        []libvirt.Domain
	domainMigrateCalls         []libvirt.DomainMigrateFlags
	domainAbortJobCalls        int
	domainSuspendCalls         int
	domainGetJobInfoCalls      int
}

// newMockLibvirtClient creates a new mock libvirt client with default behavior.
func newMockLibvirtClient() *mockLibvirtClient {
	m := &mockLibvirtClient{}

	// Default: no domains
	m.connectListAllDomainsFunc = func(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
		return []libvirt.Domain{}, 0, nil
	}

	// Default: lookups fail
	m.domainLookupByNameFunc = func(name string) (libvirt.Domain, error) {
		return libvirt.Domain{}, fmt.Errorf("domain not found: %s", name)
	}
	m.domainLookupByIDFunc = func(id int32) (libvirt.Domain, error) {
		return libvirt.Domain{}, fmt.Errorf("domain not found: %d", id)
	}
	m.domainLookupByUUIDFunc = func(uuid libvirt.UUID) (libvirt.Domain, error) {
		return libvirt.Domain{}, fmt.Errorf("domain not found")
	}

	// Default: domain state is running
	m.domainGetStateFunc = func(dom libvirt.Domain, flags uint32) (int32, int32, error) {
		return int32(libvirt.DomainRunning), 0, nil
	}

	// Default: 1 GiB, 1 vcpu
	m.domainGetInfoFunc = func(dom libvirt.Domain) (uint8, uint64, uint64, uint16, uint64, error) {
		return 1, 1048576, 1048576, 1, 0, nil
	}

	m.domainGetAutostartFunc = func(dom libvirt.Domain) (int32, error) {
		return 0, nil
	}
	m.domainIsPersistentFunc = func(dom libvirt.Domain) (int32, error) {
		return 1, nil
	}
	m.domainGetXMLDescFunc = func(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error) {
		return "<domain type='xen'><name>" + dom.Name + "</name><os><type>hvm</type></os></domain>", nil
	}
	m.domainSetVcpusFlagsFunc = func(dom libvirt.Domain, nvcpus uint32, flags uint32) error {
		return nil
	}
	m.domainSetMemoryFlagsFunc = func(dom libvirt.Domain, memory uint64, flags uint32) error {
		return nil
	}
	m.domainSetAutostartFunc = func(dom libvirt.Domain, autostart int32) error {
		return nil
	}
	m.domainUndefineFlagsFunc = func(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error {
		return nil
	}
	m.domainUndefineFunc = func(dom libvirt.Domain) error {
		return nil
	}
	m.domainMigrateFunc = func(dom libvirt.Domain, dconnuri libvirt.OptString, flags libvirt.DomainMigrateFlags) error {
		return nil
	}
	m.domainAbortJobFunc = func(dom libvirt.Domain) error {
		return nil
	}
	m.domainSuspendFunc = func(dom libvirt.Domain) error {
		return nil
	}
	m.domainGetJobInfoFunc = func(dom libvirt.Domain) (uint64, uint64, error) {
		return 100, 50, nil
	}

	return m
}

func (m *mockLibvirtClient) ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectListAllDomainsCalls = append(m.connectListAllDomainsCalls, flags)
	return m.connectListAllDomainsFunc(needResults, flags)
}

func (m *mockLibvirtClient) DomainLookupByName(name string) (libvirt.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainLookupByNameCalls = append(m.domainLookupByNameCalls, name)
	return m.domainLookupByNameFunc(name)
}

func (m *mockLibvirtClient) DomainLookupByID(id int32) (libvirt.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainLookupByIDCalls = append(m.domainLookupByIDCalls, id)
	return m.domainLookupByIDFunc(id)
}

func (m *mockLibvirtClient) DomainLookupByUUID(uuid libvirt.UUID) (libvirt.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainLookupByUUIDCalls = append(m.domainLookupByUUIDCalls, uuid)
	return m.domainLookupByUUIDFunc(uuid)
}

func (m *mockLibvirtClient) DomainGetState(dom libvirt.Domain, flags uint32) (int32, int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.domainGetStateFunc(dom, flags)
}

func (m *mockLibvirtClient) DomainGetInfo(dom libvirt.Domain) (uint8, uint64, uint64, uint16, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.domainGetInfoFunc(dom)
}

func (m *mockLibvirtClient) DomainGetAutostart(dom libvirt.Domain) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.domainGetAutostartFunc(dom)
}

func (m *mockLibvirtClient) DomainIsPersistent(dom libvirt.Domain) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.domainIsPersistentFunc(dom)
}

func (m *mockLibvirtClient) DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainGetXMLDescCalls = append(m.domainGetXMLDescCalls, flags)
	return m.domainGetXMLDescFunc(dom, flags)
}

func (m *mockLibvirtClient) DomainSetVcpusFlags(dom libvirt.Domain, nvcpus uint32, flags uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainSetVcpusFlagsCalls = append(m.domainSetVcpusFlagsCalls, flags)
	return m.domainSetVcpusFlagsFunc(dom, nvcpus, flags)
}

func (m *mockLibvirtClient) DomainSetMemoryFlags(dom libvirt.Domain, memory uint64, flags uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainSetMemoryFlagsCalls = append(m.domainSetMemoryFlagsCalls, flags)
	return m.domainSetMemoryFlagsFunc(dom, memory, flags)
}

func (m *mockLibvirtClient) DomainSetAutostart(dom libvirt.Domain, autostart int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainSetAutostartCalls = append(m.domainSetAutostartCalls, autostart)
	return m.domainSetAutostartFunc(dom, autostart)
}

func (m *mockLibvirtClient) DomainUndefineFlags(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainUndefineFlagsCalls = append(m.domainUndefineFlagsCalls, flags)
	return m.domainUndefineFlagsFunc(dom, flags)
}

func (m *mockLibvirtClient) DomainUndefine(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainUndefineCalls = append(m.domainUndefineCalls, dom)
	return m.domainUndefineFunc(dom)
}

// DomainMigratePerform3Params does not hold the lock while the migration
// "runs" so the watcher can poll concurrently.
func (m *mockLibvirtClient) DomainMigratePerform3Params(dom libvirt.Domain, dconnuri libvirt.OptString, params []libvirt.TypedParam, cookieIn []byte, flags libvirt.DomainMigrateFlags) ([]byte, error) {
	m.mu.Lock()
	m.domainMigrateCalls = append(m.domainMigrateCalls, flags)
	fn := m.domainMigrateFunc
	m.mu.Unlock()
	return nil, fn(dom, dconnuri, flags)
}

func (m *mockLibvirtClient) DomainAbortJob(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainAbortJobCalls++
	return m.domainAbortJobFunc(dom)
}

func (m *mockLibvirtClient) DomainSuspend(dom libvirt.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainSuspendCalls++
	return m.domainSuspendFunc(dom)
}

func (m *mockLibvirtClient) DomainGetJobInfo(dom libvirt.Domain) (int32, uint64, uint64, uint64, uint64, uint64, uint64, uint64, uint64, uint64, uint64, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domainGetJobInfoCalls++
	total, remaining, err := m.domainGetJobInfoFunc(dom)
	return 2, 0, 0, total, total - remaining, remaining, 0, 0, 0, 0, 0, 0, err
}

func (m *mockLibvirtClient) counts() (abort, suspend int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.domainAbortJobCalls, m.domainSuspendCalls
}
