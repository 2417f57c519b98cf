package vm

import (
	"github.com/digitalocean/go-libvirt"
)

// domainFinder resolves domains by the identifiers virsh accepts.
type domainFinder interface {
	ConnectListAllDomains(needResults int32, flags libvirt.ConnectListAllDomainsFlags) ([]libvirt.Domain, uint32, error)
	DomainLookupByName(name string) (libvirt.Domain, error)
	DomainLookupByID(id int32) (libvirt.Domain, error)
	DomainLookupByUUID(uuid libvirt.UUID) (libvirt.Domain, error)
}

// domainReader is the read-only view used by list and dominfo.
type domainReader interface {
	DomainGetState(dom libvirt.Domain, flags uint32) (state int32, reason int32, err error)
	DomainGetInfo(dom libvirt.Domain) (state uint8, maxMem uint64, memory uint64, nrVirtCPU uint16, cpuTime uint64, err error)
	DomainGetAutostart(dom libvirt.Domain) (int32, error)
	DomainIsPersistent(dom libvirt.Domain) (int32, error)
	DomainGetXMLDesc(dom libvirt.Domain, flags libvirt.DomainXMLFlags) (string, error)
}

// domainWriter changes a domain's configuration.
type domainWriter interface {
	DomainSetVcpusFlags(dom libvirt.Domain, nvcpus uint32, flags uint32) error
	DomainSetMemoryFlags(dom libvirt.Domain, memory uint64, flags uint32) error
	DomainSetAutostart(dom libvirt.Domain, autostart int32) error
	DomainUndefineFlags(dom libvirt.Domain, flags libvirt.DomainUndefineFlagsValues) error
	DomainUndefine(dom libvirt.Domain) error
}

// LibvirtClient is the domain API used by this package. *libvirt.Libvirt
// satisfies it; tests pass a mock.
type LibvirtClient interface {
	domainFinder
	domainReader
	domainWriter
}

// migrationClient is what a running migration needs.
type migrationClient interface {
	DomainMigratePerform3Params(dom libvirt.Domain, dconnuri libvirt.OptString, params []libvirt.TypedParam, cookieIn []byte, flags libvirt.DomainMigrateFlags) ([]byte, error)
	DomainAbortJob(dom libvirt.Domain) error
	DomainSuspend(dom libvirt.Domain) error
	DomainGetJobInfo(dom libvirt.Domain) (rType int32, rTimeElapsed uint64, rTimeRemaining uint64, rDataTotal uint64, rDataProcessed uint64, rDataRemaining uint64, rMemTotal uint64, rMemProcessed uint64, rMemRemaining uint64, rFileTotal uint64, rFileProcessed uint64, rFileRemaining uint64, err error)
}
