package commands

import (
	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/virsh/internal/cmdline"
	"github.com/jbweber/virsh/internal/shell"
	"github.com/jbweber/virsh/internal/storage"
	"github.com/jbweber/virsh/internal/vm"
)

// domainClient lists the domain calls made directly by handlers, beyond
// those internal/vm makes.
type domainClient interface {
	DomainCreate(dom libvirt.Domain) error
	DomainShutdown(dom libvirt.Domain) error
	DomainReboot(dom libvirt.Domain, flags libvirt.DomainRebootFlagValues) error
	DomainDestroy(dom libvirt.Domain) error
	DomainResume(dom libvirt.Domain) error
	DomainDefineXML(xml string) (libvirt.Domain, error)
	DomainCreateXML(xml string, flags libvirt.DomainCreateFlags) (libvirt.Domain, error)
	DomainSendKey(dom libvirt.Domain, codeset uint32, holdtime uint32, keycodes []uint32, flags uint32) error
}

// migrationClient lists the calls vm.Migrate makes.
type migrationClient interface {
	DomainMigratePerform3Params(dom libvirt.Domain, dconnuri libvirt.OptString, params []libvirt.TypedParam, cookieIn []byte, flags libvirt.DomainMigrateFlags) ([]byte, error)
	DomainAbortJob(dom libvirt.Domain) error
	DomainSuspend(dom libvirt.Domain) error
	DomainGetJobInfo(dom libvirt.Domain) (rType int32, rTimeElapsed uint64, rTimeRemaining uint64, rDataTotal uint64, rDataProcessed uint64, rDataRemaining uint64, rMemTotal uint64, rMemProcessed uint64, rMemRemaining uint64, rFileTotal uint64, rFileProcessed uint64, rFileRemaining uint64, err error)
}

// networkClient lists the virtual network calls.
type networkClient interface {
	ConnectListAllNetworks(needResults int32, flags libvirt.ConnectListAllNetworksFlags) ([]libvirt.Network, uint32, error)
	NetworkLookupByName(name string) (libvirt.Network, error)
	NetworkCreate(net libvirt.Network) error
	NetworkDestroy(net libvirt.Network) error
	NetworkDefineXML(xml string) (libvirt.Network, error)
	NetworkUndefine(net libvirt.Network) error
	NetworkGetXMLDesc(net libvirt.Network, flags uint32) (string, error)
	NetworkGetAutostart(net libvirt.Network) (int32, error)
	NetworkSetAutostart(net libvirt.Network, autostart int32) error
	NetworkIsActive(net libvirt.Network) (int32, error)
}

// hostClient lists the connection and node calls.
type hostClient interface {
	ConnectGetCapabilities() (string, error)
	ConnectGetSysinfo(flags uint32) (string, error)
	ConnectGetHostname() (string, error)
	ConnectGetType() (string, error)
	ConnectGetVersion() (uint64, error)
	ConnectGetLibVersion() (uint64, error)
	NodeGetFreeMemory() (uint64, error)
	NodeGetCellsFreeMemory(startCell int32, maxcells int32) ([]uint64, error)
}

// hypervisor is everything the handlers call. *libvirt.Libvirt satisfies
// it.
type hypervisor interface {
	vm.LibvirtClient
	storage.LibvirtClient
	domainClient
	migrationClient
	networkClient
	hostClient
}

// apiFunc returns the hypervisor behind the shell connection.
type apiFunc func(ctl *shell.Control) (hypervisor, error)

func liveAPI(ctl *shell.Control) (hypervisor, error) {
	conn, err := ctl.Conn()
	if err != nil {
		return nil, err
	}
	return conn.Libvirt(), nil
}

// Groups returns the command groups of the shell in help order.
func Groups() []*cmdline.Group {
	return groupsWithDeps(liveAPI)
}

// groupsWithDeps builds the groups with handlers calling api.
// This is used for testing with mock clients.
func groupsWithDeps(api apiFunc) []*cmdline.Group {
	return []*cmdline.Group{
		virshGroup(api),
		domainGroup(api),
		networkGroup(api),
		poolGroup(api),
		volumeGroup(api),
		hostGroup(api),
	}
}

// Registry returns a validated registry of every command.
func Registry() (*cmdline.Registry, error) {
	reg := cmdline.NewRegistry(Groups()...)
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// Option definition shorthands.

func boolOpt(name, help string) cmdline.OptDef {
	return cmdline.OptDef{Name: name, Kind: cmdline.OptBool, Help: help}
}

func dataOpt(name, help string) cmdline.OptDef {
	return cmdline.OptDef{Name: name, Kind: cmdline.OptData, Flags: cmdline.FlagRequired, Help: help}
}

func optDataOpt(name, help string) cmdline.OptDef {
	return cmdline.OptDef{Name: name, Kind: cmdline.OptData, Help: help}
}

func stringOpt(name, help string) cmdline.OptDef {
	return cmdline.OptDef{Name: name, Kind: cmdline.OptString, Flags: cmdline.FlagRequiresValue, Help: help}
}

func intOpt(name, help string) cmdline.OptDef {
	return cmdline.OptDef{Name: name, Kind: cmdline.OptInt, Flags: cmdline.FlagRequiresValue, Help: help}
}

func formatOpt() cmdline.OptDef {
	return stringOpt("format", "output format (table, json, yaml)")
}

func domainOpt() cmdline.OptDef {
	return dataOpt("domain", "domain name, id or uuid")
}
