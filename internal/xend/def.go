package xend

import (
	"fmt"

	"github.com/google/uuid"
)

// Xend configuration format versions. The daemon reports its version in
// the node info; parsing and formatting rules change at each boundary.
const (
	ConfigVersion302 = 1 // Xen 3.0.2
	ConfigVersion303 = 2 // Xen 3.0.3
	ConfigVersion304 = 3 // Xen 3.0.4
	ConfigVersion310 = 4 // Xen 3.1.0

	// DefaultConfigVersion is used when the caller has no daemon to ask.
	DefaultConfigVersion = ConfigVersion310

	// maxNetTypeIOEmu is the last version that wants (type ioemu) on HVM NICs.
	maxNetTypeIOEmu = ConfigVersion304
	// minPVFBNewConf is the first version with (device (vfb ...)) for PV guests.
	minPVFBNewConf = ConfigVersion304

	defaultVifScript = "vif-bridge"
	vncPortBase      = 5900
)

// Lifecycle is the action taken when a guest powers off, reboots or
// crashes.
type Lifecycle string

const (
	LifecycleDestroy         Lifecycle = "destroy"
	LifecycleRestart         Lifecycle = "restart"
	LifecyclePreserve        Lifecycle = "preserve"
	LifecycleRenameRestart   Lifecycle = "rename-restart"
	LifecycleCoredumpDestroy Lifecycle = "coredump-destroy"
	LifecycleCoredumpRestart Lifecycle = "coredump-restart"
)

func parseLifecycle(s string, crash bool) (Lifecycle, error) {
	switch l := Lifecycle(s); l {
	case LifecycleDestroy, LifecycleRestart, LifecyclePreserve, LifecycleRenameRestart:
		return l, nil
	case LifecycleCoredumpDestroy, LifecycleCoredumpRestart:
		if crash {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: unknown lifecycle type %s", ErrInvalid, s)
}

// BootDevice is an entry of the HVM boot order.
type BootDevice string

const (
	BootFloppy  BootDevice = "fd"
	BootDisk    BootDevice = "hd"
	BootCDROM   BootDevice = "cdrom"
	BootNetwork BootDevice = "network"

	maxBootDevices = 4
)

// Feature is an HVM platform feature flag.
type Feature string

const (
	FeatureACPI     Feature = "acpi"
	FeatureAPIC     Feature = "apic"
	FeaturePAE      Feature = "pae"
	FeatureHAP      Feature = "hap"
	FeatureViridian Feature = "viridian"
)

// hvmFeatures is the order features are read and written in.
var hvmFeatures = []Feature{FeatureACPI, FeatureAPIC, FeaturePAE, FeatureHAP, FeatureViridian}

// ClockOffset selects how the guest clock relates to the host.
type ClockOffset string

const (
	ClockUTC       ClockOffset = "utc"
	ClockLocalTime ClockOffset = "localtime"
)

// Timer overrides a hypervisor default timer.
type Timer struct {
	Name    string
	Present bool
}

// OS describes how the guest boots.
type OS struct {
	// Type is "hvm" for fully virtualized guests and "linux" for
	// paravirtualized ones.
	Type string

	Loader  string
	Kernel  string
	Initrd  string
	Cmdline string
	Root    string

	// HasBootloader distinguishes an empty (bootloader) from no bootloader.
	HasBootloader  bool
	Bootloader     string
	BootloaderArgs string

	BootDevices []BootDevice
}

// IsHVM reports whether the guest is fully virtualized.
func (o OS) IsHVM() bool {
	return o.Type == "hvm"
}

// DiskType is the kind of backing store.
type DiskType string

const (
	DiskTypeBlock DiskType = "block"
	DiskTypeFile  DiskType = "file"
)

// DiskDevice is how the guest sees a disk.
type DiskDevice string

const (
	DiskDeviceDisk   DiskDevice = "disk"
	DiskDeviceCDROM  DiskDevice = "cdrom"
	DiskDeviceFloppy DiskDevice = "floppy"
)

// DiskBus is the emulated bus a disk is attached to.
type DiskBus string

const (
	DiskBusXen  DiskBus = "xen"
	DiskBusIDE  DiskBus = "ide"
	DiskBusSCSI DiskBus = "scsi"
	DiskBusFDC  DiskBus = "fdc"
)

// Disk is a block device attached to the guest.
type Disk struct {
	Type       DiskType
	Device     DiskDevice
	Bus        DiskBus
	DriverName string
	DriverType string
	Source     string
	Target     string
	ReadOnly   bool
	Shared     bool
}

// NetType is the host side connection of a NIC.
type NetType string

const (
	NetTypeBridge   NetType = "bridge"
	NetTypeEthernet NetType = "ethernet"
)

// Net is a guest network interface.
type Net struct {
	Type   NetType
	MAC    string
	Bridge string
	Script string
	IP     string
	IfName string
	Model  string
}

// HostdevPCI is a host PCI device passed through to the guest.
type HostdevPCI struct {
	Domain   int
	Bus      int
	Slot     int
	Function int
	Managed  bool
}

// GraphicsType is the framebuffer backend.
type GraphicsType string

const (
	GraphicsVNC GraphicsType = "vnc"
	GraphicsSDL GraphicsType = "sdl"
)

// Graphics is the guest framebuffer.
type Graphics struct {
	Type GraphicsType

	// VNC settings. Port is -1 when AutoPort is set.
	Port     int
	AutoPort bool
	Listen   string
	Passwd   string
	Keymap   string

	// SDL settings.
	Display    string
	XAuthority string
}

// InputType is the kind of pointing device.
type InputType string

const (
	InputMouse  InputType = "mouse"
	InputTablet InputType = "tablet"
)

// Input is an emulated input device.
type Input struct {
	Type InputType
	Bus  string
}

// Known sound card models.
var soundModels = map[string]bool{
	"sb16":   true,
	"es1370": true,
	"pcspk":  true,
	"ac97":   true,
	"ich6":   true,
}

// ChrType is the host side of a character device.
type ChrType string

const (
	ChrNull  ChrType = "null"
	ChrVC    ChrType = "vc"
	ChrPTY   ChrType = "pty"
	ChrDev   ChrType = "dev"
	ChrFile  ChrType = "file"
	ChrPipe  ChrType = "pipe"
	ChrStdio ChrType = "stdio"
	ChrUDP   ChrType = "udp"
	ChrTCP   ChrType = "tcp"
	ChrUnix  ChrType = "unix"
)

// Chr is a serial, parallel or console device.
type Chr struct {
	Type ChrType

	// Path for pty, dev, file, pipe and unix.
	Path string

	// TCP and UNIX.
	Host    string
	Service string
	Listen  bool
	Telnet  bool

	// UDP.
	ConnectHost    string
	ConnectService string
	BindHost       string
	BindService    string

	Port int
}

// DomainDef is a guest definition.
type DomainDef struct {
	// ID is -1 for inactive domains.
	ID          int
	Name        string
	UUID        uuid.UUID
	Description string

	OS OS

	MaxMemoryKiB     uint64
	CurrentMemoryKiB uint64
	MaxVCPUs         int
	VCPUs            int
	CPUMask          string

	OnPoweroff Lifecycle
	OnReboot   Lifecycle
	OnCrash    Lifecycle

	Features []Feature
	Clock    ClockOffset
	Timers   []Timer
	Emulator string

	Disks     []Disk
	Nets      []Net
	Hostdevs  []HostdevPCI
	Graphics  []Graphics
	Inputs    []Input
	Sounds    []string
	Serials   []Chr
	Parallels []Chr
	Consoles  []Chr
}

// HasFeature reports whether f is enabled.
func (d *DomainDef) HasFeature(f Feature) bool {
	for _, have := range d.Features {
		if have == f {
			return true
		}
	}
	return false
}
