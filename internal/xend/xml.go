package xend

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"libvirt.org/go/libvirtxml"
)

// ToXML converts def to a libvirt domain document.
func ToXML(def *DomainDef) *libvirtxml.Domain {
	dom := &libvirtxml.Domain{
		Type:        "xen",
		Name:        def.Name,
		UUID:        def.UUID.String(),
		Description: def.Description,
		Memory:      &libvirtxml.DomainMemory{Value: uint(def.MaxMemoryKiB), Unit: "KiB"},
		CurrentMemory: &libvirtxml.DomainCurrentMemory{
			Value: uint(def.CurrentMemoryKiB),
			Unit:  "KiB",
		},
		VCPU: &libvirtxml.DomainVCPU{
			Value:  uint(def.MaxVCPUs),
			CPUSet: def.CPUMask,
		},
		OnPoweroff: string(def.OnPoweroff),
		OnReboot:   string(def.OnReboot),
		OnCrash:    string(def.OnCrash),
		Devices:    &libvirtxml.DomainDeviceList{Emulator: def.Emulator},
	}
	if def.ID >= 0 {
		id := def.ID
		dom.ID = &id
	}
	if def.VCPUs < def.MaxVCPUs {
		dom.VCPU.Current = uint(def.VCPUs)
	}

	if def.OS.HasBootloader {
		dom.Bootloader = def.OS.Bootloader
		dom.BootloaderArgs = def.OS.BootloaderArgs
	}
	dom.OS = &libvirtxml.DomainOS{
		Type:    &libvirtxml.DomainOSType{Type: def.OS.Type},
		Kernel:  def.OS.Kernel,
		Initrd:  def.OS.Initrd,
		Cmdline: def.OS.Cmdline,
	}
	if def.OS.Loader != "" {
		dom.OS.Loader = &libvirtxml.DomainLoader{Path: def.OS.Loader}
	}
	for _, dev := range def.OS.BootDevices {
		dom.OS.BootDevices = append(dom.OS.BootDevices, libvirtxml.DomainBootDevice{Dev: string(dev)})
	}

	if len(def.Features) > 0 {
		f := &libvirtxml.DomainFeatureList{}
		for _, feat := range def.Features {
			switch feat {
			case FeatureACPI:
				f.ACPI = &libvirtxml.DomainFeature{}
			case FeatureAPIC:
				f.APIC = &libvirtxml.DomainFeatureAPIC{}
			case FeaturePAE:
				f.PAE = &libvirtxml.DomainFeature{}
			case FeatureHAP:
				f.HAP = &libvirtxml.DomainFeatureState{}
			case FeatureViridian:
				f.Viridian = &libvirtxml.DomainFeature{}
			}
		}
		dom.Features = f
	}

	dom.Clock = &libvirtxml.DomainClock{Offset: string(def.Clock)}
	for _, t := range def.Timers {
		dom.Clock.Timer = append(dom.Clock.Timer, libvirtxml.DomainTimer{Name: t.Name, Present: yesNo(t.Present)})
	}

	devs := dom.Devices
	for _, d := range def.Disks {
		devs.Disks = append(devs.Disks, diskToXML(d))
	}
	for _, n := range def.Nets {
		devs.Interfaces = append(devs.Interfaces, netToXML(n))
	}
	for _, h := range def.Hostdevs {
		pd, bus, slot, fn := uint(h.Domain), uint(h.Bus), uint(h.Slot), uint(h.Function)
		devs.Hostdevs = append(devs.Hostdevs, libvirtxml.DomainHostdev{
			Managed: yesNo(h.Managed),
			SubsysPCI: &libvirtxml.DomainHostdevSubsysPCI{
				Source: &libvirtxml.DomainHostdevSubsysPCISource{
					Address: &libvirtxml.DomainAddressPCI{Domain: &pd, Bus: &bus, Slot: &slot, Function: &fn},
				},
			},
		})
	}
	for _, g := range def.Graphics {
		devs.Graphics = append(devs.Graphics, graphicsToXML(g))
	}
	for _, in := range def.Inputs {
		devs.Inputs = append(devs.Inputs, libvirtxml.DomainInput{Type: string(in.Type), Bus: in.Bus})
	}
	for _, s := range def.Sounds {
		devs.Sounds = append(devs.Sounds, libvirtxml.DomainSound{Model: s})
	}
	for _, c := range def.Serials {
		port := uint(c.Port)
		devs.Serials = append(devs.Serials, libvirtxml.DomainSerial{
			Source:   chrSourceToXML(c),
			Protocol: chrProtocol(c),
			Target:   &libvirtxml.DomainSerialTarget{Port: &port},
		})
	}
	for _, c := range def.Parallels {
		port := uint(c.Port)
		devs.Parallels = append(devs.Parallels, libvirtxml.DomainParallel{
			Source:   chrSourceToXML(c),
			Protocol: chrProtocol(c),
			Target:   &libvirtxml.DomainParallelTarget{Port: &port},
		})
	}
	for _, c := range def.Consoles {
		port := uint(c.Port)
		devs.Consoles = append(devs.Consoles, libvirtxml.DomainConsole{
			Source: chrSourceToXML(c),
			Target: &libvirtxml.DomainConsoleTarget{Type: "xen", Port: &port},
		})
	}
	return dom
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func diskToXML(d Disk) libvirtxml.DomainDisk {
	out := libvirtxml.DomainDisk{
		Device: string(d.Device),
		Target: &libvirtxml.DomainDiskTarget{Dev: d.Target, Bus: string(d.Bus)},
	}
	if d.DriverName != "" || d.DriverType != "" {
		out.Driver = &libvirtxml.DomainDiskDriver{Name: d.DriverName, Type: d.DriverType}
	}
	if d.Source != "" {
		if d.Type == DiskTypeBlock {
			out.Source = &libvirtxml.DomainDiskSource{Block: &libvirtxml.DomainDiskSourceBlock{Dev: d.Source}}
		} else {
			out.Source = &libvirtxml.DomainDiskSource{File: &libvirtxml.DomainDiskSourceFile{File: d.Source}}
		}
	}
	if d.ReadOnly {
		out.ReadOnly = &libvirtxml.DomainDiskReadOnly{}
	}
	if d.Shared {
		out.Shareable = &libvirtxml.DomainDiskShareable{}
	}
	return out
}

func netToXML(n Net) libvirtxml.DomainInterface {
	out := libvirtxml.DomainInterface{}
	if n.MAC != "" {
		out.MAC = &libvirtxml.DomainInterfaceMAC{Address: n.MAC}
	}
	if n.Type == NetTypeBridge {
		out.Source = &libvirtxml.DomainInterfaceSource{Bridge: &libvirtxml.DomainInterfaceSourceBridge{Bridge: n.Bridge}}
	} else {
		out.Source = &libvirtxml.DomainInterfaceSource{Ethernet: &libvirtxml.DomainInterfaceSourceEthernet{}}
	}
	if n.Script != "" {
		out.Script = &libvirtxml.DomainInterfaceScript{Path: n.Script}
	}
	if n.IP != "" {
		out.IP = []libvirtxml.DomainInterfaceIP{{Address: n.IP}}
	}
	if n.IfName != "" {
		out.Target = &libvirtxml.DomainInterfaceTarget{Dev: n.IfName}
	}
	if n.Model != "" {
		out.Model = &libvirtxml.DomainInterfaceModel{Type: n.Model}
	}
	return out
}

func graphicsToXML(g Graphics) libvirtxml.DomainGraphic {
	if g.Type == GraphicsSDL {
		return libvirtxml.DomainGraphic{SDL: &libvirtxml.DomainGraphicSDL{Display: g.Display, XAuth: g.XAuthority}}
	}
	return libvirtxml.DomainGraphic{VNC: &libvirtxml.DomainGraphicVNC{
		Port:     g.Port,
		AutoPort: yesNo(g.AutoPort),
		Listen:   g.Listen,
		Passwd:   g.Passwd,
		Keymap:   g.Keymap,
	}}
}

func chrProtocol(c Chr) *libvirtxml.DomainChardevProtocol {
	if c.Type == ChrTCP {
		proto := "raw"
		if c.Telnet {
			proto = "telnet"
		}
		return &libvirtxml.DomainChardevProtocol{Type: proto}
	}
	return nil
}

func chrMode(listen bool) string {
	if listen {
		return "bind"
	}
	return "connect"
}

func chrSourceToXML(c Chr) *libvirtxml.DomainChardevSource {
	src := &libvirtxml.DomainChardevSource{}
	switch c.Type {
	case ChrNull:
		src.Null = &libvirtxml.DomainChardevSourceNull{}
	case ChrVC:
		src.VC = &libvirtxml.DomainChardevSourceVC{}
	case ChrStdio:
		src.StdIO = &libvirtxml.DomainChardevSourceStdIO{}
	case ChrPTY:
		src.Pty = &libvirtxml.DomainChardevSourcePty{Path: c.Path}
	case ChrDev:
		src.Dev = &libvirtxml.DomainChardevSourceDev{Path: c.Path}
	case ChrFile:
		src.File = &libvirtxml.DomainChardevSourceFile{Path: c.Path}
	case ChrPipe:
		src.Pipe = &libvirtxml.DomainChardevSourcePipe{Path: c.Path}
	case ChrTCP:
		src.TCP = &libvirtxml.DomainChardevSourceTCP{Mode: chrMode(c.Listen), Host: c.Host, Service: c.Service}
	case ChrUDP:
		src.UDP = &libvirtxml.DomainChardevSourceUDP{
			ConnectHost:    c.ConnectHost,
			ConnectService: c.ConnectService,
			BindHost:       c.BindHost,
			BindService:    c.BindService,
		}
	case ChrUnix:
		src.UNIX = &libvirtxml.DomainChardevSourceUNIX{Mode: chrMode(c.Listen), Path: c.Path}
	}
	return src
}

// FromXML converts a libvirt domain document into a DomainDef.
func FromXML(dom *libvirtxml.Domain) (*DomainDef, error) {
	def := &DomainDef{
		ID:          -1,
		Name:        dom.Name,
		Description: dom.Description,
		OnPoweroff:  LifecycleDestroy,
		OnReboot:    LifecycleRestart,
		OnCrash:     LifecycleDestroy,
		Clock:       ClockUTC,
	}
	if def.Name == "" {
		return nil, incomplete("missing name")
	}
	if dom.ID != nil {
		def.ID = *dom.ID
	}
	if dom.UUID == "" {
		def.UUID = uuid.New()
	} else {
		id, err := uuid.Parse(dom.UUID)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot parse uuid %q: %v", ErrInvalid, dom.UUID, err)
		}
		def.UUID = id
	}

	var err error
	if dom.Memory != nil {
		if def.MaxMemoryKiB, err = toKiB(dom.Memory.Value, dom.Memory.Unit); err != nil {
			return nil, err
		}
	}
	def.CurrentMemoryKiB = def.MaxMemoryKiB
	if dom.CurrentMemory != nil {
		if def.CurrentMemoryKiB, err = toKiB(dom.CurrentMemory.Value, dom.CurrentMemory.Unit); err != nil {
			return nil, err
		}
	}
	if dom.VCPU != nil {
		def.MaxVCPUs = int(dom.VCPU.Value)
		def.VCPUs = def.MaxVCPUs
		if dom.VCPU.Current != 0 && int(dom.VCPU.Current) < def.MaxVCPUs {
			def.VCPUs = int(dom.VCPU.Current)
		}
		def.CPUMask = dom.VCPU.CPUSet
	}

	for _, lc := range []struct {
		in    string
		out   *Lifecycle
		crash bool
	}{
		{dom.OnPoweroff, &def.OnPoweroff, false},
		{dom.OnReboot, &def.OnReboot, false},
		{dom.OnCrash, &def.OnCrash, true},
	} {
		if lc.in == "" {
			continue
		}
		if *lc.out, err = parseLifecycle(lc.in, lc.crash); err != nil {
			return nil, err
		}
	}

	if dom.Bootloader != "" || dom.BootloaderArgs != "" {
		def.OS.HasBootloader = true
		def.OS.Bootloader = dom.Bootloader
		def.OS.BootloaderArgs = dom.BootloaderArgs
	}
	def.OS.Type = "linux"
	if os := dom.OS; os != nil {
		if os.Type != nil && os.Type.Type == "hvm" {
			def.OS.Type = "hvm"
		}
		if os.Loader != nil {
			def.OS.Loader = os.Loader.Path
		}
		def.OS.Kernel = os.Kernel
		def.OS.Initrd = os.Initrd
		def.OS.Cmdline = os.Cmdline
		for _, b := range os.BootDevices {
			if len(def.OS.BootDevices) == maxBootDevices {
				break
			}
			def.OS.BootDevices = append(def.OS.BootDevices, BootDevice(b.Dev))
		}
	}

	if f := dom.Features; f != nil {
		if f.ACPI != nil {
			def.Features = append(def.Features, FeatureACPI)
		}
		if f.APIC != nil {
			def.Features = append(def.Features, FeatureAPIC)
		}
		if f.PAE != nil {
			def.Features = append(def.Features, FeaturePAE)
		}
		if f.HAP != nil && f.HAP.State != "off" {
			def.Features = append(def.Features, FeatureHAP)
		}
		if f.Viridian != nil {
			def.Features = append(def.Features, FeatureViridian)
		}
	}

	if c := dom.Clock; c != nil {
		switch c.Offset {
		case "", "utc":
		case "localtime":
			def.Clock = ClockLocalTime
		default:
			return nil, fmt.Errorf("%w: unsupported clock offset '%s'", ErrInvalid, c.Offset)
		}
		for _, t := range c.Timer {
			if t.Present == "" {
				continue
			}
			def.Timers = append(def.Timers, Timer{Name: t.Name, Present: t.Present == "yes"})
		}
	}

	if dom.Devices != nil {
		if err := devicesFromXML(def, dom.Devices); err != nil {
			return nil, err
		}
	}
	return def, nil
}

func devicesFromXML(def *DomainDef, devs *libvirtxml.DomainDeviceList) error {
	def.Emulator = devs.Emulator

	for _, d := range devs.Disks {
		disk := Disk{Device: DiskDevice(d.Device), Type: DiskTypeFile}
		if disk.Device == "" {
			disk.Device = DiskDeviceDisk
		}
		if d.Driver != nil {
			disk.DriverName = d.Driver.Name
			disk.DriverType = d.Driver.Type
		}
		if d.Source != nil {
			switch {
			case d.Source.Block != nil:
				disk.Type = DiskTypeBlock
				disk.Source = d.Source.Block.Dev
			case d.Source.File != nil:
				disk.Source = d.Source.File.File
			default:
				return fmt.Errorf("%w: unsupported disk source for %s", ErrInvalid, targetDev(d.Target))
			}
		}
		if d.Target == nil || d.Target.Dev == "" {
			return incomplete("disk has no target")
		}
		disk.Target = d.Target.Dev
		disk.Bus = DiskBus(d.Target.Bus)
		if disk.Bus == "" {
			disk.Bus = busFromTarget(disk.Target)
		}
		disk.ReadOnly = d.ReadOnly != nil
		disk.Shared = d.Shareable != nil
		def.Disks = append(def.Disks, disk)
	}

	for _, i := range devs.Interfaces {
		n := Net{Type: NetTypeEthernet}
		if i.Source != nil && i.Source.Bridge != nil {
			n.Type = NetTypeBridge
			n.Bridge = i.Source.Bridge.Bridge
		} else if i.Source != nil && i.Source.Ethernet == nil {
			return fmt.Errorf("%w: only bridge and ethernet interfaces are supported", ErrInvalid)
		}
		if i.MAC != nil {
			mac, err := parseMAC(i.MAC.Address)
			if err != nil {
				return err
			}
			n.MAC = mac
		}
		if i.Script != nil {
			n.Script = i.Script.Path
		}
		if len(i.IP) > 0 {
			n.IP = i.IP[0].Address
		}
		if i.Target != nil {
			n.IfName = i.Target.Dev
		}
		if i.Model != nil {
			n.Model = i.Model.Type
		}
		def.Nets = append(def.Nets, n)
	}

	for _, h := range devs.Hostdevs {
		if h.SubsysPCI == nil || h.SubsysPCI.Source == nil || h.SubsysPCI.Source.Address == nil {
			return fmt.Errorf("%w: only PCI host devices are supported", ErrInvalid)
		}
		a := h.SubsysPCI.Source.Address
		def.Hostdevs = append(def.Hostdevs, HostdevPCI{
			Domain:   derefUint(a.Domain),
			Bus:      derefUint(a.Bus),
			Slot:     derefUint(a.Slot),
			Function: derefUint(a.Function),
			Managed:  h.Managed == "yes",
		})
	}

	for _, g := range devs.Graphics {
		switch {
		case g.VNC != nil:
			gr := Graphics{
				Type:     GraphicsVNC,
				Port:     g.VNC.Port,
				AutoPort: g.VNC.AutoPort == "yes" || g.VNC.Port == -1,
				Listen:   g.VNC.Listen,
				Passwd:   g.VNC.Passwd,
				Keymap:   g.VNC.Keymap,
			}
			def.Graphics = append(def.Graphics, normalizeGraphics(gr))
		case g.SDL != nil:
			def.Graphics = append(def.Graphics, Graphics{Type: GraphicsSDL, Display: g.SDL.Display, XAuthority: g.SDL.XAuth})
		default:
			return fmt.Errorf("%w: only vnc and sdl graphics are supported", ErrInvalid)
		}
	}

	for _, in := range devs.Inputs {
		def.Inputs = append(def.Inputs, Input{Type: InputType(in.Type), Bus: in.Bus})
	}
	for _, s := range devs.Sounds {
		def.Sounds = append(def.Sounds, s.Model)
	}

	for _, s := range devs.Serials {
		chr, err := chrFromXML(s.Source, s.Protocol)
		if err != nil {
			return err
		}
		if s.Target != nil && s.Target.Port != nil {
			chr.Port = int(*s.Target.Port)
		}
		def.Serials = append(def.Serials, *chr)
	}
	for _, p := range devs.Parallels {
		chr, err := chrFromXML(p.Source, p.Protocol)
		if err != nil {
			return err
		}
		if p.Target != nil && p.Target.Port != nil {
			chr.Port = int(*p.Target.Port)
		}
		def.Parallels = append(def.Parallels, *chr)
	}
	for _, c := range devs.Consoles {
		chr, err := chrFromXML(c.Source, c.Protocol)
		if err != nil {
			return err
		}
		def.Consoles = append(def.Consoles, *chr)
	}
	return nil
}

func chrFromXML(src *libvirtxml.DomainChardevSource, proto *libvirtxml.DomainChardevProtocol) (*Chr, error) {
	if src == nil {
		return &Chr{Type: ChrPTY}, nil
	}
	switch {
	case src.Null != nil:
		return &Chr{Type: ChrNull}, nil
	case src.VC != nil:
		return &Chr{Type: ChrVC}, nil
	case src.StdIO != nil:
		return &Chr{Type: ChrStdio}, nil
	case src.Pty != nil:
		return &Chr{Type: ChrPTY, Path: src.Pty.Path}, nil
	case src.Dev != nil:
		return &Chr{Type: ChrDev, Path: src.Dev.Path}, nil
	case src.File != nil:
		return &Chr{Type: ChrFile, Path: src.File.Path}, nil
	case src.Pipe != nil:
		return &Chr{Type: ChrPipe, Path: src.Pipe.Path}, nil
	case src.TCP != nil:
		return &Chr{
			Type:    ChrTCP,
			Host:    src.TCP.Host,
			Service: src.TCP.Service,
			Listen:  src.TCP.Mode == "bind",
			Telnet:  proto != nil && proto.Type == "telnet",
		}, nil
	case src.UDP != nil:
		return &Chr{
			Type:           ChrUDP,
			ConnectHost:    src.UDP.ConnectHost,
			ConnectService: src.UDP.ConnectService,
			BindHost:       src.UDP.BindHost,
			BindService:    src.UDP.BindService,
		}, nil
	case src.UNIX != nil:
		return &Chr{Type: ChrUnix, Path: src.UNIX.Path, Listen: src.UNIX.Mode == "bind"}, nil
	}
	return nil, fmt.Errorf("%w: unsupported character device source", ErrInvalid)
}

func targetDev(t *libvirtxml.DomainDiskTarget) string {
	if t == nil {
		return "disk"
	}
	return t.Dev
}

func busFromTarget(dev string) DiskBus {
	switch {
	case strings.HasPrefix(dev, "xvd"):
		return DiskBusXen
	case strings.HasPrefix(dev, "sd"):
		return DiskBusSCSI
	case strings.HasPrefix(dev, "fd"):
		return DiskBusFDC
	default:
		return DiskBusIDE
	}
}

func derefUint(p *uint) int {
	if p == nil {
		return 0
	}
	return int(*p)
}

// toKiB scales a libvirt memory value to KiB.
func toKiB(value uint, unit string) (uint64, error) {
	v := uint64(value)
	switch strings.ToLower(unit) {
	case "b", "bytes":
		return v / 1024, nil
	case "", "k", "kib":
		return v, nil
	case "kb":
		return v * 1000 / 1024, nil
	case "m", "mib":
		return v << 10, nil
	case "mb":
		return v * 1000 * 1000 / 1024, nil
	case "g", "gib":
		return v << 20, nil
	case "gb":
		return v * 1000 * 1000 * 1000 / 1024, nil
	case "t", "tib":
		return v << 30, nil
	}
	return 0, fmt.Errorf("%w: unknown memory unit '%s'", ErrInvalid, unit)
}
