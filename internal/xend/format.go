package xend

import (
	"fmt"
	"strings"

	"github.com/jbweber/virsh/internal/sexpr"
)

// Format renders def as a (vm ...) expression accepted by a daemon speaking
// the given configuration version.
func Format(def *DomainDef, version int) (string, error) {
	if version == 0 {
		version = DefaultConfigVersion
	}
	w := &writer{def: def, version: version, hvm: def.OS.IsHVM()}
	if err := w.domain(); err != nil {
		return "", err
	}
	return w.b.String(), nil
}

type writer struct {
	b       sexpr.Buffer
	def     *DomainDef
	version int
	hvm     bool
}

func divUp(n, d uint64) uint64 {
	return (n + d - 1) / d
}

func (w *writer) domain() error {
	def, b := w.def, &w.b

	b.Open("vm")
	b.Quoted("name", def.Name)
	b.Pair("memory", divUp(def.CurrentMemoryKiB, 1024))
	b.Pair("maxmem", divUp(def.MaxMemoryKiB, 1024))
	b.Pair("vcpus", def.MaxVCPUs)
	if def.VCPUs < def.MaxVCPUs {
		b.Pair("vcpu_avail", (uint64(1)<<uint(def.VCPUs))-1)
	}
	if def.CPUMask != "" {
		b.Quoted("cpus", def.CPUMask)
	}
	b.Quoted("uuid", def.UUID.String())
	if def.Description != "" {
		b.Quoted("description", def.Description)
	}

	if def.OS.HasBootloader {
		if def.OS.Bootloader != "" {
			b.Quoted("bootloader", def.OS.Bootloader)
		} else {
			b.Raw("(bootloader)")
		}
		if def.OS.BootloaderArgs != "" {
			b.Quoted("bootloader_args", def.OS.BootloaderArgs)
		}
	}

	for _, lc := range []struct {
		key   string
		value Lifecycle
		crash bool
	}{
		{"on_poweroff", def.OnPoweroff, false},
		{"on_reboot", def.OnReboot, false},
		{"on_crash", def.OnCrash, true},
	} {
		if _, err := parseLifecycle(string(lc.value), lc.crash); err != nil {
			return err
		}
		b.Quoted(lc.key, string(lc.value))
	}

	switch def.Clock {
	case ClockLocalTime:
		b.Raw("(localtime 1)")
	case ClockUTC, "":
	default:
		return fmt.Errorf("%w: unsupported clock offset '%s'", ErrInvalid, def.Clock)
	}

	if !def.OS.HasBootloader {
		if err := w.image(); err != nil {
			return err
		}
	} else if def.OS.Cmdline != "" {
		b.Raw("(image (linux ")
		b.Quoted("args", def.OS.Cmdline)
		b.Raw("))")
	}

	for _, d := range def.Disks {
		if err := w.disk(d); err != nil {
			return err
		}
	}
	for _, n := range def.Nets {
		if err := w.net(n); err != nil {
			return err
		}
	}
	if err := w.pci(); err != nil {
		return err
	}

	if (!w.hvm && w.version >= minPVFBNewConf) || (w.hvm && w.version >= ConfigVersion310) {
		if len(def.Graphics) == 1 {
			if err := w.graphicsNew(def.Graphics[0]); err != nil {
				return err
			}
		}
	}

	b.Close()
	return nil
}

func (w *writer) image() error {
	def, b := w.def, &w.b

	if w.hvm {
		b.Raw("(image (hvm ")
		if def.OS.Loader == "" {
			return fmt.Errorf("%w: no HVM domain loader", ErrIncomplete)
		}
	} else {
		b.Raw("(image (linux ")
	}

	if def.OS.Kernel != "" {
		b.Quoted("kernel", def.OS.Kernel)
		if def.OS.Initrd != "" {
			b.Quoted("ramdisk", def.OS.Initrd)
		}
		if def.OS.Root != "" {
			b.Quoted("root", def.OS.Root)
		}
		if def.OS.Cmdline != "" {
			b.Quoted("args", def.OS.Cmdline)
		}
		if def.OS.Loader != "" {
			b.Quoted("loader", def.OS.Loader)
		}
	} else {
		b.Quoted("kernel", def.OS.Loader)
	}

	if w.hvm {
		if err := w.hvmImage(); err != nil {
			return err
		}
	}

	if def.Emulator != "" && (w.hvm || w.version >= ConfigVersion304) {
		b.Quoted("device_model", def.Emulator)
	}

	for _, t := range def.Timers {
		if t.Name == "hpet" {
			present := 0
			if t.Present {
				present = 1
			}
			b.Pair("hpet", present)
			break
		}
	}

	if (!w.hvm && w.version < minPVFBNewConf) || (w.hvm && w.version < ConfigVersion310) {
		if len(def.Graphics) == 1 {
			if err := w.graphicsOld(def.Graphics[0]); err != nil {
				return err
			}
		}
	}

	b.Raw("))")
	return nil
}

func (w *writer) hvmImage() error {
	def, b := w.def, &w.b

	var order strings.Builder
	for _, dev := range def.OS.BootDevices {
		switch dev {
		case BootFloppy:
			order.WriteByte('a')
		case BootCDROM:
			order.WriteByte('d')
		case BootNetwork:
			order.WriteByte('n')
		default:
			order.WriteByte('c')
		}
	}
	if order.Len() == 0 {
		order.WriteByte('c')
	}
	b.Pair("boot", order.String())

	for _, d := range def.Disks {
		switch d.Device {
		case DiskDeviceCDROM:
			// Only 3.0.2 expects the CD-ROM here rather than as a device.
			if w.version == ConfigVersion302 && d.Target == "hdc" && d.Source != "" {
				b.Quoted("cdrom", d.Source)
			}
		case DiskDeviceFloppy:
			b.Quoted(d.Target, d.Source)
		}
	}

	for _, f := range hvmFeatures {
		if def.HasFeature(f) {
			b.Pair(string(f), 1)
		}
	}

	b.Raw("(usb 1)")
	for _, in := range def.Inputs {
		if in.Bus != "usb" {
			continue
		}
		switch in.Type {
		case InputMouse, InputTablet:
			b.Pair("usbdevice", in.Type)
		default:
			return fmt.Errorf("%w: unexpected input type '%s'", ErrInvalid, in.Type)
		}
	}

	if len(def.Parallels) > 0 {
		b.Raw("(parallel ")
		if err := formatChr(b, def.Parallels[0]); err != nil {
			return err
		}
		b.Raw(")")
	} else {
		b.Raw("(parallel none)")
	}

	if err := w.serials(); err != nil {
		return err
	}

	if len(def.Sounds) > 0 {
		for _, s := range def.Sounds {
			if !soundModels[s] {
				return fmt.Errorf("%w: unexpected sound model '%s'", ErrInvalid, s)
			}
		}
		b.Raw("(soundhw '")
		b.Raw(strings.Join(def.Sounds, ","))
		b.Raw("')")
	}
	return nil
}

func (w *writer) serials() error {
	def, b := w.def, &w.b

	switch {
	case len(def.Serials) == 0:
		b.Raw("(serial none)")
	case len(def.Serials) == 1 && def.Serials[0].Port == 0:
		b.Raw("(serial ")
		if err := formatChr(b, def.Serials[0]); err != nil {
			return err
		}
		b.Raw(")")
	default:
		maxPort := -1
		for _, s := range def.Serials {
			if s.Port > maxPort {
				maxPort = s.Port
			}
		}
		b.Raw("(serial (")
		for port := 0; port <= maxPort; port++ {
			if port > 0 {
				b.Raw(" ")
			}
			var chr *Chr
			for i := range def.Serials {
				if def.Serials[i].Port == port {
					chr = &def.Serials[i]
					break
				}
			}
			if chr == nil {
				b.Raw("none")
				continue
			}
			if err := formatChr(b, *chr); err != nil {
				return err
			}
		}
		b.Raw("))")
	}
	return nil
}

func (w *writer) disk(d Disk) error {
	b := &w.b

	// Floppies live in the image block for every version, and 3.0.2 keeps
	// HVM CD-ROMs there too.
	if w.hvm && d.Device == DiskDeviceFloppy {
		return nil
	}
	if w.hvm && d.Device == DiskDeviceCDROM && w.version == ConfigVersion302 {
		return nil
	}

	b.Raw("(device ")
	if strings.HasPrefix(d.DriverName, "tap") {
		b.Open(d.DriverName)
	} else {
		b.Open("vbd")
	}

	switch {
	case w.hvm && w.version == ConfigVersion302:
		b.Quoted("dev", "ioemu:"+d.Target)
	case w.hvm:
		suffix := "disk"
		if d.Device == DiskDeviceCDROM {
			suffix = "cdrom"
		}
		b.Quoted("dev", d.Target+":"+suffix)
	case d.Device == DiskDeviceCDROM:
		b.Quoted("dev", d.Target+":cdrom")
	default:
		b.Quoted("dev", d.Target)
	}

	if d.Source != "" {
		switch {
		case d.DriverName == "tap" || d.DriverName == "tap2":
			dtype := d.DriverType
			if dtype == "" {
				dtype = "aio"
			}
			b.Quoted("uname", d.DriverName+":"+dtype+":"+d.Source)
		case d.DriverName != "":
			b.Quoted("uname", d.DriverName+":"+d.Source)
		case d.Type == DiskTypeFile:
			b.Quoted("uname", "file:"+d.Source)
		case d.Type == DiskTypeBlock:
			src := d.Source
			if !strings.HasPrefix(src, "/") {
				src = "/dev/" + src
			}
			b.Quoted("uname", "phy:"+src)
		default:
			return fmt.Errorf("%w: unsupported disk type %s", ErrInvalid, d.Type)
		}
	}

	switch {
	case d.ReadOnly && d.Shared:
		b.Raw("(mode 'r!')")
	case d.ReadOnly:
		b.Raw("(mode 'r')")
	case d.Shared:
		b.Raw("(mode 'w!')")
	default:
		b.Raw("(mode 'w')")
	}

	b.Close()
	b.Raw(")")
	return nil
}

func (w *writer) net(n Net) error {
	b := &w.b

	if n.Type != NetTypeBridge && n.Type != NetTypeEthernet {
		return fmt.Errorf("%w: unsupported network type '%s'", ErrInvalid, n.Type)
	}

	b.Raw("(device ")
	b.Open("vif")
	if n.MAC != "" {
		b.Quoted("mac", n.MAC)
	}

	// A bridged vif without a script gets the daemon's default, vif-bridge.
	if n.Type == NetTypeBridge {
		b.Quoted("bridge", n.Bridge)
	}
	if n.Script != "" {
		b.Quoted("script", n.Script)
	}
	if n.IP != "" {
		b.Quoted("ip", n.IP)
	}

	// Generated vifN.M names are assigned by the daemon; only custom names
	// are passed on.
	if n.IfName != "" && !strings.HasPrefix(n.IfName, "vif") {
		b.Quoted("vifname", n.IfName)
	}

	switch {
	case !w.hvm:
		if n.Model != "" {
			b.Quoted("model", n.Model)
		}
	case n.Model == "netfront":
		b.Raw("(type netfront)")
	default:
		if n.Model != "" {
			b.Quoted("model", n.Model)
		}
		// (type ioemu) breaks paravirt drivers in HVM guests on later daemons.
		if w.version <= maxNetTypeIOEmu {
			b.Raw("(type ioemu)")
		}
	}

	b.Close()
	b.Raw(")")
	return nil
}

func (w *writer) pci() error {
	if len(w.def.Hostdevs) == 0 {
		return nil
	}
	b := &w.b
	b.Raw("(device (pci ")
	for _, h := range w.def.Hostdevs {
		if h.Managed {
			return fmt.Errorf("%w: managed PCI devices not supported with XenD", ErrInvalid)
		}
		b.Rawf("(dev (domain 0x%04x)(bus 0x%02x)(slot 0x%02x)(func 0x%x))", h.Domain, h.Bus, h.Slot, h.Function)
	}
	b.Raw("))")
	return nil
}

func (w *writer) graphicsNew(g Graphics) error {
	b := &w.b
	if g.Type != GraphicsSDL && g.Type != GraphicsVNC {
		return fmt.Errorf("%w: unexpected graphics type '%s'", ErrInvalid, g.Type)
	}

	b.Raw("(device (vkbd))")
	b.Raw("(device (vfb ")
	if g.Type == GraphicsSDL {
		b.Raw("(type sdl)")
		w.sdl(g)
	} else {
		b.Raw("(type vnc)")
		w.vnc(g)
	}
	b.Raw("))")
	return nil
}

func (w *writer) graphicsOld(g Graphics) error {
	b := &w.b
	switch g.Type {
	case GraphicsSDL:
		b.Raw("(sdl 1)")
		w.sdl(g)
	case GraphicsVNC:
		b.Raw("(vnc 1)")
		if w.version >= ConfigVersion303 {
			w.vnc(g)
		}
	default:
		return fmt.Errorf("%w: unexpected graphics type '%s'", ErrInvalid, g.Type)
	}
	return nil
}

func (w *writer) sdl(g Graphics) {
	if g.Display != "" {
		w.b.Quoted("display", g.Display)
	}
	if g.XAuthority != "" {
		w.b.Quoted("xauthority", g.XAuthority)
	}
}

func (w *writer) vnc(g Graphics) {
	b := &w.b
	if g.AutoPort || g.Port < 0 {
		b.Raw("(vncunused 1)")
	} else {
		b.Raw("(vncunused 0)")
		b.Pair("vncdisplay", g.Port-vncPortBase)
	}
	if g.Listen != "" {
		b.Quoted("vnclisten", g.Listen)
	}
	if g.Passwd != "" {
		b.Quoted("vncpasswd", g.Passwd)
	}
	if g.Keymap != "" {
		b.Quoted("keymap", g.Keymap)
	}
}
