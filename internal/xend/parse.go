package xend

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/jbweber/virsh/internal/sexpr"
)

var (
	// ErrIncomplete is returned when a mandatory field is missing.
	ErrIncomplete = errors.New("domain information incomplete")
	// ErrInvalid is returned when a field has a value that cannot be used.
	ErrInvalid = errors.New("invalid domain configuration")
)

// ParseOptions carries the context the daemon supplies alongside a domain
// expression.
type ParseOptions struct {
	// ConfigVersion is the xend configuration format version.
	ConfigVersion int
	// VNCPort is the VNC port recorded in xenstore. Zero or negative means
	// unknown.
	VNCPort int
	// TTY is the pty path of the guest console, if known.
	TTY string
}

func incomplete(what string) error {
	return fmt.Errorf("%w, %s", ErrIncomplete, what)
}

// ParseString parses s and converts it with Parse.
func ParseString(s string, opts ParseOptions) (*DomainDef, error) {
	root, err := sexpr.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse domain expression: %w", err)
	}
	return Parse(root, opts)
}

// Parse converts a (domain ...) or (vm ...) expression into a DomainDef.
func Parse(root *sexpr.Node, opts ParseOptions) (*DomainDef, error) {
	head := root.Head()
	if head != "domain" && head != "vm" {
		return nil, fmt.Errorf("%w: expected a domain expression, got %q", ErrInvalid, head)
	}
	r := &reader{root: root, base: sexpr.P(head), opts: opts}
	if opts.VNCPort <= 0 {
		r.opts.VNCPort = -1
	}
	if opts.ConfigVersion == 0 {
		r.opts.ConfigVersion = DefaultConfigVersion
	}
	return r.domain()
}

type reader struct {
	root *sexpr.Node
	base sexpr.Path
	opts ParseOptions
	def  *DomainDef
	hvm  bool
}

func (r *reader) path(segments ...string) sexpr.Path {
	return r.base.Child(segments...)
}

func (r *reader) value(segments ...string) (string, bool) {
	return sexpr.Value(r.root, r.path(segments...))
}

func (r *reader) str(segments ...string) string {
	v, _ := r.value(segments...)
	return v
}

func (r *reader) imageKind() string {
	if r.hvm {
		return "hvm"
	}
	return "linux"
}

func (r *reader) domain() (*DomainDef, error) {
	def := &DomainDef{ID: -1}
	r.def = def

	if _, ok := r.value("domid"); ok {
		def.ID = sexpr.Int(r.root, r.path("domid"))
	} else if r.opts.ConfigVersion < ConfigVersion304 {
		return nil, incomplete("missing id")
	}

	name, ok := r.value("name")
	if !ok {
		return nil, incomplete("missing name")
	}
	def.Name = name

	rawUUID, ok := r.value("uuid")
	if !ok {
		return nil, incomplete("missing uuid")
	}
	id, err := uuid.Parse(rawUUID)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot parse uuid %q: %v", ErrInvalid, rawUUID, err)
	}
	def.UUID = id
	def.Description = r.str("description")

	r.hvm = sexpr.Lookup(r.root, r.path("image", "hvm")) != nil
	if !r.hvm {
		if v, ok := r.value("bootloader"); ok {
			def.OS.HasBootloader = true
			def.OS.Bootloader = v
		} else if sexpr.Has(r.root, r.path("bootloader")) {
			def.OS.HasBootloader = true
		}
		if def.OS.HasBootloader {
			def.OS.BootloaderArgs = r.str("bootloader_args")
		}
	}
	def.OS.Type = r.imageKind()

	if def.ID != 0 && sexpr.Lookup(r.root, r.path("image")) != nil {
		if err := r.os(); err != nil {
			return nil, err
		}
	}

	def.MaxMemoryKiB = sexpr.U64(r.root, r.path("maxmem")) << 10
	def.CurrentMemoryKiB = sexpr.U64(r.root, r.path("memory")) << 10
	if def.CurrentMemoryKiB > def.MaxMemoryKiB {
		def.CurrentMemoryKiB = def.MaxMemoryKiB
	}
	def.CPUMask = r.str("cpus")

	def.MaxVCPUs = sexpr.Int(r.root, r.path("vcpus"))
	def.VCPUs = bits.OnesCount64(sexpr.U64(r.root, r.path("vcpu_avail")))
	if def.VCPUs == 0 || def.MaxVCPUs < def.VCPUs {
		def.VCPUs = def.MaxVCPUs
	}

	if def.OnPoweroff, err = r.lifecycle("on_poweroff", LifecycleDestroy, false); err != nil {
		return nil, err
	}
	if def.OnReboot, err = r.lifecycle("on_reboot", LifecycleRestart, false); err != nil {
		return nil, err
	}
	if def.OnCrash, err = r.lifecycle("on_crash", LifecycleDestroy, true); err != nil {
		return nil, err
	}

	if r.hvm {
		for _, f := range hvmFeatures {
			if sexpr.Int(r.root, r.path("image", "hvm", string(f))) != 0 {
				def.Features = append(def.Features, f)
			}
		}
	}

	def.Clock = ClockUTC
	if sexpr.Int(r.root, r.path("localtime")) != 0 ||
		sexpr.Int(r.root, r.path("image", "hvm", "localtime")) != 0 ||
		sexpr.Int(r.root, r.path("image", "linux", "localtime")) != 0 {
		def.Clock = ClockLocalTime
	}
	if r.hvm {
		if _, ok := r.value("image", "hvm", "hpet"); ok {
			def.Timers = append(def.Timers, Timer{
				Name:    "hpet",
				Present: sexpr.Int(r.root, r.path("image", "hvm", "hpet")) != 0,
			})
		}
	}

	def.Emulator = r.str("image", r.imageKind(), "device_model")

	if err := r.disks(); err != nil {
		return nil, err
	}
	if err := r.nets(); err != nil {
		return nil, err
	}
	if err := r.pci(); err != nil {
		return nil, err
	}
	if err := r.graphicsNew(); err != nil {
		return nil, err
	}
	if len(def.Graphics) == 0 {
		r.graphicsOld()
	}

	if r.hvm {
		r.legacyCDROM()
		r.floppies()
		r.usb()
		if err := r.chardevs(); err != nil {
			return nil, err
		}
		if hw := r.str("image", "hvm", "soundhw"); hw != "" {
			sounds, err := parseSound(hw)
			if err != nil {
				return nil, err
			}
			def.Sounds = sounds
		}
	} else if def.ID != 0 {
		// The expression has no console entry; a PV guest always has one.
		con, err := parseChr("pty", r.opts.TTY)
		if err != nil {
			return nil, err
		}
		def.Consoles = append(def.Consoles, *con)
	}

	return def, nil
}

func (r *reader) lifecycle(key string, dflt Lifecycle, crash bool) (Lifecycle, error) {
	v, ok := r.value(key)
	if !ok {
		return dflt, nil
	}
	return parseLifecycle(v, crash)
}

func (r *reader) os() error {
	o := &r.def.OS
	if r.hvm {
		if v, ok := r.value("image", "hvm", "loader"); ok {
			o.Loader = v
			o.Kernel = r.str("image", "hvm", "kernel")
			o.Initrd = r.str("image", "hvm", "ramdisk")
			o.Cmdline = r.str("image", "hvm", "args")
			o.Root = r.str("image", "hvm", "root")
		} else if v, ok := r.value("image", "hvm", "kernel"); ok {
			o.Loader = v
		} else {
			return incomplete("missing HVM loader")
		}
	} else {
		o.Kernel = r.str("image", "linux", "kernel")
		o.Initrd = r.str("image", "linux", "ramdisk")
		o.Cmdline = r.str("image", "linux", "args")
		o.Root = r.str("image", "linux", "root")
	}

	// Old daemons report the loader as the kernel too.
	if r.hvm && o.Kernel != "" && o.Kernel == o.Loader {
		o.Kernel = ""
	}

	if r.hvm && o.Kernel == "" {
		for _, c := range r.str("image", "hvm", "boot") {
			if len(o.BootDevices) >= maxBootDevices {
				break
			}
			switch c {
			case 'a':
				o.BootDevices = append(o.BootDevices, BootFloppy)
			case 'c':
				o.BootDevices = append(o.BootDevices, BootDisk)
			case 'd':
				o.BootDevices = append(o.BootDevices, BootCDROM)
			case 'n':
				o.BootDevices = append(o.BootDevices, BootNetwork)
			}
		}
		// The daemon boots an HVM guest from disk unless told otherwise.
		if len(o.BootDevices) == 0 {
			o.BootDevices = []BootDevice{BootDisk}
		}
	}

	if !r.hvm && o.Kernel == "" && !o.HasBootloader && r.def.ID != 0 {
		return incomplete("missing kernel & bootloader")
	}
	return nil
}

// devices returns the children of the root that are (device ...) lists.
func (r *reader) devices() []*sexpr.Node {
	var out []*sexpr.Node
	for _, n := range r.root.Items()[1:] {
		if n.Head() == "device" {
			out = append(out, n)
		}
	}
	return out
}

func (r *reader) disks() error {
	for _, node := range r.devices() {
		var kind string
		for _, k := range []string{"vbd", "tap2", "tap"} {
			if sexpr.Lookup(node, sexpr.P("device", k)) != nil {
				kind = k
				break
			}
		}
		if kind == "" {
			continue
		}
		src, hasSrc := sexpr.Value(node, sexpr.P("device", kind, "uname"))
		dst, hasDst := sexpr.Value(node, sexpr.P("device", kind, "dev"))
		mode, _ := sexpr.Value(node, sexpr.P("device", kind, "mode"))

		disk, err := parseDisk(src, hasSrc, dst, hasDst, mode, r.hvm, r.opts.ConfigVersion)
		if err != nil {
			return err
		}
		r.def.Disks = append(r.def.Disks, *disk)
	}
	return nil
}

func parseDisk(src string, hasSrc bool, dst string, hasDst bool, mode string, hvm bool, version int) (*Disk, error) {
	if !hasDst {
		return nil, incomplete("vbd has no dev")
	}
	if !hasSrc {
		// An empty HVM CD-ROM drive has no uname.
		i := strings.IndexByte(dst, ':')
		if i < 0 || !hvm || dst[i:] != ":cdrom" {
			return nil, incomplete("vbd has no src")
		}
	}

	disk := &Disk{Type: DiskTypeFile}
	if hasSrc {
		driver, rest, ok := strings.Cut(src, ":")
		if !ok {
			return nil, fmt.Errorf("%w: cannot parse vbd filename, missing driver name", ErrInvalid)
		}
		disk.DriverName = driver
		switch driver {
		case "tap", "tap2":
			dtype, path, ok := strings.Cut(rest, ":")
			if !ok {
				return nil, fmt.Errorf("%w: cannot parse vbd filename, missing driver type", ErrInvalid)
			}
			disk.DriverType = dtype
			rest = path
			disk.Type = DiskTypeFile
		case "phy":
			disk.Type = DiskTypeBlock
		case "file":
			disk.Type = DiskTypeFile
		default:
			disk.Type = DiskTypeBlock
		}
		disk.Source = rest
	}

	dst = strings.TrimPrefix(dst, "ioemu:")
	disk.Device = DiskDeviceDisk
	if version > ConfigVersion302 {
		if i := strings.LastIndexByte(dst, ':'); i >= 0 {
			if dst[i:] == ":cdrom" {
				disk.Device = DiskDeviceCDROM
			}
			dst = dst[:i]
		}
	}
	disk.Target = dst

	switch {
	case strings.HasPrefix(dst, "xvd"):
		disk.Bus = DiskBusXen
	case strings.HasPrefix(dst, "hd"):
		disk.Bus = DiskBusIDE
	case strings.HasPrefix(dst, "sd"):
		disk.Bus = DiskBusSCSI
	default:
		disk.Bus = DiskBusIDE
	}

	disk.ReadOnly = strings.ContainsRune(mode, 'r')
	disk.Shared = strings.ContainsRune(mode, '!')
	return disk, nil
}

func (r *reader) nets() error {
	index := 0
	for _, node := range r.devices() {
		if sexpr.Lookup(node, sexpr.P("device", "vif")) == nil {
			continue
		}
		get := func(key string) (string, bool) {
			return sexpr.Value(node, sexpr.P("device", "vif", key))
		}
		script, hasScript := get("script")
		bridge, hasBridge := get("bridge")
		model, hasModel := get("model")
		typ, _ := get("type")
		ip, _ := get("ip")

		n := Net{Script: script, IP: ip}
		if hasBridge || (hasScript && script == defaultVifScript) {
			n.Type = NetTypeBridge
			n.Bridge = bridge
		} else {
			n.Type = NetTypeEthernet
		}

		if name, ok := get("vifname"); ok {
			n.IfName = name
		} else if r.def.ID != -1 {
			n.IfName = fmt.Sprintf("vif%d.%d", r.def.ID, index)
		}

		if mac, ok := get("mac"); ok {
			hw, err := parseMAC(mac)
			if err != nil {
				return err
			}
			n.MAC = hw
		}

		if hasModel {
			n.Model = model
		} else if typ == "netfront" {
			n.Model = "netfront"
		}

		r.def.Nets = append(r.def.Nets, n)
		index++
	}
	return nil
}

func (r *reader) pci() error {
	var list *sexpr.Node
	for _, node := range r.devices() {
		if list = sexpr.Lookup(node, sexpr.P("device", "pci")); list != nil {
			break
		}
	}
	if list == nil {
		return nil
	}

	for _, node := range list.Items() {
		if sexpr.Lookup(node, sexpr.P("dev")) == nil {
			continue
		}
		var addr [4]int
		for i, key := range []string{"domain", "bus", "slot", "func"} {
			v, ok := sexpr.Value(node, sexpr.P("dev", key))
			if !ok {
				return incomplete("missing PCI " + key)
			}
			n, err := parseAutoBase(v)
			if err != nil {
				return fmt.Errorf("%w: cannot parse PCI %s '%s'", ErrInvalid, key, v)
			}
			addr[i] = n
		}
		r.def.Hostdevs = append(r.def.Hostdevs, HostdevPCI{
			Domain:   addr[0],
			Bus:      addr[1],
			Slot:     addr[2],
			Function: addr[3],
		})
	}
	return nil
}

func (r *reader) graphicsNew() error {
	for _, node := range r.devices() {
		if sexpr.Lookup(node, sexpr.P("device", "vfb")) == nil {
			continue
		}
		get := func(key string) (string, bool) {
			return sexpr.Value(node, sexpr.P("device", "vfb", key))
		}

		kind := "unknown"
		if v, ok := get("type"); ok {
			kind = v
		} else if _, ok := get("vnc"); ok {
			kind = "vnc"
		} else if _, ok := get("sdl"); ok {
			kind = "sdl"
		}

		g := Graphics{Type: GraphicsType(kind)}
		switch g.Type {
		case GraphicsSDL:
			g.Display, _ = get("display")
			g.XAuthority, _ = get("xauthority")
		case GraphicsVNC:
			port := r.opts.VNCPort
			if port == -1 {
				if v, ok := get("vncdisplay"); ok {
					if n, err := parseAutoBase(v); err == nil {
						port = n
					}
				}
			}
			unused, _ := get("vncunused")
			if port >= 0 && port < vncPortBase {
				port += vncPortBase
			}
			g.Port = port
			g.AutoPort = unused == "1" || port == -1
			g.Listen, _ = get("vnclisten")
			g.Passwd, _ = get("vncpasswd")
			g.Keymap, _ = get("keymap")
		default:
			return fmt.Errorf("%w: unknown graphics type '%s'", ErrInvalid, kind)
		}
		r.def.Graphics = append(r.def.Graphics, normalizeGraphics(g))
		break
	}
	return nil
}

func (r *reader) graphicsOld() {
	img := r.imageKind()
	get := func(key string) (string, bool) {
		return r.value("image", img, key)
	}

	if v, _ := get("vnc"); strings.HasPrefix(v, "1") {
		port := r.opts.VNCPort
		if port == -1 && r.opts.ConfigVersion < ConfigVersion303 {
			port = vncPortBase + r.def.ID
		}
		if port == -1 {
			if v, ok := get("vncdisplay"); ok {
				if n, err := parseAutoBase(v); err == nil && n >= 0 {
					port = vncPortBase + n
				}
			}
		}
		unused, _ := get("vncunused")
		g := Graphics{
			Type:     GraphicsVNC,
			Port:     port,
			AutoPort: unused == "1" || port == -1,
		}
		g.Listen, _ = get("vnclisten")
		g.Passwd, _ = get("vncpasswd")
		g.Keymap, _ = get("keymap")
		r.def.Graphics = append(r.def.Graphics, normalizeGraphics(g))
		return
	}

	if v, _ := get("sdl"); strings.HasPrefix(v, "1") {
		g := Graphics{Type: GraphicsSDL}
		g.Display, _ = get("display")
		g.XAuthority, _ = get("xauthority")
		r.def.Graphics = append(r.def.Graphics, g)
	}
}

// normalizeGraphics drops the port of auto-allocated VNC displays so a
// definition compares equal however the daemon reported it.
func normalizeGraphics(g Graphics) Graphics {
	if g.Type == GraphicsVNC && g.AutoPort {
		g.Port = -1
	}
	return g
}

func (r *reader) legacyCDROM() {
	if r.opts.ConfigVersion != ConfigVersion302 {
		return
	}
	src := r.str("image", "hvm", "cdrom")
	if src == "" {
		return
	}
	r.def.Disks = append(r.def.Disks, Disk{
		Type:       DiskTypeFile,
		Device:     DiskDeviceCDROM,
		Bus:        DiskBusIDE,
		DriverName: "file",
		Source:     src,
		Target:     "hdc",
		ReadOnly:   true,
	})
}

func (r *reader) floppies() {
	for _, fd := range []string{"fda", "fdb"} {
		src := r.str("image", "hvm", fd)
		if src == "" {
			continue
		}
		r.def.Disks = append(r.def.Disks, Disk{
			Type:       DiskTypeFile,
			Device:     DiskDeviceFloppy,
			Bus:        DiskBusFDC,
			DriverName: "file",
			Source:     src,
			Target:     fd,
		})
	}
}

func (r *reader) usb() {
	hvm := sexpr.Lookup(r.root, r.path("image", "hvm"))
	for _, node := range hvm.Items() {
		v, ok := sexpr.Value(node, sexpr.P("usbdevice"))
		if !ok {
			continue
		}
		switch InputType(v) {
		case InputTablet, InputMouse:
			r.def.Inputs = append(r.def.Inputs, Input{Type: InputType(v), Bus: "usb"})
		default:
			log.WithField("device", v).Debug("ignoring non-input USB device")
		}
	}
}

func (r *reader) chardevs() error {
	multiple := false
	if list := sexpr.Lookup(r.root, r.path("image", "hvm", "serial")); list != nil {
		skipped := 0
		for _, node := range list.Items() {
			for _, item := range node.Items() {
				multiple = true
				if !item.IsAtom() || item.Value == "none" {
					skipped++
					continue
				}
				chr, err := parseChr(item.Value, r.opts.TTY)
				if err != nil {
					return err
				}
				chr.Port = len(r.def.Serials) + skipped
				r.def.Serials = append(r.def.Serials, *chr)
			}
		}
	}
	if !multiple {
		if v := r.str("image", "hvm", "serial"); v != "" && v != "none" {
			chr, err := parseChr(v, r.opts.TTY)
			if err != nil {
				return err
			}
			r.def.Serials = append(r.def.Serials, *chr)
		}
	}

	if v := r.str("image", "hvm", "parallel"); v != "" && v != "none" {
		chr, err := parseChr(v, "")
		if err != nil {
			return err
		}
		r.def.Parallels = append(r.def.Parallels, *chr)
	}
	return nil
}

func parseSound(hw string) ([]string, error) {
	// Xen rejects "all"; it only ever meant these two.
	if hw == "all" {
		return []string{"sb16", "es1370"}, nil
	}
	var out []string
	for _, model := range strings.Split(hw, ",") {
		if !soundModels[model] {
			return nil, fmt.Errorf("%w: unknown sound model '%s'", ErrInvalid, model)
		}
		out = append(out, model)
	}
	return out, nil
}
