package xend

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"libvirt.org/go/libvirtxml"
)

const (
	testUUID = "4dea22b3-1d52-d8f3-2516-782e98ab3fa0"

	minimalHVM = `(domain (name hvm1) (uuid ` + testUUID + `)
		(memory 512) (maxmem 512) (vcpus 2)
		(image (hvm (loader /usr/lib/xen/boot/hvmloader) (boot c) (vnc 1) (vncunused 1)))
		(device (vbd (uname file:/var/img.qcow) (dev xvda) (mode w)))
		(device (vif (bridge br0) (mac 52:54:00:AA:BB:CC))))`

	paravirt = `(domain (name pv) (uuid ` + testUUID + `)
		(memory 256) (maxmem 512) (vcpus 4) (vcpu_avail 3) (on_crash restart)
		(image (linux (kernel /boot/vmlinuz) (ramdisk /boot/initrd) (args 'root=/dev/xvda1 ro')))
		(device (vbd (uname phy:/dev/vg/pv) (dev xvda) (mode w!)))
		(device (vif (mac 00:16:3e:00:00:01) (script vif-route) (ip 10.0.0.2)))
		(device (vfb (type vnc) (vncunused 0) (vncdisplay 3) (vnclisten 0.0.0.0) (keymap en-us))))`
)

func mustParse(t *testing.T, s string, opts ParseOptions) *DomainDef {
	t.Helper()
	def, err := ParseString(s, opts)
	if err != nil {
		t.Fatalf("ParseString() failed: %v", err)
	}
	return def
}

func TestParse_MinimalHVM(t *testing.T) {
	def := mustParse(t, minimalHVM, ParseOptions{})

	if def.ID != -1 {
		t.Errorf("ID = %d, want -1", def.ID)
	}
	if def.OS.Type != "hvm" {
		t.Errorf("OS.Type = %q, want hvm", def.OS.Type)
	}
	if def.OS.Loader != "/usr/lib/xen/boot/hvmloader" {
		t.Errorf("OS.Loader = %q", def.OS.Loader)
	}
	if diff := cmp.Diff([]BootDevice{BootDisk}, def.OS.BootDevices); diff != "" {
		t.Errorf("boot devices mismatch (-want +got):\n%s", diff)
	}
	if def.MaxMemoryKiB != 524288 || def.CurrentMemoryKiB != 524288 {
		t.Errorf("memory = %d/%d, want 524288/524288", def.CurrentMemoryKiB, def.MaxMemoryKiB)
	}
	if def.MaxVCPUs != 2 || def.VCPUs != 2 {
		t.Errorf("vcpus = %d/%d, want 2/2", def.VCPUs, def.MaxVCPUs)
	}

	wantDisks := []Disk{{
		Type:       DiskTypeFile,
		Device:     DiskDeviceDisk,
		Bus:        DiskBusXen,
		DriverName: "file",
		Source:     "/var/img.qcow",
		Target:     "xvda",
	}}
	if diff := cmp.Diff(wantDisks, def.Disks); diff != "" {
		t.Errorf("disks mismatch (-want +got):\n%s", diff)
	}

	wantNets := []Net{{Type: NetTypeBridge, Bridge: "br0", MAC: "52:54:00:aa:bb:cc"}}
	if diff := cmp.Diff(wantNets, def.Nets); diff != "" {
		t.Errorf("nets mismatch (-want +got):\n%s", diff)
	}

	wantGraphics := []Graphics{{Type: GraphicsVNC, Port: -1, AutoPort: true}}
	if diff := cmp.Diff(wantGraphics, def.Graphics); diff != "" {
		t.Errorf("graphics mismatch (-want +got):\n%s", diff)
	}
	if len(def.Consoles) != 0 {
		t.Errorf("HVM guest got %d consoles, want 0", len(def.Consoles))
	}
}

func TestParse_DomainZero(t *testing.T) {
	def := mustParse(t, `(domain (name dom0) (uuid 00000000-0000-0000-0000-000000000000)
		(image (linux (kernel /boot/vmlinuz))))`, ParseOptions{ConfigVersion: ConfigVersion304})

	if def.OS.Type != "linux" {
		t.Errorf("OS.Type = %q, want linux", def.OS.Type)
	}
	if def.OS.Kernel != "/boot/vmlinuz" {
		t.Errorf("OS.Kernel = %q, want /boot/vmlinuz", def.OS.Kernel)
	}
	if def.OnPoweroff != LifecycleDestroy {
		t.Errorf("OnPoweroff = %q, want destroy", def.OnPoweroff)
	}
	if def.OnReboot != LifecycleRestart || def.OnCrash != LifecycleDestroy {
		t.Errorf("lifecycle = %q/%q, want restart/destroy", def.OnReboot, def.OnCrash)
	}
}

func TestParse_Paravirt(t *testing.T) {
	def := mustParse(t, paravirt, ParseOptions{TTY: "/dev/pts/3"})

	if def.VCPUs != 2 || def.MaxVCPUs != 4 {
		t.Errorf("vcpus = %d/%d, want 2/4", def.VCPUs, def.MaxVCPUs)
	}
	if def.CurrentMemoryKiB != 262144 || def.MaxMemoryKiB != 524288 {
		t.Errorf("memory = %d/%d", def.CurrentMemoryKiB, def.MaxMemoryKiB)
	}
	if def.OnCrash != LifecycleRestart {
		t.Errorf("OnCrash = %q, want restart", def.OnCrash)
	}
	if def.OS.Cmdline != "root=/dev/xvda1 ro" {
		t.Errorf("OS.Cmdline = %q", def.OS.Cmdline)
	}

	wantDisk := Disk{
		Type:       DiskTypeBlock,
		Device:     DiskDeviceDisk,
		Bus:        DiskBusXen,
		DriverName: "phy",
		Source:     "/dev/vg/pv",
		Target:     "xvda",
		Shared:     true,
	}
	if diff := cmp.Diff([]Disk{wantDisk}, def.Disks); diff != "" {
		t.Errorf("disks mismatch (-want +got):\n%s", diff)
	}

	wantNet := Net{Type: NetTypeEthernet, MAC: "00:16:3e:00:00:01", Script: "vif-route", IP: "10.0.0.2"}
	if diff := cmp.Diff([]Net{wantNet}, def.Nets); diff != "" {
		t.Errorf("nets mismatch (-want +got):\n%s", diff)
	}

	wantGraphics := Graphics{Type: GraphicsVNC, Port: 5903, Listen: "0.0.0.0", Keymap: "en-us"}
	if diff := cmp.Diff([]Graphics{wantGraphics}, def.Graphics); diff != "" {
		t.Errorf("graphics mismatch (-want +got):\n%s", diff)
	}

	wantConsole := Chr{Type: ChrPTY, Path: "/dev/pts/3"}
	if diff := cmp.Diff([]Chr{wantConsole}, def.Consoles); diff != "" {
		t.Errorf("consoles mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		opts    ParseOptions
		wantErr error
	}{
		{
			name:    "missing name",
			input:   `(domain (uuid ` + testUUID + `))`,
			wantErr: ErrIncomplete,
		},
		{
			name:    "missing uuid",
			input:   `(domain (name x))`,
			wantErr: ErrIncomplete,
		},
		{
			name:    "bad uuid",
			input:   `(domain (name x) (uuid nope))`,
			wantErr: ErrInvalid,
		},
		{
			name:    "missing domid on old daemon",
			input:   `(domain (name x) (uuid ` + testUUID + `))`,
			opts:    ParseOptions{ConfigVersion: ConfigVersion303},
			wantErr: ErrIncomplete,
		},
		{
			name:    "paravirt without kernel or bootloader",
			input:   `(domain (domid 3) (name x) (uuid ` + testUUID + `) (image (linux (args quiet))))`,
			wantErr: ErrIncomplete,
		},
		{
			name:    "hvm without loader",
			input:   `(domain (domid 3) (name x) (uuid ` + testUUID + `) (image (hvm (boot c))))`,
			wantErr: ErrIncomplete,
		},
		{
			name:    "coredump on poweroff",
			input:   `(domain (name x) (uuid ` + testUUID + `) (on_poweroff coredump-destroy))`,
			wantErr: ErrInvalid,
		},
		{
			name:    "vbd without dev",
			input:   `(domain (name x) (uuid ` + testUUID + `) (device (vbd (uname phy:/dev/sda))))`,
			wantErr: ErrIncomplete,
		},
		{
			name:    "bad mac",
			input:   `(domain (name x) (uuid ` + testUUID + `) (device (vif (mac 52:54:00))))`,
			wantErr: ErrInvalid,
		},
		{
			name:    "unknown graphics",
			input:   `(domain (name x) (uuid ` + testUUID + `) (device (vfb (type spice))))`,
			wantErr: ErrInvalid,
		},
		{
			name:    "not a domain",
			input:   `(node (name x))`,
			wantErr: ErrInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.input, tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseString() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParse_BootOrder(t *testing.T) {
	tests := []struct {
		boot string
		want []BootDevice
	}{
		{boot: "acn", want: []BootDevice{BootFloppy, BootDisk, BootNetwork}},
		{boot: "d", want: []BootDevice{BootCDROM}},
		{boot: "cdnac", want: []BootDevice{BootDisk, BootCDROM, BootNetwork, BootFloppy}},
		{boot: "xc", want: []BootDevice{BootDisk}},
		{boot: "x", want: []BootDevice{BootDisk}},
	}

	for _, tt := range tests {
		t.Run(tt.boot, func(t *testing.T) {
			def := mustParse(t, `(domain (name x) (uuid `+testUUID+`)
				(image (hvm (loader /hvmloader) (boot `+tt.boot+`))))`, ParseOptions{})
			if diff := cmp.Diff(tt.want, def.OS.BootDevices); diff != "" {
				t.Errorf("boot devices mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_KernelEqualsLoader(t *testing.T) {
	def := mustParse(t, `(domain (name x) (uuid `+testUUID+`)
		(image (hvm (loader /hvmloader) (kernel /hvmloader) (boot d))))`, ParseOptions{})
	if def.OS.Kernel != "" {
		t.Errorf("OS.Kernel = %q, want empty", def.OS.Kernel)
	}
	if diff := cmp.Diff([]BootDevice{BootCDROM}, def.OS.BootDevices); diff != "" {
		t.Errorf("boot devices mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDisk(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		dst     string
		mode    string
		hvm     bool
		version int
		want    Disk
	}{
		{
			name:    "tap aio",
			src:     "tap:aio:/img",
			dst:     "xvdb",
			mode:    "w",
			version: ConfigVersion310,
			want:    Disk{Type: DiskTypeFile, Device: DiskDeviceDisk, Bus: DiskBusXen, DriverName: "tap", DriverType: "aio", Source: "/img", Target: "xvdb"},
		},
		{
			name:    "phy block",
			src:     "phy:/dev/sda",
			dst:     "sda",
			mode:    "w",
			version: ConfigVersion310,
			want:    Disk{Type: DiskTypeBlock, Device: DiskDeviceDisk, Bus: DiskBusSCSI, DriverName: "phy", Source: "/dev/sda", Target: "sda"},
		},
		{
			name:    "read only shared",
			src:     "file:/iso",
			dst:     "hdc:cdrom",
			mode:    "r!",
			hvm:     true,
			version: ConfigVersion310,
			want:    Disk{Type: DiskTypeFile, Device: DiskDeviceCDROM, Bus: DiskBusIDE, DriverName: "file", Source: "/iso", Target: "hdc", ReadOnly: true, Shared: true},
		},
		{
			name:    "ioemu prefix on 3.0.2",
			src:     "file:/img",
			dst:     "ioemu:hda",
			mode:    "w",
			hvm:     true,
			version: ConfigVersion302,
			want:    Disk{Type: DiskTypeFile, Device: DiskDeviceDisk, Bus: DiskBusIDE, DriverName: "file", Source: "/img", Target: "hda"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDisk(tt.src, true, tt.dst, true, tt.mode, tt.hvm, tt.version)
			if err != nil {
				t.Fatalf("parseDisk() failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, *got); diff != "" {
				t.Errorf("parseDisk() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseDisk_EmptyCDROM(t *testing.T) {
	got, err := parseDisk("", false, "hdc:cdrom", true, "r", true, ConfigVersion310)
	if err != nil {
		t.Fatalf("parseDisk() failed: %v", err)
	}
	if got.Device != DiskDeviceCDROM || got.Source != "" {
		t.Errorf("got %+v, want an empty cdrom", got)
	}

	if _, err := parseDisk("", false, "hdc:cdrom", true, "r", false, ConfigVersion310); !errors.Is(err, ErrIncomplete) {
		t.Errorf("paravirt empty cdrom error = %v, want ErrIncomplete", err)
	}
}

func TestParse_Graphics(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  ParseOptions
		want  []Graphics
	}{
		{
			name:  "old vnc unused",
			input: `(image (hvm (loader /l) (vnc 1) (vncunused 1)))`,
			want:  []Graphics{{Type: GraphicsVNC, Port: -1, AutoPort: true}},
		},
		{
			name:  "new vnc display zero",
			input: `(device (vfb (type vnc) (vncdisplay 0)))`,
			want:  []Graphics{{Type: GraphicsVNC, Port: 5900}},
		},
		{
			name:  "old vnc display zero",
			input: `(image (hvm (loader /l) (vnc 1) (vncdisplay 0)))`,
			want:  []Graphics{{Type: GraphicsVNC, Port: 5900}},
		},
		{
			name:  "xenstore port wins",
			input: `(device (vfb (type vnc) (vncdisplay 2)))`,
			opts:  ParseOptions{VNCPort: 5905},
			want:  []Graphics{{Type: GraphicsVNC, Port: 5905}},
		},
		{
			name:  "legacy daemon derives port from id",
			input: `(domid 7) (image (hvm (loader /l) (vnc 1)))`,
			opts:  ParseOptions{ConfigVersion: ConfigVersion302},
			want:  []Graphics{{Type: GraphicsVNC, Port: 5907}},
		},
		{
			name:  "sdl",
			input: `(device (vfb (type sdl) (display :0.0) (xauthority /root/.Xauthority)))`,
			want:  []Graphics{{Type: GraphicsSDL, Display: ":0.0", XAuthority: "/root/.Xauthority"}},
		},
		{
			name:  "new vnc passes listen and password",
			input: `(device (vfb (vnc 1) (vncunused 1) (vnclisten 127.0.0.1) (vncpasswd secret)))`,
			want:  []Graphics{{Type: GraphicsVNC, Port: -1, AutoPort: true, Listen: "127.0.0.1", Passwd: "secret"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := mustParse(t, `(domain (name x) (uuid `+testUUID+`) `+tt.input+`)`, tt.opts)
			if diff := cmp.Diff(tt.want, def.Graphics); diff != "" {
				t.Errorf("graphics mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_HVMDevices(t *testing.T) {
	def := mustParse(t, `(domain (name x) (uuid `+testUUID+`) (localtime 0)
		(image (hvm (loader /l) (acpi 1) (apic 1) (pae 0) (hap 1) (localtime 1) (hpet 0)
			(fda /floppy.img) (usb 1) (usbdevice tablet) (usbdevice disk:/x)
			(serial (pty none 'tcp:0.0.0.0:4555,server,nowait'))
			(parallel /dev/parport0) (soundhw 'sb16,ac97')
			(device_model /usr/lib/xen/bin/qemu-dm))))`, ParseOptions{TTY: "/dev/pts/1"})

	if diff := cmp.Diff([]Feature{FeatureACPI, FeatureAPIC, FeatureHAP}, def.Features); diff != "" {
		t.Errorf("features mismatch (-want +got):\n%s", diff)
	}
	if def.Clock != ClockLocalTime {
		t.Errorf("Clock = %q, want localtime", def.Clock)
	}
	if diff := cmp.Diff([]Timer{{Name: "hpet", Present: false}}, def.Timers); diff != "" {
		t.Errorf("timers mismatch (-want +got):\n%s", diff)
	}
	if def.Emulator != "/usr/lib/xen/bin/qemu-dm" {
		t.Errorf("Emulator = %q", def.Emulator)
	}
	if diff := cmp.Diff([]Input{{Type: InputTablet, Bus: "usb"}}, def.Inputs); diff != "" {
		t.Errorf("inputs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"sb16", "ac97"}, def.Sounds); diff != "" {
		t.Errorf("sounds mismatch (-want +got):\n%s", diff)
	}

	wantSerials := []Chr{
		{Type: ChrPTY, Path: "/dev/pts/1", Port: 0},
		{Type: ChrTCP, Host: "0.0.0.0", Service: "4555", Listen: true, Port: 2},
	}
	if diff := cmp.Diff(wantSerials, def.Serials); diff != "" {
		t.Errorf("serials mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Chr{{Type: ChrDev, Path: "/dev/parport0"}}, def.Parallels); diff != "" {
		t.Errorf("parallels mismatch (-want +got):\n%s", diff)
	}

	wantFloppy := Disk{Type: DiskTypeFile, Device: DiskDeviceFloppy, Bus: DiskBusFDC, DriverName: "file", Source: "/floppy.img", Target: "fda"}
	if diff := cmp.Diff([]Disk{wantFloppy}, def.Disks); diff != "" {
		t.Errorf("disks mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_PCI(t *testing.T) {
	def := mustParse(t, `(domain (name x) (uuid `+testUUID+`)
		(device (pci (dev (domain 0x0000) (bus 0x01) (slot 0x1f) (func 0x2))
			(dev (domain 0) (bus 2) (slot 010) (func 0)))))`, ParseOptions{})

	want := []HostdevPCI{
		{Domain: 0, Bus: 1, Slot: 31, Function: 2},
		{Domain: 0, Bus: 2, Slot: 8, Function: 0},
	}
	if diff := cmp.Diff(want, def.Hostdevs); diff != "" {
		t.Errorf("hostdevs mismatch (-want +got):\n%s", diff)
	}

	_, err := ParseString(`(domain (name x) (uuid `+testUUID+`) (device (pci (dev (domain 0) (bus 1)))))`, ParseOptions{})
	if !errors.Is(err, ErrIncomplete) {
		t.Errorf("missing slot error = %v, want ErrIncomplete", err)
	}
}

func TestParse_NetNames(t *testing.T) {
	def := mustParse(t, `(domain (domid 5) (name x) (uuid `+testUUID+`)
		(image (linux (kernel /k)))
		(device (vif (script vif-bridge)))
		(device (vif (vifname custom0) (type netfront))))`, ParseOptions{})

	want := []Net{
		{Type: NetTypeBridge, Script: "vif-bridge", IfName: "vif5.0"},
		{Type: NetTypeEthernet, IfName: "custom0", Model: "netfront"},
	}
	if diff := cmp.Diff(want, def.Nets); diff != "" {
		t.Errorf("nets mismatch (-want +got):\n%s", diff)
	}
}

func TestParseChr(t *testing.T) {
	tests := []struct {
		input   string
		want    Chr
		wantErr bool
	}{
		{input: "pty", want: Chr{Type: ChrPTY, Path: "/dev/pts/9"}},
		{input: "null", want: Chr{Type: ChrNull}},
		{input: "/dev/ttyS0", want: Chr{Type: ChrDev, Path: "/dev/ttyS0"}},
		{input: "file:/var/log/console", want: Chr{Type: ChrFile, Path: "/var/log/console"}},
		{input: "tcp:example.com:4555", want: Chr{Type: ChrTCP, Host: "example.com", Service: "4555"}},
		{input: "telnet:0.0.0.0:23,server", want: Chr{Type: ChrTCP, Host: "0.0.0.0", Service: "23", Listen: true, Telnet: true}},
		{input: "udp:10.0.0.1:9@0.0.0.0:99", want: Chr{Type: ChrUDP, ConnectHost: "10.0.0.1", ConnectService: "9", BindHost: "0.0.0.0", BindService: "99"}},
		{input: "udp:10.0.0.1:9", want: Chr{Type: ChrUDP, ConnectHost: "10.0.0.1", ConnectService: "9"}},
		{input: "unix:/tmp/sock,server,nowait", want: Chr{Type: ChrUnix, Path: "/tmp/sock", Listen: true}},
		{input: "bogus:x", wantErr: true},
		{input: "tcp:nohostport", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseChr(tt.input, "/dev/pts/9")
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseChr() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, *got); diff != "" {
				t.Errorf("parseChr() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseSound(t *testing.T) {
	got, err := parseSound("all")
	if err != nil {
		t.Fatalf("parseSound(all) failed: %v", err)
	}
	if diff := cmp.Diff([]string{"sb16", "es1370"}, got); diff != "" {
		t.Errorf("parseSound(all) mismatch (-want +got):\n%s", diff)
	}
	if _, err := parseSound("sb16,gus"); !errors.Is(err, ErrInvalid) {
		t.Errorf("parseSound(gus) error = %v, want ErrInvalid", err)
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		version int
	}{
		{name: "minimal hvm", input: minimalHVM, version: ConfigVersion310},
		{
			name: "hvm without boot order",
			input: `(domain (name hvm1) (uuid ` + testUUID + `)
				(memory 524288) (maxmem 524288) (vcpus 2)
				(image (hvm (loader /usr/lib/xen/boot/hvmloader) (vnc 1) (vncunused 1)))
				(device (vbd (uname file:/var/img.qcow) (dev xvda) (mode w)))
				(device (vif (bridge br0) (mac 52:54:00:aa:bb:cc))))`,
			version: ConfigVersion310,
		},
		{name: "paravirt", input: paravirt, version: ConfigVersion310},
		{name: "paravirt on 3.0.4", input: paravirt, version: ConfigVersion304},
		{
			name: "hvm devices",
			input: `(domain (name x) (uuid ` + testUUID + `)
				(image (hvm (loader /l) (boot dc) (acpi 1) (apic 1) (hpet 1)
					(fda /floppy.img) (usbdevice mouse)
					(serial (pty none 'unix:/tmp/s,server,nowait'))
					(parallel none) (soundhw es1370)
					(device_model /usr/lib/xen/bin/qemu-dm)))
				(device (vbd (uname tap:qcow:/img) (dev hda:disk) (mode w)))
				(device (vbd (dev hdc:cdrom) (mode r)))
				(device (vif (bridge xenbr0) (model e1000)))
				(device (pci (dev (domain 0x0000) (bus 0x00) (slot 0x1d) (func 0x0))))
				(device (vfb (type sdl) (display :1))))`,
			version: ConfigVersion310,
		},
		{
			name: "bootloader",
			input: `(domain (name x) (uuid ` + testUUID + `) (bootloader /usr/bin/pygrub)
				(bootloader_args '-q') (localtime 1) (description 'it\'s a test'))`,
			version: ConfigVersion310,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := ParseOptions{ConfigVersion: tt.version}
			first := mustParse(t, tt.input, opts)

			out, err := Format(first, tt.version)
			if err != nil {
				t.Fatalf("Format() failed: %v", err)
			}
			second := mustParse(t, out, opts)

			if diff := cmp.Diff(first, second); diff != "" {
				t.Errorf("round trip mismatch (-first +second):\n%s\nformatted: %s", diff, out)
			}
		})
	}
}

func TestFormat_NetTypeIOEmu(t *testing.T) {
	def := mustParse(t, `(domain (name x) (uuid `+testUUID+`)
		(image (hvm (loader /l)))
		(device (vif (bridge br0))))`, ParseOptions{})

	tests := []struct {
		version int
		want    bool
	}{
		{version: ConfigVersion302, want: true},
		{version: ConfigVersion303, want: true},
		{version: ConfigVersion304, want: true},
		{version: ConfigVersion310, want: false},
	}

	for _, tt := range tests {
		out, err := Format(def, tt.version)
		if err != nil {
			t.Fatalf("Format(version %d) failed: %v", tt.version, err)
		}
		if got := strings.Contains(out, "(type ioemu)"); got != tt.want {
			t.Errorf("Format(version %d) has (type ioemu) = %v, want %v", tt.version, got, tt.want)
		}
	}
}

func TestFormat_Output(t *testing.T) {
	def := mustParse(t, minimalHVM, ParseOptions{})
	out, err := Format(def, ConfigVersion310)
	if err != nil {
		t.Fatalf("Format() failed: %v", err)
	}

	for _, want := range []string{
		"(vm (name 'hvm1')",
		"(memory 512)(maxmem 512)(vcpus 2)",
		"(uuid '" + testUUID + "')",
		"(on_poweroff 'destroy')(on_reboot 'restart')(on_crash 'destroy')",
		"(image (hvm (kernel '/usr/lib/xen/boot/hvmloader')(boot c)(usb 1)(parallel none)(serial none)))",
		"(device (vbd (dev 'xvda:disk')(uname 'file:/var/img.qcow')(mode 'w')))",
		"(device (vif (mac '52:54:00:aa:bb:cc')(bridge 'br0')))",
		"(device (vkbd))(device (vfb (type vnc)(vncunused 1)))",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() output missing %q\ngot: %s", want, out)
		}
	}
}

func TestFormat_Errors(t *testing.T) {
	base := func() *DomainDef {
		return mustParse(t, minimalHVM, ParseOptions{})
	}

	tests := []struct {
		name   string
		mutate func(*DomainDef)
	}{
		{name: "hvm without loader", mutate: func(d *DomainDef) { d.OS.Loader = "" }},
		{name: "bad lifecycle", mutate: func(d *DomainDef) { d.OnReboot = LifecycleCoredumpRestart }},
		{name: "managed pci", mutate: func(d *DomainDef) { d.Hostdevs = []HostdevPCI{{Managed: true}} }},
		{name: "unknown sound", mutate: func(d *DomainDef) { d.Sounds = []string{"gus"} }},
		{name: "unknown net type", mutate: func(d *DomainDef) { d.Nets[0].Type = "user" }},
		{name: "variable clock", mutate: func(d *DomainDef) { d.Clock = "variable" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := base()
			tt.mutate(def)
			if _, err := Format(def, ConfigVersion310); err == nil {
				t.Error("Format() succeeded, want error")
			}
		})
	}
}

func TestXML_RoundTrip(t *testing.T) {
	for _, input := range []string{minimalHVM, paravirt} {
		def := mustParse(t, input, ParseOptions{})

		back, err := FromXML(ToXML(def))
		if err != nil {
			t.Fatalf("FromXML() failed: %v", err)
		}
		if diff := cmp.Diff(def, back); diff != "" {
			t.Errorf("XML round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestXML_MarshalRoundTrip(t *testing.T) {
	def := mustParse(t, minimalHVM, ParseOptions{})

	doc, err := ToXML(def).Marshal()
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}

	var dom libvirtxml.Domain
	if err := dom.Unmarshal(doc); err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	back, err := FromXML(&dom)
	if err != nil {
		t.Fatalf("FromXML() failed: %v", err)
	}
	if diff := cmp.Diff(def, back); diff != "" {
		t.Errorf("XML round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestToKiB(t *testing.T) {
	tests := []struct {
		value   uint
		unit    string
		want    uint64
		wantErr bool
	}{
		{value: 1024, unit: "", want: 1024},
		{value: 512, unit: "MiB", want: 524288},
		{value: 2, unit: "G", want: 2097152},
		{value: 2048, unit: "bytes", want: 2},
		{value: 1, unit: "parsecs", wantErr: true},
	}

	for _, tt := range tests {
		got, err := toKiB(tt.value, tt.unit)
		if (err != nil) != tt.wantErr {
			t.Errorf("toKiB(%d, %q) error = %v, wantErr %v", tt.value, tt.unit, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("toKiB(%d, %q) = %d, want %d", tt.value, tt.unit, got, tt.want)
		}
	}
}
