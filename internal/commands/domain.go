package commands

import (
	"fmt"
	"os"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"

	"github.com/jbweber/virsh/internal/cmdline"
	client "github.com/jbweber/virsh/internal/libvirt"
	"github.com/jbweber/virsh/internal/output"
	"github.com/jbweber/virsh/internal/shell"
	"github.com/jbweber/virsh/internal/storage"
	"github.com/jbweber/virsh/internal/vm"
)

// errNoSupport is the libvirt error code for an unsupported call.
const errNoSupport = 3

func domainGroup(api apiFunc) *cmdline.Group {
	return &cmdline.Group{
		Name:    "Domain Management",
		Keyword: "domain",
		Commands: []*cmdline.CmdDef{
			{
				Name:    "autostart",
				Opts:    []cmdline.OptDef{domainOpt(), boolOpt("disable", "disable autostarting")},
				Info:    cmdline.Info{Help: "autostart a domain", Desc: "Configure a domain to be automatically started at boot."},
				Handler: shell.Handler(runAutostart(api)),
			},
			{
				Name:    "create",
				Opts:    []cmdline.OptDef{dataOpt("file", "file containing an XML domain description")},
				Info:    cmdline.Info{Help: "create a domain from an XML file", Desc: "Create a domain."},
				Handler: shell.Handler(runCreate(api)),
			},
			{
				Name:    "define",
				Opts:    []cmdline.OptDef{dataOpt("file", "file containing an XML domain description")},
				Info:    cmdline.Info{Help: "define (but don't start) a domain from an XML file", Desc: "Define a domain."},
				Handler: shell.Handler(runDefine(api)),
			},
			{
				Name:    "destroy",
				Opts:    []cmdline.OptDef{domainOpt()},
				Info:    cmdline.Info{Help: "destroy (stop) a domain", Desc: "Forcefully stop a given domain, but leave its resources intact."},
				Handler: shell.Handler(runDomainAction(api, "destroyed", func(lv hypervisor, dom libvirt.Domain) error { return lv.DomainDestroy(dom) })),
			},
			{
				Name: "domxml-from-native",
				Opts: []cmdline.OptDef{
					dataOpt("format", "source config data format"),
					dataOpt("config", "config data file to import from"),
					intOpt("xend-version", "xend configuration format version (default 4)"),
				},
				Info:    cmdline.Info{Help: "Convert native config to domain XML", Desc: "Convert native guest configuration format to domain XML format."},
				Flags:   cmdline.CmdNoConnect,
				Handler: shell.Handler(runFromNative),
			},
			{
				Name: "domxml-to-native",
				Opts: []cmdline.OptDef{
					dataOpt("format", "target config data type format"),
					dataOpt("xml", "xml data file to export from"),
					intOpt("xend-version", "xend configuration format version (default 4)"),
				},
				Info:    cmdline.Info{Help: "Convert domain XML to native config", Desc: "Convert domain XML config to a native guest configuration format."},
				Flags:   cmdline.CmdNoConnect,
				Handler: shell.Handler(runToNative),
			},
			{
				Name:    "domid",
				Opts:    []cmdline.OptDef{dataOpt("domain", "domain name or uuid")},
				Info:    cmdline.Info{Help: "convert a domain name or UUID to domain id"},
				Handler: shell.Handler(runDomID(api)),
			},
			{
				Name:    "dominfo",
				Opts:    []cmdline.OptDef{domainOpt(), formatOpt()},
				Info:    cmdline.Info{Help: "domain information", Desc: "Returns basic information about the domain."},
				Handler: shell.Handler(runDomInfo(api)),
			},
			{
				Name:    "domname",
				Opts:    []cmdline.OptDef{dataOpt("domain", "domain id or uuid")},
				Info:    cmdline.Info{Help: "convert a domain id or UUID to domain name"},
				Handler: shell.Handler(runDomName(api)),
			},
			{
				Name:    "domstate",
				Opts:    []cmdline.OptDef{domainOpt()},
				Info:    cmdline.Info{Help: "domain state", Desc: "Returns state about a domain."},
				Handler: shell.Handler(runDomState(api)),
			},
			{
				Name:    "domuuid",
				Opts:    []cmdline.OptDef{dataOpt("domain", "domain id or name")},
				Info:    cmdline.Info{Help: "convert a domain name or id to domain UUID"},
				Handler: shell.Handler(runDomUUID(api)),
			},
			{
				Name: "dumpxml",
				Opts: []cmdline.OptDef{
					domainOpt(),
					boolOpt("inactive", "show inactive defined XML"),
					boolOpt("security-info", "include security sensitive information in XML dump"),
				},
				Info:    cmdline.Info{Help: "domain information in XML", Desc: "Output the domain information as an XML dump to stdout."},
				Handler: shell.Handler(runDumpXML(api)),
			},
			{
				Name:    "edit",
				Opts:    []cmdline.OptDef{domainOpt()},
				Info:    cmdline.Info{Help: "edit XML configuration for a domain", Desc: "Edit the XML configuration for a domain."},
				Handler: shell.Handler(runEdit(api)),
			},
			{
				Name: "list",
				Opts: []cmdline.OptDef{
					boolOpt("inactive", "list inactive domains"),
					boolOpt("all", "list inactive & active domains"),
					formatOpt(),
				},
				Info:    cmdline.Info{Help: "list domains", Desc: "Returns list of domains."},
				Handler: shell.Handler(runList(api)),
			},
			{
				Name: "migrate",
				Opts: []cmdline.OptDef{
					boolOpt("live", "live migration"),
					boolOpt("tunnelled", "tunnelled migration"),
					boolOpt("persistent", "persist VM on destination"),
					boolOpt("undefinesource", "undefine VM on source"),
					boolOpt("suspend", "do not restart the domain on the destination host"),
					boolOpt("verbose", "display the progress of migration"),
					domainOpt(),
					dataOpt("desturi", "connection URI of the destination host as seen from the source host"),
					intOpt("timeout", "force guest to suspend if live migration exceeds timeout (in seconds)"),
				},
				Info:    cmdline.Info{Help: "migrate domain to another host", Desc: "Migrate domain to another host.  Add --live for live migration.  The source host always drives a peer-to-peer migration."},
				Handler: shell.Handler(runMigrate(api)),
			},
			{
				Name:    "reboot",
				Opts:    []cmdline.OptDef{domainOpt()},
				Info:    cmdline.Info{Help: "reboot a domain", Desc: "Run a reboot command in the target domain."},
				Handler: shell.Handler(runDomainAction(api, "is being rebooted", func(lv hypervisor, dom libvirt.Domain) error { return lv.DomainReboot(dom, 0) })),
			},
			{
				Name:    "resume",
				Opts:    []cmdline.OptDef{domainOpt()},
				Info:    cmdline.Info{Help: "resume a domain", Desc: "Resume a previously suspended domain."},
				Handler: shell.Handler(runDomainAction(api, "resumed", func(lv hypervisor, dom libvirt.Domain) error { return lv.DomainResume(dom) })),
			},
			{
				Name: "send-key",
				Opts: []cmdline.OptDef{
					domainOpt(),
					stringOpt("codeset", "the codeset of keycodes, default:linux"),
					intOpt("holdtime", "the time (in milliseconds) how long the keys will be held"),
					{Name: "keycode", Kind: cmdline.OptArgv, Flags: cmdline.FlagRequired, Help: "the key code"},
				},
				Info:    cmdline.Info{Help: "Send keycodes to the guest", Desc: "Send keycodes to the guest, the keycodes must be integers."},
				Handler: shell.Handler(runSendKey(api)),
			},
			{
				Name:    "setmaxmem",
				Opts:    append([]cmdline.OptDef{domainOpt(), {Name: "kilobytes", Kind: cmdline.OptInt, Flags: cmdline.FlagRequired, Help: "maximum memory limit in kilobytes"}}, scopeOpts()...),
				Info:    cmdline.Info{Help: "change maximum memory limit", Desc: "Change the maximum memory allocation limit in the guest domain."},
				Handler: shell.Handler(runSetMem(api, true)),
			},
			{
				Name:    "setmem",
				Opts:    append([]cmdline.OptDef{domainOpt(), {Name: "kilobytes", Kind: cmdline.OptInt, Flags: cmdline.FlagRequired, Help: "number of kilobytes of memory"}}, scopeOpts()...),
				Info:    cmdline.Info{Help: "change memory allocation", Desc: "Change the current memory allocation in the guest domain."},
				Handler: shell.Handler(runSetMem(api, false)),
			},
			{
				Name: "setvcpus",
				Opts: append([]cmdline.OptDef{
					domainOpt(),
					{Name: "count", Kind: cmdline.OptInt, Flags: cmdline.FlagRequired, Help: "number of virtual CPUs"},
					boolOpt("maximum", "set maximum limit on next boot"),
				}, scopeOpts()...),
				Info:    cmdline.Info{Help: "change number of virtual CPUs", Desc: "Change the number of virtual CPUs in the guest domain."},
				Handler: shell.Handler(runSetVCPUs(api)),
			},
			{
				Name:    "shutdown",
				Opts:    []cmdline.OptDef{domainOpt()},
				Info:    cmdline.Info{Help: "gracefully shutdown a domain", Desc: "Run shutdown in the target domain."},
				Handler: shell.Handler(runDomainAction(api, "is being shutdown", func(lv hypervisor, dom libvirt.Domain) error { return lv.DomainShutdown(dom) })),
			},
			{
				Name:    "start",
				Opts:    []cmdline.OptDef{dataOpt("domain", "name of the inactive domain")},
				Info:    cmdline.Info{Help: "start a (previously defined) inactive domain", Desc: "Start a domain, either from the last managedsave state, or via a fresh boot if no managedsave state is present."},
				Handler: shell.Handler(runStart(api)),
			},
			{
				Name:    "suspend",
				Opts:    []cmdline.OptDef{domainOpt()},
				Info:    cmdline.Info{Help: "suspend a domain", Desc: "Suspend a running domain."},
				Handler: shell.Handler(runDomainAction(api, "suspended", func(lv hypervisor, dom libvirt.Domain) error { return lv.DomainSuspend(dom) })),
			},
			{
				Name: "undefine",
				Opts: []cmdline.OptDef{
					dataOpt("domain", "domain name or uuid"),
					boolOpt("remove-all-storage", "remove all associated storage volumes (use with caution)"),
				},
				Info:    cmdline.Info{Help: "undefine an inactive domain", Desc: "Undefine the configuration for an inactive domain."},
				Handler: shell.Handler(runUndefine(api)),
			},
		},
	}
}

func scopeOpts() []cmdline.OptDef {
	return []cmdline.OptDef{
		boolOpt("config", "affect next boot"),
		boolOpt("live", "affect running domain"),
		boolOpt("current", "affect current domain"),
	}
}

// scope reads --config, --live and --current. --current cannot be mixed
// with the others.
func scope(cmd *cmdline.Cmd) (vm.Scope, error) {
	s := vm.Scope{Config: cmd.OptBool("config"), Live: cmd.OptBool("live")}
	if cmd.OptBool("current") && (s.Config || s.Live) {
		return s, fmt.Errorf("--current must be specified exclusively")
	}
	return s, nil
}

// domain resolves the named option to a domain.
func domain(ctl *shell.Control, cmd *cmdline.Cmd, api apiFunc, opt string) (hypervisor, libvirt.Domain, error) {
	lv, err := api(ctl)
	if err != nil {
		return nil, libvirt.Domain{}, err
	}
	name, _, err := cmd.OptString(opt)
	if err != nil {
		return nil, libvirt.Domain{}, err
	}
	dom, err := vm.Lookup(lv, name)
	if err != nil {
		return nil, libvirt.Domain{}, err
	}
	return lv, dom, nil
}

func formatter(cmd *cmdline.Cmd) (output.Formatter, error) {
	format, _, err := cmd.OptString("format")
	if err != nil {
		return nil, err
	}
	if err := output.ValidateFormat(format); err != nil {
		return nil, err
	}
	return output.NewFormatter(output.Options{Format: output.Format(format)})
}

func runList(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		f, err := formatter(cmd)
		if err != nil {
			return err
		}
		lv, err := api(ctl)
		if err != nil {
			return err
		}

		opts := vm.ListOptions{Active: true}
		if cmd.OptBool("inactive") {
			opts = vm.ListOptions{Inactive: true}
		}
		if cmd.OptBool("all") {
			opts = vm.ListOptions{Active: true, Inactive: true}
		}
		domains, err := vm.ListDomains(ctl.Context(), lv, opts)
		if err != nil {
			return err
		}

		out, err := f.FormatDomainList(domains)
		if err != nil {
			return err
		}
		ctl.Print("%s", out)
		return nil
	}
}

func runDomInfo(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		f, err := formatter(cmd)
		if err != nil {
			return err
		}
		lv, dom, err := domain(ctl, cmd, api, "domain")
		if err != nil {
			return err
		}
		info, err := vm.GetDomainInfo(lv, dom)
		if err != nil {
			return err
		}
		out, err := f.FormatDomain(info)
		if err != nil {
			return err
		}
		ctl.Print("%s", out)
		return nil
	}
}

// domainState returns the state of dom, falling back to the older info
// call once the connection has rejected the state call.
func domainState(ctl *shell.Control, lv hypervisor, dom libvirt.Domain) (int32, error) {
	if !ctl.UseLegacyInfo() {
		state, _, err := lv.DomainGetState(dom, 0)
		if err == nil {
			return state, nil
		}
		if client.ErrorCode(err) != errNoSupport {
			return 0, fmt.Errorf("failed to get domain state: %w", err)
		}
		ctl.SetUseLegacyInfo()
	}
	state, _, _, _, _, err := lv.DomainGetInfo(dom)
	if err != nil {
		return 0, fmt.Errorf("failed to get domain info: %w", err)
	}
	return int32(state), nil
}

func runDomState(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		lv, dom, err := domain(ctl, cmd, api, "domain")
		if err != nil {
			return err
		}
		state, err := domainState(ctl, lv, dom)
		if err != nil {
			return err
		}
		ctl.Print("%s\n", vm.StateString(state))
		return nil
	}
}

func runDomID(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		lv, dom, err := domain(ctl, cmd, api, "domain")
		if err != nil {
			return err
		}
		state, err := domainState(ctl, lv, dom)
		if err != nil {
			return err
		}
		if dom.ID < 0 || state == int32(libvirt.DomainShutoff) {
			ctl.Print("-\n")
			return nil
		}
		ctl.Print("%d\n", dom.ID)
		return nil
	}
}

func runDomName(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		_, dom, err := domain(ctl, cmd, api, "domain")
		if err != nil {
			return err
		}
		ctl.Print("%s\n", dom.Name)
		return nil
	}
}

func runDomUUID(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		_, dom, err := domain(ctl, cmd, api, "domain")
		if err != nil {
			return err
		}
		ctl.Print("%s\n", uuid.UUID(dom.UUID).String())
		return nil
	}
}

// runDomainAction runs a single call against the domain and reports it as
// "Domain <name> <done>".
func runDomainAction(api apiFunc, done string, action func(hypervisor, libvirt.Domain) error) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		lv, dom, err := domain(ctl, cmd, api, "domain")
		if err != nil {
			return err
		}
		if err := action(lv, dom); err != nil {
			return fmt.Errorf("failed: domain %s not %s: %w", dom.Name, done, err)
		}
		ctl.Print("Domain %s %s\n", dom.Name, done)
		return nil
	}
}

func runStart(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		lv, err := api(ctl)
		if err != nil {
			return err
		}
		name, _, err := cmd.OptString("domain")
		if err != nil {
			return err
		}
		dom, err := lv.DomainLookupByName(name)
		if err != nil {
			return fmt.Errorf("failed to get domain '%s': %w", name, err)
		}
		if state, err := domainState(ctl, lv, dom); err == nil && state != int32(libvirt.DomainShutoff) {
			return fmt.Errorf("domain is already active")
		}
		if err := lv.DomainCreate(dom); err != nil {
			return fmt.Errorf("failed to start domain %s: %w", dom.Name, err)
		}
		ctl.Print("Domain %s started\n", dom.Name)
		return nil
	}
}

func readFileOpt(cmd *cmdline.Cmd, opt string) (string, string, error) {
	path, _, err := cmd.OptString(opt)
	if err != nil {
		return "", "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read file '%s': %w", path, err)
	}
	return path, string(data), nil
}

func runDefine(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		lv, err := api(ctl)
		if err != nil {
			return err
		}
		path, xml, err := readFileOpt(cmd, "file")
		if err != nil {
			return err
		}
		dom, err := lv.DomainDefineXML(xml)
		if err != nil {
			return fmt.Errorf("failed to define domain from %s: %w", path, err)
		}
		ctl.Print("Domain %s defined from %s\n", dom.Name, path)
		return nil
	}
}

func runCreate(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		lv, err := api(ctl)
		if err != nil {
			return err
		}
		path, xml, err := readFileOpt(cmd, "file")
		if err != nil {
			return err
		}
		dom, err := lv.DomainCreateXML(xml, 0)
		if err != nil {
			return fmt.Errorf("failed to create domain from %s: %w", path, err)
		}
		ctl.Print("Domain %s created from %s\n", dom.Name, path)
		return nil
	}
}

func runUndefine(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		lv, dom, err := domain(ctl, cmd, api, "domain")
		if err != nil {
			return err
		}
		if !cmd.OptBool("remove-all-storage") {
			if err := vm.Undefine(lv, dom); err != nil {
				return err
			}
			ctl.Print("Domain %s has been undefined\n", dom.Name)
			return nil
		}

		removed, err := vm.UndefineRemoveStorage(ctl.Context(), lv, dom, storage.NewManager(lv))
		if err != nil {
			return err
		}
		ctl.Print("Domain %s has been undefined\n", dom.Name)
		failed := false
		for _, r := range removed {
			if r.Err != nil {
				ctl.Errorf("Failed to remove storage volume '%s'(%s): %v", r.Ref.Target, r.Ref.Source(), r.Err)
				failed = true
				continue
			}
			ctl.Print("Volume '%s'(%s) removed.\n", r.Ref.Target, r.Ref.Source())
		}
		if failed {
			return shell.ErrReported
		}
		return nil
	}
}

func runDumpXML(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		lv, dom, err := domain(ctl, cmd, api, "domain")
		if err != nil {
			return err
		}
		xml, err := vm.DumpXML(lv, dom, cmd.OptBool("inactive"), cmd.OptBool("security-info"))
		if err != nil {
			return err
		}
		ctl.Print("%s", xml)
		return nil
	}
}

func runAutostart(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		lv, dom, err := domain(ctl, cmd, api, "domain")
		if err != nil {
			return err
		}
		enable := !cmd.OptBool("disable")
		if err := vm.SetAutostart(lv, dom, enable); err != nil {
			return err
		}
		if enable {
			ctl.Print("Domain %s marked as autostarted\n", dom.Name)
		} else {
			ctl.Print("Domain %s unmarked as autostarted\n", dom.Name)
		}
		return nil
	}
}

func runSetVCPUs(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		s, err := scope(cmd)
		if err != nil {
			return err
		}
		s.Maximum = cmd.OptBool("maximum")
		if s.Maximum && !s.Config {
			return fmt.Errorf("--maximum must be used with --config")
		}
		count, _, err := cmd.OptInt("count")
		if err != nil {
			return err
		}
		if count <= 0 {
			return fmt.Errorf("invalid number of virtual CPUs")
		}
		lv, dom, err := domain(ctl, cmd, api, "domain")
		if err != nil {
			return err
		}
		return vm.SetVCPUs(lv, dom, uint32(count), s)
	}
}

func runSetMem(api apiFunc, maximum bool) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		s, err := scope(cmd)
		if err != nil {
			return err
		}
		s.Maximum = maximum
		kib, _, err := cmd.OptLongLong("kilobytes")
		if err != nil {
			return err
		}
		if kib <= 0 {
			return fmt.Errorf("invalid value of %d for memory size", kib)
		}
		lv, dom, err := domain(ctl, cmd, api, "domain")
		if err != nil {
			return err
		}
		return vm.SetMemory(lv, dom, uint64(kib), s)
	}
}

// keyCodesets maps send-key codeset names to libvirt codeset numbers.
var keyCodesets = map[string]uint32{
	"linux":  0,
	"xt":     1,
	"atset1": 2,
	"atset2": 3,
	"atset3": 4,
	"os_x":   5,
	"xt_kbd": 6,
	"usb":    7,
	"win32":  8,
	"rfb":    9,
}

// maxSendKeys is the most keys one send-key call accepts.
const maxSendKeys = 16

func runSendKey(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		codesetName, ok, err := cmd.OptString("codeset")
		if err != nil {
			return err
		}
		if !ok {
			codesetName = "linux"
		}
		codeset, found := keyCodesets[codesetName]
		if !found {
			return fmt.Errorf("unknown codeset: '%s'", codesetName)
		}
		holdtime, _, err := cmd.OptInt("holdtime")
		if err != nil {
			return err
		}
		if holdtime < 0 {
			return fmt.Errorf("invalid value of --holdtime")
		}

		var keycodes []uint32
		for _, arg := range cmd.ArgvValues() {
			if len(keycodes) == maxSendKeys {
				return fmt.Errorf("too many keycodes")
			}
			code, err := cmdline.ParseKeycode(arg)
			if err != nil {
				return err
			}
			keycodes = append(keycodes, uint32(code))
		}

		lv, dom, err := domain(ctl, cmd, api, "domain")
		if err != nil {
			return err
		}
		if err := lv.DomainSendKey(dom, codeset, uint32(holdtime), keycodes, 0); err != nil {
			return fmt.Errorf("failed to send keys to %s: %w", dom.Name, err)
		}
		return nil
	}
}

// parseTimeout validates the migrate --timeout option.
func parseTimeout(cmd *cmdline.Cmd) (int, error) {
	timeout, ok, err := cmd.OptInt("timeout")
	if err != nil {
		return 0, err
	}
	if ok && timeout < 1 {
		return 0, fmt.Errorf("migrate: Invalid timeout")
	}
	return timeout, nil
}
