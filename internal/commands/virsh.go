package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/jbweber/virsh/internal/cmdline"
	"github.com/jbweber/virsh/internal/shell"
)

func virshGroup(api apiFunc) *cmdline.Group {
	return &cmdline.Group{
		Name:    "Virsh itself",
		Keyword: "virsh",
		Commands: []*cmdline.CmdDef{
			{
				Name:    "cd",
				Opts:    []cmdline.OptDef{stringOpt("dir", "directory to switch to (default: home or else root)")},
				Info:    cmdline.Info{Help: "change the current directory", Desc: "Change the current directory."},
				Flags:   cmdline.CmdNoConnect,
				Handler: shell.Handler(runCd),
			},
			{
				Name: "connect",
				Opts: []cmdline.OptDef{
					optDataOpt("name", "hypervisor connection URI"),
					boolOpt("readonly", "read-only connection"),
				},
				Info:    cmdline.Info{Help: "(re)connect to hypervisor", Desc: "Connect to local hypervisor. This is built-in command after shell start up."},
				Flags:   cmdline.CmdNoConnect,
				Handler: shell.Handler(runConnect),
			},
			{
				Name: "echo",
				Opts: []cmdline.OptDef{
					boolOpt("shell", "escape for shell use"),
					boolOpt("xml", "escape for XML use"),
					{Name: "string", Kind: cmdline.OptArgv, Flags: cmdline.FlagEmptyOk, Help: "arguments to echo"},
				},
				Info:    cmdline.Info{Help: "echo arguments", Desc: "Echo back arguments, possibly with quoting."},
				Flags:   cmdline.CmdNoConnect,
				Handler: shell.Handler(runEcho),
			},
			{
				Name:    "exit",
				Info:    cmdline.Info{Help: "quit this interactive terminal"},
				Flags:   cmdline.CmdNoConnect,
				Handler: shell.Handler(runQuit),
			},
			{
				Name:    "help",
				Opts:    []cmdline.OptDef{optDataOpt("command", "command or command group name")},
				Info:    cmdline.Info{Help: "print help", Desc: "Prints global help, command specific help, or help for a\n    group of related commands"},
				Flags:   cmdline.CmdNoConnect,
				Handler: shell.Handler(runHelp),
			},
			{
				Name:    "hostname",
				Info:    cmdline.Info{Help: "print the hypervisor hostname"},
				Handler: shell.Handler(runHostname(api)),
			},
			{
				Name:    "pwd",
				Info:    cmdline.Info{Help: "print the current directory", Desc: "Print the current directory."},
				Flags:   cmdline.CmdNoConnect,
				Handler: shell.Handler(runPwd),
			},
			{
				Name:    "quit",
				Info:    cmdline.Info{Help: "quit this interactive terminal"},
				Flags:   cmdline.CmdNoConnect,
				Handler: shell.Handler(runQuit),
			},
			{
				Name:    "uri",
				Info:    cmdline.Info{Help: "print the hypervisor canonical URI"},
				Handler: shell.Handler(runURI),
			},
			{
				Name:    "version",
				Info:    cmdline.Info{Help: "show version", Desc: "Display the system version information."},
				Handler: shell.Handler(runVersion(api)),
			},
		},
	}
}

func runHelp(ctl *shell.Control, cmd *cmdline.Cmd) error {
	name, _, err := cmd.OptString("command")
	if err != nil {
		return err
	}
	return ctl.Help(name)
}

func runQuit(*shell.Control, *cmdline.Cmd) error {
	return nil
}

// xmlEscaper escapes the characters that cannot appear verbatim in XML
// text or attribute values.
var xmlEscaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	"&", "&amp;",
	`"`, "&quot;",
	"'", "&apos;",
)

// shellSpecial are the characters that force single quoting.
const shellSpecial = "\r\t\n !\"#$&'()*;<>?[\\]^`{|}~"

func shellEscape(s string) string {
	if s != "" && !strings.ContainsAny(s, shellSpecial) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func runEcho(ctl *shell.Control, cmd *cmdline.Cmd) error {
	useShell := cmd.OptBool("shell")
	useXML := cmd.OptBool("xml")

	args := cmd.ArgvValues()
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if useXML {
			arg = xmlEscaper.Replace(arg)
		}
		if useShell {
			arg = shellEscape(arg)
		}
		out = append(out, arg)
	}
	ctl.Print("%s\n", strings.Join(out, " "))
	return nil
}

func runConnect(ctl *shell.Control, cmd *cmdline.Cmd) error {
	name, ok, err := cmd.OptString("name")
	if err != nil {
		return err
	}
	if !ok {
		name = ctl.Name()
	}
	return ctl.Connect(ctl.Context(), name, cmd.OptBool("readonly"))
}

func runCd(ctl *shell.Control, cmd *cmdline.Cmd) error {
	if !ctl.Interactive {
		return fmt.Errorf("cd: command valid only in interactive mode")
	}
	dir, ok, err := cmd.OptString("dir")
	if err != nil {
		return err
	}
	if !ok {
		dir = os.Getenv("HOME")
		if dir == "" {
			dir = "/"
		}
	}
	return ctl.Chdir(dir)
}

func runPwd(ctl *shell.Control, cmd *cmdline.Cmd) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	ctl.Print("%s\n", cwd)
	return nil
}

func runURI(ctl *shell.Control, cmd *cmdline.Cmd) error {
	conn, err := ctl.Conn()
	if err != nil {
		return err
	}
	ctl.Print("%s\n", conn.URI())
	return nil
}

func runHostname(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		lv, err := api(ctl)
		if err != nil {
			return err
		}
		host, err := lv.ConnectGetHostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
		ctl.Print("%s\n", host)
		return nil
	}
}

// splitVersion decodes libvirt's major*1000000 + minor*1000 + release
// version encoding.
func splitVersion(v uint64) (major, minor, rel uint64) {
	return v / 1000000, (v / 1000) % 1000, v % 1000
}

func runVersion(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		lv, err := api(ctl)
		if err != nil {
			return err
		}
		hvType, err := lv.ConnectGetType()
		if err != nil {
			return fmt.Errorf("failed to get hypervisor type: %w", err)
		}
		libVer, err := lv.ConnectGetLibVersion()
		if err != nil {
			return fmt.Errorf("failed to get the library version: %w", err)
		}
		major, minor, rel := splitVersion(libVer)
		ctl.Print("Using library: libvirt %d.%d.%d\n", major, minor, rel)
		ctl.Print("Using API: %s %d.%d.%d\n", hvType, major, minor, rel)

		hvVer, err := lv.ConnectGetVersion()
		if err != nil {
			return fmt.Errorf("failed to get the hypervisor version: %w", err)
		}
		if hvVer == 0 {
			ctl.Print("Cannot extract running %s hypervisor version\n", hvType)
			return nil
		}
		major, minor, rel = splitVersion(hvVer)
		ctl.Print("Running hypervisor: %s %d.%d.%d\n", hvType, major, minor, rel)
		return nil
	}
}
