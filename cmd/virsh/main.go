package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jbweber/virsh/internal/commands"
	"github.com/jbweber/virsh/internal/config"
	"github.com/jbweber/virsh/internal/logging"
	"github.com/jbweber/virsh/internal/shell"
)

var (
	version = "dev"
	commit  = "unknown"
)

// errFailed reports a failure the shell has already printed.
var errFailed = errors.New("command failed")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.Getenv))
}

// run executes virsh with args and returns the process exit code.
func run(args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	root := newRootCmd(stdout, stderr, getenv)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(stderr, "error: %v\n", err)
		}
		return 1
	}
	return 0
}

type options struct {
	connect  string
	readonly bool
	debug    string
	quiet    bool
	timing   bool
	logFile  string
	short    bool
	long     bool
	version  string
}

func newRootCmd(stdout, stderr io.Writer, getenv func(string) string) *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "virsh [options]... [<command_string>|<command> [args...]]",
		Short: "virsh - the virtualization interactive terminal",
		Long: `virsh is a command line interface for managing libvirt guest domains,
networks and storage.

Without a command it starts an interactive shell. A single argument is
parsed as a full command line, so several commands can be joined with ';'.
More than one argument is run as one command with its arguments.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if done, err := printVersion(stdout, o); done || err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, o, getenv, stderr)
			if err != nil {
				return err
			}
			return runShell(cmd.Context(), cfg, args, stdout, stderr, getenv("HOME"))
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.SetInterspersed(false)
	flags.StringVarP(&o.connect, "connect", "c", "", "hypervisor connection URI")
	flags.BoolVarP(&o.readonly, "readonly", "r", false, "connect readonly")
	flags.StringVarP(&o.debug, "debug", "d", "", "debug level [0-4]")
	flags.BoolVarP(&o.quiet, "quiet", "q", false, "quiet mode")
	flags.BoolVarP(&o.timing, "timing", "t", false, "print timing information")
	flags.StringVarP(&o.logFile, "log", "l", "", "output logging to file")
	// pflag needs a long name behind -v and -V; only the short forms are
	// documented.
	flags.BoolVarP(&o.short, "short-version", "v", false, "short version")
	flags.BoolVarP(&o.long, "long-version", "V", false, "long version")
	_ = flags.MarkHidden("short-version")
	_ = flags.MarkHidden("long-version")
	flags.StringVar(&o.version, "version", "", "version, either short or long")
	flags.Lookup("version").NoOptDefVal = "short"
	return cmd
}

// printVersion handles -v, -V and --version. done is true when a version
// was printed and the shell should not start.
func printVersion(w io.Writer, o *options) (bool, error) {
	switch {
	case o.short || o.version == "short":
		fmt.Fprintln(w, version)
	case o.long || o.version == "long":
		fmt.Fprintf(w, "Virsh command line tool of libvirt %s (commit: %s)\n", version, commit)
		fmt.Fprintf(w, "See web site at https://libvirt.org/\n\n")
		fmt.Fprintf(w, "Compiled with support for:\n")
		fmt.Fprintf(w, " Transports: unix tcp\n")
		fmt.Fprintf(w, " Native formats: xen-sxpr\n")
	case o.version != "":
		return true, fmt.Errorf("unknown version type '%s'", o.version)
	default:
		return false, nil
	}
	return true, nil
}

// loadConfig layers the rc file, the environment and the command line.
func loadConfig(cmd *cobra.Command, o *options, getenv func(string) string, stderr io.Writer) (*config.Config, error) {
	cfg := config.Default()
	if home := getenv("HOME"); home != "" {
		loaded, err := config.LoadFromFile(config.DefaultPath(home))
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	for _, w := range cfg.ApplyEnv(getenv) {
		fmt.Fprintf(stderr, "warning: %s\n", w)
	}

	flags := cmd.Flags()
	if flags.Changed("connect") {
		cfg.URI = o.connect
	}
	if flags.Changed("debug") {
		level, err := logging.ParseLevel(o.debug)
		if err != nil {
			return nil, err
		}
		cfg.Debug = int(level)
	}
	if flags.Changed("log") {
		cfg.LogFile = o.logFile
	}
	cfg.ReadOnly = cfg.ReadOnly || o.readonly
	cfg.Quiet = cfg.Quiet || o.quiet
	cfg.Timing = cfg.Timing || o.timing
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runShell(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer, home string) error {
	logger := log.New()
	closer, err := logging.Setup(logger, cfg.LogFile, logging.Level(cfg.Debug))
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	defer func() { _ = closer.Close() }()

	reg, err := commands.Registry()
	if err != nil {
		return err
	}

	interactive := len(args) == 0
	opts := shell.Options{
		Name:        cfg.URI,
		ReadOnly:    cfg.ReadOnly,
		Quiet:       cfg.Quiet,
		Timing:      cfg.Timing,
		Interactive: interactive,
		HistorySize: cfg.HistorySize,
		Out:         stdout,
		Err:         stderr,
		Logger:      logger,
	}
	if interactive && home != "" {
		opts.HistoryFile = shell.HistoryPath(home)
	}
	ctl := shell.New(reg, shell.LibvirtDialer(cfg.Socket, cfg.TimeoutDuration()), opts)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctl.HandleSignals(ctx)

	ok := true
	switch {
	case interactive:
		ed := shell.NewEditor(os.Stdin, os.Stdout, cfg.HistorySize)
		err := ctl.Interact(ctx, ed)
		_ = ed.Close()
		if err != nil {
			ctl.Errorf("%v", err)
			ok = false
		}
	case len(args) == 1:
		ok = ctl.Run(ctx, args[0])
	default:
		ok = ctl.RunArgv(ctx, args)
	}

	if err := ctl.Close(); err != nil {
		ctl.Errorf("%v", err)
		ok = false
	}
	if !ok {
		return errFailed
	}
	return nil
}
