package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/digitalocean/go-libvirt"
	log "github.com/sirupsen/logrus"

	"github.com/jbweber/virsh/internal/cmdline"
	lv "github.com/jbweber/virsh/internal/libvirt"
	"github.com/jbweber/virsh/internal/logging"
)

var (
	// ErrNoConnection is returned by Conn when no hypervisor connection is
	// open.
	ErrNoConnection = errors.New("no valid connection")
	// ErrReported tells the dispatcher the handler already printed its
	// diagnostics.
	ErrReported = errors.New("error already reported")
)

// Handler runs a parsed command.
type Handler func(ctl *Control, cmd *cmdline.Cmd) error

// Connection is an open hypervisor connection.
type Connection interface {
	Close() error
	Disconnected() <-chan struct{}
	URI() string
	Libvirt() *libvirt.Libvirt
}

// Dialer opens a connection to the hypervisor named by name. An empty
// name lets the daemon choose.
type Dialer func(ctx context.Context, name string, readonly bool) (Connection, error)

// LibvirtDialer returns a Dialer backed by internal/libvirt.
func LibvirtDialer(socket string, timeout time.Duration) Dialer {
	return func(ctx context.Context, name string, readonly bool) (Connection, error) {
		return lv.Open(ctx, name, lv.Options{ReadOnly: readonly, Socket: socket, Timeout: timeout})
	}
}

// Options configure a Control.
type Options struct {
	Name        string
	ReadOnly    bool
	Quiet       bool
	Timing      bool
	Interactive bool
	HistoryFile string
	HistorySize int

	Out    io.Writer
	Err    io.Writer
	Logger log.FieldLogger
}

// Control is the shell state shared by the dispatcher and command handlers.
type Control struct {
	mu        sync.Mutex
	conn      Connection
	watchStop chan struct{}
	name      string
	readonly  bool

	ctx           context.Context
	lastErr       error
	useLegacyInfo bool
	exiting       bool

	Interactive bool
	Quiet       bool
	Timing      bool
	HistoryFile string
	HistorySize int

	Out io.Writer
	Err io.Writer

	reg    *cmdline.Registry
	dial   Dialer
	logger log.FieldLogger
	now    func() time.Time

	disconnected atomic.Int32
	intCaught    atomic.Bool
}

// New returns a Control dispatching commands from reg. No connection is
// opened until a command needs one.
func New(reg *cmdline.Registry, dial Dialer, opts Options) *Control {
	c := &Control{
		name:        opts.Name,
		readonly:    opts.ReadOnly,
		Interactive: opts.Interactive,
		Quiet:       opts.Quiet,
		Timing:      opts.Timing,
		HistoryFile: opts.HistoryFile,
		HistorySize: opts.HistorySize,
		Out:         opts.Out,
		Err:         opts.Err,
		reg:         reg,
		dial:        dial,
		logger:      opts.Logger,
		now:         time.Now,
		ctx:         context.Background(),
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
	if c.Err == nil {
		c.Err = os.Stderr
	}
	if c.logger == nil {
		l := log.New()
		l.SetOutput(io.Discard)
		c.logger = l
	}
	return c
}

// Registry returns the command registry.
func (c *Control) Registry() *cmdline.Registry {
	return c.reg
}

// Logger returns the shell logger.
func (c *Control) Logger() log.FieldLogger {
	return c.logger
}

// Name returns the connection name in use.
func (c *Control) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// ReadOnly reports whether connections are opened read-only.
func (c *Control) ReadOnly() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readonly
}

// Conn returns the open connection or ErrNoConnection.
func (c *Control) Conn() (Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNoConnection
	}
	return c.conn, nil
}

// Context returns the context of the command being executed.
func (c *Control) Context() context.Context {
	return c.ctx
}

// LastError returns the error of the most recently executed command.
func (c *Control) LastError() error {
	return c.lastErr
}

// UseLegacyInfo reports whether handlers should skip newer info calls that
// the current connection rejected once.
func (c *Control) UseLegacyInfo() bool {
	return c.useLegacyInfo
}

// SetUseLegacyInfo records that the connection rejected a newer info call.
// The hint is cleared on reconnect.
func (c *Control) SetUseLegacyInfo() {
	c.useLegacyInfo = true
}

// Exiting reports whether quit or exit ran.
func (c *Control) Exiting() bool {
	return c.exiting
}

// Connect replaces the current connection with a new one to name.
func (c *Control) Connect(ctx context.Context, name string, readonly bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.closeLocked()
	c.name = name
	c.readonly = readonly
	c.useLegacyInfo = false
	if err := c.openLocked(ctx); err != nil {
		return fmt.Errorf("failed to connect to the hypervisor: %w", err)
	}
	return nil
}

// Reconnect closes the current connection and opens a new one with the
// same name and read-only flag.
func (c *Control) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	hadConn := c.conn != nil
	_ = c.closeLocked()
	c.disconnected.Store(0)
	c.useLegacyInfo = false

	if err := c.openLocked(ctx); err != nil {
		c.logger.WithError(err).Warn("failed to reconnect to the hypervisor")
		return fmt.Errorf("failed to reconnect to the hypervisor: %w", err)
	}
	if hadConn {
		logging.Noticef(c.logger, "reconnected to %s", c.conn.URI())
	}
	return nil
}

// Close closes the connection, if any.
func (c *Control) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Control) openLocked(ctx context.Context) error {
	conn, err := c.dial(ctx, c.name, c.readonly)
	if err != nil {
		return err
	}
	c.conn = conn
	c.watchStop = make(chan struct{})
	go c.watch(conn, c.watchStop)
	return nil
}

func (c *Control) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	close(c.watchStop)
	err := c.conn.Close()
	c.conn = nil
	c.watchStop = nil
	if err != nil {
		c.logger.WithError(err).Warn("failed to close the connection")
		return fmt.Errorf("failed to disconnect from the hypervisor: %w", err)
	}
	return nil
}

// watch bumps the disconnected counter when conn drops without Close.
func (c *Control) watch(conn Connection, stop <-chan struct{}) {
	select {
	case <-conn.Disconnected():
		select {
		case <-stop:
		default:
			c.disconnected.Add(1)
			c.logger.Warn("connection to the hypervisor lost")
		}
	case <-stop:
	}
}

// Disconnected reports whether the connection dropped since the last
// reconnect.
func (c *Control) Disconnected() bool {
	return c.disconnected.Load() > 0
}

// InterruptCaught reports whether SIGINT arrived since the last reset.
func (c *Control) InterruptCaught() bool {
	return c.intCaught.Load()
}

// ResetInterrupt clears the SIGINT flag.
func (c *Control) ResetInterrupt() {
	c.intCaught.Store(false)
}

// Run parses line and executes every command on it.
func (c *Control) Run(ctx context.Context, line string) bool {
	cmds, err := cmdline.Parse(c.reg, cmdline.NewStringSource(line))
	if err != nil {
		c.report(err)
		return false
	}
	return c.Exec(ctx, cmds)
}

// RunArgv executes the single command held in args.
func (c *Control) RunArgv(ctx context.Context, args []string) bool {
	cmds, err := cmdline.Parse(c.reg, cmdline.NewArgvSource(args))
	if err != nil {
		c.report(err)
		return false
	}
	return c.Exec(ctx, cmds)
}

// Exec runs cmds in order and reports whether all of them succeeded.
// Failures are printed and do not stop later commands.
func (c *Control) Exec(ctx context.Context, cmds []*cmdline.Cmd) bool {
	c.ctx = ctx
	defer func() { c.ctx = context.Background() }()

	ok := true
	for _, cmd := range cmds {
		if !cmd.Def.NoConnect() && (c.connMissing() || c.Disconnected()) {
			if err := c.Reconnect(ctx); err != nil {
				c.Errorf("failed to reconnect to the hypervisor")
			}
		}

		c.logger.Infof("%s", cmd.Name())
		start := c.now()
		err := c.call(cmd)
		elapsed := c.now().Sub(start)
		c.lastErr = err

		if err != nil {
			ok = false
			c.report(err)
			if c.Disconnected() || lv.IsTransportError(err) {
				if rerr := c.Reconnect(ctx); rerr != nil {
					c.Errorf("failed to reconnect to the hypervisor")
				}
			}
		}

		if cmd.Name() == "quit" || cmd.Name() == "exit" {
			c.exiting = true
			return ok
		}
		if c.Timing {
			fmt.Fprintf(c.Out, "\n(Time: %.3f ms)\n\n", float64(elapsed.Microseconds())/1000)
		}
	}
	return ok
}

func (c *Control) connMissing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == nil
}

func (c *Control) call(cmd *cmdline.Cmd) error {
	switch h := cmd.Def.Handler.(type) {
	case Handler:
		return h(c, cmd)
	case func(*Control, *cmdline.Cmd) error:
		return h(c, cmd)
	default:
		return fmt.Errorf("command '%s' has no handler", cmd.Name())
	}
}

// report prints err to the error stream, one line per joined error.
func (c *Control) report(err error) {
	if errors.Is(err, ErrReported) {
		return
	}
	msg := err.Error()
	if msg == "" {
		msg = "unknown error"
	}
	for _, line := range strings.Split(msg, "\n") {
		c.Errorf("%s", line)
	}
}

// Print writes to the output stream.
func (c *Control) Print(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

// PrintExtra writes to the output stream unless the shell is quiet.
func (c *Control) PrintExtra(format string, args ...any) {
	if c.Quiet {
		return
	}
	fmt.Fprintf(c.Out, format, args...)
}

// Errorf prints an "error: " line and logs it.
func (c *Control) Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.logger.Error(msg)
	fmt.Fprintf(c.Err, "error: %s\n", msg)
}

// Chdir changes the shell working directory.
func (c *Control) Chdir(dir string) error {
	if err := os.Chdir(dir); err != nil {
		return fmt.Errorf("cannot chdir to %s: %w", dir, err)
	}
	logging.Noticef(c.logger, "changed directory to %s", dir)
	return nil
}
