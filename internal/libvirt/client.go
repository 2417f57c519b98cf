package libvirt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/digitalocean/go-libvirt"
	"github.com/digitalocean/go-libvirt/socket"
	"github.com/digitalocean/go-libvirt/socket/dialers"
)

const (
	// DefaultSocket is the read-write socket of the system libvirtd.
	DefaultSocket = "/var/run/libvirt/libvirt-sock"
	// DefaultReadOnlySocket is the read-only socket of the system libvirtd.
	DefaultReadOnlySocket = "/var/run/libvirt/libvirt-sock-ro"
	// DefaultURI is reported when the daemon picked the driver.
	DefaultURI = "qemu:///system"
	// DefaultTCPPort is the libvirtd plain TCP listener port.
	DefaultTCPPort = "16509"

	defaultTimeout = 5 * time.Second
)

// Options control how Open reaches the daemon.
type Options struct {
	ReadOnly bool
	// Socket overrides the local socket path derived from the URI.
	Socket string
	// Timeout bounds the dial. Zero means 5 seconds.
	Timeout time.Duration
}

// Client wraps a go-libvirt connection opened for a single URI.
type Client struct {
	mu      sync.Mutex
	libvirt *libvirt.Libvirt
	name    string
	closed  bool
}

// target is the result of resolving a connection URI.
type target struct {
	remote bool
	host   string
	port   string
	socket string
	// driver is the URI handed to the daemon, stripped of transport,
	// host and client-side parameters.
	driver string
}

// resolve maps a connection URI onto the dialer that reaches the daemon.
// An empty name selects the local socket and lets the daemon choose the
// driver.
func resolve(name string, opts Options) (target, error) {
	t := target{socket: DefaultSocket}
	if opts.ReadOnly {
		t.socket = DefaultReadOnlySocket
	}
	if name == "" {
		if opts.Socket != "" {
			t.socket = opts.Socket
		}
		return t, nil
	}

	u, err := url.Parse(name)
	if err != nil {
		return t, fmt.Errorf("failed to parse connection URI %q: %w", name, err)
	}
	if u.Scheme == "" {
		return t, fmt.Errorf("connection URI %q has no driver", name)
	}

	driver, transport, _ := strings.Cut(u.Scheme, "+")
	q := u.Query()
	switch transport {
	case "", "unix":
		if u.Host != "" && transport == "" {
			// A host without transport is dialed over plain TCP.
			transport = "tcp"
		}
	case "tcp":
	default:
		return t, fmt.Errorf("unsupported transport %q in URI %q", transport, name)
	}

	if transport == "tcp" {
		t.remote = true
		t.host = u.Hostname()
		t.port = u.Port()
		if t.port == "" {
			t.port = DefaultTCPPort
		}
		if t.host == "" {
			t.host = "localhost"
		}
	} else if s := q.Get("socket"); s != "" {
		t.socket = s
	}
	if opts.Socket != "" && !t.remote {
		t.socket = opts.Socket
	}

	q.Del("socket")
	path := u.Path
	if path == "" {
		path = "/"
	}
	t.driver = driver + "://" + path
	if len(q) > 0 {
		t.driver += "?" + q.Encode()
	}
	return t, nil
}

func (t target) dialer(timeout time.Duration) socket.Dialer {
	if t.remote {
		return dialers.NewRemote(t.host,
			dialers.UsePort(t.port),
			dialers.WithRemoteTimeout(timeout),
		)
	}
	return dialers.NewLocal(
		dialers.WithSocket(t.socket),
		dialers.WithLocalTimeout(timeout),
	)
}

func (t target) String() string {
	if t.remote {
		return net.JoinHostPort(t.host, t.port)
	}
	return t.socket
}

// Open connects to the daemon named by the URI name. An empty name uses
// the default local socket.
func Open(ctx context.Context, name string, opts Options) (*Client, error) {
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	t, err := resolve(name, opts)
	if err != nil {
		return nil, err
	}

	type result struct {
		client *Client
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		l := libvirt.NewWithDialer(t.dialer(opts.Timeout))
		var err error
		if t.driver == "" {
			err = l.Connect()
		} else {
			err = l.ConnectToURI(libvirt.ConnectURI(t.driver))
		}
		if err != nil {
			resultCh <- result{err: fmt.Errorf("failed to connect to libvirt at %s: %w", t, err)}
			return
		}
		resultCh <- result{client: &Client{libvirt: l, name: name}}
	}()

	select {
	case <-ctx.Done():
		// Drop a connection that completes after the caller gave up.
		go func() {
			if res := <-resultCh; res.client != nil {
				_ = res.client.Close()
			}
		}()
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	case res := <-resultCh:
		return res.client, res.err
	}
}

// Close disconnects from libvirt. It is safe to call Close multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.libvirt == nil || c.closed {
		return nil
	}
	c.closed = true

	if err := c.libvirt.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect from libvirt: %w", err)
	}
	return nil
}

// Libvirt returns the underlying go-libvirt client for direct API access.
func (c *Client) Libvirt() *libvirt.Libvirt {
	return c.libvirt
}

// Disconnected is closed when the connection to the daemon is lost or
// closed.
func (c *Client) Disconnected() <-chan struct{} {
	return c.libvirt.Disconnected()
}

// URI returns the name the connection was opened with, or DefaultURI when
// the daemon chose the driver.
func (c *Client) URI() string {
	if c.name == "" {
		return DefaultURI
	}
	return c.name
}

// Ping verifies the connection is still alive.
func (c *Client) Ping() error {
	if c.libvirt == nil {
		return fmt.Errorf("client not connected")
	}

	if _, err := c.libvirt.ConnectGetLibVersion(); err != nil {
		return fmt.Errorf("libvirt connection is dead: %w", err)
	}
	return nil
}
