// Package libvirt opens the shell's connection to libvirtd on top of
// github.com/digitalocean/go-libvirt.
//
// Open turns a connection URI into a dialer. Local URIs use the unix
// socket (the read-only one for -r, or the path given by ?socket=), and
// +tcp URIs or URIs naming a host use the plain TCP listener. The driver
// part of the URI is passed to the daemon untouched:
//
//	c, err := libvirt.Open(ctx, "qemu+tcp://node1/system", libvirt.Options{})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
// IsTransportError and ErrorCode classify failures so the dispatcher knows
// when the connection has to be reopened.
//
// No interface for the libvirt API lives here. internal/vm,
// internal/storage and internal/commands declare the calls they make and
// *libvirt.Libvirt satisfies them.
package libvirt
