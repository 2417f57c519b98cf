package commands

import (
	"fmt"

	"libvirt.org/go/libvirtxml"

	"github.com/jbweber/virsh/internal/cmdline"
	"github.com/jbweber/virsh/internal/shell"
	"github.com/jbweber/virsh/internal/xend"
)

// nativeXenSexpr is the only native format the shell converts.
const nativeXenSexpr = "xen-sxpr"

func nativeArgs(cmd *cmdline.Cmd) (int, error) {
	format, _, err := cmd.OptString("format")
	if err != nil {
		return 0, err
	}
	if format != nativeXenSexpr {
		return 0, fmt.Errorf("unsupported config type %s", format)
	}
	version, ok, err := cmd.OptInt("xend-version")
	if err != nil {
		return 0, err
	}
	if !ok {
		return xend.DefaultConfigVersion, nil
	}
	if version < 1 {
		return 0, fmt.Errorf("invalid xend configuration version %d", version)
	}
	return version, nil
}

func runFromNative(ctl *shell.Control, cmd *cmdline.Cmd) error {
	version, err := nativeArgs(cmd)
	if err != nil {
		return err
	}
	path, config, err := readFileOpt(cmd, "config")
	if err != nil {
		return err
	}

	def, err := xend.ParseString(config, xend.ParseOptions{ConfigVersion: version})
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", path, err)
	}
	xml, err := xend.ToXML(def).Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal domain XML: %w", err)
	}
	ctl.Print("%s\n", xml)
	return nil
}

func runToNative(ctl *shell.Control, cmd *cmdline.Cmd) error {
	version, err := nativeArgs(cmd)
	if err != nil {
		return err
	}
	path, xml, err := readFileOpt(cmd, "xml")
	if err != nil {
		return err
	}

	var dom libvirtxml.Domain
	if err := dom.Unmarshal(xml); err != nil {
		return fmt.Errorf("failed to parse domain XML in %s: %w", path, err)
	}
	def, err := xend.FromXML(&dom)
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", path, err)
	}
	sexpr, err := xend.Format(def, version)
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", path, err)
	}
	ctl.Print("%s\n", sexpr)
	return nil
}
