package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/jbweber/virsh/internal/cmdline"
	"github.com/jbweber/virsh/internal/shell"
	"github.com/jbweber/virsh/internal/vm"
)

func runMigrate(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		timeout, err := parseTimeout(cmd)
		if err != nil {
			return err
		}
		dest, _, err := cmd.OptString("desturi")
		if err != nil {
			return err
		}
		lv, dom, err := domain(ctl, cmd, api, "domain")
		if err != nil {
			return err
		}

		// The source daemon drives the job and connects to dest itself.
		opts := vm.MigrateOptions{
			DestURI:        dest,
			Live:           cmd.OptBool("live"),
			PeerToPeer:     true,
			Tunnelled:      cmd.OptBool("tunnelled"),
			Persistent:     cmd.OptBool("persistent"),
			UndefineSource: cmd.OptBool("undefinesource"),
			Suspend:        cmd.OptBool("suspend"),
			Timeout:        time.Duration(timeout) * time.Second,
			Interrupted: func() bool {
				if !ctl.InterruptCaught() {
					return false
				}
				ctl.ResetInterrupt()
				return true
			},
		}
		if cmd.OptBool("verbose") {
			opts.Progress = ctl.Err
		}
		ctl.ResetInterrupt()
		return vm.Migrate(ctl.Context(), lv, dom, opts)
	}
}

// editXML lets the user edit current in an external editor and passes the
// result to define. It reports whether anything changed.
func editXML(ctl *shell.Control, current string, define func(xml string) error) (bool, error) {
	tmp, err := shell.CreateTempXML(current)
	if err != nil {
		return false, err
	}
	defer func() { _ = os.Remove(tmp) }()

	if err := ctl.RunEditor(tmp); err != nil {
		return false, err
	}
	edited, err := shell.ReadTempXML(tmp)
	if err != nil {
		return false, err
	}
	if edited == current {
		return false, nil
	}
	if err := define(edited); err != nil {
		return false, err
	}
	return true, nil
}

func runEdit(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		lv, dom, err := domain(ctl, cmd, api, "domain")
		if err != nil {
			return err
		}
		current, err := vm.DumpXML(lv, dom, true, true)
		if err != nil {
			return err
		}
		changed, err := editXML(ctl, current, func(xml string) error {
			if _, err := lv.DomainDefineXML(xml); err != nil {
				return fmt.Errorf("failed to define domain %s: %w", dom.Name, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if !changed {
			ctl.Print("Domain %s XML configuration not changed.\n", dom.Name)
			return nil
		}
		ctl.Print("Domain %s XML configuration edited.\n", dom.Name)
		return nil
	}
}
