package commands

import (
	"fmt"

	"github.com/jbweber/virsh/internal/cmdline"
	"github.com/jbweber/virsh/internal/shell"
)

func hostGroup(api apiFunc) *cmdline.Group {
	return &cmdline.Group{
		Name:    "Host and Hypervisor",
		Keyword: "host",
		Commands: []*cmdline.CmdDef{
			{
				Name:    "capabilities",
				Info:    cmdline.Info{Help: "capabilities", Desc: "Returns capabilities of hypervisor/driver."},
				Handler: shell.Handler(runCapabilities(api)),
			},
			{
				Name:    "freecell",
				Opts:    []cmdline.OptDef{intOpt("cellno", "NUMA cell number")},
				Info:    cmdline.Info{Help: "NUMA free memory", Desc: "display available free memory for the NUMA cell."},
				Handler: shell.Handler(runFreecell(api)),
			},
			{
				Name:    "sysinfo",
				Info:    cmdline.Info{Help: "print the hypervisor sysinfo", Desc: "output an XML string for the hypervisor sysinfo, if available"},
				Handler: shell.Handler(runSysinfo(api)),
			},
		},
	}
}

func runCapabilities(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		lv, err := api(ctl)
		if err != nil {
			return err
		}
		caps, err := lv.ConnectGetCapabilities()
		if err != nil {
			return fmt.Errorf("failed to get capabilities: %w", err)
		}
		ctl.Print("%s\n", caps)
		return nil
	}
}

func runSysinfo(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		lv, err := api(ctl)
		if err != nil {
			return err
		}
		info, err := lv.ConnectGetSysinfo(0)
		if err != nil {
			return fmt.Errorf("failed to get sysinfo: %w", err)
		}
		ctl.Print("%s", info)
		return nil
	}
}

func runFreecell(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		cell, ok, err := cmd.OptInt("cellno")
		if err != nil {
			return err
		}
		lv, err := api(ctl)
		if err != nil {
			return err
		}
		if !ok {
			free, err := lv.NodeGetFreeMemory()
			if err != nil {
				return fmt.Errorf("failed to get free memory: %w", err)
			}
			ctl.Print("%s: %d kB\n", "Total", free/1024)
			return nil
		}
		cells, err := lv.NodeGetCellsFreeMemory(int32(cell), 1)
		if err != nil {
			return fmt.Errorf("failed to get free memory for NUMA cell number %d: %w", cell, err)
		}
		if len(cells) == 0 {
			return fmt.Errorf("NUMA cell number %d does not exist", cell)
		}
		ctl.Print("%d: %d kB\n", cell, cells[0]/1024)
		return nil
	}
}
