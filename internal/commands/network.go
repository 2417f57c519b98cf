package commands

import (
	"fmt"
	"sort"

	"github.com/digitalocean/go-libvirt"

	"github.com/jbweber/virsh/internal/cmdline"
	"github.com/jbweber/virsh/internal/shell"
)

// Network list selection flags.
const (
	listNetworksInactive = 1
	listNetworksActive   = 2
)

func networkOpt() cmdline.OptDef {
	return dataOpt("network", "network name")
}

func networkGroup(api apiFunc) *cmdline.Group {
	return &cmdline.Group{
		Name:    "Networking",
		Keyword: "network",
		Commands: []*cmdline.CmdDef{
			{
				Name:    "net-autostart",
				Opts:    []cmdline.OptDef{networkOpt(), boolOpt("disable", "disable autostarting")},
				Info:    cmdline.Info{Help: "autostart a network", Desc: "Configure a network to be automatically started at boot."},
				Handler: shell.Handler(runNetAutostart(api)),
			},
			{
				Name:    "net-define",
				Opts:    []cmdline.OptDef{dataOpt("file", "file containing an XML network description")},
				Info:    cmdline.Info{Help: "define (but don't start) a network from an XML file", Desc: "Define a network."},
				Handler: shell.Handler(runNetDefine(api)),
			},
			{
				Name:    "net-destroy",
				Opts:    []cmdline.OptDef{networkOpt()},
				Info:    cmdline.Info{Help: "destroy (stop) a network", Desc: "Forcefully stop a given network."},
				Handler: shell.Handler(runNetAction(api, "destroyed", func(lv hypervisor, net libvirt.Network) error { return lv.NetworkDestroy(net) })),
			},
			{
				Name:    "net-dumpxml",
				Opts:    []cmdline.OptDef{networkOpt()},
				Info:    cmdline.Info{Help: "network information in XML", Desc: "Output the network information as an XML dump to stdout."},
				Handler: shell.Handler(runNetDumpXML(api)),
			},
			{
				Name:    "net-edit",
				Opts:    []cmdline.OptDef{networkOpt()},
				Info:    cmdline.Info{Help: "edit XML configuration for a network", Desc: "Edit the XML configuration for a network."},
				Handler: shell.Handler(runNetEdit(api)),
			},
			{
				Name: "net-list",
				Opts: []cmdline.OptDef{
					boolOpt("inactive", "list inactive networks"),
					boolOpt("all", "list inactive & active networks"),
				},
				Info:    cmdline.Info{Help: "list networks", Desc: "Returns list of networks."},
				Handler: shell.Handler(runNetList(api)),
			},
			{
				Name:    "net-start",
				Opts:    []cmdline.OptDef{dataOpt("network", "name of the inactive network")},
				Info:    cmdline.Info{Help: "start a (previously defined) inactive network", Desc: "Start a network."},
				Handler: shell.Handler(runNetAction(api, "started", func(lv hypervisor, net libvirt.Network) error { return lv.NetworkCreate(net) })),
			},
			{
				Name:    "net-undefine",
				Opts:    []cmdline.OptDef{networkOpt()},
				Info:    cmdline.Info{Help: "undefine an inactive network", Desc: "Undefine the configuration for an inactive network."},
				Handler: shell.Handler(runNetAction(api, "has been undefined", func(lv hypervisor, net libvirt.Network) error { return lv.NetworkUndefine(net) })),
			},
		},
	}
}

func network(ctl *shell.Control, cmd *cmdline.Cmd, api apiFunc) (hypervisor, libvirt.Network, error) {
	lv, err := api(ctl)
	if err != nil {
		return nil, libvirt.Network{}, err
	}
	name, _, err := cmd.OptString("network")
	if err != nil {
		return nil, libvirt.Network{}, err
	}
	net, err := lv.NetworkLookupByName(name)
	if err != nil {
		return nil, libvirt.Network{}, fmt.Errorf("failed to get network '%s': %w", name, err)
	}
	return lv, net, nil
}

func runNetAction(api apiFunc, done string, action func(hypervisor, libvirt.Network) error) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		lv, net, err := network(ctl, cmd, api)
		if err != nil {
			return err
		}
		if err := action(lv, net); err != nil {
			return fmt.Errorf("failed: network %s not %s: %w", net.Name, done, err)
		}
		ctl.Print("Network %s %s\n", net.Name, done)
		return nil
	}
}

func runNetList(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		lv, err := api(ctl)
		if err != nil {
			return err
		}

		flags := listNetworksActive
		if cmd.OptBool("inactive") {
			flags = listNetworksInactive
		}
		if cmd.OptBool("all") {
			flags = listNetworksActive | listNetworksInactive
		}
		nets, _, err := lv.ConnectListAllNetworks(1, libvirt.ConnectListAllNetworksFlags(flags))
		if err != nil {
			return fmt.Errorf("failed to list networks: %w", err)
		}
		sort.Slice(nets, func(i, j int) bool { return nets[i].Name < nets[j].Name })

		ctl.Print(" %-20s %-10s %-10s\n", "Name", "State", "Autostart")
		ctl.Print("-----------------------------------------\n")
		for _, net := range nets {
			state := "inactive"
			if active, err := lv.NetworkIsActive(net); err == nil && active == 1 {
				state = "active"
			}
			autostart := "no"
			if v, err := lv.NetworkGetAutostart(net); err != nil {
				autostart = "-"
			} else if v != 0 {
				autostart = "yes"
			}
			ctl.Print(" %-20s %-10s %-10s\n", net.Name, state, autostart)
		}
		return nil
	}
}

func runNetDumpXML(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		lv, net, err := network(ctl, cmd, api)
		if err != nil {
			return err
		}
		xml, err := lv.NetworkGetXMLDesc(net, 0)
		if err != nil {
			return fmt.Errorf("failed to get xml of network %s: %w", net.Name, err)
		}
		ctl.Print("%s", xml)
		return nil
	}
}

func runNetAutostart(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		lv, net, err := network(ctl, cmd, api)
		if err != nil {
			return err
		}
		var v int32 = 1
		if cmd.OptBool("disable") {
			v = 0
		}
		if err := lv.NetworkSetAutostart(net, v); err != nil {
			if v == 1 {
				return fmt.Errorf("failed to mark network %s as autostarted: %w", net.Name, err)
			}
			return fmt.Errorf("failed to unmark network %s as autostarted: %w", net.Name, err)
		}
		if v == 1 {
			ctl.Print("Network %s marked as autostarted\n", net.Name)
		} else {
			ctl.Print("Network %s unmarked as autostarted\n", net.Name)
		}
		return nil
	}
}

func runNetDefine(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		lv, err := api(ctl)
		if err != nil {
			return err
		}
		path, xml, err := readFileOpt(cmd, "file")
		if err != nil {
			return err
		}
		net, err := lv.NetworkDefineXML(xml)
		if err != nil {
			return fmt.Errorf("failed to define network from %s: %w", path, err)
		}
		ctl.Print("Network %s defined from %s\n", net.Name, path)
		return nil
	}
}

func runNetEdit(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		lv, net, err := network(ctl, cmd, api)
		if err != nil {
			return err
		}
		// 1 is VIR_NETWORK_XML_INACTIVE.
		current, err := lv.NetworkGetXMLDesc(net, 1)
		if err != nil {
			return fmt.Errorf("failed to get xml of network %s: %w", net.Name, err)
		}
		changed, err := editXML(ctl, current, func(xml string) error {
			if _, err := lv.NetworkDefineXML(xml); err != nil {
				return fmt.Errorf("failed to define network %s: %w", net.Name, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if !changed {
			ctl.Print("Network %s XML configuration not changed.\n", net.Name)
			return nil
		}
		ctl.Print("Network %s XML configuration edited.\n", net.Name)
		return nil
	}
}
