package commands

import (
	"context"
	"fmt"

	"github.com/jbweber/virsh/internal/cmdline"
	"github.com/jbweber/virsh/internal/shell"
	"github.com/jbweber/virsh/internal/storage"
)

func poolOpt() cmdline.OptDef {
	return dataOpt("pool", "pool name")
}

func poolGroup(api apiFunc) *cmdline.Group {
	return &cmdline.Group{
		Name:    "Storage Pool",
		Keyword: "pool",
		Commands: []*cmdline.CmdDef{
			{
				Name:    "pool-autostart",
				Opts:    []cmdline.OptDef{poolOpt(), boolOpt("disable", "disable autostarting")},
				Info:    cmdline.Info{Help: "autostart a pool", Desc: "Configure a pool to be automatically started at boot."},
				Handler: shell.Handler(runPoolAutostart(api)),
			},
			{
				Name:    "pool-build",
				Opts:    []cmdline.OptDef{poolOpt()},
				Info:    cmdline.Info{Help: "build a pool", Desc: "Build a given pool."},
				Handler: shell.Handler(runPoolAction(api, "built", (*storage.Manager).BuildPool)),
			},
			{
				Name: "pool-define-as",
				Opts: []cmdline.OptDef{
					dataOpt("name", "name of the pool"),
					dataOpt("type", "type of the pool"),
					stringOpt("source-host", "source-host for underlying storage"),
					stringOpt("source-path", "source path for underlying storage"),
					stringOpt("source-dev", "source device for underlying storage"),
					stringOpt("target", "target for underlying storage"),
				},
				Info:    cmdline.Info{Help: "define a pool from a set of args", Desc: "Define a pool."},
				Handler: shell.Handler(runPoolDefineAs(api)),
			},
			{
				Name:    "pool-destroy",
				Opts:    []cmdline.OptDef{poolOpt()},
				Info:    cmdline.Info{Help: "destroy (stop) a pool", Desc: "Forcefully stop a given pool. Raw data in the pool is untouched"},
				Handler: shell.Handler(runPoolAction(api, "destroyed", (*storage.Manager).StopPool)),
			},
			{
				Name:    "pool-info",
				Opts:    []cmdline.OptDef{poolOpt(), formatOpt()},
				Info:    cmdline.Info{Help: "storage pool information", Desc: "Returns basic information about the storage pool."},
				Handler: shell.Handler(runPoolInfo(api)),
			},
			{
				Name: "pool-list",
				Opts: []cmdline.OptDef{
					boolOpt("inactive", "list inactive pools"),
					boolOpt("all", "list inactive & active pools"),
					formatOpt(),
				},
				Info:    cmdline.Info{Help: "list pools", Desc: "Returns list of pools."},
				Handler: shell.Handler(runPoolList(api)),
			},
			{
				Name:    "pool-refresh",
				Opts:    []cmdline.OptDef{poolOpt()},
				Info:    cmdline.Info{Help: "refresh a pool", Desc: "Refresh a given pool."},
				Handler: shell.Handler(runPoolAction(api, "refreshed", (*storage.Manager).RefreshPool)),
			},
			{
				Name:    "pool-start",
				Opts:    []cmdline.OptDef{dataOpt("pool", "name of the inactive pool")},
				Info:    cmdline.Info{Help: "start a (previously defined) inactive pool", Desc: "Start a pool."},
				Handler: shell.Handler(runPoolAction(api, "started", (*storage.Manager).StartPool)),
			},
			{
				Name:    "pool-undefine",
				Opts:    []cmdline.OptDef{poolOpt()},
				Info:    cmdline.Info{Help: "undefine an inactive pool", Desc: "Undefine the configuration for an inactive pool."},
				Handler: shell.Handler(runPoolAction(api, "has been undefined", (*storage.Manager).UndefinePool)),
			},
		},
	}
}

func manager(ctl *shell.Control, api apiFunc) (*storage.Manager, error) {
	lv, err := api(ctl)
	if err != nil {
		return nil, err
	}
	return storage.NewManager(lv), nil
}

// runPoolAction runs a manager call on the named pool and reports it as
// "Pool <name> <done>".
func runPoolAction(api apiFunc, done string, action func(*storage.Manager, context.Context, string) error) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		mgr, err := manager(ctl, api)
		if err != nil {
			return err
		}
		name, _, err := cmd.OptString("pool")
		if err != nil {
			return err
		}
		if err := action(mgr, ctl.Context(), name); err != nil {
			return err
		}
		ctl.Print("Pool %s %s\n", name, done)
		return nil
	}
}

func runPoolList(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		f, err := formatter(cmd)
		if err != nil {
			return err
		}
		mgr, err := manager(ctl, api)
		if err != nil {
			return err
		}

		opts := storage.ListOptions{Active: true}
		if cmd.OptBool("inactive") {
			opts = storage.ListOptions{Inactive: true}
		}
		if cmd.OptBool("all") {
			opts = storage.ListOptions{Active: true, Inactive: true}
		}
		pools, err := mgr.ListPools(ctl.Context(), opts)
		if err != nil {
			return err
		}
		out, err := f.FormatPoolList(pools)
		if err != nil {
			return err
		}
		ctl.Print("%s", out)
		return nil
	}
}

func runPoolInfo(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		f, err := formatter(cmd)
		if err != nil {
			return err
		}
		mgr, err := manager(ctl, api)
		if err != nil {
			return err
		}
		name, _, err := cmd.OptString("pool")
		if err != nil {
			return err
		}
		info, err := mgr.GetPoolInfo(ctl.Context(), name)
		if err != nil {
			return err
		}
		out, err := f.FormatPool(*info)
		if err != nil {
			return err
		}
		ctl.Print("%s", out)
		return nil
	}
}

func runPoolAutostart(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		mgr, err := manager(ctl, api)
		if err != nil {
			return err
		}
		name, _, err := cmd.OptString("pool")
		if err != nil {
			return err
		}
		enable := !cmd.OptBool("disable")
		if err := mgr.SetPoolAutostart(ctl.Context(), name, enable); err != nil {
			return err
		}
		if enable {
			ctl.Print("Pool %s marked as autostarted\n", name)
		} else {
			ctl.Print("Pool %s unmarked as autostarted\n", name)
		}
		return nil
	}
}

func runPoolDefineAs(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		var spec storage.PoolSpec
		var err error
		if spec.Name, _, err = cmd.OptString("name"); err != nil {
			return err
		}
		typ, _, err := cmd.OptString("type")
		if err != nil {
			return err
		}
		if spec.Type, err = storage.ParsePoolType(typ); err != nil {
			return err
		}
		for opt, dst := range map[string]*string{
			"source-host": &spec.SourceHost,
			"source-path": &spec.SourcePath,
			"source-dev":  &spec.SourceDevice,
			"target":      &spec.Target,
		} {
			if *dst, _, err = cmd.OptString(opt); err != nil {
				return err
			}
		}

		mgr, err := manager(ctl, api)
		if err != nil {
			return err
		}
		if _, err := mgr.DefinePool(ctl.Context(), spec); err != nil {
			return fmt.Errorf("failed to define pool %s: %w", spec.Name, err)
		}
		ctl.Print("Pool %s defined\n", spec.Name)
		return nil
	}
}
