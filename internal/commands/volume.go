package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jbweber/virsh/internal/cmdline"
	"github.com/jbweber/virsh/internal/shell"
	"github.com/jbweber/virsh/internal/storage"
)

func volumeGroup(api apiFunc) *cmdline.Group {
	poolName := cmdline.OptDef{Name: "pool", Kind: cmdline.OptString, Flags: cmdline.FlagRequired | cmdline.FlagRequiresValue, Help: "pool name"}
	return &cmdline.Group{
		Name:    "Storage Volume",
		Keyword: "volume",
		Commands: []*cmdline.CmdDef{
			{
				Name: "vol-create-as",
				Opts: []cmdline.OptDef{
					poolOpt(),
					dataOpt("name", "name of the volume"),
					dataOpt("capacity", "size of the vol with optional k,M,G,T suffix"),
					stringOpt("allocation", "initial allocation size with optional k,M,G,T suffix"),
					stringOpt("format", "file format type raw,qcow2"),
					stringOpt("backing-vol", "the backing volume if taking a snapshot"),
				},
				Info:    cmdline.Info{Help: "create a volume from a set of args", Desc: "Create a vol."},
				Handler: shell.Handler(runVolCreateAs(api)),
			},
			{
				Name:    "vol-delete",
				Opts:    []cmdline.OptDef{dataOpt("vol", "vol name"), poolName},
				Info:    cmdline.Info{Help: "delete a vol", Desc: "Delete a given vol."},
				Handler: shell.Handler(runVolDelete(api)),
			},
			{
				Name: "vol-import",
				Opts: []cmdline.OptDef{
					poolName,
					dataOpt("name", "name of the volume"),
					dataOpt("file", "local image file"),
					stringOpt("format", "file format type raw,qcow2; detected from the file when omitted"),
				},
				Info:    cmdline.Info{Help: "create a volume from a local image file", Desc: "Create a vol sized to a local file and upload the file into it."},
				Handler: shell.Handler(runVolImport(api)),
			},
			{
				Name:    "vol-list",
				Opts:    []cmdline.OptDef{poolOpt(), formatOpt()},
				Info:    cmdline.Info{Help: "list vols", Desc: "Returns list of vols by pool."},
				Handler: shell.Handler(runVolList(api)),
			},
			{
				Name:    "vol-path",
				Opts:    []cmdline.OptDef{dataOpt("vol", "vol name"), poolName},
				Info:    cmdline.Info{Help: "returns the volume path for a given volume name", Desc: "Returns the volume path for a given volume name."},
				Handler: shell.Handler(runVolPath(api)),
			},
			{
				Name: "vol-upload",
				Opts: []cmdline.OptDef{
					dataOpt("vol", "vol name"),
					dataOpt("file", "file"),
					poolName,
					intOpt("length", "amount of data to upload"),
				},
				Info:    cmdline.Info{Help: "upload a file into a volume", Desc: "Upload a file into a volume"},
				Handler: shell.Handler(runVolUpload(api)),
			},
		},
	}
}

// parseSize reads a byte count with an optional k, M, G or T suffix
// (powers of 1024).
func parseSize(s string) (uint64, error) {
	mult := uint64(1)
	num := s
	if n := len(s); n > 0 {
		switch strings.ToLower(s[n-1:]) {
		case "b":
			num = s[:n-1]
		case "k":
			mult, num = 1<<10, s[:n-1]
		case "m":
			mult, num = 1<<20, s[:n-1]
		case "g":
			mult, num = 1<<30, s[:n-1]
		case "t":
			mult, num = 1<<40, s[:n-1]
		}
	}
	v, err := strconv.ParseUint(num, 10, 64)
	if err != nil || v > (1<<64-1)/mult {
		return 0, fmt.Errorf("malformed size %s", s)
	}
	return v * mult, nil
}

func runVolCreateAs(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		pool, _, err := cmd.OptString("pool")
		if err != nil {
			return err
		}
		var spec storage.VolumeSpec
		if spec.Name, _, err = cmd.OptString("name"); err != nil {
			return err
		}
		capacity, _, err := cmd.OptString("capacity")
		if err != nil {
			return err
		}
		if spec.Capacity, err = parseSize(capacity); err != nil {
			return err
		}
		if alloc, ok, err := cmd.OptString("allocation"); err != nil {
			return err
		} else if ok {
			if spec.Allocation, err = parseSize(alloc); err != nil {
				return err
			}
		}
		format, _, err := cmd.OptString("format")
		if err != nil {
			return err
		}
		spec.Format = storage.VolumeFormat(format)
		if spec.BackingVolume, _, err = cmd.OptString("backing-vol"); err != nil {
			return err
		}

		mgr, err := manager(ctl, api)
		if err != nil {
			return err
		}
		if err := mgr.CreateVolume(ctl.Context(), pool, spec); err != nil {
			return err
		}
		ctl.Print("Vol %s created\n", spec.Name)
		return nil
	}
}

func runVolImport(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		pool, _, err := cmd.OptString("pool")
		if err != nil {
			return err
		}
		name, _, err := cmd.OptString("name")
		if err != nil {
			return err
		}
		path, _, err := cmd.OptString("file")
		if err != nil {
			return err
		}
		format, _, err := cmd.OptString("format")
		if err != nil {
			return err
		}

		mgr, err := manager(ctl, api)
		if err != nil {
			return err
		}
		got, err := mgr.ImportVolume(ctl.Context(), pool, name, path, storage.VolumeFormat(format))
		if err != nil {
			return err
		}
		ctl.Print("Vol %s created from %s (%s)\n", name, path, got)
		return nil
	}
}

// volumeArgs returns the manager and the --pool and <vol> values.
func volumeArgs(ctl *shell.Control, cmd *cmdline.Cmd, api apiFunc) (*storage.Manager, string, string, error) {
	pool, _, err := cmd.OptString("pool")
	if err != nil {
		return nil, "", "", err
	}
	vol, _, err := cmd.OptString("vol")
	if err != nil {
		return nil, "", "", err
	}
	mgr, err := manager(ctl, api)
	if err != nil {
		return nil, "", "", err
	}
	return mgr, pool, vol, nil
}

func runVolDelete(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		mgr, pool, vol, err := volumeArgs(ctl, cmd, api)
		if err != nil {
			return err
		}
		if err := mgr.DeleteVolume(ctl.Context(), pool, vol); err != nil {
			return err
		}
		ctl.Print("Vol %s deleted\n", vol)
		return nil
	}
}

func runVolPath(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		mgr, pool, vol, err := volumeArgs(ctl, cmd, api)
		if err != nil {
			return err
		}
		path, err := mgr.GetVolumePath(ctl.Context(), pool, vol)
		if err != nil {
			return err
		}
		ctl.Print("%s\n", path)
		return nil
	}
}

func runVolList(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		f, err := formatter(cmd)
		if err != nil {
			return err
		}
		pool, _, err := cmd.OptString("pool")
		if err != nil {
			return err
		}
		mgr, err := manager(ctl, api)
		if err != nil {
			return err
		}
		vols, err := mgr.ListVolumes(ctl.Context(), pool)
		if err != nil {
			return err
		}
		out, err := f.FormatVolumeList(vols)
		if err != nil {
			return err
		}
		ctl.Print("%s", out)
		return nil
	}
}

func runVolUpload(api apiFunc) shell.Handler {
	return func(ctl *shell.Control, cmd *cmdline.Cmd) error {
		mgr, pool, vol, err := volumeArgs(ctl, cmd, api)
		if err != nil {
			return err
		}
		path, _, err := cmd.OptString("file")
		if err != nil {
			return err
		}
		length, ok, err := cmd.OptULongLong("length")
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		if !ok {
			st, err := f.Stat()
			if err != nil {
				return fmt.Errorf("cannot stat %s: %w", path, err)
			}
			length = uint64(st.Size())
		}

		return mgr.UploadVolume(ctl.Context(), pool, vol, f, length)
	}
}
