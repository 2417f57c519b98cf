// Package storage provides libvirt storage pool and volume management for
// the shell's pool-* and vol-* commands.
//
// This package handles:
//   - Pool lifecycle (define, build, start, destroy, undefine, autostart,
//     refresh, list, info)
//   - Volume operations (create, delete, list, path, upload)
//
// Pool and volume definitions are generated with libvirt.org/go/libvirtxml,
// and pool details (type, target path) are read back from the pool XML.
//
// Consumer-Side Interface:
//
// LibvirtClient lists the libvirt operations the Manager uses;
// *libvirt.Libvirt satisfies it implicitly.
//
// Example usage:
//
//	mgr := storage.NewManager(client.Libvirt())
//
//	if _, err := mgr.DefinePool(ctx, storage.PoolSpec{
//	    Name:   "images",
//	    Type:   storage.PoolTypeDir,
//	    Target: "/var/lib/libvirt/images",
//	}); err != nil {
//	    return err
//	}
//
//	spec := storage.VolumeSpec{
//	    Name:     "web.qcow2",
//	    Format:   storage.VolumeFormatQCOW2,
//	    Capacity: 20 << 30,
//	}
//	if err := mgr.CreateVolume(ctx, "images", spec); err != nil {
//	    return err
//	}
package storage
