package storage

import "fmt"

// PoolType represents the type of storage pool backend.
type PoolType string

const (
	PoolTypeDir     PoolType = "dir"     // Directory-based storage
	PoolTypeFS      PoolType = "fs"      // Pre-formatted block device
	PoolTypeNetFS   PoolType = "netfs"   // Network filesystem mount
	PoolTypeLogical PoolType = "logical" // LVM volume group
	PoolTypeDisk    PoolType = "disk"    // Partitioned disk
	PoolTypeISCSI   PoolType = "iscsi"   // iSCSI target
)

// ParsePoolType validates a pool type name.
func ParsePoolType(s string) (PoolType, error) {
	switch t := PoolType(s); t {
	case PoolTypeDir, PoolTypeFS, PoolTypeNetFS, PoolTypeLogical, PoolTypeDisk, PoolTypeISCSI:
		return t, nil
	}
	return "", fmt.Errorf("unsupported pool type: %s", s)
}

// PoolSpec describes a pool to define.
type PoolSpec struct {
	Name         string   // Pool name
	Type         PoolType // Backend type
	SourceHost   string   // Optional: netfs/iscsi server
	SourcePath   string   // Optional: exported directory or block device
	SourceDevice string   // Optional: device for fs/logical/disk pools
	Target       string   // Target path on the host
}

// Validate checks if the pool spec is valid.
func (p *PoolSpec) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pool name is required")
	}
	if _, err := ParsePoolType(string(p.Type)); err != nil {
		return err
	}
	if p.Type == PoolTypeNetFS && (p.SourceHost == "" || p.SourcePath == "") {
		return fmt.Errorf("netfs pools require a source host and path")
	}
	if p.Target == "" && p.Type != PoolTypeLogical {
		return fmt.Errorf("pool target path is required")
	}
	return nil
}

// VolumeFormat represents the disk format.
type VolumeFormat string

const (
	VolumeFormatQCOW2 VolumeFormat = "qcow2" // QCOW2 format
	VolumeFormatRaw   VolumeFormat = "raw"   // Raw format
)

// VolumeSpec specifies how to create a storage volume.
type VolumeSpec struct {
	Name          string       // Volume name
	Format        VolumeFormat // Disk format; empty lets the pool decide
	Capacity      uint64       // Capacity in bytes
	Allocation    uint64       // Initial allocation in bytes
	BackingVolume string       // Optional: backing volume name for qcow2 snapshots
}

// Validate checks if the volume spec is valid.
func (v *VolumeSpec) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("volume name is required")
	}
	if v.Format != "" && v.Format != VolumeFormatQCOW2 && v.Format != VolumeFormatRaw {
		return fmt.Errorf("invalid volume format: %s (must be qcow2 or raw)", v.Format)
	}
	if v.Capacity == 0 {
		return fmt.Errorf("volume capacity must be greater than 0")
	}
	if v.Allocation > v.Capacity {
		return fmt.Errorf("volume allocation exceeds capacity")
	}
	if v.BackingVolume != "" && v.Format != VolumeFormatQCOW2 {
		return fmt.Errorf("backing volumes are only supported for qcow2 format")
	}
	return nil
}

// PoolInfo contains information about a storage pool.
type PoolInfo struct {
	Name       string   `json:"name" yaml:"name"`
	Type       PoolType `json:"type" yaml:"type"`
	Path       string   `json:"path,omitempty" yaml:"path,omitempty"`
	UUID       string   `json:"uuid" yaml:"uuid"`
	State      string   `json:"state" yaml:"state"`
	Active     bool     `json:"active" yaml:"active"`
	Autostart  bool     `json:"autostart" yaml:"autostart"`
	Persistent bool     `json:"persistent" yaml:"persistent"`
	Capacity   uint64   `json:"capacity" yaml:"capacity"`
	Allocation uint64   `json:"allocation" yaml:"allocation"`
	Available  uint64   `json:"available" yaml:"available"`
}

// VolumeInfo contains information about a storage volume.
type VolumeInfo struct {
	Name       string `json:"name" yaml:"name"`
	Path       string `json:"path" yaml:"path"`
	Pool       string `json:"pool" yaml:"pool"`
	Capacity   uint64 `json:"capacity" yaml:"capacity"`
	Allocation uint64 `json:"allocation" yaml:"allocation"`
}

// PrettyCapacity scales a byte count to the largest binary unit that keeps
// the value at or above one.
func PrettyCapacity(bytes uint64) (float64, string) {
	const unit = 1024
	units := []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}
	v := float64(bytes)
	i := 0
	for v >= unit && i < len(units)-1 {
		v /= unit
		i++
	}
	return v, units[i]
}
