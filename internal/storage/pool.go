package storage

import (
	"context"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	"github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"libvirt.org/go/libvirtxml"
)

const (
	listPoolsInactive = 1
	listPoolsActive   = 2
)

// ListOptions selects which pools ListPools returns.
type ListOptions struct {
	Active   bool
	Inactive bool
}

// DefinePool defines a persistent pool from spec without starting it.
func (m *Manager) DefinePool(ctx context.Context, spec PoolSpec) (*PoolInfo, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool spec: %w", err)
	}

	poolXML, err := generatePoolXML(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to generate pool XML: %w", err)
	}

	if _, err := m.client.StoragePoolDefineXML(poolXML, 0); err != nil {
		return nil, fmt.Errorf("failed to define pool: %w", err)
	}

	return m.GetPoolInfo(ctx, spec.Name)
}

// poolOp runs fn against the named pool and wraps its error with verb.
func (m *Manager) poolOp(name, verb string, fn func(libvirt.StoragePool) error) error {
	pool, err := m.lookupPool(name)
	if err != nil {
		return err
	}
	if err := fn(pool); err != nil {
		return fmt.Errorf("failed to %s pool %s: %w", verb, name, err)
	}
	return nil
}

// BuildPool builds the underlying storage of a pool, e.g. its directory.
func (m *Manager) BuildPool(_ context.Context, name string) error {
	return m.poolOp(name, "build", func(p libvirt.StoragePool) error {
		return m.client.StoragePoolBuild(p, 0)
	})
}

// StartPool starts an inactive pool.
func (m *Manager) StartPool(_ context.Context, name string) error {
	return m.poolOp(name, "start", func(p libvirt.StoragePool) error {
		return m.client.StoragePoolCreate(p, 0)
	})
}

// StopPool stops an active pool. Its definition is kept.
func (m *Manager) StopPool(_ context.Context, name string) error {
	return m.poolOp(name, "destroy", m.client.StoragePoolDestroy)
}

// UndefinePool removes the definition of a pool, stopping it first when
// it runs.
func (m *Manager) UndefinePool(_ context.Context, name string) error {
	return m.poolOp(name, "undefine", func(p libvirt.StoragePool) error {
		state, _, _, _, err := m.client.StoragePoolGetInfo(p)
		if err != nil {
			return err
		}
		if libvirt.StoragePoolState(state) == libvirt.StoragePoolRunning {
			if err := m.client.StoragePoolDestroy(p); err != nil {
				return err
			}
		}
		return m.client.StoragePoolUndefine(p)
	})
}

// SetPoolAutostart marks a pool to start, or not, when the host boots.
func (m *Manager) SetPoolAutostart(_ context.Context, name string, enable bool) error {
	var v int32
	if enable {
		v = 1
	}
	return m.poolOp(name, "set autostart of", func(p libvirt.StoragePool) error {
		return m.client.StoragePoolSetAutostart(p, v)
	})
}

// ListPools lists storage pools ordered by name.
func (m *Manager) ListPools(_ context.Context, opts ListOptions) ([]PoolInfo, error) {
	var flags libvirt.ConnectListAllStoragePoolsFlags
	if opts.Active {
		flags |= listPoolsActive
	}
	if opts.Inactive {
		flags |= listPoolsInactive
	}
	if flags == 0 {
		return []PoolInfo{}, nil
	}

	pools, _, err := m.client.ConnectListAllStoragePools(1, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}

	infos := make([]PoolInfo, 0, len(pools))
	for _, p := range pools {
		info, err := m.poolInfo(p)
		if err != nil {
			log.Debugf("skipping pool %s: %v", p.Name, err)
			continue
		}
		infos = append(infos, *info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// GetPoolInfo gets detailed information about a storage pool.
func (m *Manager) GetPoolInfo(_ context.Context, name string) (*PoolInfo, error) {
	pool, err := m.lookupPool(name)
	if err != nil {
		return nil, err
	}
	return m.poolInfo(pool)
}

// poolInfo combines the runtime counters of p with the type and target
// path of its definition.
func (m *Manager) poolInfo(p libvirt.StoragePool) (*PoolInfo, error) {
	st, capacity, allocation, available, err := m.client.StoragePoolGetInfo(p)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool info: %w", err)
	}
	desc, err := m.client.StoragePoolGetXMLDesc(p, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool XML: %w", err)
	}
	var def libvirtxml.StoragePool
	if err := def.Unmarshal(desc); err != nil {
		return nil, fmt.Errorf("failed to parse pool XML: %w", err)
	}

	state := libvirt.StoragePoolState(st)
	info := &PoolInfo{
		Name:       p.Name,
		Type:       PoolType(def.Type),
		UUID:       uuid.UUID(p.UUID).String(),
		State:      poolStateString(state),
		Active:     state == libvirt.StoragePoolRunning,
		Capacity:   capacity,
		Allocation: allocation,
		Available:  available,
	}
	if def.Target != nil {
		info.Path = def.Target.Path
	}
	if v, err := m.client.StoragePoolGetAutostart(p); err == nil {
		info.Autostart = v != 0
	}
	if v, err := m.client.StoragePoolIsPersistent(p); err == nil {
		info.Persistent = v == 1
	}
	return info, nil
}

// RefreshPool rescans the volumes of a pool.
func (m *Manager) RefreshPool(_ context.Context, name string) error {
	return m.poolOp(name, "refresh", func(p libvirt.StoragePool) error {
		return m.client.StoragePoolRefresh(p, 0)
	})
}

func poolStateString(state libvirt.StoragePoolState) string {
	switch state {
	case libvirt.StoragePoolInactive:
		return "inactive"
	case libvirt.StoragePoolBuilding:
		return "building"
	case libvirt.StoragePoolRunning:
		return "running"
	case libvirt.StoragePoolDegraded:
		return "degraded"
	case libvirt.StoragePoolInaccessible:
		return "inaccessible"
	}
	return "unknown"
}

func generatePoolXML(spec PoolSpec) (string, error) {
	def := libvirtxml.StoragePool{Type: string(spec.Type), Name: spec.Name}
	if spec.Target != "" {
		def.Target = &libvirtxml.StoragePoolTarget{Path: spec.Target}
	}

	var src libvirtxml.StoragePoolSource
	if spec.SourceHost != "" {
		src.Host = append(src.Host, libvirtxml.StoragePoolSourceHost{Name: spec.SourceHost})
	}
	if spec.SourcePath != "" {
		src.Dir = &libvirtxml.StoragePoolSourceDir{Path: spec.SourcePath}
	}
	if spec.SourceDevice != "" {
		src.Device = append(src.Device, libvirtxml.StoragePoolSourceDevice{Path: spec.SourceDevice})
	}
	if src.Host != nil || src.Dir != nil || src.Device != nil {
		def.Source = &src
	}

	out, err := def.Marshal()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.TrimPrefix(out, strings.TrimSpace(xml.Header))), nil
}
