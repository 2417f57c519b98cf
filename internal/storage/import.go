package storage

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// ImportVolume creates volName in poolName sized to the file at path and
// uploads the file into it. An empty format is detected from the file
// header. The volume is removed again when the upload fails.
func (m *Manager) ImportVolume(ctx context.Context, poolName, volName, path string, format VolumeFormat) (VolumeFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cannot read %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("cannot stat %s: %w", path, err)
	}
	if format == "" {
		if format, err = DetectVolumeFormat(f); err != nil {
			return "", fmt.Errorf("cannot import %s: %w", path, err)
		}
	}

	size := uint64(st.Size())
	spec := VolumeSpec{Name: volName, Format: format, Capacity: size}
	if err := m.CreateVolume(ctx, poolName, spec); err != nil {
		return "", err
	}
	if err := m.UploadVolume(ctx, poolName, volName, f, size); err != nil {
		if derr := m.DeleteVolume(ctx, poolName, volName); derr != nil {
			log.Warnf("failed to remove partially imported vol %s: %v", volName, derr)
		}
		return "", err
	}
	return format, nil
}
