package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// qcow2Magic opens every QCOW2 header: "QFI" followed by 0xfb.
var qcow2Magic = []byte{'Q', 'F', 'I', 0xfb}

// DetectVolumeFormat reads the header of r. QCOW2 images are recognised
// by their magic; anything else is uploaded as raw bytes.
func DetectVolumeFormat(r io.ReaderAt) (VolumeFormat, error) {
	head := make([]byte, len(qcow2Magic))
	n, err := r.ReadAt(head, 0)
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return "", fmt.Errorf("image is empty")
		}
		return "", fmt.Errorf("failed to read image header: %w", err)
	}
	if bytes.Equal(head[:n], qcow2Magic) {
		return VolumeFormatQCOW2, nil
	}
	return VolumeFormatRaw, nil
}
