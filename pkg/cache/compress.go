package cache

import (
	"bytes"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
)

// compressionSavings is the minimum fraction gzip must shave off the raw
// payload before the compressed form is stored.
const compressionSavings = 0.20

// checksum computes the content checksum used for the unchanged-data
// short-circuit on Set.
func checksum(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// compressPayload gzips the payload.
func compressPayload(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// decompressPayload gunzips a stored payload.
func decompressPayload(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	return out, nil
}

// worthCompressing reports whether the compressed form saves enough over
// the raw payload to be worth storing.
func worthCompressing(rawSize, compressedSize int) bool {
	if rawSize <= 0 {
		return false
	}
	return float64(compressedSize) < float64(rawSize)*(1-compressionSavings)
}
