package cache

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte(`{"feature":"heating.circuits.0.operating.programs.normal"},`), 40)

	gz, err := compressPayload(payload)
	if err != nil {
		t.Fatalf("compressPayload: %v", err)
	}
	if len(gz) >= len(payload) {
		t.Errorf("compressed %d bytes into %d, expected savings", len(payload), len(gz))
	}

	raw, err := decompressPayload(gz)
	if err != nil {
		t.Fatalf("decompressPayload: %v", err)
	}
	if !bytes.Equal(raw, payload) {
		t.Error("round trip altered the payload")
	}
}

func TestDecompressInvalidInput(t *testing.T) {
	if _, err := decompressPayload([]byte("not gzip at all")); err == nil {
		t.Error("expected error for invalid gzip input")
	}
}

func TestWorthCompressing(t *testing.T) {
	tests := []struct {
		name       string
		raw        int
		compressed int
		want       bool
	}{
		{"well under threshold", 1000, 500, true},
		{"exactly at threshold", 1000, 800, false},
		{"just under threshold", 1000, 799, true},
		{"barely smaller", 1000, 990, false},
		{"zero raw size", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := worthCompressing(tt.raw, tt.compressed); got != tt.want {
				t.Errorf("worthCompressing(%d, %d) = %v, want %v", tt.raw, tt.compressed, got, tt.want)
			}
		})
	}
}

func TestWorthCompressing_RandomDataSkipped(t *testing.T) {
	payload := make([]byte, 2048)
	if _, err := rand.Read(payload); err != nil {
		t.Fatal(err)
	}

	gz, err := compressPayload(payload)
	if err != nil {
		t.Fatalf("compressPayload: %v", err)
	}
	if worthCompressing(len(payload), len(gz)) {
		t.Error("incompressible random data passed the savings threshold")
	}
}

func TestChecksum(t *testing.T) {
	a := []byte(`{"value":48.5}`)
	b := []byte(`{"value":52.0}`)

	if checksum(a) != checksum(a) {
		t.Error("checksum not deterministic")
	}
	if checksum(a) == checksum(b) {
		t.Error("different payloads produced the same checksum")
	}
}
