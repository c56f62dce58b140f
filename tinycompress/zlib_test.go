package tinycompress

import (
	"bytes"
	"compress/zlib"
	"io"
	"testing"
)

func TestWriterRoundTrip(t *testing.T) {
	input := []byte(`{"version":"coildrv-0.1.0","commands":{"identify offset=%u count=%c":1}}`)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if _, err := w.Write(input); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	got, err := Decompress(buf.Bytes())
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if !bytes.Equal(got, input) {
		t.Errorf("Round trip mismatch: got %q, want %q", got, input)
	}
}

func TestWriterStdlibCompatible(t *testing.T) {
	// The host may use the standard zlib reader; the output must be a
	// valid zlib stream, not just something our own decoder accepts.
	input := []byte("stored block compatibility check")

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if _, err := w.Write(input); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	r, err := zlib.NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("stdlib zlib rejected stream: %v", err)
	}
	defer r.Close()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("stdlib zlib read failed: %v", err)
	}
	if !bytes.Equal(got, input) {
		t.Errorf("stdlib round trip mismatch: got %q, want %q", got, input)
	}
}

func TestWriterEmptyInput(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	got, err := Decompress(buf.Bytes())
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected empty output, got %d bytes", len(got))
	}
}

func TestDecompressRejectsCorruption(t *testing.T) {
	input := []byte("checksum coverage")

	var buf bytes.Buffer
	w := NewWriter(&buf)
	if _, err := w.Write(input); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data := buf.Bytes()
	data[9] ^= 0xFF // Flip a payload byte

	if _, err := Decompress(data); err != ErrBadChecksum {
		t.Errorf("Expected ErrBadChecksum, got %v", err)
	}
}
