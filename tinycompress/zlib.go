// Package tinycompress produces zlib-format output using stored DEFLATE
// blocks only. TinyGo's compress/flate pulls in too much flash for the
// embedded targets, and the host side only needs a valid zlib container
// around the data dictionary.
package tinycompress

import (
	"errors"
	"hash/adler32"
	"io"
)

var (
	ErrBadHeader   = errors.New("tinycompress: invalid zlib header")
	ErrBadBlock    = errors.New("tinycompress: unsupported DEFLATE block type")
	ErrBadLength   = errors.New("tinycompress: block length check failed")
	ErrBadChecksum = errors.New("tinycompress: adler32 mismatch")
	ErrTruncated   = errors.New("tinycompress: truncated input")
)

// Writer accumulates input and emits a zlib stream on Close
type Writer struct {
	output   io.Writer
	inputBuf []byte
}

// NewWriter creates a zlib writer. The buffer is sized upfront; growing
// it during Write can hang TinyGo's cores scheduler on allocation.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		output:   w,
		inputBuf: make([]byte, 0, 8192),
	}
}

// Write implements io.Writer
func (w *Writer) Write(p []byte) (n int, err error) {
	if cap(w.inputBuf) < len(w.inputBuf)+len(p) {
		newBuf := make([]byte, len(w.inputBuf), len(w.inputBuf)+len(p))
		copy(newBuf, w.inputBuf)
		w.inputBuf = newBuf
	}
	w.inputBuf = append(w.inputBuf, p...)
	return len(p), nil
}

// Close writes the accumulated data as a single stored block with zlib
// framing. Stored blocks carry at most 64KiB; the dictionary is well
// under that.
func (w *Writer) Close() error {
	length := uint16(len(w.inputBuf))
	nlength := ^length

	// Zlib header, then final stored block header with LEN/NLEN
	prefix := []byte{
		0x78, 0x9C,
		0x01,
		byte(length), byte(length >> 8),
		byte(nlength), byte(nlength >> 8),
	}
	if _, err := w.output.Write(prefix); err != nil {
		return err
	}

	if _, err := w.output.Write(w.inputBuf); err != nil {
		return err
	}

	checksum := adler32.Checksum(w.inputBuf)
	trailer := []byte{
		byte(checksum >> 24),
		byte(checksum >> 16),
		byte(checksum >> 8),
		byte(checksum),
	}
	_, err := w.output.Write(trailer)
	return err
}

// Decompress expands a zlib stream made of stored blocks. Used by the
// host to unpack the data dictionary and by tests to verify round trips.
func Decompress(compressed []byte) ([]byte, error) {
	if len(compressed) < 11 {
		return nil, ErrTruncated
	}
	if compressed[0] != 0x78 {
		return nil, ErrBadHeader
	}

	pos := 2
	var result []byte
	adler := adler32.New()

	for {
		if pos >= len(compressed)-4 {
			return nil, ErrTruncated
		}
		blockHeader := compressed[pos]
		pos++

		isFinal := blockHeader&0x01 != 0
		if (blockHeader>>1)&0x03 != 0 {
			return nil, ErrBadBlock
		}

		if pos+4 > len(compressed) {
			return nil, ErrTruncated
		}
		length := int(compressed[pos]) | int(compressed[pos+1])<<8
		nlength := int(compressed[pos+2]) | int(compressed[pos+3])<<8
		pos += 4

		if length != ^nlength&0xFFFF {
			return nil, ErrBadLength
		}
		if pos+length > len(compressed)-4 {
			return nil, ErrTruncated
		}

		result = append(result, compressed[pos:pos+length]...)
		adler.Write(compressed[pos : pos+length])
		pos += length

		if isFinal {
			break
		}
	}

	if pos+4 > len(compressed) {
		return nil, ErrTruncated
	}
	expected := uint32(compressed[pos])<<24 |
		uint32(compressed[pos+1])<<16 |
		uint32(compressed[pos+2])<<8 |
		uint32(compressed[pos+3])
	if adler.Sum32() != expected {
		return nil, ErrBadChecksum
	}

	return result, nil
}
