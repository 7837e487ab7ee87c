// Package codec implements the compressed string encoding used for
// queue messages and persisted task payloads: Brotli-compressed bytes
// wrapped in standard base64.
package codec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

// CompressString compresses s with Brotli and returns the base64 form.
func CompressString(s string) (string, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write([]byte(s)); err != nil {
		return "", fmt.Errorf("failed to compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to flush compressor: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecompressString reverses CompressString.
func DecompressString(s string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}
	r := brotli.NewReader(bytes.NewReader(raw))
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to decompress: %w", err)
	}
	return string(out), nil
}
