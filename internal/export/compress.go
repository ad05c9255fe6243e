package export

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/ulikunitz/xz"
)

// Compression selects how an artifact is compressed before storage.
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionSnappy Compression = "snappy"
	CompressionXZ     Compression = "xz"
)

// Valid reports whether c is a known compression.
func (c Compression) Valid() bool {
	switch c {
	case "", CompressionNone, CompressionSnappy, CompressionXZ:
		return true
	}
	return false
}

// Compress returns a compressed copy of a. The name gets the matching
// extension and the original content type is replaced.
func Compress(a *Artifact, c Compression) (*Artifact, error) {
	if a == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	out := *a

	switch c {
	case "", CompressionNone:
		return a, nil
	case CompressionSnappy:
		w := snappy.NewBufferedWriter(&buf)
		if _, err := w.Write(a.Data); err != nil {
			return nil, fmt.Errorf("snappy compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("snappy compress: %w", err)
		}
		out.Name += ".sz"
		out.ContentType = "application/x-snappy-framed"
	case CompressionXZ:
		w, err := xz.NewWriter(&buf)
		if err != nil {
			return nil, fmt.Errorf("xz compress: %w", err)
		}
		if _, err := w.Write(a.Data); err != nil {
			return nil, fmt.Errorf("xz compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("xz compress: %w", err)
		}
		out.Name += ".xz"
		out.ContentType = "application/x-xz"
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}

	out.Data = buf.Bytes()
	return &out, nil
}

// Decompress reverses Compress.
func Decompress(data []byte, c Compression) ([]byte, error) {
	var r io.Reader
	switch c {
	case "", CompressionNone:
		return data, nil
	case CompressionSnappy:
		r = snappy.NewReader(bytes.NewReader(data))
	case CompressionXZ:
		xr, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("xz decompress: %w", err)
		}
		r = xr
	default:
		return nil, fmt.Errorf("unknown compression %q", c)
	}
	return io.ReadAll(r)
}
