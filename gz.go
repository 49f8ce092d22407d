package guess

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/pgzip"
)

// Gz facilitates gzip decompression.
type Gz struct {
	// Use a fast parallel Gzip implementation.
	// This is effective only for large streams (about 1 MB or more).
	Multithreaded bool
}

// magic number at the beginning of gzip files
var gzipHeader = []byte{0x1f, 0x8b, 0x08}

// Interface guards
var (
	_ Decoder = (*Gz)(nil)
	_ Probe   = (*Gz)(nil)
)

func (Gz) Format() Format {
	return FormatGzip
}

func (Gz) EncodingOffset() int {
	return 10
}

func (Gz) Ratio() float64 {
	return 1
}

func (Gz) Length() int {
	return len(gzipHeader)
}

func (Gz) Match(stream io.Reader) (bool, error) {
	// match file header
	buf, err := readAtMost(stream, len(gzipHeader))
	if err != nil {
		return false, err
	}

	return bytes.Equal(buf, gzipHeader), nil
}

func (gz Gz) OpenReader(r io.Reader) (io.ReadCloser, error) {
	if gz.Multithreaded {
		return pgzip.NewReader(r)
	}

	return gzip.NewReader(r)
}
