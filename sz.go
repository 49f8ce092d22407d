package guess

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/s2"
)

// Sz facilitates Snappy framed decompression.
type Sz struct{}

var snappyHeader = []byte{0xff, 0x06, 0x00, 0x00, 0x73, 0x4e, 0x61, 0x50, 0x70, 0x59}

// Interface guards
var (
	_ Decoder = (*Sz)(nil)
	_ Probe   = (*Sz)(nil)
)

func (Sz) Format() Format {
	return FormatSnappy
}

// EncodingOffset covers the stream identifier and a chunk header with its checksum.
func (Sz) EncodingOffset() int {
	return len(snappyHeader) + 8
}

func (Sz) Ratio() float64 {
	return 1
}

func (Sz) Length() int {
	return len(snappyHeader)
}

func (sz Sz) Match(stream io.Reader) (bool, error) {
	// match file header
	buf, err := readAtMost(stream, len(snappyHeader))
	if err != nil {
		return false, err
	}

	return bytes.Equal(buf, snappyHeader), nil
}

func (Sz) OpenReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(s2.NewReader(r)), nil
}
