package guess

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Lz4 facilitates LZ4 frame decompression.
type Lz4 struct{}

var lz4Header = []byte{0x04, 0x22, 0x4d, 0x18}

// Interface guards
var (
	_ Decoder = (*Lz4)(nil)
	_ Probe   = (*Lz4)(nil)
)

func (Lz4) Format() Format {
	return FormatLZ4
}

// EncodingOffset is the largest frame descriptor plus a block size.
func (Lz4) EncodingOffset() int {
	return 23
}

func (Lz4) Ratio() float64 {
	return 1
}

func (Lz4) Length() int {
	return len(lz4Header)
}

func (Lz4) Match(stream io.Reader) (bool, error) {
	// match file header
	buf, err := readAtMost(stream, len(lz4Header))
	if err != nil {
		return false, err
	}

	return bytes.Equal(buf, lz4Header), nil
}

func (Lz4) OpenReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}
