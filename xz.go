package guess

import (
	"bytes"
	"io"

	"github.com/ulikunitz/xz"
	xi2xz "github.com/xi2/xz"
)

// Xz facilitates xz decompression.
type Xz struct {
	// DictMax bounds the dictionary size the decoder accepts, 0 means no bound.
	// Streams needing a larger dictionary fail to decode.
	DictMax uint32
}

// magic number at the beginning of xz files.
var xzHeader = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}

// Interface guards
var (
	_ Decoder = (*Xz)(nil)
	_ Probe   = (*Xz)(nil)
)

func (Xz) Format() Format {
	return FormatXZ
}

// EncodingOffset covers the stream header and a typical block header.
func (Xz) EncodingOffset() int {
	return 24
}

func (Xz) Ratio() float64 {
	return 1
}

func (Xz) Length() int {
	return len(xzHeader)
}

func (Xz) Match(stream io.Reader) (bool, error) {
	// match file header
	buf, err := readAtMost(stream, len(xzHeader))
	if err != nil {
		return false, err
	}

	return bytes.Equal(buf, xzHeader), nil
}

func (x Xz) OpenReader(r io.Reader) (io.ReadCloser, error) {
	if x.DictMax > 0 {
		xr, err := xi2xz.NewReader(r, x.DictMax)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	}

	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, err
	}

	return io.NopCloser(xr), nil
}
