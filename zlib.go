package guess

import (
	"io"

	"github.com/klauspost/compress/zlib"
)

// Zlib facilitates zlib decompression.
type Zlib struct{}

// Interface guards
var (
	_ Decoder = (*Zlib)(nil)
	_ Probe   = (*Zlib)(nil)
)

func (Zlib) Format() Format {
	return FormatZlib
}

func (Zlib) EncodingOffset() int {
	return 2
}

func (Zlib) Ratio() float64 {
	return 1
}

func (Zlib) Length() int {
	return 2
}

// Match validates the CMF and FLG bytes: deflate, a window of at most 32K and the header checksum.
func (Zlib) Match(stream io.Reader) (bool, error) {
	buf, err := readAtMost(stream, 2)
	if err != nil {
		return false, err
	}
	if len(buf) < 2 {
		return false, nil
	}

	cmf, flg := buf[0], buf[1]
	if cmf&0x0f != 8 || cmf>>4 > 7 {
		return false, nil
	}

	return (uint16(cmf)<<8|uint16(flg))%31 == 0, nil
}

func (Zlib) OpenReader(r io.Reader) (io.ReadCloser, error) {
	return zlib.NewReader(r)
}
