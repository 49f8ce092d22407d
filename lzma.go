package guess

import (
	"encoding/binary"
	"io"
	"math/bits"

	"github.com/ulikunitz/xz/lzma"
)

// Lzma facilitates decompression of the legacy .lzma format.
type Lzma struct{}

// lzmaHeaderLen is the size of the properties, dictionary size and uncompressed size fields.
const lzmaHeaderLen = 13

// Interface guards
var (
	_ Decoder = (*Lzma)(nil)
	_ Probe   = (*Lzma)(nil)
)

func (Lzma) Format() Format {
	return FormatLZMA
}

func (Lzma) EncodingOffset() int {
	return lzmaHeaderLen
}

func (Lzma) Ratio() float64 {
	return 1
}

func (Lzma) Length() int {
	return lzmaHeaderLen
}

// Match checks the header fields since the format has no magic number.
func (Lzma) Match(stream io.Reader) (bool, error) {
	buf, err := readAtMost(stream, lzmaHeaderLen)
	if err != nil {
		return false, err
	}
	if len(buf) < lzmaHeaderLen {
		return false, nil
	}

	// lc, lp and pb packed as (pb*5+lp)*9+lc
	if buf[0] >= 9*5*5 {
		return false, nil
	}

	// dictionary sizes are 2^n or 2^n+2^(n-1)
	dict := binary.LittleEndian.Uint32(buf[1:5])
	if dict < 1<<12 {
		return false, nil
	}
	if trimmed := dict >> bits.TrailingZeros32(dict); trimmed != 1 && trimmed != 3 {
		return false, nil
	}

	// unknown size or a plausible one
	size := binary.LittleEndian.Uint64(buf[5:13])

	return size == ^uint64(0) || size < 1<<48, nil
}

func (Lzma) OpenReader(r io.Reader) (io.ReadCloser, error) {
	lr, err := lzma.NewReader(r)
	if err != nil {
		return nil, err
	}

	return io.NopCloser(lr), nil
}
