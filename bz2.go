package guess

import (
	"bytes"
	"io"

	"github.com/dsnet/compress/bzip2"
)

// Bz2 facilitates bzip2 decompression.
type Bz2 struct{}

// magic number at the beginning of bzip2 files, followed by the block size digit
var bzip2Header = []byte("BZh")

// Interface guards
var (
	_ Decoder = (*Bz2)(nil)
	_ Probe   = (*Bz2)(nil)
)

func (Bz2) Format() Format {
	return FormatBzip2
}

// EncodingOffset covers the stream header and the first block header.
func (Bz2) EncodingOffset() int {
	return 14
}

func (Bz2) Ratio() float64 {
	return 1
}

func (Bz2) Length() int {
	return len(bzip2Header) + 1
}

func (bz Bz2) Match(stream io.Reader) (bool, error) {
	// match file header
	buf, err := readAtMost(stream, bz.Length())
	if err != nil {
		return false, err
	}

	if len(buf) < bz.Length() || !bytes.HasPrefix(buf, bzip2Header) {
		return false, nil
	}

	level := buf[len(bzip2Header)]

	return level >= '1' && level <= '9', nil
}

func (Bz2) OpenReader(r io.Reader) (io.ReadCloser, error) {
	return bzip2.NewReader(r, nil)
}
