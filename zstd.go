package guess

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zstd"
)

const (
	zstdMagicSkippableStart = 0x184D2A50
	zstdMagicSkippableMask  = 0xFFFFFFF0
)

// Zstd facilitates Zstandard decompression.
type Zstd struct {
	DecoderOptions []zstd.DOption
}

type errorCloser struct {
	*zstd.Decoder
}

// magic number at the beginning of Zstandard files
var zstdHeader = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Interface guards
var (
	_ Decoder = (*Zstd)(nil)
	_ Probe   = (*Zstd)(nil)
)

func (Zstd) Format() Format {
	return FormatZstd
}

// EncodingOffset is the largest frame header.
func (Zstd) EncodingOffset() int {
	return 18
}

func (Zstd) Ratio() float64 {
	return 1
}

func (Zstd) Length() int {
	return 8
}

// Match accepts Zstandard frames and skippable frames.
func (Zstd) Match(stream io.Reader) (bool, error) {
	buf, err := readAtMost(stream, 8)
	if err != nil {
		return false, err
	}

	if bytes.HasPrefix(buf, zstdHeader) {
		return true, nil
	}

	// skippable frame, magic number from 0x184D2A50 to 0x184D2A5F
	if len(buf) < 8 {
		return false, nil
	}

	return binary.LittleEndian.Uint32(buf[:4])&zstdMagicSkippableMask == zstdMagicSkippableStart, nil
}

func (zs Zstd) OpenReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := zstd.NewReader(r, zs.DecoderOptions...)
	if err != nil {
		return nil, err
	}

	return errorCloser{zr}, nil
}

func (ec errorCloser) Close() error {
	ec.Decoder.Close()
	return nil
}
