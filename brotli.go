package guess

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"
)

// Brotli facilitates brotli decompression.
type Brotli struct {
	// ProbeLength is how many bytes Match tries to decode, 64 when zero.
	ProbeLength int
}

// Interface guards
var (
	_ Decoder = (*Brotli)(nil)
	_ Probe   = (*Brotli)(nil)
)

func (Brotli) Format() Format {
	return FormatBrotli
}

func (Brotli) EncodingOffset() int {
	return 0
}

func (Brotli) Ratio() float64 {
	return 1
}

func (br Brotli) Length() int {
	if br.ProbeLength <= 0 {
		return 64
	}
	return br.ProbeLength
}

// Match tries to decode the first bytes.
// Brotli does not have well-defined file headers or a magic number,
// plain text that happens to decode is rejected.
func (br Brotli) Match(stream io.Reader) (bool, error) {
	input, err := readAtMost(stream, br.Length())
	if err != nil {
		return false, err
	}
	if len(input) == 0 || isText(input) {
		return false, nil
	}

	r := brotli.NewReader(bytes.NewReader(input))
	buf := make([]byte, 64)

	n, err := r.Read(buf)
	if n == 0 || (err != nil && err != io.EOF && err != io.ErrUnexpectedEOF) {
		return false, nil
	}

	// decompressed data identical to the input is not compressed
	return !bytes.HasPrefix(input, buf[:n]), nil
}

func (Brotli) OpenReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(brotli.NewReader(r)), nil
}

// isText reports whether data is printable ASCII and common whitespace.
func isText(data []byte) bool {
	for _, b := range data {
		if (b < 32 || b > 126) && (b < 9 || b > 13) {
			return false
		}
	}
	return true
}
