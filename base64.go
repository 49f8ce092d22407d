package guess

import (
	"encoding/base64"
	"io"
)

// Base64 decodes standard base64 text.
// Line breaks, spaces and tabs between the characters are skipped.
type Base64 struct{}

// Interface guards
var _ Decoder = (*Base64)(nil)

func (Base64) Format() Format {
	return FormatBase64
}

func (Base64) EncodingOffset() int {
	return 0
}

// Ratio accounts for four characters per three bytes plus line breaks.
func (Base64) Ratio() float64 {
	return 1.4
}

func (Base64) OpenReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(base64.NewDecoder(base64.StdEncoding, &blankFilter{r: r})), nil
}

// blankFilter drops spaces and tabs, the base64 decoder skips line breaks itself.
type blankFilter struct {
	r io.Reader
}

func (f *blankFilter) Read(p []byte) (int, error) {
	for {
		n, err := f.r.Read(p)

		kept := 0
		for _, c := range p[:n] {
			if c != ' ' && c != '\t' {
				p[kept] = c
				kept++
			}
		}

		if kept > 0 || err != nil {
			return kept, err
		}
	}
}
