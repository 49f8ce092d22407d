package guess

import (
	"archive/tar"
	"bytes"
	"io"
)

// tarBlockSize is the size of a tar header record.
const tarBlockSize = 512

// Tar recognizes tar archives by parsing the first header.
type Tar struct{}

// Interface guards
var _ Probe = (*Tar)(nil)

func (Tar) Length() int {
	return tarBlockSize
}

func (t Tar) Match(stream io.Reader) (bool, error) {
	buf, err := readAtMost(stream, t.Length())
	if err != nil {
		return false, err
	}
	if len(buf) < tarBlockSize {
		return false, nil
	}

	// match file header
	r := tar.NewReader(bytes.NewReader(buf))
	_, err = r.Next()

	return err == nil, nil
}
