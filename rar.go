package guess

import (
	"bytes"
	"errors"
	"io"

	"github.com/nwaples/rardecode/v2"
)

// Rar recognizes RAR 1.5 and RAR 5 archives.
type Rar struct {
	// Password to open archives with encrypted headers.
	Password string
}

var (
	rarHeaderV1_5 = []byte("Rar!\x1a\x07\x00")     // v1.5
	rarHeaderV5_0 = []byte("Rar!\x1a\x07\x01\x00") // v5.0
)

// Interface guards
var _ Probe = (*Rar)(nil)

func (Rar) Length() int {
	return 64
}

// Match checks the signature, then lets the archive reader validate what follows.
// A header cut short by the probe window is not a mismatch.
func (r Rar) Match(stream io.Reader) (bool, error) {
	buf, err := readAtMost(stream, r.Length())
	if err != nil {
		return false, err
	}

	if !bytes.HasPrefix(buf, rarHeaderV1_5) && !bytes.HasPrefix(buf, rarHeaderV5_0) {
		return false, nil
	}

	var opts []rardecode.Option
	if r.Password != "" {
		opts = append(opts, rardecode.Password(r.Password))
	}

	_, err = rardecode.NewReader(bytes.NewReader(buf), opts...)
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true, nil
	}

	return false, nil
}
