package guess

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// JSON recognizes documents starting with an object or an array.
type JSON struct {
	// ProbeLength is how many bytes are tokenized, 512 when zero.
	ProbeLength int
}

// Interface guards
var _ Probe = (*JSON)(nil)

func (j JSON) Length() int {
	if j.ProbeLength <= 0 {
		return 512
	}
	return j.ProbeLength
}

// Match reads the opening delimiter and the token after it.
// Running out of bytes inside the window is accepted.
func (j JSON) Match(stream io.Reader) (bool, error) {
	buf, err := readAtMost(stream, j.Length())
	if err != nil {
		return false, err
	}

	dec := json.NewDecoder(bytes.NewReader(buf))

	tok, err := dec.Token()
	if err != nil {
		return false, nil
	}
	if d, ok := tok.(json.Delim); !ok || (d != '{' && d != '[') {
		return false, nil
	}

	_, err = dec.Token()
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true, nil
	}

	return false, nil
}
