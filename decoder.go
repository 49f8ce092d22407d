package guess

import (
	"bytes"
	"errors"
	"io"
	"math"
)

// Decode decodes p in full with d.
func Decode(d Decoder, p []byte) ([]byte, error) {
	rc, err := openDecoded(d, bytes.NewReader(p))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// EncodedLength returns how many encoded bytes are needed to decode n bytes.
func EncodedLength(d Decoder, n int) int64 {
	if n <= 0 {
		return int64(d.EncodingOffset())
	}
	return int64(d.EncodingOffset()) + int64(math.Ceil(float64(n)*d.Ratio()))
}

// openDecoded opens a decoded view of r whose failures are reported as *DecodeError.
func openDecoded(d Decoder, r io.Reader) (io.ReadCloser, error) {
	rc, err := d.OpenReader(r)
	if err != nil {
		return nil, asDecodeError(d.Format(), err)
	}

	return &decodedReader{rc: rc, format: d.Format()}, nil
}

// decodedReader reports decoder failures as *DecodeError.
type decodedReader struct {
	rc     io.ReadCloser
	format Format
}

func (r *decodedReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if err != nil && err != io.EOF {
		err = asDecodeError(r.format, err)
	}
	return n, err
}

func (r *decodedReader) Close() error {
	return r.rc.Close()
}

func asDecodeError(f Format, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &DecodeError{Format: f, Err: err}
}
