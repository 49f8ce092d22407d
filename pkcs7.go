package guess

import (
	"bytes"
	"io"

	"go.mozilla.org/pkcs7"
)

// PKCS7 extracts the content of PKCS #7 signed data.
// The whole structure is read before any byte is returned.
type PKCS7 struct{}

// DER encoded object identifier 1.2.840.113549.1.7, the last arc is the content type
var pkcs7OID = []byte{0x06, 0x09, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x07}

// Interface guards
var (
	_ Decoder = (*PKCS7)(nil)
	_ Probe   = (*PKCS7)(nil)
)

func (PKCS7) Format() Format {
	return FormatPKCS7
}

// EncodingOffset covers the outer structures before the content of a typical signed message.
func (PKCS7) EncodingOffset() int {
	return 64
}

func (PKCS7) Ratio() float64 {
	return 1
}

func (PKCS7) Length() int {
	return 2 + 4 + len(pkcs7OID) + 1
}

// Match looks for a SEQUENCE starting with a PKCS #7 content type.
func (p PKCS7) Match(stream io.Reader) (bool, error) {
	buf, err := readAtMost(stream, p.Length())
	if err != nil {
		return false, err
	}
	if len(buf) < 2 || buf[0] != 0x30 {
		return false, nil
	}

	// skip the SEQUENCE length, 0x80 is the BER indefinite form
	rest := buf[2:]
	if l := buf[1]; l > 0x80 {
		n := int(l & 0x7f)
		if n > 4 || len(rest) < n {
			return false, nil
		}
		rest = rest[n:]
	}

	if len(rest) < len(pkcs7OID)+1 || !bytes.HasPrefix(rest, pkcs7OID) {
		return false, nil
	}

	contentType := rest[len(pkcs7OID)]

	return contentType >= 1 && contentType <= 6, nil
}

func (PKCS7) OpenReader(r io.Reader) (io.ReadCloser, error) {
	der, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	p7, err := pkcs7.Parse(der)
	if err != nil {
		return nil, err
	}

	return io.NopCloser(bytes.NewReader(p7.Content)), nil
}
