package guess

import (
	"bytes"
	"fmt"
	"io"

	"github.com/bodgit/sevenzip"
)

// magic number at the beginning of 7z archives, followed by the format version
var sevenZipHeader = []byte("7z\xBC\xAF\x27\x1C")

// SevenZip verifies 7z archives by reading their header database.
type SevenZip struct {
	// The password, if dealing with an archive with encrypted headers.
	Password string
}

func (SevenZip) Format() Format {
	return FormatSevenZip
}

func (SevenZip) matchHeader(head []byte) bool {
	return bytes.HasPrefix(head, sevenZipHeader)
}

func (z SevenZip) identify(src io.ReaderAt, size int64) (Identification, error) {
	head := make([]byte, len(sevenZipHeader)+2)
	if _, err := src.ReadAt(head, 0); err != nil {
		return Identification{Format: FormatUnknown}, err
	}

	var err error
	if z.Password != "" {
		_, err = sevenzip.NewReaderWithPassword(src, size, z.Password)
	} else {
		_, err = sevenzip.NewReader(src, size)
	}
	if err != nil {
		return Identification{Format: FormatUnknown}, err
	}

	return Identification{
		Format:  FormatSevenZip,
		Version: fmt.Sprintf("%d.%d", head[6], head[7]),
		Name:    "7z archive",
	}, nil
}
