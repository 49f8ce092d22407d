package guess

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

const (
	// Additional compression methods not offered by archive/zip.
	ZipMethodBzip2 = 12
	ZipMethodLzma  = 14
	ZipMethodZstd  = 93
	ZipMethodXz    = 95
)

var (
	zipHeader = []byte("PK\x03\x04")

	// headers of empty zip files end with 0x05,0x06 instead of 0x03,0x04
	zipEmptyHeader = []byte("PK\x05\x06")
)

// zipLzmaEOS is the general purpose flag of LZMA entries ending with an end marker.
const zipLzmaEOS = 0x2

// Zip verifies zip archives by reading their central directory and the start of the first entry.
type Zip struct{}

func (Zip) Format() Format {
	return FormatZIP
}

func (Zip) matchHeader(head []byte) bool {
	return bytes.HasPrefix(head, zipHeader) || bytes.HasPrefix(head, zipEmptyHeader)
}

// identify reports the highest version needed to extract an entry.
func (z Zip) identify(src io.ReaderAt, size int64) (Identification, error) {
	zr, err := zip.NewReader(src, size)
	if err != nil {
		return Identification{Format: FormatUnknown}, err
	}
	registerZipDecompressors(zr)

	var version uint16
	checked := false
	for _, f := range zr.File {
		if f.ReaderVersion > version {
			version = f.ReaderVersion
		}
		if checked || f.FileInfo().IsDir() {
			continue
		}

		checked = true
		if err := z.checkEntry(f); err != nil {
			return Identification{Format: FormatUnknown}, fmt.Errorf("entry %s: %w", f.Name, err)
		}
	}

	id := Identification{Format: FormatZIP, Name: "ZIP archive"}
	if version > 0 {
		id.Version = fmt.Sprintf("%d.%d", version/10, version%10)
	}

	return id, nil
}

// checkEntry decompresses the first bytes of an entry.
// Methods without a decompressor are accepted.
func (Zip) checkEntry(f *zip.File) error {
	if f.Method == ZipMethodLzma {
		return checkLzmaEntry(f)
	}

	rc, err := f.Open()
	if errors.Is(err, zip.ErrAlgorithm) {
		return nil
	}
	if err != nil {
		return err
	}
	defer rc.Close()

	_, err = readAtMost(rc, 512)

	return err
}

// checkLzmaEntry reads an LZMA entry through the .lzma header rebuilt from its properties.
func checkLzmaEntry(f *zip.File) error {
	raw, err := f.OpenRaw()
	if err != nil {
		return err
	}

	size := int64(-1)
	if f.Flags&zipLzmaEOS == 0 {
		size = int64(f.UncompressedSize64)
	}

	lr, err := zipLzmaReader(raw, size)
	if err != nil {
		return err
	}

	_, err = readAtMost(lr, 512)

	return err
}

// zipLzmaReader decodes entry data made of the LZMA SDK version, the properties size,
// the properties and the compressed stream. A negative size means unknown.
func zipLzmaReader(r io.Reader, size int64) (io.Reader, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}
	if n := binary.LittleEndian.Uint16(head[2:]); n != 5 {
		return nil, fmt.Errorf("lzma properties size %d", n)
	}

	hdr := make([]byte, lzmaHeaderLen)
	if _, err := io.ReadFull(r, hdr[:5]); err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint64(hdr[5:], uint64(size))

	return lzma.NewReader(io.MultiReader(bytes.NewReader(hdr), r))
}

func registerZipDecompressors(zr *zip.Reader) {
	zr.RegisterDecompressor(ZipMethodBzip2, func(r io.Reader) io.ReadCloser {
		bz2r, err := bzip2.NewReader(r, nil)
		if err != nil {
			return io.NopCloser(errReader{err})
		}
		return bz2r
	})

	zr.RegisterDecompressor(ZipMethodZstd, func(r io.Reader) io.ReadCloser {
		zd, err := zstd.NewReader(r)
		if err != nil {
			return io.NopCloser(errReader{err})
		}
		return zd.IOReadCloser()
	})

	zr.RegisterDecompressor(ZipMethodXz, func(r io.Reader) io.ReadCloser {
		xr, err := xz.NewReader(r)
		if err != nil {
			return io.NopCloser(errReader{err})
		}
		return io.NopCloser(xr)
	})
}
