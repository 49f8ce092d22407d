package guess

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Format identifies a container or an encoding.
type Format string

// Built-in formats.
const (
	// FormatUnknown is reported when nothing matched.
	FormatUnknown Format = "UNKNOWN"
	// FormatUnlisted is reported for catalog hits the application has no name for.
	FormatUnlisted Format = "UNLISTED"

	FormatPDF      Format = "PDF"
	FormatZIP      Format = "ZIP"
	FormatXML      Format = "XML"
	FormatHTML     Format = "HTML"
	FormatJSON     Format = "JSON"
	FormatBase64   Format = "BASE64"
	FormatGIF      Format = "GIF"
	FormatPNG      Format = "PNG"
	FormatJPEG     Format = "JPEG"
	FormatTIFF     Format = "TIFF"
	FormatBMP      Format = "BMP"
	FormatWAV      Format = "WAV"
	FormatAVI      Format = "AVI"
	FormatPKCS7    Format = "PKCS7"
	FormatGzip     Format = "GZIP"
	FormatBzip2    Format = "BZIP2"
	FormatXZ       Format = "XZ"
	FormatLZMA     Format = "LZMA"
	FormatZstd     Format = "ZSTD"
	FormatLZ4      Format = "LZ4"
	FormatZlib     Format = "ZLIB"
	FormatSnappy   Format = "SNAPPY"
	FormatBrotli   Format = "BROTLI"
	FormatTar      Format = "TAR"
	FormatRar      Format = "RAR"
	FormatSevenZip Format = "SEVENZIP"
)

// Identification is the result of one detection.
// A slice of identifications is a chain of nested encodings, outermost first.
type Identification struct {
	Format  Format
	Version string

	// Name is the catalog's own name of the format, if any.
	Name string
}

// Registered formats.
var formats = make(map[Format]bool)

func init() {
	for _, f := range []Format{
		FormatUnknown, FormatUnlisted,
		FormatPDF, FormatZIP, FormatXML, FormatHTML, FormatJSON, FormatBase64,
		FormatGIF, FormatPNG, FormatJPEG, FormatTIFF, FormatBMP, FormatWAV, FormatAVI,
		FormatPKCS7, FormatGzip, FormatBzip2, FormatXZ, FormatLZMA, FormatZstd,
		FormatLZ4, FormatZlib, FormatSnappy, FormatBrotli,
		FormatTar, FormatRar, FormatSevenZip,
	} {
		RegisterFormat(string(f))
	}
}

// RegisterFormat adds a format to the enumeration and returns it.
// It must be called during init.
// Duplicate formats by name are not allowed and will cause a panic.
func RegisterFormat(name string) Format {
	f := Format(strings.ToUpper(strings.TrimSpace(name)))
	if f == "" {
		panic("empty format name")
	}
	if formats[f] {
		panic("format " + string(f) + " is already registered")
	}

	formats[f] = true

	return f
}

// ParseFormat returns the registered format with the given name.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToUpper(strings.TrimSpace(name)))
	if !formats[f] {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}

	return f, nil
}

// ParseFormats parses a comma separated list of format names.
// An empty list yields every registered format.
func ParseFormats(list string) ([]Format, error) {
	if strings.TrimSpace(list) == "" {
		return AllFormats(), nil
	}

	var out []Format
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		f, err := ParseFormat(name)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}

	return out, nil
}

// AllFormats returns every registered format except FormatUnknown, sorted by name.
func AllFormats() []Format {
	out := make([]Format, 0, len(formats))
	for f := range formats {
		if f != FormatUnknown {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

func (f Format) String() string {
	return string(f)
}

func (id Identification) String() string {
	if id.Version == "" {
		return string(id.Format)
	}
	return string(id.Format) + " " + id.Version
}

// contains reports whether f is in set.
func contains(set []Format, f Format) bool {
	for _, s := range set {
		if s == f {
			return true
		}
	}
	return false
}

// intersect returns the formats of a that are also in b, in the order of a.
func intersect(a, b []Format) []Format {
	var out []Format
	for _, f := range a {
		if contains(b, f) && !contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// subtract returns the formats of a that are not in b.
func subtract(a, b []Format) []Format {
	var out []Format
	for _, f := range a {
		if !contains(b, f) {
			out = append(out, f)
		}
	}
	return out
}

// isSubset reports whether every format of a is in b.
func isSubset(a, b []Format) bool {
	for _, f := range a {
		if !contains(b, f) {
			return false
		}
	}
	return true
}

// readAtMost reads at most n bytes from the stream.
// A nil, empty or short stream is not an error.
// The returned slice of bytes may have length < n without error.
func readAtMost(stream io.Reader, n int) ([]byte, error) {
	if stream == nil || n <= 0 {
		return []byte{}, nil
	}

	buf := make([]byte, n)
	nr, err := io.ReadFull(stream, buf)

	// If the error is EOF (the stream was empty) or UnexpectedEOF (the stream had less than n)
	// ignore these errors because it is not necessary to read all n bytes,
	// so an empty or short stream is not an error.
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}

	if err != nil {
		return nil, err
	}

	return buf[:nr], nil
}
