// Package droid identifies file formats with PRONOM/DROID internal signatures.
//
// A Catalog is loaded from a DROID signature file. Every internal signature is a set of
// byte sequences anchored at the beginning of the file, the end of the file, or anywhere
// in between. Each byte sequence is made of sub-sequences separated by offset windows,
// and every sub-sequence may carry left and right fragments.
// Matching is done against any io.ReaderAt, so the data never has to be fully buffered
// unless a signature refers to the end of the file.
package droid

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Reference is the anchor of a byte sequence.
type Reference int

const (
	// Variable sequences may start anywhere.
	Variable Reference = iota
	// BOF sequences are anchored at the beginning of the file.
	BOF
	// EOF sequences are anchored at the end of the file.
	EOF
)

// Endianness applies to multi-byte range specifiers.
type Endianness int

const (
	BigEndian Endianness = iota
	LittleEndian
)

// Unbounded is the MaxOffset value of an open offset window.
const Unbounded int64 = -1

// FileFormat is a format of the catalog.
type FileFormat struct {
	ID           int
	Name         string
	Version      string
	PUID         string
	MIMEType     string
	Extensions   []string
	SignatureIDs []int
	PriorityOver []int
}

// InternalSignature is a set of byte sequences that must all be found.
type InternalSignature struct {
	ID          int
	Specificity string
	Sequences   []ByteSequence
}

// ByteSequence is an anchored chain of sub-sequences.
type ByteSequence struct {
	Reference    Reference
	Endianness   Endianness
	SubSequences []SubSequence
}

// SubSequence is a pattern placed MinOffset to MaxOffset bytes after the previous sub-sequence,
// or after the anchor for the first one.
// For EOF sequences everything is mirrored: offsets are measured backwards from the end.
type SubSequence struct {
	Position  int
	MinOffset int64
	MaxOffset int64
	Sequence  string
	Left      []Fragment
	Right     []Fragment
}

// Fragment is a pattern attached to the left or right of a sub-sequence.
// Fragments with the same Position are alternatives.
type Fragment struct {
	Position  int
	MinOffset int64
	MaxOffset int64
	Value     string
}

// Catalog is a compiled set of file formats and internal signatures.
// It is immutable and safe for concurrent use.
type Catalog struct {
	Version    string
	formats    []FileFormat
	byID       map[int]int
	signatures []*signature
}

// CatalogError describes a problem with the signature file.
type CatalogError struct {
	Signature int
	Err       error
}

var (
	// ErrMalformedSequence is returned for unparsable byte sequence patterns.
	ErrMalformedSequence = errors.New("malformed byte sequence")

	// ErrNoEnd is returned when an EOF sequence is used on a source with no known size.
	ErrNoEnd = errors.New("source size is unknown")
)

func (e *CatalogError) Error() string {
	return fmt.Sprintf("internal signature %d: %v", e.Signature, e.Err)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

type signatureFile struct {
	XMLName    xml.Name               `xml:"FFSignatureFile"`
	Version    string                 `xml:"Version,attr"`
	Signatures []xmlInternalSignature `xml:"InternalSignatureCollection>InternalSignature"`
	Formats    []xmlFileFormat        `xml:"FileFormatCollection>FileFormat"`
}

type xmlInternalSignature struct {
	ID          int               `xml:"ID,attr"`
	Specificity string            `xml:"Specificity,attr"`
	Sequences   []xmlByteSequence `xml:"ByteSequence"`
}

type xmlByteSequence struct {
	Reference    string           `xml:"Reference,attr"`
	Endianness   string           `xml:"Endianness,attr"`
	SubSequences []xmlSubSequence `xml:"SubSequence"`
}

type xmlSubSequence struct {
	Position  int           `xml:"Position,attr"`
	MinOffset string        `xml:"SubSeqMinOffset,attr"`
	MaxOffset string        `xml:"SubSeqMaxOffset,attr"`
	Sequence  string        `xml:"Sequence"`
	Left      []xmlFragment `xml:"LeftFragment"`
	Right     []xmlFragment `xml:"RightFragment"`
}

type xmlFragment struct {
	Position  int    `xml:"Position,attr"`
	MinOffset string `xml:"MinOffset,attr"`
	MaxOffset string `xml:"MaxOffset,attr"`
	Value     string `xml:",chardata"`
}

type xmlFileFormat struct {
	ID           int      `xml:"ID,attr"`
	Name         string   `xml:"Name,attr"`
	Version      string   `xml:"Version,attr"`
	PUID         string   `xml:"PUID,attr"`
	MIMEType     string   `xml:"MIMEType,attr"`
	SignatureIDs []int    `xml:"InternalSignatureID"`
	Extensions   []string `xml:"Extension"`
	PriorityOver []int    `xml:"HasPriorityOverFileFormatID"`
}

// LoadCatalogFile reads a DROID signature file from disk.
func LoadCatalogFile(name string) (*Catalog, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := LoadCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return c, nil
}

// LoadCatalog parses and compiles a DROID signature file.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var sf signatureFile
	if err := xml.NewDecoder(r).Decode(&sf); err != nil {
		return nil, fmt.Errorf("decoding signature file: %w", err)
	}

	sigs := make([]InternalSignature, 0, len(sf.Signatures))
	for _, xs := range sf.Signatures {
		sig, err := xs.model()
		if err != nil {
			return nil, &CatalogError{Signature: xs.ID, Err: err}
		}
		sigs = append(sigs, sig)
	}

	formats := make([]FileFormat, 0, len(sf.Formats))
	for _, xf := range sf.Formats {
		formats = append(formats, FileFormat{
			ID:           xf.ID,
			Name:         xf.Name,
			Version:      xf.Version,
			PUID:         xf.PUID,
			MIMEType:     xf.MIMEType,
			Extensions:   xf.Extensions,
			SignatureIDs: xf.SignatureIDs,
			PriorityOver: xf.PriorityOver,
		})
	}

	c, err := NewCatalog(formats, sigs)
	if err != nil {
		return nil, err
	}
	c.Version = sf.Version

	return c, nil
}

func (xs xmlInternalSignature) model() (InternalSignature, error) {
	sig := InternalSignature{ID: xs.ID, Specificity: xs.Specificity}

	for _, xb := range xs.Sequences {
		bs := ByteSequence{}

		switch strings.ToLower(xb.Reference) {
		case "bofoffset":
			bs.Reference = BOF
		case "eofoffset":
			bs.Reference = EOF
		case "", "variable":
			bs.Reference = Variable
		default:
			return sig, fmt.Errorf("unknown reference %q", xb.Reference)
		}

		if strings.HasPrefix(strings.ToLower(xb.Endianness), "little") {
			bs.Endianness = LittleEndian
		}

		for _, xss := range xb.SubSequences {
			ss := SubSequence{
				Position: xss.Position,
				Sequence: strings.TrimSpace(xss.Sequence),
			}

			var err error
			if ss.MinOffset, ss.MaxOffset, err = parseOffsets(xss.MinOffset, xss.MaxOffset); err != nil {
				return sig, fmt.Errorf("sub-sequence %d: %w", xss.Position, err)
			}

			for _, xf := range xss.Left {
				f, err := xf.model()
				if err != nil {
					return sig, fmt.Errorf("sub-sequence %d left fragment: %w", xss.Position, err)
				}
				ss.Left = append(ss.Left, f)
			}

			for _, xf := range xss.Right {
				f, err := xf.model()
				if err != nil {
					return sig, fmt.Errorf("sub-sequence %d right fragment: %w", xss.Position, err)
				}
				ss.Right = append(ss.Right, f)
			}

			bs.SubSequences = append(bs.SubSequences, ss)
		}

		sig.Sequences = append(sig.Sequences, bs)
	}

	return sig, nil
}

func (xf xmlFragment) model() (Fragment, error) {
	lo, hi, err := parseOffsets(xf.MinOffset, xf.MaxOffset)
	if err != nil {
		return Fragment{}, err
	}

	return Fragment{
		Position:  xf.Position,
		MinOffset: lo,
		MaxOffset: hi,
		Value:     strings.TrimSpace(xf.Value),
	}, nil
}

// parseOffsets parses an offset window, an empty maximum means the window is open.
func parseOffsets(minText, maxText string) (int64, int64, error) {
	var lo int64
	hi := Unbounded

	if s := strings.TrimSpace(minText); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 0 {
			return 0, 0, fmt.Errorf("invalid minimum offset %q", minText)
		}
		lo = v
	}

	if s := strings.TrimSpace(maxText); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < lo {
			return 0, 0, fmt.Errorf("invalid maximum offset %q", maxText)
		}
		hi = v
	}

	return lo, hi, nil
}

// NewCatalog compiles formats and signatures into a catalog.
// Signatures anchored at the beginning or the end of the file are evaluated before
// variable ones, otherwise the given order is kept.
func NewCatalog(formats []FileFormat, sigs []InternalSignature) (*Catalog, error) {
	c := &Catalog{
		formats: formats,
		byID:    make(map[int]int, len(formats)),
	}

	for i, f := range formats {
		c.byID[f.ID] = i
	}

	owners := make(map[int][]int)
	for _, f := range formats {
		for _, id := range f.SignatureIDs {
			owners[id] = append(owners[id], f.ID)
		}
	}

	for _, is := range sigs {
		sig, err := compileSignature(is)
		if err != nil {
			return nil, &CatalogError{Signature: is.ID, Err: err}
		}
		sig.owners = owners[is.ID]
		c.signatures = append(c.signatures, sig)
	}

	sort.SliceStable(c.signatures, func(i, j int) bool {
		return c.signatures[i].anchored && !c.signatures[j].anchored
	})

	return c, nil
}

// Formats returns the file formats of the catalog.
func (c *Catalog) Formats() []FileFormat {
	return c.formats
}

// Format returns the file format with the given ID.
func (c *Catalog) Format(id int) (FileFormat, bool) {
	i, ok := c.byID[id]
	if !ok {
		return FileFormat{}, false
	}
	return c.formats[i], true
}

// Reduce returns a catalog holding only the given formats and the signatures they use.
// Priority relations towards dropped formats are kept, they simply never apply.
func (c *Catalog) Reduce(ids []int) *Catalog {
	keep := make(map[int]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}

	r := &Catalog{
		Version: c.Version,
		byID:    make(map[int]int),
	}

	for _, f := range c.formats {
		if keep[f.ID] {
			r.byID[f.ID] = len(r.formats)
			r.formats = append(r.formats, f)
		}
	}

	for _, sig := range c.signatures {
		var owners []int
		for _, id := range sig.owners {
			if keep[id] {
				owners = append(owners, id)
			}
		}
		if len(owners) == 0 {
			continue
		}

		reduced := *sig
		reduced.owners = owners
		r.signatures = append(r.signatures, &reduced)
	}

	return r
}
