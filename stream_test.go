package guess

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pchchv/guess/store"
)

func samplePDF() []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	for i := 0; i < 200; i++ {
		b.WriteString("1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj\n")
	}
	b.WriteString("trailer << /Root 1 0 R >>\n%%EOF\n")
	return b.Bytes()
}

// closeRecorder reports whether it was closed.
type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestRawRoundTrip(t *testing.T) {
	pdf := samplePDF()

	for i, tc := range []struct {
		threshold    int64
		maxRecursion int
	}{
		{threshold: 0, maxRecursion: 0},
		{threshold: 64, maxRecursion: 0},
		{threshold: 64, maxRecursion: 5},
	} {
		s := New(bytes.NewReader(pdf), nil, Options{
			MaxRecursion:   tc.maxRecursion,
			SpillThreshold: tc.threshold,
			TempDir:        t.TempDir(),
		})

		id, err := s.Format()
		if err != nil {
			t.Fatalf("test %d: %v", i, err)
		}
		if id.Format != FormatPDF {
			t.Errorf("test %d: expected '%s' but got '%s'", i, FormatPDF, id.Format)
		}

		out, err := io.ReadAll(s)
		if err != nil {
			t.Fatalf("test %d: %v", i, err)
		}
		if !bytes.Equal(out, pdf) {
			t.Errorf("test %d: expected the %d source bytes but got %d bytes", i, len(pdf), len(out))
		}

		if err := s.Close(); err != nil {
			t.Errorf("test %d: closing: %v", i, err)
		}
	}
}

func TestReadWithoutFormat(t *testing.T) {
	// reading first runs detection on the fly
	s := New(strings.NewReader(xmlDocument), nil, Options{})
	defer s.Close()

	out, err := io.ReadAll(s)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != xmlDocument {
		t.Errorf("expected '%s' but got '%s'", xmlDocument, out)
	}

	id, err := s.Format()
	if err != nil {
		t.Fatal(err)
	}
	if id.Format != FormatXML {
		t.Errorf("expected '%s' but got '%s'", FormatXML, id.Format)
	}
}

func TestDecodedRead(t *testing.T) {
	once := []byte(strings.TrimSpace(string(encode(t, FormatBase64, []byte(xmlDocument)))))
	gz := encode(t, FormatGzip, once)

	for i, tc := range []struct {
		maxRecursion int
		chain        []Format
		expect       []byte
	}{
		// the chain stops on an encoding, which is still decoded
		{maxRecursion: 1, chain: []Format{FormatGzip}, expect: once},
		{maxRecursion: 2, chain: []Format{FormatGzip, FormatBase64}, expect: []byte(xmlDocument)},
		{maxRecursion: 3, chain: []Format{FormatGzip, FormatBase64, FormatXML}, expect: []byte(xmlDocument)},
	} {
		s := New(bytes.NewReader(gz), nil, Options{MaxRecursion: tc.maxRecursion, TempDir: t.TempDir()})

		if err := s.Decode(true); err != nil {
			t.Fatalf("test %d: %v", i, err)
		}

		chain, err := s.Formats()
		if err != nil {
			t.Fatalf("test %d: %v", i, err)
		}
		if actual := chainFormats(chain); !reflect.DeepEqual(actual, tc.chain) {
			t.Errorf("test %d: expected %v but got %v", i, tc.chain, actual)
		}

		out, err := io.ReadAll(s)
		if err != nil {
			t.Fatalf("test %d: %v", i, err)
		}
		if !bytes.Equal(out, tc.expect) {
			t.Errorf("test %d: expected '%s' but got '%s'", i, tc.expect, out)
		}

		s.Close()
	}
}

func TestDecodedReadOfUnknown(t *testing.T) {
	s := New(strings.NewReader("nothing to see here, move along"), nil, Options{MaxRecursion: 3})
	defer s.Close()

	if err := s.Decode(true); err != nil {
		t.Fatal(err)
	}

	out, err := io.ReadAll(s)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "nothing to see here, move along" {
		t.Errorf("expected the source bytes but got '%s'", out)
	}
}

func TestUndecodableContent(t *testing.T) {
	const text = "HelloWorldFooBar\nThis is plain text, with spaces and punctuation.\n"

	s := New(strings.NewReader(text), nil, Options{MaxRecursion: 2})

	chain, err := s.Formats()
	if err != nil {
		t.Fatal(err)
	}
	if expect := []Format{FormatBase64, FormatUnknown}; !reflect.DeepEqual(chainFormats(chain), expect) {
		t.Errorf("expected %v but got %v", expect, chainFormats(chain))
	}

	out, err := io.ReadAll(s)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != text {
		t.Errorf("expected '%s' but got '%s'", text, out)
	}
	s.Close()

	// only the decoded content is unreadable
	s = New(strings.NewReader(text), nil, Options{MaxRecursion: 2})
	defer s.Close()

	if err := s.Decode(true); err != nil {
		t.Fatal(err)
	}

	var de *DecodeError
	if _, err := io.ReadAll(s); !errors.As(err, &de) {
		t.Errorf("expected a *DecodeError but got %v", err)
	}
}

func TestReadStarted(t *testing.T) {
	s := New(strings.NewReader(xmlDocument), nil, Options{})
	defer s.Close()

	buf := make([]byte, 4)
	if _, err := s.Read(buf); err != nil {
		t.Fatal(err)
	}

	if err := s.Decode(true); !errors.Is(err, ErrReadStarted) {
		t.Errorf("expected %v but got %v", ErrReadStarted, err)
	}
	if err := s.SetMaxRecursion(3); !errors.Is(err, ErrReadStarted) {
		t.Errorf("expected %v but got %v", ErrReadStarted, err)
	}
	if err := s.SetFormats([]Format{FormatPDF}); !errors.Is(err, ErrReadStarted) {
		t.Errorf("expected %v but got %v", ErrReadStarted, err)
	}
}

func TestSetBeforeRead(t *testing.T) {
	once := []byte(encode(t, FormatBase64, []byte(xmlDocument)))

	s := New(bytes.NewReader(once), nil, Options{})
	defer s.Close()

	chain, err := s.Formats()
	if err != nil {
		t.Fatal(err)
	}
	if expect := []Format{FormatBase64}; !reflect.DeepEqual(chainFormats(chain), expect) {
		t.Errorf("expected %v but got %v", expect, chainFormats(chain))
	}

	if err := s.SetMaxRecursion(2); err != nil {
		t.Fatal(err)
	}
	chain, err = s.Formats()
	if err != nil {
		t.Fatal(err)
	}
	if expect := []Format{FormatBase64, FormatXML}; !reflect.DeepEqual(chainFormats(chain), expect) {
		t.Errorf("expected %v but got %v", expect, chainFormats(chain))
	}

	if err := s.SetFormats([]Format{FormatXML}); err != nil {
		t.Fatal(err)
	}
	chain, err = s.Formats()
	if err != nil {
		t.Fatal(err)
	}
	if expect := []Format{FormatUnknown}; !reflect.DeepEqual(chainFormats(chain), expect) {
		t.Errorf("expected %v but got %v", expect, chainFormats(chain))
	}

	out, err := io.ReadAll(s)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, once) {
		t.Errorf("expected '%s' but got '%s'", once, out)
	}
}

func TestWrap(t *testing.T) {
	once := []byte(encode(t, FormatBase64, []byte(xmlDocument)))

	s := New(bytes.NewReader(once), nil, Options{MaxRecursion: 2})
	defer s.Close()

	for i, tc := range []struct {
		formats  []Format
		opts     Options
		filtered bool
		expect   []Format
	}{
		{formats: nil, opts: Options{MaxRecursion: 2}, filtered: true, expect: []Format{FormatBase64, FormatXML}},
		{formats: []Format{FormatBase64}, opts: Options{MaxRecursion: 2}, filtered: true, expect: []Format{FormatBase64}},
		{formats: []Format{FormatXML}, opts: Options{MaxRecursion: 2}, filtered: true, expect: []Format{FormatUnknown}},
		{formats: []Format{FormatBase64}, opts: Options{MaxRecursion: 1}, filtered: false},
	} {
		g := Wrap(s, tc.formats, tc.opts)

		_, filtered := g.(*filteredStream)
		if filtered != tc.filtered {
			t.Errorf("test %d: expected filtered %v but got %v", i, tc.filtered, filtered)
			continue
		}
		if !filtered {
			continue
		}

		chain, err := g.Formats()
		if err != nil {
			t.Fatalf("test %d: %v", i, err)
		}
		if actual := chainFormats(chain); !reflect.DeepEqual(actual, tc.expect) {
			t.Errorf("test %d: expected %v but got %v", i, tc.expect, actual)
		}

		id, err := g.Format()
		if err != nil {
			t.Fatalf("test %d: %v", i, err)
		}
		if id.Format != tc.expect[0] {
			t.Errorf("test %d: expected '%s' but got '%s'", i, tc.expect[0], id.Format)
		}
	}

	// a wider set cannot reuse the narrower view
	narrow := Wrap(s, []Format{FormatBase64}, Options{MaxRecursion: 2})
	if _, ok := Wrap(narrow, []Format{FormatBase64, FormatXML}, Options{MaxRecursion: 2}).(*filteredStream); ok {
		t.Error("expected a new stream for a wider format set")
	}

	// the view reads through the stream
	out, err := io.ReadAll(narrow)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, once) {
		t.Errorf("expected '%s' but got '%s'", once, out)
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	dir := t.TempDir()
	src := &closeRecorder{Reader: bytes.NewReader(encode(t, FormatGzip, payload))}

	s := New(src, nil, Options{MaxRecursion: 2, SpillThreshold: 32, TempDir: dir})

	if err := s.Decode(true); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Read(make([]byte, 10)); err != nil {
		t.Fatal(err)
	}

	spills, err := filepath.Glob(filepath.Join(dir, store.SpillPrefix+"*"))
	if err != nil {
		t.Fatal(err)
	}
	if len(spills) == 0 {
		t.Error("expected spill files while reading")
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !src.closed {
		t.Error("expected the source to be closed")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no files left but got %d", len(entries))
	}

	if _, err := s.Read(make([]byte, 1)); !errors.Is(err, store.ErrClosed) {
		t.Errorf("expected %v but got %v", store.ErrClosed, err)
	}
}

func TestRegistryErrorSurfaces(t *testing.T) {
	s := New(strings.NewReader("data"), nil, Options{})
	s.err = ErrNoDetectors
	defer s.Close()

	if _, err := s.Format(); !errors.Is(err, ErrNoDetectors) {
		t.Errorf("expected %v but got %v", ErrNoDetectors, err)
	}
	if _, err := s.Read(make([]byte, 1)); !errors.Is(err, ErrNoDetectors) {
		t.Errorf("expected %v but got %v", ErrNoDetectors, err)
	}
}
