package store

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

// countingReader records how many bytes were requested from the underlying reader.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func TestRandomAccessRewind(t *testing.T) {
	data := "the header\nthe body\n"
	ra := NewBuffered(strings.NewReader(data), 1024, t.TempDir())
	defer ra.Close()

	buf := make([]byte, 10) // enough for 'the header'

	// test rewinding reads
	for i := 0; i < 10; i++ {
		if err := ra.Reset(); err != nil {
			t.Fatalf("Reset failed: %s", err)
		}
		n, err := io.ReadFull(ra, buf)
		if err != nil {
			t.Fatalf("Read failed: %s", err)
		}
		if string(buf[:n]) != "the header" {
			t.Fatalf("iteration %d: expected 'the header' but got '%s' (n=%d)", i, string(buf[:n]), n)
		}
	}

	// rewind and make sure we can read all of the data out
	ra.Reset()
	ra.Enable(false)
	all, err := io.ReadAll(ra)
	if err != nil {
		t.Fatalf("ReadAll failed: %s", err)
	}
	if string(all) != data {
		t.Fatalf("expected '%s' but got '%s'", data, string(all))
	}
}

func TestRandomAccessNoReadAhead(t *testing.T) {
	src := &countingReader{r: strings.NewReader(strings.Repeat("x", 4096))}
	ra := NewBuffered(src, 1024, t.TempDir())
	defer ra.Close()

	buf := make([]byte, 16)
	if _, err := io.ReadFull(ra, buf); err != nil {
		t.Fatal(err)
	}
	if src.n != 16 {
		t.Fatalf("expected 16 bytes read from the source but got %d", src.n)
	}

	ra.Reset()
	io.ReadFull(ra, buf[:8])
	if src.n != 16 {
		t.Fatalf("replayed bytes must come from the buffer, source read %d", src.n)
	}
}

func TestRandomAccessSeek(t *testing.T) {
	data := []byte("0123456789abcdefghij")
	ra := NewBuffered(iotest.OneByteReader(bytes.NewReader(data)), 8, t.TempDir())
	defer ra.Close()

	for i, tc := range []struct {
		offset int64
		whence int
		want   int64
		err    error
		next   string
	}{
		{offset: 5, whence: io.SeekStart, want: 5, next: "56"},
		{offset: -4, whence: io.SeekCurrent, want: 3, next: "34"},
		{offset: 12, whence: io.SeekStart, want: 12, next: "cd"},
		{offset: 0, whence: io.SeekStart, want: 0, next: "01"},
		{offset: -2, whence: io.SeekEnd, want: 18, next: "ij"},
		{offset: 21, whence: io.SeekStart, err: ErrOutOfRange},
		{offset: -1, whence: io.SeekStart, err: ErrOutOfRange},
	} {
		got, err := ra.Seek(tc.offset, tc.whence)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Fatalf("Test %d: expected %v but got %v", i, tc.err, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Test %d: Seek failed: %v", i, err)
		}
		if got != tc.want {
			t.Fatalf("Test %d: expected position %d but got %d", i, tc.want, got)
		}

		buf := make([]byte, 2)
		if _, err := io.ReadFull(ra, buf); err != nil {
			t.Fatalf("Test %d: Read failed: %v", i, err)
		}
		if string(buf) != tc.next {
			t.Fatalf("Test %d: expected '%s' but got '%s'", i, tc.next, buf)
		}
	}
}

func TestRandomAccessReadAtAndSize(t *testing.T) {
	data := []byte("PK\x03\x04 some archive bytes %%EOF")
	ra := NewBuffered(bytes.NewReader(data), 1024, t.TempDir())
	defer ra.Close()

	buf := make([]byte, 4)
	io.ReadFull(ra, buf)

	size, err := ra.Size()
	if err != nil {
		t.Fatal(err)
	}
	if size != int64(len(data)) {
		t.Fatalf("expected size %d but got %d", len(data), size)
	}
	if ra.Pos() != 4 {
		t.Fatalf("Size must restore the read position, got %d", ra.Pos())
	}

	n, err := ra.ReadAt(buf, size-4)
	if err != nil || string(buf[:n]) != "%EOF" {
		t.Fatalf("ReadAt returned '%s' %v", buf[:n], err)
	}

	n, err = ra.ReadAt(buf, size-2)
	if err != io.EOF || n != 2 {
		t.Fatalf("expected a short read with io.EOF but got n=%d err=%v", n, err)
	}

	if _, err := ra.ReadAt(buf, size+10); err != io.EOF {
		t.Fatalf("expected io.EOF past the end but got %v", err)
	}
	if ra.Pos() != 4 {
		t.Fatalf("ReadAt must restore the read position, got %d", ra.Pos())
	}
}

func TestRandomAccessDisabledDrain(t *testing.T) {
	data := strings.Repeat("abcdefgh", 64)
	ra := NewBuffered(strings.NewReader(data), 16, t.TempDir())
	defer ra.Close()

	if err := ra.Fill(100); err != nil {
		t.Fatal(err)
	}
	if ra.Consumed() != 100 {
		t.Fatalf("expected 100 consumed bytes but got %d", ra.Consumed())
	}

	ra.Enable(false)
	all, err := io.ReadAll(ra)
	if err != nil {
		t.Fatal(err)
	}
	if string(all) != data {
		t.Fatal("disabled reader must still return the buffered bytes followed by the source")
	}
	if ra.Buffered() != 0 {
		t.Fatalf("buffer must be released once drained, %d bytes left", ra.Buffered())
	}
	if err := ra.Enable(true); !errors.Is(err, ErrReEnable) {
		t.Fatalf("expected ErrReEnable but got %v", err)
	}

	if _, err := ra.Seek(0, io.SeekStart); !errors.Is(err, ErrNotBuffered) {
		t.Fatalf("expected ErrNotBuffered but got %v", err)
	}
}

func TestRandomAccessSourceError(t *testing.T) {
	boom := errors.New("boom")
	ra := NewBuffered(io.MultiReader(strings.NewReader("abc"), iotest.ErrReader(boom)), 16, t.TempDir())
	defer ra.Close()

	_, err := io.ReadAll(ra)
	if !errors.Is(err, boom) {
		t.Fatalf("expected source error but got %v", err)
	}
	if !errors.Is(ra.Err(), boom) {
		t.Fatalf("expected sticky source error but got %v", ra.Err())
	}

	// buffered bytes are still readable
	ra.Reset()
	buf := make([]byte, 3)
	if _, err := io.ReadFull(ra, buf); err != nil || string(buf) != "abc" {
		t.Fatalf("expected 'abc' but got '%s' %v", buf, err)
	}
}

func TestRandomAccessClosed(t *testing.T) {
	ra := NewBuffered(strings.NewReader("abc"), 16, "")
	ra.Close()

	if _, err := ra.Read(make([]byte, 1)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed but got %v", err)
	}
}
