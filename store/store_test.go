package store

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// readAll drains a store from its current cursor.
func readAll(t *testing.T, s Store, chunk int) []byte {
	t.Helper()

	var out []byte
	buf := make([]byte, chunk)
	for {
		n, err := s.Get(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory()

	for _, p := range []string{"abc", "", "defg", "h"} {
		if err := m.Put([]byte(p)); err != nil {
			t.Fatalf("Put(%q) failed: %v", p, err)
		}
	}

	if m.Size() != 8 {
		t.Fatalf("expected size 8 but got %d", m.Size())
	}

	if got := readAll(t, m, 3); string(got) != "abcdefgh" {
		t.Fatalf("expected 'abcdefgh' but got '%s'", got)
	}

	if err := m.Seek(5); err != nil {
		t.Fatal(err)
	}
	if got := readAll(t, m, 2); string(got) != "fgh" {
		t.Fatalf("expected 'fgh' but got '%s'", got)
	}

	if err := m.Seek(9); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange but got %v", err)
	}
	if err := m.Seek(8); err != nil {
		t.Fatalf("seeking to the end must be allowed: %v", err)
	}

	m.Cleanup()
	if m.Size() != 0 || m.Pos() != 0 {
		t.Fatalf("expected empty store after cleanup, size=%d pos=%d", m.Size(), m.Pos())
	}
}

func TestThresholdTransition(t *testing.T) {
	const threshold = 64

	for _, tc := range []struct {
		name   string
		writes []int
		spill  bool
	}{
		{name: "below", writes: []int{threshold - 1}, spill: false},
		{name: "crossing", writes: []int{threshold - 1, 2}, spill: true},
		{name: "exact", writes: []int{threshold}, spill: true},
		{name: "many small", writes: []int{10, 10, 10, 10, 10, 10, 10}, spill: true},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			ts := NewThreshold(threshold, dir)
			ref := NewMemory()
			defer ts.Cleanup()

			var b byte
			for _, size := range tc.writes {
				p := make([]byte, size)
				for i := range p {
					p[i] = b
					b++
				}
				if err := ts.Put(p); err != nil {
					t.Fatalf("Put failed: %v", err)
				}
				ref.Put(p)
			}

			if ts.Spilled() != tc.spill {
				t.Fatalf("expected spilled=%v", tc.spill)
			}
			if ts.Size() != ref.Size() {
				t.Fatalf("expected size %d but got %d", ref.Size(), ts.Size())
			}

			got := readAll(t, ts, 7)
			if !bytes.Equal(got, ref.Bytes()) {
				t.Fatalf("content differs from the in-memory reference")
			}

			// reading again from the middle gives the same bytes
			if err := ts.Seek(5); err != nil {
				t.Fatal(err)
			}
			if got := readAll(t, ts, 100); !bytes.Equal(got, ref.Bytes()[5:]) {
				t.Fatalf("content after seek differs from the reference")
			}

			name := ts.FileName()
			if err := ts.Cleanup(); err != nil {
				t.Fatalf("Cleanup failed: %v", err)
			}
			if name != "" {
				if !strings.HasPrefix(filepath.Base(name), SpillPrefix) {
					t.Fatalf("spill file %s does not carry the prefix", name)
				}
				if _, err := os.Stat(name); !os.IsNotExist(err) {
					t.Fatalf("spill file %s must be removed on cleanup", name)
				}
			}
		})
	}
}

func TestThresholdSpillFailure(t *testing.T) {
	ts := NewThreshold(4, filepath.Join(t.TempDir(), "missing"))

	if err := ts.Put([]byte("ab")); err != nil {
		t.Fatalf("Put below threshold failed: %v", err)
	}
	if err := ts.Put([]byte("cdef")); err == nil {
		t.Fatal("expected an error creating the spill file")
	}
	if err := ts.Put([]byte("g")); err == nil {
		t.Fatal("store must stay unusable after a failed spill")
	}
}

func TestOnOffReEnable(t *testing.T) {
	o := NewOnOff(NewMemory())

	if err := o.Enable(true); err != nil {
		t.Fatal(err)
	}
	if err := o.Put([]byte("12345")); err != nil {
		t.Fatal(err)
	}
	if err := o.Enable(false); err != nil {
		t.Fatal(err)
	}
	if err := o.Put([]byte("678")); err != nil {
		t.Fatal(err)
	}
	if o.Size() != 5 {
		t.Fatalf("disabled write must be dropped, size=%d", o.Size())
	}
	if err := o.Enable(true); !errors.Is(err, ErrReEnable) {
		t.Fatalf("expected ErrReEnable but got %v", err)
	}
}

func TestOnOffReEnableWithoutDrop(t *testing.T) {
	o := NewOnOff(NewMemory())

	o.Enable(true)
	o.Put([]byte("ab"))
	o.Enable(false)

	// nothing was dropped, so buffering can resume
	if err := o.Enable(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o.Put([]byte("cd"))
	if got := readAll(t, o, 10); string(got) != "abcd" {
		t.Fatalf("expected 'abcd' but got '%s'", got)
	}
}

func TestOnOffCleanupWhenDrained(t *testing.T) {
	inner := NewThreshold(2, t.TempDir())
	o := NewOnOff(inner)

	o.Enable(true)
	o.Put([]byte("hello"))
	name := inner.FileName()
	if name == "" {
		t.Fatal("expected the store to spill")
	}
	o.Enable(false)

	if got := readAll(t, o, 2); string(got) != "hello" {
		t.Fatalf("expected 'hello' but got '%s'", got)
	}
	if o.Size() != 0 {
		t.Fatalf("drained store must be cleaned up, size=%d", o.Size())
	}
	if _, err := os.Stat(name); !os.IsNotExist(err) {
		t.Fatalf("spill file %s must be removed once drained", name)
	}
}
