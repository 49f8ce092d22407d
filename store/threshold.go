package store

import (
	"fmt"
	"io"
	"os"

	"github.com/pchchv/golog"
)

// SpillPrefix is the name prefix of the temporary files created by Threshold.
const SpillPrefix = "guess-spill-"

// Threshold keeps data in memory while the total size is below the threshold.
// The write that makes the size reach the threshold moves everything into
// a temporary file and all further data is appended to that file.
// The switch is invisible to readers: positions stay the same.
type Threshold struct {
	threshold int64
	dir       string
	mem       *Memory
	file      *os.File
	size      int64
	pos       int64

	// set when the spill file could not be created,
	// the store is unusable afterwards
	err error
}

// NewThreshold returns a store that spills to a temporary file in dir
// (os.TempDir when empty) once threshold bytes are stored.
func NewThreshold(threshold int64, dir string) *Threshold {
	return &Threshold{
		threshold: threshold,
		dir:       dir,
		mem:       NewMemory(),
	}
}

// Spilled reports whether the data has been moved to the temporary file.
func (t *Threshold) Spilled() bool {
	return t.file != nil
}

// FileName returns the name of the spill file or an empty string.
func (t *Threshold) FileName() string {
	if t.file == nil {
		return ""
	}
	return t.file.Name()
}

func (t *Threshold) Put(p []byte) error {
	if t.err != nil {
		return t.err
	}
	if len(p) == 0 {
		return nil
	}

	if t.file == nil && t.size+int64(len(p)) >= t.threshold {
		if err := t.spill(); err != nil {
			t.err = err
			return err
		}
	}

	if t.file == nil {
		if err := t.mem.Put(p); err != nil {
			return err
		}
		t.size += int64(len(p))
		return nil
	}

	n, err := t.file.WriteAt(p, t.size)
	t.size += int64(n)
	if err != nil {
		return fmt.Errorf("writing spill file: %w", err)
	}

	return nil
}

// spill drains the memory content into a newly created temporary file.
func (t *Threshold) spill() error {
	f, err := os.CreateTemp(t.dir, SpillPrefix+"*")
	if err != nil {
		return fmt.Errorf("creating spill file: %w", err)
	}

	if _, err := f.Write(t.mem.Bytes()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("writing spill file: %w", err)
	}

	golog.Info("[DEBUG] spilled %d buffered bytes to %s", t.size, f.Name())

	t.file = f
	return t.mem.Cleanup()
}

func (t *Threshold) Get(p []byte) (int, error) {
	if t.pos >= t.size {
		return 0, io.EOF
	}

	if t.file == nil {
		n, err := t.mem.Get(p)
		t.pos = t.mem.Pos()
		return n, err
	}

	if rest := t.size - t.pos; int64(len(p)) > rest {
		p = p[:rest]
	}

	n, err := t.file.ReadAt(p, t.pos)
	t.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}

	return n, err
}

func (t *Threshold) Seek(pos int64) error {
	if pos < 0 || pos > t.size {
		return ErrOutOfRange
	}

	if t.file == nil {
		if err := t.mem.Seek(pos); err != nil {
			return err
		}
	}

	t.pos = pos

	return nil
}

func (t *Threshold) Size() int64 {
	return t.size
}

func (t *Threshold) Pos() int64 {
	return t.pos
}

func (t *Threshold) Cleanup() error {
	var err error

	if t.file != nil {
		name := t.file.Name()
		err = t.file.Close()
		if rmErr := os.Remove(name); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
			err = rmErr
		}
		t.file = nil
	}

	t.mem.Cleanup()
	t.size = 0
	t.pos = 0

	return err
}
