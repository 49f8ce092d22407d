package store

import (
	"errors"
	"fmt"
	"io"
)

// discardChunk is the largest read used when skipping forward in the source.
const discardChunk = 32 * 1024

// RandomAccess provides seek and replay over a forward-only source.
// Everything read from the source is appended to the store while buffering is enabled,
// so any position that has been read once can be read again.
// The source is read only as far as requested, there is no read-ahead.
type RandomAccess struct {
	src  io.Reader
	st   *OnOff
	pos  int64 // logical read position
	read int64 // bytes consumed from src
	eof  bool
	err  error // sticky source or store error

	closed bool
}

// Interface guards
var (
	_ io.ReadSeekCloser = (*RandomAccess)(nil)
	_ io.ReaderAt       = (*RandomAccess)(nil)
)

// NewRandomAccess wraps src using st as the replay buffer.
// The gate is used as is: call Enable(true) before reading to make replay possible.
func NewRandomAccess(src io.Reader, st *OnOff) *RandomAccess {
	return &RandomAccess{
		src: src,
		st:  st,
	}
}

// NewBuffered wraps src with an enabled buffer that spills to a temporary file
// in dir once threshold bytes are buffered.
func NewBuffered(src io.Reader, threshold int64, dir string) *RandomAccess {
	st := NewOnOff(NewThreshold(threshold, dir))
	// a fresh gate has dropped nothing, enabling cannot fail
	_ = st.Enable(true)
	return NewRandomAccess(src, st)
}

// Enable turns buffering on or off.
// Turning it on again after bytes were read without buffering returns ErrReEnable.
func (ra *RandomAccess) Enable(enable bool) error {
	return ra.st.Enable(enable)
}

// Buffering reports whether bytes read from the source are being buffered.
func (ra *RandomAccess) Buffering() bool {
	return ra.st.Enabled()
}

// Pos returns the current read position.
func (ra *RandomAccess) Pos() int64 {
	return ra.pos
}

// Consumed returns how many bytes have been read from the source so far.
func (ra *RandomAccess) Consumed() int64 {
	return ra.read
}

// Buffered returns how many bytes are currently held in the store.
func (ra *RandomAccess) Buffered() int64 {
	return ra.st.Size()
}

// Err returns the first error returned by the source or the store, if any.
// End of stream is not an error.
func (ra *RandomAccess) Err() error {
	return ra.err
}

func (ra *RandomAccess) Read(p []byte) (int, error) {
	if ra.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}

	// serve buffered bytes first
	if size := ra.st.Size(); size > 0 && ra.pos <= size {
		if ra.st.Pos() != ra.pos {
			if err := ra.st.Seek(ra.pos); err != nil {
				return 0, err
			}
		}

		n, err := ra.st.Get(p)
		ra.pos += int64(n)
		if err == nil || n > 0 {
			return n, nil
		}
		if err != io.EOF {
			ra.err = err
			return 0, fmt.Errorf("reading buffer: %w", err)
		}
	}

	// buffer has been "depleted", so the read position must be at the source position
	if ra.pos != ra.read {
		return 0, ErrNotBuffered
	}

	return ra.fetch(p)
}

// fetch reads from the source and records what was read.
func (ra *RandomAccess) fetch(p []byte) (int, error) {
	if ra.err != nil {
		return 0, ra.err
	}
	if ra.eof {
		return 0, io.EOF
	}

	n, err := ra.src.Read(p)
	if n > 0 {
		if perr := ra.st.Put(p[:n]); perr != nil {
			ra.err = perr
			return 0, perr
		}
		ra.read += int64(n)
		ra.pos += int64(n)
	}

	switch {
	case err == io.EOF:
		ra.eof = true
		if n > 0 {
			err = nil
		}
	case err != nil:
		ra.err = err
	}

	return n, err
}

// Seek implements io.Seeker.
// Positions inside the buffered range or at the source position are always reachable.
// Seeking further reads and discards source bytes (buffering them when enabled),
// seeking past the end of the source returns ErrOutOfRange.
func (ra *RandomAccess) Seek(offset int64, whence int) (int64, error) {
	if ra.closed {
		return 0, ErrClosed
	}

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = ra.pos + offset
	case io.SeekEnd:
		if err := ra.skipTo(-1); err != nil {
			return ra.pos, err
		}
		target = ra.read + offset
	default:
		return ra.pos, fmt.Errorf("invalid whence %d", whence)
	}

	if target < 0 {
		return ra.pos, ErrOutOfRange
	}

	switch {
	case target == ra.read, target < ra.st.Size():
		ra.pos = target
	case target < ra.read:
		return ra.pos, ErrNotBuffered
	default:
		if err := ra.skipTo(target); err != nil {
			return ra.pos, err
		}
	}

	return ra.pos, nil
}

// skipTo reads from the source until target bytes have been consumed.
// A negative target reads to the end of the source.
// The read position is left at the source position.
func (ra *RandomAccess) skipTo(target int64) error {
	ra.pos = ra.read
	buf := make([]byte, discardChunk)

	for target < 0 || ra.read < target {
		chunk := buf
		if target >= 0 && target-ra.read < int64(len(chunk)) {
			chunk = chunk[:target-ra.read]
		}

		_, err := ra.fetch(chunk)
		if err == io.EOF {
			if target < 0 {
				return nil
			}
			return fmt.Errorf("seeking to %d of %d bytes: %w", target, ra.read, ErrOutOfRange)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

// Reset moves the read position back to the beginning of the stream.
func (ra *RandomAccess) Reset() error {
	_, err := ra.Seek(0, io.SeekStart)
	return err
}

// ReadAt implements io.ReaderAt on top of the replay buffer.
// The read position is restored afterwards.
func (ra *RandomAccess) ReadAt(p []byte, off int64) (int, error) {
	saved := ra.pos
	defer ra.restore(saved)

	if _, err := ra.Seek(off, io.SeekStart); err != nil {
		if errors.Is(err, ErrOutOfRange) {
			return 0, io.EOF
		}
		return 0, err
	}

	n, err := io.ReadFull(ra, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}

	return n, err
}

// Size reads the source to its end and returns its total length.
// The read position is restored afterwards.
func (ra *RandomAccess) Size() (int64, error) {
	if ra.eof {
		return ra.read, nil
	}

	saved := ra.pos
	defer ra.restore(saved)

	if err := ra.skipTo(-1); err != nil {
		return 0, err
	}

	return ra.read, nil
}

// Fill makes sure that at least n bytes have been read from the source,
// or the whole source if it is shorter. The read position is not changed.
func (ra *RandomAccess) Fill(n int64) error {
	if ra.read >= n || ra.eof {
		return nil
	}

	saved := ra.pos
	defer ra.restore(saved)

	err := ra.skipTo(n)
	if errors.Is(err, ErrOutOfRange) {
		return nil
	}

	return err
}

func (ra *RandomAccess) restore(pos int64) {
	if _, err := ra.Seek(pos, io.SeekStart); err != nil && ra.err == nil {
		ra.err = fmt.Errorf("restoring position %d: %w", pos, err)
	}
}

// Close releases the buffer and any spill file. The source is not closed.
func (ra *RandomAccess) Close() error {
	if ra.closed {
		return nil
	}

	ra.closed = true

	return ra.st.Cleanup()
}
