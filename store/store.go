// Package store provides append-only seekable byte stores and a random access
// reader that replays bytes of a forward-only stream.
package store

import (
	"errors"
	"io"
)

// Store is a growable byte buffer with a read cursor.
// Put only appends at the logical end, Seek positions the cursor within [0, Size]
// and Get never returns bytes beyond Size.
type Store interface {
	// Put appends p to the end of the stored data.
	Put(p []byte) error

	// Get reads into p from the cursor forward and advances the cursor.
	// It returns io.EOF when the cursor is at the end of the stored data.
	Get(p []byte) (int, error)

	// Seek moves the cursor to the absolute position pos.
	Seek(pos int64) error

	// Size returns the number of stored bytes.
	Size() int64

	// Pos returns the cursor position.
	Pos() int64

	// Cleanup releases all backing resources and resets size and cursor to zero.
	Cleanup() error
}

var (
	// ErrOutOfRange is returned when seeking outside of the available data.
	ErrOutOfRange = errors.New("position out of range")

	// ErrNotBuffered is returned when seeking back to bytes that are no longer buffered.
	ErrNotBuffered = errors.New("position is no longer buffered")

	// ErrReEnable is returned when buffering is re-enabled after a write was dropped.
	ErrReEnable = errors.New("buffering cannot be re-enabled after dropping data")

	// ErrClosed is returned by operations on a closed reader.
	ErrClosed = errors.New("reader already closed")

	// Interface guards
	_ Store = (*Memory)(nil)
	_ Store = (*Threshold)(nil)
	_ Store = (*OnOff)(nil)
)

// Memory is a Store backed by a byte slice.
// Every Put reallocates the slice to the exact new size.
type Memory struct {
	buf []byte
	pos int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Put(p []byte) error {
	if len(p) == 0 {
		return nil
	}

	buf := make([]byte, len(m.buf)+len(p))
	copy(buf, m.buf)
	copy(buf[len(m.buf):], p)
	m.buf = buf

	return nil
}

func (m *Memory) Get(p []byte) (int, error) {
	if m.pos >= int64(len(m.buf)) {
		return 0, io.EOF
	}

	n := copy(p, m.buf[m.pos:])
	m.pos += int64(n)

	return n, nil
}

func (m *Memory) Seek(pos int64) error {
	if pos < 0 || pos > int64(len(m.buf)) {
		return ErrOutOfRange
	}

	m.pos = pos

	return nil
}

func (m *Memory) Size() int64 {
	return int64(len(m.buf))
}

func (m *Memory) Pos() int64 {
	return m.pos
}

// Bytes returns the stored bytes without copying them.
func (m *Memory) Bytes() []byte {
	return m.buf
}

func (m *Memory) Cleanup() error {
	m.buf = nil
	m.pos = 0
	return nil
}
