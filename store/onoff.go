package store

import "io"

// OnOff gates writes to an inner store.
// While disabled, Put silently drops data. Once anything was dropped,
// buffering can never be enabled again, since the stored bytes would have a hole.
// After being disabled the inner store is cleaned up as soon as it has been read to the end.
type OnOff struct {
	inner       Store
	enabled     bool
	canReEnable bool
}

// NewOnOff returns a disabled gate over inner.
func NewOnOff(inner Store) *OnOff {
	return &OnOff{
		inner:       inner,
		canReEnable: true,
	}
}

// Enable turns buffering on or off.
// It returns ErrReEnable when turning it on after a write was dropped.
func (o *OnOff) Enable(enable bool) error {
	if enable && !o.enabled && !o.canReEnable {
		return ErrReEnable
	}

	o.enabled = enable

	return nil
}

// Enabled reports whether writes reach the inner store.
func (o *OnOff) Enabled() bool {
	return o.enabled
}

func (o *OnOff) Put(p []byte) error {
	if !o.enabled {
		if len(p) > 0 {
			o.canReEnable = false
		}
		return nil
	}

	return o.inner.Put(p)
}

func (o *OnOff) Get(p []byte) (int, error) {
	n, err := o.inner.Get(p)
	if err == io.EOF && !o.enabled && o.inner.Size() > 0 {
		// fully drained and nothing more will be added
		if cerr := o.inner.Cleanup(); cerr != nil {
			return n, cerr
		}
	}

	return n, err
}

func (o *OnOff) Seek(pos int64) error {
	return o.inner.Seek(pos)
}

func (o *OnOff) Size() int64 {
	return o.inner.Size()
}

func (o *OnOff) Pos() int64 {
	return o.inner.Pos()
}

func (o *OnOff) Cleanup() error {
	return o.inner.Cleanup()
}
