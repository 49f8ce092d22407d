package droid

import (
	"bytes"
	"fmt"
	"io"
)

const (
	windowSize = 4096
	maxWindows = 256
)

// ByteSource is the data signatures are matched against.
// Size is only called when a signature refers to the end of the data.
type ByteSource interface {
	io.ReaderAt
	Size() (int64, error)
}

// Hit is a format identified by one of its signatures.
type Hit struct {
	Format    FileFormat
	Signature int
}

// Matcher evaluates the signatures of a catalog.
type Matcher struct {
	Catalog *Catalog

	// MaxScan bounds how far open offset windows are searched, zero means no bound.
	MaxScan int64
}

// Match is a shortcut for a Matcher without a scan bound.
func (c *Catalog) Match(src ByteSource, allow func(id int) bool) ([]Hit, error) {
	m := Matcher{Catalog: c}
	return m.Match(src, allow)
}

// Match returns the formats whose signatures match src.
// Only formats accepted by allow are considered (all when allow is nil),
// the first matching signature of a format identifies it.
// Hits another hit has priority over are removed.
func (m *Matcher) Match(src ByteSource, allow func(id int) bool) ([]Hit, error) {
	r := &run{
		fwd:   &window{src: src, size: -1, cache: make(map[int64][]byte)},
		limit: m.MaxScan,
	}

	found := make(map[int]bool)
	var hits []Hit

	for _, sig := range m.Catalog.signatures {
		var owners []int
		for _, id := range sig.owners {
			if found[id] || (allow != nil && !allow(id)) {
				continue
			}
			owners = append(owners, id)
		}
		if len(owners) == 0 {
			continue
		}

		ok, err := r.signature(sig)
		if err != nil {
			return nil, fmt.Errorf("internal signature %d: %w", sig.id, err)
		}
		if !ok {
			continue
		}

		for _, id := range owners {
			found[id] = true
			f, _ := m.Catalog.Format(id)
			hits = append(hits, Hit{Format: f, Signature: sig.id})
		}
	}

	return prune(hits), nil
}

// prune removes every hit that another hit has priority over.
// Mutual priorities cancel out.
func prune(hits []Hit) []Hit {
	if len(hits) < 2 {
		return hits
	}

	over := func(a, b Hit) bool {
		for _, id := range a.Format.PriorityOver {
			if id == b.Format.ID {
				return true
			}
		}
		return false
	}

	out := make([]Hit, 0, len(hits))
	for i, h := range hits {
		weaker := false
		for j, g := range hits {
			if i != j && over(g, h) && !over(h, g) {
				weaker = true
				break
			}
		}
		if !weaker {
			out = append(out, h)
		}
	}

	return out
}

type view interface {
	byteAt(pos int64) (byte, bool)
}

// window caches fixed size blocks of the source.
type window struct {
	src   ByteSource
	size  int64 // -1 until known
	cache map[int64][]byte
	err   error
}

func (w *window) byteAt(pos int64) (byte, bool) {
	if pos < 0 || (w.size >= 0 && pos >= w.size) || w.err != nil {
		return 0, false
	}

	idx := pos / windowSize
	block, ok := w.cache[idx]
	if !ok {
		if len(w.cache) >= maxWindows {
			w.cache = make(map[int64][]byte)
		}

		block = make([]byte, windowSize)
		n, err := w.src.ReadAt(block, idx*windowSize)
		block = block[:n]
		switch {
		case err == io.EOF || (err == nil && n < windowSize):
			w.size = idx*windowSize + int64(n)
		case err != nil:
			w.err = err
			return 0, false
		}
		w.cache[idx] = block
	}

	i := pos - idx*windowSize
	if i >= int64(len(block)) {
		return 0, false
	}

	return block[i], true
}

func (w *window) length() (int64, error) {
	if w.size >= 0 {
		return w.size, nil
	}

	size, err := w.src.Size()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNoEnd, err)
	}
	w.size = size

	return size, nil
}

// reversed presents the data last byte first.
type reversed struct {
	w    *window
	size int64
}

func (r *reversed) byteAt(pos int64) (byte, bool) {
	if pos < 0 || pos >= r.size {
		return 0, false
	}
	return r.w.byteAt(r.size - 1 - pos)
}

type run struct {
	fwd   *window
	rev   *reversed
	limit int64
}

func (r *run) signature(sig *signature) (bool, error) {
	if len(sig.sequences) == 0 {
		return false, nil
	}

	for _, seq := range sig.sequences {
		var v view = r.fwd
		if seq.ref == EOF {
			if r.rev == nil {
				size, err := r.fwd.length()
				if err != nil {
					return false, err
				}
				r.rev = &reversed{w: r.fwd, size: size}
			}
			v = r.rev
		}

		if r.fwd.size >= 0 && seq.width > r.fwd.size {
			return false, nil
		}

		ok := r.match(v, seq.toks, 0, func(int64) bool { return true })
		if r.fwd.err != nil {
			return false, r.fwd.err
		}
		if !ok {
			return false, nil
		}
	}

	return true, nil
}

// match reports whether toks match at pos and k accepts the end position.
func (r *run) match(v view, toks []token, pos int64, k func(int64) bool) bool {
	if len(toks) == 0 {
		return k(pos)
	}

	t, rest := toks[0], toks[1:]

	switch t.kind {
	case literalToken:
		for i, b := range t.lit {
			c, ok := v.byteAt(pos + int64(i))
			if !ok || c != b {
				return false
			}
		}
		return r.match(v, rest, pos+int64(len(t.lit)), k)

	case rangeToken:
		n := len(t.lo)
		val := make([]byte, n)
		for i := 0; i < n; i++ {
			c, ok := v.byteAt(pos + int64(i))
			if !ok {
				return false
			}
			if t.little {
				val[n-1-i] = c
			} else {
				val[i] = c
			}
		}
		in := bytes.Compare(val, t.lo) >= 0 && bytes.Compare(val, t.hi) <= 0
		if in == t.negate {
			return false
		}
		return r.match(v, rest, pos+int64(n), k)

	case gapToken:
		for off := t.min; t.max == Unbounded || off <= t.max; off++ {
			p := pos + off
			if r.limit > 0 && p > r.limit {
				return false
			}
			// the data must reach p
			if p > 0 {
				if _, ok := v.byteAt(p - 1); !ok {
					return false
				}
			}
			if r.match(v, rest, p, k) {
				return true
			}
		}
		return false

	case altToken:
		for _, alt := range t.alts {
			if r.match(v, alt, pos, func(end int64) bool { return r.match(v, rest, end, k) }) {
				return true
			}
		}
		return false
	}

	panic("droid: unknown token kind")
}
