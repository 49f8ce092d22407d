package guess

import (
	"errors"
	"fmt"
	"io"

	"github.com/pchchv/golog"
	"github.com/pchchv/guess/store"
)

// DefaultLookahead is the prefetch size used when no detector declares its detect length.
const DefaultLookahead = 4096

// Strategy runs the detectors of a registry over a stream and descends into decodable formats.
type Strategy struct {
	registry     *Registry
	maxRecursion int
	threshold    int64
	dir          string
}

// Result is the outcome of a detection run.
type Result struct {
	// Chain holds one identification per inspected level, outermost first.
	Chain []Identification

	// levels[0] is the source, levels[i] the output of the decoder for Chain[i-1]
	levels  []*store.RandomAccess
	readers []io.Closer
	err     error // decoding failure that ended the chain
}

// NewStrategy returns a strategy inspecting max(maxRecursion, 1) levels.
// Decoded levels are buffered in memory up to threshold bytes, then in a temporary file in dir.
func NewStrategy(reg *Registry, maxRecursion int, threshold int64, dir string) *Strategy {
	return &Strategy{
		registry:     reg,
		maxRecursion: maxRecursion,
		threshold:    threshold,
		dir:          dir,
	}
}

// Run detects the chain of formats of src among the enabled formats.
// src must be buffering, it is left rewound.
// A payload that fails to decode ends the chain with FormatUnknown,
// the failure is kept in the result instead of being returned.
// The returned result is valid even with an error and must be closed,
// closing it does not close src.
func (s *Strategy) Run(enabled []Format, src *store.RandomAccess) (*Result, error) {
	res := &Result{levels: []*store.RandomAccess{src}}

	levels := s.maxRecursion
	if levels < 1 {
		levels = 1
	}

	cur := src
	for level := 0; level < levels; level++ {
		id, err := s.detect(enabled, cur)
		if err != nil {
			if undecodable(src, err) {
				res.fail(level, err)
				break
			}
			return res, fmt.Errorf("level %d: %w", level, err)
		}

		// every level but the first exists because a decoder ran,
		// so an unknown format ends the chain but is still reported
		res.Chain = append(res.Chain, id)
		if id.Format == FormatUnknown {
			break
		}

		dec, ok := s.registry.Decoder(id.Format)
		if !ok || level+1 >= levels {
			break
		}

		next, rc, err := s.descend(enabled, dec, cur)
		if err != nil {
			if undecodable(src, err) {
				res.fail(level+1, err)
				break
			}
			return res, fmt.Errorf("level %d: %w", level, err)
		}

		res.levels = append(res.levels, next)
		res.readers = append(res.readers, rc)
		cur = next
	}

	if err := cur.Reset(); err != nil {
		return res, err
	}
	if cur != src {
		if err := src.Reset(); err != nil {
			return res, err
		}
	}

	return res, nil
}

// undecodable reports whether err comes from a decoder while the source itself is readable.
func undecodable(src *store.RandomAccess, err error) bool {
	var de *DecodeError
	return errors.As(err, &de) && src.Err() == nil
}

// fail ends the chain with an unknown level that could not be decoded.
func (r *Result) fail(level int, err error) {
	r.Chain = append(r.Chain, Identification{Format: FormatUnknown})
	r.err = fmt.Errorf("level %d: %w", level, err)
}

// detect runs the detectors in registry order until one identifies the stream.
func (s *Strategy) detect(enabled []Format, src *store.RandomAccess) (Identification, error) {
	remaining := enabled

	for _, d := range s.registry.Detectors() {
		wanted := intersect(remaining, d.Formats())
		if len(wanted) == 0 {
			continue
		}

		if err := src.Reset(); err != nil {
			return Identification{}, err
		}

		id, err := d.Detect(wanted, src)
		if err != nil {
			// a failing stream is not the detector's fault
			if srcErr := src.Err(); srcErr != nil {
				return Identification{}, srcErr
			}
			golog.Info("[ERROR] detector %T: %v", d, err)
			continue
		}

		if id.Format != FormatUnknown {
			return id, nil
		}

		remaining = subtract(remaining, d.Formats())
	}

	return Identification{Format: FormatUnknown}, nil
}

// descend opens the decoded view of the current level.
func (s *Strategy) descend(enabled []Format, dec Decoder, cur *store.RandomAccess) (*store.RandomAccess, io.ReadCloser, error) {
	if err := cur.Reset(); err != nil {
		return nil, nil, err
	}
	if err := cur.Fill(EncodedLength(dec, s.lookahead(enabled))); err != nil {
		return nil, nil, err
	}

	rc, err := openDecoded(dec, cur)
	if err != nil {
		return nil, nil, err
	}

	return store.NewBuffered(rc, s.threshold, s.dir), rc, nil
}

// lookahead returns the largest detect length declared by the detectors for the enabled formats.
func (s *Strategy) lookahead(enabled []Format) int {
	n := 0
	for _, d := range s.registry.Detectors() {
		if la, ok := d.(Lookahead); ok {
			if l := la.DetectLength(intersect(enabled, d.Formats())); l > n {
				n = l
			}
		}
	}

	if n == 0 {
		return DefaultLookahead
	}

	return n
}

// Err returns the decoding failure that ended the chain, if any.
// Only reads of the decoded content are affected by it.
func (r *Result) Err() error {
	return r.err
}

// Levels returns the number of stream levels, the source included.
func (r *Result) Levels() int {
	return len(r.levels)
}

// Close releases the decoded levels and their temporary files.
func (r *Result) Close() error {
	var first error

	for i := len(r.levels) - 1; i > 0; i-- {
		if err := r.levels[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	for i := len(r.readers) - 1; i >= 0; i-- {
		if err := r.readers[i].Close(); err != nil && first == nil {
			first = err
		}
	}

	r.levels = r.levels[:1]
	r.readers = nil

	return first
}
