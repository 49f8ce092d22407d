package guess

import (
	"errors"
	"io"

	"github.com/pchchv/golog"
	"github.com/pchchv/guess/store"
)

// DefaultSpillThreshold is the number of buffered bytes kept in memory before spilling to a temporary file.
const DefaultSpillThreshold = 1 << 20

// Options configures a Stream.
type Options struct {
	// Registry holds the detectors and decoders, nil means DefaultRegistry.
	Registry *Registry

	// MaxRecursion is the number of levels inspected.
	// Zero and one both inspect the outermost level only.
	MaxRecursion int

	// SpillThreshold is the per level in-memory buffer size, zero means DefaultSpillThreshold.
	SpillThreshold int64

	// TempDir is where spill files are created, empty means os.TempDir.
	TempDir string
}

// Guesser is a stream that knows the formats of its content.
type Guesser interface {
	io.ReadCloser

	// Format returns the outermost identification.
	Format() (Identification, error)

	// Formats returns the chain of nested identifications, outermost first.
	// It is never empty unless an error is returned.
	Formats() ([]Identification, error)

	// EnabledFormats returns the formats detection is restricted to.
	EnabledFormats() []Format

	// MaxRecursion returns the number of levels inspected.
	MaxRecursion() int

	// Decode selects whether Read returns the decoded or the raw bytes.
	// It returns ErrReadStarted once reading has started.
	Decode(decode bool) error
}

// Stream detects the formats of a reader lazily and then reads it, raw or decoded.
// Detection never consumes bytes from the caller's point of view:
// in raw mode the stream yields exactly the bytes of the source.
type Stream struct {
	src  io.Reader
	ra   *store.RandomAccess
	opts Options
	err  error // registry setup failure

	enabled []Format
	decode  bool

	detected  bool
	result    *Result
	detectErr error

	started   bool
	out       io.Reader
	outCloser io.Closer
	closed    bool
}

// Interface guards
var (
	_ Guesser = (*Stream)(nil)
	_ Guesser = (*filteredStream)(nil)
)

// New returns a stream detecting the given formats in r, nil formats means AllFormats.
// Nothing is read from r before Format, Formats or Read is called.
func New(r io.Reader, formats []Format, opts Options) *Stream {
	if formats == nil {
		formats = AllFormats()
	}
	if opts.SpillThreshold <= 0 {
		opts.SpillThreshold = DefaultSpillThreshold
	}

	s := &Stream{
		src:     r,
		ra:      store.NewBuffered(r, opts.SpillThreshold, opts.TempDir),
		opts:    opts,
		enabled: formats,
	}

	if s.opts.Registry == nil {
		s.opts.Registry, s.err = DefaultRegistry()
	}

	return s
}

// Wrap returns a view of r detecting the given formats.
// When r already is a Guesser whose enabled formats include the requested ones
// and which inspects as many levels, its detection is reused and filtered,
// otherwise a new Stream is returned.
func Wrap(r io.Reader, formats []Format, opts Options) Guesser {
	if formats == nil {
		formats = AllFormats()
	}

	if g, ok := r.(Guesser); ok && g.MaxRecursion() == opts.MaxRecursion && isSubset(formats, g.EnabledFormats()) {
		return &filteredStream{Guesser: g, enabled: formats}
	}

	return New(r, formats, opts)
}

// EnabledFormats returns the formats detection is restricted to.
func (s *Stream) EnabledFormats() []Format {
	return s.enabled
}

// MaxRecursion returns the number of levels inspected.
func (s *Stream) MaxRecursion() int {
	return s.opts.MaxRecursion
}

// SetFormats changes the formats detection is restricted to.
// A previous detection result is discarded.
func (s *Stream) SetFormats(formats []Format) error {
	if s.started {
		return ErrReadStarted
	}
	if formats == nil {
		formats = AllFormats()
	}

	s.enabled = formats

	return s.invalidate()
}

// SetMaxRecursion changes the number of levels inspected.
// A previous detection result is discarded.
func (s *Stream) SetMaxRecursion(n int) error {
	if s.started {
		return ErrReadStarted
	}

	s.opts.MaxRecursion = n

	return s.invalidate()
}

// Decode selects whether Read returns the decoded or the raw bytes.
func (s *Stream) Decode(decode bool) error {
	if s.started {
		return ErrReadStarted
	}

	s.decode = decode

	return nil
}

// Format returns the outermost identification, detecting it on the first call.
func (s *Stream) Format() (Identification, error) {
	chain, err := s.Formats()
	if err != nil {
		return Identification{Format: FormatUnknown}, err
	}

	return chain[0], nil
}

// Formats returns the chain of nested identifications, detecting it on the first call.
func (s *Stream) Formats() ([]Identification, error) {
	res, err := s.detect()
	if err != nil {
		return nil, err
	}

	return res.Chain, nil
}

func (s *Stream) detect() (*Result, error) {
	if s.detected {
		return s.result, s.detectErr
	}
	if s.closed {
		return nil, store.ErrClosed
	}

	s.detected = true

	if s.err != nil {
		s.detectErr = s.err
		return nil, s.err
	}

	st := NewStrategy(s.opts.Registry, s.opts.MaxRecursion, s.opts.SpillThreshold, s.opts.TempDir)
	s.result, s.detectErr = st.Run(s.enabled, s.ra)

	return s.result, s.detectErr
}

func (s *Stream) invalidate() error {
	var err error
	if s.result != nil {
		err = s.result.Close()
	}

	s.detected = false
	s.result = nil
	s.detectErr = nil

	return err
}

func (s *Stream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, store.ErrClosed
	}

	if !s.started {
		s.started = true
		if err := s.open(); err != nil {
			s.out = errReader{err}
		}
	}

	return s.out.Read(p)
}

// open runs detection and selects the level Read draws from.
// Buffering stops on every level, the buffered bytes are replayed once.
func (s *Stream) open() error {
	res, err := s.detect()
	if err != nil {
		return err
	}

	if !s.decode {
		if err := res.Close(); err != nil {
			golog.Info("[ERROR] releasing decoded levels: %v", err)
		}
		if err := s.ra.Reset(); err != nil {
			return err
		}
		if err := s.ra.Enable(false); err != nil {
			return err
		}

		s.out = s.ra
		return nil
	}

	if res.err != nil {
		return res.err
	}

	for _, l := range res.levels {
		if err := l.Enable(false); err != nil {
			return err
		}
	}

	deepest := res.levels[len(res.levels)-1]
	if err := deepest.Reset(); err != nil {
		return err
	}
	s.out = deepest

	// detection stopped on an encoding because of the recursion bound
	last := res.Chain[len(res.Chain)-1]
	if dec, ok := s.opts.Registry.Decoder(last.Format); ok {
		rc, err := openDecoded(dec, deepest)
		if err != nil {
			return err
		}
		s.out, s.outCloser = rc, rc
	}

	return nil
}

// Close releases the buffers, removes the spill files and closes the source when it is an io.Closer.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.outCloser != nil {
		errs = append(errs, s.outCloser.Close())
	}
	if s.result != nil {
		errs = append(errs, s.result.Close())
	}
	errs = append(errs, s.ra.Close())
	if c, ok := s.src.(io.Closer); ok {
		errs = append(errs, c.Close())
	}

	return errors.Join(errs...)
}

// filteredStream is a narrower view of a Guesser that reuses its detection.
type filteredStream struct {
	Guesser
	enabled []Format
}

func (f *filteredStream) EnabledFormats() []Format {
	return f.enabled
}

// Formats returns the chain of the underlying stream up to the first format outside the view.
func (f *filteredStream) Formats() ([]Identification, error) {
	chain, err := f.Guesser.Formats()
	if err != nil {
		return nil, err
	}

	out := make([]Identification, 0, len(chain))
	for _, id := range chain {
		if id.Format != FormatUnknown && !contains(f.enabled, id.Format) {
			break
		}
		out = append(out, id)
	}

	if len(out) == 0 {
		out = append(out, Identification{Format: FormatUnknown})
	}

	return out, nil
}

func (f *filteredStream) Format() (Identification, error) {
	chain, err := f.Formats()
	if err != nil {
		return Identification{Format: FormatUnknown}, err
	}

	return chain[0], nil
}

// errReader fails every read with the same error.
type errReader struct {
	err error
}

func (r errReader) Read([]byte) (int, error) {
	return 0, r.err
}
