package guess

import "io"

// Source is the replayable view of a stream that detectors inspect.
// Detectors may read, seek and use random access freely,
// the strategy rewinds the source before every attempt.
type Source interface {
	io.ReadSeeker
	io.ReaderAt

	// Size returns the total length of the stream, reading it to the end if necessary.
	Size() (int64, error)
}

// Detector recognizes a set of formats.
type Detector interface {
	// Formats returns every format the detector can report.
	// A detector none of whose formats is wanted is never called.
	Formats() []Format

	// Detect identifies the stream among the enabled formats.
	// Not identifying the stream is not an error: FormatUnknown is returned.
	Detect(enabled []Format, src Source) (Identification, error)
}

// Lookahead is implemented by detectors that read a bounded prefix of the stream.
type Lookahead interface {
	// DetectLength returns how many leading bytes are needed to detect the enabled formats.
	DetectLength(enabled []Format) int
}

// Decoder strips one layer of encoding.
// Decoders are stateless: decoding the same bytes twice yields the same output.
type Decoder interface {
	// Format returns the format the decoder unwraps.
	Format() Format

	// EncodingOffset returns the number of header bytes the encoding adds.
	EncodingOffset() int

	// Ratio returns how many encoded bytes produce one decoded byte.
	Ratio() float64

	// OpenReader wraps r in a reader returning the decoded bytes.
	OpenReader(r io.Reader) (io.ReadCloser, error)
}

// Probe is a format test usable in CLASS rules.
type Probe interface {
	// Length returns how many leading bytes the probe needs.
	Length() int

	// Match reports whether the stream, limited to its first Length bytes, is in the format.
	// Match reads only as many bytes as necessary to determine the match.
	Match(stream io.Reader) (bool, error)
}
