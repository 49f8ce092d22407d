package guess

import (
	"errors"
	"fmt"
)

var (
	// ErrReadStarted is returned when the configuration of a stream is changed after the first Read.
	ErrReadStarted = errors.New("read already started")

	// ErrNoDetectors is returned when a registry has no detector at all.
	ErrNoDetectors = errors.New("no detectors configured")

	// ErrUnknownFormat is returned for format names that were never registered.
	ErrUnknownFormat = errors.New("unknown format")

	// ErrUnknownClass is returned for CLASS rules whose key has no factory.
	ErrUnknownClass = errors.New("unknown class")
)

// ConfigError describes a problem with a configuration file.
type ConfigError struct {
	File string
	Line int
	Err  error
}

func (e *ConfigError) Error() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	case e.File != "":
		return fmt.Sprintf("%s: %v", e.File, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// DecodeError is returned by decoded streams whose payload is malformed.
type DecodeError struct {
	Format Format
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
