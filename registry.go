package guess

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/pchchv/guess/droid"
)

// DefaultMaxScan bounds the search of variable catalog sequences in the default registry.
const DefaultMaxScan = 64 * 1024

var (
	//go:embed defaults/default.rules
	defaultRules []byte

	//go:embed defaults/heuristic.rules
	defaultHeuristics []byte

	//go:embed defaults/catalog.xml
	defaultCatalog []byte

	//go:embed defaults/mapping.properties
	defaultMapping []byte
)

// Registry is an immutable set of detectors, in evaluation order, and decoders, one per format.
type Registry struct {
	detectors []Detector
	decoders  map[Format]Decoder
	order     []Decoder
}

// NewRegistry returns a registry evaluating the detectors in the given order.
// At least one detector is required and each format may have one decoder only.
func NewRegistry(detectors []Detector, decoders []Decoder) (*Registry, error) {
	if len(detectors) == 0 {
		return nil, ErrNoDetectors
	}

	r := &Registry{
		detectors: append([]Detector(nil), detectors...),
		decoders:  make(map[Format]Decoder, len(decoders)),
	}

	for _, d := range decoders {
		if _, ok := r.decoders[d.Format()]; ok {
			return nil, fmt.Errorf("%s has more than one decoder", d.Format())
		}
		r.decoders[d.Format()] = d
		r.order = append(r.order, d)
	}

	return r, nil
}

// Detectors returns the detectors in evaluation order.
func (r *Registry) Detectors() []Detector {
	return r.detectors
}

// Decoder returns the decoder of f, if any.
func (r *Registry) Decoder(f Format) (Decoder, bool) {
	d, ok := r.decoders[f]
	return d, ok
}

// Decoders returns the decoders in registration order.
func (r *Registry) Decoders() []Decoder {
	return r.order
}

// Formats returns every format a detector of the registry can report.
func (r *Registry) Formats() []Format {
	var out []Format
	for _, d := range r.detectors {
		for _, f := range d.Formats() {
			if !contains(out, f) {
				out = append(out, f)
			}
		}
	}
	return out
}

// DefaultDecoders returns the built-in decoders.
func DefaultDecoders() []Decoder {
	return []Decoder{
		Base64{},
		Gz{},
		Bz2{},
		Xz{},
		Lzma{},
		Zstd{},
		Lz4{},
		Zlib{},
		Sz{},
		Brotli{},
		PKCS7{},
	}
}

// DefaultRuleDetector returns the detector of the built-in rule file.
func DefaultRuleDetector() (*RuleDetector, error) {
	d, err := LoadRules(bytes.NewReader(defaultRules), DefaultClasses())
	if err != nil {
		return nil, fmt.Errorf("default rules: %w", err)
	}
	return d, nil
}

// DefaultHeuristicDetector returns the detector of the built-in rules for formats without a magic number.
// Those rules may match arbitrary binary data, so they belong after every other detector.
func DefaultHeuristicDetector() (*RuleDetector, error) {
	d, err := LoadRules(bytes.NewReader(defaultHeuristics), DefaultClasses())
	if err != nil {
		return nil, fmt.Errorf("default heuristics: %w", err)
	}
	return d, nil
}

// DefaultSignatureDetector returns the detector of the built-in signature catalog.
func DefaultSignatureDetector(maxScan int64) (*SignatureDetector, error) {
	catalog, err := droid.LoadCatalog(bytes.NewReader(defaultCatalog))
	if err != nil {
		return nil, fmt.Errorf("default catalog: %w", err)
	}

	mapping, err := droid.LoadMapping(bytes.NewReader(defaultMapping))
	if err != nil {
		return nil, fmt.Errorf("default mapping: %w", err)
	}

	return NewSignatureDetector(catalog, mapping, maxScan)
}

var (
	defaultRegistry     *Registry
	defaultRegistryErr  error
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the shared registry of the built-in detectors and decoders.
// Archives are verified first, then the rules, the signature catalog
// and finally the heuristics are tried. It is built once, on first use.
func DefaultRegistry() (*Registry, error) {
	defaultRegistryOnce.Do(func() {
		rules, err := DefaultRuleDetector()
		if err != nil {
			defaultRegistryErr = err
			return
		}

		sigs, err := DefaultSignatureDetector(DefaultMaxScan)
		if err != nil {
			defaultRegistryErr = err
			return
		}

		heuristics, err := DefaultHeuristicDetector()
		if err != nil {
			defaultRegistryErr = err
			return
		}

		defaultRegistry, defaultRegistryErr = NewRegistry([]Detector{ArchiveDetector{}, rules, sigs, heuristics}, DefaultDecoders())
	})

	return defaultRegistry, defaultRegistryErr
}
