package guess

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ProbeFactory builds a probe from the parameter string of a CLASS rule.
type ProbeFactory func(params string) (Probe, error)

// ClassRegistry maps the keys of CLASS rules to probe factories.
// Registration is a setup-time operation, a registry must not change while rules are being loaded.
type ClassRegistry struct {
	factories map[string]ProbeFactory
}

// NewClassRegistry returns an empty registry.
func NewClassRegistry() *ClassRegistry {
	return &ClassRegistry{factories: make(map[string]ProbeFactory)}
}

// DefaultClasses returns a registry holding the built-in probes.
func DefaultClasses() *ClassRegistry {
	c := NewClassRegistry()

	c.Register("gzip", fixed(Gz{}))
	c.Register("bzip2", fixed(Bz2{}))
	c.Register("xz", fixed(Xz{}))
	c.Register("lzma", fixed(Lzma{}))
	c.Register("zstd", fixed(Zstd{}))
	c.Register("lz4", fixed(Lz4{}))
	c.Register("zlib", fixed(Zlib{}))
	c.Register("snappy", fixed(Sz{}))
	c.Register("pkcs7", fixed(PKCS7{}))
	c.Register("tar", fixed(Tar{}))
	c.Register("rar", func(params string) (Probe, error) {
		return Rar{Password: params}, nil
	})
	c.Register("brotli", func(params string) (Probe, error) {
		n, err := probeLength(params)
		return Brotli{ProbeLength: n}, err
	})
	c.Register("json", func(params string) (Probe, error) {
		n, err := probeLength(params)
		return JSON{ProbeLength: n}, err
	})

	return c
}

// Register adds a factory.
// Duplicate keys are not allowed and will cause a panic.
func (c *ClassRegistry) Register(key string, factory ProbeFactory) {
	key = strings.ToLower(strings.TrimSpace(key))
	if _, ok := c.factories[key]; ok {
		panic("class " + key + " is already registered")
	}

	c.factories[key] = factory
}

// New builds the probe registered under key.
func (c *ClassRegistry) New(key, params string) (Probe, error) {
	factory, ok := c.factories[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, key)
	}

	p, err := factory(params)
	if err != nil {
		return nil, fmt.Errorf("class %s: %w", key, err)
	}

	return p, nil
}

// Keys returns the registered keys, sorted.
func (c *ClassRegistry) Keys() []string {
	keys := make([]string, 0, len(c.factories))
	for k := range c.factories {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// fixed is a factory for probes without parameters.
func fixed(p Probe) ProbeFactory {
	return func(params string) (Probe, error) {
		if params != "" {
			return nil, fmt.Errorf("unexpected parameters %q", params)
		}
		return p, nil
	}
}

// probeLength parses an optional probe window size.
func probeLength(params string) (int, error) {
	if params == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(params)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid probe length %q", params)
	}

	return n, nil
}
