package droid

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Mapping binds catalog format IDs to application format names.
type Mapping map[int]string

// LoadMappingFile reads a mapping properties file from disk.
func LoadMappingFile(name string) (Mapping, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := LoadMapping(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return m, nil
}

// LoadMapping reads lines of the form catalogID=NAME.
// '#' and '!' start comments, ':' may be used instead of '='.
func LoadMapping(r io.Reader) (Mapping, error) {
	m := make(Mapping)
	sc := bufio.NewScanner(r)

	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' || text[0] == '!' {
			continue
		}

		sep := strings.IndexAny(text, "=:")
		if sep < 0 {
			return nil, fmt.Errorf("line %d: missing separator", line)
		}

		key := strings.TrimSpace(text[:sep])
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid format id %q", line, key)
		}

		name := strings.TrimSpace(text[sep+1:])
		if name == "" {
			return nil, fmt.Errorf("line %d: empty name for id %d", line, id)
		}

		m[id] = name
	}

	if err := sc.Err(); err != nil {
		return nil, err
	}

	return m, nil
}
