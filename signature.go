package guess

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pchchv/golog"
	"github.com/pchchv/guess/droid"
)

// SignatureDetector identifies formats with a DROID signature catalog.
// Catalog formats are named through a mapping,
// hits on formats the mapping does not name are reported as FormatUnlisted.
type SignatureDetector struct {
	catalog  *droid.Catalog
	names    map[int]Format
	byFormat map[Format][]int
	unlisted []int
	formats  []Format
	maxScan  int64

	mu      sync.Mutex
	reduced map[string]*droid.Catalog
}

// Interface guards
var _ Detector = (*SignatureDetector)(nil)

// NewSignatureDetector binds a catalog to application formats.
// Mapped names must be registered formats.
// maxScan bounds the search of variable sequences, zero means the whole stream.
func NewSignatureDetector(catalog *droid.Catalog, mapping droid.Mapping, maxScan int64) (*SignatureDetector, error) {
	d := &SignatureDetector{
		catalog:  catalog,
		names:    make(map[int]Format),
		byFormat: make(map[Format][]int),
		maxScan:  maxScan,
		reduced:  make(map[string]*droid.Catalog),
	}

	for id, name := range mapping {
		f, err := ParseFormat(name)
		if err != nil {
			return nil, &ConfigError{Err: fmt.Errorf("mapping of catalog format %d: %w", id, err)}
		}
		if _, ok := catalog.Format(id); !ok {
			golog.Info("[DEBUG] mapping names catalog format %d which is not in the catalog", id)
			continue
		}
		d.names[id] = f
	}

	for _, ff := range catalog.Formats() {
		f, ok := d.names[ff.ID]
		if !ok {
			d.unlisted = append(d.unlisted, ff.ID)
			continue
		}
		d.byFormat[f] = append(d.byFormat[f], ff.ID)
		if !contains(d.formats, f) {
			d.formats = append(d.formats, f)
		}
	}

	if len(d.unlisted) > 0 {
		d.formats = append(d.formats, FormatUnlisted)
	}

	return d, nil
}

// Formats returns the mapped formats, plus FormatUnlisted when the catalog has unmapped formats.
func (d *SignatureDetector) Formats() []Format {
	return d.formats
}

// Detect matches the signatures of the enabled formats against the source.
func (d *SignatureDetector) Detect(enabled []Format, src Source) (Identification, error) {
	unknown := Identification{Format: FormatUnknown}

	wanted := intersect(enabled, d.formats)
	if len(wanted) == 0 {
		return unknown, nil
	}

	m := droid.Matcher{Catalog: d.reduce(wanted), MaxScan: d.maxScan}

	hits, err := m.Match(src, nil)
	if err != nil {
		return unknown, err
	}
	if len(hits) == 0 {
		return unknown, nil
	}

	hit := hits[0]
	f, ok := d.names[hit.Format.ID]
	if !ok {
		f = FormatUnlisted
	}

	return Identification{
		Format:  f,
		Version: hit.Format.Version,
		Name:    hit.Format.Name,
	}, nil
}

// reduce returns the catalog restricted to the wanted formats, cached per format set.
func (d *SignatureDetector) reduce(wanted []Format) *droid.Catalog {
	names := make([]string, len(wanted))
	for i, f := range wanted {
		names[i] = string(f)
	}
	sort.Strings(names)
	key := strings.Join(names, ",")

	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.reduced[key]; ok {
		return c
	}

	var ids []int
	for _, f := range wanted {
		if f == FormatUnlisted {
			ids = append(ids, d.unlisted...)
			continue
		}
		ids = append(ids, d.byFormat[f]...)
	}

	c := d.catalog.Reduce(ids)
	d.reduced[key] = c

	return c
}
