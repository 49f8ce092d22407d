package guess

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pchchv/golog"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

type ruleMode int

const (
	stringRule ruleMode = iota
	regexpRule
	classRule
)

// rule is one line of a rule file.
type rule struct {
	format Format
	mode   ruleMode
	line   int
	length int // leading bytes needed

	literal []byte
	re      *regexp.Regexp
	charset encoding.Encoding // nil means BOM sniffing with UTF-8 fallback
	probe   Probe
}

// RuleDetector detects formats with the literal, regular expression and class rules of a rule file.
// Rules are evaluated in file order and the first matching rule wins.
type RuleDetector struct {
	rules   []rule
	formats []Format
}

// Interface guards
var (
	_ Detector  = (*RuleDetector)(nil)
	_ Lookahead = (*RuleDetector)(nil)
)

// LoadRulesFile reads a rule file from disk.
func LoadRulesFile(name string, classes *ClassRegistry) (*RuleDetector, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, &ConfigError{File: name, Err: err}
	}
	defer f.Close()

	d, err := LoadRules(f, classes)
	if err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) {
			ce.File = name
		}
		return nil, err
	}

	return d, nil
}

// LoadRules parses a rule file.
// Each line is FORMAT=MODE:PARAMS, where MODE is one of
//
//	STRING:[detectLength:]literal
//	REGEXP:detectLength[/charset]:pattern
//	CLASS:key[:params]
//
// Literals understand the \xNN, \n, \r, \t and \\ escapes.
// Lines starting with '#' and blank lines are ignored.
// A nil class registry means DefaultClasses.
func LoadRules(r io.Reader, classes *ClassRegistry) (*RuleDetector, error) {
	if classes == nil {
		classes = DefaultClasses()
	}

	d := &RuleDetector{}
	sc := bufio.NewScanner(r)

	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		ru, err := parseRule(text, classes)
		if err != nil {
			return nil, &ConfigError{Line: line, Err: err}
		}
		ru.line = line

		d.rules = append(d.rules, ru)
		if !contains(d.formats, ru.format) {
			d.formats = append(d.formats, ru.format)
		}
	}

	if err := sc.Err(); err != nil {
		return nil, &ConfigError{Err: err}
	}

	return d, nil
}

func parseRule(text string, classes *ClassRegistry) (rule, error) {
	name, spec, ok := strings.Cut(text, "=")
	if !ok {
		return rule{}, errors.New("missing '='")
	}

	format, err := ParseFormat(name)
	if err != nil {
		return rule{}, err
	}
	if format == FormatUnknown {
		return rule{}, fmt.Errorf("%s cannot be detected", format)
	}

	mode, params, ok := strings.Cut(strings.TrimSpace(spec), ":")
	if !ok {
		return rule{}, fmt.Errorf("missing parameters in %q", spec)
	}

	ru := rule{format: format}

	switch strings.ToUpper(mode) {
	case "STRING":
		ru.mode = stringRule
		err = ru.parseString(params)
	case "REGEXP":
		ru.mode = regexpRule
		err = ru.parseRegexp(params)
	case "CLASS":
		ru.mode = classRule
		err = ru.parseClass(params, classes)
	default:
		err = fmt.Errorf("unknown mode %q", mode)
	}

	return ru, err
}

func (ru *rule) parseString(params string) error {
	length := -1

	// an explicit detect length is a leading number followed by ':'
	if head, rest, ok := strings.Cut(params, ":"); ok {
		if n, err := strconv.Atoi(head); err == nil {
			length, params = n, rest
		}
	}

	lit, err := unescape(params)
	if err != nil {
		return err
	}
	if len(lit) == 0 {
		return errors.New("empty literal")
	}

	if length < 0 {
		length = len(lit)
	}
	if length < len(lit) {
		return fmt.Errorf("detect length %d is shorter than the literal", length)
	}

	ru.literal = lit
	ru.length = length

	return nil
}

func (ru *rule) parseRegexp(params string) error {
	head, pattern, ok := strings.Cut(params, ":")
	if !ok {
		return errors.New("missing detect length")
	}

	lengthText, charset, hasCharset := strings.Cut(head, "/")

	n, err := strconv.Atoi(lengthText)
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid detect length %q", lengthText)
	}
	ru.length = n

	if hasCharset {
		enc, err := ianaindex.IANA.Encoding(charset)
		if err != nil {
			return fmt.Errorf("charset %q: %w", charset, err)
		}
		if enc == nil {
			return fmt.Errorf("charset %q is not supported", charset)
		}
		ru.charset = enc
	}

	if ru.re, err = regexp.Compile(pattern); err != nil {
		return err
	}

	return nil
}

func (ru *rule) parseClass(params string, classes *ClassRegistry) error {
	key, rest, _ := strings.Cut(params, ":")

	p, err := classes.New(key, rest)
	if err != nil {
		return err
	}

	ru.probe = p
	ru.length = p.Length()

	return nil
}

// unescape decodes the escapes of a STRING literal.
func unescape(s string) ([]byte, error) {
	var out []byte

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}

		i++
		if i >= len(s) {
			return nil, errors.New("trailing backslash")
		}

		switch s[i] {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case '\\':
			out = append(out, '\\')
		case 'x':
			if i+2 >= len(s) {
				return nil, errors.New("truncated \\x escape")
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid escape \\x%s", s[i+1:i+3])
			}
			out = append(out, byte(v))
			i += 2
		default:
			return nil, fmt.Errorf("unknown escape \\%c", s[i])
		}
	}

	return out, nil
}

// Formats returns the formats of the rules, in rule order.
func (d *RuleDetector) Formats() []Format {
	return d.formats
}

// DetectLength returns the largest detect length of the rules for the enabled formats.
func (d *RuleDetector) DetectLength(enabled []Format) int {
	n := 0
	for _, ru := range d.rules {
		if ru.length > n && contains(enabled, ru.format) {
			n = ru.length
		}
	}
	return n
}

// DetectBytes returns the format of the first rule for the enabled formats matching p.
// p holds the leading bytes of the stream, at least DetectLength of them unless the stream is shorter.
func (d *RuleDetector) DetectBytes(enabled []Format, p []byte) Format {
	for _, ru := range d.rules {
		if contains(enabled, ru.format) && ru.match(p) {
			return ru.format
		}
	}
	return FormatUnknown
}

// Detect reads the leading bytes the enabled rules need and matches them.
func (d *RuleDetector) Detect(enabled []Format, src Source) (Identification, error) {
	head, err := readAtMost(src, d.DetectLength(enabled))
	if err != nil {
		return Identification{Format: FormatUnknown}, err
	}

	return Identification{Format: d.DetectBytes(enabled, head)}, nil
}

func (ru *rule) match(p []byte) bool {
	if len(p) > ru.length {
		p = p[:ru.length]
	}

	switch ru.mode {
	case stringRule:
		if ru.length == len(ru.literal) {
			return bytes.HasPrefix(p, ru.literal)
		}
		return bytes.Contains(p, ru.literal)

	case regexpRule:
		text, err := ru.decode(p)
		if err != nil {
			golog.Info("[DEBUG] rule for %s on line %d: %v", ru.format, ru.line, err)
			return false
		}
		return ru.re.Match(text)

	case classRule:
		ok, err := ru.probe.Match(bytes.NewReader(p))
		if err != nil {
			golog.Info("[DEBUG] rule for %s on line %d: %v", ru.format, ru.line, err)
			return false
		}
		return ok
	}

	return false
}

// decode turns the leading bytes into UTF-8 text.
func (ru *rule) decode(p []byte) ([]byte, error) {
	var t transform.Transformer
	if ru.charset != nil {
		t = ru.charset.NewDecoder()
	} else {
		t = unicode.BOMOverride(unicode.UTF8.NewDecoder())
	}

	text, _, err := transform.Bytes(t, p)

	return text, err
}
