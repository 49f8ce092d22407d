package droid

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	literalToken tokenKind = iota
	gapToken
	rangeToken
	altToken
)

// token is one element of a compiled pattern.
type token struct {
	kind tokenKind

	// literal bytes
	lit []byte

	// gap window, max is Unbounded for open windows
	min, max int64

	// range bounds as big-endian values of equal width,
	// little means the bytes in the data are in little-endian order
	lo, hi []byte
	negate bool
	little bool

	// alternatives
	alts [][]token
}

// parsePattern compiles a byte sequence pattern:
//
//	4D5A        hex bytes
//	??          any byte
//	{4} {2-8}   gaps, {2-*} and * are open
//	[30:39]     inclusive range, multi-byte ranges compare whole values
//	[!00]       negation
//	(0D0A|0A)   alternatives
func parsePattern(s string, endian Endianness) ([]token, error) {
	p := &patternParser{s: s, endian: endian}

	toks, err := p.parse(false)
	if err != nil {
		return nil, fmt.Errorf("%w: %q at %d: %v", ErrMalformedSequence, s, p.i, err)
	}
	if p.i < len(p.s) {
		return nil, fmt.Errorf("%w: %q at %d: unexpected %q", ErrMalformedSequence, s, p.i, p.s[p.i])
	}

	return toks, nil
}

type patternParser struct {
	s      string
	i      int
	endian Endianness
}

// parse reads tokens until the end of input, or until '|' or ')' when nested.
func (p *patternParser) parse(nested bool) ([]token, error) {
	var toks []token
	var lit []byte

	flush := func() {
		if len(lit) > 0 {
			toks = append(toks, token{kind: literalToken, lit: lit})
			lit = nil
		}
	}

	for p.i < len(p.s) {
		c := p.s[p.i]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.i++

		case c == '|' || c == ')':
			if !nested {
				return nil, fmt.Errorf("unexpected %q", c)
			}
			flush()
			return toks, nil

		case c == '?':
			if !strings.HasPrefix(p.s[p.i:], "??") {
				return nil, fmt.Errorf("single '?'")
			}
			p.i += 2
			flush()
			toks = appendGap(toks, 1, 1)

		case c == '*':
			p.i++
			flush()
			toks = appendGap(toks, 0, Unbounded)

		case c == '{':
			flush()
			lo, hi, err := p.gap()
			if err != nil {
				return nil, err
			}
			toks = appendGap(toks, lo, hi)

		case c == '[':
			flush()
			t, err := p.rng()
			if err != nil {
				return nil, err
			}
			toks = append(toks, t)

		case c == '(':
			flush()
			t, err := p.alternatives()
			if err != nil {
				return nil, err
			}
			toks = append(toks, t)

		default:
			b, err := p.hexByte()
			if err != nil {
				return nil, err
			}
			lit = append(lit, b)
		}
	}

	if nested {
		return nil, fmt.Errorf("unterminated alternatives")
	}
	flush()

	return toks, nil
}

func (p *patternParser) hexByte() (byte, error) {
	if p.i+2 > len(p.s) {
		return 0, fmt.Errorf("truncated hex byte")
	}

	v, err := strconv.ParseUint(p.s[p.i:p.i+2], 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid hex byte %q", p.s[p.i:p.i+2])
	}
	p.i += 2

	return byte(v), nil
}

// gap parses {n}, {n-m} and {n-*}.
func (p *patternParser) gap() (int64, int64, error) {
	end := strings.IndexByte(p.s[p.i:], '}')
	if end < 0 {
		return 0, 0, fmt.Errorf("unterminated gap")
	}

	body := p.s[p.i+1 : p.i+end]
	p.i += end + 1

	loText, hiText, isRange := strings.Cut(body, "-")
	lo, err := strconv.ParseInt(strings.TrimSpace(loText), 10, 64)
	if err != nil || lo < 0 {
		return 0, 0, fmt.Errorf("invalid gap %q", body)
	}
	if !isRange {
		return lo, lo, nil
	}

	hiText = strings.TrimSpace(hiText)
	if hiText == "*" {
		return lo, Unbounded, nil
	}

	hi, err := strconv.ParseInt(hiText, 10, 64)
	if err != nil || hi < lo {
		return 0, 0, fmt.Errorf("invalid gap %q", body)
	}

	return lo, hi, nil
}

// rng parses [lo:hi], [v], [!lo:hi] and [!v].
func (p *patternParser) rng() (token, error) {
	end := strings.IndexByte(p.s[p.i:], ']')
	if end < 0 {
		return token{}, fmt.Errorf("unterminated range")
	}

	body := p.s[p.i+1 : p.i+end]
	p.i += end + 1

	t := token{kind: rangeToken, little: p.endian == LittleEndian}
	if strings.HasPrefix(body, "!") {
		t.negate = true
		body = body[1:]
	}

	loText, hiText, isRange := strings.Cut(body, ":")
	if !isRange {
		hiText = loText
	}

	lo, err := hex.DecodeString(strings.TrimSpace(loText))
	if err != nil || len(lo) == 0 {
		return token{}, fmt.Errorf("invalid range %q", body)
	}
	hi, err := hex.DecodeString(strings.TrimSpace(hiText))
	if err != nil || len(hi) != len(lo) {
		return token{}, fmt.Errorf("invalid range %q", body)
	}
	if bytes.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}

	t.lo, t.hi = lo, hi
	// single bytes have no byte order
	if len(lo) == 1 {
		t.little = false
	}

	return t, nil
}

// alternatives parses (a|b|c).
func (p *patternParser) alternatives() (token, error) {
	t := token{kind: altToken}
	p.i++ // '('

	for {
		alt, err := p.parse(true)
		if err != nil {
			return token{}, err
		}
		t.alts = append(t.alts, alt)

		c := p.s[p.i]
		p.i++
		if c == ')' {
			break
		}
	}

	return t, nil
}

// appendGap merges consecutive gaps into one window.
func appendGap(toks []token, lo, hi int64) []token {
	if n := len(toks); n > 0 && toks[n-1].kind == gapToken {
		last := &toks[n-1]
		last.min += lo
		if last.max == Unbounded || hi == Unbounded {
			last.max = Unbounded
		} else {
			last.max += hi
		}
		return toks
	}

	return append(toks, token{kind: gapToken, min: lo, max: hi})
}

// reverseTokens mirrors a pattern so it can be matched against reversed data.
func reverseTokens(toks []token) []token {
	out := make([]token, len(toks))

	for i, t := range toks {
		r := t
		switch t.kind {
		case literalToken:
			r.lit = make([]byte, len(t.lit))
			for j, b := range t.lit {
				r.lit[len(t.lit)-1-j] = b
			}
		case rangeToken:
			if len(t.lo) > 1 {
				r.little = !t.little
			}
		case altToken:
			r.alts = make([][]token, len(t.alts))
			for j, alt := range t.alts {
				r.alts[j] = reverseTokens(alt)
			}
		}
		out[len(toks)-1-i] = r
	}

	return out
}

// width returns the minimum number of bytes a pattern consumes.
func width(toks []token) int64 {
	var w int64

	for _, t := range toks {
		switch t.kind {
		case literalToken:
			w += int64(len(t.lit))
		case gapToken:
			w += t.min
		case rangeToken:
			w += int64(len(t.lo))
		case altToken:
			var m int64 = -1
			for _, alt := range t.alts {
				if aw := width(alt); m < 0 || aw < m {
					m = aw
				}
			}
			if m > 0 {
				w += m
			}
		}
	}

	return w
}
