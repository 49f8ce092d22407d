package droid

import (
	"fmt"
	"sort"
)

// signature is a compiled internal signature.
type signature struct {
	id          int
	specificity string
	owners      []int // IDs of the formats using this signature
	anchored    bool  // no variable sequences
	sequences   []sequence
}

// sequence is a compiled byte sequence.
// EOF sequences are stored mirrored and matched against the reversed data.
type sequence struct {
	ref   Reference
	toks  []token
	width int64
}

func compileSignature(is InternalSignature) (*signature, error) {
	sig := &signature{
		id:          is.ID,
		specificity: is.Specificity,
		anchored:    true,
	}

	for i, bs := range is.Sequences {
		seq, err := compileSequence(bs)
		if err != nil {
			return nil, fmt.Errorf("byte sequence %d: %w", i+1, err)
		}
		if bs.Reference == Variable {
			sig.anchored = false
		}
		sig.sequences = append(sig.sequences, seq)
	}

	return sig, nil
}

func compileSequence(bs ByteSequence) (sequence, error) {
	subs := make([]SubSequence, len(bs.SubSequences))
	copy(subs, bs.SubSequences)
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].Position < subs[j].Position
	})

	seq := sequence{ref: bs.Reference}
	for i, ss := range subs {
		toks, err := compileSubSequence(ss, bs.Endianness)
		if err != nil {
			return seq, fmt.Errorf("sub-sequence %d: %w", ss.Position, err)
		}
		if bs.Reference == EOF {
			toks = reverseTokens(toks)
		}

		hi := ss.MaxOffset
		if i == 0 && bs.Reference == Variable {
			hi = Unbounded
		}

		seq.toks = appendGap(seq.toks, ss.MinOffset, hi)
		seq.toks = append(seq.toks, toks...)
	}
	seq.width = width(seq.toks)

	return seq, nil
}

// compileSubSequence lays out left fragments, the sequence itself and right fragments.
// Left fragments are placed farthest first, right fragments nearest first.
func compileSubSequence(ss SubSequence, endian Endianness) ([]token, error) {
	if ss.Sequence == "" {
		return nil, fmt.Errorf("%w: empty sequence", ErrMalformedSequence)
	}

	var toks []token

	left, err := fragmentGroups(ss.Left, endian)
	if err != nil {
		return nil, fmt.Errorf("left fragment: %w", err)
	}
	for i := len(left) - 1; i >= 0; i-- {
		alt := token{kind: altToken}
		for _, f := range left[i] {
			alt.alts = append(alt.alts, appendGap(f.toks, f.min, f.max))
		}
		toks = append(toks, alt)
	}

	body, err := parsePattern(ss.Sequence, endian)
	if err != nil {
		return nil, err
	}
	toks = append(toks, body...)

	right, err := fragmentGroups(ss.Right, endian)
	if err != nil {
		return nil, fmt.Errorf("right fragment: %w", err)
	}
	for _, group := range right {
		alt := token{kind: altToken}
		for _, f := range group {
			alt.alts = append(alt.alts, append(appendGap(nil, f.min, f.max), f.toks...))
		}
		toks = append(toks, alt)
	}

	return toks, nil
}

type fragment struct {
	toks     []token
	min, max int64
}

// fragmentGroups compiles fragments grouped by position, nearest position first.
func fragmentGroups(frags []Fragment, endian Endianness) ([][]fragment, error) {
	byPos := make(map[int][]fragment)
	var positions []int

	for _, f := range frags {
		toks, err := parsePattern(f.Value, endian)
		if err != nil {
			return nil, err
		}
		if _, ok := byPos[f.Position]; !ok {
			positions = append(positions, f.Position)
		}
		byPos[f.Position] = append(byPos[f.Position], fragment{toks: toks, min: f.MinOffset, max: f.MaxOffset})
	}

	sort.Ints(positions)
	groups := make([][]fragment, 0, len(positions))
	for _, p := range positions {
		groups = append(groups, byPos[p])
	}

	return groups, nil
}
