package droid

import (
	"errors"
	"reflect"
	"testing"
)

func TestParsePattern(t *testing.T) {
	for i, tc := range []struct {
		input  string
		endian Endianness
		expect []token
	}{
		{
			input:  "4D5A",
			expect: []token{{kind: literalToken, lit: []byte{0x4d, 0x5a}}},
		},
		{
			input: "4D5A??{2-*}[!00]",
			expect: []token{
				{kind: literalToken, lit: []byte{0x4d, 0x5a}},
				{kind: gapToken, min: 3, max: Unbounded},
				{kind: rangeToken, lo: []byte{0}, hi: []byte{0}, negate: true},
			},
		},
		{
			input: "41 {2-8} 42 *",
			expect: []token{
				{kind: literalToken, lit: []byte{0x41}},
				{kind: gapToken, min: 2, max: 8},
				{kind: literalToken, lit: []byte{0x42}},
				{kind: gapToken, min: 0, max: Unbounded},
			},
		},
		{
			input:  "[0010:0020]",
			endian: LittleEndian,
			expect: []token{
				{kind: rangeToken, lo: []byte{0x00, 0x10}, hi: []byte{0x00, 0x20}, little: true},
			},
		},
		{
			input:  "[39:30]",
			endian: LittleEndian,
			expect: []token{
				{kind: rangeToken, lo: []byte{0x30}, hi: []byte{0x39}},
			},
		},
		{
			input: "0D(0A|{2}0A0A)",
			expect: []token{
				{kind: literalToken, lit: []byte{0x0d}},
				{kind: altToken, alts: [][]token{
					{{kind: literalToken, lit: []byte{0x0a}}},
					{{kind: gapToken, min: 2, max: 2}, {kind: literalToken, lit: []byte{0x0a, 0x0a}}},
				}},
			},
		},
	} {
		actual, err := parsePattern(tc.input, tc.endian)
		if err != nil {
			t.Fatalf("Test %d: unexpected error: %v", i, err)
		}
		if !reflect.DeepEqual(actual, tc.expect) {
			t.Errorf("Test %d: expected %+v but got %+v", i, tc.expect, actual)
		}
	}
}

func TestParsePatternErrors(t *testing.T) {
	for _, input := range []string{
		"4",
		"?",
		"ZZ",
		"[00:0000]",
		"[00",
		"(41|42",
		"41)",
		"{3-1}",
		"{x}",
	} {
		if _, err := parsePattern(input, BigEndian); !errors.Is(err, ErrMalformedSequence) {
			t.Errorf("%q: expected ErrMalformedSequence but got %v", input, err)
		}
	}
}

func TestReverseTokens(t *testing.T) {
	toks, err := parsePattern("4142(43|4445)[0010:0020]", BigEndian)
	if err != nil {
		t.Fatal(err)
	}

	expect := []token{
		{kind: rangeToken, lo: []byte{0x00, 0x10}, hi: []byte{0x00, 0x20}, little: true},
		{kind: altToken, alts: [][]token{
			{{kind: literalToken, lit: []byte{0x43}}},
			{{kind: literalToken, lit: []byte{0x45, 0x44}}},
		}},
		{kind: literalToken, lit: []byte{0x42, 0x41}},
	}

	if actual := reverseTokens(toks); !reflect.DeepEqual(actual, expect) {
		t.Fatalf("expected %+v but got %+v", expect, actual)
	}
}

func TestWidth(t *testing.T) {
	for i, tc := range []struct {
		input  string
		expect int64
	}{
		{input: "4142", expect: 2},
		{input: "41{3-*}42", expect: 5},
		{input: "(41|4243)[0000:FFFF]", expect: 3},
		{input: "*", expect: 0},
	} {
		toks, err := parsePattern(tc.input, BigEndian)
		if err != nil {
			t.Fatalf("Test %d: %v", i, err)
		}
		if actual := width(toks); actual != tc.expect {
			t.Errorf("Test %d: expected width %d but got %d", i, tc.expect, actual)
		}
	}
}
