// Package bitseq provides the bit sequence type shared by the entropy
// pipeline and the statistical tests, including the ASCII 0/1 interchange
// format used to export bits for external verification.
package bitseq

import (
	"errors"
	"math/bits"
)

// Sequence is an ordered sequence of bits. Each element is 0 or 1.
type Sequence []byte

// ErrInvalidBit is returned when parsing input that contains characters
// other than '0' and '1'.
var ErrInvalidBit = errors.New("bit sequence may only contain 0 and 1")

// FromBytes expands raw bytes into a bit sequence, most significant bit
// first.
func FromBytes(data []byte) Sequence {
	seq := make(Sequence, 0, len(data)*8)
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			seq = append(seq, (b>>uint(i))&1)
		}
	}
	return seq
}

// Parse parses an ASCII 0/1 string. Any other character is an error.
func Parse(s string) (Sequence, error) {
	seq := make(Sequence, 0, len(s))
	for _, ch := range []byte(s) {
		switch ch {
		case '0':
			seq = append(seq, 0)
		case '1':
			seq = append(seq, 1)
		default:
			return nil, ErrInvalidBit
		}
	}
	return seq, nil
}

// Filter extracts all 0/1 characters from the given string, silently
// skipping everything else. Used for user-supplied audit input, which may
// contain whitespace or separators.
func Filter(s string) Sequence {
	seq := make(Sequence, 0, len(s))
	for _, ch := range []byte(s) {
		switch ch {
		case '0':
			seq = append(seq, 0)
		case '1':
			seq = append(seq, 1)
		}
	}
	return seq
}

// FromNumbers encodes a list of non-negative integers as fixed-width
// big-endian bit groups. The width is the bit length of the largest value,
// with a minimum of one.
func FromNumbers(numbers []int) Sequence {
	max := 0
	for _, n := range numbers {
		if n > max {
			max = n
		}
	}
	width := bits.Len(uint(max))
	if width == 0 {
		width = 1
	}

	seq := make(Sequence, 0, len(numbers)*width)
	for _, n := range numbers {
		for i := width - 1; i >= 0; i-- {
			seq = append(seq, byte((n>>uint(i))&1))
		}
	}
	return seq
}

// String returns the ASCII 0/1 export of the sequence, one character per
// bit, in generation order.
func (s Sequence) String() string {
	out := make([]byte, len(s))
	for i, b := range s {
		out[i] = '0' + b
	}
	return string(out)
}

// Pack packs the sequence into bytes, most significant bit first. The last
// byte is zero-padded if the length is not a multiple of eight.
func (s Sequence) Pack() []byte {
	packed := make([]byte, (len(s)+7)/8)
	for i, b := range s {
		if b != 0 {
			packed[i/8] |= 1 << uint(7-i%8)
		}
	}
	return packed
}

// Ones returns the number of one-bits in the sequence.
func (s Sequence) Ones() int {
	count := 0
	for _, b := range s {
		if b != 0 {
			count++
		}
	}
	return count
}

// Truncated returns the first n bits of the sequence. If the sequence is
// shorter than n, it is returned unchanged.
func (s Sequence) Truncated(n int) Sequence {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
