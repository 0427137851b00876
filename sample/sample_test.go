package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridraw/veridraw/bitseq"
	"github.com/veridraw/veridraw/config"
	"github.com/veridraw/veridraw/derive"
)

func testSeed(t *testing.T, bits string) derive.Seed {
	t.Helper()
	seq, err := bitseq.Parse(bits)
	require.NoError(t, err)
	return derive.NewSeed(seq)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(6, 49))
	assert.NoError(t, Validate(49, 49))
	assert.ErrorIs(t, Validate(50, 49), ErrInsufficientDomain)
	assert.ErrorIs(t, Validate(0, 49), ErrInsufficientDomain)
	assert.ErrorIs(t, Validate(-1, 49), ErrInsufficientDomain)
	assert.ErrorIs(t, Validate(1, 0), ErrInsufficientDomain)
}

func TestDrawProperties(t *testing.T) {
	seed := testSeed(t, "0110100101101001")

	s, err := New(seed)
	require.NoError(t, err)

	for trial := 0; trial < 50; trial++ {
		combo, err := s.Draw(6, 49)
		require.NoError(t, err)
		require.Len(t, combo, 6)

		seen := make(map[int]struct{})
		last := 0
		for _, v := range combo {
			assert.GreaterOrEqual(t, v, 1)
			assert.LessOrEqual(t, v, 49)
			assert.Greater(t, v, last, "combo must be strictly ascending")
			last = v

			_, dup := seen[v]
			assert.False(t, dup, "combo must not contain duplicates")
			seen[v] = struct{}{}
		}
	}
}

func TestDrawDeterminism(t *testing.T) {
	seed := testSeed(t, "10101010101010101010")

	first, err := New(seed)
	require.NoError(t, err)
	second, err := New(seed)
	require.NoError(t, err)

	comboA, err := first.Draw(6, 49)
	require.NoError(t, err)
	comboB, err := second.Draw(6, 49)
	require.NoError(t, err)
	assert.Equal(t, comboA, comboB, "same seed must yield the same draw")

	other, err := New(testSeed(t, "10101010101010101011"))
	require.NoError(t, err)
	comboC, err := other.Draw(6, 49)
	require.NoError(t, err)
	assert.NotEqual(t, comboA, comboC, "different seed should yield a different draw")
}

func TestDrawFullRange(t *testing.T) {
	s, err := New(testSeed(t, "1111000011110000"))
	require.NoError(t, err)

	// k == max returns every value exactly once
	combo, err := s.Draw(10, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, combo)
}

func TestDrawDomainValidation(t *testing.T) {
	s, err := New(testSeed(t, "0000111100001111"))
	require.NoError(t, err)

	_, err = s.Draw(7, 6)
	assert.ErrorIs(t, err, ErrInsufficientDomain)
}

func TestSerpentCipher(t *testing.T) {
	require.NoError(t, config.SetConfigOption("sample/cipher", "serpent"))
	t.Cleanup(func() {
		_ = config.ResetConfigOption("sample/cipher")
	})

	seed := testSeed(t, "0101010101010101")
	s, err := New(seed)
	require.NoError(t, err)

	combo, err := s.Draw(6, 49)
	require.NoError(t, err)
	assert.Len(t, combo, 6)

	require.NoError(t, config.SetConfigOption("sample/cipher", "aes"))
	aesSampler, err := New(seed)
	require.NoError(t, err)
	aesCombo, err := aesSampler.Draw(6, 49)
	require.NoError(t, err)
	assert.NotEqual(t, combo, aesCombo, "cipher choice changes the stream")
}

func TestUniformSpread(t *testing.T) {
	// sanity check against gross modulo bias on a non-power-of-two range
	s, err := New(testSeed(t, "1001100110011001"))
	require.NoError(t, err)

	counts := make(map[int]int)
	const trials = 49000
	for i := 0; i < trials; i++ {
		combo, err := s.Draw(1, 49)
		require.NoError(t, err)
		counts[combo[0]]++
	}

	expected := trials / 49
	for value := 1; value <= 49; value++ {
		assert.InDelta(t, expected, counts[value], float64(expected)/4,
			"value %d is drawn far off the expected rate", value)
	}
}
