// Package sample draws distinct integers from a bounded range without
// modulo bias. The generator is a Fortuna CSPRNG reseeded from the derived
// seed, so a draw is fully determined by the seed and its parameters.
package sample

import (
	"crypto/aes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/aead/serpent"
	"github.com/seehuhn/fortuna"

	"github.com/veridraw/veridraw/config"
	"github.com/veridraw/veridraw/derive"
)

// ErrInsufficientDomain is returned when more distinct values are
// requested than the range holds.
var ErrInsufficientDomain = errors.New("cannot draw more distinct values than the range holds")

var cipherOption config.StringOption

func init() {
	err := config.Register(&config.Option{
		Name:            "Sampler Cipher",
		Key:             "sample/cipher",
		Description:     "Block cipher to use for the Fortuna generator backing the sampler.",
		OptType:         config.OptTypeString,
		DefaultValue:    "aes",
		ValidationRegex: "^(aes|serpent)$",
	})
	if err != nil {
		panic(err)
	}
	cipherOption = config.GetAsString("sample/cipher", "aes")
}

func newCipherFactory(name string) (fortuna.NewCipher, error) {
	switch name {
	case "aes":
		return aes.NewCipher, nil
	case "serpent":
		return serpent.NewCipher, nil
	default:
		return nil, fmt.Errorf("unknown or unsupported cipher: %s", name)
	}
}

// Validate checks draw parameters. It is called by the orchestrator before
// any entropy is collected, so impossible requests fail up front.
func Validate(k, max int) error {
	if max < 1 {
		return fmt.Errorf("%w: empty range [1, %d]", ErrInsufficientDomain, max)
	}
	if k < 1 {
		return fmt.Errorf("%w: requested %d values", ErrInsufficientDomain, k)
	}
	if k > max {
		return fmt.Errorf("%w: requested %d distinct values from [1, %d]", ErrInsufficientDomain, k, max)
	}
	return nil
}

// Sampler is a deterministic draw generator. A fresh Sampler with the same
// seed produces the same sequence of draws every time.
type Sampler struct {
	gen *fortuna.Generator
}

// New creates a Sampler reseeded from the given seed.
func New(seed derive.Seed) (*Sampler, error) {
	factory, err := newCipherFactory(cipherOption())
	if err != nil {
		return nil, err
	}

	gen := fortuna.NewGenerator(factory)
	gen.Reseed(seed[:])
	return &Sampler{gen: gen}, nil
}

// Draw returns k distinct integers in [1, max] in ascending order. Draw
// consumes generator state: consecutive draws from one Sampler differ,
// while a fresh Sampler repeats the sequence.
func (s *Sampler) Draw(k, max int) ([]int, error) {
	if err := Validate(k, max); err != nil {
		return nil, err
	}

	drawn := make(map[int]struct{}, k)
	combo := make([]int, 0, k)
	for len(combo) < k {
		value := int(s.number(uint64(max)))
		if _, dup := drawn[value]; dup {
			continue
		}
		drawn[value] = struct{}{}
		combo = append(combo, value)
	}

	sort.Ints(combo)
	return combo, nil
}

// number returns a uniform value in [1, max] via rejection sampling. A
// naive modulo reduction would skew low values whenever max does not
// evenly divide the generator's native range.
func (s *Sampler) number(max uint64) uint64 {
	secureLimit := math.MaxUint64 - (math.MaxUint64 % max)

	for {
		candidate := binary.LittleEndian.Uint64(s.gen.PseudoRandomData(8))
		if candidate < secureLimit {
			return 1 + candidate%max
		}
	}
}
