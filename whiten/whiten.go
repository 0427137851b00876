// Package whiten removes first-order bias from raw entropy with a von
// Neumann extractor and harvests whitened bits until an exact target
// length is reached.
package whiten

import (
	"context"
	"fmt"

	"github.com/veridraw/veridraw/bitseq"
	"github.com/veridraw/veridraw/entropy"
	"github.com/veridraw/veridraw/log"
)

// Extract runs the von Neumann extractor over the given bits: adjacent,
// non-overlapping pairs are compared; (0,1) emits 0, (1,0) emits 1, equal
// pairs emit nothing. Roughly half the input is discarded on average and
// the yield is data dependent. The output distribution is independent of
// first-order input bias, assuming independence between consecutive raw
// bits.
func Extract(raw bitseq.Sequence) bitseq.Sequence {
	out := make(bitseq.Sequence, 0, len(raw)/4)
	for i := 0; i+1 < len(raw); i += 2 {
		a, b := raw[i], raw[i+1]
		if a == b {
			continue
		}
		if a == 0 {
			out = append(out, 0)
		} else {
			out = append(out, 1)
		}
	}
	return out
}

// Harvester drives collection and extraction rounds until a requested
// number of whitened bits exists.
type Harvester struct {
	// Sources is the source set for the first collection round. Shortfall
	// rounds only re-query local sources.
	Sources []entropy.Source

	// Progress, if set, receives one call per settled source fetch.
	Progress entropy.ProgressFunc

	// Collected, if set, is called after each collection round, right
	// before extraction of the gathered raw bytes begins.
	Collected func(round, rawBytes int)

	// ShortfallNotice, if set, is called when a round did not yield
	// enough bits and another is needed.
	ShortfallNotice func(have, need, nextRawBits int)
}

// Whitened returns exactly targetBits whitened bits. If a collection and
// extraction round falls short, additional local-source rounds run with a
// doubled raw batch until the target is met; the result is then truncated
// to the target, never below it. Termination is guaranteed because local
// sources are always available.
func (h *Harvester) Whitened(ctx context.Context, targetBits int) (bitseq.Sequence, error) {
	if targetBits < 1 {
		return nil, fmt.Errorf("invalid whitening target: %d bits", targetBits)
	}

	batchRawBits := targetBits * 2
	if batchRawBits < 4096 {
		batchRawBits = 4096
	}
	maxRawBits := targetBits * 16
	if maxRawBits < 65536 {
		maxRawBits = 65536
	}

	white := make(bitseq.Sequence, 0, targetBits)
	firstRound := true
	round := 0

	for len(white) < targetBits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rounds := (batchRawBits + 255) / 256 // 32 raw bytes per collect round

		var raw []byte
		var err error
		if firstRound {
			raw, err = entropy.Collect(ctx, h.Sources, rounds, h.Progress)
			firstRound = false
		} else {
			raw, err = entropy.CollectLocal(ctx, rounds, h.Progress)
		}
		if err != nil {
			return nil, err
		}
		round++
		if h.Collected != nil {
			h.Collected(round, len(raw))
		}

		chunk := Extract(bitseq.FromBytes(raw))
		white = append(white, chunk...)
		log.Tracer(ctx).Tracef("whiten: extracted %d of %d bits from %d raw bits", len(white), targetBits, len(raw)*8)

		if len(white) < targetBits {
			if batchRawBits < maxRawBits {
				batchRawBits *= 2
				if batchRawBits > maxRawBits {
					batchRawBits = maxRawBits
				}
			}
			if h.ShortfallNotice != nil {
				h.ShortfallNotice(len(white), targetBits, batchRawBits)
			}
		}
	}

	return white.Truncated(targetBits), nil
}
