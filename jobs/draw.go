package jobs

import (
	"context"
	"sort"

	"github.com/veridraw/veridraw/derive"
	"github.com/veridraw/veridraw/entropy"
	"github.com/veridraw/veridraw/log"
	"github.com/veridraw/veridraw/sample"
	"github.com/veridraw/veridraw/stattest"
	"github.com/veridraw/veridraw/whiten"
)

// runDraw executes the draw pipeline. Stages advance strictly in order;
// the cancel flag is honored at every stage boundary.
func (o *Orchestrator) runDraw(ctx context.Context, job *Job, cfg DrawConfig, srcs []entropy.Source) error {
	if err := checkpoint(job); err != nil {
		return err
	}
	job.advance(StageCollecting, map[string]interface{}{
		"sources": sourceNames(srcs),
		"bits":    cfg.Bits,
	})

	harvester := &whiten.Harvester{
		Sources: srcs,
		Progress: func(result *entropy.Result) {
			payload := map[string]interface{}{
				"source": result.Source,
				"ok":     result.OK,
				"ms":     result.Duration.Milliseconds(),
			}
			if result.Err != nil {
				payload["error"] = result.Err.Error()
			}
			job.progress(payload)
		},
		Collected: func(round, rawBytes int) {
			if round == 1 {
				job.advance(StageWhitening, map[string]interface{}{"raw_bytes": rawBytes})
				return
			}
			job.progress(map[string]interface{}{"round": round, "raw_bytes": rawBytes})
		},
		ShortfallNotice: func(have, need, nextRawBits int) {
			log.Tracer(ctx).Debugf("jobs: draw %s short on bits: %d of %d", job.ID, have, need)
			job.progress(map[string]interface{}{
				"have":          have,
				"need":          need,
				"next_raw_bits": nextRawBits,
			})
		},
	}

	white, err := harvester.Whitened(ctx, cfg.Bits)
	if err != nil {
		return err
	}

	if err := checkpoint(job); err != nil {
		return err
	}
	job.advance(StageSeeding, nil)
	seed := derive.NewSeed(white)

	if err := checkpoint(job); err != nil {
		return err
	}
	job.advance(StageSampling, nil)
	sampler, err := sample.New(seed)
	if err != nil {
		return err
	}
	numbers, err := sampler.Draw(cfg.Numbers, cfg.MaxNumber)
	if err != nil {
		return err
	}

	if err := checkpoint(job); err != nil {
		return err
	}
	job.advance(StageTesting, nil)
	quick := stattest.Quick(white)

	fingerprint, err := derive.Fingerprint(white, map[string]interface{}{
		"numbers":    numbers,
		"max_number": cfg.MaxNumber,
	})
	if err != nil {
		return err
	}

	result := &DrawResult{
		Numbers:     numbers,
		MaxNumber:   cfg.MaxNumber,
		Seed:        seed.Hex(),
		Fingerprint: fingerprint,
		QuickTests:  quick,
	}
	job.completeDraw(white, result)
	return nil
}

func sourceNames(srcs []entropy.Source) []string {
	names := make([]string, 0, len(srcs))
	for _, s := range srcs {
		names = append(names, s.Name())
	}
	sort.Strings(names)
	return names
}
