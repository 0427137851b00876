package jobs

import (
	"context"

	"github.com/veridraw/veridraw/bitseq"
	"github.com/veridraw/veridraw/stattest"
)

// runAudit executes the full-battery audit pipeline.
func (o *Orchestrator) runAudit(ctx context.Context, job *Job, seq bitseq.Sequence) error {
	if err := checkpoint(job); err != nil {
		return err
	}

	eligible := stattest.Eligibility(seq)
	eligibleCount := 0
	for _, ok := range eligible {
		if ok {
			eligibleCount++
		}
	}
	job.advance(StageEligibility, map[string]interface{}{
		"length":   len(seq),
		"eligible": eligibleCount,
		"total":    len(eligible),
	})

	if err := checkpoint(job); err != nil {
		return err
	}
	job.advance(StageRunningTests, nil)

	report, err := stattest.RunBattery(ctx, seq, func(outcome stattest.Outcome) {
		job.progress(map[string]interface{}{
			"test":     outcome.Name,
			"eligible": outcome.Eligible,
			"passed":   outcome.Passed,
			"score":    outcome.Score,
		})
	})
	if err != nil {
		return err
	}

	if err := checkpoint(job); err != nil {
		return err
	}
	job.completeAudit(&report)
	return nil
}
