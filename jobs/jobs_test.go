package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridraw/veridraw/bitseq"
	"github.com/veridraw/veridraw/derive"
	"github.com/veridraw/veridraw/sample"
	"github.com/veridraw/veridraw/stattest"
)

func waitTerminal(t *testing.T, o *Orchestrator, id string) Stage {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		job, err := o.Job(id)
		require.NoError(t, err)
		if stage := job.Stage(); stage.Terminal() {
			return stage
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not terminate in time")
	return ""
}

// stageTransitions reduces an event log to the distinct stage sequence,
// dropping in-stage progress events.
func stageTransitions(events []Event) []Stage {
	var stages []Stage
	for _, event := range events {
		if len(stages) == 0 || stages[len(stages)-1] != event.Stage {
			stages = append(stages, event.Stage)
		}
	}
	return stages
}

func TestDrawEndToEnd(t *testing.T) {
	o := NewOrchestrator()
	defer o.Shutdown()

	id, err := o.SubmitDraw(DrawConfig{
		Sources:   []string{"os", "time"},
		Bits:      4096,
		Numbers:   6,
		MaxNumber: 49,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	stream, err := o.Subscribe(id)
	require.NoError(t, err)

	var events []Event
	for event := range stream.Events() {
		events = append(events, event)
	}
	assert.False(t, stream.Truncated())

	stages := stageTransitions(events)
	assert.Equal(t, []Stage{
		StageCreated, StageCollecting, StageWhitening,
		StageSeeding, StageSampling, StageTesting, StageCompleted,
	}, stages)

	result, err := o.DrawResult(id)
	require.NoError(t, err)
	require.Len(t, result.Numbers, 6)
	seen := make(map[int]struct{})
	for i, n := range result.Numbers {
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, 49)
		if i > 0 {
			assert.Greater(t, n, result.Numbers[i-1])
		}
		seen[n] = struct{}{}
	}
	assert.Len(t, seen, 6)
	assert.Len(t, result.Seed, derive.SeedSize*2)
	assert.Equal(t, 3, result.QuickTests.Total)

	// the fingerprint must be recomputable from the exported bits
	bits, err := o.WhitenedBits(id)
	require.NoError(t, err)
	assert.Len(t, bits, 4096)

	exported, err := bitseq.Parse(bits)
	require.NoError(t, err)
	recomputed, err := derive.Fingerprint(exported, map[string]interface{}{
		"numbers":    result.Numbers,
		"max_number": result.MaxNumber,
	})
	require.NoError(t, err)
	assert.Equal(t, result.Fingerprint, recomputed)
}

func TestDrawValidation(t *testing.T) {
	o := NewOrchestrator()
	defer o.Shutdown()

	// impossible domain is rejected before any work starts
	_, err := o.SubmitDraw(DrawConfig{Sources: []string{"os"}, Bits: 128, Numbers: 50, MaxNumber: 49})
	assert.ErrorIs(t, err, sample.ErrInsufficientDomain)

	_, err = o.SubmitDraw(DrawConfig{Sources: []string{"os"}, Bits: 0, Numbers: 6, MaxNumber: 49})
	assert.Error(t, err)

	_, err = o.SubmitDraw(DrawConfig{Sources: []string{"nope"}, Bits: 128, Numbers: 6, MaxNumber: 49})
	assert.Error(t, err)
}

func TestAuditEndToEnd(t *testing.T) {
	o := NewOrchestrator()
	defer o.Shutdown()

	seq, err := bitseq.Parse(strings.Repeat("01", 500))
	require.NoError(t, err)

	id, err := o.SubmitAudit(seq)
	require.NoError(t, err)

	assert.Equal(t, StageCompleted, waitTerminal(t, o, id))

	report, err := o.AuditResult(id)
	require.NoError(t, err)
	assert.Equal(t, len(stattest.Battery), report.Total)

	byName := make(map[string]stattest.Outcome)
	for _, outcome := range report.Outcomes {
		byName[outcome.Name] = outcome
	}
	assert.True(t, byName["monobit"].Passed)
	assert.False(t, byName["runs"].Passed)
	assert.False(t, byName["linear_complexity"].Eligible)

	// replay on a terminal job: full history, one progress event per
	// battery test, stream closed immediately
	stream, err := o.Subscribe(id)
	require.NoError(t, err)

	var events []Event
	for event := range stream.Events() {
		events = append(events, event)
	}
	assert.Equal(t, []Stage{
		StageCreated, StageEligibility, StageRunningTests, StageCompleted,
	}, stageTransitions(events))

	perTest := 0
	for _, event := range events {
		if event.Stage == StageRunningTests && event.Payload["test"] != nil {
			perTest++
		}
	}
	assert.Equal(t, len(stattest.Battery), perTest)
}

func TestQuickAuditSynchronous(t *testing.T) {
	o := NewOrchestrator()
	defer o.Shutdown()

	seq, err := bitseq.Parse(strings.Repeat("01", 500))
	require.NoError(t, err)

	report := o.QuickAudit(seq)
	assert.Equal(t, 3, report.Total)
}

func TestUnknownJob(t *testing.T) {
	o := NewOrchestrator()
	defer o.Shutdown()

	_, err := o.DrawResult("b8350c95-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = o.Subscribe("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, o.Cancel("nope"), ErrJobNotFound)
}

func TestResultWhileRunning(t *testing.T) {
	job, err := newJob(KindDraw)
	require.NoError(t, err)
	job.advance(StageCollecting, nil)

	_, _, err = job.result()
	assert.ErrorIs(t, err, ErrJobNotComplete)
	_, err = job.whitenedBits()
	assert.ErrorIs(t, err, ErrJobNotComplete)
}

func TestCancellation(t *testing.T) {
	o := NewOrchestrator()
	defer o.Shutdown()

	job, err := newJob(KindDraw)
	require.NoError(t, err)
	o.registry.add(job)

	job.Cancel()
	o.runJob(job, func(ctx context.Context) error {
		return checkpoint(job)
	})

	assert.Equal(t, StageFailed, job.Stage())
	_, _, err = job.result()
	var failed *JobFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "cancelled", failed.Reason)

	// still discoverable after retirement
	got, err := o.Job(job.ID)
	require.NoError(t, err)
	assert.Same(t, job, got)
}

func TestWorkerPanicRecovery(t *testing.T) {
	o := NewOrchestrator()
	defer o.Shutdown()

	job, err := newJob(KindNISTAudit)
	require.NoError(t, err)
	o.registry.add(job)

	o.runJob(job, func(ctx context.Context) error {
		panic("boom")
	})

	assert.Equal(t, StageFailed, job.Stage())
	_, _, err = job.result()
	var failed *JobFailedError
	require.ErrorAs(t, err, &failed)
	assert.Contains(t, failed.Reason, "boom")
}

func TestSlowSubscriberDetached(t *testing.T) {
	job, err := newJob(KindDraw)
	require.NoError(t, err)

	stream := job.subscribe()
	for i := 0; i <= subscriberBuffer; i++ {
		job.progress(map[string]interface{}{"i": i})
	}

	assert.True(t, stream.Truncated())
	// the channel is closed; draining terminates
	for range stream.Events() {
	}

	// the job is unaffected and sheds the dead subscriber
	job.lock.Lock()
	subscribers := len(job.subscribers)
	job.lock.Unlock()
	assert.Zero(t, subscribers)
}

func TestReplayThenLive(t *testing.T) {
	job, err := newJob(KindDraw)
	require.NoError(t, err)
	job.advance(StageCollecting, nil)

	stream := job.subscribe()
	job.advance(StageWhitening, nil)
	job.advance(StageCompleted, nil)

	var stages []Stage
	for event := range stream.Events() {
		stages = append(stages, event.Stage)
	}
	assert.Equal(t, []Stage{
		StageCreated, StageCollecting, StageWhitening, StageCompleted,
	}, stages)
}

func TestJobKindMismatch(t *testing.T) {
	o := NewOrchestrator()
	defer o.Shutdown()

	seq, _ := bitseq.Parse(strings.Repeat("01", 100))
	id, err := o.SubmitAudit(seq)
	require.NoError(t, err)
	waitTerminal(t, o, id)

	_, err = o.DrawResult(id)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestShutdownFailsQueuedJobs(t *testing.T) {
	o := NewOrchestrator()
	o.cancel()

	job, err := newJob(KindDraw)
	require.NoError(t, err)
	o.registry.add(job)
	o.schedule(job, func(ctx context.Context) error {
		return errors.New("must not run")
	})
	o.wg.Wait()

	assert.Equal(t, StageFailed, job.Stage())
}
