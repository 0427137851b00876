package jobs

import (
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/tevino/abool"

	"github.com/veridraw/veridraw/bitseq"
	"github.com/veridraw/veridraw/stattest"
)

// Kind identifies the job pipeline.
type Kind string

// Job kinds.
const (
	KindDraw          Kind = "draw"
	KindSequenceAudit Kind = "sequence-audit"
	KindNISTAudit     Kind = "nist-audit"
)

// Stage is a step of the job state machine.
type Stage string

// Draw job stages, in pipeline order, plus the audit stages and the two
// terminal stages. Failed is reachable from any non-terminal stage.
const (
	StageCreated    Stage = "created"
	StageCollecting Stage = "collecting_entropy"
	StageWhitening  Stage = "whitening"
	StageSeeding    Stage = "seeding"
	StageSampling   Stage = "sampling"
	StageTesting    Stage = "testing"

	StageEligibility  Stage = "eligibility_check"
	StageRunningTests Stage = "running_tests"

	StageCompleted Stage = "completed"
	StageFailed    Stage = "failed"
)

// Terminal reports whether the stage ends the job.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// DrawResult is the immutable outcome of a successful draw job.
type DrawResult struct {
	Numbers     []int           `json:"numbers"`
	MaxNumber   int             `json:"max_number"`
	Seed        string          `json:"seed"`
	Fingerprint string          `json:"fingerprint"`
	QuickTests  stattest.Report `json:"quick_tests"`
}

// Job is one unit of work tracked by the orchestrator. It is mutated
// only by the worker executing it; everything externally visible goes
// through the locked accessors.
type Job struct {
	ID      string
	Kind    Kind
	Created time.Time

	cancelled *abool.AtomicBool

	lock        sync.Mutex
	stage       Stage
	events      []Event
	subscribers []*Stream
	finished    time.Time

	white   bitseq.Sequence
	draw    *DrawResult
	report  *stattest.Report
	failure *JobFailedError
}

func newJob(kind Kind) (*Job, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	j := &Job{
		ID:        id.String(),
		Kind:      kind,
		Created:   time.Now(),
		cancelled: abool.New(),
		stage:     StageCreated,
	}
	j.events = append(j.events, Event{Stage: StageCreated, Time: j.Created})
	return j, nil
}

// Stage returns the job's current stage.
func (j *Job) Stage() Stage {
	j.lock.Lock()
	defer j.lock.Unlock()
	return j.stage
}

// Finished returns the completion timestamp, zero while running.
func (j *Job) Finished() time.Time {
	j.lock.Lock()
	defer j.lock.Unlock()
	return j.finished
}

// Events returns a copy of the event log so far.
func (j *Job) Events() []Event {
	j.lock.Lock()
	defer j.lock.Unlock()
	log := make([]Event, len(j.events))
	copy(log, j.events)
	return log
}

// Cancel marks the job cancelled. The worker honors the flag at the next
// stage boundary; already delivered events are not retracted. Cancelling
// a terminal job has no effect.
func (j *Job) Cancel() {
	j.cancelled.Set()
}

// advance moves the job to the given stage and broadcasts one event.
func (j *Job) advance(stage Stage, payload map[string]interface{}) {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.stage = stage
	j.appendLocked(Event{Stage: stage, Time: time.Now(), Payload: payload})
	if stage.Terminal() {
		j.finished = time.Now()
		for _, s := range j.subscribers {
			s.Close()
		}
		j.subscribers = nil
	}
}

// progress broadcasts an event within the current stage.
func (j *Job) progress(payload map[string]interface{}) {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.appendLocked(Event{Stage: j.stage, Time: time.Now(), Payload: payload})
}

func (j *Job) appendLocked(event Event) {
	j.events = append(j.events, event)

	kept := j.subscribers[:0]
	for _, s := range j.subscribers {
		if s.deliver(event) {
			kept = append(kept, s)
		}
	}
	j.subscribers = kept
}

// subscribe attaches a new stream: full replay first, then live events.
// Streams on terminal jobs only replay and are closed right away.
func (j *Job) subscribe() *Stream {
	j.lock.Lock()
	defer j.lock.Unlock()

	s := newStream(j.events)
	if j.stage.Terminal() {
		s.Close()
		return s
	}
	j.subscribers = append(j.subscribers, s)
	return s
}

// fail transitions the job to failed with a structured reason.
func (j *Job) fail(reason string) {
	j.lock.Lock()
	j.failure = &JobFailedError{Reason: reason}
	j.lock.Unlock()
	j.advance(StageFailed, map[string]interface{}{"reason": reason})
}

func (j *Job) completeDraw(white bitseq.Sequence, result *DrawResult) {
	j.lock.Lock()
	j.white = white
	j.draw = result
	j.lock.Unlock()
	j.advance(StageCompleted, map[string]interface{}{
		"numbers":     result.Numbers,
		"fingerprint": result.Fingerprint,
	})
}

func (j *Job) completeAudit(report *stattest.Report) {
	j.lock.Lock()
	j.report = report
	j.lock.Unlock()
	j.advance(StageCompleted, map[string]interface{}{
		"eligible": report.Eligible,
		"passed":   report.Passed,
	})
}

// result returns the terminal state: (draw, report, nil) on completion,
// the failure on failed jobs, ErrJobNotComplete otherwise.
func (j *Job) result() (*DrawResult, *stattest.Report, error) {
	j.lock.Lock()
	defer j.lock.Unlock()
	switch j.stage {
	case StageCompleted:
		return j.draw, j.report, nil
	case StageFailed:
		return nil, nil, j.failure
	default:
		return nil, nil, ErrJobNotComplete
	}
}

// whitenedBits exports the whitened buffer as an ASCII bit string.
func (j *Job) whitenedBits() (string, error) {
	j.lock.Lock()
	defer j.lock.Unlock()
	switch {
	case j.stage == StageFailed:
		return "", j.failure
	case j.stage != StageCompleted || j.white == nil:
		return "", ErrJobNotComplete
	}
	return j.white.String(), nil
}
