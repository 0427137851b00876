package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"golang.org/x/sync/semaphore"

	"github.com/veridraw/veridraw/bitseq"
	"github.com/veridraw/veridraw/config"
	"github.com/veridraw/veridraw/entropy"
	"github.com/veridraw/veridraw/log"
	"github.com/veridraw/veridraw/sample"
	"github.com/veridraw/veridraw/stattest"
)

var (
	maxConcurrent    config.IntOption
	retentionSeconds config.IntOption
	maxDrawBits      config.IntOption
)

func init() {
	for _, option := range []*config.Option{
		{
			Name:            "Concurrent Jobs",
			Key:             "jobs/max_concurrent",
			Description:     "Maximum number of jobs executing at the same time. Submissions beyond the limit queue up.",
			OptType:         config.OptTypeInt,
			DefaultValue:    4,
			ValidationRegex: "^[1-9][0-9]{0,2}$",
		},
		{
			Name:            "Job Retention",
			Key:             "jobs/retention_seconds",
			Description:     "How long finished jobs stay available for result and bit-export queries, in seconds.",
			OptType:         config.OptTypeInt,
			DefaultValue:    3600,
			ValidationRegex: "^[1-9][0-9]{0,5}$",
		},
		{
			Name:            "Draw Bit Limit",
			Key:             "jobs/max_draw_bits",
			Description:     "Upper bound on the whitened bits a single draw may request.",
			OptType:         config.OptTypeInt,
			DefaultValue:    1048576,
			ValidationRegex: "^[1-9][0-9]{0,7}$",
		},
	} {
		if err := config.Register(option); err != nil {
			panic(err)
		}
	}
	maxConcurrent = config.GetAsInt("jobs/max_concurrent", 4)
	retentionSeconds = config.GetAsInt("jobs/retention_seconds", 3600)
	maxDrawBits = config.GetAsInt("jobs/max_draw_bits", 1048576)
}

// errCancelled signals a worker that honored the job's cancel flag. The
// job is already failed when it surfaces.
var errCancelled = errors.New("job cancelled")

// DrawConfig are the caller-provided parameters of a draw job.
type DrawConfig struct {
	Sources   []string `json:"sources"`
	Bits      int      `json:"bits"`
	Numbers   int      `json:"numbers"`
	MaxNumber int      `json:"max_number"`
}

// Orchestrator owns the job registry and runs job pipelines on a bounded
// worker pool. Create it at service start, tear it down with Shutdown.
type Orchestrator struct {
	registry *registry
	sem      *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates a ready orchestrator.
func NewOrchestrator() *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		registry: newRegistry(time.Duration(retentionSeconds()) * time.Second),
		sem:      semaphore.NewWeighted(maxConcurrent()),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Shutdown stops accepting work and waits for running workers to settle.
// Queued jobs that never got a worker fail with reason "shutdown".
func (o *Orchestrator) Shutdown() {
	o.cancel()
	o.wg.Wait()
}

// SubmitDraw validates the parameters, registers a draw job and
// schedules it. Validation errors surface here, before any network or
// entropy work happens.
func (o *Orchestrator) SubmitDraw(cfg DrawConfig) (string, error) {
	if err := sample.Validate(cfg.Numbers, cfg.MaxNumber); err != nil {
		return "", err
	}
	if cfg.Bits < 1 || int64(cfg.Bits) > maxDrawBits() {
		return "", fmt.Errorf("draw bits must be in [1, %d], got %d", maxDrawBits(), cfg.Bits)
	}
	srcs, err := entropy.GetSources(cfg.Sources)
	if err != nil {
		return "", err
	}

	job, err := newJob(KindDraw)
	if err != nil {
		return "", err
	}
	o.registry.add(job)
	metrics.GetOrCreateCounter(`veridraw_jobs_submitted_total{kind="draw"}`).Inc()

	o.schedule(job, func(ctx context.Context) error {
		return o.runDraw(ctx, job, cfg, srcs)
	})
	return job.ID, nil
}

// SubmitAudit registers an asynchronous full-battery audit of the given
// bit sequence.
func (o *Orchestrator) SubmitAudit(seq bitseq.Sequence) (string, error) {
	if len(seq) == 0 {
		return "", errors.New("empty sequence")
	}

	job, err := newJob(KindNISTAudit)
	if err != nil {
		return "", err
	}
	o.registry.add(job)
	metrics.GetOrCreateCounter(`veridraw_jobs_submitted_total{kind="nist-audit"}`).Inc()

	o.schedule(job, func(ctx context.Context) error {
		return o.runAudit(ctx, job, seq)
	})
	return job.ID, nil
}

// QuickAudit runs the indicative quick tier synchronously, without
// creating a job.
func (o *Orchestrator) QuickAudit(seq bitseq.Sequence) stattest.Report {
	metrics.GetOrCreateCounter(`veridraw_jobs_submitted_total{kind="sequence-audit"}`).Inc()
	return stattest.Quick(seq)
}

// Subscribe attaches an event stream to the job: full replay of the
// existing log, then live events until the job terminates.
func (o *Orchestrator) Subscribe(id string) (*Stream, error) {
	job, err := o.registry.get(id)
	if err != nil {
		return nil, err
	}
	return job.subscribe(), nil
}

// Job returns the job itself, for status inspection.
func (o *Orchestrator) Job(id string) (*Job, error) {
	return o.registry.get(id)
}

// Cancel marks a job cancelled. The worker stops at the next stage
// boundary.
func (o *Orchestrator) Cancel(id string) error {
	job, err := o.registry.get(id)
	if err != nil {
		return err
	}
	job.Cancel()
	return nil
}

// DrawResult returns the terminal result of a draw job.
func (o *Orchestrator) DrawResult(id string) (*DrawResult, error) {
	job, err := o.registry.get(id)
	if err != nil {
		return nil, err
	}
	if job.Kind != KindDraw {
		return nil, fmt.Errorf("%w: %s is a %s job", ErrJobNotFound, id, job.Kind)
	}
	draw, _, err := job.result()
	return draw, err
}

// AuditResult returns the terminal report of an audit job.
func (o *Orchestrator) AuditResult(id string) (*stattest.Report, error) {
	job, err := o.registry.get(id)
	if err != nil {
		return nil, err
	}
	if job.Kind != KindNISTAudit {
		return nil, fmt.Errorf("%w: %s is a %s job", ErrJobNotFound, id, job.Kind)
	}
	_, report, err := job.result()
	return report, err
}

// WhitenedBits exports a completed draw job's whitened buffer as an
// ASCII string of 0/1 characters, in generation order.
func (o *Orchestrator) WhitenedBits(id string) (string, error) {
	job, err := o.registry.get(id)
	if err != nil {
		return "", err
	}
	return job.whitenedBits()
}

// schedule queues the job on the worker pool without blocking the
// caller.
func (o *Orchestrator) schedule(job *Job, fn func(context.Context) error) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		if err := o.sem.Acquire(o.ctx, 1); err != nil {
			job.fail("shutdown")
			o.registry.retire(job)
			return
		}
		defer o.sem.Release(1)

		o.runJob(job, fn)
	}()
}

// runJob executes one pipeline with panic recovery. A panicking worker
// fails its job with a structured reason instead of taking the process
// down.
func (o *Orchestrator) runJob(job *Job, fn func(context.Context) error) {
	defer o.registry.retire(job)
	defer func() {
		if panicVal := recover(); panicVal != nil {
			log.Errorf("jobs: %s worker %s panicked: %v", job.Kind, job.ID, panicVal)
			job.fail(fmt.Sprintf("internal error: %v", panicVal))
			metrics.GetOrCreateCounter(fmt.Sprintf(`veridraw_jobs_finished_total{kind=%q,result="panic"}`, job.Kind)).Inc()
		}
	}()

	ctx, tracer := log.AddTracer(o.ctx)
	err := fn(ctx)
	switch {
	case err == nil:
		tracer.Submit("jobs: %s %s completed", job.Kind, job.ID)
		metrics.GetOrCreateCounter(fmt.Sprintf(`veridraw_jobs_finished_total{kind=%q,result="completed"}`, job.Kind)).Inc()
	case errors.Is(err, errCancelled):
		tracer.Submit("jobs: %s %s cancelled", job.Kind, job.ID)
		metrics.GetOrCreateCounter(fmt.Sprintf(`veridraw_jobs_finished_total{kind=%q,result="cancelled"}`, job.Kind)).Inc()
	default:
		job.fail(err.Error())
		tracer.Errorf("jobs: %s %s failed: %s", job.Kind, job.ID, err)
		metrics.GetOrCreateCounter(fmt.Sprintf(`veridraw_jobs_finished_total{kind=%q,result="failed"}`, job.Kind)).Inc()
	}
}

// checkpoint enforces the cancel flag at a stage boundary.
func checkpoint(job *Job) error {
	if job.cancelled.IsSet() {
		job.fail("cancelled")
		return errCancelled
	}
	return nil
}
