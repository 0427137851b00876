package entropy

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/hashicorp/go-multierror"

	"github.com/veridraw/veridraw/log"
)

// ErrEntropyExhausted is returned when not a single source produced a
// payload.
var ErrEntropyExhausted = errors.New("all entropy sources failed")

// ProgressFunc is called once per settled source, success or failure.
type ProgressFunc func(result *Result)

// Collect queries all given sources concurrently, waits for every fetch to
// settle and folds the successful payloads into a raw entropy buffer of
// rounds*32 bytes. Folding order is canonical (sorted by source name), not
// arrival order, so the process is reproducible given identical source
// outputs.
func Collect(ctx context.Context, srcs []Source, rounds int, progress ProgressFunc) ([]byte, error) {
	if len(srcs) == 0 {
		return nil, fmt.Errorf("%w: no sources requested", ErrEntropyExhausted)
	}
	if rounds < 1 {
		rounds = 1
	}

	results := fanOut(ctx, srcs)

	// Settle order is nondeterministic; progress events follow it, the
	// hash fold does not.
	var failures *multierror.Error
	successes := make([]*Result, 0, len(results))
	for _, result := range results {
		reportFetch(result)
		if progress != nil {
			progress(result)
		}

		if result.OK {
			successes = append(successes, result)
		} else {
			log.Tracer(ctx).Debugf("entropy: source %s failed after %s: %s", result.Source, result.Duration, result.Err)
			failures = multierror.Append(failures, &SourceError{Source: result.Source, Err: result.Err})
		}
	}

	if len(successes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEntropyExhausted, failures.Error())
	}

	sort.Slice(successes, func(i, j int) bool {
		return successes[i].Source < successes[j].Source
	})

	// Fold every payload into the accumulator via its own hash first, to
	// normalize heterogeneous payload lengths.
	accumulator := sha256.New()
	for _, result := range successes {
		payloadSum := sha256.Sum256(result.Payload)
		accumulator.Write(payloadSum[:])
	}

	return expand(accumulator.Sum(nil), rounds), nil
}

// CollectLocal re-queries only the always-available local sources. Used
// for shortfall rounds after whitening; network sources are not re-queried
// mid-job.
func CollectLocal(ctx context.Context, rounds int, progress ProgressFunc) ([]byte, error) {
	return Collect(ctx, LocalSources(), rounds, progress)
}

func fanOut(ctx context.Context, srcs []Source) []*Result {
	results := make([]*Result, len(srcs))

	var wg sync.WaitGroup
	for i, src := range srcs {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			start := time.Now()
			payload, err := src.Fetch(ctx)

			result := &Result{
				Source:   src.Name(),
				Local:    src.Local(),
				Duration: time.Since(start),
			}
			if err != nil {
				result.Err = err
			} else if len(payload) == 0 {
				result.Err = fmt.Errorf("empty payload")
			} else {
				result.Payload = payload
				result.OK = true
			}
			results[i] = result
		}(i, src)
	}
	wg.Wait()

	return results
}

// expand derives rounds*32 raw bytes from the accumulator digest via a
// counter-separated hash cascade.
func expand(digest []byte, rounds int) []byte {
	out := make([]byte, 0, rounds*32)
	block := digest
	for i := 0; i < rounds; i++ {
		h := sha256.New()
		var counter [8]byte
		binary.BigEndian.PutUint64(counter[:], uint64(i))
		h.Write(counter[:])
		h.Write(block)
		block = h.Sum(nil)
		out = append(out, block...)
	}
	return out
}

func reportFetch(result *Result) {
	outcome := "ok"
	if !result.OK {
		outcome = "error"
	}
	metrics.GetOrCreateCounter(
		fmt.Sprintf(`veridraw_source_fetches_total{source=%q,result=%q}`, result.Source, outcome),
	).Inc()
}
