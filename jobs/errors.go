package jobs

import "errors"

var (
	// ErrJobNotFound is returned for unknown or already evicted job ids.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotComplete is returned when a result is requested while the
	// job is still running.
	ErrJobNotComplete = errors.New("job not complete")
)

// JobFailedError carries the structured reason of a failed job.
type JobFailedError struct {
	Reason string
}

func (e *JobFailedError) Error() string {
	return "job failed: " + e.Reason
}
