// Package stattest audits bit sequences for statistical randomness. It
// provides a quick indicative tier (monobit, runs, block frequency) and a
// full battery of SP 800-22 style tests with per-test minimum-length
// eligibility. Ineligible tests are reported as such, never silently
// omitted, so callers can see why coverage is partial on short sequences.
package stattest

// SignificanceThreshold is the conventional p-value threshold below which
// a test is considered failed.
const SignificanceThreshold = 0.01

// Outcome is the result of one statistical test on one sequence.
type Outcome struct {
	Name     string  `json:"name"`
	Eligible bool    `json:"eligible"`
	Passed   bool    `json:"passed"`
	Score    float64 `json:"score"`
}

// Report is an ordered collection of test outcomes with a summary.
type Report struct {
	Outcomes []Outcome `json:"tests"`
	Total    int       `json:"total"`
	Eligible int       `json:"eligible"`
	Passed   int       `json:"passed"`
	Ratio    float64   `json:"ratio"`
}

func buildReport(outcomes []Outcome) Report {
	report := Report{
		Outcomes: outcomes,
		Total:    len(outcomes),
	}
	for _, outcome := range outcomes {
		if !outcome.Eligible {
			continue
		}
		report.Eligible++
		if outcome.Passed {
			report.Passed++
		}
	}
	if report.Eligible > 0 {
		report.Ratio = float64(report.Passed) / float64(report.Eligible)
	}
	return report
}

func scored(name string, score float64) Outcome {
	return Outcome{
		Name:     name,
		Eligible: true,
		Passed:   score >= SignificanceThreshold,
		Score:    score,
	}
}
