package stattest

import (
	"context"

	"github.com/veridraw/veridraw/bitseq"
)

// Test is one battery entry. MinBits is the smallest sequence length
// for which the test's reference distribution holds; shorter sequences
// make the test ineligible, never silently skipped.
type Test struct {
	Name    string
	MinBits int

	run func(bitseq.Sequence) Outcome
}

// Battery lists all tests in their canonical order.
var Battery = []Test{
	{Name: "monobit", MinBits: 100, run: Monobit},
	{Name: "block_frequency", MinBits: 128, run: batteryBlockFrequency},
	{Name: "cumulative_sums", MinBits: 100, run: cumulativeSums},
	{Name: "runs", MinBits: 100, run: Runs},
	{Name: "longest_run_of_ones", MinBits: 128, run: longestRunOfOnes},
	{Name: "binary_matrix_rank", MinBits: 38912, run: binaryMatrixRank},
	{Name: "serial", MinBits: 336, run: serial},
	{Name: "approximate_entropy", MinBits: 128, run: approximateEntropy},
	{Name: "maurers_universal", MinBits: 387840, run: maurersUniversal},
	{Name: "linear_complexity", MinBits: 1000000, run: linearComplexity},
	{Name: "random_excursion", MinBits: 1000000, run: randomExcursion},
	{Name: "random_excursion_variant", MinBits: 1000000, run: randomExcursionVariant},
}

// Eligibility reports, per test name, whether the sequence is long
// enough for the test to be run.
func Eligibility(seq bitseq.Sequence) map[string]bool {
	eligible := make(map[string]bool, len(Battery))
	for _, test := range Battery {
		eligible[test.Name] = len(seq) >= test.MinBits
	}
	return eligible
}

// RunBattery runs every eligible test against the sequence, in battery
// order, and reports ineligible tests as such. observe, if not nil, is
// called after each test settles, eligible or not. The context is
// checked between tests only; a cancelled run returns the partial
// report and the context error.
func RunBattery(ctx context.Context, seq bitseq.Sequence, observe func(Outcome)) (Report, error) {
	outcomes := make([]Outcome, 0, len(Battery))
	for _, test := range Battery {
		if err := ctx.Err(); err != nil {
			return buildReport(outcomes), err
		}

		var outcome Outcome
		if len(seq) < test.MinBits {
			outcome = Outcome{Name: test.Name, Eligible: false}
		} else {
			outcome = test.run(seq)
		}

		outcomes = append(outcomes, outcome)
		if observe != nil {
			observe(outcome)
		}
	}
	return buildReport(outcomes), nil
}
