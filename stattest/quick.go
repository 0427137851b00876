package stattest

import (
	"math"

	"github.com/veridraw/veridraw/bitseq"
)

// Quick tests run regardless of sequence length. Their results are
// indicative only on very short sequences.

const quickBlockSize = 32

// Monobit is the frequency test on the whole sequence.
func Monobit(seq bitseq.Sequence) Outcome {
	n := len(seq)
	if n == 0 {
		return Outcome{Name: "monobit", Eligible: true}
	}

	s := float64(2*seq.Ones() - n)
	sObs := math.Abs(s) / math.Sqrt(float64(n))
	return scored("monobit", math.Erfc(sObs/math.Sqrt2))
}

// Runs counts uninterrupted runs of identical bits. Its precondition is
// that the one-ratio is close enough to one half; when it is not, the
// sequence has already failed the frequency criterion and the runs test
// reports a failure.
func Runs(seq bitseq.Sequence) Outcome {
	n := len(seq)
	if n == 0 {
		return Outcome{Name: "runs", Eligible: true}
	}

	pi := float64(seq.Ones()) / float64(n)
	if math.Abs(pi-0.5) >= 2/math.Sqrt(float64(n)) {
		return Outcome{Name: "runs", Eligible: true, Passed: false, Score: 0}
	}

	v := 1
	for i := 1; i < n; i++ {
		if seq[i] != seq[i-1] {
			v++
		}
	}

	num := math.Abs(float64(v) - 2*float64(n)*pi*(1-pi))
	den := 2 * math.Sqrt(2*float64(n)) * pi * (1 - pi)
	return scored("runs", math.Erfc(num/den))
}

// BlockFrequency checks the one-ratio per fixed-size block.
func BlockFrequency(seq bitseq.Sequence) Outcome {
	return blockFrequency(seq, quickBlockSize, "block_frequency")
}

func blockFrequency(seq bitseq.Sequence, m int, name string) Outcome {
	n := len(seq)
	if n < m {
		return Outcome{Name: name, Eligible: true, Passed: false, Score: 0}
	}

	blocks := n / m
	var sum float64
	for i := 0; i < blocks; i++ {
		pi := float64(seq[i*m:(i+1)*m].Ones()) / float64(m)
		sum += (pi - 0.5) * (pi - 0.5)
	}
	chiSq := 4 * float64(m) * sum

	return scored(name, igamc(float64(blocks)/2, chiSq/2))
}

// Quick runs the three always-on tests.
func Quick(seq bitseq.Sequence) Report {
	return buildReport([]Outcome{
		Monobit(seq),
		Runs(seq),
		BlockFrequency(seq),
	})
}
