package stattest

import (
	"math"

	"github.com/veridraw/veridraw/bitseq"
)

// Full battery test implementations, following NIST SP 800-22 rev. 1a.
// Each returns an Outcome with Eligible set; eligibility gating itself
// happens in the battery runner.

func batteryBlockFrequency(seq bitseq.Sequence) Outcome {
	return blockFrequency(seq, 128, "block_frequency")
}

func cumulativeSums(seq bitseq.Sequence) Outcome {
	forward := cusumPValue(seq, false)
	backward := cusumPValue(seq, true)

	score := forward
	if backward < score {
		score = backward
	}
	return scored("cumulative_sums", score)
}

func cusumPValue(seq bitseq.Sequence, reverse bool) float64 {
	n := len(seq)
	sum := 0
	z := 0
	for i := 0; i < n; i++ {
		bit := seq[i]
		if reverse {
			bit = seq[n-1-i]
		}
		if bit == 1 {
			sum++
		} else {
			sum--
		}
		if abs := intAbs(sum); abs > z {
			z = abs
		}
	}
	if z == 0 {
		return 0
	}

	sqrtN := math.Sqrt(float64(n))
	zf := float64(z)

	p := 1.0
	start := (-n/z + 1) / 4
	end := (n/z - 1) / 4
	for k := start; k <= end; k++ {
		p -= stdNormalCDF(float64(4*k+1)*zf/sqrtN) - stdNormalCDF(float64(4*k-1)*zf/sqrtN)
	}
	start = (-n/z - 3) / 4
	end = (n/z - 1) / 4
	for k := start; k <= end; k++ {
		p += stdNormalCDF(float64(4*k+3)*zf/sqrtN) - stdNormalCDF(float64(4*k+1)*zf/sqrtN)
	}
	return p
}

func intAbs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func longestRunOfOnes(seq bitseq.Sequence) Outcome {
	n := len(seq)

	var m, k, lower, upper int
	var pi []float64
	switch {
	case n < 6272:
		m, k, lower, upper = 8, 3, 1, 4
		pi = []float64{0.2148, 0.3672, 0.2305, 0.1875}
	case n < 750000:
		m, k, lower, upper = 128, 5, 4, 9
		pi = []float64{0.1174, 0.2430, 0.2493, 0.1752, 0.1027, 0.1124}
	default:
		m, k, lower, upper = 10000, 6, 10, 16
		pi = []float64{0.0882, 0.2092, 0.2483, 0.1933, 0.1208, 0.0675, 0.0727}
	}

	blocks := n / m
	counts := make([]int, k+1)
	for i := 0; i < blocks; i++ {
		longest, run := 0, 0
		for _, bit := range seq[i*m : (i+1)*m] {
			if bit == 1 {
				run++
				if run > longest {
					longest = run
				}
			} else {
				run = 0
			}
		}

		idx := longest
		if idx < lower {
			idx = lower
		}
		if idx > upper {
			idx = upper
		}
		counts[idx-lower]++
	}

	var chiSq float64
	for i := 0; i <= k; i++ {
		expected := float64(blocks) * pi[i]
		diff := float64(counts[i]) - expected
		chiSq += diff * diff / expected
	}
	return scored("longest_run_of_ones", igamc(float64(k)/2, chiSq/2))
}

const (
	rankMatrixSize = 32
	rankMatrixBits = rankMatrixSize * rankMatrixSize
)

func binaryMatrixRank(seq bitseq.Sequence) Outcome {
	blocks := len(seq) / rankMatrixBits

	var fullRank, oneBelow, lower int
	for i := 0; i < blocks; i++ {
		rows := make([]uint32, rankMatrixSize)
		for r := 0; r < rankMatrixSize; r++ {
			var row uint32
			offset := i*rankMatrixBits + r*rankMatrixSize
			for c := 0; c < rankMatrixSize; c++ {
				row = (row << 1) | uint32(seq[offset+c])
			}
			rows[r] = row
		}

		switch gf2Rank(rows) {
		case rankMatrixSize:
			fullRank++
		case rankMatrixSize - 1:
			oneBelow++
		default:
			lower++
		}
	}

	nf := float64(blocks)
	chiSq := sq(float64(fullRank)-0.2888*nf)/(0.2888*nf) +
		sq(float64(oneBelow)-0.5776*nf)/(0.5776*nf) +
		sq(float64(lower)-0.1336*nf)/(0.1336*nf)

	return scored("binary_matrix_rank", igamc(1, chiSq/2))
}

func sq(v float64) float64 {
	return v * v
}

func gf2Rank(rows []uint32) int {
	rank := 0
	for col := rankMatrixSize - 1; col >= 0 && rank < len(rows); col-- {
		pivot := -1
		for i := rank; i < len(rows); i++ {
			if (rows[i]>>uint(col))&1 == 1 {
				pivot = i
				break
			}
		}
		if pivot < 0 {
			continue
		}
		rows[rank], rows[pivot] = rows[pivot], rows[rank]
		for i := 0; i < len(rows); i++ {
			if i != rank && (rows[i]>>uint(col))&1 == 1 {
				rows[i] ^= rows[rank]
			}
		}
		rank++
	}
	return rank
}

const serialPatternLength = 4 // m

func serial(seq bitseq.Sequence) Outcome {
	m := serialPatternLength

	psiM := psiSquared(seq, m)
	psiM1 := psiSquared(seq, m-1)
	psiM2 := psiSquared(seq, m-2)

	delta1 := psiM - psiM1
	delta2 := psiM - 2*psiM1 + psiM2

	p1 := igamc(math.Exp2(float64(m-2)), delta1/2)
	p2 := igamc(math.Exp2(float64(m-3)), delta2/2)

	outcome := Outcome{
		Name:     "serial",
		Eligible: true,
		Passed:   p1 >= SignificanceThreshold && p2 >= SignificanceThreshold,
		Score:    math.Min(p1, p2),
	}
	return outcome
}

// psiSquared computes the psi-square statistic over all overlapping
// patterns of the given length, with the sequence extended by its first
// length-1 bits.
func psiSquared(seq bitseq.Sequence, length int) float64 {
	if length <= 0 {
		return 0
	}
	n := len(seq)
	counts := patternCounts(seq, length)

	var sum float64
	for _, c := range counts {
		sum += float64(c) * float64(c)
	}
	return sum*math.Exp2(float64(length))/float64(n) - float64(n)
}

func patternCounts(seq bitseq.Sequence, length int) []int {
	n := len(seq)
	counts := make([]int, 1<<uint(length))
	mask := uint(1<<uint(length)) - 1

	var pattern uint
	for i := 0; i < length; i++ {
		pattern = (pattern << 1) | uint(seq[i%n])
	}
	counts[pattern]++
	for i := 1; i < n; i++ {
		next := seq[(i+length-1)%n]
		pattern = ((pattern << 1) | uint(next)) & mask
		counts[pattern]++
	}
	return counts
}

const approximateEntropyBlock = 2 // m

func approximateEntropy(seq bitseq.Sequence) Outcome {
	n := len(seq)
	m := approximateEntropyBlock

	apEn := phi(seq, m) - phi(seq, m+1)
	chiSq := 2 * float64(n) * (math.Ln2 - apEn)

	return scored("approximate_entropy", igamc(math.Exp2(float64(m-1)), chiSq/2))
}

func phi(seq bitseq.Sequence, length int) float64 {
	n := len(seq)
	counts := patternCounts(seq, length)

	var sum float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		fraction := float64(c) / float64(n)
		sum += fraction * math.Log(fraction)
	}
	return sum
}

// Maurer's universal statistical test parameters per sequence length.
var universalParams = []struct {
	minBits  int
	l        int
	expected float64
	variance float64
}{
	{2068480, 8, 7.1836656, 3.238},
	{904960, 7, 6.1962507, 3.125},
	{387840, 6, 5.2177052, 2.954},
}

func maurersUniversal(seq bitseq.Sequence) Outcome {
	n := len(seq)

	l := 0
	var expected, variance float64
	for _, params := range universalParams {
		if n >= params.minBits {
			l = params.l
			expected = params.expected
			variance = params.variance
			break
		}
	}
	if l == 0 {
		return Outcome{Name: "maurers_universal", Eligible: true, Passed: false, Score: 0}
	}

	q := 10 * (1 << uint(l))
	k := n/l - q

	lastSeen := make([]int, 1<<uint(l))
	block := func(i int) int {
		pattern := 0
		for j := 0; j < l; j++ {
			pattern = (pattern << 1) | int(seq[i*l+j])
		}
		return pattern
	}

	for i := 0; i < q; i++ {
		lastSeen[block(i)] = i + 1
	}

	var sum float64
	for i := q; i < q+k; i++ {
		pattern := block(i)
		sum += math.Log2(float64(i + 1 - lastSeen[pattern]))
		lastSeen[pattern] = i + 1
	}
	fn := sum / float64(k)

	c := 0.7 - 0.8/float64(l) + (4+32/float64(l))*math.Pow(float64(k), -3/float64(l))/15
	sigma := c * math.Sqrt(variance/float64(k))

	return scored("maurers_universal", math.Erfc(math.Abs(fn-expected)/(math.Sqrt2*sigma)))
}

const (
	linearComplexityBlock = 500 // M
	linearComplexityK     = 6
)

var linearComplexityPi = []float64{0.010417, 0.03125, 0.125, 0.5, 0.25, 0.0625, 0.020833}

func linearComplexity(seq bitseq.Sequence) Outcome {
	m := linearComplexityBlock
	blocks := len(seq) / m

	mf := float64(m)
	sign := 1.0
	if m%2 == 1 {
		sign = -1.0
	}
	mu := mf/2 + (9-sign)/36 - (mf/3+2.0/9)/math.Exp2(mf)

	counts := make([]int, linearComplexityK+1)
	for i := 0; i < blocks; i++ {
		complexity := berlekampMassey(seq[i*m : (i+1)*m])
		t := sign*(float64(complexity)-mu) + 2.0/9

		switch {
		case t <= -2.5:
			counts[0]++
		case t <= -1.5:
			counts[1]++
		case t <= -0.5:
			counts[2]++
		case t <= 0.5:
			counts[3]++
		case t <= 1.5:
			counts[4]++
		case t <= 2.5:
			counts[5]++
		default:
			counts[6]++
		}
	}

	var chiSq float64
	for i := 0; i <= linearComplexityK; i++ {
		expected := float64(blocks) * linearComplexityPi[i]
		chiSq += sq(float64(counts[i])-expected) / expected
	}
	return scored("linear_complexity", igamc(float64(linearComplexityK)/2, chiSq/2))
}

// berlekampMassey returns the linear complexity of the given bits: the
// length of the shortest LFSR that generates them.
func berlekampMassey(block bitseq.Sequence) int {
	n := len(block)
	c := make([]byte, n)
	b := make([]byte, n)
	c[0], b[0] = 1, 1

	complexity, lastChange := 0, -1
	for i := 0; i < n; i++ {
		d := block[i]
		for j := 1; j <= complexity; j++ {
			d ^= c[j] & block[i-j]
		}
		if d == 0 {
			continue
		}

		previous := make([]byte, n)
		copy(previous, c)
		shift := i - lastChange
		for j := 0; j+shift < n; j++ {
			c[j+shift] ^= b[j]
		}
		if complexity <= i/2 {
			complexity = i + 1 - complexity
			lastChange = i
			b = previous
		}
	}
	return complexity
}

const minExcursionCycles = 500

// excursionWalk builds the random walk S' = 0, S1..Sn, 0 and returns it
// with the number of zero-to-zero cycles.
func excursionWalk(seq bitseq.Sequence) (walk []int, cycles int) {
	walk = make([]int, 0, len(seq)+2)
	walk = append(walk, 0)
	sum := 0
	for _, bit := range seq {
		if bit == 1 {
			sum++
		} else {
			sum--
		}
		walk = append(walk, sum)
	}
	walk = append(walk, 0)

	for i := 1; i < len(walk); i++ {
		if walk[i] == 0 {
			cycles++
		}
	}
	return walk, cycles
}

func randomExcursion(seq bitseq.Sequence) Outcome {
	walk, cycles := excursionWalk(seq)
	if cycles < minExcursionCycles {
		return Outcome{Name: "random_excursion", Eligible: true, Passed: false, Score: 0}
	}

	states := []int{-4, -3, -2, -1, 1, 2, 3, 4}

	// visits[state][cycle] is implicit: count occurrences per cycle
	visitBuckets := make(map[int][]int, len(states))
	for _, state := range states {
		visitBuckets[state] = make([]int, 6) // 0..4 and >=5
	}

	current := make(map[int]int, len(states))
	for i := 1; i < len(walk); i++ {
		value := walk[i]
		if value == 0 {
			// cycle boundary: flush per-state counts
			for _, state := range states {
				k := current[state]
				if k > 5 {
					k = 5
				}
				visitBuckets[state][k]++
				current[state] = 0
			}
			continue
		}
		if value >= -4 && value <= 4 {
			current[value]++
		}
	}

	j := float64(cycles)
	minScore := 1.0
	allPassed := true
	for _, state := range states {
		x := math.Abs(float64(state))
		pi := make([]float64, 6)
		pi[0] = 1 - 1/(2*x)
		for k := 1; k <= 4; k++ {
			pi[k] = (1 / (4 * x * x)) * math.Pow(1-1/(2*x), float64(k-1))
		}
		pi[5] = (1 / (2 * x)) * math.Pow(1-1/(2*x), 4)

		var chiSq float64
		for k := 0; k < 6; k++ {
			expected := j * pi[k]
			chiSq += sq(float64(visitBuckets[state][k])-expected) / expected
		}
		p := igamc(2.5, chiSq/2)
		if p < minScore {
			minScore = p
		}
		if p < SignificanceThreshold {
			allPassed = false
		}
	}

	return Outcome{
		Name:     "random_excursion",
		Eligible: true,
		Passed:   allPassed,
		Score:    minScore,
	}
}

func randomExcursionVariant(seq bitseq.Sequence) Outcome {
	walk, cycles := excursionWalk(seq)
	if cycles < minExcursionCycles {
		return Outcome{Name: "random_excursion_variant", Eligible: true, Passed: false, Score: 0}
	}

	stateCounts := make(map[int]int)
	for _, value := range walk {
		if value >= -9 && value <= 9 && value != 0 {
			stateCounts[value]++
		}
	}

	j := float64(cycles)
	minScore := 1.0
	allPassed := true
	for state := -9; state <= 9; state++ {
		if state == 0 {
			continue
		}
		denominator := math.Sqrt(2 * j * (4*math.Abs(float64(state)) - 2))
		xi := math.Abs(float64(stateCounts[state])-j) / denominator
		p := math.Erfc(xi / math.Sqrt2)

		if p < minScore {
			minScore = p
		}
		if p < SignificanceThreshold {
			allPassed = false
		}
	}

	return Outcome{
		Name:     "random_excursion_variant",
		Eligible: true,
		Passed:   allPassed,
		Score:    minScore,
	}
}
