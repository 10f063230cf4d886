// Package align provides the pair-HMM scoring collaborator that the bubble
// graph and phasing core use to compute per-read-per-allele match
// probabilities: a minimal stand-in for the externally supplied alignment
// scoring subsystem. It implements a
// textbook three-state (match/insert/delete) log-space pair-HMM forward
// algorithm restricted to a band of anchor pairs, not a full affine-gap
// aligner.
package align

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// StateMachine holds the substitution/gap log-probabilities used by the
// forward algorithm. Values are natural-log probabilities.
type StateMachine struct {
	MatchLogProb      [256][256]float64 // MatchLogProb[a][b] = log P(b observed | a true)
	GapOpenLogProb    float64
	GapExtendLogProb  float64
}

// NewStateMachine builds a StateMachine with a uniform substitution model:
// matchProb on the diagonal, the remainder split evenly across mismatches.
func NewStateMachine(matchProb, gapOpenProb, gapExtendProb float64) *StateMachine {
	sm := &StateMachine{
		GapOpenLogProb:   math.Log(gapOpenProb),
		GapExtendLogProb: math.Log(gapExtendProb),
	}
	bases := []byte{'A', 'C', 'G', 'T', 'N'}
	mismatch := (1 - matchProb) / float64(len(bases)-1)
	for _, a := range bases {
		for _, b := range bases {
			if a == b {
				sm.MatchLogProb[a][b] = math.Log(matchProb)
			} else {
				sm.MatchLogProb[a][b] = math.Log(mismatch)
			}
		}
	}
	return sm
}

// MeanMatchLogProb reports the mean diagonal (match) log-probability across
// the given bases, used for quick sanity checks on a substitution model
// before it is used to score millions of alleles.
func (sm *StateMachine) MeanMatchLogProb(bases []byte) float64 {
	if len(bases) == 0 {
		return 0
	}
	vals := make([]float64, len(bases))
	for i, b := range bases {
		vals[i] = sm.MatchLogProb[b][b]
	}
	return stat.Mean(vals, nil)
}

// ForwardProbability computes log P(b | a) under sm, aligning the two
// symbol sequences through the supplied ordered anchor pairs (refPos,
// altPos indices into a and b respectively, monotonically increasing in
// both coordinates). A full forward recursion runs between each pair of
// consecutive anchors, so the cost is the sum of the segment-size products;
// with no anchors it is O(len(a)*len(b)).
func ForwardProbability(a, b []byte, anchorPairs [][2]int, sm *StateMachine) float64 {
	if len(anchorPairs) == 0 {
		anchorPairs = [][2]int{{0, 0}, {len(a), len(b)}}
	}
	total := 0.0
	for k := 0; k+1 < len(anchorPairs); k++ {
		i0, j0 := anchorPairs[k][0], anchorPairs[k][1]
		i1, j1 := anchorPairs[k+1][0], anchorPairs[k+1][1]
		total += bandedForward(a[i0:i1], b[j0:j1], sm)
	}
	return total
}

// bandedForward runs the full three-state pair-HMM forward recursion over a
// short segment (a bubble-scale window, typically under a few hundred
// bases), returning the total log-probability of generating b from a.
func bandedForward(a, b []byte, sm *StateMachine) float64 {
	n, m := len(a), len(b)
	const negInf = math.MaxFloat64 * -1
	match := make([][]float64, n+1)
	ins := make([][]float64, n+1)
	del := make([][]float64, n+1)
	for i := range match {
		match[i] = make([]float64, m+1)
		ins[i] = make([]float64, m+1)
		del[i] = make([]float64, m+1)
		for j := range match[i] {
			match[i][j], ins[i][j], del[i][j] = negInf, negInf, negInf
		}
	}
	match[0][0] = 0
	for i := 1; i <= n; i++ {
		del[i][0] = logAdd(match[i-1][0]+sm.GapOpenLogProb, del[i-1][0]+sm.GapExtendLogProb)
	}
	for j := 1; j <= m; j++ {
		ins[0][j] = logAdd(match[0][j-1]+sm.GapOpenLogProb, ins[0][j-1]+sm.GapExtendLogProb)
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			emit := sm.MatchLogProb[a[i-1]][b[j-1]]
			match[i][j] = emit + logAdd3(match[i-1][j-1], ins[i-1][j-1], del[i-1][j-1])
			ins[i][j] = logAdd(match[i][j-1]+sm.GapOpenLogProb, ins[i][j-1]+sm.GapExtendLogProb)
			del[i][j] = logAdd(match[i-1][j]+sm.GapOpenLogProb, del[i-1][j]+sm.GapExtendLogProb)
		}
	}
	return logAdd3(match[n][m], ins[n][m], del[n][m])
}

// LogSumExp returns log(sum(exp(v))) computed with the max-shift trick for
// numerical stability, the core primitive behind every log-space
// probability combination in this engine.
func LogSumExp(v ...float64) float64 {
	if len(v) == 0 {
		return math.Inf(-1)
	}
	max := v[0]
	for _, x := range v[1:] {
		if x > max {
			max = x
		}
	}
	if math.IsInf(max, -1) {
		return max
	}
	var sum float64
	for _, x := range v {
		sum += math.Exp(x - max)
	}
	return max + math.Log(sum)
}

func logAdd(a, b float64) float64  { return LogSumExp(a, b) }
func logAdd3(a, b, c float64) float64 { return LogSumExp(a, b, c) }
