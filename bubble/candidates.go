// Candidate-allele enumeration over a POA interval.

package bubble

import (
	"github.com/ont-tools/marginphase/poa"
)

// CandidateConsensusStrings enumerates the candidate expanded (non-RLE)
// consensus strings spanning POA interval [from,to): every combination of
// candidate base, repeat count, insertion, and deletion whose weight clears
// the per-position threshold. ok is false if the enumeration exceeded
// maxStrings at any level; callers retry with a larger weightAdjustment.
func CandidateConsensusStrings(p *poa.Poa, from, to int, candidateWeights []float64, weightAdjustment float64, maxStrings int) (result []string, ok bool) {
	suffixes := []string{""}
	if from+1 < to {
		suffixes, ok = CandidateConsensusStrings(p, from+1, to, candidateWeights, weightAdjustment, maxStrings)
		if !ok {
			return nil, false
		}
	}
	node := p.Nodes[from]
	w := candidateWeights[from] * weightAdjustment

	bases := candidateBases(node, w)
	seen := map[string]bool{}
	add := func(s string) {
		seen[s] = true
		result = append(result, s)
	}
	for _, base := range bases {
		for _, rc := range candidateRepeatCounts(node, w) {
			expanded := expandRun(base, rc)
			for _, suffix := range suffixes {
				add(expanded + suffix)
				for _, ins := range node.Inserts {
					if ins.Weight > w {
						add(expanded + string(ins.Seq) + suffix)
					}
				}
				for _, del := range node.Deletes {
					if del.Weight <= w {
						continue
					}
					var tail string
					if del.Length < len(suffix) {
						tail = suffix[del.Length:]
					}
					// delete duplicates are suppressed against everything
					// emitted at this level so far
					if cand := expanded + tail; !seen[cand] {
						add(cand)
					}
				}
				if len(result) > maxStrings {
					return nil, false
				}
			}
		}
	}
	return result, true
}

func candidateBases(node *poa.Node, w float64) []byte {
	var out []byte
	for _, b := range poa.Alphabet {
		if node.BaseWeights[b] > w || b == node.Base {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		out = append(out, node.Base)
	}
	return out
}

func candidateRepeatCounts(node *poa.Node, w float64) []int {
	threshold := 2 * w
	seen := map[int]bool{}
	var out []int
	add := func(rc int) {
		if !seen[rc] {
			seen[rc] = true
			out = append(out, rc)
		}
	}
	for rc, weight := range node.RepeatCountWeights {
		if weight > threshold {
			add(rc)
		}
	}
	add(node.RepeatCount)
	if len(out) == 0 {
		add(1)
	}
	return out
}

func expandRun(base byte, repeatCount int) string {
	if repeatCount < 1 {
		repeatCount = 1
	}
	buf := make([]byte, repeatCount)
	for i := range buf {
		buf[i] = base
	}
	return string(buf)
}
