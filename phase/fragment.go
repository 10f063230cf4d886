package phase

import (
	"math"

	"github.com/ont-tools/marginphase/bubble"
	"github.com/ont-tools/marginphase/config"
	"github.com/ont-tools/marginphase/hmmref"
	"github.com/ont-tools/marginphase/profile"
)

// buildGenomeFragment fills in a GenomeFragment's haplotype/genotype
// arrays from a global read partition.
func buildGenomeFragment(g *bubble.BubbleGraph, ref *hmmref.Reference, partition map[*profile.ProfileSeq]bool, params config.Params) *GenomeFragment {
	n := len(g.Bubbles)
	gf := &GenomeFragment{
		RefStart:          0,
		Length:            n,
		Haplotype1:        make([]int, n),
		Haplotype2:        make([]int, n),
		SiteProbs:         make([]float64, n),
		AncestralGenotype: make([]int, n),
		Reads1:            map[*profile.ProfileSeq]struct{}{},
		Reads2:            map[*profile.ProfileSeq]struct{}{},
	}
	if n > 0 {
		gf.RefStart = g.Bubbles[0].RefStart
	}

	var reads1, reads2 []*profile.ProfileSeq
	for p, side := range partition {
		if side {
			reads2 = append(reads2, p)
			gf.Reads2[p] = struct{}{}
		} else {
			reads1 = append(reads1, p)
			gf.Reads1[p] = struct{}{}
		}
	}

	for bi, b := range g.Bubbles {
		a1, p1 := bestAlleleAndProb(b, bi, reads1, ref, params)
		a2, p2 := bestAlleleAndProb(b, bi, reads2, ref, params)
		gf.Haplotype1[bi] = a1
		gf.Haplotype2[bi] = a2
		gf.SiteProbs[bi] = math.Min(p1, p2)
		gf.AncestralGenotype[bi] = ancestralAllele(b, a1, a2)
	}
	return gf
}

// bestAlleleAndProb picks the highest-likelihood allele at bubble bi for
// the given side's reads, folding in the hmmref allele prior, and returns
// a softmax-style confidence for the call.
func bestAlleleAndProb(b *bubble.Bubble, bi int, reads []*profile.ProfileSeq, ref *hmmref.Reference, params config.Params) (int, float64) {
	scores := make([]float64, b.AlleleNo())
	copy(scores, ref.Sites[bi].AllelePriorLogProbs)
	for _, p := range reads {
		if !spans(p, bi) {
			continue
		}
		strip := b.AlleleOffset - p.AlleleOffset
		for a := 0; a < b.AlleleNo(); a++ {
			scores[a] += p.AlleleLogOdds(strip, a, params.ProfileProbScalar)
		}
	}
	best, bestScore := 0, math.Inf(-1)
	for a, s := range scores {
		if s > bestScore {
			best, bestScore = a, s
		}
	}
	total := logSumExp(scores)
	if math.IsInf(total, -1) {
		return best, 0
	}
	return best, math.Exp(bestScore - total)
}

func logSumExp(v []float64) float64 {
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
	sum := 0.0
	for _, x := range v {
		sum += math.Exp(x - max)
	}
	return max + math.Log(sum)
}

// applyPartitionConfidence overwrites gf.SiteProbs at every bubble the
// partitioning HMM actually covered with its own forward-backward
// posterior confidence in the traceback's bit there, superseding
// buildGenomeFragment's softmax fallback for those sites; bubbles the HMM
// never touched (no spanning reads survived filtering) keep the fallback
// value.
func applyPartitionConfidence(gf *GenomeFragment, cols []int, confidence []float64) {
	for i, bi := range cols {
		if i >= len(confidence) || bi < 0 || bi >= len(gf.SiteProbs) {
			continue
		}
		gf.SiteProbs[bi] = confidence[i]
	}
}

// ancestralAllele picks the reference allele when either haplotype agrees
// with it, else defaults to haplotype 1's call.
func ancestralAllele(b *bubble.Bubble, a1, a2 int) int {
	refIdx := b.RefAlleleIndex()
	if refIdx == a1 || refIdx == a2 {
		return refIdx
	}
	return a1
}

// logProbOfReadGivenHaplotype sums a read's dequantized log-odds against a
// haplotype's called allele at every bubble the read spans.
func logProbOfReadGivenHaplotype(g *bubble.BubbleGraph, haplotype []int, p *profile.ProfileSeq, scalar float64) float64 {
	total := 0.0
	for bi := p.RefStart; bi < p.RefStart+p.Length && bi < len(haplotype); bi++ {
		b := g.Bubbles[bi]
		strip := b.AlleleOffset - p.AlleleOffset
		total += p.AlleleLogOdds(strip, haplotype[bi], scalar)
	}
	return total
}

// refineGenomeFragment runs the iterative read-reassignment refinement
//: each round, reads that would score strictly higher
// under the other haplotype are swapped, then the genome fragment is
// recomputed; stops when no reads want to move or maxIterations is
// reached.
func refineGenomeFragment(g *bubble.BubbleGraph, ref *hmmref.Reference, gf *GenomeFragment, partition map[*profile.ProfileSeq]bool, params config.Params) {
	for iter := 0; iter < params.RoundsOfIterativeRefinement; iter++ {
		var swapped []*profile.ProfileSeq
		for p, side := range partition {
			var mine, other []int
			if side {
				mine, other = gf.Haplotype2, gf.Haplotype1
			} else {
				mine, other = gf.Haplotype1, gf.Haplotype2
			}
			if logProbOfReadGivenHaplotype(g, other, p, params.ProfileProbScalar) >
				logProbOfReadGivenHaplotype(g, mine, p, params.ProfileProbScalar) {
				swapped = append(swapped, p)
			}
		}
		if len(swapped) == 0 {
			break
		}
		for _, p := range swapped {
			partition[p] = !partition[p]
		}
		*gf = *buildGenomeFragment(g, ref, partition, params)
	}
}

// rescueFiltered assigns each coverage-filtered-out read to whichever
// haplotype string produces the larger log P(read | haplotype). Reads
// scoring equally under both are left unclassified.
func rescueFiltered(g *bubble.BubbleGraph, gf *GenomeFragment, filteredOut []*profile.ProfileSeq, params config.Params) {
	for _, p := range filteredOut {
		s1 := logProbOfReadGivenHaplotype(g, gf.Haplotype1, p, params.ProfileProbScalar)
		s2 := logProbOfReadGivenHaplotype(g, gf.Haplotype2, p, params.ProfileProbScalar)
		switch {
		case s1 > s2:
			gf.Reads1[p] = struct{}{}
		case s2 > s1:
			gf.Reads2[p] = struct{}{}
		}
	}
}
