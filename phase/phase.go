// Package phase implements the haplotype-phasing driver: strand-aware
// construction of read-partitioning HMMs over the bubble graph,
// forward-backward inference with Viterbi traceback, iterative
// read-reassignment refinement, and assembly of a GenomeFragment.
//
// The partitioning model lives in hmm.go as a column-indexed, beam-pruned
// hidden Markov model: each strand is phased independently by its own
// forward-backward pass with ancestor substitution probabilities disabled,
// the two strands' own partitions anchor the final fused pass's otherwise
// arbitrary bipartition labeling, and that final pass re-enables the
// per-site substitution prior before refinement.
package phase

import (
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/ont-tools/marginphase/bubble"
	"github.com/ont-tools/marginphase/config"
	"github.com/ont-tools/marginphase/hmmref"
	"github.com/ont-tools/marginphase/profile"
	"github.com/ont-tools/marginphase/readio"
)

// GenomeFragment is the output of phasing: a per-bubble haplotype
// call for each of the two haplotypes, per-site probabilities, an ancestral
// (reference-leaning) genotype string, and the two read partitions.
type GenomeFragment struct {
	RefStart          int
	Length            int
	Haplotype1        []int // allele index per bubble, side 1
	Haplotype2        []int // allele index per bubble, side 2
	SiteProbs         []float64
	AncestralGenotype []int
	Reads1            map[*profile.ProfileSeq]struct{}
	Reads2            map[*profile.ProfileSeq]struct{}
}

// Run executes the full phasing driver over a bubble graph given every
// read's profile sequence. pseqs is keyed by Read identity
// (profile.Build's return shape); Run consumes the map and returns the
// resulting partitions as ProfileSeq sets owned by the returned
// GenomeFragment.
func Run(g *bubble.BubbleGraph, pseqs map[*readio.Read]*profile.ProfileSeq, params config.Params) *GenomeFragment {
	all := make([]*profile.ProfileSeq, 0, len(pseqs))
	for _, p := range pseqs {
		all = append(all, p)
	}
	return run(g, all, params)
}

// run is the slice-keyed core: phases reads that already carry a
// ProfileSeq (profile.Build has run).
func run(g *bubble.BubbleGraph, pseqs []*profile.ProfileSeq, params config.Params) *GenomeFragment {
	ref := hmmref.Build(g, params)

	survivors, filteredOut := filterByCoverage(pseqs, params.MaxCoverageDepth)

	var forward, reverse []*profile.ProfileSeq
	for _, p := range survivors {
		if p.Read != nil && p.Read.Strand {
			reverse = append(reverse, p)
		} else {
			forward = append(forward, p)
		}
	}

	fwdSide, fwdCols, _ := runPartitionHMM(g, ref, forward, params, false)
	revSide, revCols, _ := runPartitionHMM(g, ref, reverse, params, false)

	fusedCols := fuseTilingPaths(fwdCols, revCols)
	log.WithFields(log.Fields{
		"forwardReads": len(forward), "reverseReads": len(reverse),
		"fusedColumns": len(fusedCols), "overlapBackbone": len(overlapBackbone(fwdCols, revCols)),
	}).Debug("fused strand tiling paths")

	partition, touchedCols, confidence := runPartitionHMM(g, ref, survivors, params, params.IncludeAncestorSubProb)
	canonicalizePolarity(partition, fwdSide, revSide)

	gf := buildGenomeFragment(g, ref, partition, params)
	applyPartitionConfidence(gf, touchedCols, confidence)

	refineGenomeFragment(g, ref, gf, partition, params)

	rescueFiltered(g, gf, filteredOut, params)

	return gf
}

// filterByCoverage caps the number of reads entering the HMM at
// params.MaxCoverageDepth, preferring longer (more bubble-spanning) reads,
// returning the excluded set for later rescue.
func filterByCoverage(pseqs []*profile.ProfileSeq, maxCoverage int) (survivors, filteredOut []*profile.ProfileSeq) {
	if maxCoverage <= 0 || len(pseqs) <= maxCoverage {
		return append([]*profile.ProfileSeq(nil), pseqs...), nil
	}
	ranked := append([]*profile.ProfileSeq(nil), pseqs...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Length > ranked[j].Length })
	return ranked[:maxCoverage], ranked[maxCoverage:]
}
