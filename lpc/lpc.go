// Package lpc computes local phasing correctness: how well a query set of
// phased variants agrees with a truth set over runs of shared phase sets,
// discounting agreement geometrically with the number of shared variants
// between each pair.
package lpc

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/ont-tools/marginphase/vcfmodel"
)

// partialSum accumulates the decayed co-phasing contribution for one pair
// of (query phase set, truth phase set) currently in scope.
type partialSum struct {
	queryPhaseSet, truthPhaseSet string
	unphasedSum                  float64
	phaseSum1, phaseSum2         float64
}

// phaseSetInterval is the [first,last] variant index at which a phase set
// is observed: once the current index leaves every interval a partial
// sum's phase sets span, that sum falls permanently out of scope.
type phaseSetInterval struct{ first, last int }

func phaseSetIntervals(vs []*vcfmodel.PhasedVariant) map[string]phaseSetInterval {
	out := map[string]phaseSetInterval{}
	for i, v := range vs {
		iv, ok := out[v.PhaseSet]
		if !ok {
			iv = phaseSetInterval{first: i, last: i}
		} else {
			iv.last = i
		}
		out[v.PhaseSet] = iv
	}
	return out
}

// alleleMatch reports the four possible cross-matches between a query and
// truth heterozygous call's two alleles, and whether they form a valid
// 1-1/2-2 or 1-2/2-1 pairing (exactly two of the four matches set, one per
// query allele). A count over two means a duplicate allele string appears
// among the REF/ALT list, which is logged and the site skipped.
func alleleMatch(q, t *vcfmodel.PhasedVariant) (match11, match12, match21, match22, ok bool) {
	qa1, qa2 := q.Alleles[q.GT1], q.Alleles[q.GT2]
	ta1, ta2 := t.Alleles[t.GT1], t.Alleles[t.GT2]
	match11 = qa1 == ta1
	match12 = qa1 == ta2
	match21 = qa2 == ta1
	match22 = qa2 == ta2
	if !(match11 || match12) || !(match21 || match22) {
		return match11, match12, match21, match22, false
	}
	n := 0
	for _, m := range []bool{match11, match12, match21, match22} {
		if m {
			n++
		}
	}
	if n > 2 {
		log.WithFields(log.Fields{"refSeqName": q.RefSeqName, "refPos": q.RefPos}).
			Warn("duplicate alleles detected at shared variant position, skipping")
		return match11, match12, match21, match22, false
	}
	return match11, match12, match21, match22, true
}

// sweep scans both lists once, forward (from the start) or backward (from
// the end), accumulating the decayed numerator (totalSum) and the decayed
// partition normalizer (partitionTotalSum). Returns the count of shared,
// matched heterozygous sites visited.
func sweep(query, truth []*vcfmodel.PhasedVariant, decay float64, queryIntervals, truthIntervals map[string]phaseSetInterval, forward bool) (totalSum, partitionTotalSum float64, numPhased int64) {
	var i, j, incr int
	if forward {
		i, j, incr = 0, 0, 1
	} else {
		i, j, incr = len(query)-1, len(truth)-1, -1
	}

	var sums []*partialSum
	var partitionSum, outOfScopeSum float64

	inScope := func(s *partialSum) bool {
		qiv, tiv := queryIntervals[s.queryPhaseSet], truthIntervals[s.truthPhaseSet]
		return i >= qiv.first && i <= qiv.last && j >= tiv.first && j <= tiv.last
	}

	for i >= 0 && i < len(query) && j >= 0 && j < len(truth) {
		qpv, tpv := query[i], truth[j]
		if (forward && qpv.RefPos < tpv.RefPos) || (!forward && qpv.RefPos > tpv.RefPos) {
			i += incr
			continue
		}
		if (forward && tpv.RefPos < qpv.RefPos) || (!forward && tpv.RefPos > qpv.RefPos) {
			j += incr
			continue
		}

		match11, _, _, _, ok := alleleMatch(qpv, tpv)
		i += incr
		j += incr
		if !ok {
			continue
		}
		numPhased++

		var found *partialSum
		for _, s := range sums {
			if s.queryPhaseSet == qpv.PhaseSet && s.truthPhaseSet == tpv.PhaseSet {
				found = s
				if match11 {
					totalSum += s.phaseSum1
					s.phaseSum1++
				} else {
					totalSum += s.phaseSum2
					s.phaseSum2++
				}
			} else {
				totalSum += s.unphasedSum
			}
			s.unphasedSum++
		}
		totalSum += outOfScopeSum

		partitionTotalSum += partitionSum
		partitionSum++

		if found == nil {
			ns := &partialSum{queryPhaseSet: qpv.PhaseSet, truthPhaseSet: tpv.PhaseSet, unphasedSum: 1}
			if match11 {
				ns.phaseSum1 = 1
			} else {
				ns.phaseSum2 = 1
			}
			sums = append(sums, ns)
		}

		for _, s := range sums {
			s.unphasedSum *= decay
			s.phaseSum1 *= decay
			s.phaseSum2 *= decay
		}
		partitionSum *= decay
		outOfScopeSum *= decay

		kept := sums[:0]
		for _, s := range sums {
			if inScope(s) {
				kept = append(kept, s)
			} else {
				outOfScopeSum += s.unphasedSum
			}
		}
		sums = kept
	}
	return totalSum, partitionTotalSum, numPhased
}

// SwitchCorrectness is the decay=0 limit of Correctness: the fraction of
// adjacent shared-site pairs whose relative phase (in-phase vs
// out-of-phase) agrees between query and truth. A phase-set change between
// adjacent sites counts as correct, since no phase claim links them. The
// ratio is degenerate when fewer than two shared sites were found (NaN for
// one shared site, -0 for none); callers should check sharedVariantCount
// before trusting correctness.
func SwitchCorrectness(query, truth []*vcfmodel.PhasedVariant) (correctness float64, sharedVariantCount int64) {
	var prevQueryPS, prevTruthPS string
	havePrev := false
	var prevInPhase bool
	var numPhased, numCorrect int64

	i, j := 0, 0
	for i < len(query) && j < len(truth) {
		qpv, tpv := query[i], truth[j]
		switch {
		case qpv.RefPos < tpv.RefPos:
			i++
			continue
		case tpv.RefPos < qpv.RefPos:
			j++
			continue
		}
		match11, _, _, _, ok := alleleMatch(qpv, tpv)
		i++
		j++
		if !ok {
			continue
		}
		numPhased++
		if havePrev {
			if qpv.PhaseSet == prevQueryPS && tpv.PhaseSet == prevTruthPS {
				if match11 == prevInPhase {
					numCorrect++
				}
			} else {
				numCorrect++
			}
		}
		prevInPhase = match11
		prevQueryPS, prevTruthPS = qpv.PhaseSet, tpv.PhaseSet
		havePrev = true
	}
	return float64(numCorrect) / float64(numPhased-1), numPhased
}

// Correctness reports how consistently query agrees with truth about the
// relative phase of nearby heterozygous variants, decaying the influence of
// a shared variant on its neighbors' scores geometrically by decay per
// intervening shared site. decay must lie in [0,1]; decay==0 is the
// switch-correctness limit (handled as a special case below to avoid a
// division by zero that direct evaluation of the general formula would hit
// at the limit). Both variant
// lists must already be sorted by RefPos (vcfmodel.SortPhasedVariants) and
// are assumed to share exactly one reference sequence; call once per
// contig in vcfmodel.GetSharedContigs.
func Correctness(query, truth []*vcfmodel.PhasedVariant, decay float64) (correctness float64, sharedVariantCount int64, err error) {
	if decay < 0 || decay > 1 {
		return 0, 0, fmt.Errorf("lpc: decay %g out of range [0,1]", decay)
	}
	if decay == 0 {
		c, n := SwitchCorrectness(query, truth)
		return c, n, nil
	}

	queryIntervals := phaseSetIntervals(query)
	truthIntervals := phaseSetIntervals(truth)

	fwdSum, fwdPartition, n := sweep(query, truth, decay, queryIntervals, truthIntervals, true)
	bwdSum, bwdPartition, _ := sweep(query, truth, decay, queryIntervals, truthIntervals, false)

	denom := fwdPartition + bwdPartition
	if denom == 0 {
		return 0, n, nil
	}
	return (fwdSum + bwdSum) / denom, n, nil
}
