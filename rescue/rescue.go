// Package rescue implements the filtered-read rescuer: for
// reads excluded from phasing by the coverage cap or by VCF-entry
// filtering, score each against the two chosen haplotypes and assign by
// summed log-odds.
//
// The POA-driven and VCF-driven paths (RescuePOA, RescueVCF) are
// implemented independently against the same per-bubble contract, sharing
// only the allele-scoring helper.
package rescue

import (
	"github.com/ont-tools/marginphase/align"
	"github.com/ont-tools/marginphase/bubble"
	"github.com/ont-tools/marginphase/config"
	"github.com/ont-tools/marginphase/phase"
	"github.com/ont-tools/marginphase/poa"
	"github.com/ont-tools/marginphase/readio"
	"github.com/ont-tools/marginphase/rle"
)

// Assignment is the per-read outcome of rescue: Hap1, Hap2, or
// neither when the two accumulators tie.
type Assignment int

const (
	Unclassified Assignment = iota
	Hap1
	Hap2
)

// PrimaryBubble is one heterozygous site from the primary phasing pass that
// rescue re-scores reads against: the two called haplotype alleles (as RLE
// strings), identified by its index into the bubble graph and its POA
// interval.
type PrimaryBubble struct {
	Index           int
	RefStart, RefEnd int // POA node coordinates [RefStart, RefEnd)
	Hap1, Hap2       *rle.String
}

// FromGenomeFragment collects the heterozygous bubbles (hap1 allele !=
// hap2 allele) from a phased bubble graph. Each one's POA interval is
// poaIntervals[i] when supplied for that bubble, else
// [RefStart, RefStart+BubbleLength).
func FromGenomeFragment(g *bubble.BubbleGraph, gf *phase.GenomeFragment, poaIntervals []([2]int)) []PrimaryBubble {
	var out []PrimaryBubble
	for i, b := range g.Bubbles {
		a1, a2 := gf.Haplotype1[i], gf.Haplotype2[i]
		if a1 == a2 {
			continue
		}
		from, to := b.RefStart, b.RefStart+b.BubbleLength
		if i < len(poaIntervals) {
			from, to = poaIntervals[i][0], poaIntervals[i][1]
		}
		out = append(out, PrimaryBubble{
			Index: i, RefStart: from, RefEnd: to,
			Hap1: b.Alleles[a1], Hap2: b.Alleles[a2],
		})
	}
	return out
}

// RescuePOA scores every read against every heterozygous primary bubble by
// re-extracting its substring directly from the POA with unfiltered
// extraction (no quality or coverage trimming: a read excluded from phasing
// still deserves a score here), and assigns each by the larger accumulated
// log-odds.
func RescuePOA(p *poa.Poa, bubbles []PrimaryBubble, reads map[int]*readio.Read, params config.Params, sm *align.StateMachine) map[*readio.Read]Assignment {
	assignments, _, _ := RescuePOAScores(p, bubbles, reads, params, sm)
	return assignments
}

// RescuePOAScores is RescuePOA plus the raw accumulated log-odds per read,
// for callers (e.g. the phasing-record writer's hapSupportH1/H2 fields)
// that need the scores themselves rather than just the final
// hap1/hap2/unclassified call.
func RescuePOAScores(p *poa.Poa, bubbles []PrimaryBubble, reads map[int]*readio.Read, params config.Params, sm *align.StateMachine) (map[*readio.Read]Assignment, map[*readio.Read]float64, map[*readio.Read]float64) {
	acc1 := map[*readio.Read]float64{}
	acc2 := map[*readio.Read]float64{}

	for _, pb := range bubbles {
		substrings := bubble.GetReadSubstrings(p, reads, pb.RefStart, pb.RefEnd, false, params)
		byRead := map[*readio.Read]*rle.String{}
		for _, rs := range substrings {
			byRead[rs.Read] = rs.Substring()
		}
		scoreAgainstHaplotypes(pb, byRead, sm, acc1, acc2)
	}
	return classify(acc1, acc2, reads), acc1, acc2
}

// RescueVCF scores every read against every heterozygous primary bubble
// using a pre-computed alignment-derived per-variant read-substring map,
// rather than re-extracting from a POA. readSubstrings is indexed the same
// way as bubbles, by primary-bubble index.
func RescueVCF(bubbles []PrimaryBubble, readSubstrings map[int]map[*readio.Read]*rle.String, sm *align.StateMachine) map[*readio.Read]Assignment {
	acc1 := map[*readio.Read]float64{}
	acc2 := map[*readio.Read]float64{}
	allReads := map[*readio.Read]bool{}

	for _, pb := range bubbles {
		substrings := readSubstrings[pb.Index]
		for r := range substrings {
			allReads[r] = true
		}
		scoreAgainstHaplotypes(pb, substrings, sm, acc1, acc2)
	}
	reads := make(map[int]*readio.Read, len(allReads))
	idx := 0
	for r := range allReads {
		reads[idx] = r
		idx++
	}
	return classify(acc1, acc2, reads)
}

// scoreAgainstHaplotypes implements the two-allele forward-probability
// scoring shared by RescuePOA and RescueVCF: for every read substring at
// this bubble, add s1-logsumexp(s1,s2) to acc1 and s2-logsumexp(s2,s1) to
// acc2, where s1/s2 are the read's forward log-probability against the
// hap1/hap2 alleles.
func scoreAgainstHaplotypes(pb PrimaryBubble, substrings map[*readio.Read]*rle.String, sm *align.StateMachine, acc1, acc2 map[*readio.Read]float64) {
	hap1Expanded := pb.Hap1.Expand()
	hap2Expanded := pb.Hap2.Expand()
	for r, sub := range substrings {
		readSyms := sub.Expand()
		s1 := align.ForwardProbability(hap1Expanded, readSyms, nil, sm)
		s2 := align.ForwardProbability(hap2Expanded, readSyms, nil, sm)
		total := align.LogSumExp(s1, s2)
		acc1[r] += s1 - total
		acc2[r] += s2 - total
	}
}

func classify(acc1, acc2 map[*readio.Read]float64, reads map[int]*readio.Read) map[*readio.Read]Assignment {
	out := make(map[*readio.Read]Assignment, len(reads))
	for _, r := range reads {
		s1, s2 := acc1[r], acc2[r]
		switch {
		case s1 > s2:
			out[r] = Hap1
		case s2 > s1:
			out[r] = Hap2
		default:
			out[r] = Unclassified
		}
	}
	return out
}
