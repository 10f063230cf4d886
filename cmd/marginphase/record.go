package main

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ont-tools/marginphase/bubble"
	"github.com/ont-tools/marginphase/config"
	"github.com/ont-tools/marginphase/hgvs"
	"github.com/ont-tools/marginphase/phase"
	"github.com/ont-tools/marginphase/profile"
	"github.com/ont-tools/marginphase/readio"
	"github.com/ont-tools/marginphase/rescue"
)

// PhasingRecord is the JSON-shaped phasing output:
// {"primary": [...], "filtered": [...]}. Primary holds one BubbleRecord per
// heterozygous bubble; Filtered holds one only for heterozygous bubbles
// that have at least one rescued read.
type PhasingRecord struct {
	Primary  []BubbleRecord `json:"primary"`
	Filtered []BubbleRecord `json:"filtered"`

	// Stitched per-haplotype consensus sequences, present only when the
	// phase subcommand runs with -polish.
	ConsensusHap1 string `json:"consensusHap1,omitempty"`
	ConsensusHap2 string `json:"consensusHap2,omitempty"`
}

// BubbleRecord is one row of the phasing record: a bubble's position,
// strand-skew diagnostic, and per-read haplotype support.
type BubbleRecord struct {
	RefPos     int           `json:"refPos"`
	RLERefPos  int           `json:"rleRefPos"`
	StrandSkew float64       `json:"strandSkew"`
	HgvsH1     string        `json:"hgvsH1,omitempty"`
	HgvsH2     string        `json:"hgvsH2,omitempty"`
	Reads      []ReadSupport `json:"reads"`
}

// ReadSupport is one read's quality and log-odds support for each haplotype
// at a bubble.
type ReadSupport struct {
	Name         string  `json:"name"`
	Qual         float64 `json:"qual"`
	HapSupportH1 float64 `json:"hapSupportH1"`
	HapSupportH2 float64 `json:"hapSupportH2"`
}

// buildPhasingRecord renders the primary (phased, in-coverage-cap) and
// filtered (rescued) sections of the JSON phasing record for one chunk.
func buildPhasingRecord(chunkRefStart int, g *bubble.BubbleGraph, gf *phase.GenomeFragment,
	pseqs map[*readio.Read]*profile.ProfileSeq, rescued map[*readio.Read]rescue.Assignment,
	rescueAcc1, rescueAcc2 map[*readio.Read]float64, filteredAt map[int]map[*readio.Read]bool,
	params config.Params) PhasingRecord {

	var rec PhasingRecord
	expandedPos := expandedPositions(g)

	for i, b := range g.Bubbles {
		if i >= len(gf.Haplotype1) || i >= len(gf.Haplotype2) {
			continue
		}
		a1, a2 := gf.Haplotype1[i], gf.Haplotype2[i]
		if a1 == a2 {
			continue
		}
		refExpanded := b.RefAllele.Expand()
		row := BubbleRecord{
			RefPos:     chunkRefStart + expandedPos[b.RefStart],
			RLERefPos:  b.RefStart,
			StrandSkew: strandSkew(b, gf, a1, a2),
			HgvsH1:     hgvs.Describe(refExpanded, b.Alleles[a1].Expand(), chunkRefStart+expandedPos[b.RefStart]),
			HgvsH2:     hgvs.Describe(refExpanded, b.Alleles[a2].Expand(), chunkRefStart+expandedPos[b.RefStart]),
		}
		for ri := range b.Reads {
			rs := &b.Reads[ri]
			pseq, ok := pseqs[rs.Read]
			h1, h2 := 0.0, 0.0
			if ok {
				byteOffset := b.AlleleOffset - pseq.AlleleOffset
				h1 = pseq.AlleleLogOdds(byteOffset, a1, params.ProfileProbScalar)
				h2 = pseq.AlleleLogOdds(byteOffset, a2, params.ProfileProbScalar)
			}
			row.Reads = append(row.Reads, ReadSupport{
				Name: rs.Read.Name, Qual: rs.QualValue, HapSupportH1: h1, HapSupportH2: h2,
			})
		}
		rec.Primary = append(rec.Primary, row)

		if at := filteredAt[i]; len(at) > 0 {
			filteredRow := BubbleRecord{
				RefPos: row.RefPos, RLERefPos: row.RLERefPos, StrandSkew: row.StrandSkew,
				HgvsH1: row.HgvsH1, HgvsH2: row.HgvsH2,
			}
			for r := range at {
				filteredRow.Reads = append(filteredRow.Reads, ReadSupport{
					Name: r.Name, Qual: r.AvgQuality(0, r.Length()),
					HapSupportH1: rescueAcc1[r], HapSupportH2: rescueAcc2[r],
				})
			}
			rec.Filtered = append(rec.Filtered, filteredRow)
		}
	}
	return rec
}

// expandedPositions maps each RLE-run index of g.RefString to its expanded
// (non-RLE) offset from the window start, for refPos reporting.
func expandedPositions(g *bubble.BubbleGraph) []int {
	out := make([]int, g.RefString.Length()+1)
	pos := 0
	for i, c := range g.RefString.Counts {
		out[i] = pos
		pos += c
	}
	out[len(out)-1] = pos
	return out
}

// strandSkew computes a two-sided binomial-test p-value for whether hap1's
// forward-strand fraction among this bubble's reads differs from the
// bubble-wide forward-strand fraction, a confounding-artifact signal when
// haplotype assignment tracks read orientation instead of sequence. Returns
// 1.0 (no evidence of skew) when either haplotype has no attached reads.
func strandSkew(b *bubble.Bubble, gf *phase.GenomeFragment, a1, a2 int) float64 {
	var n1f, n1, nf, n int
	for ri := range b.Reads {
		r := b.Reads[ri].Read
		fwd := 0
		if !r.Strand {
			fwd = 1
		}
		nf += fwd
		n++
		// attribute the read to hap1 if its substring matches a1's allele
		// more closely than a2's by support; approximate via which allele
		// has the larger logged support for this read.
		supp1 := b.AlleleReadSupports[a1][ri]
		supp2 := b.AlleleReadSupports[a2][ri]
		if supp1 >= supp2 {
			n1++
			n1f += fwd
		}
	}
	if n1 == 0 || n1 == n || n == 0 {
		return 1.0
	}
	pForward := float64(nf) / float64(n)
	if pForward <= 0 || pForward >= 1 {
		return 1.0
	}
	binom := distuv.Binomial{N: float64(n1), P: pForward}
	lower := binom.CDF(float64(n1f))
	upper := 1 - binom.CDF(float64(n1f)-1)
	p := 2 * math.Min(lower, upper)
	if p > 1 {
		p = 1
	}
	return p
}
