// Package bubble builds the bubble graph: the linear sequence of variant
// sites derived from a POA column structure, each carrying its candidate
// alleles and the per-read-per-allele forward log-probabilities that
// support them.
package bubble

import (
	"github.com/ont-tools/marginphase/readio"
	"github.com/ont-tools/marginphase/rle"
)

// ReadSubstring is a read's contribution to a bubble.
type ReadSubstring struct {
	Read      *readio.Read // non-owning back-reference
	Start     int          // RLE-run offset within Read.RLE
	Length    int
	Override  *rle.String // pre-materialized substring, used by the VCF-only builder
	QualValue float64     // mean(phred quality) over [Start,Start+Length), or -1
}

// Substring returns this read-substring's RLE bases.
func (rs *ReadSubstring) Substring() *rle.String {
	if rs.Override != nil {
		return rs.Override
	}
	return rs.Read.Substring(rs.Start, rs.Start+rs.Length)
}

// Bubble is a single variant site along the reference window.
type Bubble struct {
	RefStart               int
	BubbleLength           int
	RefAllele              *rle.String
	Alleles                []*rle.String
	Reads                  []ReadSubstring
	AlleleReadSupports     [][]float64 // [allele][read], row-major by allele
	AlleleOffset           int
	VariantPositionOffsets []int
}

// AlleleNo returns the number of candidate alleles at this bubble.
func (b *Bubble) AlleleNo() int { return len(b.Alleles) }

// ReadNo returns the number of reads attached to this bubble.
func (b *Bubble) ReadNo() int { return len(b.Reads) }

// RefAlleleIndex returns the index of the reference allele among b.Alleles,
// or -1 if somehow absent (an invariant violation).
func (b *Bubble) RefAlleleIndex() int {
	for i, a := range b.Alleles {
		if a.Equal(b.RefAllele) {
			return i
		}
	}
	return -1
}

// HighestLikelihoodAllele returns the index of the allele with the greatest
// summed log-likelihood across all reads attached to the bubble.
func (b *Bubble) HighestLikelihoodAllele() int {
	best, bestScore := 0, negInf
	for a := range b.Alleles {
		var total float64
		for r := range b.Reads {
			total += b.AlleleReadSupports[a][r]
		}
		if total > bestScore {
			bestScore, best = total, a
		}
	}
	return best
}

const negInf = -1e300

// BubbleGraph owns an ordered, non-overlapping array of Bubble over a
// reference window.
type BubbleGraph struct {
	RefString    *rle.String // borrowed from the POA; not deep-copied
	Bubbles      []*Bubble
	TotalAlleles int
}

// ComputeOffsets fills AlleleOffset as a prefix sum and TotalAlleles as
// the final sum.
func (g *BubbleGraph) ComputeOffsets() {
	offset := 0
	for _, b := range g.Bubbles {
		b.AlleleOffset = offset
		offset += b.AlleleNo()
	}
	g.TotalAlleles = offset
}
