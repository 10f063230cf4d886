// Package profile builds the per-read allele-profile sequences that the
// phasing HMM consumes: for each read, a quantized, normalized per-bubble,
// per-allele log-odds vector. The profile is the bubble graph's
// allele-support matrix reorganized per-read and packed into bytes.
package profile

import (
	"math"

	"github.com/ont-tools/marginphase/align"
	"github.com/ont-tools/marginphase/bubble"
	"github.com/ont-tools/marginphase/config"
	"github.com/ont-tools/marginphase/readio"
)

// ProfileSeq is one read's quantized per-bubble, per-allele profile.
// RefStart/Length are bubble-graph-relative (first bubble index, count
// of bubbles spanned); AlleleOffset is the global allele-index base at
// RefStart.
type ProfileSeq struct {
	Read         *readio.Read
	RefStart     int
	Length       int
	AlleleOffset int
	ProfileProbs []byte
}

// Build converts every read attached to the bubble graph into a
// ProfileSeq, keyed by Read identity.
func Build(g *bubble.BubbleGraph, params config.Params) map[*readio.Read]*ProfileSeq {
	first := map[*readio.Read]int{}
	last := map[*readio.Read]int{}
	for bi, b := range g.Bubbles {
		for ri := range b.Reads {
			r := b.Reads[ri].Read
			if _, ok := first[r]; !ok {
				first[r] = bi
			}
			last[r] = bi
		}
	}

	out := make(map[*readio.Read]*ProfileSeq, len(first))
	for r, f := range first {
		l := last[r]
		pseq := &ProfileSeq{
			Read:         r,
			RefStart:     f,
			Length:       l - f + 1,
			AlleleOffset: g.Bubbles[f].AlleleOffset,
		}
		totalAlleles := 0
		for bi := f; bi <= l; bi++ {
			totalAlleles += g.Bubbles[bi].AlleleNo()
		}
		pseq.ProfileProbs = make([]byte, totalAlleles)
		out[r] = pseq
	}

	for _, b := range g.Bubbles {
		for ri, rs := range b.Reads {
			r := rs.Read
			pseq := out[r]
			strip := b.AlleleOffset - pseq.AlleleOffset
			alleleLogProbs := make([]float64, b.AlleleNo())
			for a := 0; a < b.AlleleNo(); a++ {
				alleleLogProbs[a] = b.AlleleReadSupports[a][ri]
			}
			total := align.LogSumExp(alleleLogProbs...)
			for a, lp := range alleleLogProbs {
				var v float64
				if math.IsInf(total, -1) {
					v = 0
				} else {
					v = params.ProfileProbScalar * (total - lp)
				}
				pseq.ProfileProbs[strip+a] = quantize(v)
			}
		}
	}
	return out
}

// quantize clamps a non-negative scaled negative-log-probability to a
// byte.
func quantize(v float64) byte {
	r := math.Round(v)
	if r < 0 {
		return 0
	}
	if r > 255 {
		return 255
	}
	return byte(r)
}

// AlleleLogOdds returns the dequantized log-odds (negative of the quantized
// value, undoing the PROFILE_PROB_SCALAR scaling) for allele index a within
// this profile sequence's bubble span strip starting at byteOffset.
func (p *ProfileSeq) AlleleLogOdds(byteOffset, a int, scalar float64) float64 {
	if scalar == 0 {
		return 0
	}
	return -float64(p.ProfileProbs[byteOffset+a]) / scalar
}
