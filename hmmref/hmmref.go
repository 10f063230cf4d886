// Package hmmref translates a bubble graph into the phasing HMM's
// reference site table: per-site allele counts, offsets, allele priors,
// and substitution matrices.
package hmmref

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ont-tools/marginphase/bubble"
	"github.com/ont-tools/marginphase/config"
)

// Site is one bubble's HMM column: allele count, its global allele-index
// offset, an allele-prior vector (initialized uniform), and a dense
// substitution-probability matrix.
type Site struct {
	AlleleNumber         int
	AlleleOffset         int
	AllelePriorLogProbs  []float64
	SubstitutionLogProbs *mat.Dense // alleleNo x alleleNo, diagonal 0
}

// Reference is an ordered array of Site, one per bubble.
type Reference struct {
	Sites []Site
}

// Build constructs a Reference from a bubble graph,: each
// bubble becomes a Site with a uniform allele prior and a substitution
// matrix whose off-diagonal entries are round(-log(hetSubstitutionProbability)
// * PROFILE_PROB_SCALAR).
func Build(g *bubble.BubbleGraph, params config.Params) *Reference {
	offDiag := math.Round(-math.Log(params.HetSubstitutionProbability) * params.ProfileProbScalar)

	ref := &Reference{Sites: make([]Site, len(g.Bubbles))}
	for i, b := range g.Bubbles {
		n := b.AlleleNo()
		prior := make([]float64, n)
		uniform := -math.Log(float64(n))
		for k := range prior {
			prior[k] = uniform
		}
		sub := mat.NewDense(n, n, nil)
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				if r != c {
					sub.Set(r, c, offDiag)
				}
			}
		}
		ref.Sites[i] = Site{
			AlleleNumber:         n,
			AlleleOffset:         b.AlleleOffset,
			AllelePriorLogProbs:  prior,
			SubstitutionLogProbs: sub,
		}
	}
	return ref
}
