// Anchor/variant classification over POA columns.

package bubble

import (
	log "github.com/sirupsen/logrus"

	"github.com/ont-tools/marginphase/config"
	"github.com/ont-tools/marginphase/poa"
	"github.com/ont-tools/marginphase/vcfmodel"
)

const anchorWindowSize = 100

// CandidateWeights computes the per-position candidate-variant weight
// threshold from a sliding-window average of POA coverage.
func CandidateWeights(p *poa.Poa, params config.Params) []float64 {
	n := len(p.Nodes)
	weights := make([]float64, n)
	if n == 0 {
		return weights
	}
	if n <= anchorWindowSize {
		var sum float64
		for i := 0; i < n; i++ {
			sum += p.Coverage(i)
		}
		avg := sum / float64(n)
		for i := range weights {
			weights[i] = avg * params.CandidateVariantWeight
		}
		return weights
	}
	half := anchorWindowSize / 2
	interior := make([]float64, n)
	for i := half; i < n-half; i++ {
		var sum float64
		for j := i - half; j < i+half; j++ {
			sum += p.Coverage(j)
		}
		interior[i] = sum / float64(anchorWindowSize)
	}
	for i := 0; i < half; i++ {
		interior[i] = interior[half]
	}
	for i := n - half; i < n; i++ {
		interior[i] = interior[n-half-1]
	}
	for i := range weights {
		weights[i] = interior[i] * params.CandidateVariantWeight
	}
	return weights
}

// VariantMask flags POA positions exceeding their local candidate-weight
// threshold.
func VariantMask(p *poa.Poa, weights []float64) []bool {
	n := len(p.Nodes)
	mask := make([]bool, n)
	for i, node := range p.Nodes {
		w := weights[i]
		flagged := false
		for b, wt := range node.BaseWeights {
			if b != node.Base && wt > w {
				flagged = true
			}
		}
		for rc, wt := range node.RepeatCountWeights {
			if rc != node.RepeatCount && wt > w {
				flagged = true
			}
		}
		for _, ins := range node.Inserts {
			if ins.Weight > w {
				flagged = true
			}
		}
		if flagged {
			mask[i] = true
		}
		for _, del := range node.Deletes {
			if del.Weight > w {
				mask[i] = true
				for k := i + 1; k <= i+del.Length && k < n; k++ {
					mask[k] = true
				}
			}
		}
	}
	return mask
}

// AnchorMask returns the complement of VariantMask dilated by
// params.ColumnAnchorTrim positions on each side.
func AnchorMask(variant []bool, trim int) []bool {
	n := len(variant)
	dilated := make([]bool, n)
	for i, v := range variant {
		if !v {
			continue
		}
		lo, hi := i-trim, i+trim
		if lo < 0 {
			lo = 0
		}
		if hi >= n {
			hi = n - 1
		}
		for k := lo; k <= hi; k++ {
			dilated[k] = true
		}
	}
	anchors := make([]bool, n)
	for i := range anchors {
		anchors[i] = !dilated[i]
	}
	return anchors
}

// ApplyVCFOverride replaces the variant mask with positions named by vcf
// entries, logging a true/false-positive/negative tally against the
// POA-derived mask.
func ApplyVCFOverride(variant []bool, vcfEntries []vcfmodel.VcfEntry) []bool {
	n := len(variant)
	vcfMask := make([]bool, n)
	for _, e := range vcfEntries {
		if e.RefPos >= 0 && e.RefPos < n {
			vcfMask[e.RefPos] = true
		}
	}
	var tp, fp, fn int
	for i := range variant {
		switch {
		case variant[i] && vcfMask[i]:
			tp++
		case !variant[i] && vcfMask[i]:
			fp++
		case variant[i] && !vcfMask[i]:
			fn++
		}
	}
	log.WithFields(log.Fields{"truePositive": tp, "falsePositive": fp, "falseNegative": fn}).
		Debug("replaced POA variant mask with VCF-guided mask")
	return vcfMask
}
