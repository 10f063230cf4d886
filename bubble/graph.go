// Bubble-graph construction: walk the anchor mask and assemble one Bubble
// per variable interval.

package bubble

import (
	"math"
	"sort"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"

	"github.com/ont-tools/marginphase/align"
	"github.com/ont-tools/marginphase/config"
	"github.com/ont-tools/marginphase/poa"
	"github.com/ont-tools/marginphase/readio"
	"github.com/ont-tools/marginphase/rle"
	"github.com/ont-tools/marginphase/vcfmodel"
)

// Build walks p's anchor mask and emits one Bubble for every non-trivial
// gap between consecutive anchors, scoring every read substring against
// every candidate allele with the forward-probability pair-HMM.
// phasing selects which of the two read-allele-vs-consensus toggles
// (UseReadAllelesInPhasing vs UseReadAlleles) governs allele enumeration.
// vcfEntries may be nil, in which case the POA-derived variant mask is used
// unmodified.
func Build(p *poa.Poa, reads map[int]*readio.Read, vcfEntries []vcfmodel.VcfEntry, params config.Params, phasing bool, smForward, smReverse *align.StateMachine) *BubbleGraph {
	useReadAlleles := params.UseReadAlleles
	if phasing {
		useReadAlleles = params.UseReadAllelesInPhasing
	}
	candidateWeights := CandidateWeights(p, params)
	variant := VariantMask(p, candidateWeights)
	if vcfEntries != nil {
		variant = ApplyVCFOverride(variant, vcfEntries)
	}
	anchors := AnchorMask(variant, params.ColumnAnchorTrim)

	ref := refRLEString(p)

	var bubbles []*Bubble
	pAnchor := 0
	for i := 1; i < len(p.Nodes); i++ {
		if !anchors[i] {
			continue
		}
		if i-pAnchor != 1 {
			if b := buildOneBubble(p, reads, ref, pAnchor, i, variant, candidateWeights, params, useReadAlleles, smForward, smReverse); b != nil {
				bubbles = append(bubbles, b)
			}
		}
		pAnchor = i
	}

	g := &BubbleGraph{RefString: ref, Bubbles: bubbles}
	g.ComputeOffsets()
	return g
}

// BuildFromVCF builds a bubble graph with exactly one bubble per VCF
// entry, at the entry's called position, instead of walking an anchor
// mask. Each entry's own Alleles list (index 0 is REF) becomes the bubble's
// candidate alleles directly; no POA-weight threshold enumeration runs.
// Entries are sorted by position and checked against a RegionMask of
// bubbles already placed, so out-of-order input is tolerated: an entry
// overlapping an earlier one is skipped and logged.
func BuildFromVCF(p *poa.Poa, reads map[int]*readio.Read, vcfEntries []vcfmodel.VcfEntry, params config.Params, smForward, smReverse *align.StateMachine) *BubbleGraph {
	ref := refRLEString(p)
	sorted := append([]vcfmodel.VcfEntry(nil), vcfEntries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RefPos < sorted[j].RefPos })

	placed := &RegionMask{}
	placed.Freeze()

	var bubbles []*Bubble
	for _, e := range sorted {
		if len(e.Alleles) < 2 || e.RefPos < 0 || e.RefPos+1 > len(p.Nodes) {
			continue
		}
		if placed.Overlaps(e.RefPos, e.RefPos) {
			log.WithFields(log.Fields{"refSeqName": e.RefSeqName, "refPos": e.RefPos}).
				Debug("skipping VCF entry overlapping an already-placed bubble")
			continue
		}
		readSubstrings := GetReadSubstrings(p, reads, e.RefPos, e.RefPos+1, true, params)
		if len(readSubstrings) == 0 {
			continue
		}

		b := &Bubble{
			RefStart:               e.RefPos,
			BubbleLength:           1,
			RefAllele:              rle.NewString([]byte(e.Alleles[0])),
			VariantPositionOffsets: []int{0},
		}
		for _, a := range e.Alleles {
			b.Alleles = append(b.Alleles, rle.NewString([]byte(a)))
		}
		b.Reads = make([]ReadSubstring, len(readSubstrings))
		copy(b.Reads, readSubstrings)

		scoreBubbleReads(b, smForward, smReverse)
		bubbles = append(bubbles, b)
		placed.Add(e.RefPos, e.RefPos)
		placed.Freeze()
	}

	g := &BubbleGraph{RefString: ref, Bubbles: bubbles}
	g.ComputeOffsets()
	return g
}

// refRLEString builds the RLE reference that bubble coordinates are
// expressed against, one run per POA node: run i's base is p.RefString[i]
// and its repeat count is p.Nodes[i]'s consensus RepeatCount, so node index
// and run index always agree even when two adjacent nodes share a base.
func refRLEString(p *poa.Poa) *rle.String {
	counts := make([]int, len(p.Nodes))
	for i, n := range p.Nodes {
		c := n.RepeatCount
		if c < 1 {
			c = 1
		}
		counts[i] = c
	}
	return rle.NewStringFromRuns(p.RefString, counts)
}

func buildOneBubble(p *poa.Poa, reads map[int]*readio.Read, ref *rle.String, pAnchor, i int, variant []bool, candidateWeights []float64, params config.Params, useReadAlleles bool, smForward, smReverse *align.StateMachine) *Bubble {
	readSubstrings := GetReadSubstrings(p, reads, pAnchor+1, i, true, params)
	if len(readSubstrings) == 0 {
		return nil
	}

	var alleles []string
	if useReadAlleles {
		alleles = candidateAllelesFromReadSubstrings(readSubstrings)
	} else {
		weightAdjustment := 1.0
		for {
			cands, ok := CandidateConsensusStrings(p, pAnchor+1, i, candidateWeights, weightAdjustment, params.MaxConsensusStrings)
			if ok {
				alleles = cands
				break
			}
			weightAdjustment *= 1.5
		}
	}

	refAllele := ref.Substring(pAnchor+1, i)
	refExpanded := string(refAllele.Expand())
	seenRef := false
	for _, a := range alleles {
		if a == refExpanded {
			seenRef = true
			break
		}
	}
	if !seenRef {
		alleles = append(alleles, refExpanded)
	}
	if len(alleles) <= 1 {
		return nil
	}

	b := &Bubble{
		RefStart:     pAnchor + 1,
		BubbleLength: i - 1 - pAnchor,
		RefAllele:    refAllele,
	}
	for vp := 0; vp < b.BubbleLength; vp++ {
		if variant[b.RefStart+vp] {
			b.VariantPositionOffsets = append(b.VariantPositionOffsets, vp)
		}
	}
	for _, a := range alleles {
		b.Alleles = append(b.Alleles, rle.NewString([]byte(a)))
	}
	b.Reads = make([]ReadSubstring, len(readSubstrings))
	copy(b.Reads, readSubstrings)

	scoreBubbleReads(b, smForward, smReverse)
	return b
}

// candidateAllelesFromReadSubstrings groups read substrings by their
// collapsed RLE base sequence and returns one consensus expanded allele per
// group.
func candidateAllelesFromReadSubstrings(substrings []ReadSubstring) []string {
	groups := map[string][]*rle.String{}
	var order []string
	for _, rs := range substrings {
		sub := rs.Substring()
		key := sub.StringKey()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], sub)
	}
	var out []string
	for _, key := range order {
		out = append(out, string(consensusRunCounts(groups[key]).Expand()))
	}
	return out
}

// consensusRunCounts averages repeat counts across a set of RLE strings
// that share the same collapsed base sequence, rounding to the nearest
// count and clamping to [1,255].
func consensusRunCounts(strs []*rle.String) *rle.String {
	r := strs[0]
	counts := make([]int, len(r.Bases))
	for j := range r.Bases {
		var sum int
		for _, s := range strs {
			sum += s.Counts[j]
		}
		avg := int(math.Round(float64(sum) / float64(len(strs))))
		if avg == 0 {
			avg = 1
		}
		if avg > 255 {
			avg = 255
		}
		counts[j] = avg
	}
	return rle.NewStringFromRuns(r.Bases, counts)
}

// scoreBubbleReads fills b.AlleleReadSupports with the forward-probability
// score of every read substring against every allele, caching by expanded
// RLE sequence so reads sharing an identical substring (common in
// high-coverage homopolymer runs) are only scored once. The cache is
// bubble-local and discarded when scoring ends.
func scoreBubbleReads(b *Bubble, smForward, smReverse *align.StateMachine) {
	alleleExpanded := make([][]byte, len(b.Alleles))
	for j, a := range b.Alleles {
		alleleExpanded[j] = a.Expand()
	}

	b.AlleleReadSupports = make([][]float64, len(b.Alleles))
	for j := range b.AlleleReadSupports {
		b.AlleleReadSupports[j] = make([]float64, len(b.Reads))
	}

	type cacheKey [blake2b.Size256]byte
	cache := map[cacheKey][]float64{}

	for k, rs := range b.Reads {
		readSeq := rs.Substring().Expand()
		key := blake2b.Sum256(readSeq)

		if scores, ok := cache[key]; ok {
			for j := range b.Alleles {
				b.AlleleReadSupports[j][k] = scores[j]
			}
			continue
		}

		sm := smForward
		if rs.Read != nil && rs.Read.Strand {
			sm = smReverse
		}
		scores := make([]float64, len(b.Alleles))
		for j, allele := range alleleExpanded {
			scores[j] = align.ForwardProbability(allele, readSeq, nil, sm)
		}
		cache[key] = scores
		for j := range b.Alleles {
			b.AlleleReadSupports[j][k] = scores[j]
		}
	}
}
