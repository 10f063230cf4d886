// The read-partitioning HMM: a column-indexed hidden Markov model whose
// hidden state at bubble bi is a bipartition of the reads currently
// spanning it into the two haplotype sides. Columns are entered and left
// as reads start and end along the window, so the state space is pruned at
// every column to the top-scoring params.MaxPartitionsPerColumn surviving
// partitions, a bounded beam search over the cross product of partitions
// scored by summed log-likelihood.

package phase

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/ont-tools/marginphase/bubble"
	"github.com/ont-tools/marginphase/config"
	"github.com/ont-tools/marginphase/hmmref"
	"github.com/ont-tools/marginphase/profile"
)

// spans reports whether bubble bubbleIdx lies within p's bubble span.
func spans(p *profile.ProfileSeq, bubbleIdx int) bool {
	return bubbleIdx >= p.RefStart && bubbleIdx < p.RefStart+p.Length
}

// touchedColumns returns the sorted, deduplicated bubble indices any of
// reads spans -- one strand's (or the fused set's) tiling-path columns.
func touchedColumns(reads []*profile.ProfileSeq) []int {
	seen := map[int]bool{}
	for _, p := range reads {
		for bi := p.RefStart; bi < p.RefStart+p.Length; bi++ {
			seen[bi] = true
		}
	}
	out := make([]int, 0, len(seen))
	for bi := range seen {
		out = append(out, bi)
	}
	sort.Ints(out)
	return out
}

// sortedReads orders reads by bubble span so that entering/continuing/
// leaving sets are well defined as the HMM sweeps columns; ties (reads
// sharing a span) keep their incoming relative order, which need not be
// deterministic across runs -- every downstream reduction is order
// insensitive.
func sortedReads(reads []*profile.ProfileSeq) []*profile.ProfileSeq {
	out := append([]*profile.ProfileSeq(nil), reads...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RefStart != out[j].RefStart {
			return out[i].RefStart < out[j].RefStart
		}
		return out[i].AlleleOffset < out[j].AlleleOffset
	})
	return out
}

func activeReadsAt(reads []*profile.ProfileSeq, bi int) []*profile.ProfileSeq {
	var out []*profile.ProfileSeq
	for _, p := range reads {
		if spans(p, bi) {
			out = append(out, p)
		}
	}
	return out
}

// diffReads returns the reads in active that are not in prev: the reads
// entering the HMM at the current column.
func diffReads(active, prev []*profile.ProfileSeq) []*profile.ProfileSeq {
	in := make(map[*profile.ProfileSeq]bool, len(prev))
	for _, p := range prev {
		in[p] = true
	}
	var out []*profile.ProfileSeq
	for _, p := range active {
		if !in[p] {
			out = append(out, p)
		}
	}
	return out
}

// hmmState is one surviving beam entry at a column: the bipartition
// assignment of every read active at that column, its cumulative
// sum-product log-likelihood (alpha, consumed by the backward pass for
// forward-backward posteriors) and its cumulative max-product
// log-likelihood with a back-pointer (for Viterbi traceback).
type hmmState struct {
	assign      map[*profile.ProfileSeq]bool
	activeReads []*profile.ProfileSeq
	emission    float64
	alpha       float64
	viterbi     float64
	back        *hmmState
}

func stateKey(active []*profile.ProfileSeq, assign map[*profile.ProfileSeq]bool) string {
	key := make([]byte, len(active))
	for i, p := range active {
		if assign[p] {
			key[i] = 1
		}
	}
	return string(key)
}

// sideColumnScore is the log-likelihood of one side's currently assigned
// reads at bubble b. With includeAncestorPrior set it marginalizes over
// the site's candidate true allele, combining hmmref's allele prior with
// every read's observed-allele likelihood run through the substitution
// matrix; these are the ancestor substitution probabilities the final
// fused pass turns back on. With it unset (the per-strand passes) each
// read is scored independently against its own best allele, with no shared
// ancestral-allele assumption yet.
func sideColumnScore(b *bubble.Bubble, site hmmref.Site, reads []*profile.ProfileSeq, params config.Params, includeAncestorPrior bool) float64 {
	n := b.AlleleNo()
	if !includeAncestorPrior {
		total := 0.0
		for _, p := range reads {
			strip := b.AlleleOffset - p.AlleleOffset
			best := math.Inf(-1)
			for a := 0; a < n; a++ {
				if v := p.AlleleLogOdds(strip, a, params.ProfileProbScalar); v > best {
					best = v
				}
			}
			total += best
		}
		return total
	}

	perTrue := append([]float64(nil), site.AllelePriorLogProbs...)
	obs := make([]float64, n)
	mixed := make([]float64, n)
	for _, p := range reads {
		strip := b.AlleleOffset - p.AlleleOffset
		for a := 0; a < n; a++ {
			obs[a] = p.AlleleLogOdds(strip, a, params.ProfileProbScalar)
		}
		for t := 0; t < n; t++ {
			// SubstitutionLogProbs stores quantized costs on the same
			// PROFILE_PROB_SCALAR scale as ProfileSeq.ProfileProbs (0 on
			// the diagonal, -log(hetSubstitutionProbability)*scalar off
			// it); dequantize the same way AlleleLogOdds does before
			// adding it as a real log-probability.
			row := site.SubstitutionLogProbs.RawRowView(t)
			for o := 0; o < n; o++ {
				mixed[o] = obs[o] - row[o]/params.ProfileProbScalar
			}
			perTrue[t] += floats.LogSumExp(mixed)
		}
	}
	return floats.LogSumExp(perTrue)
}

// columnEmission scores a candidate bipartition assign of active reads at
// bubble bi: the sum of both sides' independent log-likelihoods.
func columnEmission(b *bubble.Bubble, site hmmref.Site, active []*profile.ProfileSeq, assign map[*profile.ProfileSeq]bool, params config.Params, includeAncestorPrior bool) float64 {
	var sideFalse, sideTrue []*profile.ProfileSeq
	for _, p := range active {
		if assign[p] {
			sideTrue = append(sideTrue, p)
		} else {
			sideFalse = append(sideFalse, p)
		}
	}
	return sideColumnScore(b, site, sideFalse, params, includeAncestorPrior) +
		sideColumnScore(b, site, sideTrue, params, includeAncestorPrior)
}

// statesCompatible reports whether next (at the following column) is a
// valid successor of prev: every read active at next's column that was
// also active at prev's column must carry the same side assignment --
// reads already in flight cannot switch sides mid-window, only reads
// newly entering are free to pick either one (per-column
// partition bit-vector path).
func statesCompatible(prev, next *hmmState) bool {
	for _, p := range next.activeReads {
		if pv, ok := prev.assign[p]; ok && next.assign[p] != pv {
			return false
		}
	}
	return true
}

// runPartitionHMM runs the beam-pruned forward-backward HMM described
// above over reads, for one bubble-graph range. It returns the
// Viterbi-traceback partition (the per-column bit-vector path), the
// columns the HMM actually
// covered, and -- aligned with those columns -- each column's
// forward-backward posterior confidence in the traceback's own bit
// assignment there.
func runPartitionHMM(g *bubble.BubbleGraph, ref *hmmref.Reference, reads []*profile.ProfileSeq, params config.Params, includeAncestorPrior bool) (map[*profile.ProfileSeq]bool, []int, []float64) {
	partition := map[*profile.ProfileSeq]bool{}
	cols := touchedColumns(reads)
	if len(cols) == 0 {
		return partition, cols, nil
	}

	beamWidth := params.MaxPartitionsPerColumn
	if beamWidth <= 0 {
		beamWidth = 1
	}

	ordered := sortedReads(reads)
	colStates := make([][]*hmmState, len(cols))
	beam := []*hmmState{{assign: map[*profile.ProfileSeq]bool{}}}
	var prevActive []*profile.ProfileSeq

	for ci, bi := range cols {
		active := activeReadsAt(ordered, bi)
		b := g.Bubbles[bi]
		site := ref.Sites[bi]
		entering := diffReads(active, prevActive)

		grouped := map[string]*hmmState{}
		for _, st := range beam {
			base := map[*profile.ProfileSeq]bool{}
			for _, p := range active {
				if v, ok := st.assign[p]; ok {
					base[p] = v
				}
			}
			for mask := 0; mask < 1<<uint(len(entering)); mask++ {
				cand := map[*profile.ProfileSeq]bool{}
				for p, v := range base {
					cand[p] = v
				}
				for k, p := range entering {
					cand[p] = mask&(1<<uint(k)) != 0
				}
				emission := columnEmission(b, site, active, cand, params, includeAncestorPrior)
				key := stateKey(active, cand)
				alpha := st.alpha + emission
				viterbi := st.viterbi + emission
				if existing, ok := grouped[key]; ok {
					existing.alpha = floats.LogSumExp([]float64{existing.alpha, alpha})
					if viterbi > existing.viterbi {
						existing.viterbi, existing.back = viterbi, st
					}
				} else {
					grouped[key] = &hmmState{
						assign: cand, activeReads: active, emission: emission,
						alpha: alpha, viterbi: viterbi, back: st,
					}
				}
			}
		}

		pruned := make([]*hmmState, 0, len(grouped))
		for _, st := range grouped {
			pruned = append(pruned, st)
		}
		sort.Slice(pruned, func(i, j int) bool { return pruned[i].viterbi > pruned[j].viterbi })
		if len(pruned) > beamWidth {
			pruned = pruned[:beamWidth]
		}
		beam = pruned
		colStates[ci] = pruned
		prevActive = active
	}

	if len(beam) == 0 {
		return partition, cols, nil
	}
	best := beam[0]
	for _, st := range beam[1:] {
		if st.viterbi > best.viterbi {
			best = st
		}
	}
	for st := best; st != nil; st = st.back {
		for p, v := range st.assign {
			if _, ok := partition[p]; !ok {
				partition[p] = v
			}
		}
	}

	confidence := forwardBackwardConfidence(colStates, best)
	return partition, cols, confidence
}

// forwardBackwardConfidence runs the backward pass over the beam-retained
// states recorded by the forward pass above, then reports, per column,
// the posterior probability mass (alpha+beta, normalized by the total
// log-likelihood at the final column) that agrees with the state the
// Viterbi traceback actually picked there.
func forwardBackwardConfidence(colStates [][]*hmmState, best *hmmState) []float64 {
	n := len(colStates)
	confidence := make([]float64, n)
	if n == 0 || best == nil {
		return confidence
	}

	pathStates := make([]*hmmState, n)
	cur := best
	for ci := n - 1; ci >= 0 && cur != nil; ci-- {
		pathStates[ci] = cur
		cur = cur.back
	}

	beta := make([]map[*hmmState]float64, n)
	beta[n-1] = map[*hmmState]float64{}
	for _, st := range colStates[n-1] {
		beta[n-1][st] = 0
	}
	for ci := n - 2; ci >= 0; ci-- {
		beta[ci] = map[*hmmState]float64{}
		for _, st := range colStates[ci] {
			var contribs []float64
			for _, next := range colStates[ci+1] {
				if statesCompatible(st, next) {
					contribs = append(contribs, next.emission+beta[ci+1][next])
				}
			}
			if len(contribs) == 0 {
				beta[ci][st] = math.Inf(-1)
			} else {
				beta[ci][st] = floats.LogSumExp(contribs)
			}
		}
	}

	lastAlphas := make([]float64, 0, len(colStates[n-1]))
	for _, st := range colStates[n-1] {
		lastAlphas = append(lastAlphas, st.alpha)
	}
	logZ := floats.LogSumExp(lastAlphas)

	for ci := 0; ci < n; ci++ {
		if pathStates[ci] == nil || math.IsInf(logZ, -1) {
			confidence[ci] = 1
			continue
		}
		post := pathStates[ci].alpha + beta[ci][pathStates[ci]]
		confidence[ci] = math.Exp(post - logZ)
	}
	return confidence
}

// canonicalizePolarity resolves the final fused HMM's otherwise arbitrary
// true/false bipartition labeling against the two strand HMMs' own
// independently traced-back partitions: their labeling anchors the fused
// pass's symmetric output so hap1/hap2 names something stable rather than
// whichever side the fused beam happened to number first.
// It flips final in place when the strands agree more with the opposite
// labeling than with the one the fused pass produced.
func canonicalizePolarity(final, fwd, rev map[*profile.ProfileSeq]bool) {
	agree, disagree := 0, 0
	for p, side := range fwd {
		if f, ok := final[p]; ok {
			if f == side {
				agree++
			} else {
				disagree++
			}
		}
	}
	for p, side := range rev {
		if f, ok := final[p]; ok {
			if f == side {
				agree++
			} else {
				disagree++
			}
		}
	}
	if disagree > agree {
		for p, side := range final {
			final[p] = !side
		}
	}
}
