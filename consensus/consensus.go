// Package consensus stitches a chosen allele per bubble into a new
// consensus sequence, maintaining a POA-to-consensus coordinate map.
package consensus

import (
	"fmt"

	"github.com/ont-tools/marginphase/bubble"
	"github.com/ont-tools/marginphase/rle"
)

// ErrLengthMismatch is returned when the stitched consensus length does not
// match the tracked running offset (an invariant violation in the
// coordinate bookkeeping).
var ErrLengthMismatch = fmt.Errorf("consensus: stitched length did not match tracked offset")

// Result is the stitched consensus output: the expanded consensus bytes and
// the POA-to-consensus coordinate map.
type Result struct {
	Consensus        []byte
	PoaToConsensus    []int // len == len(refString); -1 where unmapped
	UseRunLengthEncoding bool
}

// Stitch walks bg's bubbles in order, choosing consensusPath[i] as the
// allele at bubble i, emitting the reference substring between bubbles and
// the chosen allele's expanded string at each bubble, and tracking the
// PoaToConsensus coordinate map. Under RLE two rules apply: a chosen
// allele's leading base matching the previously emitted base collapses in
// the re-RLE, shifting coordinates by one; and only reference-equal alleles
// map positions 1-to-1, others leave their span unmapped.
func Stitch(bg *bubble.BubbleGraph, consensusPath []int, useRLE bool) (*Result, error) {
	refString := bg.RefString
	refLen := refString.Length()
	poaToConsensus := make([]int, refLen)
	for i := range poaToConsensus {
		poaToConsensus[i] = -1
	}

	var out []byte
	var previousBase byte = '-'
	// j tracks the consensus offset in the same units the final length
	// check uses: RLE runs when useRLE, expanded bytes otherwise.
	j, k := 0, 0

	// mapRun records ref run k's consensus position and advances j past it.
	mapRun := func() {
		poaToConsensus[k] = j
		if useRLE {
			j++
		} else {
			j += refString.Counts[k]
		}
		k++
	}

	for i, b := range bg.Bubbles {
		if k < b.RefStart {
			prefix := refString.Substring(k, b.RefStart)
			out = append(out, prefix.Expand()...)

			if useRLE && len(prefix.Bases) > 0 && prefix.Bases[0] == previousBase {
				k++
			}
			for k < b.RefStart {
				mapRun()
			}
			if len(prefix.Bases) > 0 {
				previousBase = prefix.Bases[len(prefix.Bases)-1]
			}
		}

		chosen := b.Alleles[consensusPath[i]]
		out = append(out, chosen.Expand()...)

		if chosen.Equal(b.RefAllele) {
			if useRLE && len(chosen.Bases) > 0 && chosen.Bases[0] == previousBase {
				k++
			}
			end := b.RefStart + b.RefAllele.Length()
			for k < end {
				mapRun()
			}
		} else {
			k += b.RefAllele.Length()
			if useRLE {
				j += chosen.Length()
				if len(chosen.Bases) > 0 && chosen.Bases[0] == previousBase {
					j--
				}
			} else {
				j += chosen.ExpandedLength()
			}
		}
		if len(chosen.Bases) > 0 {
			previousBase = chosen.Bases[len(chosen.Bases)-1]
		}
	}

	if k < refLen {
		tail := refString.Substring(k, refLen)
		out = append(out, tail.Expand()...)
		if useRLE && len(tail.Bases) > 0 && tail.Bases[0] == previousBase {
			k++
		}
		for k < refLen {
			mapRun()
		}
	}

	result := &Result{Consensus: out, PoaToConsensus: poaToConsensus, UseRunLengthEncoding: useRLE}
	if useRLE {
		reRLE := rle.NewString(out)
		if reRLE.Length() != j {
			return result, fmt.Errorf("%w: got %d runs, tracked %d", ErrLengthMismatch, reRLE.Length(), j)
		}
	} else if len(out) != j {
		return result, fmt.Errorf("%w: got %d expanded bytes, tracked %d", ErrLengthMismatch, len(out), j)
	}
	return result, nil
}

// ReferencePath returns the consensus path that reproduces the reference
// exactly: consensusPath[i] is the index of bubble i's reference allele.
func ReferencePath(bg *bubble.BubbleGraph) []int {
	path := make([]int, len(bg.Bubbles))
	for i, b := range bg.Bubbles {
		path[i] = b.RefAlleleIndex()
	}
	return path
}
