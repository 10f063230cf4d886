// Package hgvs renders the edits between a bubble's reference allele and a
// chosen haplotype allele as HGVS-style variant descriptions, used by the
// phasing-record writer to label each heterozygous site in human-readable
// form. The edit script comes from diffmatchpatch; alleles here are
// bubble-scale expanded strings (tens of bases), so no diff timeout is
// needed.
package hgvs

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Edit is one contiguous change between a reference allele and a chosen
// allele: the replaced reference bases and their replacement, at a 1-based
// position in expanded coordinates. Ref is empty for a pure insertion, Alt
// for a pure deletion.
type Edit struct {
	Position int
	Ref      string
	Alt      string
}

// String renders the edit in HGVS notation (g.-style numbering without the
// prefix, since the caller supplies whatever coordinate base it reports in).
func (e Edit) String() string {
	switch {
	case len(e.Ref) == 1 && len(e.Alt) == 1:
		return fmt.Sprintf("%d%s>%s", e.Position, e.Ref, e.Alt)
	case len(e.Alt) == 0 && len(e.Ref) == 1:
		return fmt.Sprintf("%ddel", e.Position)
	case len(e.Alt) == 0:
		return fmt.Sprintf("%d_%ddel", e.Position, e.Position+len(e.Ref)-1)
	case len(e.Ref) == 0:
		return fmt.Sprintf("%d_%dins%s", e.Position-1, e.Position, e.Alt)
	case len(e.Ref) == 1:
		return fmt.Sprintf("%ddelins%s", e.Position, e.Alt)
	default:
		return fmt.Sprintf("%d_%ddelins%s", e.Position, e.Position+len(e.Ref)-1, e.Alt)
	}
}

// DiffAlleles computes the edits turning refAllele into allele. Positions
// are 1-based and shifted by offset, so passing the bubble's expanded
// window offset yields window coordinates directly.
func DiffAlleles(refAllele, allele []byte, offset int) []Edit {
	if string(refAllele) == string(allele) {
		return nil
	}
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	diffs := mergeRuns(dmp.DiffCleanupEfficiency(dmp.DiffMain(string(refAllele), string(allele), false)))

	pos := offset + 1
	var edits []Edit
	for i := 0; i < len(diffs); {
		for ; i < len(diffs) && diffs[i].Type == diffmatchpatch.DiffEqual; i++ {
			pos += len(diffs[i].Text)
		}
		if i >= len(diffs) {
			break
		}
		e := Edit{Position: pos}
		for ; i < len(diffs) && diffs[i].Type != diffmatchpatch.DiffEqual; i++ {
			if diffs[i].Type == diffmatchpatch.DiffDelete {
				e.Ref += diffs[i].Text
			} else {
				e.Alt += diffs[i].Text
			}
		}
		pos += len(e.Ref)
		edits = append(edits, e)
	}
	return edits
}

// Describe renders DiffAlleles as a single semicolon-joined string, or "="
// when the chosen allele is the reference allele.
func Describe(refAllele, allele []byte, offset int) string {
	edits := DiffAlleles(refAllele, allele, offset)
	if len(edits) == 0 {
		return "="
	}
	parts := make([]string, len(edits))
	for i, e := range edits {
		parts[i] = e.String()
	}
	return strings.Join(parts, ";")
}

// mergeRuns coalesces consecutive diff entries of the same type, which
// DiffCleanupEfficiency can leave behind on short inputs.
func mergeRuns(in []diffmatchpatch.Diff) []diffmatchpatch.Diff {
	out := make([]diffmatchpatch.Diff, 0, len(in))
	for _, d := range in {
		if n := len(out); n > 0 && out[n-1].Type == d.Type {
			out[n-1].Text += d.Text
			continue
		}
		out = append(out, d)
	}
	return out
}
