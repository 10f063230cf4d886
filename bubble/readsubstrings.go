// Per-read substring extraction over a POA interval.

package bubble

import (
	"sort"

	"github.com/ont-tools/marginphase/config"
	"github.com/ont-tools/marginphase/poa"
	"github.com/ont-tools/marginphase/readio"
)

// GetReadSubstrings extracts per-read substrings spanning POA interval
// [from,to).
func GetReadSubstrings(p *poa.Poa, reads map[int]*readio.Read, from, to int, shouldFilter bool, params config.Params) []ReadSubstring {
	nodeCount := len(p.Nodes)
	var out []ReadSubstring
	switch {
	case from == 0 && to >= nodeCount:
		for _, r := range reads {
			out = append(out, ReadSubstring{Read: r, Start: 0, Length: r.Length(), QualValue: r.AvgQuality(0, r.Length())})
		}
	case from == 0:
		for _, obs := range skipDupes(p.Nodes[to].Observations) {
			r := reads[obs.ReadNo]
			out = append(out, ReadSubstring{Read: r, Start: 0, Length: obs.Offset, QualValue: r.AvgQuality(0, obs.Offset)})
		}
	case to >= nodeCount:
		for _, obs := range skipDupes(p.Nodes[from].Observations) {
			r := reads[obs.ReadNo]
			length := r.Length() - obs.Offset
			out = append(out, ReadSubstring{Read: r, Start: obs.Offset, Length: length, QualValue: r.AvgQuality(obs.Offset, r.Length())})
		}
	default:
		fromObs := skipDupes(p.Nodes[from].Observations)
		toObs := skipDupes(p.Nodes[to].Observations)
		i, j := 0, 0
		for i < len(fromObs) && j < len(toObs) {
			a, b := fromObs[i], toObs[j]
			switch {
			case a.ReadNo == b.ReadNo:
				if b.Offset > a.Offset {
					r := reads[a.ReadNo]
					out = append(out, ReadSubstring{Read: r, Start: a.Offset, Length: b.Offset - a.Offset, QualValue: r.AvgQuality(a.Offset, b.Offset)})
				}
				i++
				j++
			case a.ReadNo < b.ReadNo:
				i++
			default:
				j++
			}
		}
	}
	if shouldFilter {
		out = filterReadSubstrings(out, params)
	}
	return out
}

// skipDupes sorts observations by read number ascending (stable) and keeps
// only the first (highest-weight, since the input is presorted by weight
// descending within a read) occurrence of each read.
func skipDupes(obs []poa.Observation) []poa.Observation {
	sorted := append([]poa.Observation(nil), obs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ReadNo < sorted[j].ReadNo })
	var out []poa.Observation
	for i, o := range sorted {
		if i > 0 && sorted[i-1].ReadNo == o.ReadNo {
			continue
		}
		out = append(out, o)
	}
	return out
}

// filterReadSubstrings sorts by QualValue descending and trims the tail
// while coverage exceeds the configured cap and the trailing entries have
// known (non -1) quality below the configured minimum.
func filterReadSubstrings(in []ReadSubstring, params config.Params) []ReadSubstring {
	sort.SliceStable(in, func(i, j int) bool { return in[i].QualValue > in[j].QualValue })
	for len(in) > params.FilterReadsWhileHaveAtLeastThisCoverage {
		tail := in[len(in)-1]
		if tail.QualValue != -1 && tail.QualValue < params.MinAvgBaseQuality {
			in = in[:len(in)-1]
			continue
		}
		break
	}
	return in
}
