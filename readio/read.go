// Package readio models an aligned read as consumed by the bubble-graph and
// phasing core: a minimal stand-in for the alignment-ingestion collaborator
// (BAM/CRAM parsing, cigar handling, quality decoding) that is out of scope
// for this engine.
package readio

import "github.com/ont-tools/marginphase/rle"

// Read is a single aligned read, reduced to the fields the phasing core
// needs: an RLE-encoded sequence (PoaNode coordinates are RLE-run
// coordinates, so a read's substrings are always extracted along this same
// axis), a per-run mean base quality, a name, and a strand flag.
type Read struct {
	Name    string
	Strand  bool // true = reverse strand
	RLE     *rle.String
	RunQual []float64 // per-run mean phred quality, parallel to RLE.Bases; nil if unknown
}

// AvgQuality returns the mean of the per-run qualities over run range
// [start,end), or -1 if qualities are not known for this read; -1 means
// "unknown, keep" to the coverage filter.
func (r *Read) AvgQuality(start, end int) float64 {
	if r.RunQual == nil {
		return -1
	}
	if start < 0 {
		start = 0
	}
	if end > len(r.RunQual) {
		end = len(r.RunQual)
	}
	if start >= end {
		return -1
	}
	var total float64
	for i := start; i < end; i++ {
		total += r.RunQual[i]
	}
	return total / float64(end-start)
}

// Substring returns the RLE run range [start,end) of this read.
func (r *Read) Substring(start, end int) *rle.String {
	if start < 0 {
		start = 0
	}
	if end > r.RLE.Length() {
		end = r.RLE.Length()
	}
	if start >= end {
		return rle.NewStringFromRuns(nil, nil)
	}
	return r.RLE.Substring(start, end)
}

// Length returns the number of RLE runs in this read.
func (r *Read) Length() int {
	return r.RLE.Length()
}
