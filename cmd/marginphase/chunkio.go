package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ont-tools/marginphase/poa"
	"github.com/ont-tools/marginphase/readio"
	"github.com/ont-tools/marginphase/rle"
	"github.com/ont-tools/marginphase/vcfmodel"
)

// chunkDTO is the on-the-wire JSON shape of a single reference-window
// chunk: the POA, its reads, and an optional VCF guide, as produced by an
// upstream alignment/consensus stage. It is a thin serialization of
// poa.Poa/readio.Read/vcfmodel.VcfEntry, not a new data model.
type chunkDTO struct {
	RefName  string     `json:"refName"`
	RefStart int        `json:"refStart"`
	Poa      poaDTO     `json:"poa"`
	Reads    []readDTO  `json:"reads"`
	VCF      []vcfDTO   `json:"vcfEntries,omitempty"`
}

type poaDTO struct {
	RefString      string   `json:"refString"`
	MaxRepeatCount int      `json:"maxRepeatCount"`
	Nodes          []nodeDTO `json:"nodes"`
}

type nodeDTO struct {
	Base               string             `json:"base"`
	RepeatCount        int                `json:"repeatCount"`
	BaseWeights        map[string]float64 `json:"baseWeights"`
	RepeatCountWeights map[string]float64 `json:"repeatCountWeights"`
	Inserts            []insertDTO        `json:"inserts,omitempty"`
	Deletes            []deleteDTO        `json:"deletes,omitempty"`
	Observations       []obsDTO           `json:"observations,omitempty"`
}

type insertDTO struct {
	Seq    string  `json:"seq"`
	Weight float64 `json:"weight"`
}

type deleteDTO struct {
	Length int     `json:"length"`
	Weight float64 `json:"weight"`
}

type obsDTO struct {
	ReadNo int     `json:"readNo"`
	Offset int     `json:"offset"`
	Weight float64 `json:"weight"`
}

type readDTO struct {
	Name    string `json:"name"`
	Strand  bool   `json:"reverseStrand"`
	Bases   string `json:"bases"`           // fully expanded (non-RLE) sequence
	Quals   []int  `json:"quals,omitempty"` // phred, parallel to Bases; omitted if unknown
}

type vcfDTO struct {
	RefPos  int      `json:"refPos"`
	Quality float64  `json:"quality"`
	Alleles []string `json:"alleles"`
	GT1     int      `json:"gt1"`
	GT2     int      `json:"gt2"`
}

// decodeChunks reads a JSON array of chunkDTO from r.
func decodeChunks(r io.Reader) ([]chunkDTO, error) {
	var chunks []chunkDTO
	dec := json.NewDecoder(r)
	if err := dec.Decode(&chunks); err != nil {
		return nil, fmt.Errorf("decoding chunk input: %w", err)
	}
	return chunks, nil
}

// toPoa converts a poaDTO into the poa.Poa the bubble builder consumes.
func (d poaDTO) toPoa() *poa.Poa {
	p := &poa.Poa{RefString: []byte(d.RefString), MaxRepeatCount: d.MaxRepeatCount}
	p.Nodes = make([]*poa.Node, len(d.Nodes))
	for i, n := range d.Nodes {
		node := &poa.Node{
			RepeatCount:        n.RepeatCount,
			BaseWeights:        map[byte]float64{},
			RepeatCountWeights: map[int]float64{},
		}
		if len(n.Base) > 0 {
			node.Base = n.Base[0]
		}
		for b, w := range n.BaseWeights {
			if len(b) > 0 {
				node.BaseWeights[b[0]] = w
			}
		}
		for rc, w := range n.RepeatCountWeights {
			var k int
			fmt.Sscanf(rc, "%d", &k)
			node.RepeatCountWeights[k] = w
		}
		for _, ins := range n.Inserts {
			node.Inserts = append(node.Inserts, poa.Insert{Seq: []byte(ins.Seq), Weight: ins.Weight})
		}
		for _, del := range n.Deletes {
			node.Deletes = append(node.Deletes, poa.Delete{Length: del.Length, Weight: del.Weight})
		}
		for _, o := range n.Observations {
			node.Observations = append(node.Observations, poa.Observation{ReadNo: o.ReadNo, Offset: o.Offset, Weight: o.Weight})
		}
		p.Nodes[i] = node
	}
	return p
}

// toReads converts the chunk's read list into the reads map the builder
// consumes (keyed by observation ReadNo, the index the substring extractor
// joins against), deriving per-run mean quality from the expanded per-base
// quality array when present.
func (d chunkDTO) toReads() map[int]*readio.Read {
	out := make(map[int]*readio.Read, len(d.Reads))
	for i, r := range d.Reads {
		rleSeq := rle.NewString([]byte(r.Bases))
		out[i] = &readio.Read{
			Name:    r.Name,
			Strand:  r.Strand,
			RLE:     rleSeq,
			RunQual: runQualities(rleSeq, r.Quals),
		}
	}
	return out
}

// runQualities averages per-base phred qualities within each RLE run,
// producing the per-run mean quality readio.Read.RunQual expects. Returns
// nil if quals is empty.
func runQualities(s *rle.String, quals []int) []float64 {
	if len(quals) == 0 {
		return nil
	}
	out := make([]float64, len(s.Counts))
	pos := 0
	for i, c := range s.Counts {
		var sum float64
		n := 0
		for k := 0; k < c && pos < len(quals); k++ {
			sum += float64(quals[pos])
			pos++
			n++
		}
		if n > 0 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

func (d chunkDTO) toVCFEntries() []vcfmodel.VcfEntry {
	if len(d.VCF) == 0 {
		return nil
	}
	out := make([]vcfmodel.VcfEntry, len(d.VCF))
	for i, v := range d.VCF {
		out[i] = vcfmodel.VcfEntry{
			RefSeqName: d.RefName,
			RefPos:     v.RefPos,
			Quality:    v.Quality,
			Alleles:    v.Alleles,
			GT1:        v.GT1,
			GT2:        v.GT2,
		}
	}
	return out
}
