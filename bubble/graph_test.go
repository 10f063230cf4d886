package bubble

import (
	"testing"

	check "gopkg.in/check.v1"

	"github.com/ont-tools/marginphase/align"
	"github.com/ont-tools/marginphase/config"
	"github.com/ont-tools/marginphase/poa"
	"github.com/ont-tools/marginphase/readio"
	"github.com/ont-tools/marginphase/rle"
	"github.com/ont-tools/marginphase/vcfmodel"
)

func Test(t *testing.T) { check.TestingT(t) }

type GraphSuite struct{}

var _ = check.Suite(&GraphSuite{})

// snpPoaReal builds a 12-node POA over a reference run of "A"s with a
// strong alternate "G" vote at node 6 from three quarters of the reads, flanked by
// uniform coverage elsewhere so AnchorMask treats the rest as anchor.
func snpPoaReal(nReads int) (*poa.Poa, map[int]*readio.Read) {
	const n = 12
	nodes := make([]*poa.Node, n)
	for i := range nodes {
		nodes[i] = &poa.Node{Base: 'A', RepeatCount: 1, BaseWeights: map[byte]float64{'A': float64(nReads)}}
	}
	reads := make(map[int]*readio.Read, nReads)
	for r := 0; r < nReads; r++ {
		seq := []byte("AAAAAAAAAAAA")
		if r < (nReads*3)/4 {
			seq[6] = 'G'
			nodes[6].BaseWeights['G']++
		}
		ones := make([]int, n)
		for i := range ones {
			ones[i] = 1
		}
		reads[r] = &readio.Read{Name: "r", RLE: rle.NewStringFromRuns(seq, ones)}
		for i := 0; i < n; i++ {
			nodes[i].Observations = append(nodes[i].Observations, poa.Observation{ReadNo: r, Offset: i, Weight: 1})
		}
	}
	return &poa.Poa{RefString: []byte("AAAAAAAAAAAA"), Nodes: nodes, MaxRepeatCount: 1}, reads
}

func (s *GraphSuite) TestBuildProducesBubbleAtVariantSite(c *check.C) {
	p, reads := snpPoaReal(20)
	params := config.Default()
	params.ColumnAnchorTrim = 1
	params.CandidateVariantWeight = 0.5
	params.UseReadAlleles = false
	sm := align.NewStateMachine(0.95, 0.01, 0.2)

	g := Build(p, reads, nil, params, false, sm, sm)
	c.Assert(len(g.Bubbles) >= 1, check.Equals, true)

	found := false
	for _, b := range g.Bubbles {
		if b.RefStart <= 6 && 6 < b.RefStart+b.BubbleLength {
			found = true
			c.Check(b.AlleleNo() >= 2, check.Equals, true)
		}
	}
	c.Check(found, check.Equals, true)
}

func (s *GraphSuite) TestBuildFromVCFOneBubblePerEntry(c *check.C) {
	p, reads := snpPoaReal(4)
	params := config.Default()
	sm := align.NewStateMachine(0.95, 0.01, 0.2)

	entries := []vcfmodel.VcfEntry{{RefSeqName: "chr1", RefPos: 6, Alleles: []string{"A", "G"}, GT1: 0, GT2: 1}}
	g := BuildFromVCF(p, reads, entries, params, sm, sm)
	c.Assert(g.Bubbles, check.HasLen, 1)
	c.Check(g.Bubbles[0].RefStart, check.Equals, 6)
	c.Check(g.Bubbles[0].AlleleNo(), check.Equals, 2)
}

// homozygousPoa is snpPoaReal with no alternate vote anywhere: pure
// reference evidence.
func homozygousPoa(nReads int) (*poa.Poa, map[int]*readio.Read) {
	const n = 12
	nodes := make([]*poa.Node, n)
	for i := range nodes {
		nodes[i] = &poa.Node{Base: 'A', RepeatCount: 1, BaseWeights: map[byte]float64{'A': float64(nReads)}}
	}
	reads := make(map[int]*readio.Read, nReads)
	ones := make([]int, n)
	for i := range ones {
		ones[i] = 1
	}
	for r := 0; r < nReads; r++ {
		reads[r] = &readio.Read{Name: "r", RLE: rle.NewStringFromRuns([]byte("AAAAAAAAAAAA"), ones)}
		for i := 0; i < n; i++ {
			nodes[i].Observations = append(nodes[i].Observations, poa.Observation{ReadNo: r, Offset: i, Weight: 1})
		}
	}
	return &poa.Poa{RefString: []byte("AAAAAAAAAAAA"), Nodes: nodes, MaxRepeatCount: 1}, reads
}

func (s *GraphSuite) TestHomozygousWindowHasNoBubbles(c *check.C) {
	p, reads := homozygousPoa(5)
	params := config.Default()
	params.ColumnAnchorTrim = 1
	params.CandidateVariantWeight = 0.5
	params.UseReadAlleles = false
	sm := align.NewStateMachine(0.95, 0.01, 0.2)

	g := Build(p, reads, nil, params, false, sm, sm)
	c.Check(g.Bubbles, check.HasLen, 0)
	c.Check(g.TotalAlleles, check.Equals, 0)
}

func (s *GraphSuite) TestCandidateEnumerationOverflowAndRetry(c *check.C) {
	p, _ := snpPoaReal(20)
	for _, n := range p.Nodes {
		n.BaseWeights['C'] = 50
		n.BaseWeights['G'] = 50
		n.BaseWeights['T'] = 50
	}
	weights := make([]float64, len(p.Nodes))
	for i := range weights {
		weights[i] = 1
	}
	_, ok := CandidateConsensusStrings(p, 1, 11, weights, 1.0, 4)
	c.Check(ok, check.Equals, false)

	// a large enough weight adjustment leaves only the reference base per
	// position and brings the product back under the cap
	cands, ok := CandidateConsensusStrings(p, 1, 11, weights, 100.0, 4)
	c.Assert(ok, check.Equals, true)
	c.Assert(len(cands) >= 1, check.Equals, true)
	c.Check(cands[0], check.Equals, "AAAAAAAAAA")
}

func (s *GraphSuite) TestBuildTerminatesUnderTightCap(c *check.C) {
	p, reads := snpPoaReal(20)
	params := config.Default()
	params.ColumnAnchorTrim = 1
	params.CandidateVariantWeight = 0.5
	params.UseReadAlleles = false
	params.MaxConsensusStrings = 1
	sm := align.NewStateMachine(0.95, 0.01, 0.2)

	g := Build(p, reads, nil, params, false, sm, sm)
	for _, b := range g.Bubbles {
		c.Check(b.RefAlleleIndex() >= 0, check.Equals, true)
	}
}

func (s *GraphSuite) TestWholeReadExtraction(c *check.C) {
	p, reads := snpPoaReal(5)
	subs := GetReadSubstrings(p, reads, 0, len(p.Nodes), false, config.Default())
	c.Assert(subs, check.HasLen, 5)
	for _, rs := range subs {
		c.Check(rs.Start, check.Equals, 0)
		c.Check(rs.Length, check.Equals, rs.Read.Length())
	}
}

func (s *GraphSuite) TestFilterKeepsUnknownQuality(c *check.C) {
	p, reads := snpPoaReal(6)
	params := config.Default()
	params.FilterReadsWhileHaveAtLeastThisCoverage = 2
	params.MinAvgBaseQuality = 30
	subs := GetReadSubstrings(p, reads, 0, len(p.Nodes), true, params)
	c.Check(subs, check.HasLen, 6)
}

func (s *GraphSuite) TestComputeOffsetsPrefixSum(c *check.C) {
	g := &BubbleGraph{Bubbles: []*Bubble{
		{Alleles: []*rle.String{rle.NewString([]byte("A")), rle.NewString([]byte("G"))}},
		{Alleles: []*rle.String{rle.NewString([]byte("C")), rle.NewString([]byte("T")), rle.NewString([]byte("TT"))}},
	}}
	g.ComputeOffsets()
	c.Check(g.Bubbles[0].AlleleOffset, check.Equals, 0)
	c.Check(g.Bubbles[1].AlleleOffset, check.Equals, 2)
	c.Check(g.TotalAlleles, check.Equals, 5)
}
