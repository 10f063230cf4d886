package phase

import (
	"testing"

	check "gopkg.in/check.v1"

	"github.com/ont-tools/marginphase/bubble"
	"github.com/ont-tools/marginphase/config"
	"github.com/ont-tools/marginphase/profile"
	"github.com/ont-tools/marginphase/readio"
	"github.com/ont-tools/marginphase/rle"
)

func Test(t *testing.T) { check.TestingT(t) }

type PhaseSuite struct{}

var _ = check.Suite(&PhaseSuite{})

// singleSNPGraph builds a one-bubble graph with two alleles where half the
// reads strongly support "A" and half strongly support "G".
func singleSNPGraph(nReads int) (*bubble.BubbleGraph, []*readio.Read) {
	reads := make([]*readio.Read, nReads)
	b := &bubble.Bubble{
		RefStart: 10, BubbleLength: 1,
		RefAllele: rle.NewString([]byte("A")),
		Alleles:   []*rle.String{rle.NewString([]byte("A")), rle.NewString([]byte("G"))},
	}
	b.AlleleReadSupports = [][]float64{make([]float64, nReads), make([]float64, nReads)}
	for i := 0; i < nReads; i++ {
		reads[i] = &readio.Read{Name: "r"}
		b.Reads = append(b.Reads, bubble.ReadSubstring{Read: reads[i]})
		if i%2 == 0 {
			b.AlleleReadSupports[0][i], b.AlleleReadSupports[1][i] = -0.1, -8.0
		} else {
			b.AlleleReadSupports[0][i], b.AlleleReadSupports[1][i] = -8.0, -0.1
		}
	}
	g := &bubble.BubbleGraph{Bubbles: []*bubble.Bubble{b}}
	g.ComputeOffsets()
	return g, reads
}

func (s *PhaseSuite) TestSingleBubbleProducesLengthOneFragment(c *check.C) {
	g, _ := singleSNPGraph(10)
	pseqs := profile.Build(g, config.Default())
	gf := Run(g, pseqs, config.Default())
	c.Check(gf.Length, check.Equals, 1)
	c.Check(gf.Haplotype1[0] != gf.Haplotype2[0], check.Equals, true)
}

func (s *PhaseSuite) TestReadsPartitionExclusively(c *check.C) {
	g, _ := singleSNPGraph(12)
	pseqs := profile.Build(g, config.Default())
	gf := Run(g, pseqs, config.Default())
	for _, p := range pseqs {
		_, in1 := gf.Reads1[p]
		_, in2 := gf.Reads2[p]
		c.Check(in1 != in2, check.Equals, true)
	}
}

func (s *PhaseSuite) TestCoverageCapRescuesExcludedReads(c *check.C) {
	g, _ := singleSNPGraph(20)
	pseqs := profile.Build(g, config.Default())
	params := config.Default()
	params.MaxCoverageDepth = 10
	gf := Run(g, pseqs, params)
	total := len(gf.Reads1) + len(gf.Reads2)
	c.Check(total <= len(pseqs), check.Equals, true)
	c.Check(total >= params.MaxCoverageDepth, check.Equals, true)
}
