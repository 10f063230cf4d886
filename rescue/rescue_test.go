package rescue

import (
	"testing"

	check "gopkg.in/check.v1"

	"github.com/ont-tools/marginphase/align"
	"github.com/ont-tools/marginphase/bubble"
	"github.com/ont-tools/marginphase/config"
	"github.com/ont-tools/marginphase/phase"
	"github.com/ont-tools/marginphase/poa"
	"github.com/ont-tools/marginphase/readio"
	"github.com/ont-tools/marginphase/rle"
)

func Test(t *testing.T) { check.TestingT(t) }

type RescueSuite struct{}

var _ = check.Suite(&RescueSuite{})

func (s *RescueSuite) TestClassifyAssignsByLargerScore(c *check.C) {
	r1 := &readio.Read{Name: "r1"}
	acc1 := map[*readio.Read]float64{r1: -1.0}
	acc2 := map[*readio.Read]float64{r1: -5.0}
	out := classify(acc1, acc2, map[int]*readio.Read{0: r1})
	c.Check(out[r1], check.Equals, Hap1)
}

func (s *RescueSuite) TestClassifyTieIsUnclassified(c *check.C) {
	r1 := &readio.Read{Name: "r1"}
	acc1 := map[*readio.Read]float64{r1: -2.0}
	acc2 := map[*readio.Read]float64{r1: -2.0}
	out := classify(acc1, acc2, map[int]*readio.Read{0: r1})
	c.Check(out[r1], check.Equals, Unclassified)
}

func (s *RescueSuite) TestRescuePOAAssignsFilteredReads(c *check.C) {
	g := &bubble.BubbleGraph{Bubbles: []*bubble.Bubble{{
		RefStart: 0, BubbleLength: 2,
		RefAllele: rle.NewString([]byte("AA")),
		Alleles:   []*rle.String{rle.NewString([]byte("AA")), rle.NewString([]byte("GG"))},
	}}}
	gf := &phase.GenomeFragment{Haplotype1: []int{0}, Haplotype2: []int{1}}
	bubbles := FromGenomeFragment(g, gf, nil)
	c.Assert(bubbles, check.HasLen, 1)

	r1 := &readio.Read{Name: "agrees-with-hap1", RLE: rle.NewString([]byte("AA"))}
	p := &poa.Poa{Nodes: []*poa.Node{{}, {}}}
	reads := map[int]*readio.Read{0: r1}
	sm := align.NewStateMachine(0.95, 0.01, 0.2)
	out := RescuePOA(p, bubbles, reads, config.Default(), sm)
	c.Check(out[r1], check.Equals, Hap1)
}
