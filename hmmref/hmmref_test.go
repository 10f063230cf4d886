package hmmref

import (
	"math"
	"testing"

	check "gopkg.in/check.v1"

	"github.com/ont-tools/marginphase/bubble"
	"github.com/ont-tools/marginphase/config"
	"github.com/ont-tools/marginphase/rle"
)

func Test(t *testing.T) { check.TestingT(t) }

type HmmRefSuite struct{}

var _ = check.Suite(&HmmRefSuite{})

func (s *HmmRefSuite) TestBuildDiagonalZero(c *check.C) {
	g := &bubble.BubbleGraph{Bubbles: []*bubble.Bubble{
		{RefAllele: rle.NewString([]byte("A")), Alleles: []*rle.String{rle.NewString([]byte("A")), rle.NewString([]byte("G"))}},
	}}
	g.ComputeOffsets()
	ref := Build(g, config.Default())
	c.Assert(ref.Sites, check.HasLen, 1)
	site := ref.Sites[0]
	c.Check(site.AlleleNumber, check.Equals, 2)
	c.Check(site.SubstitutionLogProbs.At(0, 0), check.Equals, 0.0)
	c.Check(site.SubstitutionLogProbs.At(0, 1) > 0, check.Equals, true)
	c.Check(math.Abs(site.AllelePriorLogProbs[0]-site.AllelePriorLogProbs[1]) < 1e-9, check.Equals, true)
}
