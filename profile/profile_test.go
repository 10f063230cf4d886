package profile

import (
	"testing"

	check "gopkg.in/check.v1"

	"github.com/ont-tools/marginphase/bubble"
	"github.com/ont-tools/marginphase/config"
	"github.com/ont-tools/marginphase/readio"
	"github.com/ont-tools/marginphase/rle"
)

func Test(t *testing.T) { check.TestingT(t) }

type ProfileSuite struct{}

var _ = check.Suite(&ProfileSuite{})

func (s *ProfileSuite) TestBuildSingleBubbleArgmaxIsZero(c *check.C) {
	r1 := &readio.Read{Name: "r1"}
	r2 := &readio.Read{Name: "r2"}
	g := &bubble.BubbleGraph{
		Bubbles: []*bubble.Bubble{
			{
				RefStart: 10, BubbleLength: 1,
				RefAllele: rle.NewString([]byte("A")),
				Alleles:   []*rle.String{rle.NewString([]byte("A")), rle.NewString([]byte("G"))},
				Reads: []bubble.ReadSubstring{
					{Read: r1}, {Read: r2},
				},
				AlleleReadSupports: [][]float64{
					{-1.0, -20.0}, // allele 0 (A): decisively supported by r1, not by r2
					{-20.0, -1.0}, // allele 1 (G): not supported by r1, decisively by r2
				},
			},
		},
	}
	g.ComputeOffsets()

	pseqs := Build(g, config.Default())
	c.Assert(pseqs, check.HasLen, 2)

	p1 := pseqs[r1]
	c.Check(p1.RefStart, check.Equals, 0)
	c.Check(p1.Length, check.Equals, 1)
	// With a decisive support gap the logsumexp total is the max to within
	// rounding, so the argmax allele (0, "A") quantizes to exactly 0.
	minVal := byte(255)
	for _, v := range p1.ProfileProbs {
		if v < minVal {
			minVal = v
		}
	}
	c.Check(minVal, check.Equals, byte(0))
	c.Check(p1.ProfileProbs[0], check.Equals, byte(0))
}

func (s *ProfileSuite) TestQuantizeClamps(c *check.C) {
	c.Check(quantize(-5), check.Equals, byte(0))
	c.Check(quantize(1000), check.Equals, byte(255))
	c.Check(quantize(3.4), check.Equals, byte(3))
}
