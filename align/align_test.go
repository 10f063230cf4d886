package align

import (
	"math"
	"testing"

	check "gopkg.in/check.v1"
)

func Test(t *testing.T) { check.TestingT(t) }

type AlignSuite struct{}

var _ = check.Suite(&AlignSuite{})

func (s *AlignSuite) TestLogSumExp(c *check.C) {
	got := LogSumExp(math.Log(0.2), math.Log(0.3))
	c.Check(math.Abs(math.Exp(got)-0.5) < 1e-9, check.Equals, true)
}

func (s *AlignSuite) TestLogSumExpAllNegInf(c *check.C) {
	got := LogSumExp(math.Inf(-1), math.Inf(-1))
	c.Check(math.IsInf(got, -1), check.Equals, true)
}

func (s *AlignSuite) TestForwardProbabilityIdentical(c *check.C) {
	sm := NewStateMachine(0.95, 0.01, 0.2)
	a := []byte("ACGTACGT")
	p := ForwardProbability(a, a, nil, sm)
	c.Check(p < 0, check.Equals, true)
	mismatched := ForwardProbability(a, []byte("TGCATGCA"), nil, sm)
	c.Check(p > mismatched, check.Equals, true)
}
