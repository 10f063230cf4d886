package lpc

import (
	"math"
	"testing"

	check "gopkg.in/check.v1"

	"github.com/ont-tools/marginphase/vcfmodel"
)

func Test(t *testing.T) { check.TestingT(t) }

type LpcSuite struct{}

var _ = check.Suite(&LpcSuite{})

func pv(pos int, gt1, gt2 int, ps string) *vcfmodel.PhasedVariant {
	return &vcfmodel.PhasedVariant{
		RefSeqName: "chr1", RefPos: pos,
		Alleles: []string{"A", "G"}, GT1: gt1, GT2: gt2, PhaseSet: ps,
	}
}

func (s *LpcSuite) TestSwitchCorrectnessPerfectAgreement(c *check.C) {
	query := []*vcfmodel.PhasedVariant{pv(10, 0, 1, "1"), pv(20, 0, 1, "1"), pv(30, 1, 0, "1")}
	truth := []*vcfmodel.PhasedVariant{pv(10, 0, 1, "1"), pv(20, 0, 1, "1"), pv(30, 1, 0, "1")}
	correctness, n := SwitchCorrectness(query, truth)
	c.Check(n, check.Equals, int64(3))
	c.Check(correctness, check.Equals, 1.0)
}

func (s *LpcSuite) TestSwitchCorrectnessOneSwitchError(c *check.C) {
	// query's third site flips relative phase (gt1/gt2 swapped) versus truth.
	query := []*vcfmodel.PhasedVariant{pv(10, 0, 1, "1"), pv(20, 0, 1, "1"), pv(30, 0, 1, "1")}
	truth := []*vcfmodel.PhasedVariant{pv(10, 0, 1, "1"), pv(20, 0, 1, "1"), pv(30, 1, 0, "1")}
	correctness, n := SwitchCorrectness(query, truth)
	c.Check(n, check.Equals, int64(3))
	c.Check(correctness, check.Equals, 0.5)
}

func (s *LpcSuite) TestSwitchCorrectnessNewPhaseSetAlwaysCorrect(c *check.C) {
	query := []*vcfmodel.PhasedVariant{pv(10, 0, 1, "1"), pv(20, 1, 0, "2")}
	truth := []*vcfmodel.PhasedVariant{pv(10, 0, 1, "1"), pv(20, 0, 1, "2")}
	correctness, n := SwitchCorrectness(query, truth)
	c.Check(n, check.Equals, int64(2))
	c.Check(correctness, check.Equals, 1.0)
}

func (s *LpcSuite) TestCorrectnessMatchesSwitchCorrectnessAtZeroDecay(c *check.C) {
	query := []*vcfmodel.PhasedVariant{pv(10, 0, 1, "1"), pv(20, 0, 1, "1"), pv(30, 0, 1, "1")}
	truth := []*vcfmodel.PhasedVariant{pv(10, 0, 1, "1"), pv(20, 0, 1, "1"), pv(30, 1, 0, "1")}
	want, wantN := SwitchCorrectness(query, truth)
	got, gotN, err := Correctness(query, truth, 0)
	c.Assert(err, check.IsNil)
	c.Check(gotN, check.Equals, wantN)
	c.Check(got, check.Equals, want)
}

func (s *LpcSuite) TestCorrectnessPerfectAgreementIsOne(c *check.C) {
	query := []*vcfmodel.PhasedVariant{pv(10, 0, 1, "1"), pv(20, 0, 1, "1"), pv(30, 1, 0, "1")}
	truth := []*vcfmodel.PhasedVariant{pv(10, 0, 1, "1"), pv(20, 0, 1, "1"), pv(30, 1, 0, "1")}
	got, n, err := Correctness(query, truth, 0.9)
	c.Assert(err, check.IsNil)
	c.Check(n, check.Equals, int64(3))
	c.Check(got > 0.999, check.Equals, true)
}

func (s *LpcSuite) TestCorrectnessRejectsOutOfRangeDecay(c *check.C) {
	_, _, err := Correctness(nil, nil, 1.5)
	c.Assert(err, check.NotNil)
	_, _, err = Correctness(nil, nil, -0.1)
	c.Assert(err, check.NotNil)
}

func (s *LpcSuite) TestCorrectnessNoSharedSites(c *check.C) {
	query := []*vcfmodel.PhasedVariant{pv(10, 0, 1, "1")}
	truth := []*vcfmodel.PhasedVariant{pv(999, 0, 1, "1")}
	got, n, err := Correctness(query, truth, 0.5)
	c.Assert(err, check.IsNil)
	c.Check(n, check.Equals, int64(0))
	c.Check(math.IsNaN(got), check.Equals, false)
	c.Check(got, check.Equals, 0.0)
}

func (s *LpcSuite) TestCorrectnessTwoPhaseSetsPerfectAgreement(c *check.C) {
	var query, truth []*vcfmodel.PhasedVariant
	for i := 0; i < 20; i++ {
		ps := "A"
		if i >= 10 {
			ps = "B"
		}
		gt1, gt2 := 0, 1
		if i%3 == 0 {
			gt1, gt2 = 1, 0
		}
		query = append(query, pv(10*i, gt1, gt2, ps))
		truth = append(truth, pv(10*i, gt1, gt2, ps))
	}
	for _, d := range []float64{0, 0.3, 0.7, 1} {
		got, n, err := Correctness(query, truth, d)
		c.Assert(err, check.IsNil)
		c.Check(n, check.Equals, int64(20))
		c.Check(math.Abs(got-1) < 1e-9, check.Equals, true, check.Commentf("decay %g got %g", d, got))
	}
}

func (s *LpcSuite) TestCorrectnessPolarityAgnostic(c *check.C) {
	var query, truth []*vcfmodel.PhasedVariant
	for i := 0; i < 10; i++ {
		query = append(query, pv(10*i, 0, 1, "1"))
		truth = append(truth, pv(10*i, 1, 0, "1")) // every phase flipped
	}
	for _, d := range []float64{0, 0.5, 1} {
		got, n, err := Correctness(query, truth, d)
		c.Assert(err, check.IsNil)
		c.Check(n, check.Equals, int64(10))
		c.Check(math.Abs(got-1) < 1e-9, check.Equals, true, check.Commentf("decay %g got %g", d, got))
	}
}

func (s *LpcSuite) TestCorrectnessSymmetricInArguments(c *check.C) {
	var query, truth []*vcfmodel.PhasedVariant
	for i := 0; i < 12; i++ {
		gt1, gt2 := 0, 1
		if i == 5 || i == 9 {
			gt1, gt2 = 1, 0
		}
		query = append(query, pv(10*i, gt1, gt2, "1"))
		truth = append(truth, pv(10*i, 0, 1, "1"))
	}
	for _, d := range []float64{0, 0.4, 0.8, 1} {
		a, _, err := Correctness(query, truth, d)
		c.Assert(err, check.IsNil)
		b, _, err := Correctness(truth, query, d)
		c.Assert(err, check.IsNil)
		c.Check(math.Abs(a-b) < 1e-9, check.Equals, true, check.Commentf("decay %g: %g vs %g", d, a, b))
	}
}

func (s *LpcSuite) TestSwitchErrorLimitTwentyVariants(c *check.C) {
	// one phase flip at variant index 10 of 20, same phase set
	// throughout; the d=0 limit is (n-2)/(n-1).
	var query, truth []*vcfmodel.PhasedVariant
	for i := 0; i < 20; i++ {
		gt1, gt2 := 0, 1
		if i >= 10 {
			gt1, gt2 = 1, 0
		}
		query = append(query, pv(10*i, gt1, gt2, "1"))
		truth = append(truth, pv(10*i, 0, 1, "1"))
	}
	got, n, err := Correctness(query, truth, 0)
	c.Assert(err, check.IsNil)
	c.Check(n, check.Equals, int64(20))
	c.Check(math.Abs(got-18.0/19.0) < 1e-9, check.Equals, true)
}

func (s *LpcSuite) TestCorrectnessAtDecayOneIsPairwiseConcordance(c *check.C) {
	// polarity flags T T F T: 3 of 6 unordered pairs concordant.
	polarities := []bool{true, true, false, true}
	var query, truth []*vcfmodel.PhasedVariant
	for i, inPhase := range polarities {
		gt1, gt2 := 0, 1
		if !inPhase {
			gt1, gt2 = 1, 0
		}
		query = append(query, pv(10*i, gt1, gt2, "1"))
		truth = append(truth, pv(10*i, 0, 1, "1"))
	}
	got, n, err := Correctness(query, truth, 1)
	c.Assert(err, check.IsNil)
	c.Check(n, check.Equals, int64(4))
	c.Check(math.Abs(got-0.5) < 1e-9, check.Equals, true)
}
