package config

import (
	"strings"
	"testing"

	check "gopkg.in/check.v1"
)

func Test(t *testing.T) { check.TestingT(t) }

type ConfigSuite struct{}

var _ = check.Suite(&ConfigSuite{})

func (s *ConfigSuite) TestDefaultsValidate(c *check.C) {
	c.Check(Default().Validate(), check.IsNil)
}

func (s *ConfigSuite) TestLoadOverride(c *check.C) {
	p, err := Load(strings.NewReader("decayRate: 0.5\n"))
	c.Assert(err, check.IsNil)
	c.Check(p.DecayRate, check.Equals, 0.5)
	c.Check(p.MaxPartitionsPerColumn, check.Equals, Default().MaxPartitionsPerColumn)
}

func (s *ConfigSuite) TestLoadBadDecayRate(c *check.C) {
	_, err := Load(strings.NewReader("decayRate: 1.5\n"))
	c.Assert(err, check.NotNil)
}
