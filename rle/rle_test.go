package rle

import (
	"testing"

	check "gopkg.in/check.v1"
)

func Test(t *testing.T) { check.TestingT(t) }

type RleSuite struct{}

var _ = check.Suite(&RleSuite{})

func (s *RleSuite) TestRoundTrip(c *check.C) {
	orig := []byte("AAACCGTTTT")
	r := NewString(orig)
	c.Check(r.Expand(), check.DeepEquals, orig)
	c.Check(r.Length(), check.Equals, 4)
	c.Check(r.ExpandedLength(), check.Equals, len(orig))
}

func (s *RleSuite) TestEmpty(c *check.C) {
	r := NewString(nil)
	c.Check(r.Expand(), check.HasLen, 0)
	c.Check(r.Length(), check.Equals, 0)
}

func (s *RleSuite) TestKeys(c *check.C) {
	a := NewString([]byte("AAAC"))
	b := NewString([]byte("AC"))
	c.Check(a.StringKey(), check.Equals, b.StringKey())
	c.Check(a.ExpandedStringKey() == b.ExpandedStringKey(), check.Equals, false)
}

func (s *RleSuite) TestEqual(c *check.C) {
	a := NewString([]byte("AAACC"))
	b := NewString([]byte("AAACC"))
	d := NewString([]byte("AACC"))
	c.Check(a.Equal(b), check.Equals, true)
	c.Check(a.Equal(d), check.Equals, false)
}

func (s *RleSuite) TestSubstring(c *check.C) {
	r := NewString([]byte("AACCGGTT"))
	sub := r.Substring(1, 3) // run indices: C run and G run
	c.Check(sub.Expand(), check.DeepEquals, []byte("CCGG"))
}
