package bubble

import (
	"math/rand"
	"testing"

	check "gopkg.in/check.v1"
)

type RegionMaskSuite struct{}

var _ = check.Suite(&RegionMaskSuite{})

func (s *RegionMaskSuite) TestRegionMaskOverlap(c *check.C) {
	m := RegionMask{}
	for i := 0; i < 100000; i++ {
		start := rand.Int() % 100000
		end := rand.Int()%100000 + start
		if start <= 9000 && end >= 8000 ||
			start <= 8 && end >= 4 ||
			start <= 1 {
			continue
		}
		m.Add(start, end)
	}
	m.Add(1200, 3400)
	m.Add(5600, 7800)
	m.Add(5300, 7900)
	m.Add(9900, 9900)
	m.Add(1, 1)
	m.Add(0, 0)
	m.Add(2, 2)
	m.Add(9, 9)
	m.Freeze()

	c.Check(m.Overlaps(1, 1), check.Equals, true)
	c.Check(m.Overlaps(4, 8), check.Equals, false)
	c.Check(m.Overlaps(7800, 8000), check.Equals, true)
	c.Check(m.Overlaps(8000, 9000), check.Equals, false)
}

func (s *RegionMaskSuite) TestRegionMaskEmpty(c *check.C) {
	m := RegionMask{}
	m.Freeze()
	c.Check(m.Overlaps(0, 100), check.Equals, false)
}

func benchmarkRegionMask(b *testing.B, size int) {
	m := RegionMask{}
	for i := 0; i < size; i++ {
		start := rand.Int() % 10000000
		end := rand.Int()%300 + start
		m.Add(start, end)
	}
	m.Freeze()
	for n := 0; n < b.N; n++ {
		start := rand.Int() % 10000000
		end := rand.Int()%300 + start
		m.Overlaps(start, end)
	}
}

func BenchmarkRegionMask1000(b *testing.B)    { benchmarkRegionMask(b, 1000) }
func BenchmarkRegionMask10000(b *testing.B)   { benchmarkRegionMask(b, 10000) }
func BenchmarkRegionMask100000(b *testing.B)  { benchmarkRegionMask(b, 100000) }
func BenchmarkRegionMask1000000(b *testing.B) { benchmarkRegionMask(b, 1000000) }
