package concurrency

import (
	"errors"
	"sync/atomic"
	"testing"

	check "gopkg.in/check.v1"
)

func Test(t *testing.T) { check.TestingT(t) }

type ThrottleSuite struct{}

var _ = check.Suite(&ThrottleSuite{})

func (s *ThrottleSuite) TestThrottleLimitsConcurrency(c *check.C) {
	th := &Throttle{Max: 2}
	var cur, max int32
	for i := 0; i < 8; i++ {
		th.Acquire()
		go func() {
			defer th.Release()
			n := atomic.AddInt32(&cur, 1)
			for {
				m := atomic.LoadInt32(&max)
				if n <= m || atomic.CompareAndSwapInt32(&max, m, n) {
					break
				}
			}
			atomic.AddInt32(&cur, -1)
		}()
	}
	c.Check(th.Wait(), check.IsNil)
	c.Check(atomic.LoadInt32(&max) <= 2, check.Equals, true)
}

func (s *ThrottleSuite) TestThrottleLatchesFirstError(c *check.C) {
	th := &Throttle{Max: 4}
	th.Acquire()
	th.Report(errors.New("first"))
	th.Report(errors.New("second"))
	th.Release()
	c.Check(th.Wait(), check.ErrorMatches, "first")
}
