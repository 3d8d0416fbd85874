package distribution_test

import (
	"github.com/buoyantio/strest-echo/distribution"
	. "gopkg.in/check.v1"
)

type ParseTestSuite struct{}

var _ = Suite(&ParseTestSuite{})

func (*ParseTestSuite) TestGoodInput(c *C) {
	dist, err := distribution.Parse("50=10,99=100,999=200,100=1000")
	c.Assert(err, IsNil)
	c.Assert(dist[500], Equals, int64(10))
	c.Assert(dist[990], Equals, int64(100))
	c.Assert(dist[999], Equals, int64(200))
	c.Assert(dist[1000], Equals, int64(1000))

	// 95 was not provided so will not be in the map
	_, ok := dist[950]
	c.Assert(ok, Equals, false)
}

func (*ParseTestSuite) TestSmallKeys(c *C) {
	dist, err := distribution.Parse("10=10,50=50")
	c.Assert(err, IsNil)
	c.Assert(dist[100], Equals, int64(10))
	c.Assert(dist[500], Equals, int64(50))
	c.Assert(dist[1000], Equals, int64(50))
}

func (*ParseTestSuite) TestDefaultIsZero(c *C) {
	dist, err := distribution.Parse("100=0")
	c.Assert(err, IsNil)
	c.Assert(dist.Get(0), Equals, int64(0))
	c.Assert(dist.Get(730), Equals, int64(0))
	c.Assert(dist.Get(1000), Equals, int64(0))
}

func (*ParseTestSuite) TestInterpolatesParsed(c *C) {
	dist, err := distribution.Parse("50=10,100=100")
	c.Assert(err, IsNil)
	c.Assert(dist.Get(750), Equals, int64(55))
}

func (*ParseTestSuite) TestBadKey(c *C) {
	dist, err := distribution.Parse("50=10,99=100,999x=200,100=1000")
	c.Assert(dist, IsNil)
	c.Assert(err, NotNil)

	dist, err = distribution.Parse("x50=10")
	c.Assert(dist, IsNil)
	c.Assert(err, NotNil)
}

func (*ParseTestSuite) TestBadValues(c *C) {
	dist, err := distribution.Parse("50=10,99=100,999=200x,100=1000")
	c.Assert(dist, IsNil)
	c.Assert(err, NotNil)

	dist, err = distribution.Parse("50")
	c.Assert(dist, IsNil)
	c.Assert(err, NotNil)
}
