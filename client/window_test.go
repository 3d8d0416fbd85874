package client

import (
	"context"
	"time"

	"github.com/pkg/errors"
	. "gopkg.in/check.v1"
)

type WindowTestSuite struct{}

var _ = Suite(&WindowTestSuite{})

func (*WindowTestSuite) TestSizeIsAtLeastOne(c *C) {
	c.Assert(newWindow(0).size(), Equals, uint(1))
	c.Assert(newWindow(4).size(), Equals, uint(4))
}

func (*WindowTestSuite) TestReleaseNeverBlocks(c *C) {
	w := newWindow(2)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			w.release()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		c.Fatal("release blocked on a full window")
	}

	// a full window holds exactly its size in credits
	ctx := context.Background()
	c.Assert(w.acquire(ctx), IsNil)
	c.Assert(w.acquire(ctx), IsNil)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	c.Assert(w.acquire(ctx), Equals, context.DeadlineExceeded)
}

func (*WindowTestSuite) TestAcquireWaitsForRelease(c *C) {
	w := newWindow(1)
	acquired := make(chan error, 1)
	go func() { acquired <- w.acquire(context.Background()) }()

	select {
	case <-acquired:
		c.Fatal("acquire returned without a credit")
	case <-time.After(20 * time.Millisecond):
	}

	w.release()
	select {
	case err := <-acquired:
		c.Assert(err, IsNil)
	case <-time.After(time.Second):
		c.Fatal("acquire did not wake after release")
	}
}

func (*WindowTestSuite) TestCloseWakesWaitersWithError(c *C) {
	w := newWindow(1)
	cause := errors.New("receiver gone")

	acquired := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { acquired <- w.acquire(context.Background()) }()
	}
	time.Sleep(10 * time.Millisecond)
	w.close(cause)
	w.close(errors.New("ignored"))

	for i := 0; i < 2; i++ {
		select {
		case err := <-acquired:
			c.Assert(err, Equals, cause)
		case <-time.After(time.Second):
			c.Fatal("close did not wake a waiter")
		}
	}

	// later acquires fail immediately
	c.Assert(w.acquire(context.Background()), Equals, cause)
}

func (*WindowTestSuite) TestCloseWithoutErrorStillReleases(c *C) {
	w := newWindow(1)
	w.close(nil)
	c.Assert(w.acquire(context.Background()), Equals, errWindowClosed)
}

func (*WindowTestSuite) TestCreditsSurviveClose(c *C) {
	w := newWindow(1)
	w.release()
	w.close(errors.New("done"))
	c.Assert(w.acquire(context.Background()), IsNil)
}

func (*WindowTestSuite) TestAcquireHonorsContext(c *C) {
	w := newWindow(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Assert(w.acquire(ctx), Equals, context.Canceled)
}
