package client

import (
	"context"
	"time"

	"github.com/pkg/errors"
	. "gopkg.in/check.v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type StreamTestSuite struct{}

var _ = Suite(&StreamTestSuite{})

func runWithin(c *C, d time.Duration, f func() error) error {
	done := make(chan error, 1)
	go func() { done <- f() }()
	select {
	case err := <-done:
		return err
	case <-time.After(d):
		c.Fatalf("transaction did not finish within %s", d)
		return nil
	}
}

func (*StreamTestSuite) TestEchoesEveryCommandInOrder(c *C) {
	conn := &fakeConn{}
	r := &streamingRunner{client: conn, commands: 5, window: 1}

	err := runWithin(c, time.Second, func() error { return r.runTransaction(context.Background()) })
	c.Assert(err, IsNil)

	c.Assert(conn.streams, HasLen, 1)
	s := conn.streams[0]
	c.Assert(s.sentValues(), DeepEquals, []string{"msg 00", "msg 01", "msg 02", "msg 03", "msg 04"})
	c.Assert(s.received, Equals, 5)
	c.Assert(s.overrun, Equals, false)
}

func (*StreamTestSuite) TestSingleCommandDoesNotWait(c *C) {
	conn := &fakeConn{}
	r := &streamingRunner{client: conn, commands: 1, window: 1}

	err := runWithin(c, time.Second, func() error { return r.runTransaction(context.Background()) })
	c.Assert(err, IsNil)
	c.Assert(conn.streams[0].sentValues(), DeepEquals, []string{"msg 00"})
}

func (*StreamTestSuite) TestZeroCommandsClosesImmediately(c *C) {
	conn := &fakeConn{}
	r := &streamingRunner{client: conn, commands: 0, window: 1}

	err := runWithin(c, time.Second, func() error { return r.runTransaction(context.Background()) })
	c.Assert(err, IsNil)
	c.Assert(conn.streams[0].sentValues(), HasLen, 0)
}

func (*StreamTestSuite) TestWiderWindowNeverOverruns(c *C) {
	conn := &fakeConn{newStream: func() *fakeStream { return newFakeStream(3) }}
	r := &streamingRunner{client: conn, commands: 20, window: 3}

	err := runWithin(c, time.Second, func() error { return r.runTransaction(context.Background()) })
	c.Assert(err, IsNil)
	c.Assert(conn.streams[0].sentValues(), HasLen, 20)
	c.Assert(conn.streams[0].overrun, Equals, false)
}

func (*StreamTestSuite) TestPrematureCloseDoesNotHang(c *C) {
	conn := &fakeConn{newStream: func() *fakeStream {
		s := newFakeStream(1)
		s.dropAfter = 2
		return s
	}}
	r := &streamingRunner{client: conn, commands: 5, window: 1}

	err := runWithin(c, time.Second, func() error { return r.runTransaction(context.Background()) })
	c.Assert(errors.Is(err, ErrStreamClosed), Equals, true)
}

func (*StreamTestSuite) TestUnavailableIsPeerDisconnect(c *C) {
	conn := &fakeConn{newStream: func() *fakeStream {
		s := newFakeStream(1)
		s.recvErr = status.Error(codes.Unavailable, "transport is closing")
		return s
	}}
	r := &streamingRunner{client: conn, commands: 3, window: 1}

	err := runWithin(c, time.Second, func() error { return r.runTransaction(context.Background()) })
	c.Assert(errors.Is(err, ErrPeerDisconnected), Equals, true)
}

func (*StreamTestSuite) TestUnaryRecordsEveryCommand(c *C) {
	conn := &fakeConn{}
	res := NewBenchmarkResult(DefaultConfig().Layout)
	r := &unaryRunner{client: conn, commands: 4, latency: res.CommandLatency}

	c.Assert(r.runTransaction(context.Background()), IsNil)
	c.Assert(conn.calls, Equals, 4)
	c.Assert(res.CommandLatency.Count(), Equals, int64(4))
}

func (*StreamTestSuite) TestUnaryUnavailableIsPeerDisconnect(c *C) {
	conn := &fakeConn{unaryErr: status.Error(codes.Unavailable, "connection refused")}
	res := NewBenchmarkResult(DefaultConfig().Layout)
	r := &unaryRunner{client: conn, commands: 4, latency: res.CommandLatency}

	err := r.runTransaction(context.Background())
	c.Assert(errors.Is(err, ErrPeerDisconnected), Equals, true)
	c.Assert(conn.calls, Equals, 1)
	c.Assert(res.CommandLatency.Count(), Equals, int64(0))
}

func (*StreamTestSuite) TestClassify(c *C) {
	c.Assert(classify(nil), IsNil)
	c.Assert(errors.Is(classify(status.Error(codes.DeadlineExceeded, "slow")), context.DeadlineExceeded), Equals, true)
	c.Assert(errors.Is(classify(status.Error(codes.Canceled, "bye")), context.Canceled), Equals, true)

	other := status.Error(codes.InvalidArgument, "bad")
	c.Assert(classify(other), Equals, other)
}

func (*StreamTestSuite) TestSilentPeerHitsTransactionTimeout(c *C) {
	conn := &fakeConn{newStream: func() *fakeStream {
		s := newFakeStream(1)
		s.silent = true
		return s
	}}
	r := &streamingRunner{client: conn, commands: 3, window: 1, timeout: 50 * time.Millisecond}

	start := time.Now()
	err := runWithin(c, time.Second, func() error { return r.runTransaction(context.Background()) })
	c.Assert(errors.Is(err, context.DeadlineExceeded), Equals, true, Commentf("got %v", err))
	c.Assert(time.Since(start) >= 50*time.Millisecond, Equals, true)

	// only the first command fits in the window
	c.Assert(conn.streams[0].sentValues(), DeepEquals, []string{"msg 00"})
}
