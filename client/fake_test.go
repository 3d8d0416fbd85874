package client

import (
	"context"
	"io"
	"sync"

	pb "github.com/buoyantio/strest-echo/protos"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// fakeStream echoes every message it is sent. It can be told to end the
// stream early, to fail every receive, or to never answer at all.
type fakeStream struct {
	grpc.ClientStream

	window uint

	mu        sync.Mutex
	sent      []string
	received  int
	overrun   bool
	closeOnce sync.Once
	pending   chan string

	// dropAfter ends the stream with io.EOF once this many responses have
	// been delivered. Zero disables it.
	dropAfter int
	recvErr   error

	// silent streams never answer; Recv blocks until the call's context
	// ends and fails the way a real stream would.
	silent bool
	ctx    context.Context
}

func newFakeStream(window uint) *fakeStream {
	return &fakeStream{window: window, pending: make(chan string, 1024)}
}

func (s *fakeStream) Send(m *pb.EchoRequest) error {
	s.mu.Lock()
	if uint(len(s.sent)-s.received) >= s.window {
		s.overrun = true
	}
	s.sent = append(s.sent, m.GetValue())
	s.mu.Unlock()
	s.pending <- m.GetValue()
	return nil
}

func (s *fakeStream) CloseSend() error {
	s.closeOnce.Do(func() { close(s.pending) })
	return nil
}

func (s *fakeStream) Recv() (*pb.EchoResponse, error) {
	if s.recvErr != nil {
		return nil, s.recvErr
	}
	if s.silent {
		<-s.ctx.Done()
		return nil, status.FromContextError(s.ctx.Err()).Err()
	}
	s.mu.Lock()
	if s.dropAfter > 0 && s.received >= s.dropAfter {
		s.mu.Unlock()
		return nil, io.EOF
	}
	s.mu.Unlock()

	v, ok := <-s.pending
	if !ok {
		return nil, io.EOF
	}
	s.mu.Lock()
	s.received++
	s.mu.Unlock()
	return &pb.EchoResponse{Value: v}, nil
}

func (s *fakeStream) Context() context.Context {
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

func (s *fakeStream) sentValues() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

// fakeConn is an in-memory Conn. Unary calls echo or fail with unaryErr and
// every stream opened is handed out by newStream.
type fakeConn struct {
	mu        sync.Mutex
	unaryErr  error
	calls     int
	newStream func() *fakeStream
	streams   []*fakeStream
	closed    bool
}

func (f *fakeConn) UnaryEcho(ctx context.Context, in *pb.EchoRequest, opts ...grpc.CallOption) (*pb.EchoResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.unaryErr != nil {
		return nil, f.unaryErr
	}
	return &pb.EchoResponse{Value: in.GetValue()}, nil
}

func (f *fakeConn) BidirectionalStreamingEcho(ctx context.Context, opts ...grpc.CallOption) (pb.Echo_BidirectionalStreamingEchoClient, error) {
	s := newFakeStream(1)
	if f.newStream != nil {
		s = f.newStream()
	}
	s.ctx = ctx
	f.mu.Lock()
	f.streams = append(f.streams, s)
	f.mu.Unlock()
	return s, nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}
