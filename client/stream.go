package client

import (
	"context"
	"io"
	"time"

	pb "github.com/buoyantio/strest-echo/protos"
	"github.com/pkg/errors"
)

// streamingRunner sends every command of a transaction over one
// bidirectional stream. The sender and receiver run concurrently and are
// paced by a window so that, with a window of one, message i+1 is only
// sent after at least one response has come back since message i.
//
// Per-command latency is not recorded: without request ids a response
// cannot be attributed to the request that caused it.
type streamingRunner struct {
	client   pb.EchoClient
	commands uint
	window   uint
	timeout  time.Duration
}

func (r *streamingRunner) runTransaction(ctx context.Context) error {
	var cancel context.CancelFunc
	if r.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	stream, err := r.client.BidirectionalStreamingEcho(ctx)
	if err != nil {
		return errors.Wrap(classify(err), "opening stream")
	}

	credits := newWindow(r.window)
	received := make(chan error, 1)
	go func() {
		err := r.receive(stream, credits)
		credits.close(err)
		received <- err
	}()

	sendErr := r.send(ctx, stream, credits)
	if sendErr != nil {
		// unblocks the receiver if the peer is still holding the stream open
		cancel()
	}

	if recvErr := <-received; recvErr != nil {
		return recvErr
	}
	return sendErr
}

func (r *streamingRunner) send(ctx context.Context, stream pb.Echo_BidirectionalStreamingEchoClient, credits *window) error {
	for i := uint(0); i < r.commands; i++ {
		if i >= credits.size() {
			if err := credits.acquire(ctx); err != nil {
				return err
			}
		}
		if err := stream.Send(&pb.EchoRequest{Value: payload(i)}); err != nil {
			// io.EOF means the stream was aborted; the receiver sees the cause.
			return errors.Wrapf(err, "sending command %d", i)
		}
		promCommands.Inc()
	}
	return stream.CloseSend()
}

func (r *streamingRunner) receive(stream pb.Echo_BidirectionalStreamingEchoClient, credits *window) error {
	var received uint
	for {
		_, err := stream.Recv()
		if err == io.EOF {
			if received < r.commands {
				return errors.Wrapf(ErrStreamClosed, "received %d of %d responses", received, r.commands)
			}
			return nil
		}
		if err != nil {
			return errors.Wrapf(classify(err), "after %d of %d responses", received, r.commands)
		}
		received++
		credits.release()
	}
}
