package client

import (
	"context"
	"fmt"
	"time"

	"github.com/buoyantio/strest-echo/latency"
	pb "github.com/buoyantio/strest-echo/protos"
	"github.com/pkg/errors"
)

// commandRunner executes the commands of one transaction.
type commandRunner interface {
	runTransaction(ctx context.Context) error
}

// payload is the deterministic body of command i.
func payload(i uint) string {
	return fmt.Sprintf("msg %02d", i)
}

// unaryRunner pays a full round trip for every command and records each
// one into latency.
type unaryRunner struct {
	client   pb.EchoClient
	commands uint
	latency  *latency.Recorder
}

func (r *unaryRunner) runTransaction(ctx context.Context) error {
	for i := uint(0); i < r.commands; i++ {
		req := &pb.EchoRequest{Value: payload(i)}

		start := time.Now()
		if _, err := r.client.UnaryEcho(ctx, req); err != nil {
			return errors.Wrapf(classify(err), "command %d", i)
		}
		elapsed := time.Since(start)

		if err := r.latency.Record(elapsed); err != nil {
			return err
		}
		promCommands.Inc()
		promCommandLatency.Observe(elapsed.Seconds() * 1000)
	}
	return nil
}
