// Package refclient checks that a service, or an intermediary in front of
// one, honors the echo stream contract: every message comes back, in
// order, unchanged.
package refclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"

	"github.com/buoyantio/strest-echo/client"
	pb "github.com/buoyantio/strest-echo/protos"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrContractViolated is returned when the stream does not echo what was
// sent.
var ErrContractViolated = errors.New("echo contract violated")

// Config configures a check. Dialing settings come from Client.
type Config struct {
	Client client.Config
	// Count is the number of messages sent on the stream.
	Count uint
	// PprofAddr serves net/http/pprof when set.
	PprofAddr string
}

// DefaultConfig returns the configuration used when no flags are given.
func DefaultConfig() Config {
	return Config{Client: client.DefaultConfig(), Count: 100}
}

// Check opens one stream on conn, sends count messages and verifies the
// responses. It returns once the stream is fully drained.
func Check(ctx context.Context, conn pb.EchoClient, count uint) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := conn.BidirectionalStreamingEcho(ctx)
	if err != nil {
		return errors.Wrap(err, "opening stream")
	}

	sent := make([]string, count)
	for i := range sent {
		sent[i] = fmt.Sprintf("ref %d", i)
	}

	receiving := make(chan error, 1)
	go func() {
		var received uint
		for {
			resp, err := stream.Recv()
			if err == io.EOF {
				if received != count {
					receiving <- errors.Wrapf(ErrContractViolated, "stream ended after %d of %d responses", received, count)
					return
				}
				receiving <- nil
				return
			}
			if err != nil {
				receiving <- errors.Wrapf(err, "after %d of %d responses", received, count)
				return
			}
			if received >= count {
				receiving <- errors.Wrapf(ErrContractViolated, "unexpected response %q beyond %d sent", resp.GetValue(), count)
				return
			}
			if resp.GetValue() != sent[received] {
				receiving <- errors.Wrapf(ErrContractViolated, "response %d was %q, expected %q", received, resp.GetValue(), sent[received])
				return
			}
			received++
		}
	}()

	var sendErr error
	for _, v := range sent {
		if sendErr = stream.Send(&pb.EchoRequest{Value: v}); sendErr != nil {
			sendErr = errors.Wrap(sendErr, "stream.Send")
			break
		}
	}
	if sendErr == nil {
		sendErr = errors.Wrap(stream.CloseSend(), "stream.CloseSend")
	} else {
		cancel()
	}

	if err := <-receiving; err != nil {
		return err
	}
	return sendErr
}

// Run dials cfg.Client.Address and checks one stream of cfg.Count
// messages.
func (cfg Config) Run(ctx context.Context) error {
	if cfg.PprofAddr != "" {
		go func() {
			log.Println(http.ListenAndServe(cfg.PprofAddr, nil))
		}()
	}

	dialer, err := client.NewDialer(cfg.Client)
	if err != nil {
		return err
	}
	log.Infof("connecting to %s", cfg.Client.Address)
	conn, err := dialer.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := Check(ctx, conn, cfg.Count); err != nil {
		return err
	}
	log.Infof("%d messages echoed in order", cfg.Count)
	return nil
}
