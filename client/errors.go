package client

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrPeerDisconnected is returned when the echo service goes away in
	// the middle of a call or stream.
	ErrPeerDisconnected = errors.New("peer disconnected")

	// ErrStreamClosed is returned when a stream ends before every command
	// of the transaction has been echoed.
	ErrStreamClosed = errors.New("stream closed before all responses arrived")

	// ErrAlreadyMerged is returned when a result is merged a second time.
	ErrAlreadyMerged = errors.New("result already merged")
)

// classify maps RPC failures onto the sentinel errors callers match on.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.Unavailable:
		return errors.Wrap(ErrPeerDisconnected, err.Error())
	case codes.DeadlineExceeded:
		return errors.Wrap(context.DeadlineExceeded, err.Error())
	case codes.Canceled:
		return errors.Wrap(context.Canceled, err.Error())
	}
	return err
}
