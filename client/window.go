package client

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

var errWindowClosed = errors.New("pacing window closed")

// window paces a stream sender against its receiver. The receiver releases
// one credit per response and the sender acquires one before every message
// beyond the first size messages.
//
// Credits are a count of at least one response since the last send, not an
// exact tally: a release into a full window is dropped and never blocks
// the receiver.
type window struct {
	credits chan struct{}
	closed  chan struct{}
	once    sync.Once
	err     error
}

func newWindow(size uint) *window {
	if size < 1 {
		size = 1
	}
	return &window{
		credits: make(chan struct{}, size),
		closed:  make(chan struct{}),
	}
}

// size is the number of messages that may be in flight without a credit.
func (w *window) size() uint {
	return uint(cap(w.credits))
}

// release hands one credit to the sender.
func (w *window) release() {
	select {
	case w.credits <- struct{}{}:
	default:
	}
}

// acquire blocks until a credit is available, the window is closed or ctx
// is done. Credits released before close are still handed out.
func (w *window) acquire(ctx context.Context) error {
	select {
	case <-w.credits:
		return nil
	default:
	}

	select {
	case <-w.credits:
		return nil
	case <-w.closed:
		select {
		case <-w.credits:
			return nil
		default:
		}
		if w.err != nil {
			return w.err
		}
		return errWindowClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close wakes every pending and future acquire with err. Only the first
// call has an effect.
func (w *window) close(err error) {
	w.once.Do(func() {
		w.err = err
		close(w.closed)
	})
}
