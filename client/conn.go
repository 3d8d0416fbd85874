package client

import (
	"context"
	"net"

	pb "github.com/buoyantio/strest-echo/protos"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Conn is an established connection to an echo service.
type Conn interface {
	pb.EchoClient
	Close() error
}

// ConnectionFactory establishes the connection a worker uses for its whole
// run. Connect is called once per worker, concurrently.
type ConnectionFactory interface {
	Connect(ctx context.Context) (Conn, error)
}

// ConnectionFactoryFunc adapts a function to a ConnectionFactory.
type ConnectionFactoryFunc func(ctx context.Context) (Conn, error)

// Connect calls f(ctx).
func (f ConnectionFactoryFunc) Connect(ctx context.Context) (Conn, error) {
	return f(ctx)
}

type grpcConn struct {
	pb.EchoClient
	cc *grpc.ClientConn
}

func (c *grpcConn) Close() error {
	return c.cc.Close()
}

// Dialer is a ConnectionFactory that opens one gRPC client connection per
// call.
type Dialer struct {
	cfg  Config
	opts []grpc.DialOption
}

// NewDialer builds the dial options described by cfg. Extra options are
// appended last and take precedence.
func NewDialer(cfg Config, extra ...grpc.DialOption) (*Dialer, error) {
	var opts []grpc.DialOption
	if cfg.TLSTrustChainFile != "" {
		creds, err := credentials.NewClientTLSFromFile(cfg.TLSTrustChainFile, "")
		if err != nil {
			return nil, errors.Wrap(err, "invalid ca cert file")
		}
		opts = append(opts, grpc.WithTransportCredentials(creds))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	if cfg.UseUnixAddr {
		// Override the authority so it doesn't include something illegal like a path.
		opts = append(opts,
			grpc.WithAuthority("strest.local"),
			grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", addr)
			}))
	}

	opts = append(opts,
		grpc.WithUnaryInterceptor(grpc_prometheus.UnaryClientInterceptor),
		grpc.WithStreamInterceptor(grpc_prometheus.StreamClientInterceptor),
	)
	opts = append(opts, extra...)

	return &Dialer{cfg: cfg, opts: opts}, nil
}

// Connect blocks until the connection is ready, the connect timeout
// expires or ctx is done.
func (d *Dialer) Connect(ctx context.Context) (Conn, error) {
	if d.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.ConnectTimeout)
		defer cancel()
	}

	opts := append([]grpc.DialOption{grpc.WithBlock()}, d.opts...)
	cc, err := grpc.DialContext(ctx, d.cfg.Address, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s", d.cfg.Address)
	}
	return &grpcConn{EchoClient: pb.NewEchoClient(cc), cc: cc}, nil
}
