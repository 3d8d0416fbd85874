// Package protos holds the client and server bindings for the
// grpc.examples.echo.Echo service defined in echo.proto.
//
// Requests and responses are google.protobuf.StringValue messages, which
// carry a single string in field 1 and are therefore wire-compatible with
// the EchoRequest/EchoResponse messages of the upstream echo example.
package protos

//go:generate protoc -I . --go-grpc_out=. --go-grpc_opt=paths=source_relative,require_unimplemented_servers=false echo.proto

import (
	"github.com/golang/protobuf/ptypes/wrappers"
)

// EchoRequest is the payload sent to the echo service.
type EchoRequest = wrappers.StringValue

// EchoResponse is the payload returned by the echo service.
type EchoResponse = wrappers.StringValue

// EchoServiceName is the fully qualified gRPC service name.
const EchoServiceName = "grpc.examples.echo.Echo"
