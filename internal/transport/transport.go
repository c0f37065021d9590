// Package transport defines the interface for pluggable request transports.
//
// Each transport (HTTP, gRPC, NATS) implements this interface and hands every
// request to the dispatcher. The dispatcher doesn't care how requests
// arrive; it only works with the Transport contract.
package transport

import (
	"context"

	"github.com/nadzzz/narrator/internal/message"
)

// Handler processes an incoming request and returns a result. Failures are
// reported in Result.Error; a non-nil error means the handler itself broke.
type Handler func(ctx context.Context, req *message.Request) (*message.Result, error)

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http", "nats").
	Name() string

	// Listen starts accepting requests and dispatches them to the handler.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, handler Handler) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}
