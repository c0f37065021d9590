// Package grpc implements the gRPC transport for narrator.
//
// The service narrator.v1.Narrator has one unary method, Synthesize, that
// carries message.Request and message.Result encoded with the "json" codec
// registered by this package. The standard gRPC health service is served
// alongside it.
package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/narrator/internal/message"
	"github.com/nadzzz/narrator/internal/synth"
	"github.com/nadzzz/narrator/internal/transport"
)

const (
	serviceName      = "narrator.v1.Narrator"
	synthesizeMethod = "/" + serviceName + "/Synthesize"

	// ErrorKindKey is the trailer that carries the error kind of a failed call.
	ErrorKindKey = "narrator-error-kind"
)

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port   int
	server *grpc.Server
	health *health.Server
}

// New creates a new gRPC transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	slog.Info("grpc transport listening", "port", t.port)
	return t.Serve(ctx, lis, handler)
}

// Serve runs the server on an existing listener until ctx is done.
func (t *Transport) Serve(ctx context.Context, lis net.Listener, handler transport.Handler) error {
	t.server = grpc.NewServer(grpc.ChainUnaryInterceptor(logUnary))
	t.server.RegisterService(&serviceDesc, &service{handler: handler, source: t.Name()})

	t.health = health.NewServer()
	t.health.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(t.server, t.health)

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		t.health.Shutdown()
		t.server.GracefulStop()
	}()

	return t.server.Serve(lis)
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	if t.server != nil {
		t.server.GracefulStop()
	}
	return nil
}

// narratorServer is the server API of narrator.v1.Narrator.
type narratorServer interface {
	Synthesize(ctx context.Context, req *message.Request) (*message.Result, error)
}

type service struct {
	handler transport.Handler
	source  string
}

// Synthesize runs one request. Failed results become status errors whose
// message is the user-facing text; the kind travels in the trailer.
func (s *service) Synthesize(ctx context.Context, req *message.Request) (*message.Result, error) {
	req.Source = s.source
	req.EnsureID()

	result, err := s.handler(ctx, req)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	if result.ErrorKind != "" {
		_ = grpc.SetTrailer(ctx, metadata.Pairs(ErrorKindKey, result.ErrorKind))
		return nil, status.Error(codeFor(synth.Kind(result.ErrorKind)), result.Error)
	}
	result.EncodeAudio()
	return result, nil
}

func codeFor(kind synth.Kind) codes.Code {
	switch kind {
	case synth.KindEmptyInput, synth.KindOversizeInput:
		return codes.InvalidArgument
	case synth.KindUnauthenticated:
		return codes.Unauthenticated
	case synth.KindCanceled:
		return codes.Canceled
	case synth.KindSynthesisFailure, synth.KindConcatenationFailure:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

func synthesizeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(message.Request)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(narratorServer).Synthesize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: synthesizeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(narratorServer).Synthesize(ctx, req.(*message.Request))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*narratorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Synthesize", Handler: synthesizeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "narrator/v1/narrator.proto",
}

func logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	slog.Debug("grpc call",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start))
	return resp, err
}
