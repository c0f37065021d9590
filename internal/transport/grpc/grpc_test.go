package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nadzzz/narrator/internal/message"
	"github.com/nadzzz/narrator/internal/synth"
)

func handler(_ context.Context, req *message.Request) (*message.Result, error) {
	switch req.Text {
	case "":
		return &message.Result{RequestID: req.ID, Error: synth.MessageEmptyInput, ErrorKind: string(synth.KindEmptyInput)}, nil
	case "locked":
		return &message.Result{RequestID: req.ID, Error: "Invalid password.", ErrorKind: string(synth.KindUnauthenticated)}, nil
	}
	return &message.Result{
		RequestID:   req.ID,
		Audio:       []byte("RIFF" + req.Source),
		ContentType: "audio/wav",
		Filename:    "voice_output.wav",
		Chunks:      2,
	}, nil
}

func startServer(t *testing.T) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())

	tr := New(0)
	done := make(chan error, 1)
	go func() { done <- tr.Serve(ctx, lis, handler) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestSynthesize(t *testing.T) {
	c := &Client{conn: startServer(t)}

	req := message.NewRequest("cli")
	req.Text = "hello"
	res, err := c.Synthesize(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, req.ID, res.RequestID)
	assert.Equal(t, "RIFFgrpc", string(res.Audio), "source is set by the transport")
	assert.Equal(t, "voice_output.wav", res.Filename)
	assert.Equal(t, 2, res.Chunks)
	assert.Empty(t, res.AudioBase64)
}

func TestSynthesizeFailureCarriesKind(t *testing.T) {
	conn := startServer(t)
	c := &Client{conn: conn}

	req := message.NewRequest("cli")
	res, err := c.Synthesize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, synth.MessageEmptyInput, res.Error)
	assert.Equal(t, string(synth.KindEmptyInput), res.ErrorKind)

	var out message.Result
	err = conn.Invoke(context.Background(), synthesizeMethod, &message.Request{Text: "locked"}, &out)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "Invalid password.", status.Convert(err).Message())
}

func TestHealthService(t *testing.T) {
	conn := startServer(t)
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: serviceName},
		grpc.CallContentSubtype("proto"))
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestCodeFor(t *testing.T) {
	assert.Equal(t, codes.InvalidArgument, codeFor(synth.KindOversizeInput))
	assert.Equal(t, codes.Canceled, codeFor(synth.KindCanceled))
	assert.Equal(t, codes.Unavailable, codeFor(synth.KindSynthesisFailure))
	assert.Equal(t, codes.Internal, codeFor(synth.KindInternal))
}
