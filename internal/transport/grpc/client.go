package grpc

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/narrator/internal/message"
)

// Client calls a remote narrator over gRPC.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for target ("host:port"). Extra options are appended
// to the plaintext defaults.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Synthesize sends req and returns the decoded result. A failed request
// comes back as a result with Error and ErrorKind set and a nil error;
// the error return is reserved for transport failures.
func (c *Client) Synthesize(ctx context.Context, req *message.Request) (*message.Result, error) {
	var (
		out     message.Result
		trailer metadata.MD
	)
	err := c.conn.Invoke(ctx, synthesizeMethod, req, &out, grpc.Trailer(&trailer))
	if err != nil {
		kinds := trailer.Get(ErrorKindKey)
		if len(kinds) == 0 {
			return nil, err
		}
		return &message.Result{
			RequestID: req.ID,
			Error:     status.Convert(err).Message(),
			ErrorKind: kinds[0],
		}, nil
	}
	if out.AudioBase64 != "" {
		audio, err := base64.StdEncoding.DecodeString(out.AudioBase64)
		if err != nil {
			return nil, fmt.Errorf("decoding audio: %w", err)
		}
		out.Audio = audio
		out.AudioBase64 = ""
	}
	return &out, nil
}

// Close releases the connection.
func (c *Client) Close() error { return c.conn.Close() }
