// Package nats implements the NATS request/reply transport for narrator.
//
// The transport joins a queue group on the configured subject. Each message
// carries a JSON message.Request; the reply is a JSON message.Result with
// the audio base64 encoded. Failed requests also set the Narrator-Error-Kind
// header so clients can branch without decoding the body.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/message"
	"github.com/nadzzz/narrator/internal/synth"
	"github.com/nadzzz/narrator/internal/transport"
)

// ErrorKindHeader carries the error kind of a failed request.
const ErrorKindHeader = "Narrator-Error-Kind"

// Transport implements transport.Transport over NATS.
type Transport struct {
	cfg  config.NATSConfig
	url  string
	conn *nats.Conn
	wg   sync.WaitGroup
}

// New creates a new NATS transport. A non-empty url overrides cfg.URL, which
// is how the embedded server is wired in.
func New(cfg config.NATSConfig, url string) *Transport {
	if url == "" {
		url = cfg.URL
	}
	return &Transport{cfg: cfg, url: url}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "nats" }

// Listen connects to NATS and serves requests until ctx is done.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	conn, err := nats.Connect(t.url,
		nats.Name("narrator"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	t.conn = conn

	sub, err := conn.QueueSubscribe(t.cfg.Subject, t.cfg.Queue, func(msg *nats.Msg) {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.handle(ctx, msg, handler)
		}()
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("subscribe %s: %w", t.cfg.Subject, err)
	}

	slog.Info("nats transport listening", "url", t.url, "subject", t.cfg.Subject, "queue", t.cfg.Queue)

	<-ctx.Done()
	slog.Info("nats transport shutting down")
	_ = sub.Drain()
	t.wg.Wait()
	return conn.Drain()
}

func (t *Transport) handle(ctx context.Context, msg *nats.Msg, handler transport.Handler) {
	var req message.Request
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		slog.Warn("decoding nats request failed", "subject", msg.Subject, "error", err)
		t.respond(msg, &message.Result{
			Error:     "Invalid request.",
			ErrorKind: string(synth.KindInternal),
		})
		return
	}
	req.Source = t.Name()

	result, err := handler(ctx, &req)
	if err != nil {
		slog.Error("nats request failed", "request_id", req.ID, "error", err)
		result = &message.Result{
			RequestID: req.ID,
			Error:     synth.MessageFailed,
			ErrorKind: string(synth.KindInternal),
		}
	}
	t.respond(msg, result)
}

func (t *Transport) respond(msg *nats.Msg, result *message.Result) {
	if msg.Reply == "" {
		return
	}
	result.EncodeAudio()
	data, err := json.Marshal(result)
	if err != nil {
		slog.Error("encoding nats reply failed", "error", err)
		return
	}

	// Replies larger than the server allows lose the inline audio; clients
	// that need long texts request publication and use the URL.
	if limit := t.conn.MaxPayload(); limit > 0 && int64(len(data)) > limit {
		result.AudioBase64 = ""
		result.Notices = append(result.Notices, "Audio exceeds the message size limit; request publish to receive a URL.")
		if data, err = json.Marshal(result); err != nil {
			slog.Error("encoding nats reply failed", "error", err)
			return
		}
	}

	reply := nats.NewMsg(msg.Reply)
	reply.Data = data
	reply.Header.Set("Content-Type", "application/json")
	if result.ErrorKind != "" {
		reply.Header.Set(ErrorKindHeader, result.ErrorKind)
	}
	if err := msg.RespondMsg(reply); err != nil {
		slog.Warn("nats reply failed", "request_id", result.RequestID, "error", err)
	}
}

// Close drains the connection.
func (t *Transport) Close() error {
	if t.conn != nil && !t.conn.IsClosed() {
		return t.conn.Drain()
	}
	return nil
}
