// Package dispatch implements the request handling engine.
//
// The dispatcher receives requests from transports, checks the password
// gate, validates the text, resolves the voice, runs the chunked synthesis
// pipeline and records the outcome. The sender always receives a result;
// failures are reported in it rather than as handler errors.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nadzzz/narrator/internal/auth"
	"github.com/nadzzz/narrator/internal/history"
	"github.com/nadzzz/narrator/internal/message"
	"github.com/nadzzz/narrator/internal/storage"
	"github.com/nadzzz/narrator/internal/synth"
	"github.com/nadzzz/narrator/internal/tts"
)

// Options wires the dispatcher's collaborators. Gate, History and Publisher
// may be nil.
type Options struct {
	Pipeline  *synth.Pipeline
	Limits    synth.Limits
	Gate      *auth.Gate
	History   *history.Store
	Publisher storage.Publisher
}

// Dispatcher is the central request handler.
type Dispatcher struct {
	pipeline  *synth.Pipeline
	backend   tts.Synthesizer
	limits    synth.Limits
	gate      *auth.Gate
	history   *history.Store
	publisher storage.Publisher

	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// New creates a new Dispatcher.
func New(opts Options) *Dispatcher {
	meter := otel.Meter("github.com/nadzzz/narrator/internal/dispatch")
	requests, err := meter.Int64Counter("narrator.requests",
		metric.WithDescription("Synthesis requests by outcome"))
	if err != nil {
		slog.Warn("creating request counter", "error", err)
	}
	duration, err := meter.Float64Histogram("narrator.request.duration",
		metric.WithDescription("End-to-end request duration"),
		metric.WithUnit("s"))
	if err != nil {
		slog.Warn("creating request histogram", "error", err)
	}

	return &Dispatcher{
		pipeline:  opts.Pipeline,
		backend:   opts.Pipeline.Backend(),
		limits:    opts.Limits,
		gate:      opts.Gate,
		history:   opts.History,
		publisher: opts.Publisher,
		requests:  requests,
		duration:  duration,
	}
}

// Handle processes a single request through the full pipeline.
// This function is passed as the transport.Handler to each transport.
func (d *Dispatcher) Handle(ctx context.Context, req *message.Request) (*message.Result, error) {
	req.EnsureID()
	start := time.Now()
	logger := slog.With("request_id", req.ID, "source", req.Source)

	result := &message.Result{
		RequestID: req.ID,
		Backend:   d.backend.Name(),
	}

	// Step 1: Password gate.
	if dec := d.gate.Check(req.Password); !dec.Allowed {
		return d.finish(ctx, logger, req, result, start, synth.Unauthenticated(dec.Reason)), nil
	}

	// Step 2: Reject empty or oversize text before any backend call.
	stats, err := synth.Validate(req.Text, d.limits)
	result.Words = stats.Words
	result.Characters = stats.Characters
	if err != nil {
		return d.finish(ctx, logger, req, result, start, err), nil
	}
	result.Notices = append(result.Notices, stats.Notices...)

	// Step 3: Normalize rate and gender, resolve voice and language.
	rate, err := tts.ParseRate(req.Rate)
	if err != nil {
		result.Notices = append(result.Notices, fmt.Sprintf("Unknown speed %q; using normal.", req.Rate))
		rate = tts.RateNormal
	}
	gender, ok := tts.ParseGender(req.Gender)
	if !ok {
		result.Notices = append(result.Notices, fmt.Sprintf("Unknown gender %q; ignoring.", req.Gender))
	}
	voice, lang, notices := d.resolveVoice(ctx, logger, req.Voice, gender, req.Language)
	result.Notices = append(result.Notices, notices...)
	result.Voice = voice
	result.Language = lang

	logger.Info("synthesis started",
		"words", stats.Words, "characters", stats.Characters,
		"voice", voice, "language", lang, "rate", rate)

	// Step 4: Chunked synthesis.
	out, err := d.pipeline.Assemble(ctx, synth.Request{
		ID:       req.ID,
		Text:     req.Text,
		Voice:    voice,
		Language: lang,
		Rate:     rate,
	})
	if err != nil {
		return d.finish(ctx, logger, req, result, start, err), nil
	}
	result.Audio = out.Data
	result.ContentType = out.ContentType
	result.Filename = out.Filename
	result.Chunks = out.Chunks

	// Step 5: Optional publication. Upload failure keeps the inline audio.
	if req.Publish {
		if d.publisher == nil {
			result.Notices = append(result.Notices, "Publishing is not configured; audio returned inline.")
		} else if u, err := d.publisher.Publish(ctx, req.ID, out.Filename, out.ContentType, out.Data); err != nil {
			logger.Warn("publishing audio failed", "error", err)
			result.Notices = append(result.Notices, "Upload failed; audio returned inline.")
		} else {
			result.URL = u
		}
	}

	return d.finish(ctx, logger, req, result, start, nil), nil
}

// resolveVoice maps the requested voice/gender/language onto what the
// backend offers. Misses fall back to the backend default and add a notice.
func (d *Dispatcher) resolveVoice(ctx context.Context, logger *slog.Logger, selector string, gender tts.Gender, lang string) (string, string, []string) {
	var notices []string

	if ll, ok := d.backend.(tts.LanguageLister); ok {
		supported := slices.ContainsFunc(ll.Languages(), func(l tts.Language) bool { return l.Code == lang })
		if !supported {
			if lang != "" {
				notices = append(notices, fmt.Sprintf("Language %q is not available; using %s.", lang, ll.DefaultLanguage()))
			}
			lang = ll.DefaultLanguage()
		}
	}

	cat, ok := d.backend.(tts.Catalog)
	if !ok || (selector == "" && gender == "") {
		return selector, lang, notices
	}

	voices, err := cat.Voices(ctx)
	if err != nil {
		logger.Warn("listing voices failed, passing selector through", "error", err)
		return selector, lang, notices
	}

	candidates := tts.FilterByGender(voices, gender)
	if selector != "" {
		if v, ok := tts.FindVoice(candidates, selector); ok {
			return v.ID, lang, notices
		}
	} else if len(candidates) > 0 {
		return candidates[0].ID, lang, notices
	}

	logger.Info("voice not found, using default",
		"error_kind", synth.KindVoiceNotFound, "voice", selector, "gender", gender)
	if selector != "" && len(candidates) > 0 {
		notices = append(notices, fmt.Sprintf("Voice %q not found. Default voice will be used.", selector))
		return candidates[0].ID, lang, notices
	}
	notices = append(notices, synth.MessageVoiceNotFound)
	return "", lang, notices
}

// finish classifies err into the result, logs, records metrics and history.
func (d *Dispatcher) finish(ctx context.Context, logger *slog.Logger, req *message.Request, result *message.Result, start time.Time, err error) *message.Result {
	elapsed := time.Since(start)
	result.DurationMS = elapsed.Milliseconds()

	outcome := "ok"
	if err != nil {
		kind := synth.KindOf(err)
		outcome = string(kind)
		result.Error = synth.UserMessage(err)
		result.ErrorKind = string(kind)
		result.Audio = nil

		attrs := []any{"error_kind", kind, "error", err, "duration", elapsed}
		var se *synth.Error
		if errors.As(err, &se) && se.Chunk >= 0 {
			attrs = append(attrs, "chunk", se.Chunk)
		}
		switch kind {
		case synth.KindEmptyInput, synth.KindOversizeInput, synth.KindUnauthenticated, synth.KindCanceled:
			logger.Info("request rejected", attrs...)
		default:
			logger.Error("synthesis failed", attrs...)
		}
	} else {
		logger.Info("synthesis complete",
			"chunks", result.Chunks, "audio_bytes", len(result.Audio), "duration", elapsed)
	}

	mattrs := metric.WithAttributes(
		attribute.String("backend", result.Backend),
		attribute.String("source", req.Source),
		attribute.String("outcome", outcome),
	)
	if d.requests != nil {
		d.requests.Add(ctx, 1, mattrs)
	}
	if d.duration != nil {
		d.duration.Record(ctx, elapsed.Seconds(), mattrs)
	}

	// History outlives a canceled request context.
	if herr := d.history.Record(context.WithoutCancel(ctx), history.Entry{
		RequestID:  req.ID,
		Source:     req.Source,
		Backend:    result.Backend,
		Voice:      result.Voice,
		Language:   result.Language,
		Words:      result.Words,
		Characters: result.Characters,
		Chunks:     result.Chunks,
		Bytes:      len(result.Audio),
		Outcome:    outcome,
		DurationMS: result.DurationMS,
	}); herr != nil {
		logger.Warn("recording history failed", "error", herr)
	}
	return result
}

// Voices lists the backend's voices, optionally filtered by gender. Backends
// without a catalog return nil.
func (d *Dispatcher) Voices(ctx context.Context, gender tts.Gender) ([]tts.Voice, error) {
	cat, ok := d.backend.(tts.Catalog)
	if !ok {
		return nil, nil
	}
	voices, err := cat.Voices(ctx)
	if err != nil {
		return nil, err
	}
	return tts.FilterByGender(voices, gender), nil
}

// Languages returns the selectable languages and the default, or nil for
// backends that pick voices instead.
func (d *Dispatcher) Languages() ([]tts.Language, string) {
	if ll, ok := d.backend.(tts.LanguageLister); ok {
		return ll.Languages(), ll.DefaultLanguage()
	}
	return nil, ""
}

// AuthRequired reports whether requests must carry a password.
func (d *Dispatcher) AuthRequired() bool { return d.gate.Enabled() }

// BackendName returns the active speech backend.
func (d *Dispatcher) BackendName() string { return d.backend.Name() }

// History returns recent request outcomes. It is gated like synthesis.
func (d *Dispatcher) History(ctx context.Context, password string, limit int) ([]history.Entry, error) {
	if dec := d.gate.Check(password); !dec.Allowed {
		return nil, synth.Unauthenticated(dec.Reason)
	}
	return d.history.Recent(ctx, limit)
}
