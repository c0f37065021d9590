// Package synth implements chunked synthesis: long text is split into
// word-bounded chunks, each chunk is synthesized by a speech backend, and the
// per-chunk audio is joined in chunk order into one file.
package synth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/nadzzz/narrator/internal/audio"
	"github.com/nadzzz/narrator/internal/chunk"
	"github.com/nadzzz/narrator/internal/tempstore"
	"github.com/nadzzz/narrator/internal/tts"
)

const instrumentationName = "github.com/nadzzz/narrator/internal/synth"

// Options tune the pipeline.
type Options struct {
	// MaxWords bounds each chunk. Non-positive means chunk.DefaultMaxWords.
	MaxWords int

	// ChunkTimeout bounds a single backend call. Zero disables it.
	ChunkTimeout time.Duration

	// Concurrency is the number of chunk calls in flight. 1 (or less) runs
	// chunks strictly one after another.
	Concurrency int
}

// Request is one assemble call.
type Request struct {
	// ID names the temporary scope and tags logs. Empty generates a UUID.
	ID       string
	Text     string
	Voice    string
	Language string
	Rate     tts.Rate
}

// AssembledAudio is the single artifact returned to the caller.
type AssembledAudio struct {
	Data        []byte
	Encoding    audio.Encoding
	Filename    string
	ContentType string
	Chunks      int
}

// Pipeline runs split, per-chunk synthesis and concatenation.
type Pipeline struct {
	backend tts.Synthesizer
	store   *tempstore.Store
	opts    Options

	tracer        trace.Tracer
	chunkCount    metric.Int64Counter
	chunkDuration metric.Float64Histogram
}

// New creates a pipeline over backend, keeping per-chunk files in store.
func New(backend tts.Synthesizer, store *tempstore.Store, opts Options) *Pipeline {
	if opts.MaxWords <= 0 {
		opts.MaxWords = chunk.DefaultMaxWords
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	meter := otel.Meter(instrumentationName)
	chunkCount, err := meter.Int64Counter("narrator.chunks",
		metric.WithDescription("Chunk synthesis calls by outcome"))
	if err != nil {
		slog.Warn("creating chunk counter", "error", err)
	}
	chunkDuration, err := meter.Float64Histogram("narrator.chunk.duration",
		metric.WithDescription("Duration of one chunk synthesis call"),
		metric.WithUnit("s"))
	if err != nil {
		slog.Warn("creating chunk histogram", "error", err)
	}

	return &Pipeline{
		backend:       backend,
		store:         store,
		opts:          opts,
		tracer:        otel.Tracer(instrumentationName),
		chunkCount:    chunkCount,
		chunkDuration: chunkDuration,
	}
}

// Backend returns the speech backend the pipeline calls.
func (p *Pipeline) Backend() tts.Synthesizer { return p.backend }

// MaxWords returns the effective chunk size.
func (p *Pipeline) MaxWords() int { return p.opts.MaxWords }

// Assemble synthesizes req.Text and returns the joined audio. Any chunk
// failure aborts the whole request and no audio is returned. Per-chunk files
// are removed before Assemble returns.
func (p *Pipeline) Assemble(ctx context.Context, req Request) (*AssembledAudio, error) {
	chunks := chunk.Split(req.Text, p.opts.MaxWords)
	if len(chunks) == 0 {
		return nil, newError(KindEmptyInput, -1, nil)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	ctx, span := p.tracer.Start(ctx, "synth.Assemble", trace.WithAttributes(
		attribute.String("request.id", req.ID),
		attribute.String("tts.backend", p.backend.Name()),
		attribute.Int("chunks", len(chunks)),
	))
	defer span.End()

	log := slog.With("request_id", req.ID, "backend", p.backend.Name())
	log.Debug("assembling", "chunks", len(chunks), "concurrency", p.opts.Concurrency)

	scope, err := p.store.NewScope(req.ID)
	if err != nil {
		return nil, p.fail(span, newError(KindInternal, -1, err))
	}
	defer func() {
		if err := scope.Release(); err != nil {
			log.Warn("releasing temp scope", "dir", scope.Dir(), "error", err)
		}
	}()

	opts := tts.SynthesizeOpts{Language: req.Language, Voice: req.Voice, Rate: req.Rate, WorkDir: scope.Dir()}
	encodings := make([]audio.Encoding, len(chunks))

	if p.opts.Concurrency == 1 || len(chunks) == 1 {
		for i, text := range chunks {
			if err := ctx.Err(); err != nil {
				return nil, p.fail(span, newError(KindCanceled, i, err))
			}
			enc, err := p.synthesizeChunk(ctx, scope, i, text, opts)
			if err != nil {
				return nil, p.fail(span, err)
			}
			encodings[i] = enc
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.opts.Concurrency)
		for i, text := range chunks {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return newError(KindCanceled, i, err)
				}
				enc, err := p.synthesizeChunk(gctx, scope, i, text, opts)
				if err != nil {
					return err
				}
				encodings[i] = enc
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, p.fail(span, err)
		}
	}

	out, err := p.concat(scope, encodings)
	if err != nil {
		return nil, p.fail(span, err)
	}
	out.Chunks = len(chunks)
	log.Debug("assembled", "bytes", len(out.Data), "encoding", out.Encoding)
	return out, nil
}

func (p *Pipeline) synthesizeChunk(ctx context.Context, scope *tempstore.Scope, i int, text string, opts tts.SynthesizeOpts) (audio.Encoding, error) {
	ctx, span := p.tracer.Start(ctx, "synth.chunk", trace.WithAttributes(
		attribute.Int("chunk.index", i),
		attribute.Int("chunk.words", chunk.CountWords(text)),
	))
	defer span.End()

	callCtx := ctx
	if p.opts.ChunkTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.opts.ChunkTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := p.backend.Synthesize(callCtx, text, opts)
	if err == nil && (res == nil || len(res.Audio) == 0) {
		err = tts.ErrEmptyAudio
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("backend", p.backend.Name()),
		attribute.String("outcome", outcome),
	)
	if p.chunkDuration != nil {
		p.chunkDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
	if p.chunkCount != nil {
		p.chunkCount.Add(ctx, 1, attrs)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chunk synthesis failed")
		// A canceled request is not the backend's fault; an expired
		// per-chunk deadline is.
		if ctx.Err() != nil {
			return "", newError(KindCanceled, i, ctx.Err())
		}
		return "", newError(KindSynthesisFailure, i, err)
	}

	if _, err := scope.Put(i, res.Artifact()); err != nil {
		return "", newError(KindInternal, i, err)
	}
	return res.Encoding, nil
}

func (p *Pipeline) concat(scope *tempstore.Scope, encodings []audio.Encoding) (*AssembledAudio, error) {
	enc := encodings[0]
	parts := make([]io.ReadSeeker, 0, len(encodings))
	var files []*os.File
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	for i, e := range encodings {
		if e != enc {
			return nil, newError(KindConcatenationFailure, i,
				fmt.Errorf("chunk encoding %q differs from %q: %w", e, enc, audio.ErrFormatMismatch))
		}
		f, err := scope.Open(i)
		if err != nil {
			return nil, newError(KindConcatenationFailure, i, err)
		}
		files = append(files, f)
		parts = append(parts, f)
	}

	out, err := scope.Create("assembled" + enc.Ext())
	if err != nil {
		return nil, newError(KindInternal, -1, err)
	}
	files = append(files, out)

	if err := audio.Concat(enc, parts, out); err != nil {
		return nil, newError(KindConcatenationFailure, -1, err)
	}
	if _, err := out.Seek(0, io.SeekStart); err != nil {
		return nil, newError(KindConcatenationFailure, -1, err)
	}
	data, err := io.ReadAll(out)
	if err != nil {
		return nil, newError(KindConcatenationFailure, -1, err)
	}

	return &AssembledAudio{
		Data:        data,
		Encoding:    enc,
		Filename:    "voice_output" + enc.Ext(),
		ContentType: enc.MIMEType(),
	}, nil
}

func (p *Pipeline) fail(span trace.Span, err error) error {
	kind := KindOf(err)
	span.SetAttributes(attribute.String("error.kind", string(kind)))
	span.RecordError(err)
	span.SetStatus(codes.Error, string(kind))
	return err
}
