package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nadzzz/narrator/internal/auth"
	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/dispatch"
	"github.com/nadzzz/narrator/internal/history"
	"github.com/nadzzz/narrator/internal/storage"
	"github.com/nadzzz/narrator/internal/synth"
	"github.com/nadzzz/narrator/internal/tempstore"
	"github.com/nadzzz/narrator/internal/tts"
	"github.com/nadzzz/narrator/internal/tts/espeak"
	"github.com/nadzzz/narrator/internal/tts/gtts"
	"github.com/nadzzz/narrator/internal/tts/openai"
	"github.com/nadzzz/narrator/internal/tts/piper"
)

// app is the wired request pipeline shared by serve and the local commands.
type app struct {
	backend    tts.Synthesizer
	history    *history.Store
	dispatcher *dispatch.Dispatcher
}

// newBackend initializes the speech backend named in config.
func newBackend(cfg *config.Config) (tts.Synthesizer, error) {
	switch cfg.Synthesis.Backend {
	case "espeak":
		s, err := espeak.New(cfg.TTS.Espeak)
		if err != nil {
			return nil, err
		}
		slog.Info("using espeak backend", "command", cfg.TTS.Espeak.Command)
		return s, nil
	case "piper":
		slog.Info("using piper backend", "endpoint", cfg.TTS.Piper.Endpoint)
		return piper.New(cfg.TTS.Piper), nil
	case "gtts":
		slog.Info("using gtts backend", "base_url", cfg.TTS.GTTS.BaseURL)
		return gtts.New(cfg.TTS.GTTS), nil
	case "openai":
		s, err := openai.New(cfg.TTS.OpenAI)
		if err != nil {
			return nil, err
		}
		slog.Info("using OpenAI backend", "model", cfg.TTS.OpenAI.Model)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown synthesis backend %q", cfg.Synthesis.Backend)
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	backend, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}

	store, err := tempstore.New(cfg.Synthesis.TempDir)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	gate, err := auth.New(cfg.Auth)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	hist, err := history.Open(ctx, cfg.History)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("opening history: %w", err)
	}

	var publisher storage.Publisher
	if cfg.Storage.S3.Enabled {
		s3, err := storage.NewS3(ctx, cfg.Storage.S3)
		if err != nil {
			_ = backend.Close()
			_ = hist.Close()
			return nil, fmt.Errorf("connecting to object storage: %w", err)
		}
		publisher = s3
	}

	pipeline := synth.New(backend, store, synth.Options{
		MaxWords:     cfg.Synthesis.MaxWords,
		ChunkTimeout: cfg.Synthesis.ChunkTimeout,
		Concurrency:  cfg.Synthesis.Concurrency,
	})

	return &app{
		backend: backend,
		history: hist,
		dispatcher: dispatch.New(dispatch.Options{
			Pipeline: pipeline,
			Limits: synth.Limits{
				MaxChars:      cfg.Synthesis.MaxChars,
				MaxWordsTotal: cfg.Synthesis.MaxWordsTotal,
				Policy:        synth.OversizePolicy(cfg.Synthesis.OversizePolicy),
				LongTextWords: cfg.Synthesis.LongTextWords,
			},
			Gate:      gate,
			History:   hist,
			Publisher: publisher,
		}),
	}, nil
}

func (a *app) Close() error {
	return errors.Join(a.backend.Close(), a.history.Close())
}
