// Package http implements the HTTP transport for narrator.
//
// This transport serves the single-page text-to-voice form, a JSON/audio
// API for programmatic clients and the Swagger UI for the API.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/nadzzz/narrator/docs" // registers the OpenAPI document
	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/history"
	"github.com/nadzzz/narrator/internal/transport"
	"github.com/nadzzz/narrator/internal/tts"
)

// Service answers the read-only API calls that do not go through the
// synthesis handler.
type Service interface {
	Voices(ctx context.Context, gender tts.Gender) ([]tts.Voice, error)
	Languages() ([]tts.Language, string)
	AuthRequired() bool
	BackendName() string
	History(ctx context.Context, password string, limit int) ([]history.Entry, error)
}

// Options configures the HTTP transport.
type Options struct {
	HTTP      config.HTTPConfig
	UI        config.UIConfig
	RateLimit config.RateLimitConfig
	// MaxChars is shown by the form's character counter; 0 hides the limit.
	MaxChars int
}

// Transport implements transport.Transport over HTTP.
type Transport struct {
	opts   Options
	svc    Service
	server *http.Server
}

// New creates a new HTTP transport.
func New(opts Options, svc Service) *Transport {
	return &Transport{opts: opts, svc: svc}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Handler builds the router. Listen serves it; tests use it directly.
func (t *Transport) Handler(handler transport.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: t.opts.HTTP.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Narrator-Password", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-ID", "X-Narrator-Chunks", "X-Narrator-Notice", "X-Narrator-URL"},
	}))

	// GET / renders the form.
	r.Get("/", t.handleForm)

	r.Route("/api", func(api chi.Router) {
		// POST /api/synthesize turns text into one audio file.
		api.Group(func(g chi.Router) {
			if n := t.opts.RateLimit.RequestsPerMinute; n > 0 {
				g.Use(httprate.LimitByIP(n, time.Minute))
			}
			g.Post("/synthesize", func(w http.ResponseWriter, r *http.Request) {
				t.handleSynthesize(w, r, handler)
			})
		})
		api.Get("/voices", t.handleVoices)
		api.Get("/languages", t.handleLanguages)
		api.Get("/history", t.handleHistory)
	})

	// Swagger UI serves the registered OpenAPI document.
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	return r
}

// Listen starts the HTTP server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.opts.HTTP.Port),
		Handler:           t.Handler(handler),
		ReadHeaderTimeout: 10 * time.Second,
		// Long texts are synthesized while the client waits.
		WriteTimeout: 10 * time.Minute,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	slog.Info("http transport listening", "port", t.opts.HTTP.Port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}
