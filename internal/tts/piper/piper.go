// Package piper implements the TTS Synthesizer using a Piper Wyoming protocol server.
//
// Piper is a fast, local neural text-to-speech system. The linuxserver/piper
// container exposes the Wyoming protocol on TCP port 10200. Each chunk is one
// connection: a "synthesize" event goes out, audio-start, audio-chunk* and
// audio-stop come back.
package piper

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/nadzzz/narrator/internal/audio"
	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/tts"
)

// defaultVoices maps ISO-639-1 language codes to Piper voice model names.
var defaultVoices = map[string]string{
	"en": "en_US-lessac-medium",
	"fr": "fr_FR-siwis-medium",
	"es": "es_ES-mls_10246-low",
	"de": "de_DE-thorsten-medium",
	"it": "it_IT-riccardo-x_low",
	"pt": "pt_BR-faber-medium",
	"hi": "hi_IN-pratham-medium",
	"ja": "ja_JP-amitaro-medium",
}

// Synthesizer implements tts.Synthesizer and tts.Catalog using the Wyoming protocol.
type Synthesizer struct {
	endpoint  string            // default host:port of the Piper Wyoming server
	endpoints map[string]string // language -> host:port for per-language Piper instances
	voices    map[string]string // language -> voice name
	genders   map[string]tts.Gender
	dialer    net.Dialer
}

// New creates a new Piper synthesizer from config.
func New(cfg config.PiperConfig) *Synthesizer {
	voices := maps.Clone(defaultVoices)
	maps.Copy(voices, cfg.Voices)

	endpoints := make(map[string]string, len(cfg.Endpoints))
	for lang, ep := range cfg.Endpoints {
		endpoints[lang] = cleanEndpoint(ep)
	}

	genders := make(map[string]tts.Gender, len(cfg.Genders))
	for name, g := range cfg.Genders {
		if parsed, ok := tts.ParseGender(g); ok && parsed != "" {
			genders[name] = parsed
		}
	}

	return &Synthesizer{
		endpoint:  cleanEndpoint(cfg.Endpoint),
		endpoints: endpoints,
		voices:    voices,
		genders:   genders,
		dialer:    net.Dialer{Timeout: 10 * time.Second},
	}
}

func cleanEndpoint(ep string) string {
	ep = strings.TrimPrefix(ep, "tcp://")
	return strings.TrimPrefix(ep, "http://")
}

// Name returns "piper".
func (s *Synthesizer) Name() string { return "piper" }

// Synthesize sends text to the Piper server and returns synthesized audio as WAV.
// The Wyoming synthesize event carries no speed setting, so opts.Rate is ignored.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	if text == "" {
		return nil, fmt.Errorf("empty text for synthesis")
	}

	voice := opts.Voice
	if voice == "" {
		voice = s.voices[opts.Language]
	}
	if voice == "" {
		voice = s.voices["en"]
	}
	if opts.Rate != "" && opts.Rate != tts.RateNormal {
		slog.Debug("piper ignores speaking rate", "rate", opts.Rate)
	}

	endpoint := s.endpointFor(opts.Language)
	if endpoint == "" {
		return nil, fmt.Errorf("no piper endpoint configured for language %q", opts.Language)
	}

	slog.Debug("piper synthesize", "text_length", len(text), "voice", voice, "language", opts.Language, "endpoint", endpoint)

	conn, r, err := s.dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	req := event{
		Type: "synthesize",
		Data: map[string]any{
			"text":  text,
			"voice": map[string]any{"name": voice},
		},
	}
	if err := writeEvent(conn, req, nil); err != nil {
		return nil, fmt.Errorf("sending synthesize event: %w", err)
	}

	var (
		pcm        bytes.Buffer
		sampleRate = 22050
		channels   = 1
		width      = 2
	)
	for {
		evt, payload, err := readEvent(r)
		if err != nil {
			return nil, fmt.Errorf("reading piper event: %w", err)
		}

		switch evt.Type {
		case "audio-start":
			if v, ok := evt.Data["rate"].(float64); ok {
				sampleRate = int(v)
			}
			if v, ok := evt.Data["channels"].(float64); ok {
				channels = int(v)
			}
			if v, ok := evt.Data["width"].(float64); ok {
				width = int(v)
			}
		case "audio-chunk":
			pcm.Write(payload)
		case "audio-stop":
			if pcm.Len() == 0 {
				return nil, tts.ErrEmptyAudio
			}
			wavData, err := audio.PCMToWAV(pcm.Bytes(), sampleRate, channels, width)
			if err != nil {
				return nil, err
			}
			return &tts.SynthesizeResult{
				Audio:      wavData,
				Encoding:   audio.EncodingWAV,
				SampleRate: sampleRate,
				Channels:   channels,
			}, nil
		case "error":
			msg := "unknown error"
			if t, ok := evt.Data["text"].(string); ok {
				msg = t
			}
			return nil, fmt.Errorf("piper error: %s", msg)
		default:
			slog.Debug("piper unknown event", "type", evt.Type)
		}
	}
}

// Voices asks the default endpoint to describe its installed voices. When the
// server cannot be reached, the configured per-language voices are listed.
// Gender comes from tts.piper.genders or is inferred from the voice name.
func (s *Synthesizer) Voices(ctx context.Context) ([]tts.Voice, error) {
	described, err := s.describe(ctx)
	if err != nil {
		slog.Debug("piper describe failed, listing configured voices", "error", err)
	}
	if len(described) > 0 {
		return described, nil
	}

	out := make([]tts.Voice, 0, len(s.voices))
	for _, lang := range slices.Sorted(maps.Keys(s.voices)) {
		name := s.voices[lang]
		out = append(out, tts.Voice{ID: name, Name: name, Language: lang, Gender: s.genderOf(name)})
	}
	return out, nil
}

func (s *Synthesizer) describe(ctx context.Context) ([]tts.Voice, error) {
	endpoint := s.endpointFor("")
	if endpoint == "" {
		return nil, fmt.Errorf("no piper endpoint configured")
	}
	conn, r, err := s.dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := writeEvent(conn, event{Type: "describe"}, nil); err != nil {
		return nil, fmt.Errorf("sending describe event: %w", err)
	}
	for {
		evt, _, err := readEvent(r)
		if err != nil {
			return nil, err
		}
		if evt.Type != "info" {
			continue
		}
		inf, err := decodeInfo(evt.Data)
		if err != nil {
			return nil, fmt.Errorf("decoding info: %w", err)
		}
		var out []tts.Voice
		for _, prog := range inf.TTS {
			for _, v := range prog.Voices {
				lang := ""
				if len(v.Languages) > 0 {
					lang = v.Languages[0]
				}
				display := v.Name
				if v.Description != "" {
					display = v.Description
				}
				out = append(out, tts.Voice{ID: v.Name, Name: display, Language: lang, Gender: s.genderOf(v.Name)})
			}
		}
		return out, nil
	}
}

func (s *Synthesizer) genderOf(name string) tts.Gender {
	if g, ok := s.genders[name]; ok {
		return g
	}
	return tts.InferGender(name)
}

// endpointFor returns the per-language endpoint if configured, else the default.
func (s *Synthesizer) endpointFor(lang string) string {
	if ep := s.endpoints[lang]; ep != "" {
		return ep
	}
	return s.endpoint
}

func (s *Synthesizer) dial(ctx context.Context, endpoint string) (net.Conn, *bufio.Reader, error) {
	conn, err := s.dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to piper: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}
	return conn, bufio.NewReader(conn), nil
}

// Ping checks that the default Piper endpoint accepts connections.
func (s *Synthesizer) Ping(ctx context.Context) error {
	conn, _, err := s.dial(ctx, s.endpoint)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Close is a no-op; connections are per-request.
func (s *Synthesizer) Close() error { return nil }
