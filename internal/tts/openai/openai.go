// Package openai implements the TTS Synthesizer using the OpenAI speech API
// (/v1/audio/speech) through the go-openai client.
package openai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/nadzzz/narrator/internal/audio"
	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/tts"
)

// defaultGenders covers the built-in voices; tts.openai.genders overrides it.
var defaultGenders = map[goopenai.SpeechVoice]tts.Gender{
	goopenai.VoiceAlloy:   tts.GenderFemale,
	goopenai.VoiceEcho:    tts.GenderMale,
	goopenai.VoiceFable:   tts.GenderMale,
	goopenai.VoiceOnyx:    tts.GenderMale,
	goopenai.VoiceNova:    tts.GenderFemale,
	goopenai.VoiceShimmer: tts.GenderFemale,
}

var voiceOrder = []goopenai.SpeechVoice{
	goopenai.VoiceAlloy,
	goopenai.VoiceEcho,
	goopenai.VoiceFable,
	goopenai.VoiceOnyx,
	goopenai.VoiceNova,
	goopenai.VoiceShimmer,
}

// Synthesizer implements tts.Synthesizer and tts.Catalog.
type Synthesizer struct {
	client       *goopenai.Client
	model        goopenai.SpeechModel
	defaultVoice goopenai.SpeechVoice
	format       goopenai.SpeechResponseFormat
	encoding     audio.Encoding
	genders      map[goopenai.SpeechVoice]tts.Gender
}

// New creates an OpenAI speech client from config.
func New(cfg config.OpenAIConfig) (*Synthesizer, error) {
	enc, err := audio.ParseEncoding(cfg.ResponseFormat)
	if err != nil {
		return nil, fmt.Errorf("tts.openai.response_format: %w", err)
	}
	format := goopenai.SpeechResponseFormatWav
	if enc == audio.EncodingMP3 {
		format = goopenai.SpeechResponseFormatMp3
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	genders := maps.Clone(defaultGenders)
	for v, g := range cfg.Genders {
		if parsed, ok := tts.ParseGender(g); ok && parsed != "" {
			genders[goopenai.SpeechVoice(v)] = parsed
		}
	}

	voice := goopenai.SpeechVoice(cfg.DefaultVoice)
	if voice == "" {
		voice = goopenai.VoiceAlloy
	}
	model := goopenai.SpeechModel(cfg.Model)
	if model == "" {
		model = goopenai.TTSModel1
	}

	return &Synthesizer{
		client:       goopenai.NewClientWithConfig(clientCfg),
		model:        model,
		defaultVoice: voice,
		format:       format,
		encoding:     enc,
		genders:      genders,
	}, nil
}

// Name returns "openai".
func (s *Synthesizer) Name() string { return "openai" }

// Synthesize calls the speech endpoint once. The rate maps to the speed
// parameter (0.75, 1.0, 1.25).
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	voice := goopenai.SpeechVoice(opts.Voice)
	if voice == "" {
		voice = s.defaultVoice
	}

	slog.Debug("openai synthesize", "text_length", len(text), "voice", voice, "speed", opts.Rate.Speed())

	resp, err := s.client.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: s.format,
		Speed:          opts.Rate.Speed(),
	})
	if err != nil {
		return nil, fmt.Errorf("speech request: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("reading speech response: %w", err)
	}
	if len(data) == 0 {
		return nil, tts.ErrEmptyAudio
	}
	return &tts.SynthesizeResult{Audio: data, Encoding: s.encoding}, nil
}

// Voices lists the built-in voices plus any extra voice named in the gender map.
func (s *Synthesizer) Voices(_ context.Context) ([]tts.Voice, error) {
	out := make([]tts.Voice, 0, len(s.genders))
	seen := make(map[goopenai.SpeechVoice]bool, len(s.genders))
	for _, v := range voiceOrder {
		out = append(out, tts.Voice{ID: string(v), Name: string(v), Gender: s.genders[v]})
		seen[v] = true
	}
	for _, v := range slices.Sorted(maps.Keys(s.genders)) {
		if !seen[v] {
			out = append(out, tts.Voice{ID: string(v), Name: string(v), Gender: s.genders[v]})
		}
	}
	return out, nil
}

// Close is a no-op.
func (s *Synthesizer) Close() error { return nil }
