// Package tts defines the interface for text-to-speech synthesis.
//
// Narrator treats every speech engine as an opaque capability: it hands over
// one chunk of text plus voice, language and rate hints, and receives one
// audio artifact back. Local engines (espeak, piper) and cloud engines (gtts,
// openai) implement the same contract.
package tts

import (
	"context"
	"errors"
	"strings"

	"github.com/nadzzz/narrator/internal/audio"
)

// ErrEmptyAudio is returned by backends that completed a call but produced
// no audio.
var ErrEmptyAudio = errors.New("synthesis returned no audio")

// Rate is the user-facing speed selector.
type Rate string

const (
	RateSlow   Rate = "slow"
	RateNormal Rate = "normal"
	RateFast   Rate = "fast"
)

// ParseRate accepts "slow", "normal" or "fast" in any case. Empty input
// yields RateNormal.
func ParseRate(s string) (Rate, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return RateNormal, nil
	case "slow":
		return RateSlow, nil
	case "fast":
		return RateFast, nil
	default:
		return "", errors.New("rate must be one of slow|normal|fast")
	}
}

// WordsPerMinute maps the rate to a speaking speed for engines that take
// words per minute.
func (r Rate) WordsPerMinute() int {
	switch r {
	case RateSlow:
		return 120
	case RateFast:
		return 190
	default:
		return 160
	}
}

// Slow reports whether the cloud slow flag should be set.
func (r Rate) Slow() bool { return r == RateSlow }

// Speed maps the rate to a playback multiplier (1.0 = normal).
func (r Rate) Speed() float64 {
	switch r {
	case RateSlow:
		return 0.75
	case RateFast:
		return 1.25
	default:
		return 1.0
	}
}

// SynthesizeOpts controls synthesis behavior.
type SynthesizeOpts struct {
	// Language is the ISO-639-1 code (e.g., "en", "fr") used by backends
	// that select voices by language.
	Language string

	// Voice is a backend-specific voice ID. Empty selects the backend default.
	Voice string

	// Rate is the requested speaking speed.
	Rate Rate

	// WorkDir is where backends place scratch files. Empty means os.TempDir.
	WorkDir string
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Name returns the backend identifier (e.g., "espeak", "gtts").
	Name() string

	// Synthesize generates one audio artifact for the given text.
	Synthesize(ctx context.Context, text string, opts SynthesizeOpts) (*SynthesizeResult, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// Pinger is implemented by backends that can cheaply check they are usable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SynthesizeResult holds the output of TTS synthesis.
type SynthesizeResult struct {
	// Audio is the synthesized audio file (WAV or MP3 bytes).
	Audio []byte

	// Encoding tags the container of Audio.
	Encoding audio.Encoding

	// SampleRate is the audio sample rate in Hz when known (0 for MP3).
	SampleRate int

	// Channels is the number of audio channels when known.
	Channels int
}

// Artifact converts the result into an audio artifact.
func (r *SynthesizeResult) Artifact() audio.Artifact {
	return audio.Artifact{Data: r.Audio, Encoding: r.Encoding}
}
