// Package espeak implements the TTS Synthesizer by running the local
// espeak-ng (or espeak) binary once per chunk. It needs no network and no
// model files, which makes it the default backend.
package espeak

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/nadzzz/narrator/internal/audio"
	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/tts"
)

// Synthesizer implements tts.Synthesizer and tts.Catalog.
type Synthesizer struct {
	cmd          []string
	defaultVoice string

	mu     sync.Mutex
	voices []tts.Voice // cached after the first successful listing
}

// New parses the configured command line. The command may carry extra
// flags, e.g. "espeak-ng -a 150".
func New(cfg config.EspeakConfig) (*Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse espeak command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("espeak command empty")
	}
	voice := cfg.DefaultVoice
	if voice == "" {
		voice = "en"
	}
	return &Synthesizer{cmd: args, defaultVoice: voice}, nil
}

// Name returns "espeak".
func (s *Synthesizer) Name() string { return "espeak" }

// Synthesize runs espeak with the chunk on stdin and reads back the WAV it
// writes. The rate maps to words per minute.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	voice := opts.Voice
	if voice == "" {
		voice = s.defaultVoice
	}

	// espeak's --stdout header has no data length, so write a real file.
	f, err := os.CreateTemp(opts.WorkDir, "espeak-*.wav")
	if err != nil {
		return nil, fmt.Errorf("creating espeak output: %w", err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	args := append([]string{}, s.cmd[1:]...)
	args = append(args,
		"-v", voice,
		"-s", strconv.Itoa(opts.Rate.WordsPerMinute()),
		"-w", path,
		"--stdin",
	)

	cmd := exec.CommandContext(ctx, s.cmd[0], args...)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	slog.Debug("espeak synthesize", "text_length", len(text), "voice", voice, "wpm", opts.Rate.WordsPerMinute())
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("running espeak: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("running espeak: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading espeak output: %w", err)
	}
	if len(data) <= 44 {
		return nil, tts.ErrEmptyAudio
	}
	return &tts.SynthesizeResult{Audio: data, Encoding: audio.EncodingWAV, Channels: 1}, nil
}

// Voices lists installed voices from "espeak --voices". The list is read
// once and cached.
func (s *Synthesizer) Voices(ctx context.Context) ([]tts.Voice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.voices != nil {
		return s.voices, nil
	}

	args := append(append([]string{}, s.cmd[1:]...), "--voices")
	out, err := exec.CommandContext(ctx, s.cmd[0], args...).Output()
	if err != nil {
		return nil, fmt.Errorf("listing espeak voices: %w", err)
	}
	s.voices = parseVoices(out)
	return s.voices, nil
}

// Close is a no-op.
func (s *Synthesizer) Close() error { return nil }

// Ping checks that the espeak binary is on PATH.
func (s *Synthesizer) Ping(context.Context) error {
	_, err := exec.LookPath(s.cmd[0])
	return err
}

// parseVoices reads the table printed by --voices:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US     (en 2)(en-r 5)
//
// Every voice is also offered as a female variant ("<lang>+f3") because most
// stock espeak voices report male.
func parseVoices(out []byte) []tts.Voice {
	var voices []tts.Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		lang, ageGender := fields[1], fields[2]
		name := strings.ReplaceAll(fields[3], "_", " ")

		gender := tts.InferGender(name)
		switch {
		case strings.HasSuffix(ageGender, "/F"):
			gender = tts.GenderFemale
		case strings.HasSuffix(ageGender, "/M"):
			gender = tts.GenderMale
		}

		voices = append(voices, tts.Voice{ID: lang, Name: name, Language: lang, Gender: gender})
		if gender == tts.GenderMale {
			voices = append(voices, tts.Voice{
				ID:       lang + "+f3",
				Name:     name + " (female)",
				Language: lang,
				Gender:   tts.GenderFemale,
			})
		}
	}
	return voices
}
