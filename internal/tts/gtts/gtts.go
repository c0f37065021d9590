// Package gtts implements the TTS Synthesizer against the Google Translate
// speech endpoint. It is keyed by a language code and a slow flag; there is
// no voice catalog.
package gtts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/nadzzz/narrator/internal/audio"
	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/tts"
)

// maxPieceChars is the longest text the endpoint accepts per request.
const maxPieceChars = 100

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

var languages = []tts.Language{
	{Code: "en", Name: "English"},
	{Code: "hi", Name: "Hindi"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "it", Name: "Italian"},
	{Code: "pt", Name: "Portuguese"},
	{Code: "ja", Name: "Japanese"},
	{Code: "ur", Name: "Urdu"},
}

// Synthesizer implements tts.Synthesizer and tts.LanguageLister.
type Synthesizer struct {
	baseURL     string
	defaultLang string
	limiter     *rate.Limiter
	client      *http.Client
}

// New creates a Google Translate TTS client from config.
func New(cfg config.GTTSConfig) *Synthesizer {
	lang := cfg.DefaultLanguage
	if !Supported(lang) {
		lang = "en"
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Synthesizer{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		defaultLang: lang,
		limiter:     rate.NewLimiter(limit, 1),
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

// Name returns "gtts".
func (s *Synthesizer) Name() string { return "gtts" }

// Languages returns the fixed set of selectable language codes.
func (s *Synthesizer) Languages() []tts.Language { return languages }

// DefaultLanguage returns the language used when none or an unknown one is requested.
func (s *Synthesizer) DefaultLanguage() string { return s.defaultLang }

// Supported reports whether code is one of the offered languages.
func Supported(code string) bool {
	for _, l := range languages {
		if l.Code == code {
			return true
		}
	}
	return false
}

// Synthesize fetches MP3 audio for text. Text longer than the endpoint
// limit is fetched piecewise and joined.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	lang := opts.Language
	if !Supported(lang) {
		lang = s.defaultLang
	}

	pieces := splitPieces(text, maxPieceChars)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("empty text for synthesis")
	}

	slog.Debug("gtts synthesize", "text_length", len(text), "pieces", len(pieces), "language", lang, "slow", opts.Rate.Slow())

	parts := make([][]byte, 0, len(pieces))
	for i, piece := range pieces {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		data, err := s.fetch(ctx, piece, lang, opts.Rate.Slow(), i, len(pieces))
		if err != nil {
			return nil, err
		}
		parts = append(parts, data)
	}

	joined, err := audio.JoinMP3(parts...)
	if err != nil {
		return nil, fmt.Errorf("gtts returned unusable audio: %w", err)
	}
	return &tts.SynthesizeResult{Audio: joined, Encoding: audio.EncodingMP3}, nil
}

func (s *Synthesizer) fetch(ctx context.Context, piece, lang string, slow bool, idx, total int) ([]byte, error) {
	speed := "1"
	if slow {
		speed = "0.3"
	}
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", lang)
	q.Set("q", piece)
	q.Set("ttsspeed", speed)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(piece)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/translate_tts?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", s.baseURL+"/")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gtts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gtts failed (status %d): %s", resp.StatusCode, body)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading gtts response: %w", err)
	}
	if len(data) == 0 {
		return nil, tts.ErrEmptyAudio
	}
	return data, nil
}

// Close is a no-op.
func (s *Synthesizer) Close() error { return nil }

// splitPieces packs whole words into pieces of at most limit runes. A word
// longer than limit is cut into limit-sized runs.
func splitPieces(text string, limit int) []string {
	var (
		pieces []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if curLen > 0 {
			pieces = append(pieces, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, word := range strings.Fields(text) {
		runes := []rune(word)
		for len(runes) > limit {
			flush()
			pieces = append(pieces, string(runes[:limit]))
			runes = runes[limit:]
		}
		n := len(runes)
		if n == 0 {
			continue
		}
		if curLen > 0 && curLen+1+n > limit {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(string(runes))
		curLen += n
	}
	flush()
	return pieces
}
