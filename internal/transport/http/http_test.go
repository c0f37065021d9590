package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadzzz/narrator/internal/config"
	"github.com/nadzzz/narrator/internal/history"
	"github.com/nadzzz/narrator/internal/message"
	"github.com/nadzzz/narrator/internal/synth"
	"github.com/nadzzz/narrator/internal/tts"
)

type fakeService struct {
	auth     bool
	noVoices bool
}

func (f *fakeService) Voices(_ context.Context, g tts.Gender) ([]tts.Voice, error) {
	if f.noVoices {
		return nil, nil
	}
	voices := []tts.Voice{
		{ID: "david", Name: "David", Gender: tts.GenderMale},
		{ID: "zira", Name: "Zira", Gender: tts.GenderFemale},
	}
	return tts.FilterByGender(voices, g), nil
}

func (f *fakeService) Languages() ([]tts.Language, string) {
	return []tts.Language{{Code: "en", Name: "English"}, {Code: "hi", Name: "Hindi"}}, "en"
}

func (f *fakeService) AuthRequired() bool  { return f.auth }
func (f *fakeService) BackendName() string { return "fake" }

func (f *fakeService) History(_ context.Context, password string, _ int) ([]history.Entry, error) {
	if f.auth && password != "secret" {
		return nil, synth.Unauthenticated(nil)
	}
	return []history.Entry{{RequestID: "r1", Outcome: "ok"}}, nil
}

// echoHandler returns the request text as "audio" so tests can see what the
// transport decoded.
func echoHandler(got **message.Request) func(context.Context, *message.Request) (*message.Result, error) {
	return func(_ context.Context, req *message.Request) (*message.Result, error) {
		*got = req
		if strings.TrimSpace(req.Text) == "" {
			return &message.Result{
				RequestID: req.ID,
				Error:     synth.MessageEmptyInput,
				ErrorKind: string(synth.KindEmptyInput),
			}, nil
		}
		if req.Text == "explode" {
			return &message.Result{
				RequestID: req.ID,
				Error:     synth.MessageFailed,
				ErrorKind: string(synth.KindSynthesisFailure),
			}, nil
		}
		return &message.Result{
			RequestID:   req.ID,
			Audio:       []byte("RIFF" + req.Text),
			ContentType: "audio/wav",
			Filename:    "voice_output.wav",
			Chunks:      1,
			Notices:     []string{"Long text detected (1 words). Audio will be generated in safe chunks."},
		}, nil
	}
}

func newHandler(t *testing.T, svc *fakeService, rpm int, got **message.Request) http.Handler {
	t.Helper()
	tr := New(Options{
		HTTP:      config.HTTPConfig{AllowedOrigins: []string{"*"}},
		UI:        config.UIConfig{Title: "Free Text-to-Voice Generator", DonationText: "Buy us a coffee", DonationURL: "https://example.com/donate"},
		RateLimit: config.RateLimitConfig{RequestsPerMinute: rpm},
		MaxChars:  5000,
	}, svc)
	return tr.Handler(echoHandler(got))
}

func postJSON(t *testing.T, h http.Handler, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(string(b)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSynthesizeReturnsAudio(t *testing.T) {
	var got *message.Request
	h := newHandler(t, &fakeService{}, 0, &got)

	rec := postJSON(t, h, "/api/synthesize", SynthesizeRequest{Text: "hello", Gender: "female", Rate: "slow", Language: "hi"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	assert.Equal(t, "inline; filename=voice_output.wav", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "1", rec.Header().Get("X-Narrator-Chunks"))
	assert.NotEmpty(t, rec.Header().Get("X-Narrator-Notice"))
	assert.Equal(t, "RIFFhello", rec.Body.String())

	require.NotNil(t, got)
	assert.Equal(t, "http", got.Source)
	assert.Equal(t, "female", got.Gender)
	assert.Equal(t, "slow", got.Rate)
	assert.Equal(t, "hi", got.Language)
	assert.Equal(t, got.ID, rec.Header().Get("X-Request-ID"))
}

func TestSynthesizeDownload(t *testing.T) {
	var got *message.Request
	h := newHandler(t, &fakeService{}, 0, &got)

	rec := postJSON(t, h, "/api/synthesize?download=1", SynthesizeRequest{Text: "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment; filename=voice_output.wav", rec.Header().Get("Content-Disposition"))
}

func TestSynthesizeJSONFormat(t *testing.T) {
	var got *message.Request
	h := newHandler(t, &fakeService{}, 0, &got)

	rec := postJSON(t, h, "/api/synthesize?format=json", SynthesizeRequest{Text: "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var res message.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	data, err := base64.StdEncoding.DecodeString(res.AudioBase64)
	require.NoError(t, err)
	assert.Equal(t, "RIFFhello", string(data))
	assert.Equal(t, "voice_output.wav", res.Filename)
}

func TestSynthesizeForm(t *testing.T) {
	var got *message.Request
	h := newHandler(t, &fakeService{}, 0, &got)

	form := url.Values{"text": {"from a form"}, "rate": {"fast"}, "password": {"pw"}}
	req := httptest.NewRequest(http.MethodPost, "/api/synthesize", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "from a form", got.Text)
	assert.Equal(t, "fast", got.Rate)
	assert.Equal(t, "pw", got.Password)
}

func TestSynthesizeErrorStatus(t *testing.T) {
	var got *message.Request
	h := newHandler(t, &fakeService{}, 0, &got)

	rec := postJSON(t, h, "/api/synthesize", SynthesizeRequest{Text: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var res message.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, synth.MessageEmptyInput, res.Error)

	rec = postJSON(t, h, "/api/synthesize", SynthesizeRequest{Text: "explode"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), synth.MessageFailed)
}

func TestSynthesizeBadBody(t *testing.T) {
	var got *message.Request
	h := newHandler(t, &fakeService{}, 0, &got)

	req := httptest.NewRequest(http.MethodPost, "/api/synthesize", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/synthesize", strings.NewReader("hello"))
	req.Header.Set("Content-Type", "text/plain")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, got, "handler must not run for undecodable bodies")
}

func TestStatusFor(t *testing.T) {
	cases := map[synth.Kind]int{
		synth.KindEmptyInput:           http.StatusBadRequest,
		synth.KindOversizeInput:        http.StatusBadRequest,
		synth.KindUnauthenticated:      http.StatusUnauthorized,
		synth.KindCanceled:             statusClientClosed,
		synth.KindSynthesisFailure:     http.StatusBadGateway,
		synth.KindConcatenationFailure: http.StatusBadGateway,
		synth.KindInternal:             http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, statusFor(&message.Result{ErrorKind: string(kind)}), kind)
	}
}

func TestRateLimit(t *testing.T) {
	var got *message.Request
	h := newHandler(t, &fakeService{}, 1, &got)

	assert.Equal(t, http.StatusOK, postJSON(t, h, "/api/synthesize", SynthesizeRequest{Text: "one"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, postJSON(t, h, "/api/synthesize", SynthesizeRequest{Text: "two"}).Code)
}

func TestFormPage(t *testing.T) {
	var got *message.Request
	h := newHandler(t, &fakeService{auth: true}, 0, &got)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "<title>Free Text-to-Voice Generator</title>")
	assert.Contains(t, body, "Buy us a coffee")
	assert.Contains(t, body, `name="password"`)
	assert.Contains(t, body, `<option value="en" selected>English</option>`)
	assert.Contains(t, body, `data-max="5000"`)
	assert.Contains(t, body, `<select name="voice" id="voice">`)
	assert.Contains(t, body, `<option value="">Default</option>`)
	assert.Contains(t, body, `<option value="zira">Zira</option>`)
	assert.Contains(t, body, `<option value="david">David</option>`)
}

func TestFormPageWithoutCatalog(t *testing.T) {
	var got *message.Request
	h := newHandler(t, &fakeService{noVoices: true}, 0, &got)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `name="voice"`)
}

func TestVoicesEndpoint(t *testing.T) {
	var got *message.Request
	h := newHandler(t, &fakeService{}, 0, &got)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/voices?gender=female", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VoicesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "fake", resp.Backend)
	require.Len(t, resp.Voices, 1)
	assert.Equal(t, "zira", resp.Voices[0].ID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/voices?gender=robot", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLanguagesEndpoint(t *testing.T) {
	var got *message.Request
	h := newHandler(t, &fakeService{}, 0, &got)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/languages", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LanguagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "en", resp.Default)
	assert.Len(t, resp.Languages, 2)
}

func TestHistoryEndpointGated(t *testing.T) {
	var got *message.Request
	h := newHandler(t, &fakeService{auth: true}, 0, &got)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=5", nil)
	req.Header.Set("X-Narrator-Password", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []history.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "r1", entries[0].RequestID)
}

func TestCORSPreflight(t *testing.T) {
	var got *message.Request
	h := newHandler(t, &fakeService{}, 0, &got)

	req := httptest.NewRequest(http.MethodOptions, "/api/synthesize", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSwaggerDoc(t *testing.T) {
	var got *message.Request
	h := newHandler(t, &fakeService{}, 0, &got)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/synthesize")
}
