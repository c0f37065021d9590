package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/nadzzz/narrator/internal/message"
	"github.com/nadzzz/narrator/internal/synth"
	"github.com/nadzzz/narrator/internal/transport"
	"github.com/nadzzz/narrator/internal/tts"
)

// maxBody bounds request bodies; the text itself is limited by config.
const maxBody = 1 << 20

// statusClientClosed is the nginx convention for a client that went away.
const statusClientClosed = 499

// SynthesizeRequest is the JSON body of POST /api/synthesize.
type SynthesizeRequest struct {
	Text     string `json:"text" example:"Hello from narrator."`
	Voice    string `json:"voice,omitempty" example:"en-us"`
	Gender   string `json:"gender,omitempty" enums:"male,female"`
	Language string `json:"language,omitempty" example:"en"`
	Rate     string `json:"rate,omitempty" enums:"slow,normal,fast"`
	Password string `json:"password,omitempty"`
	Publish  bool   `json:"publish,omitempty"`
}

// handleSynthesize processes a POST /api/synthesize request.
//
// @Summary     Synthesize text to speech
// @Description Splits the text into chunks, synthesizes each chunk with the configured backend
// @Description and returns one audio file. With format=json the audio is base64 encoded in the result.
// @Tags        synthesize
// @Accept      json
// @Accept      x-www-form-urlencoded
// @Produce     audio/wav
// @Produce     audio/mp3
// @Produce     json
// @Param       request   body   SynthesizeRequest  true   "Text and voice options"
// @Param       format    query  string             false  "Set to json for a JSON result"  Enums(json)
// @Param       download  query  bool               false  "Send the audio as an attachment"
// @Success     200  {object}  message.Result  "Audio bytes, or the result when format=json"
// @Failure     400  {object}  message.Result  "Empty or oversize text"
// @Failure     401  {object}  message.Result  "Invalid password"
// @Failure     429  {string}  string          "Too many requests"
// @Failure     502  {object}  message.Result  "Synthesis or concatenation failed"
// @Router      /api/synthesize [post]
func (t *Transport) handleSynthesize(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	body, err := decodeSynthesize(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := message.NewRequest(t.Name())
	if id := r.Header.Get("X-Request-ID"); id != "" {
		if _, err := uuid.Parse(id); err == nil {
			req.ID = id
		}
	}
	req.Text = body.Text
	req.Voice = body.Voice
	req.Gender = body.Gender
	req.Language = body.Language
	req.Rate = body.Rate
	req.Password = body.Password
	req.Publish = body.Publish

	result, err := handler(r.Context(), req)
	if err != nil {
		slog.Error("synthesize failed", "request_id", req.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("X-Request-ID", result.RequestID)
	if !result.OK() {
		writeJSON(w, statusFor(result), result)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		result.EncodeAudio()
		writeJSON(w, http.StatusOK, result)
		return
	}

	disposition := "inline"
	if download, _ := strconv.ParseBool(r.URL.Query().Get("download")); download {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": result.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Audio)))
	w.Header().Set("X-Narrator-Chunks", strconv.Itoa(result.Chunks))
	for _, n := range result.Notices {
		w.Header().Add("X-Narrator-Notice", n)
	}
	if result.URL != "" {
		w.Header().Set("X-Narrator-URL", result.URL)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Audio)
}

// decodeSynthesize reads a JSON or form-encoded body.
func decodeSynthesize(w http.ResponseWriter, r *http.Request) (SynthesizeRequest, error) {
	var body SynthesizeRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return body, errors.New("invalid json: " + err.Error())
		}
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxBody); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return body, errors.New("invalid form: " + err.Error())
		}
		body.Text = r.FormValue("text")
		body.Voice = r.FormValue("voice")
		body.Gender = r.FormValue("gender")
		body.Language = r.FormValue("language")
		body.Rate = r.FormValue("rate")
		body.Password = r.FormValue("password")
		body.Publish, _ = strconv.ParseBool(r.FormValue("publish"))
	default:
		return body, errors.New("unsupported content type " + strconv.Quote(mediaType))
	}
	return body, nil
}

// statusFor maps a failed result to an HTTP status.
func statusFor(res *message.Result) int {
	switch synth.Kind(res.ErrorKind) {
	case synth.KindEmptyInput, synth.KindOversizeInput:
		return http.StatusBadRequest
	case synth.KindUnauthenticated:
		return http.StatusUnauthorized
	case synth.KindCanceled:
		return statusClientClosed
	case synth.KindSynthesisFailure, synth.KindConcatenationFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// VoicesResponse lists the backend's voices.
type VoicesResponse struct {
	Backend string      `json:"backend"`
	Voices  []tts.Voice `json:"voices"`
}

// handleVoices processes GET /api/voices.
//
// @Summary     List voices
// @Description Lists the voices of the active backend, optionally filtered by gender.
// @Description Backends keyed by language return an empty list.
// @Tags        catalog
// @Produce     json
// @Param       gender  query     string  false  "Voice gender"  Enums(male, female)
// @Success     200     {object}  VoicesResponse
// @Failure     400     {string}  string  "Unknown gender"
// @Failure     502     {string}  string  "Backend unavailable"
// @Router      /api/voices [get]
func (t *Transport) handleVoices(w http.ResponseWriter, r *http.Request) {
	gender, ok := tts.ParseGender(r.URL.Query().Get("gender"))
	if !ok {
		http.Error(w, "unknown gender", http.StatusBadRequest)
		return
	}
	voices, err := t.svc.Voices(r.Context(), gender)
	if err != nil {
		slog.Warn("listing voices failed", "error", err)
		http.Error(w, "voice catalog unavailable", http.StatusBadGateway)
		return
	}
	if voices == nil {
		voices = []tts.Voice{}
	}
	writeJSON(w, http.StatusOK, VoicesResponse{Backend: t.svc.BackendName(), Voices: voices})
}

// LanguagesResponse lists selectable languages.
type LanguagesResponse struct {
	Default   string         `json:"default,omitempty"`
	Languages []tts.Language `json:"languages"`
}

// handleLanguages processes GET /api/languages.
//
// @Summary     List languages
// @Description Lists the language codes accepted by backends keyed by language.
// @Tags        catalog
// @Produce     json
// @Success     200  {object}  LanguagesResponse
// @Router      /api/languages [get]
func (t *Transport) handleLanguages(w http.ResponseWriter, r *http.Request) {
	langs, def := t.svc.Languages()
	if langs == nil {
		langs = []tts.Language{}
	}
	writeJSON(w, http.StatusOK, LanguagesResponse{Default: def, Languages: langs})
}

// handleHistory processes GET /api/history.
//
// @Summary     Recent requests
// @Description Lists recent request outcomes, newest first. Requires the password when the gate is enabled.
// @Tags        history
// @Produce     json
// @Param       limit                query   int     false  "Maximum entries"  default(50)
// @Param       X-Narrator-Password  header  string  false  "Password"
// @Success     200  {array}   history.Entry
// @Failure     401  {string}  string  "Invalid password"
// @Router      /api/history [get]
func (t *Transport) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	password := r.Header.Get("X-Narrator-Password")

	entries, err := t.svc.History(r.Context(), password, limit)
	if err != nil {
		if synth.KindOf(err) == synth.KindUnauthenticated {
			http.Error(w, synth.UserMessage(err), http.StatusUnauthorized)
			return
		}
		slog.Error("reading history failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response failed", "error", err)
	}
}
