package http

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/nadzzz/narrator/internal/tts"
)

//go:embed templates/index.html
var templateFS embed.FS

var formTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type formData struct {
	Title           string
	Tagline         string
	DonationText    string
	DonationURL     string
	AuthRequired    bool
	MaxChars        int
	Backend         string
	Languages       []tts.Language
	DefaultLanguage string
	Voices          []tts.Voice
}

// handleForm renders the text-to-voice form.
func (t *Transport) handleForm(w http.ResponseWriter, r *http.Request) {
	langs, def := t.svc.Languages()
	voices, err := t.svc.Voices(r.Context(), "")
	if err != nil {
		slog.Warn("listing voices for form failed", "error", err)
		voices = nil
	}
	data := formData{
		Title:           t.opts.UI.Title,
		Tagline:         t.opts.UI.Tagline,
		DonationText:    t.opts.UI.DonationText,
		DonationURL:     t.opts.UI.DonationURL,
		AuthRequired:    t.svc.AuthRequired(),
		MaxChars:        t.opts.MaxChars,
		Backend:         t.svc.BackendName(),
		Languages:       langs,
		DefaultLanguage: def,
		Voices:          voices,
	}

	var buf bytes.Buffer
	if err := formTemplate.Execute(&buf, data); err != nil {
		slog.Error("rendering form failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
