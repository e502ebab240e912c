package internal

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"

	"roomchat/internal/rooms"
)

const (
	homePage = "home.html"
	roomPage = "room.html"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type homeData struct {
	Error string
	Code  string
	Name  string
}

type roomData struct {
	Code          string
	Name          string
	Messages      []rooms.Message
	SocketPath    string
	MaxUploadSize int64
	Accept        string
}

// renderPage executes into a buffer first so a template failure still yields
// a clean 500.
func renderPage(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("render page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
