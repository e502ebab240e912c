package internal

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"roomchat/internal/rooms"
)

const (
	errNameRequired = "Please enter a name."
	errCodeRequired = "Please enter a room code."
	errRoomMissing  = "Room does not exist."
	errTooManyRooms = "Too many new rooms from your address. Try again shortly."
	errCreateFailed = "Could not save the new room. Try again."
)

type entryResponse struct {
	Room string `json:"room"`
	Name string `json:"name"`
}

type roomResponse struct {
	Code        string          `json:"code"`
	MemberCount int             `json:"memberCount"`
	Messages    []rooms.Message `json:"messages"`
}

// HandleEntry serves the entry form and processes create/join submissions.
// Any previous binding is dropped first; a successful submission binds the
// session to the chosen room and redirects to the chat view. Clients that
// accept application/json get JSON instead of HTML.
func (s *Server) HandleEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sessions.Clear(w, r)
		renderPage(w, http.StatusOK, homePage, homeData{})
		return
	}
	if err := r.ParseForm(); err != nil {
		s.entryError(w, r, http.StatusBadRequest, homeData{Error: "Invalid form submission."})
		return
	}
	name := strings.TrimSpace(r.PostFormValue("name"))
	code := rooms.NormalizeCode(r.PostFormValue("code"))
	_, join := r.PostForm["join"]
	_, create := r.PostForm["create"]
	data := homeData{Name: name, Code: code}

	if name == "" {
		data.Error = errNameRequired
		s.entryError(w, r, http.StatusBadRequest, data)
		return
	}
	if join && code == "" {
		data.Error = errCodeRequired
		s.entryError(w, r, http.StatusBadRequest, data)
		return
	}

	room := code
	if create {
		if !s.createLimiter.Allow(clientIP(r)) {
			data.Error = errTooManyRooms
			s.entryError(w, r, http.StatusTooManyRequests, data)
			return
		}
		created, err := s.store.CreateRoom(r.Context())
		if err != nil {
			log.Error().Err(err).Str("room", created).Msg("create room")
			data.Error = errCreateFailed
			s.entryError(w, r, http.StatusInternalServerError, data)
			return
		}
		s.metrics.IncRoomCreated()
		log.Info().Str("room", created).Str("name", name).Msg("room created")
		room = created
	} else if !s.store.Exists(code) {
		data.Error = errRoomMissing
		s.entryError(w, r, http.StatusBadRequest, data)
		return
	}

	s.sessions.Bind(w, r, Binding{Room: room, Name: name})
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, entryResponse{Room: room, Name: name})
		return
	}
	http.Redirect(w, r, "/room", http.StatusFound)
}

// entryError clears the binding and re-renders the entry form with the error.
// Browsers get the page with 200 like a normal render; JSON clients get status.
func (s *Server) entryError(w http.ResponseWriter, r *http.Request, status int, data homeData) {
	s.sessions.Clear(w, r)
	if wantsJSON(r) {
		writeError(w, status, errors.New(data.Error))
		return
	}
	renderPage(w, http.StatusOK, homePage, data)
}

// HandleRoom renders the chat view for the bound room, or sends the visitor
// back to the entry form.
func (s *Server) HandleRoom(w http.ResponseWriter, r *http.Request) {
	binding, ok := BindingFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	room, exists := s.store.Room(binding.Room)
	if !exists {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	renderPage(w, http.StatusOK, roomPage, roomData{
		Code:          binding.Room,
		Name:          binding.Name,
		Messages:      room.Messages,
		SocketPath:    s.socketPath,
		MaxUploadSize: s.maxUpload,
		Accept:        acceptAttribute(),
	})
}

func (s *Server) HandleRoomState(w http.ResponseWriter, r *http.Request) {
	code := rooms.NormalizeCode(chi.URLParam(r, "code"))
	room, ok := s.store.Room(code)
	if !ok {
		writeError(w, http.StatusNotFound, rooms.ErrRoomNotFound)
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{Code: code, MemberCount: room.MemberCount, Messages: room.Messages})
}

func (s *Server) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": Version, "rooms": s.store.Len()})
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
