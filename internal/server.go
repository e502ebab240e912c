package internal

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"roomchat/internal/rooms"
)

const (
	DefaultSocketPath    = "/ws"
	DefaultUploadDir     = "static/uploads"
	DefaultMaxUploadSize = 16 << 20
	uploadURLPrefix      = "/static/uploads/"
)

// ServerOptions tunes the HTTP surface. Zero values pick defaults; zero
// limits disable rate limiting.
type ServerOptions struct {
	SocketPath       string
	UploadDir        string
	MaxUploadSize    int64
	SessionTTL       time.Duration
	AllowedOrigins   []string
	RoomCreateLimit  int
	RoomCreateWindow time.Duration
	MessageLimit     int
	MessageWindow    time.Duration
}

// Server wires the room store to the browser-facing routes and the realtime
// gateway.
type Server struct {
	store         *rooms.Store
	hub           *Hub
	sessions      *SessionStore
	uploads       *UploadHandler
	metrics       *Metrics
	createLimiter *RateLimiter
	upgrader      websocket.Upgrader
	socketPath    string
	uploadDir     string
	maxUpload     int64
}

func NewServer(store *rooms.Store, opts ServerOptions) *Server {
	if opts.SocketPath == "" {
		opts.SocketPath = DefaultSocketPath
	}
	if opts.UploadDir == "" {
		opts.UploadDir = DefaultUploadDir
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = DefaultMaxUploadSize
	}
	metrics := NewMetrics(store.Len)
	hub := NewHub(store, NewRateLimiter(opts.MessageLimit, opts.MessageWindow), metrics)
	origins := newOriginPolicy(opts.AllowedOrigins)
	s := &Server{
		store:         store,
		hub:           hub,
		sessions:      NewSessionStore(opts.SessionTTL),
		metrics:       metrics,
		createLimiter: NewRateLimiter(opts.RoomCreateLimit, opts.RoomCreateWindow),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		socketPath: opts.SocketPath,
		uploadDir:  opts.UploadDir,
		maxUpload:  opts.MaxUploadSize,
	}
	s.uploads = NewUploadHandler(store, hub, opts.UploadDir, opts.MaxUploadSize, metrics)
	return s
}

// Hub exposes the realtime gateway, mainly for shutdown.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Routes builds the router. Every route sees the session binding, if any.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.sessions.Middleware)

	r.Get("/", s.HandleEntry)
	r.Post("/", s.HandleEntry)
	r.Get("/room", s.HandleRoom)
	r.Post("/upload", s.uploads.HandleUpload)
	r.Get("/api/rooms/{code}", s.HandleRoomState)
	r.Get(s.socketPath, s.ServeWS)
	r.Get("/healthz", s.HandleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics)
	r.Handle(uploadURLPrefix+"*", http.StripPrefix(uploadURLPrefix, noListing(http.FileServer(http.Dir(s.uploadDir)))))
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})
	return r
}

func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		}()
		next.ServeHTTP(ww, r)
	})
}
