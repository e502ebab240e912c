package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	intrnl "roomchat/internal"
	"roomchat/internal/rooms"
	"roomchat/internal/storage"
)

type snapshotBackend interface {
	rooms.Snapshotter
	io.Closer
}

// ServerHandle represents a running HTTP/WebSocket server instance.
type ServerHandle struct {
	addr            string
	server          *http.Server
	hub             *intrnl.Hub
	snapshots       snapshotBackend
	shutdownTimeout time.Duration
	hubOnce         sync.Once
	done            chan struct{}
	err             error
}

// Addr returns the actual listen address (after the OS allocated a port).
func (h *ServerHandle) Addr() string {
	return h.addr
}

// Stop closes live websockets, then shuts the HTTP server down within the
// context deadline.
func (h *ServerHandle) Stop(ctx context.Context) error {
	if h == nil || h.server == nil {
		return nil
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
	}
	h.stopHub()
	return h.server.Shutdown(ctx)
}

// Wait blocks until the server exits.
func (h *ServerHandle) Wait() error {
	if h == nil {
		return nil
	}
	<-h.done
	return h.err
}

// RunServer opens the snapshot backend, loads the rooms and starts serving in
// the background. Call Stop/Wait to manage its lifecycle.
func RunServer(ctx context.Context, cfg ServerConfig) (*ServerHandle, error) {
	cfg.Sanitize()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	snapshots, err := openSnapshots(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store := rooms.NewStore(ctx, snapshots, rooms.Options{CodeLength: cfg.CodeLength})
	server := intrnl.NewServer(store, intrnl.ServerOptions{
		SocketPath:       cfg.SocketPath,
		UploadDir:        cfg.UploadDir,
		MaxUploadSize:    cfg.MaxUploadSize,
		SessionTTL:       cfg.SessionTTL,
		AllowedOrigins:   cfg.AllowedOrigins,
		RoomCreateLimit:  cfg.RoomCreateLimit,
		RoomCreateWindow: cfg.RoomCreateWindow,
		MessageLimit:     cfg.MessageLimit,
		MessageWindow:    cfg.MessageWindow,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = snapshots.Close()
		return nil, fmt.Errorf("listen: %w", err)
	}

	handle := &ServerHandle{
		addr:            listener.Addr().String(),
		server:          httpServer,
		hub:             server.Hub(),
		snapshots:       snapshots,
		shutdownTimeout: cfg.ShutdownTimeout,
		done:            make(chan struct{}),
	}
	log.Info().
		Str("addr", handle.addr).
		Str("ws_path", cfg.SocketPath).
		Str("driver", cfg.StoreDriver).
		Str("data", cfg.DataPath).
		Int("rooms", store.Len()).
		Msg("roomchat server listening")

	go func() {
		if ctx == nil {
			return
		}
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := handle.Stop(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server shutdown")
		}
	}()

	go handle.serve(listener)

	return handle, nil
}

func openSnapshots(ctx context.Context, cfg ServerConfig) (snapshotBackend, error) {
	if cfg.StoreDriver == DriverJSON {
		return storage.NewFileSnapshot(cfg.DataPath), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DataPath), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	store, err := storage.NewStore(cfg.DataPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (h *ServerHandle) stopHub() {
	h.hubOnce.Do(func() {
		if err := h.hub.Shutdown(h.shutdownTimeout); err != nil {
			log.Warn().Err(err).Msg("websocket connections did not close in time")
		}
	})
}

func (h *ServerHandle) serve(listener net.Listener) {
	defer close(h.done)
	err := h.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	// departures persist while the hub drains, so the backend closes last
	h.stopHub()
	if err := h.snapshots.Close(); err != nil {
		log.Error().Err(err).Msg("snapshot backend close")
	}
	h.err = err
}
