package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	intrnl "roomchat/internal"
	"roomchat/internal/app"
)

const (
	modeServer  = "server"
	modeClient  = "client"
	modeLocal   = "local"
	modeVersion = "version"
)

func main() {
	mode, args := parseMode(os.Args[1:])
	if mode == modeVersion {
		fmt.Println(intrnl.VersionString())
		return
	}

	defaults := app.DefaultServerConfig()
	flagSet := flag.NewFlagSet("roomchat", flag.ExitOnError)
	addr := flagSet.String("addr", app.EnvOrDefault("ROOMCHAT_ADDR", defaultAddrForMode(mode)), "server listen address")
	socketPath := flagSet.String("ws-path", app.EnvOrDefault("ROOMCHAT_WS_PATH", defaults.SocketPath), "websocket path")
	driver := flagSet.String("store", app.EnvOrDefault("ROOMCHAT_STORE", defaults.StoreDriver), "snapshot backend: json or sqlite")
	dataPath := flagSet.String("data", app.EnvOrDefault("ROOMCHAT_DATA_PATH", ""), "snapshot file or database path (defaults per backend)")
	uploadDir := flagSet.String("uploads", app.EnvOrDefault("ROOMCHAT_UPLOAD_DIR", defaults.UploadDir), "directory for uploaded files")
	maxUpload := flagSet.Int64("max-upload", app.EnvInt64("ROOMCHAT_MAX_UPLOAD", defaults.MaxUploadSize), "maximum upload size in bytes")
	codeLength := flagSet.Int("code-length", app.EnvInt("ROOMCHAT_CODE_LENGTH", defaults.CodeLength), "length of generated room codes")
	sessionTTL := flagSet.Duration("session-ttl", app.EnvDuration("ROOMCHAT_SESSION_TTL", defaults.SessionTTL), "lifetime of a browser session binding")
	origins := flagSet.String("origins", app.EnvOrDefault("ROOMCHAT_ALLOWED_ORIGINS", ""), "comma-separated websocket origins (empty allows all)")
	roomLimit := flagSet.Int("room-limit", app.EnvInt("ROOMCHAT_ROOM_LIMIT", defaults.RoomCreateLimit), "rooms one address may create per window (0 disables)")
	roomWindow := flagSet.Duration("room-window", app.EnvDuration("ROOMCHAT_ROOM_WINDOW", defaults.RoomCreateWindow), "room creation rate window")
	msgLimit := flagSet.Int("msg-limit", app.EnvInt("ROOMCHAT_MSG_LIMIT", defaults.MessageLimit), "messages one connection may send per window (0 disables)")
	msgWindow := flagSet.Duration("msg-window", app.EnvDuration("ROOMCHAT_MSG_WINDOW", defaults.MessageWindow), "message rate window")
	serverURL := flagSet.String("server-url", app.EnvOrDefault("ROOMCHAT_SERVER", "http://localhost:8080"), "server URL (client mode)")
	username := flagSet.String("user", app.EnvOrDefault("ROOMCHAT_USER", ""), "display name for the client")
	logLevel := flagSet.String("log-level", app.EnvOrDefault("ROOMCHAT_LOG_LEVEL", "info"), "log level")
	prettyLogs := flagSet.Bool("pretty", app.EnvBool("ROOMCHAT_PRETTY_LOGS", true), "human-readable console logs")
	logFile := flagSet.String("log-file", app.EnvOrDefault("ROOMCHAT_LOG_FILE", ""), "write logs to this file instead of stderr")
	flagSet.Parse(args)

	roomCode := ""
	if remaining := flagSet.Args(); len(remaining) > 0 {
		roomCode = remaining[0]
	}

	serverCfg := app.ServerConfig{
		Addr:             *addr,
		SocketPath:       *socketPath,
		StoreDriver:      *driver,
		DataPath:         *dataPath,
		UploadDir:        *uploadDir,
		MaxUploadSize:    *maxUpload,
		CodeLength:       *codeLength,
		SessionTTL:       *sessionTTL,
		AllowedOrigins:   app.ParseOrigins(*origins),
		RoomCreateLimit:  *roomLimit,
		RoomCreateWindow: *roomWindow,
		MessageLimit:     *msgLimit,
		MessageWindow:    *msgWindow,
	}
	serverCfg.Sanitize()

	clientCfg := app.ClientConfig{
		ServerURL: *serverURL,
		Username:  *username,
		RoomCode:  roomCode,
	}

	logCfg := app.LogConfig{Level: *logLevel, Pretty: *prettyLogs, File: *logFile}
	if mode != modeServer && logCfg.File == "" {
		// the TUI owns the terminal
		logCfg.File = filepath.Join(filepath.Dir(app.DefaultDataPath(app.DriverSQLite)), "roomchat.log")
	}
	logCloser, err := app.SetupLogging(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "roomchat: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch mode {
	case modeServer:
		err = runServerMode(ctx, serverCfg)
	case modeLocal:
		err = runLocalMode(ctx, serverCfg, clientCfg)
	default:
		err = app.RunClient(clientCfg)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("exiting")
		fmt.Fprintf(os.Stderr, "roomchat: %v\n", err)
		stop()
		_ = logCloser.Close()
		os.Exit(1)
	}
}

func runServerMode(ctx context.Context, cfg app.ServerConfig) error {
	handle, err := app.RunServer(ctx, cfg)
	if err != nil {
		return err
	}
	return handle.Wait()
}

func runLocalMode(ctx context.Context, serverCfg app.ServerConfig, clientCfg app.ClientConfig) error {
	handle, err := app.RunServer(ctx, serverCfg)
	if err != nil {
		return err
	}
	defer stopServer(handle)

	if err := waitForServer(handle.Addr(), 5*time.Second); err != nil {
		return err
	}

	clientCfg.ServerURL = buildServerURL(handle.Addr())
	log.Info().Str("server", clientCfg.ServerURL).Msg("launching local client")

	if err := app.RunClient(clientCfg); err != nil {
		return err
	}
	stopServer(handle)
	return handle.Wait()
}

func waitForServer(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("server did not become ready: %w", err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func buildServerURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func parseMode(args []string) (string, []string) {
	if len(args) == 0 {
		return modeClient, args
	}
	switch strings.ToLower(args[0]) {
	case modeServer, modeClient, modeLocal, modeVersion:
		return strings.ToLower(args[0]), args[1:]
	case "--version", "-v":
		return modeVersion, args[1:]
	}
	return modeClient, args
}

func defaultAddrForMode(mode string) string {
	if mode == modeLocal {
		return "127.0.0.1:0"
	}
	return ":8080"
}

func stopServer(handle *app.ServerHandle) {
	if handle == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = handle.Stop(shutdownCtx)
}
