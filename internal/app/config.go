package app

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	intrnl "roomchat/internal"
	"roomchat/internal/rooms"
)

const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// ServerConfig defines how the HTTP/WebSocket backend should run.
type ServerConfig struct {
	Addr             string
	SocketPath       string
	StoreDriver      string
	DataPath         string
	UploadDir        string
	MaxUploadSize    int64
	CodeLength       int
	SessionTTL       time.Duration
	AllowedOrigins   []string
	RoomCreateLimit  int
	RoomCreateWindow time.Duration
	MessageLimit     int
	MessageWindow    time.Duration
	ShutdownTimeout  time.Duration
}

// ClientConfig defines the parameters the TUI client needs.
type ClientConfig struct {
	ServerURL string
	Username  string
	RoomCode  string
}

// LogConfig selects level, format and destination of the global logger.
type LogConfig struct {
	Level  string
	Pretty bool
	File   string
}

// DefaultServerConfig is the configuration used when neither flags nor
// ROOMCHAT_* variables say otherwise. Both rate limits start switched off;
// the windows only matter once a limit is set.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:             ":8080",
		SocketPath:       intrnl.DefaultSocketPath,
		StoreDriver:      DriverJSON,
		UploadDir:        intrnl.DefaultUploadDir,
		MaxUploadSize:    intrnl.DefaultMaxUploadSize,
		CodeLength:       rooms.DefaultCodeLength,
		SessionTTL:       24 * time.Hour,
		RoomCreateLimit:  0,
		RoomCreateWindow: time.Minute,
		MessageLimit:     0,
		MessageWindow:    3 * time.Second,
		ShutdownTimeout:  5 * time.Second,
	}
}

// Sanitize replaces unusable values with defaults.
func (cfg *ServerConfig) Sanitize() {
	defaults := DefaultServerConfig()
	cfg.SocketPath = NormalizeSocketPath(cfg.SocketPath)
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if cfg.StoreDriver != DriverSQLite {
		cfg.StoreDriver = DriverJSON
	}
	if cfg.DataPath == "" {
		cfg.DataPath = DefaultDataPath(cfg.StoreDriver)
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = defaults.UploadDir
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = defaults.MaxUploadSize
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = defaults.CodeLength
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaults.SessionTTL
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
}

// DefaultDataPath returns where snapshots live for driver. The JSON file sits
// in the working directory; the SQLite database goes to a per-user data dir.
func DefaultDataPath(driver string) string {
	if env := os.Getenv("ROOMCHAT_DATA_PATH"); env != "" {
		return env
	}
	if driver != DriverSQLite {
		return "rooms_data.json"
	}
	if env := os.Getenv("ROOMCHAT_DATA_DIR"); env != "" {
		return filepath.Join(env, "roomchat.db")
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "roomchat", "roomchat.db")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Roomchat", "roomchat.db")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "Application Support", "Roomchat", "roomchat.db")
		}
		return filepath.Join(home, ".local", "share", "roomchat", "roomchat.db")
	}
	return filepath.Join(".", ".roomchat", "roomchat.db")
}

// NormalizeSocketPath guarantees the websocket path starts with '/' and falls
// back to /ws when empty.
func NormalizeSocketPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || path == "/" {
		return intrnl.DefaultSocketPath
	}
	if path[0] != '/' {
		return "/" + path
	}
	return path
}

func EnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func EnvInt(key string, fallback int) int {
	return parseIntValue(os.Getenv(key), fallback)
}

func EnvInt64(key string, fallback int64) int64 {
	if size, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil && size > 0 {
		return size
	}
	return fallback
}

func EnvDuration(key string, fallback time.Duration) time.Duration {
	return parseDuration(os.Getenv(key), fallback)
}

func EnvBool(key string, fallback bool) bool {
	if parsed, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return parsed
	}
	return fallback
}

// ParseOrigins splits a comma-separated origin list.
func ParseOrigins(origins string) []string {
	if strings.TrimSpace(origins) == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	out := parts[:0]
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseIntValue accepts zero so limits can be switched off.
func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
		return parsed
	}
	return defaultValue
}

// parseDuration accepts Go durations ("90s") or bare seconds ("90").
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
