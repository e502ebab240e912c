package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFillsDefaults(t *testing.T) {
	t.Setenv("ROOMCHAT_DATA_PATH", "")
	cfg := ServerConfig{StoreDriver: " SQLite ", SocketPath: "chat"}
	cfg.Sanitize()

	defaults := DefaultServerConfig()
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "/chat", cfg.SocketPath)
	assert.Equal(t, defaults.UploadDir, cfg.UploadDir)
	assert.Equal(t, defaults.MaxUploadSize, cfg.MaxUploadSize)
	assert.Equal(t, defaults.CodeLength, cfg.CodeLength)
	assert.Equal(t, defaults.SessionTTL, cfg.SessionTTL)
	assert.Equal(t, defaults.ShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, "roomchat.db", filepath.Base(cfg.DataPath))
	assert.Zero(t, cfg.MessageLimit, "zero limits stay off")

	unknown := ServerConfig{StoreDriver: "postgres"}
	unknown.Sanitize()
	assert.Equal(t, DriverJSON, unknown.StoreDriver)
	assert.Equal(t, "rooms_data.json", unknown.DataPath)
}

func TestDefaultDataPath(t *testing.T) {
	t.Setenv("ROOMCHAT_DATA_PATH", "")
	t.Setenv("ROOMCHAT_DATA_DIR", "/srv/roomchat")
	assert.Equal(t, "rooms_data.json", DefaultDataPath(DriverJSON))
	assert.Equal(t, filepath.Join("/srv/roomchat", "roomchat.db"), DefaultDataPath(DriverSQLite))

	t.Setenv("ROOMCHAT_DATA_PATH", "/tmp/custom.db")
	assert.Equal(t, "/tmp/custom.db", DefaultDataPath(DriverSQLite))
	assert.Equal(t, "/tmp/custom.db", DefaultDataPath(DriverJSON))
}

func TestNormalizeSocketPath(t *testing.T) {
	tests := map[string]string{
		"":        "/ws",
		"/":       "/ws",
		"  ws  ":  "/ws",
		"/socket": "/socket",
		"live":    "/live",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeSocketPath(in), in)
	}
}

func TestParseOrigins(t *testing.T) {
	assert.Nil(t, ParseOrigins("  "))
	assert.Equal(t, []string{"https://a.test", "http://b.test:8080"}, ParseOrigins("https://a.test, ,http://b.test:8080,"))
}

func TestEnvParsing(t *testing.T) {
	t.Setenv("RC_INT", "0")
	t.Setenv("RC_BAD_INT", "-3")
	t.Setenv("RC_SIZE", "2048")
	t.Setenv("RC_DUR", "90s")
	t.Setenv("RC_SECS", "45")
	t.Setenv("RC_BOOL", "true")
	t.Setenv("RC_STR", "value")

	assert.Equal(t, 0, EnvInt("RC_INT", 5))
	assert.Equal(t, 5, EnvInt("RC_BAD_INT", 5))
	assert.Equal(t, 7, EnvInt("RC_MISSING", 7))
	assert.Equal(t, int64(2048), EnvInt64("RC_SIZE", 1))
	assert.Equal(t, int64(1), EnvInt64("RC_INT", 1))
	assert.Equal(t, 90*time.Second, EnvDuration("RC_DUR", time.Second))
	assert.Equal(t, 45*time.Second, EnvDuration("RC_SECS", time.Second))
	assert.Equal(t, time.Second, EnvDuration("RC_STR", time.Second))
	assert.True(t, EnvBool("RC_BOOL", false))
	assert.True(t, EnvBool("RC_MISSING", true))
	assert.Equal(t, "value", EnvOrDefault("RC_STR", "x"))
	assert.Equal(t, "x", EnvOrDefault("RC_MISSING", "x"))
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	_, err := SetupLogging(LogConfig{Level: "chatty"})
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "logs", "roomchat.log")
	closer, err := SetupLogging(LogConfig{Level: "DEBUG", Pretty: true, File: file})
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	assert.FileExists(t, file)
	assert.NoError(t, closer.Close())

	closer, err = SetupLogging(LogConfig{})
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
}

func TestClientConfigValidate(t *testing.T) {
	cfg := ClientConfig{ServerURL: " http://localhost:8080 ", Username: " Alice ", RoomCode: "abcd"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, "Alice", cfg.Username)
	assert.Equal(t, "ABCD", cfg.RoomCode)

	assert.Error(t, (&ClientConfig{}).Validate())
	assert.Error(t, (&ClientConfig{ServerURL: "ftp://host"}).Validate())
	assert.NoError(t, (&ClientConfig{ServerURL: "wss://chat.example.com/ws"}).Validate())
}

func TestRateLimitsOffByDefault(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.Zero(t, cfg.MessageLimit)
	assert.Zero(t, cfg.RoomCreateLimit)
	assert.Positive(t, cfg.MessageWindow)
	assert.Positive(t, cfg.RoomCreateWindow)
}
