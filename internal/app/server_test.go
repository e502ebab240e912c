package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, driver, dataPath string) ServerConfig {
	t.Helper()
	cfg := DefaultServerConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.StoreDriver = driver
	cfg.DataPath = dataPath
	cfg.UploadDir = filepath.Join(t.TempDir(), "uploads")
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

func startServer(t *testing.T, cfg ServerConfig) *ServerHandle {
	t.Helper()
	handle, err := RunServer(context.Background(), cfg)
	require.NoError(t, err)
	return handle
}

func stopServer(t *testing.T, handle *ServerHandle) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, handle.Stop(ctx))
	require.NoError(t, handle.Wait())
}

func createRoom(t *testing.T, addr string) string {
	t.Helper()
	form := url.Values{"name": {"Alice"}, "create": {"1"}}
	req, err := http.NewRequest(http.MethodPost, "http://"+addr+"/", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entry struct {
		Room string `json:"room"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entry))
	require.NotEmpty(t, entry.Room)
	return entry.Room
}

func roomStatus(t *testing.T, addr, code string) int {
	t.Helper()
	resp, err := http.Get("http://" + addr + "/api/rooms/" + code)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestRunServerHealth(t *testing.T) {
	cfg := testConfig(t, DriverJSON, filepath.Join(t.TempDir(), "rooms_data.json"))
	handle := startServer(t, cfg)
	defer stopServer(t, handle)

	resp, err := http.Get("http://" + handle.Addr() + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 0, health["rooms"])
	assert.DirExists(t, cfg.UploadDir)
}

func TestRunServerPersistsAcrossRestart(t *testing.T) {
	for _, driver := range []string{DriverJSON, DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			dataPath := filepath.Join(t.TempDir(), "data", "rooms."+driver)
			cfg := testConfig(t, driver, dataPath)

			first := startServer(t, cfg)
			code := createRoom(t, first.Addr())
			stopServer(t, first)
			assert.FileExists(t, dataPath)

			second := startServer(t, cfg)
			defer stopServer(t, second)
			assert.Equal(t, http.StatusOK, roomStatus(t, second.Addr(), code))
			assert.Equal(t, http.StatusNotFound, roomStatus(t, second.Addr(), "ZZZZ"))
		})
	}
}

func TestRunServerStopsOnContextCancel(t *testing.T) {
	cfg := testConfig(t, DriverJSON, filepath.Join(t.TempDir(), "rooms_data.json"))
	ctx, cancel := context.WithCancel(context.Background())
	handle, err := RunServer(ctx, cfg)
	require.NoError(t, err)

	cancel()
	done := make(chan error, 1)
	go func() { done <- handle.Wait() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancel")
	}
}

func TestRunServerListenError(t *testing.T) {
	cfg := testConfig(t, DriverJSON, filepath.Join(t.TempDir(), "rooms_data.json"))
	first := startServer(t, cfg)
	defer stopServer(t, first)

	cfg.Addr = first.Addr()
	_, err := RunServer(context.Background(), cfg)
	assert.Error(t, err)
}
