package internal

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"roomchat/internal/rooms"
	"roomchat/internal/storage"
)

type testEnv struct {
	server    *Server
	store     *rooms.Store
	snapshots *switchableSnapshots
	http      *httptest.Server
	uploadDir string
}

// switchableSnapshots is a JSON snapshot file whose writes can be made to
// fail on demand.
type switchableSnapshots struct {
	*storage.FileSnapshot
	failing atomic.Bool
}

func (s *switchableSnapshots) Save(ctx context.Context, snap rooms.Snapshot) error {
	if s.failing.Load() {
		return errors.New("disk full")
	}
	return s.FileSnapshot.Save(ctx, snap)
}

func newTestEnv(t *testing.T, opts ServerOptions) *testEnv {
	t.Helper()
	dir := t.TempDir()
	snapshots := &switchableSnapshots{FileSnapshot: storage.NewFileSnapshot(filepath.Join(dir, "rooms_data.json"))}
	store := rooms.NewStore(context.Background(), snapshots, rooms.Options{})
	if opts.UploadDir == "" {
		opts.UploadDir = filepath.Join(dir, "uploads")
	}
	server := NewServer(store, opts)
	ts := httptest.NewServer(server.Routes())
	t.Cleanup(func() {
		_ = server.Hub().Shutdown(2 * time.Second)
		ts.Close()
	})
	return &testEnv{server: server, store: store, snapshots: snapshots, http: ts, uploadDir: opts.UploadDir}
}

// browser is an HTTP client with its own cookie jar that never follows
// redirects, so tests can assert on them.
type browser struct {
	t      *testing.T
	env    *testEnv
	jar    *cookiejar.Jar
	client *http.Client
}

func (env *testEnv) newBrowser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:   t,
		env: env,
		jar: jar,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (b *browser) postForm(values url.Values, accept string) *http.Response {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.env.http.URL+"/", strings.NewReader(values.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	b.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (b *browser) get(path string) *http.Response {
	b.t.Helper()
	resp, err := b.client.Get(b.env.http.URL + path)
	require.NoError(b.t, err)
	b.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// create submits the entry form with the create button and returns the code
// the session got bound to.
func (b *browser) create(name string) string {
	b.t.Helper()
	resp := b.postForm(url.Values{"name": {name}, "create": {"1"}}, "application/json")
	require.Equal(b.t, http.StatusOK, resp.StatusCode)
	var entry entryResponse
	decodeBody(b.t, resp, &entry)
	return entry.Room
}

func (b *browser) join(name, code string) {
	b.t.Helper()
	resp := b.postForm(url.Values{"name": {name}, "code": {code}, "join": {"1"}}, "application/json")
	require.Equal(b.t, http.StatusOK, resp.StatusCode)
}

func (b *browser) dial() *websocket.Conn {
	b.t.Helper()
	dialer := websocket.Dialer{Jar: b.jar, HandshakeTimeout: 2 * time.Second}
	wsURL := "ws" + strings.TrimPrefix(b.env.http.URL, "http") + DefaultSocketPath
	conn, _, err := dialer.Dial(wsURL, nil)
	require.NoError(b.t, err)
	b.t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) rooms.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg rooms.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func sendText(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(inboundFrame{Data: text}))
}

func memberCount(env *testEnv, code string) int {
	room, _ := env.store.Room(code)
	return room.MemberCount
}
