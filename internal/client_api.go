package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// roomAPI talks to a roomchat server the way a browser does: the session
// cookie from the entry form is replayed on the websocket handshake.
type roomAPI struct {
	baseURL   string
	socketURL string
	client    *http.Client
	dialer    *websocket.Dialer
}

type uploadResponse struct {
	Success bool   `json:"success"`
	FileURL string `json:"fileUrl"`
	Message string `json:"message"`
}

// newRoomAPI accepts either the HTTP base (http://host:8080) or the
// websocket URL (ws://host:8080/ws) of a server.
func newRoomAPI(serverURL string) (*roomAPI, error) {
	baseURL, socketURL, err := splitServerURL(serverURL)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &roomAPI{
		baseURL:   baseURL,
		socketURL: socketURL,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		dialer: &websocket.Dialer{
			Jar:              jar,
			HandshakeTimeout: 5 * time.Second,
		},
	}, nil
}

func splitServerURL(serverURL string) (string, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil {
		return "", "", err
	}
	if parsed.Host == "" {
		return "", "", fmt.Errorf("server URL %q has no host", serverURL)
	}
	socketPath := parsed.Path
	var httpScheme, wsScheme string
	switch parsed.Scheme {
	case "ws", "http":
		httpScheme, wsScheme = "http", "ws"
	case "wss", "https":
		httpScheme, wsScheme = "https", "wss"
	default:
		return "", "", fmt.Errorf("unsupported scheme %s", parsed.Scheme)
	}
	if parsed.Scheme == httpScheme || socketPath == "" || socketPath == "/" {
		socketPath = DefaultSocketPath
	}
	base := httpScheme + "://" + parsed.Host
	return base, wsScheme + "://" + parsed.Host + socketPath, nil
}

func (api *roomAPI) enter(ctx context.Context, name, code string, create bool) (entryResponse, error) {
	form := url.Values{}
	form.Set("name", name)
	form.Set("code", code)
	if create {
		form.Set("create", "1")
	} else {
		form.Set("join", "1")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, api.baseURL+"/", strings.NewReader(form.Encode()))
	if err != nil {
		return entryResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var resp entryResponse
	err = api.do(req, &resp)
	return resp, err
}

func (api *roomAPI) history(ctx context.Context, code string) (roomResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, api.baseURL+"/api/rooms/"+url.PathEscape(code), nil)
	if err != nil {
		return roomResponse{}, err
	}
	var resp roomResponse
	err = api.do(req, &resp)
	return resp, err
}

// upload posts a file into room and returns its public URL.
func (api *roomAPI) upload(ctx context.Context, path, room, name, caption string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	for key, value := range map[string]string{"room": room, "name": name, "message": caption} {
		if err := writer.WriteField(key, value); err != nil {
			return "", err
		}
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, api.baseURL+"/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	var resp uploadResponse
	if err := api.do(req, &resp); err != nil {
		return "", err
	}
	return resp.FileURL, nil
}

func (api *roomAPI) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := api.dialer.DialContext(ctx, api.socketURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake: %s: %w", resp.Status, err)
		}
		return nil, err
	}
	return conn, nil
}

// absoluteURL resolves a server-relative path such as an attachment URL.
func (api *roomAPI) absoluteURL(path string) string {
	if path == "" || strings.Contains(path, "://") {
		return path
	}
	return api.baseURL + path
}

func (api *roomAPI) do(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	resp, err := api.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New(readResponseError(resp.Body, resp.Status))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readResponseError(body io.Reader, status string) string {
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return "request failed: " + status
	}
	var parsed map[string]string
	if err := json.Unmarshal(data, &parsed); err == nil {
		if msg, ok := parsed["error"]; ok {
			return msg
		}
	}
	return strings.TrimSpace(string(data))
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
