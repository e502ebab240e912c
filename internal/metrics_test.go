package internal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshot(t *testing.T) {
	metrics := NewMetrics(func() int { return 3 })
	metrics.IncRoomCreated()
	metrics.IncMessage()
	metrics.IncMessage()
	metrics.IncThrottled()
	metrics.AddUpload(1024)
	metrics.AddUpload(-1)
	metrics.IncConn()
	metrics.IncConn()
	metrics.DecConn()

	assert.Equal(t, MetricsSnapshot{
		Rooms:             3,
		RoomsCreated:      1,
		Messages:          2,
		ThrottledMessages: 1,
		Uploads:           2,
		UploadBytes:       1024,
		Connections:       2,
		ActiveConnections: 1,
	}, metrics.Snapshot())
}

func TestMetricsServeHTTP(t *testing.T) {
	metrics := NewMetrics(nil)
	metrics.IncMessage()

	rec := httptest.NewRecorder()
	metrics.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body["messages_total"])
	assert.EqualValues(t, 0, body["rooms"])
}
