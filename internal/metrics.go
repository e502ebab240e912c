package internal

import (
	"net/http"
	"sync/atomic"
)

// Metrics counts server activity for GET /metrics.
type Metrics struct {
	roomsCreated atomic.Uint64
	messages     atomic.Uint64
	throttled    atomic.Uint64
	uploads      atomic.Uint64
	uploadBytes  atomic.Uint64
	connections  atomic.Uint64
	activeConns  atomic.Int64
	rooms        func() int
}

// MetricsSnapshot is the JSON body served by Metrics.
type MetricsSnapshot struct {
	Rooms             int    `json:"rooms"`
	RoomsCreated      uint64 `json:"rooms_created_total"`
	Messages          uint64 `json:"messages_total"`
	ThrottledMessages uint64 `json:"throttled_messages_total"`
	Uploads           uint64 `json:"uploads_total"`
	UploadBytes       uint64 `json:"upload_bytes_total"`
	Connections       uint64 `json:"connections_total"`
	ActiveConnections int64  `json:"active_connections"`
}

// NewMetrics builds the counters; rooms reports the current room total.
func NewMetrics(rooms func() int) *Metrics {
	return &Metrics{rooms: rooms}
}

func (m *Metrics) IncRoomCreated() { m.roomsCreated.Add(1) }

func (m *Metrics) IncMessage() { m.messages.Add(1) }

func (m *Metrics) IncThrottled() { m.throttled.Add(1) }

func (m *Metrics) AddUpload(size int64) {
	m.uploads.Add(1)
	if size > 0 {
		m.uploadBytes.Add(uint64(size))
	}
}

func (m *Metrics) IncConn() {
	m.connections.Add(1)
	m.activeConns.Add(1)
}

func (m *Metrics) DecConn() { m.activeConns.Add(-1) }

// Snapshot reads every counter. Counters are read independently, so the
// result is not an atomic view across them.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		RoomsCreated:      m.roomsCreated.Load(),
		Messages:          m.messages.Load(),
		ThrottledMessages: m.throttled.Load(),
		Uploads:           m.uploads.Load(),
		UploadBytes:       m.uploadBytes.Load(),
		Connections:       m.connections.Load(),
		ActiveConnections: m.activeConns.Load(),
	}
	if m.rooms != nil {
		snap.Rooms = m.rooms()
	}
	return snap
}

func (m *Metrics) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, m.Snapshot())
}
