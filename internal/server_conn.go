package internal

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 8192
	sendBuffer = 256
)

// Client is one websocket connection. joined and sendClosed are guarded by
// the hub mutex; binding is fixed at upgrade time.
type Client struct {
	id         string
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	binding    Binding
	joined     bool
	sendClosed bool
}

func newClient(hub *Hub, conn *websocket.Conn, binding Binding) *Client {
	return &Client{
		id:      uuid.NewString(),
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		binding: binding,
	}
}

func (client *Client) closeConn() {
	_ = client.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"), time.Now().Add(writeWait))
	_ = client.conn.Close()
}

func (client *Client) readPump(ctx context.Context) {
	defer func() {
		client.hub.leave(ctx, client)
		client.conn.Close()
		client.hub.metrics.DecConn()
	}()
	client.conn.SetReadLimit(maxMsgSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Debug().Err(err).Str("room", client.binding.Room).Msg("websocket read")
			}
			break
		}
		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			log.Debug().Err(err).Msg("ignoring malformed frame")
			continue
		}
		client.hub.receive(ctx, client, strings.TrimSpace(frame.Data))
	}
}

func (client *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()
	for {
		select {
		case message, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
