package internal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"roomchat/internal/rooms"
)

// Hub owns the broadcast groups. Its mutex is the single append point for
// every room: mutating the store and queueing the resulting frames happen
// under one lock, so each member sees frames in store order.
type Hub struct {
	mutex   sync.Mutex
	store   *rooms.Store
	groups  map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	limiter *RateLimiter
	metrics *Metrics
	closed  bool
	wg      sync.WaitGroup
}

// NewHub builds a hub over store. limiter throttles chat frames per
// connection; nil disables throttling.
func NewHub(store *rooms.Store, limiter *RateLimiter, metrics *Metrics) *Hub {
	if metrics == nil {
		metrics = NewMetrics(store.Len)
	}
	return &Hub{
		store:   store,
		groups:  make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		limiter: limiter,
		metrics: metrics,
	}
}

// attach starts the pumps for a freshly upgraded connection and joins it to
// its room when the binding allows. The join completes before the read pump
// runs, so the first inbound frame already sees a joined client.
func (hub *Hub) attach(ctx context.Context, client *Client) {
	hub.mutex.Lock()
	if hub.closed {
		hub.mutex.Unlock()
		_ = client.conn.Close()
		return
	}
	hub.clients[client] = struct{}{}
	hub.wg.Add(2)
	hub.mutex.Unlock()

	hub.metrics.IncConn()
	go func() {
		defer hub.wg.Done()
		client.writePump()
	}()
	hub.join(ctx, client)
	go func() {
		defer hub.wg.Done()
		client.readPump(ctx)
	}()
}

// join moves a connection into its room's group. Connections without a usable
// binding stay open but inert.
func (hub *Hub) join(ctx context.Context, client *Client) bool {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	code, name := client.binding.Room, client.binding.Name
	if code == "" || name == "" || client.sendClosed {
		return false
	}
	if !hub.store.Exists(code) {
		log.Debug().Str("room", code).Msg("binding references unknown room, connection left inert")
		return false
	}
	group, ok := hub.groups[code]
	if !ok {
		group = make(map[*Client]struct{})
		hub.groups[code] = group
	}
	group[client] = struct{}{}
	client.joined = true
	hub.broadcastLocked(code, rooms.Notice(name, rooms.EnteredNotice))
	if _, err := hub.store.AdjustMembers(ctx, code, 1); err != nil {
		log.Error().Err(err).Str("room", code).Msg("persist member join")
	}
	log.Info().Str("room", code).Str("name", name).Msg("joined room")
	return true
}

// leave removes a connection. For joined members the count drops before the
// departure notice goes out, so the notice never reports a stale count.
func (hub *Hub) leave(ctx context.Context, client *Client) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	delete(hub.clients, client)
	code, name := client.binding.Room, client.binding.Name
	hub.removeLocked(code, client)
	hub.closeSendLocked(client)
	if hub.limiter != nil {
		hub.limiter.Forget(client.id)
	}
	if !client.joined {
		return
	}
	client.joined = false
	if _, err := hub.store.AdjustMembers(ctx, code, -1); err != nil {
		// nobody left on this connection to tell
		log.Error().Err(err).Str("room", code).Msg("persist member leave")
	}
	if hub.store.Exists(code) {
		hub.broadcastLocked(code, rooms.Notice(name, rooms.LeftNotice))
	}
	log.Info().Str("room", code).Str("name", name).Msg("left room")
}

// receive handles a chat frame from client. Frames from inert connections,
// blank text and messages for vanished rooms are dropped.
func (hub *Hub) receive(ctx context.Context, client *Client, text string) {
	if text == "" {
		return
	}
	hub.mutex.Lock()
	joined := client.joined
	hub.mutex.Unlock()
	if !joined {
		return
	}
	if !hub.limiter.Allow(client.id) {
		hub.metrics.IncThrottled()
		hub.mutex.Lock()
		hub.sendLocked(client, rooms.Notice(systemName, "You're sending messages too quickly. Please wait a moment and try again."))
		hub.mutex.Unlock()
		return
	}
	msg := rooms.NewTextMessage(client.binding.Name, text)
	if err := hub.Publish(ctx, client.binding.Room, msg); err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			log.Debug().Str("room", client.binding.Room).Msg("dropping message for vanished room")
			return
		}
		log.Error().Err(err).Str("room", client.binding.Room).Msg("message not delivered")
		hub.mutex.Lock()
		hub.sendLocked(client, rooms.Notice(systemName, "Your message could not be saved."))
		hub.mutex.Unlock()
	}
}

// Publish appends msg to the room and, once persisted, fans it out to every
// member including the sender.
func (hub *Hub) Publish(ctx context.Context, code string, msg rooms.Message) error {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	if err := hub.store.Append(ctx, code, msg); err != nil {
		return err
	}
	hub.metrics.IncMessage()
	hub.broadcastLocked(code, msg)
	log.Debug().Str("room", code).Str("name", msg.Name).Bool("attachment", msg.IsAttachment()).Msg("message published")
	return nil
}

// Members returns the number of live connections in a room's group.
func (hub *Hub) Members(code string) int {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	return len(hub.groups[code])
}

func (hub *Hub) broadcastLocked(code string, msg rooms.Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("encode broadcast")
		return
	}
	for client := range hub.groups[code] {
		select {
		case client.send <- payload:
		default:
			// Too slow to keep up; drop it. The read pump sees the close and
			// runs leave, which still settles the member count.
			log.Warn().Str("room", code).Str("name", client.binding.Name).Msg("dropping slow client")
			hub.removeLocked(code, client)
			hub.closeSendLocked(client)
		}
	}
}

func (hub *Hub) sendLocked(client *Client, msg rooms.Message) {
	if client.sendClosed {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}

func (hub *Hub) removeLocked(code string, client *Client) {
	group, ok := hub.groups[code]
	if !ok {
		return
	}
	delete(group, client)
	if len(group) == 0 {
		delete(hub.groups, code)
	}
}

func (hub *Hub) closeSendLocked(client *Client) {
	if client.sendClosed {
		return
	}
	client.sendClosed = true
	close(client.send)
}

// Shutdown closes every live connection and waits for their pumps, giving up
// after timeout. Departures are persisted like ordinary disconnects.
func (hub *Hub) Shutdown(timeout time.Duration) error {
	hub.mutex.Lock()
	hub.closed = true
	clients := make([]*Client, 0, len(hub.clients))
	for client := range hub.clients {
		clients = append(clients, client)
	}
	hub.mutex.Unlock()

	for _, client := range clients {
		client.closeConn()
	}
	log.Info().Int("connections", len(clients)).Msg("closing websocket connections")

	done := make(chan struct{})
	go func() {
		hub.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}
