package game

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"casinolab/internal/metrics"
)

const (
	CLIENT_SEND_QUEUE = 256
	BROADCAST_QUEUE   = 1024
	WRITE_TIMEOUT     = 10 * time.Second
)

var (
	ErrHubStopped = errors.New("hub is stopped")
	ErrClientGone = errors.New("client is not connected")
)

// Transport is the write side of a client connection. *websocket.Conn
// satisfies it.
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one connection. Room is owned by the hub loop, read it with
// Hub.RoomOf.
type Client struct {
	ID     string
	UserID string
	Admin  bool

	room      string
	transport Transport
	send      chan []byte
	// gone is closed on removal, frames still queued are dropped
	gone chan struct{}
	done chan struct{}
}

// Done is closed once the writer has exited and closed the transport.
// After that the hub never touches the transport again.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

type frame struct {
	room string
	data []byte
}

type joinRequest struct {
	clientID string
	room     string
	done     chan error
}

type Hub struct {
	clients    map[string]*Client
	rooms      map[string]bool
	broadcast chan frame
	join      chan joinRequest
	stop      chan struct{}
	stopped   chan struct{}
	stopOnce  sync.Once
	closed    bool
	queueSize int
	mu        sync.RWMutex
}

// NewHub returns a hub that accepts joins to the given rooms.
func NewHub(rooms []string) *Hub {
	allowed := make(map[string]bool, len(rooms))
	for _, r := range rooms {
		allowed[r] = true
	}
	return &Hub{
		clients:   make(map[string]*Client),
		rooms:     allowed,
		broadcast: make(chan frame, BROADCAST_QUEUE),
		join:      make(chan joinRequest),
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
		queueSize: CLIENT_SEND_QUEUE,
	}
}

func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		select {
		case req := <-h.join:
			h.mu.Lock()
			client, ok := h.clients[req.clientID]
			if ok {
				client.room = req.room
			}
			h.mu.Unlock()
			if !ok {
				req.done <- ErrNotInRoom
				continue
			}
			req.done <- nil

		case f := <-h.broadcast:
			h.mu.RLock()
			var slow []*Client
			for _, client := range h.clients {
				if f.room != "" && client.room != f.room {
					continue
				}
				if !client.enqueue(f.data) {
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range slow {
				log.Printf("[WS] Send queue full for %s, disconnecting", client.ID)
				h.remove(client)
			}

		case <-h.stop:
			h.mu.Lock()
			h.closed = true
			for id, client := range h.clients {
				client.release()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			metrics.ConnectedClients.Set(0)
			log.Println("[WS] Hub stopped")
			return
		}
	}
}

// Stop disconnects every client and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.stopped
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.ID]
	if ok && current == client {
		delete(h.clients, client.ID)
		client.release()
	}
	total := len(h.clients)
	h.mu.Unlock()
	if ok {
		metrics.ConnectedClients.Set(float64(total))
		log.Printf("[WS] Client disconnected: %s (Total: %d)", client.ID, total)
	}
}

// Register adds a connection and starts its writer. The client is live
// when Register returns, so a following SendTo is delivered.
func (h *Hub) Register(t Transport, userID string, admin bool) (*Client, error) {
	client := &Client{
		ID:        uuid.NewString(),
		UserID:    userID,
		Admin:     admin,
		transport: t,
		send:      make(chan []byte, h.queueSize),
		gone:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubStopped
	}
	h.clients[client.ID] = client
	total := len(h.clients)
	h.mu.Unlock()

	metrics.ConnectedClients.Set(float64(total))
	log.Printf("[WS] Client connected: %s user=%q (Total: %d)", client.ID, client.UserID, total)
	go h.writePump(client)
	return client, nil
}

// Unregister removes the client and stops its writer from sending anything
// still queued. It is safe to call more than once. Wait on Done before
// giving the transport back.
func (h *Hub) Unregister(client *Client) {
	h.remove(client)
}

// JoinRoom moves a client into room, leaving any previous room.
func (h *Hub) JoinRoom(client *Client, room string) error {
	if !h.rooms[room] {
		return ErrUnknownRoom
	}
	req := joinRequest{clientID: client.ID, room: room, done: make(chan error, 1)}
	select {
	case h.join <- req:
	case <-h.stop:
		return ErrHubStopped
	}
	return <-req.done
}

func (h *Hub) RoomOf(client *Client) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return client.room
}

func (h *Hub) Rooms() []string {
	out := make([]string, 0, len(h.rooms))
	for r := range h.rooms {
		out = append(out, r)
	}
	return out
}

// Broadcast queues msg for every client. It never blocks: when the hub is
// behind the message is dropped.
func (h *Hub) Broadcast(msg Outbound) {
	h.publish("", msg)
}

func (h *Hub) BroadcastToRoom(room string, msg Outbound) {
	if room == "" {
		return
	}
	h.publish(room, msg)
}

func (h *Hub) publish(room string, msg Outbound) {
	data, err := Encode(msg)
	if err != nil {
		log.Printf("[WS] Marshal error for %s: %v", msg.Type(), err)
		return
	}
	select {
	case h.broadcast <- frame{room: room, data: data}:
	default:
		metrics.DroppedMessages.Inc()
		log.Printf("[WS] Broadcast channel full, dropping %s", msg.Type())
	}
}

// SendTo queues msg for one client. A full queue disconnects the client.
func (h *Hub) SendTo(client *Client, msg Outbound) error {
	data, err := Encode(msg)
	if err != nil {
		log.Printf("[WS] Marshal error for %s: %v", msg.Type(), err)
		return err
	}
	h.mu.RLock()
	current, live := h.clients[client.ID]
	queued := live && current == client && client.enqueue(data)
	h.mu.RUnlock()
	switch {
	case !live || current != client:
		return ErrClientGone
	case !queued:
		log.Printf("[WS] Send queue full for %s, disconnecting", client.ID)
		h.remove(client)
		return ErrQueueFull
	}
	return nil
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// release must be called once, with the hub lock held.
func (c *Client) release() {
	close(c.gone)
	close(c.send)
}

// enqueue must be called with the hub lock held so send is not closed
// underneath it.
func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		metrics.DroppedMessages.Inc()
		return false
	}
}

func (h *Hub) writePump(c *Client) {
	defer close(c.done)
	defer c.transport.Close()
	for data := range c.send {
		select {
		case <-c.gone:
			return
		default:
		}
		c.transport.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT))
		if err := c.transport.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("[WS] Write error for %s: %v", c.ID, err)
			h.remove(c)
			return
		}
	}
}
