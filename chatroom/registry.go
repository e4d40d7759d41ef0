package chatroom

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

const sendQueueSize = 64

// Client is one live websocket connection.
type Client struct {
	Conn      *websocket.Conn
	UserID    int
	Username  string
	SendQueue chan WSMessage
	Done      chan struct{}

	closeOnce sync.Once
}

// WritePump drains the send queue onto the connection. Run it in its own
// goroutine per client.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		select {
		case msg, ok := <-c.SendQueue:
			if !ok {
				return
			}
			if err := c.Conn.WriteJSON(msg); err != nil {
				log.Println("WritePump error:", err)
				return
			}
		case <-c.Done:
			return
		}
	}
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.SendQueue)
		close(c.Done)
	})
}

// Registry tracks which clients are connected and which channel rooms each
// one subscribes to. Every client also sits in a personal room keyed by user
// id, used for targeted notifications. A user may hold several connections.
type Registry struct {
	mu       sync.Mutex
	rooms    map[int]map[*Client]struct{}
	personal map[int]map[*Client]struct{}
	subs     map[*Client]map[int]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:    make(map[int]map[*Client]struct{}),
		personal: make(map[int]map[*Client]struct{}),
		subs:     make(map[*Client]map[int]struct{}),
	}
}

// Connect registers a new client and places it in its personal room.
func (r *Registry) Connect(conn *websocket.Conn, userID int, username string) *Client {
	client := &Client{
		Conn:      conn,
		UserID:    userID,
		Username:  username,
		SendQueue: make(chan WSMessage, sendQueueSize),
		Done:      make(chan struct{}),
	}

	r.mu.Lock()
	if r.personal[userID] == nil {
		r.personal[userID] = make(map[*Client]struct{})
	}
	r.personal[userID][client] = struct{}{}
	r.subs[client] = make(map[int]struct{})
	r.mu.Unlock()

	return client
}

// Subscribe adds the client to a channel room. Re-subscribing is a no-op.
func (r *Registry) Subscribe(client *Client, channelID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[channelID] == nil {
		r.rooms[channelID] = make(map[*Client]struct{})
	}
	r.rooms[channelID][client] = struct{}{}
	if r.subs[client] != nil {
		r.subs[client][channelID] = struct{}{}
	}
}

func (r *Registry) Unsubscribe(client *Client, channelID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeFromRoom(client, channelID)
}

// UnsubscribeUser drops every connection the user holds from the channel
// room, used when a member is kicked.
func (r *Registry) UnsubscribeUser(userID, channelID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for client := range r.personal[userID] {
		r.removeFromRoom(client, channelID)
	}
}

func (r *Registry) removeFromRoom(client *Client, channelID int) {
	if room, ok := r.rooms[channelID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(r.rooms, channelID)
		}
	}
	if subs, ok := r.subs[client]; ok {
		delete(subs, channelID)
	}
}

// Drop removes the client everywhere and closes its queues. It reports
// whether this was the user's last connection. Dropping a client twice is
// safe and reports false the second time.
func (r *Registry) Drop(client *Client) bool {
	lastConnection := false

	r.mu.Lock()
	for channelID := range r.subs[client] {
		if room, ok := r.rooms[channelID]; ok {
			delete(room, client)
			if len(room) == 0 {
				delete(r.rooms, channelID)
			}
		}
	}
	delete(r.subs, client)
	if personal, ok := r.personal[client.UserID]; ok {
		if _, in := personal[client]; in {
			delete(personal, client)
			if len(personal) == 0 {
				delete(r.personal, client.UserID)
				lastConnection = true
			}
		}
	}
	r.mu.Unlock()

	client.shutdown()
	return lastConnection
}

// Subscribed reports whether the client currently sits in the channel room.
func (r *Registry) Subscribed(client *Client, channelID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subs, ok := r.subs[client]; ok {
		_, in := subs[channelID]
		return in
	}
	return false
}

// BroadcastToChannel fans a message out to every room subscriber, including
// the sender's own connections.
func (r *Registry) BroadcastToChannel(channelID int, msg WSMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for client := range r.rooms[channelID] {
		safeSend(client, msg)
	}
}

// BroadcastToChannelExcept skips one client, used for typing indicators.
func (r *Registry) BroadcastToChannelExcept(channelID int, except *Client, msg WSMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for client := range r.rooms[channelID] {
		if client == except {
			continue
		}
		safeSend(client, msg)
	}
}

// SendToUser delivers to every connection in the user's personal room. A
// disconnected user is silently skipped.
func (r *Registry) SendToUser(userID int, msg WSMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for client := range r.personal[userID] {
		safeSend(client, msg)
	}
}

// safeSend enqueues without blocking. A full queue drops the frame rather
// than stalling the whole broadcast behind one slow reader.
func safeSend(client *Client, msg WSMessage) {
	select {
	case client.SendQueue <- msg:
	case <-client.Done:
	default:
		log.Printf("safeSend: dropping frame for user %d, send queue full", client.UserID)
	}
}
