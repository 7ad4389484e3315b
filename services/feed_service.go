package services

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	feedWriteWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	feedPongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than feedPongWait.
	feedPingPeriod = (feedPongWait * 9) / 10

	// Subscribers only listen; anything bigger than a close frame is noise.
	feedMaxMessageSize = 512
)

// FeedEvent is one ledger happening pushed to websocket subscribers.
type FeedEvent struct {
	Type      string    `json:"type"`
	GuildID   int64     `json:"guild_id"`
	UserID    int64     `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	Points    int       `json:"points,omitempty"`
	Delta     int       `json:"delta,omitempty"`
	ViewID    string    `json:"view_id,omitempty"`
	Page      int       `json:"page,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FeedClient is the middleman between one websocket connection and the hub.
type FeedClient struct {
	ID   string
	hub  *FeedHub
	conn *websocket.Conn
	send chan []byte

	// 0 means the client wants every guild's events.
	guildID int64
}

// FeedHub fans ledger events out to connected websocket subscribers. It
// implements BroadcastListener so view refreshes reach the feed too.
type FeedHub struct {
	clients    map[*FeedClient]bool
	broadcast  chan []byte
	register   chan *FeedClient
	unregister chan *FeedClient

	mu    sync.RWMutex
	count int
}

func NewFeedHub() *FeedHub {
	return &FeedHub{
		clients:    make(map[*FeedClient]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *FeedClient),
		unregister: make(chan *FeedClient),
	}
}

// Run is the hub's single owner goroutine; all client map access happens
// here.
func (h *FeedHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.setCount(len(h.clients))
			log.Printf("[Feed] Subscriber %s connected. Count: %d", client.ID, len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.setCount(len(h.clients))
				log.Printf("[Feed] Subscriber %s disconnected. Count: %d", client.ID, len(h.clients))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.setCount(len(h.clients))
		}
	}
}

func (h *FeedHub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

// SubscriberCount returns how many feed connections are live.
func (h *FeedHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Publish pushes an event to every subscriber. Events for full or absent
// hubs are dropped rather than blocking the caller.
func (h *FeedHub) Publish(event FeedEvent) {
	event.Timestamp = time.Now()
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Feed] Failed to marshal event: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Println("[Feed] Broadcast buffer full, dropping event")
	}
}

// PublishPointsUpdate announces a member's new total after a points change.
func (h *FeedHub) PublishPointsUpdate(guildID, userID int64, username string, delta, newPoints int) {
	h.Publish(FeedEvent{
		Type:     "points_update",
		GuildID:  guildID,
		UserID:   userID,
		Username: username,
		Delta:    delta,
		Points:   newPoints,
	})
}

// ViewRefreshed implements BroadcastListener for the view registry.
func (h *FeedHub) ViewRefreshed(event ViewEvent) {
	h.Publish(FeedEvent{
		Type:    "view_refreshed",
		GuildID: event.GuildID,
		ViewID:  event.ViewID,
		Page:    event.Page,
	})
}

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request into a feed subscription.
func (h *FeedHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Feed] Upgrade failed: %v", err)
		return
	}

	client := &FeedClient{
		ID:   uuid.New().String(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, 16),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

func (c *FeedClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(feedMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Feed] Read error from %s: %v", c.ID, err)
			}
			return
		}
		// Inbound frames are ignored; the feed is one-way.
	}
}

func (c *FeedClient) writePump() {
	ticker := time.NewTicker(feedPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
