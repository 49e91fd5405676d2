package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024 * 1024 // 1MB
)

// Message types exchanged over the board socket.
const (
	MessageState      = "state"
	MessagePing       = "ping"
	MessagePong       = "pong"
	MessageDragStart  = "dragStart"
	MessageDragOver   = "dragOver"
	MessageDragEnd    = "dragEnd"
	MessageDragCancel = "dragCancel"
	MessageError      = "error"
)

// WebSocketMessage is the outbound message format.
type WebSocketMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// InboundMessage is a message read from a client; Data is decoded by the handler for
// its Type.
type InboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client is one WebSocket connection of a signed-in user.
type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	Email     string
	OnMessage func(c *Client, msg InboundMessage)
	OnClose   func(c *Client)
}

// ReadPump pumps messages from the connection to OnMessage until the peer goes away.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
		if c.OnClose != nil {
			c.OnClose(c)
		}
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("email", c.Email).Msg("websocket read error")
			}
			break
		}

		var msg InboundMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Debug().Err(err).Str("email", c.Email).Msg("ignoring malformed websocket message")
			continue
		}

		if msg.Type == MessagePing {
			c.Deliver(WebSocketMessage{
				Type: MessagePong,
				Data: map[string]string{"timestamp": time.Now().Format(time.RFC3339)},
			})
			continue
		}

		if c.OnMessage != nil {
			c.OnMessage(c, msg)
		}
	}
}

// WritePump pumps messages from the hub to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Deliver queues a message for this client only. It goes through the hub so it never
// races the hub closing Send; it is dropped once the client is gone.
func (c *Client) Deliver(message WebSocketMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Str("type", message.Type).Msg("failed to encode websocket message")
		return
	}

	c.Hub.direct(c, data)
}

type envelope struct {
	email   string
	client  *Client
	payload []byte
}

// Hub tracks connected clients and fans messages out to the clients of one user.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	deliver    chan envelope
	register   chan *Client
	unregister chan *Client
	count      chan chan int
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan envelope),
		deliver:    make(chan envelope),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast sends message to every connection of email.
func (h *Hub) Broadcast(message WebSocketMessage, email string) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Str("type", message.Type).Msg("failed to encode websocket message")
		return
	}

	select {
	case h.broadcast <- envelope{email: email, payload: data}:
	case <-h.done:
	}
}

func (h *Hub) direct(client *Client, payload []byte) {
	select {
	case h.deliver <- envelope{client: client, payload: payload}:
	case <-h.done:
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Run is the hub's main loop. It returns when ctx is done; calls made after that
// return without blocking.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			log.Debug().Str("email", client.Email).Msg("client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				log.Debug().Str("email", client.Email).Msg("client disconnected")
			}
		case msg := <-h.deliver:
			// Send is only open while the client is registered
			if !h.clients[msg.client] {
				continue
			}

			select {
			case msg.client.Send <- msg.payload:
			default:
				log.Warn().Str("email", msg.client.Email).Msg("client send buffer full, dropping message")
			}
		case reply := <-h.count:
			reply <- len(h.clients)
		case msg := <-h.broadcast:
			// Send a message to every connection of the user
			for client := range h.clients {
				if client.Email != msg.email {
					continue
				}

				select {
				case client.Send <- msg.payload:
				default:
					log.Warn().Str("email", client.Email).Msg("client send buffer full, removing client")
					close(client.Send)
					delete(h.clients, client)
				}
			}
		}
	}
}
