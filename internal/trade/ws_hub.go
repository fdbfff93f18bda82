package trade

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tokenuniverse/paper-engine/internal/feed"
	"github.com/tokenuniverse/paper-engine/internal/metrics"
	"github.com/tokenuniverse/paper-engine/internal/mint"
	"github.com/tokenuniverse/paper-engine/internal/model"
)

// WebSocket message types.
const (
	MsgWatch         = "watch"
	MsgUnwatch       = "unwatch"
	MsgPriceUpdate   = "price_update"
	MsgTradeExecuted = "trade_executed"
	MsgError         = "error"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
	wsSendBuffer = 64
)

// WSMessage is a JSON message sent to WebSocket clients.
type WSMessage struct {
	Type      string        `json:"type"`
	TokenMint string        `json:"tokenMint,omitempty"`
	PriceUSD  string        `json:"priceUsd,omitempty"`
	Quote     *model.Quote  `json:"quote,omitempty"`
	Trade     *model.Trade  `json:"trade,omitempty"`
	Wallet    *model.Wallet `json:"wallet,omitempty"`
	Error     string        `json:"error,omitempty"`
	At        int64         `json:"at,omitempty"` // ms since epoch
}

// ClientMessage is a JSON message received from a WebSocket client.
type ClientMessage struct {
	Type string `json:"type"`
	Mint string `json:"mint,omitempty"`
}

type wsClient struct {
	id   string
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// enqueue queues data unless the client is gone or not keeping up.
func (c *wsClient) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *wsClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// WSHub manages WebSocket connections. Each connection may watch one token
// at a time through its own slot in the feed manager; executed trades are
// broadcast to every connection.
type WSHub struct {
	feeds  *feed.Manager
	prices *feed.PriceBook
	logger *slog.Logger

	ctx        context.Context
	done       chan struct{}
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.RWMutex
}

// NewWSHub creates a new WebSocket hub. prices may be nil.
func NewWSHub(feeds *feed.Manager, prices *feed.PriceBook, logger *slog.Logger) *WSHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHub{
		feeds:      feeds,
		prices:     prices,
		logger:     logger.With("component", "ws"),
		ctx:        context.Background(),
		done:       make(chan struct{}),
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
	}
}

// Run starts the hub's main event loop and returns when ctx is done. Must be
// called in a goroutine before HandleWS serves connections.
func (h *WSHub) Run(ctx context.Context) {
	h.mu.Lock()
	h.ctx = ctx
	h.mu.Unlock()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Inc()
			h.logger.Info("ws client connected", "client", c.id, "total", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
			h.mu.Unlock()
			// A watch read after an earlier drop may have refilled the slot.
			if h.feeds != nil {
				h.feeds.Stop(c.id)
			}

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if !c.enqueue(msg) {
					// Slow consumer.
					h.drop(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes c. Callers hold h.mu.
func (h *WSHub) drop(c *wsClient) {
	delete(h.clients, c)
	c.close()
	if h.feeds != nil {
		h.feeds.Stop(c.id)
	}
	metrics.WebSocketClients.Dec()
}

// Broadcast sends a message to all connected clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		// Drop if buffer full to avoid blocking trade execution.
	}
}

// TradeExecuted broadcasts an executed trade.
func (h *WSHub) TradeExecuted(t model.Trade, w model.Wallet) {
	h.Broadcast(WSMessage{
		Type:      MsgTradeExecuted,
		TokenMint: t.TokenMint,
		PriceUSD:  t.PriceUSD.String(),
		Trade:     &t,
		Wallet:    &w,
		At:        t.Timestamp,
	})
}

// Clients returns the number of connected clients.
func (h *WSHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // local tool; any origin may connect
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "err", err)
		return
	}

	c := &wsClient{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

// readPump handles watch/unwatch requests and detects disconnects.
func (h *WSHub) readPump(c *wsClient) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
			if h.feeds != nil {
				h.feeds.Stop(c.id)
			}
		}
	}()

	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if _, ok := err.(*json.SyntaxError); ok {
				h.reply(c, WSMessage{Type: MsgError, Error: "invalid message"})
				continue
			}
			return
		}

		switch msg.Type {
		case MsgWatch:
			m, err := mint.Parse(msg.Mint)
			if err != nil {
				h.reply(c, WSMessage{Type: MsgError, Error: err.Error()})
				continue
			}
			h.watch(c, m.Address)
		case MsgUnwatch:
			if h.feeds != nil {
				h.feeds.Stop(c.id)
			}
		default:
			h.reply(c, WSMessage{Type: MsgError, Error: "unknown message type: " + msg.Type})
		}
	}
}

// watch replaces c's feed with one for tokenMint.
func (h *WSHub) watch(c *wsClient, tokenMint string) {
	if h.feeds == nil {
		h.reply(c, WSMessage{Type: MsgError, Error: "live prices not configured"})
		return
	}
	if c.isClosed() {
		return
	}
	h.mu.RLock()
	ctx := h.ctx
	h.mu.RUnlock()

	h.feeds.Start(ctx, c.id, tokenMint, func(u feed.Update) {
		if h.prices != nil {
			h.prices.Record(u)
		}
		h.reply(c, WSMessage{
			Type:      MsgPriceUpdate,
			TokenMint: u.TokenMint,
			PriceUSD:  u.PriceUSD.String(),
			Quote:     u.Quote,
			At:        u.At.UnixMilli(),
		})
	})
	h.logger.Debug("ws client watching", "client", c.id, "mint", tokenMint)
}

// reply queues msg for c alone, dropping it if c is not keeping up.
func (h *WSHub) reply(c *wsClient, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.enqueue(data)
}

// writePump is the connection's only writer. It also pings to keep the
// connection alive through proxies.
func (h *WSHub) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
