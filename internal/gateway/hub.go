/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package gateway keeps one websocket per client, pushes every session
// snapshot to all of them and forwards client requests to the game engine.
package gateway

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Seednode/yeargame/internal/game"
)

const clientCookieName = "yeargame_id"

// Engine is what the gateway needs from the game engine.
type Engine interface {
	Join(name string) (game.Joined, error)
	Submit(name string, year int, bet bool) error
	Steal(name, target string) error
	Admin(name string, action game.AdminAction) error
	Disconnect(name string)
	Observe(fn func(game.Snapshot))
}

// Config holds websocket connection settings.
type Config struct {
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
	CheckOrigin    func(r *http.Request) bool
}

// DefaultConfig returns the settings used in production.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:   10 * time.Second,
		PongTimeout:    60 * time.Second,
		PingInterval:   25 * time.Second,
		MaxMessageSize: 1024,
		SendBuffer:     16,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Hub tracks open client channels.
type Hub struct {
	engine   Engine
	cfg      Config
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*Client]bool

	// gameID is the session of the newest snapshot seen. Bindings made for
	// any other session are stale.
	gameID string

	// names remembers which player each browser cookie last joined as, so a
	// reconnecting browser is reattached without asking again.
	names map[string]binding
}

type binding struct {
	name   string
	gameID string
}

// NewHub creates a hub bound to engine. Call engine.Subscribe(hub.Broadcast)
// to start fan-out.
func NewHub(engine Engine, cfg Config) *Hub {
	return &Hub{
		engine: engine,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		clients: make(map[*Client]bool),
		names:   make(map[string]binding),
	}
}

// Broadcast pushes snap to every client without blocking. A client whose
// queue is full is dropped; it will get a fresh snapshot when it reconnects.
func (h *Hub) Broadcast(snap game.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal snapshot")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.noteGameLocked(snap.GameID)

	for c := range h.clients {
		h.enqueueLocked(c, data)
	}

	log.Debug().
		Str("phase", string(snap.Phase)).
		Int("clients", len(h.clients)).
		Msg("snapshot broadcast")
}

// Count reports the number of open client channels.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

// noteGameLocked forgets every binding from an earlier session and tells
// those clients to join again.
func (h *Hub) noteGameLocked(id string) {
	if id == "" || id == h.gameID {
		return
	}

	previous := h.gameID
	h.gameID = id
	if previous == "" {
		return
	}

	for key, b := range h.names {
		if b.gameID != id {
			delete(h.names, key)
		}
	}

	data, err := json.Marshal(RejoinMessage{Type: "rejoin", GameID: id})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal rejoin message")
		return
	}

	for c := range h.clients {
		if c.name == "" || c.gameID == id {
			continue
		}

		log.Debug().Str("client_id", c.id).Str("player", c.name).Str("game_id", id).Msg("binding from previous game dropped")

		c.name, c.gameID = "", ""
		h.enqueueLocked(c, data)
	}
}

// boundLocked returns c's player name if it belongs to the current session.
func (h *Hub) boundLocked(c *Client) string {
	if c.name == "" || c.gameID != h.gameID {
		return ""
	}
	return c.name
}

func (h *Hub) enqueueLocked(c *Client, data []byte) {
	if !h.clients[c] {
		return
	}

	select {
	case c.send <- data:
	default:
		log.Warn().Str("client_id", c.id).Str("player", c.name).Msg("client send queue full, dropping client")
		h.dropLocked(c)
	}
}

func (h *Hub) dropLocked(c *Client) {
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) sendTo(c *Client, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.enqueueLocked(c, data)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	// Observe runs on the engine goroutine, so this snapshot is at least as
	// new as any broadcast already queued for c.
	h.engine.Observe(func(snap game.Snapshot) {
		data, err := json.Marshal(snap)
		if err != nil {
			log.Error().Err(err).Msg("failed to marshal snapshot")
			return
		}

		h.mu.Lock()
		defer h.mu.Unlock()

		h.noteGameLocked(snap.GameID)
		h.enqueueLocked(c, data)
	})
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	h.dropLocked(c)

	name := h.boundLocked(c)
	stillConnected := false
	if name != "" {
		for other := range h.clients {
			if strings.EqualFold(h.boundLocked(other), name) {
				stillConnected = true
				break
			}
		}
	}
	h.mu.Unlock()

	log.Debug().Str("client_id", c.id).Str("player", name).Msg("client disconnected")

	if name != "" && !stillConnected {
		h.engine.Disconnect(name)
	}
}

// bind records that c joined gameID as name and returns the name it was
// bound to in that same game before, if any.
func (h *Hub) bind(c *Client, name, gameID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.gameID == "" {
		h.gameID = gameID
	}

	previous := ""
	if c.gameID == gameID {
		previous = c.name
	}

	c.name, c.gameID = name, gameID
	if c.id != "" {
		h.names[c.id] = binding{name: name, gameID: gameID}
	}

	return previous
}

func (h *Hub) join(c *Client, name string) {
	joined, err := h.engine.Join(name)
	if err != nil {
		h.sendTo(c, errorMessage(err))
		return
	}

	if previous := h.bind(c, joined.Name, joined.GameID); previous != "" && !strings.EqualFold(previous, joined.Name) {
		h.engine.Disconnect(previous)
	}

	h.sendTo(c, JoinedMessage{
		Type:        "joined",
		GameID:      joined.GameID,
		Name:        joined.Name,
		IsAdmin:     joined.IsAdmin,
		LateJoin:    joined.LateJoin,
		Reconnected: joined.Reconnected,
	})
}

// reattach rejoins a returning browser under the name it last used.
func (h *Hub) reattach(c *Client) {
	h.mu.Lock()
	b := h.names[c.id]
	current := h.gameID
	h.mu.Unlock()

	name := b.name
	if c.id == "" || name == "" || b.gameID != current {
		return
	}

	joined, err := h.engine.Join(name)
	if err != nil {
		log.Debug().Err(err).Str("client_id", c.id).Str("player", name).Msg("reattach skipped")
		return
	}

	h.bind(c, joined.Name, joined.GameID)
	h.sendTo(c, JoinedMessage{
		Type:        "joined",
		GameID:      joined.GameID,
		Name:        joined.Name,
		IsAdmin:     joined.IsAdmin,
		LateJoin:    joined.LateJoin,
		Reconnected: joined.Reconnected,
	})
}

func (h *Hub) handle(c *Client, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendTo(c, errorMessage(game.ErrBadRequest))
		return
	}

	if msg.Type == "join" {
		h.join(c, msg.Name)
		return
	}

	h.mu.Lock()
	name := h.boundLocked(c)
	h.mu.Unlock()

	if name == "" {
		h.sendTo(c, errorMessage(game.ErrNotJoined))
		return
	}

	var err error
	switch msg.Type {
	case "submit":
		if msg.Year == nil {
			err = game.ErrBadRequest
			break
		}
		err = h.engine.Submit(name, *msg.Year, msg.Bet)
	case "steal":
		err = h.engine.Steal(name, msg.Target)
	case "admin":
		var action game.AdminAction
		action, err = game.ParseAdminAction(msg.Action)
		if err == nil {
			err = h.engine.Admin(name, action)
		}
	default:
		err = game.ErrBadRequest
	}

	if err != nil {
		log.Debug().
			Err(err).
			Str("player", name).
			Str("request", msg.Type).
			Msg("request rejected")
		h.sendTo(c, errorMessage(err))
		return
	}

	h.sendTo(c, AcceptedMessage{Type: "accepted", Request: msg.Type})
}

// ServeHTTP upgrades the request and runs the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, cookie := clientID(r)

	header := http.Header{}
	if cookie != nil {
		header.Add("Set-Cookie", cookie.String())
	}

	conn, err := h.upgrader.Upgrade(w, r, header)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &Client{
		id:   id,
		conn: conn,
		send: make(chan []byte, h.cfg.SendBuffer),
		hub:  h,
	}

	h.register(c)

	log.Debug().Str("client_id", id).Str("remote", r.RemoteAddr).Msg("client connected")

	go c.writePump()
	h.reattach(c)
	c.readPump()
}

// clientID returns the browser's id cookie, minting one if it has none.
func clientID(r *http.Request) (string, *http.Cookie) {
	if c, err := r.Cookie(clientCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Error().Err(err).Msg("rand.Read failed")
		return "", nil
	}
	id := hex.EncodeToString(buf)

	return id, &http.Cookie{
		Name:     clientCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
