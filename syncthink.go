/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Syncthink
//
// Two players see the same prompt each round and type a free-text answer.
// When both answers match after normalization, both players score.
//
// Features:
// - HTTP API to create and join rooms: /api/games, /api/games/:gameid/join
// - Read-only room snapshot: /api/games/:gameid
// - WebSockets per game ID: /game/:gameid/ws
// - Players identified by the player ID handed out on create/join
// - Round timer, results pause and game over driven server-side
// - Reconnecting with the same player ID resumes the game in progress
// - Finished and abandoned games reaped in the background
// - Per-connection inbound rate limit, backed by x/time/rate
// - QR code to share a game, backed by go-qrcode

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"golang.org/x/time/rate"

	"github.com/Seednode/syncthink/games/syncthink"
)

const (
	minReapInterval = time.Second

	maxMessageSize = 4096
	messageRate    = 5
	messageBurst   = 10
)

// Messages coming from clients
type ClientMessage struct {
	Type     string `json:"type"`               // "joinGame", "submitAnswer"
	GameID   string `json:"gameId,omitempty"`   // both
	PlayerID string `json:"playerId,omitempty"` // both
	Username string `json:"username,omitempty"` // joinGame
	Answer   string `json:"answer,omitempty"`   // submitAnswer
	TimeLeft *int   `json:"timeLeft,omitempty"` // submitAnswer
}

// SessionInfoMessage is sent only to the joining connection, after a
// successful joinGame, so it knows which player it is.
type SessionInfoMessage struct {
	Type     string `json:"type"` // "sessionInfo"
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
	IsAdmin  bool   `json:"isAdmin"`
}

type createRequest struct {
	Username string `json:"username"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	limiter  *rate.Limiter
	playerID string // owned by the hub's run loop
}

type envelope struct {
	client *Client
	msg    ClientMessage
}

// Hub fans messages out to the connections of one room and feeds their
// events to the registry in arrival order. It lives only while it has
// clients.
type Hub struct {
	id      string
	clients map[*Client]bool

	inbound chan envelope
	unreg   chan *Client
	done    chan struct{}

	mu sync.Mutex
}

func newHub(gameID string) *Hub {
	return &Hub{
		id:      gameID,
		clients: make(map[*Client]bool),
		inbound: make(chan envelope),
		unreg:   make(chan *Client),
		done:    make(chan struct{}),
	}
}

func (h *Hub) run(cfg *Config, gm *GameManager) {
	for {
		select {
		case env := <-h.inbound:
			switch env.msg.Type {
			case "joinGame":
				h.handleJoin(cfg, gm, env)
			case "submitAnswer":
				h.handleSubmit(gm, env)
			default:
				// ignore unknown types
			}

		case c := <-h.unreg:
			gm.detach(h, c)
			h.release(cfg, gm, c.playerID)
			c.playerID = ""

		case <-h.done:
			return
		}
	}
}

func (h *Hub) handleJoin(cfg *Config, gm *GameManager, env envelope) {
	c := env.client
	msg := env.msg

	if msg.GameID != "" && syncthink.CanonicalID(msg.GameID) != h.id {
		h.sendTo(c, syncthink.NewErrorMessage(syncthink.ErrRoomNotFound))
		return
	}

	playerID := msg.PlayerID
	if playerID == "" {
		playerID = gm.newID()
	}

	if err := gm.registry.Join(h.id, playerID, strings.TrimSpace(msg.Username)); err != nil {
		logf(cfg, "GAMES: Join to %s refused: %v", h.id, err)
		h.sendTo(c, syncthink.NewErrorMessage(err))
		return
	}

	if c.playerID != "" && c.playerID != playerID {
		old := c.playerID
		c.playerID = playerID
		h.release(cfg, gm, old)
	}
	c.playerID = playerID

	info := SessionInfoMessage{
		Type:     "sessionInfo",
		GameID:   h.id,
		PlayerID: playerID,
	}

	if s, err := gm.registry.Get(h.id); err == nil {
		for _, p := range s.Snapshot().Players {
			if p.ID == playerID {
				info.IsAdmin = p.IsAdmin
			}
		}
	}

	h.sendTo(c, info)
}

func (h *Hub) handleSubmit(gm *GameManager, env envelope) {
	c := env.client
	msg := env.msg

	if msg.GameID != "" && syncthink.CanonicalID(msg.GameID) != h.id {
		h.sendTo(c, syncthink.NewErrorMessage(syncthink.ErrRoomNotFound))
		return
	}

	if c.playerID == "" || (msg.PlayerID != "" && msg.PlayerID != c.playerID) {
		h.sendTo(c, syncthink.NewErrorMessage(syncthink.ErrPlayerNotRecognized))
		return
	}

	timeLeft := 0
	if msg.TimeLeft != nil {
		timeLeft = *msg.TimeLeft
	}

	if err := gm.registry.Submit(h.id, c.playerID, msg.Answer, timeLeft); err != nil {
		h.sendTo(c, syncthink.NewErrorMessage(err))
	}
}

// release marks a player disconnected once no connection in this room
// speaks for them anymore.
func (h *Hub) release(cfg *Config, gm *GameManager, playerID string) {
	if playerID == "" {
		return
	}

	h.mu.Lock()
	for c := range h.clients {
		if c.playerID == playerID {
			h.mu.Unlock()
			return
		}
	}
	h.mu.Unlock()

	err := gm.registry.Disconnect(h.id, playerID)
	if err != nil && !errors.Is(err, syncthink.ErrRoomNotFound) {
		logf(cfg, "GAMES: Disconnect from %s failed: %v", h.id, err)
	}
}

func (h *Hub) broadcast(msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

func (h *Hub) sendTo(c *Client, msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

// closeAll disconnects all clients of this hub (used on eviction).
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

// GameManager owns the registry and the hubs of rooms that currently have
// connections. It is the registry's Broadcaster.
type GameManager struct {
	mu   sync.Mutex
	hubs map[string]*Hub

	cfg      *Config
	registry *syncthink.Registry
	newID    func() string
}

func newGameManager(cfg *Config, pool *syncthink.QuestionPool, logger *slog.Logger, opts ...syncthink.Option) *GameManager {
	gm := &GameManager{
		hubs:  make(map[string]*Hub),
		cfg:   cfg,
		newID: uuid.NewString,
	}

	opts = append([]syncthink.Option{
		syncthink.WithLogger(logger),
		syncthink.WithEvictHook(gm.dropHub),
	}, opts...)

	gm.registry = syncthink.NewRegistry(cfg.gameConfig(), pool, gm, opts...)

	return gm
}

// Broadcast is called with the room's lock held, so it never blocks.
func (gm *GameManager) Broadcast(gameID string, msg any) {
	gm.mu.Lock()
	hub := gm.hubs[gameID]
	gm.mu.Unlock()

	if hub == nil {
		return
	}

	hub.broadcast(msg)
}

// attach adds c to the hub for gameID, starting one if needed.
func (gm *GameManager) attach(gameID string, c *Client) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	hub, ok := gm.hubs[gameID]
	if !ok {
		hub = newHub(gameID)
		gm.hubs[gameID] = hub
		go hub.run(gm.cfg, gm)
	}

	hub.mu.Lock()
	hub.clients[c] = true
	hub.mu.Unlock()

	return hub
}

// detach removes c and stops the hub once it is empty.
func (gm *GameManager) detach(h *Hub, c *Client) {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	empty := len(h.clients) == 0
	h.mu.Unlock()

	if empty && gm.hubs[h.id] == h {
		delete(gm.hubs, h.id)
		close(h.done)
	}
}

// dropHub runs after the registry evicts a room.
func (gm *GameManager) dropHub(gameID string) {
	gm.mu.Lock()
	hub, ok := gm.hubs[gameID]
	if ok {
		delete(gm.hubs, gameID)
		close(hub.done)
	}
	gm.mu.Unlock()

	if ok {
		hub.closeAll()
	}

	logf(gm.cfg, "GAMES: Removed game %s", gameID)
}

func (gm *GameManager) hubCount() int {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	return len(gm.hubs)
}

// reaperLoop periodically removes games nobody has been connected to for
// longer than the abandon timeout.
func (gm *GameManager) reaperLoop(ctx context.Context) {
	ticker := time.NewTicker(reapInterval(gm.cfg.abandonTimeout))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range gm.registry.Sweep() {
				logf(gm.cfg, "GAMES: Reaped abandoned game %s", id)
			}
		}
	}
}

func reapInterval(abandonTimeout time.Duration) time.Duration {
	return max(abandonTimeout/2, minReapInterval)
}

func newUpgrader(cfg *Config) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(cfg.allowedOrigins, "*") {
				return true
			}

			return slices.Contains(cfg.allowedOrigins, origin)
		},
	}
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	upgrader := newUpgrader(cfg)

	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := syncthink.CanonicalID(ps.ByName("gameid"))
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: Websocket upgrade for %s failed: %v", realIP(r), err)
			return
		}

		if _, err := gm.registry.Get(gameID); err != nil {
			_ = conn.WriteJSON(syncthink.NewErrorMessage(err))
			_ = conn.Close()
			return
		}

		client := &Client{
			conn:    conn,
			send:    make(chan any, 32),
			limiter: rate.NewLimiter(messageRate, messageBurst),
		}

		hub := gm.attach(gameID, client)

		logf(cfg, "SERVE: Websocket for %s opened by %s", gameID, realIP(r))

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		if !c.limiter.Allow() {
			h.sendTo(c, syncthink.ErrorMessage{
				Type:    "error",
				Message: "too many messages, slow down",
			})
			continue
		}

		select {
		case h.inbound <- envelope{client: c, msg: msg}:
		case <-h.done:
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

func writeGameError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, syncthink.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, syncthink.ErrRoomFull):
		status = http.StatusBadRequest
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// readCreateRequest accepts an empty body as "no username".
func readCreateRequest(w http.ResponseWriter, r *http.Request) (createRequest, error) {
	var req createRequest

	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageSize)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		return req, err
	}

	req.Username = strings.TrimSpace(req.Username)

	return req, nil
}

func serveCreateGame(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		req, err := readCreateRequest(w, r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}

		ticket, err := gm.registry.Create(req.Username)
		if err != nil {
			writeGameError(w, err)
			return
		}

		logf(cfg, "GAMES: Created game %s for %s", ticket.GameID, realIP(r))

		writeJSON(w, http.StatusCreated, ticket)
	}
}

func serveJoinGame(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		securityHeaders(cfg, w)

		req, err := readCreateRequest(w, r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}

		ticket, err := gm.registry.JoinRoom(ps.ByName("gameid"), req.Username)
		if err != nil {
			writeGameError(w, err)
			return
		}

		logf(cfg, "GAMES: %s joined game %s", realIP(r), ticket.GameID)

		writeJSON(w, http.StatusOK, ticket)
	}
}

func serveGameSnapshot(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		securityHeaders(cfg, w)

		s, err := gm.registry.Get(ps.ByName("gameid"))
		if err != nil {
			writeGameError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, s.Snapshot())
	}
}

// QR handler: generates a PNG QR code for the current game URL using go-qrcode.
func qrHandler(gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		s, err := gm.registry.Get(ps.ByName("gameid"))
		if err != nil {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		// We are at /.../:gameid/qr; the share URL is the game itself.
		path := strings.TrimSuffix(r.URL.Path, "/qr")
		path = path[:strings.LastIndex(path, "/")+1] + s.ID()

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(scheme+"://"+r.Host+path, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// registerSyncthinkGame sets up routes so that:
//   - POST /api/games              → create a game (201)
//   - POST /api/games/:gameid/join → add a player to a game
//   - GET  /api/games/:gameid      → snapshot of a game
//   - GET  /game/:gameid/ws        → WebSocket for that game
//   - GET  /game/:gameid/qr        → PNG QR code for that game URL
func registerSyncthinkGame(cfg *Config, gm *GameManager, mux *httprouter.Router) {
	mux.POST(cfg.prefix+"/api/games", serveCreateGame(cfg, gm))
	mux.POST(cfg.prefix+"/api/games/:gameid/join", serveJoinGame(cfg, gm))
	mux.GET(cfg.prefix+"/api/games/:gameid", serveGameSnapshot(cfg, gm))

	mux.GET(cfg.prefix+"/game/:gameid/ws", serveWSForManager(cfg, gm))
	mux.GET(cfg.prefix+"/game/:gameid/qr", qrHandler(gm))
}
