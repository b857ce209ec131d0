/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package syncthink

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const idLength = 8

// Ticket is handed back to whoever created or joined a room over HTTP.
type Ticket struct {
	GameID     string `json:"gameId"`
	PlayerID   string `json:"playerId"`
	AdminToken string `json:"adminToken,omitempty"`
	IsAdmin    bool   `json:"isAdmin"`
}

type Option func(*Registry)

func WithClock(c Clock) Option {
	return func(r *Registry) {
		r.clock = c
	}
}

func WithShuffler(s Shuffler) Option {
	return func(r *Registry) {
		r.shuffle = s
	}
}

// WithIDSource replaces uuid.NewString for room IDs, player IDs and admin tokens.
func WithIDSource(f func() string) Option {
	return func(r *Registry) {
		r.newID = f
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithEvictHook is called, without any lock held, after a room is removed.
func WithEvictHook(f func(gameID string)) Option {
	return func(r *Registry) {
		r.onEvict = f
	}
}

// Registry holds every live session keyed by canonical room ID.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	cfg     Config
	pool    *QuestionPool
	out     Broadcaster
	clock   Clock
	shuffle Shuffler
	newID   func() string
	logger  *slog.Logger
	onEvict func(gameID string)
}

func NewRegistry(cfg Config, pool *QuestionPool, out Broadcaster, opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		pool:     pool,
		out:      out,
		clock:    SystemClock(),
		newID:    uuid.NewString,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// CanonicalID is the form room IDs are stored under.
func CanonicalID(gameID string) string {
	return strings.ToUpper(strings.TrimSpace(gameID))
}

// newGameIDLocked derives an 8-char ID from a random token and makes sure it
// doesn't collide with an existing room.
func (r *Registry) newGameIDLocked() string {
	for {
		token := strings.ReplaceAll(r.newID(), "-", "")
		if len(token) < idLength {
			continue
		}

		id := CanonicalID(token[:idLength])
		if _, exists := r.sessions[id]; !exists {
			return id
		}
	}
}

// Create opens a new room in the waiting state. An optional username
// pre-registers the creator as the room's first player; the second seat is
// left for JoinRoom so that every player gets a ticket.
func (r *Registry) Create(username ...string) (Ticket, error) {
	if len(username) > 1 {
		return Ticket{}, ErrTooManySeeds
	}

	r.mu.Lock()
	id := r.newGameIDLocked()
	s := newSession(id, r.cfg, r.pool.NewDeck(r.shuffle), r.clock, r.out, r.logger, r.finished)
	r.sessions[id] = s
	r.mu.Unlock()

	ticket := Ticket{
		GameID:     id,
		AdminToken: r.newID(),
	}

	if len(username) == 1 {
		playerID := r.newID()

		view, err := s.register(playerID, username[0])
		if err != nil {
			r.evictSession(s)
			return Ticket{}, fmt.Errorf("seeding room %s: %w", id, err)
		}

		ticket.PlayerID = playerID
		ticket.IsAdmin = view.IsAdmin
	}

	r.logger.Info("room created", slog.String("game", id), slog.Int("seeded", len(username)))

	return ticket, nil
}

// JoinRoom pre-registers a new player in an existing room.
func (r *Registry) JoinRoom(gameID, username string) (Ticket, error) {
	s, err := r.Get(gameID)
	if err != nil {
		return Ticket{}, err
	}

	playerID := r.newID()

	view, err := s.register(playerID, username)
	if err != nil {
		return Ticket{}, err
	}

	return Ticket{
		GameID:   s.ID(),
		PlayerID: playerID,
		IsAdmin:  view.IsAdmin,
	}, nil
}

func (r *Registry) Get(gameID string) (*Session, error) {
	id := CanonicalID(gameID)

	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRoomNotFound, id)
	}

	return s, nil
}

func (r *Registry) Join(gameID, playerID, username string) error {
	s, err := r.Get(gameID)
	if err != nil {
		return err
	}

	return s.Join(playerID, username)
}

func (r *Registry) Submit(gameID, playerID, answer string, timeLeft int) error {
	s, err := r.Get(gameID)
	if err != nil {
		return err
	}

	return s.Submit(playerID, answer, timeLeft)
}

func (r *Registry) Disconnect(gameID, playerID string) error {
	s, err := r.Get(gameID)
	if err != nil {
		return err
	}

	return s.Disconnect(playerID)
}

// Evict removes a room. Removing a room that is already gone is a no-op.
func (r *Registry) Evict(gameID string) bool {
	id := CanonicalID(gameID)

	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()

	if !ok {
		return false
	}

	return r.evictSession(s)
}

// evictSession only removes s itself, never a newer room that reused its ID.
func (r *Registry) evictSession(s *Session) bool {
	r.mu.Lock()
	if r.sessions[s.id] != s {
		r.mu.Unlock()
		return false
	}

	s.close()
	delete(r.sessions, s.id)
	r.mu.Unlock()

	r.logger.Info("room evicted", slog.String("game", s.id))

	if r.onEvict != nil {
		r.onEvict(s.id)
	}

	return true
}

// Sweep evicts rooms nobody has been connected to for AbandonTimeout and
// returns their IDs.
func (r *Registry) Sweep() []string {
	if r.cfg.AbandonTimeout <= 0 {
		return nil
	}

	now := r.clock.Now()

	r.mu.Lock()
	candidates := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		candidates = append(candidates, s)
	}
	r.mu.Unlock()

	var evicted []string
	for _, s := range candidates {
		if !s.abandoned(now, r.cfg.AbandonTimeout) {
			continue
		}
		if r.evictSession(s) {
			evicted = append(evicted, s.id)
		}
	}

	return evicted
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// finished runs under the session's lock, so it only schedules.
func (r *Registry) finished(s *Session) {
	r.clock.AfterFunc(r.cfg.FinishedTTL, func() {
		r.evictSession(s)
	})
}
