/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Syncthink Matching Game
//
// Two players share a room. Every round both answer the same prompt, and if
// their answers match (ignoring case and surrounding space) they both score.
//
// Features:
// - Rooms hold exactly two players; the first to join is the admin
// - The game starts on its own once both players are connected
// - Each round runs on a countdown; players who stay silent get no answer
// - Resubmitting before the round closes replaces the earlier answer
// - Disconnected players never hold up a round
// - Prompts never repeat until the whole pool has been used
// - Finished and abandoned rooms are evicted by the registry

package syncthink

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Session is one room. All state is guarded by mu; inbound events, countdown
// ticks and scheduled steps all take it, so they never interleave.
type Session struct {
	mu sync.Mutex

	id        string
	cfg       Config
	clock     Clock
	out       Broadcaster
	logger    *slog.Logger
	createdAt time.Time

	roster   Roster
	deck     *Deck
	status   Status
	round    int
	question string
	used     []string
	history  []RoundRecord

	countdown  *Countdown
	roundOpen  bool
	paused     bool
	pausedLeft int

	pending    Timer
	pendingSeq int

	closed   bool
	onFinish func(*Session)
}

func newSession(id string, cfg Config, deck *Deck, clock Clock, out Broadcaster, logger *slog.Logger, onFinish func(*Session)) *Session {
	return &Session{
		id:        id,
		cfg:       cfg,
		clock:     clock,
		out:       out,
		logger:    logger.With(slog.String("game", id)),
		createdAt: clock.Now(),
		deck:      deck,
		status:    StatusWaiting,
		onFinish:  onFinish,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		GameID:    s.id,
		Status:    s.status,
		Round:     s.round,
		MaxRounds: s.cfg.MaxRounds,
		Question:  s.question,
		Players:   s.roster.views(),
	}
}

// register adds a player ahead of their first connection.
func (s *Session) register(playerID, username string) (PlayerView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return PlayerView{}, ErrRoomNotFound
	}

	p, err := s.roster.register(playerID, username)
	if err != nil {
		return PlayerView{}, err
	}

	s.broadcastUpdateLocked()

	return p.view(), nil
}

// Join connects a player, or reconnects one that is already a member.
func (s *Session) Join(playerID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrRoomNotFound
	}

	p, existing, err := s.roster.join(playerID, username, s.clock.Now())
	if err != nil {
		return err
	}

	if existing {
		s.logger.Debug("player reconnected", slog.String("player", p.Username))
	} else {
		s.logger.Info("player joined", slog.String("player", p.Username))
	}

	s.broadcastUpdateLocked()

	switch s.status {
	case StatusWaiting:
		if s.roster.connectedCount() == MaxPlayers {
			s.startLocked()
		}
	case StatusPlaying:
		if s.paused {
			s.resumeLocked()
		}
	}

	return nil
}

// Submit records an answer for the current round. Answers arriving while no
// round is open are dropped without error.
func (s *Session) Submit(playerID, answer string, timeLeft int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrRoomNotFound
	}

	if s.roster.get(playerID) == nil {
		return ErrPlayerNotRecognized
	}

	if s.status != StatusPlaying || !s.roundOpen {
		s.logger.Debug("ignoring answer outside of an open round",
			slog.String("player", playerID),
			slog.String("status", string(s.status)),
		)
		return nil
	}

	if err := s.roster.recordAnswer(playerID, answer, timeLeft); err != nil {
		return err
	}

	if s.readyLocked() {
		s.closeRoundLocked()
	}

	return nil
}

func (s *Session) Disconnect(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrRoomNotFound
	}

	if err := s.roster.markDisconnected(playerID, s.clock.Now()); err != nil {
		return err
	}

	s.logger.Info("player disconnected", slog.String("player", playerID))

	s.broadcastUpdateLocked()

	if s.status != StatusPlaying || !s.roundOpen {
		return nil
	}

	switch {
	case s.roster.connectedCount() == 0:
		if s.cfg.PauseWhenEmpty {
			s.pauseLocked()
		}
	case s.roster.allSubmitted():
		s.closeRoundLocked()
	}

	return nil
}

// close stops every pending callback. It is safe to call more than once.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	s.roundOpen = false

	if s.countdown != nil {
		s.countdown.Cancel()
	}

	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.pendingSeq++
}

// abandoned reports whether nobody has been connected for at least timeout.
func (s *Session) abandoned(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roster.connectedCount() > 0 {
		return false
	}

	since := s.roster.lastSeen()
	if since.Before(s.createdAt) {
		since = s.createdAt
	}

	return now.Sub(since) >= timeout
}

func (s *Session) readyLocked() bool {
	return s.roster.connectedCount() > 0 && s.roster.allSubmitted()
}

func (s *Session) startLocked() {
	s.status = StatusPlaying
	s.roster.resetScores()
	s.round = 0

	s.logger.Info("game started", slog.Int("max_rounds", s.cfg.MaxRounds))

	s.out.Broadcast(s.id, GameStartedMessage{
		Type:      "gameStarted",
		Round:     1,
		MaxRounds: s.cfg.MaxRounds,
		Players:   s.roster.views(),
	})

	s.beginRoundLocked()
}

func (s *Session) beginRoundLocked() {
	s.round++
	s.roster.resetSubmissions()
	s.question = s.deck.Draw()
	s.used = append(s.used, s.question)
	s.roundOpen = true
	s.paused = false

	secs := s.cfg.roundSeconds()

	s.logger.Debug("round started",
		slog.Int("round", s.round),
		slog.Int("cycle", s.deck.Cycles()),
		slog.String("question", s.question),
	)

	s.out.Broadcast(s.id, NewRoundMessage{
		Type:      "newRound",
		Question:  s.question,
		Round:     s.round,
		MaxRounds: s.cfg.MaxRounds,
		TimeLeft:  secs,
	})

	if s.cfg.PauseWhenEmpty && s.roster.connectedCount() == 0 {
		s.paused = true
		s.pausedLeft = secs
		return
	}

	s.startCountdownLocked(secs)
}

func (s *Session) startCountdownLocked(secs int) {
	if s.countdown != nil {
		s.countdown.Cancel()
	}

	round := s.round
	s.countdown = NewCountdown(s.clock, &s.mu)
	s.countdown.Start(secs,
		func(left int) {
			s.out.Broadcast(s.id, TimerUpdateMessage{
				Type:      "timerUpdate",
				TimeLeft:  left,
				Round:     round,
				MaxRounds: s.cfg.MaxRounds,
			})
		},
		func() {
			s.expireLocked(round)
		},
	)
}

func (s *Session) pauseLocked() {
	if s.countdown == nil || !s.countdown.Running() {
		return
	}

	s.pausedLeft = s.countdown.Remaining()
	s.countdown.Cancel()
	s.paused = true

	s.logger.Debug("round clock paused", slog.Int("round", s.round), slog.Int("time_left", s.pausedLeft))
}

func (s *Session) resumeLocked() {
	s.paused = false

	s.out.Broadcast(s.id, TimerUpdateMessage{
		Type:      "timerUpdate",
		TimeLeft:  s.pausedLeft,
		Round:     s.round,
		MaxRounds: s.cfg.MaxRounds,
	})

	s.startCountdownLocked(s.pausedLeft)
}

func (s *Session) expireLocked(round int) {
	if s.closed || !s.roundOpen || s.round != round {
		return
	}

	s.roster.markMissed()
	s.roundOpen = false
	s.resolveLocked()
}

// closeRoundLocked ends answering early because everyone connected has answered.
func (s *Session) closeRoundLocked() {
	s.roundOpen = false
	s.paused = false
	if s.countdown != nil {
		s.countdown.Cancel()
	}

	s.out.Broadcast(s.id, AllAnsweredMessage{
		Type:  "allPlayersAnswered",
		Round: s.round,
	})

	if s.cfg.AnswerDelay <= 0 {
		s.resolveLocked()
		return
	}

	s.scheduleLocked(s.cfg.AnswerDelay, s.resolveLocked)
}

func (s *Session) resolveLocked() {
	answers := make(map[string]string, s.roster.Len())
	normalized := make([]string, 0, s.roster.Len())
	missed := []string{}

	for _, p := range s.roster.players {
		answers[p.ID] = p.Submission.Answer
		if p.Submission.Missed {
			missed = append(missed, p.ID)
		}
		if n := normalizeAnswer(p.Submission.Answer); n != "" {
			normalized = append(normalized, n)
		}
	}

	match := len(normalized) >= 2
	for _, n := range normalized {
		if n != normalized[0] {
			match = false
			break
		}
	}

	if match {
		s.roster.award(s.cfg.MatchBonus)
	}

	s.history = append(s.history, RoundRecord{
		Round:    s.round,
		Question: s.question,
		Answers:  answers,
		Missed:   missed,
		Match:    match,
	})

	s.logger.Info("round resolved", slog.Int("round", s.round), slog.Bool("match", match))

	s.out.Broadcast(s.id, RoundResultsMessage{
		Type:      "roundResults",
		Match:     match,
		Answers:   answers,
		Missed:    missed,
		Scores:    s.roster.scores(),
		Round:     s.round,
		MaxRounds: s.cfg.MaxRounds,
		Players:   s.roster.views(),
		Question:  s.question,
	})

	if s.round >= s.cfg.MaxRounds {
		s.finishLocked()
		return
	}

	s.scheduleLocked(s.cfg.ResultsDelay, s.beginRoundLocked)
}

func (s *Session) finishLocked() {
	s.status = StatusFinished
	s.roundOpen = false
	if s.countdown != nil {
		s.countdown.Cancel()
	}

	ranked := s.roster.ranked()

	var winner string
	if len(ranked) > 0 {
		winner = ranked[0].ID
	}
	draw := len(ranked) > 1 && ranked[0].Score == ranked[1].Score

	scores := make([]ScoreEntry, 0, s.roster.Len())
	for _, p := range s.roster.players {
		scores = append(scores, ScoreEntry{ID: p.ID, Score: p.Score})
	}

	questions := append([]string(nil), s.used...)
	answers := make([]map[string]string, 0, len(s.history))
	missed := make([][]string, 0, len(s.history))
	matches := make([]bool, 0, len(s.history))
	for _, rec := range s.history {
		answers = append(answers, rec.Answers)
		missed = append(missed, rec.Missed)
		matches = append(matches, rec.Match)
	}

	s.logger.Info("game over", slog.String("winner", winner), slog.Bool("draw", draw))

	s.out.Broadcast(s.id, GameOverMessage{
		Type:    "gameOver",
		Winner:  winner,
		Draw:    draw,
		Scores:  scores,
		Players: s.roster.views(),
		FinalResults: FinalResults{
			Winner:    winner,
			Players:   ranked,
			Questions: questions,
			Answers:   answers,
			Missed:    missed,
			Matches:   matches,
		},
	})

	if s.onFinish != nil {
		s.onFinish(s)
	}
}

// scheduleLocked runs step after d unless the session closes or another
// step is scheduled first.
func (s *Session) scheduleLocked(d time.Duration, step func()) {
	if s.pending != nil {
		s.pending.Stop()
	}

	s.pendingSeq++
	seq := s.pendingSeq

	s.pending = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.closed || seq != s.pendingSeq {
			return
		}

		s.pending = nil
		step()
	})
}

func (s *Session) broadcastUpdateLocked() {
	msg := GameUpdateMessage{
		Type:    "gameUpdate",
		Players: s.roster.views(),
		Status:  s.status,
	}

	if s.status != StatusWaiting {
		msg.Round = s.round
		msg.MaxRounds = s.cfg.MaxRounds
		msg.Scores = s.roster.scores()
	}

	s.out.Broadcast(s.id, msg)
}

// normalizeAnswer folds case (Unicode-aware) and trims surrounding space.
func normalizeAnswer(answer string) string {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return ""
	}

	return cases.Fold().String(norm.NFC.String(answer))
}
