/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package syncthink

import (
	"fmt"
	"sort"
	"time"
)

// MaxPlayers is the fixed room capacity.
const MaxPlayers = 2

// Submission is a player's answer for the current round.
type Submission struct {
	Answer    string
	Submitted bool
	Missed    bool // recorded when the round clock ran out before an answer
	TimeLeft  int
}

func (s Submission) present() bool {
	return s.Submitted || s.Missed
}

// Player holds the data we store server-side
type Player struct {
	ID             string
	Username       string
	Connected      bool
	DisconnectedAt time.Time
	Score          int
	Admin          bool
	Submission     Submission
}

// Roster is the ordered membership of one room. Insertion order is join order.
type Roster struct {
	players []*Player
}

func (r *Roster) Len() int {
	return len(r.players)
}

func (r *Roster) get(id string) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// register adds a player that has not connected yet.
func (r *Roster) register(id, username string) (*Player, error) {
	if p := r.get(id); p != nil {
		return p, nil
	}

	if len(r.players) >= MaxPlayers {
		return nil, ErrRoomFull
	}

	if username == "" {
		username = fmt.Sprintf("Player%d", len(r.players)+1)
	}

	p := &Player{
		ID:       id,
		Username: username,
		Admin:    len(r.players) == 0,
	}
	r.players = append(r.players, p)

	return p, nil
}

// join connects a player, adding it first if it is not a member yet.
// The returned bool is true when the player was already a member.
func (r *Roster) join(id, username string, now time.Time) (*Player, bool, error) {
	existing := r.get(id) != nil

	p, err := r.register(id, username)
	if err != nil {
		return nil, false, err
	}

	if existing && username != "" {
		p.Username = username
	}

	p.Connected = true
	p.DisconnectedAt = time.Time{}

	return p, existing, nil
}

// recordAnswer overwrites any earlier answer from the same round.
func (r *Roster) recordAnswer(id, answer string, timeLeft int) error {
	p := r.get(id)
	if p == nil {
		return ErrPlayerNotRecognized
	}

	p.Submission = Submission{
		Answer:    answer,
		Submitted: true,
		TimeLeft:  timeLeft,
	}

	return nil
}

func (r *Roster) markDisconnected(id string, now time.Time) error {
	p := r.get(id)
	if p == nil {
		return ErrPlayerNotRecognized
	}

	p.Connected = false
	p.DisconnectedAt = now

	return nil
}

// allSubmitted ignores disconnected players.
func (r *Roster) allSubmitted() bool {
	for _, p := range r.players {
		if p.Connected && !p.Submission.present() {
			return false
		}
	}
	return true
}

func (r *Roster) connectedCount() int {
	n := 0
	for _, p := range r.players {
		if p.Connected {
			n++
		}
	}
	return n
}

// markMissed records the no-answer sentinel for connected players who
// have not answered.
func (r *Roster) markMissed() {
	for _, p := range r.players {
		if p.Connected && !p.Submission.present() {
			p.Submission = Submission{Missed: true}
		}
	}
}

func (r *Roster) resetSubmissions() {
	for _, p := range r.players {
		p.Submission = Submission{}
	}
}

func (r *Roster) resetScores() {
	for _, p := range r.players {
		p.Score = 0
	}
}

func (r *Roster) award(points int) {
	for _, p := range r.players {
		p.Score += points
	}
}

// lastSeen is the latest disconnect stamp, zero if anyone is connected.
func (r *Roster) lastSeen() time.Time {
	var last time.Time
	for _, p := range r.players {
		if p.Connected {
			return time.Time{}
		}
		if p.DisconnectedAt.After(last) {
			last = p.DisconnectedAt
		}
	}
	return last
}

func (r *Roster) views() []PlayerView {
	out := make([]PlayerView, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p.view())
	}
	return out
}

func (r *Roster) scores() map[string]int {
	out := make(map[string]int, len(r.players))
	for _, p := range r.players {
		out[p.ID] = p.Score
	}
	return out
}

// ranked orders players by descending score. Equal scores keep join order.
func (r *Roster) ranked() []PlayerView {
	out := r.views()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func (p *Player) view() PlayerView {
	return PlayerView{
		ID:        p.ID,
		Username:  p.Username,
		Score:     p.Score,
		Connected: p.Connected,
		IsAdmin:   p.Admin,
	}
}
