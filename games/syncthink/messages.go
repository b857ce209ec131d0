/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package syncthink

// Broadcaster delivers outbound messages to every connection in a room.
// Implementations must not block and must not call back into the session.
type Broadcaster interface {
	Broadcast(gameID string, msg any)
}

// Status is the session lifecycle state.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// PlayerView is the public shape of a player sent to clients.
type PlayerView struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
	IsAdmin   bool   `json:"isAdmin"`
}

type ScoreEntry struct {
	ID    string `json:"id"`
	Score int    `json:"score"`
}

// Sent to everyone in the room whenever membership or connection state changes
type GameUpdateMessage struct {
	Type      string         `json:"type"` // "gameUpdate"
	Players   []PlayerView   `json:"players"`
	Status    Status         `json:"status"`
	Round     int            `json:"round,omitempty"`
	MaxRounds int            `json:"maxRounds,omitempty"`
	Scores    map[string]int `json:"scores,omitempty"`
}

type GameStartedMessage struct {
	Type      string       `json:"type"` // "gameStarted"
	Round     int          `json:"round"`
	MaxRounds int          `json:"maxRounds"`
	Players   []PlayerView `json:"players"`
}

type NewRoundMessage struct {
	Type      string `json:"type"` // "newRound"
	Question  string `json:"question"`
	Round     int    `json:"round"`
	MaxRounds int    `json:"maxRounds"`
	TimeLeft  int    `json:"timeLeft"`
}

type TimerUpdateMessage struct {
	Type      string `json:"type"` // "timerUpdate"
	TimeLeft  int    `json:"timeLeft"`
	Round     int    `json:"round"`
	MaxRounds int    `json:"maxRounds"`
}

// AllAnsweredMessage tells clients the round is closed before the results arrive.
type AllAnsweredMessage struct {
	Type  string `json:"type"` // "allPlayersAnswered"
	Round int    `json:"round"`
}

// RoundResultsMessage carries raw answers keyed by player ID. Players who
// did not answer map to an empty string; those who ran out of time are
// also listed in Missed.
type RoundResultsMessage struct {
	Type      string            `json:"type"` // "roundResults"
	Match     bool              `json:"match"`
	Answers   map[string]string `json:"answers"`
	Missed    []string          `json:"missed"` // IDs whose round clock ran out
	Scores    map[string]int    `json:"scores"`
	Round     int               `json:"round"`
	MaxRounds int               `json:"maxRounds"`
	Players   []PlayerView      `json:"players"`
	Question  string            `json:"question"`
}

type FinalResults struct {
	Winner    string              `json:"winner"`
	Players   []PlayerView        `json:"players"`   // ranked
	Questions []string            `json:"questions"` // one per round played
	Answers   []map[string]string `json:"answers"`   // parallel to Questions
	Missed    [][]string          `json:"missed"`    // parallel to Questions
	Matches   []bool              `json:"matches"`   // parallel to Questions
}

type GameOverMessage struct {
	Type         string       `json:"type"` // "gameOver"
	Winner       string       `json:"winner"`
	Draw         bool         `json:"draw"`
	Scores       []ScoreEntry `json:"scores"`
	Players      []PlayerView `json:"players"`
	FinalResults FinalResults `json:"finalResults"`
}

// ErrorMessage is only ever sent to the connection that caused it.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

func NewErrorMessage(err error) ErrorMessage {
	return ErrorMessage{
		Type:    "error",
		Message: err.Error(),
	}
}

// Snapshot is a read-only copy of a session for the HTTP API.
type Snapshot struct {
	GameID    string       `json:"gameId"`
	Status    Status       `json:"status"`
	Round     int          `json:"round"`
	MaxRounds int          `json:"maxRounds"`
	Question  string       `json:"question,omitempty"`
	Players   []PlayerView `json:"players"`
}

// RoundRecord is kept for the end-of-game summary.
type RoundRecord struct {
	Round    int
	Question string
	Answers  map[string]string
	Missed   []string
	Match    bool
}
