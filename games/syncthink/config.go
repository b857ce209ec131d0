/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package syncthink

import "time"

// Config holds the per-session game rules. It is fixed when a session is
// created.
type Config struct {
	MaxRounds      int
	RoundTime      time.Duration
	AnswerDelay    time.Duration // pause between "everyone answered" and results
	ResultsDelay   time.Duration // pause between results and the next round
	FinishedTTL    time.Duration
	AbandonTimeout time.Duration
	MatchBonus     int
	PauseWhenEmpty bool
}

func DefaultConfig() Config {
	return Config{
		MaxRounds:      10,
		RoundTime:      30 * time.Second,
		AnswerDelay:    time.Second,
		ResultsDelay:   5 * time.Second,
		FinishedTTL:    60 * time.Second,
		AbandonTimeout: 2 * time.Minute,
		MatchBonus:     10,
	}
}

func (c Config) roundSeconds() int {
	secs := int(c.RoundTime / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
