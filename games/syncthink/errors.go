/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package syncthink

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomFull            = errors.New("room is full")
	ErrPlayerNotRecognized = errors.New("player not recognized")
	ErrTooManySeeds        = errors.New("a room can be created with at most one player")

	// ErrEmptyQuestionPool is a configuration error and is only returned at startup.
	ErrEmptyQuestionPool = errors.New("question pool is empty")
)
