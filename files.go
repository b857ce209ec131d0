/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/Seednode/syncthink/games/syncthink"
)

func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(bytes)/float64(div),
		"kMGTPE"[exp])
}

// loadQuestionPool reads the "questions" list from a yaml, json or toml
// file, or falls back to the built-in prompts when no file is given.
func loadQuestionPool(cfg *Config) (*syncthink.QuestionPool, error) {
	if cfg.questions == "" {
		return syncthink.NewQuestionPool(syncthink.DefaultQuestions)
	}

	info, err := os.Stat(cfg.questions)
	if err != nil {
		return nil, fmt.Errorf("reading questions: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(cfg.questions)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading questions from %s: %w", cfg.questions, err)
	}

	pool, err := syncthink.NewQuestionPool(v.GetStringSlice("questions"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.questions, err)
	}

	logf(cfg, "START: Loaded %d questions from %s (%s)",
		pool.Len(),
		cfg.questions,
		humanReadableSize(info.Size()),
	)

	return pool, nil
}
