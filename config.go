package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/syncthink/games/syncthink"
)

type Config struct {
	allowedOrigins []string
	bind           string
	port           int
	prefix         string
	profile        bool
	questions      string
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool

	maxRounds      int
	roundTime      time.Duration
	answerDelay    time.Duration
	resultsDelay   time.Duration
	finishedTTL    time.Duration
	abandonTimeout time.Duration
	matchBonus     int
	pauseWhenEmpty bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.maxRounds < 1 {
		return fmt.Errorf("invalid max rounds (must be at least 1): %d", c.maxRounds)
	}
	if c.roundTime < time.Second {
		return fmt.Errorf("invalid round time (must be at least 1s): %s", c.roundTime)
	}
	if c.matchBonus < 0 {
		return fmt.Errorf("invalid match bonus (must not be negative): %d", c.matchBonus)
	}
	for name, d := range map[string]time.Duration{
		"answer delay":  c.answerDelay,
		"results delay": c.resultsDelay,
		"finished ttl":  c.finishedTTL,
	} {
		if d < 0 {
			return fmt.Errorf("invalid %s (must not be negative): %s", name, d)
		}
	}
	if c.abandonTimeout != 0 && c.abandonTimeout < time.Second {
		return fmt.Errorf("invalid abandon timeout (must be 0 or at least 1s): %s", c.abandonTimeout)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) gameConfig() syncthink.Config {
	return syncthink.Config{
		MaxRounds:      c.maxRounds,
		RoundTime:      c.roundTime,
		AnswerDelay:    c.answerDelay,
		ResultsDelay:   c.resultsDelay,
		FinishedTTL:    c.finishedTTL,
		AbandonTimeout: c.abandonTimeout,
		MatchBonus:     c.matchBonus,
		PauseWhenEmpty: c.pauseWhenEmpty,
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SYNCTHINK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	defaults := syncthink.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "syncthink",
		Short:         "A two-player word matching game: answer the same prompt, score when you think alike.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringSliceVar(&cfg.allowedOrigins, "allowed-origins", []string{"*"}, "origins allowed to call the API and open websockets (env: SYNCTHINK_ALLOWED_ORIGINS)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: SYNCTHINK_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: SYNCTHINK_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: SYNCTHINK_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: SYNCTHINK_PROFILE)")
	fs.StringVarP(&cfg.questions, "questions", "q", "", "yaml, json or toml file with a \"questions\" list (env: SYNCTHINK_QUESTIONS)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: SYNCTHINK_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: SYNCTHINK_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: SYNCTHINK_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: SYNCTHINK_VERSION)")

	fs.IntVar(&cfg.maxRounds, "max-rounds", defaults.MaxRounds, "rounds per game (env: SYNCTHINK_MAX_ROUNDS)")
	fs.DurationVar(&cfg.roundTime, "round-time", defaults.RoundTime, "time players have to answer each prompt (env: SYNCTHINK_ROUND_TIME)")
	fs.DurationVar(&cfg.answerDelay, "answer-delay", defaults.AnswerDelay, "pause after both players answer, before results (env: SYNCTHINK_ANSWER_DELAY)")
	fs.DurationVar(&cfg.resultsDelay, "results-delay", defaults.ResultsDelay, "time results stay up before the next round (env: SYNCTHINK_RESULTS_DELAY)")
	fs.DurationVar(&cfg.finishedTTL, "finished-ttl", defaults.FinishedTTL, "time before finished games are removed (env: SYNCTHINK_FINISHED_TTL)")
	fs.DurationVar(&cfg.abandonTimeout, "abandon-timeout", defaults.AbandonTimeout, "time before games with no connected players are removed, 0 to disable (env: SYNCTHINK_ABANDON_TIMEOUT)")
	fs.IntVar(&cfg.matchBonus, "match-bonus", defaults.MatchBonus, "points each player gets for a matching round (env: SYNCTHINK_MATCH_BONUS)")
	fs.BoolVar(&cfg.pauseWhenEmpty, "pause-when-empty", false, "pause the round clock while nobody is connected (env: SYNCTHINK_PAUSE_WHEN_EMPTY)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if list, ok := val.([]string); ok {
				val = strings.Join(list, ",")
			}
			_ = fs.Set(f.Name, fmt.Sprintf("%v", val))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("syncthink v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
