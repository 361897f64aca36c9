// Package config loads server configuration from COINRUSH_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full process configuration.
type Config struct {
	Addr      string `env:"COINRUSH_ADDR" envDefault:":5000"`
	DBPath    string `env:"COINRUSH_DB_PATH" envDefault:"coinrush.db"`
	StaticDir string `env:"COINRUSH_STATIC_DIR" envDefault:"public"`

	EliminationMode  bool          `env:"COINRUSH_ELIMINATION_MODE" envDefault:"false"`
	ImposterChance   float64       `env:"COINRUSH_IMPOSTER_CHANCE" envDefault:"0.2"`
	TickInterval     time.Duration `env:"COINRUSH_TICK_INTERVAL" envDefault:"100ms"`
	SessionDuration  time.Duration `env:"COINRUSH_SESSION_DURATION" envDefault:"2m"`
	RestartDelay     time.Duration `env:"COINRUSH_RESTART_DELAY" envDefault:"10s"`
	SabotagePeriod   time.Duration `env:"COINRUSH_SABOTAGE_PERIOD" envDefault:"30s"`
	SabotageDuration time.Duration `env:"COINRUSH_SABOTAGE_DURATION" envDefault:"5s"`
	PersistTimeout   time.Duration `env:"COINRUSH_PERSIST_TIMEOUT" envDefault:"5s"`
	EngineInboxSize  int           `env:"COINRUSH_ENGINE_INBOX" envDefault:"1024"`

	ClientSendBuffer int     `env:"COINRUSH_CLIENT_SEND_BUFFER" envDefault:"256"`
	InboundRate      float64 `env:"COINRUSH_INBOUND_RATE" envDefault:"60"`
	InboundBurst     int     `env:"COINRUSH_INBOUND_BURST" envDefault:"120"`

	LeaderboardLimit    int           `env:"COINRUSH_LEADERBOARD_LIMIT" envDefault:"10"`
	LeaderboardCacheTTL time.Duration `env:"COINRUSH_LEADERBOARD_CACHE_TTL" envDefault:"5s"`
	WeeklyResetEnabled  bool          `env:"COINRUSH_WEEKLY_RESET" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.TickInterval <= 0 {
		errs = append(errs, errors.New("tick interval must be positive"))
	}
	if c.SessionDuration <= 0 {
		errs = append(errs, errors.New("session duration must be positive"))
	}
	if c.RestartDelay < 0 {
		errs = append(errs, errors.New("restart delay must not be negative"))
	}
	if c.SabotagePeriod <= 0 {
		errs = append(errs, errors.New("sabotage period must be positive"))
	}
	if c.SabotageDuration <= 0 || c.SabotageDuration >= c.SabotagePeriod {
		errs = append(errs, errors.New("sabotage duration must be positive and shorter than its period"))
	}
	if c.ImposterChance < 0 || c.ImposterChance > 1 {
		errs = append(errs, errors.New("imposter chance must be within [0,1]"))
	}
	if c.EngineInboxSize <= 0 || c.ClientSendBuffer <= 0 {
		errs = append(errs, errors.New("buffer sizes must be positive"))
	}
	if c.InboundRate <= 0 || c.InboundBurst <= 0 {
		errs = append(errs, errors.New("inbound rate and burst must be positive"))
	}
	if c.LeaderboardLimit <= 0 {
		errs = append(errs, errors.New("leaderboard limit must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
