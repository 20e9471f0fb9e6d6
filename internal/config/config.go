// internal/config/config.go
//
// Process configuration, read from the environment (and .env via godotenv
// in main). Defaults match a local development setup.

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/robalobadob/wordeko/internal/game"
	"github.com/robalobadob/wordeko/internal/words"
)

type Config struct {
	Port         string `env:"PORT"          envDefault:"5175"`
	LogLevel     string `env:"LOG_LEVEL"     envDefault:"info"`
	DBPath       string `env:"DB_PATH"       envDefault:"./data/wordeko.db"`
	ClientOrigin string `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`

	JWTSecret      string `env:"JWT_SECRET"       envDefault:"dev_secret_change_me"`
	JWTExpiresDays int    `env:"JWT_EXPIRES_DAYS" envDefault:"14"`
	CookieName     string `env:"COOKIE_NAME"      envDefault:"wordeko_token"`
	NodeEnv        string `env:"NODE_ENV"         envDefault:"development"`
	DailySalt      string `env:"DAILY_SALT"       envDefault:"local_dev_salt"`

	DictionaryURL  string        `env:"WORDEKO_DICTIONARY_URL"`
	DictionaryFile string        `env:"WORDEKO_DICTIONARY_FILE"`
	DictionaryTTL  time.Duration `env:"WORDEKO_DICTIONARY_TTL"  envDefault:"0s"`
	TickRate       int           `env:"WORDEKO_TICK_RATE"       envDefault:"60"`
	SubmitRate     float64       `env:"WORDEKO_SUBMIT_RATE"     envDefault:"1"`
	SessionIdle    time.Duration `env:"WORDEKO_SESSION_IDLE"    envDefault:"30m"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	if c.TickRate <= 0 {
		return errors.New("config: WORDEKO_TICK_RATE must be positive")
	}
	if c.SubmitRate <= 0 {
		return errors.New("config: WORDEKO_SUBMIT_RATE must be positive")
	}
	if c.JWTExpiresDays <= 0 {
		return errors.New("config: JWT_EXPIRES_DAYS must be positive")
	}
	if err := c.Game().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Production reports whether cookies should be Secure.
func (c Config) Production() bool { return c.NodeEnv == "production" }

// Game returns the session settings derived from c.
func (c Config) Game() game.Config {
	g := game.DefaultConfig()
	g.TickRate = c.TickRate
	return g
}

// DictionarySource picks the dictionary backend. With nothing configured the
// public word map is fetched on every submission.
func (c Config) DictionarySource() words.Source {
	url := c.DictionaryURL
	if url == "" && c.DictionaryFile == "" {
		url = words.DefaultURL
	}
	return words.Select(url, c.DictionaryFile, c.DictionaryTTL, nil)
}
