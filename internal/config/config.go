// Package config loads server settings from the environment, after an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/DoyleJ11/promptparty-backend/internal/engine"
)

const (
	ContentGenerated = "generated"
	ContentCatalog   = "catalog"
)

type Config struct {
	Addr      string `env:"ADDR" envDefault:":8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	SelectionSeconds int           `env:"SELECTION_SECONDS" envDefault:"60"`
	VotingSeconds    int           `env:"VOTING_SECONDS" envDefault:"45"`
	ResultsSeconds   int           `env:"RESULTS_SECONDS" envDefault:"12"`
	LobbyIdleTTL     time.Duration `env:"LOBBY_IDLE_TTL" envDefault:"30m"`
	FetchTimeout     time.Duration `env:"FETCH_TIMEOUT" envDefault:"10s"`

	ContentSource    string `env:"CONTENT_SOURCE" envDefault:"generated"`
	DatabaseURL      string `env:"DATABASE_URL"`
	CardImageBaseURL string `env:"CARD_IMAGE_BASE_URL"`

	PublicBaseURL  string   `env:"PUBLIC_BASE_URL"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	OTelEndpoint   string   `env:"OTEL_ENDPOINT"`
}

// Load reads the given .env files (missing ones are skipped; real
// environment variables win) and parses the environment.
func Load(dotenv ...string) (Config, error) {
	for _, path := range dotenv {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.SelectionSeconds <= 0 || c.VotingSeconds <= 0 || c.ResultsSeconds <= 0 {
		errs = append(errs, errors.New("phase durations must be positive"))
	}
	if c.LobbyIdleTTL < 0 {
		errs = append(errs, errors.New("LOBBY_IDLE_TTL must not be negative"))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, errors.New("FETCH_TIMEOUT must be positive"))
	}
	switch c.ContentSource {
	case ContentGenerated:
	case ContentCatalog:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("CONTENT_SOURCE=catalog needs DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CONTENT_SOURCE %q", c.ContentSource))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) Timings() engine.Timings {
	return engine.Timings{
		Selection: time.Duration(c.SelectionSeconds) * time.Second,
		Voting:    time.Duration(c.VotingSeconds) * time.Second,
		Results:   time.Duration(c.ResultsSeconds) * time.Second,
	}
}
