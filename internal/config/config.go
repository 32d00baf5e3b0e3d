// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/mpesa-insights/internal/pdftables"
	"github.com/dvloznov/mpesa-insights/internal/session"
	"github.com/dvloznov/mpesa-insights/internal/statement"
	"github.com/joho/godotenv"
)

const (
	DefaultPort             = "8080"
	DefaultLogLevel         = "info"
	DefaultMaxUploadBytes   = 10 << 20
	DefaultUploadRatePerMin = 30
)

// Config holds all settings shared by the API server, the worker and the CLI.
type Config struct {
	Port     string
	LogLevel string

	// Gemini
	GeminiAPIKey string
	GeminiModel  string

	// Google Cloud sinks; empty values disable them.
	GCSBucket       string
	BigQueryProject string
	BigQueryDataset string

	// Sessions
	SessionTTL      time.Duration
	SessionIdentity session.IdentityPolicy

	// Cleaning
	StrictRows      bool
	HeaderConflicts statement.ConflictPolicy

	// Uploads
	MaxUploadBytes   int64
	UploadRatePerMin int
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// Load reads a .env file when present, then builds the Config from the process
// environment. Variables already set in the environment take precedence.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("Load: reading env file: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from lookup and validates it. All problems are
// reported together.
func FromLookup(lookup LookupFunc) (*Config, error) {
	r := reader{lookup: lookup}

	cfg := &Config{
		Port:             r.str("PORT", DefaultPort),
		LogLevel:         r.str("LOG_LEVEL", DefaultLogLevel),
		GeminiAPIKey:     r.str("GEMINI_API_KEY", ""),
		GeminiModel:      r.str("GEMINI_MODEL", pdftables.DefaultModelName),
		GCSBucket:        r.str("GCS_BUCKET", ""),
		BigQueryProject:  r.str("BIGQUERY_PROJECT", ""),
		BigQueryDataset:  r.str("BIGQUERY_DATASET", ""),
		SessionTTL:       r.duration("SESSION_TTL", session.DefaultTTL),
		StrictRows:       r.boolean("STRICT_ROWS", false),
		MaxUploadBytes:   r.int64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),
		UploadRatePerMin: int(r.int64("UPLOAD_RATE_PER_MIN", DefaultUploadRatePerMin)),
	}

	identity, err := session.ParseIdentityPolicy(r.str("SESSION_IDENTITY", ""))
	r.add("SESSION_IDENTITY", err)
	cfg.SessionIdentity = identity

	conflicts, err := statement.ParseConflictPolicy(r.str("HEADER_CONFLICTS", ""))
	r.add("HEADER_CONFLICTS", err)
	cfg.HeaderConflicts = conflicts

	if err := errors.Join(append(r.errs, cfg.Validate())...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.UploadRatePerMin <= 0 {
		errs = append(errs, errors.New("UPLOAD_RATE_PER_MIN must be positive"))
	}
	if c.BigQueryDataset != "" && c.BigQueryProject == "" {
		errs = append(errs, errors.New("BIGQUERY_DATASET requires BIGQUERY_PROJECT"))
	}
	return errors.Join(errs...)
}

// ArchiveEnabled reports whether ingested statements go to the BigQuery archive.
func (c *Config) ArchiveEnabled() bool {
	return c.BigQueryProject != ""
}

// CleanerOptions returns the row cleaning options.
func (c *Config) CleanerOptions() statement.Options {
	return statement.Options{
		Strict:          c.StrictRows,
		HeaderConflicts: c.HeaderConflicts,
	}
}

type reader struct {
	lookup LookupFunc
	errs   []error
}

func (r *reader) add(key string, err error) {
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
	}
}

func (r *reader) str(key, fallback string) string {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (r *reader) duration(key string, fallback time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	r.add(key, err)
	return d
}

func (r *reader) boolean(key string, fallback bool) bool {
	v := r.str(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	r.add(key, err)
	return b
}

func (r *reader) int64(key string, fallback int64) int64 {
	v := r.str(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	r.add(key, err)
	return n
}
