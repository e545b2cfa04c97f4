// Package config reads the TOML configuration of the dhash command.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	"github.com/theflywheel/dhash"
	"github.com/theflywheel/dhash/ingest"
	"github.com/theflywheel/dhash/logutil"
)

// Config is the full configuration of the dhash command.
type Config struct {
	Table  TableConfig    `toml:"table"`
	Ingest IngestConfig   `toml:"ingest"`
	Log    logutil.Config `toml:"log"`
}

// TableConfig sizes the hash table.
type TableConfig struct {
	InitialCapacity int     `toml:"initial-capacity"`
	MaxLoadFactor   float64 `toml:"max-load-factor"`
	// MaxCapacity caps growth; 0 means unbounded.
	MaxCapacity int `toml:"max-capacity"`
}

// IngestConfig describes the layout of the input files.
type IngestConfig struct {
	Delimiter      string                `toml:"delimiter"`
	KeyField       int                   `toml:"key-field"`
	ValueFields    []int                 `toml:"value-fields"`
	ValueSeparator string                `toml:"value-separator"`
	MinFields      int                   `toml:"min-fields"`
	SkipHeader     bool                  `toml:"skip-header"`
	BlankKeys      ingest.BlankKeyPolicy `toml:"blank-keys"`
	Workers        int                   `toml:"workers"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	ing := ingest.DefaultOptions()
	return Config{
		Table: TableConfig{
			InitialCapacity: dhash.DefaultCapacity,
			MaxLoadFactor:   dhash.DefaultMaxLoadFactor,
		},
		Ingest: IngestConfig{
			Delimiter:      string(ing.Comma),
			KeyField:       ing.KeyField,
			ValueFields:    ing.ValueFields,
			ValueSeparator: ing.ValueSeparator,
			BlankKeys:      ing.BlankKeys,
			Workers:        ing.Workers,
		},
		Log: logutil.DefaultConfig(),
	}
}

// Load decodes the file at path over the defaults. Unknown keys are an
// error.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks c for values the table, loader or logger would reject.
func (c Config) Validate() error {
	if c.Table.InitialCapacity < 2 {
		return fmt.Errorf("table.initial-capacity: %w", dhash.ErrInvalidCapacity)
	}
	if math.IsNaN(c.Table.MaxLoadFactor) || c.Table.MaxLoadFactor <= 0 || c.Table.MaxLoadFactor >= 1 {
		return fmt.Errorf("table.max-load-factor: %w", dhash.ErrInvalidLoadFactor)
	}
	if c.Table.MaxCapacity != 0 && c.Table.MaxCapacity < c.Table.InitialCapacity {
		return errors.New("table.max-capacity must be 0 or at least table.initial-capacity")
	}
	if utf8.RuneCountInString(c.Ingest.Delimiter) != 1 {
		return fmt.Errorf("ingest.delimiter must be a single character, got %q", c.Ingest.Delimiter)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// Options returns the table options for c.
func (c TableConfig) Options(log *zap.Logger) []dhash.Option {
	return []dhash.Option{
		dhash.WithLogger(log),
		dhash.WithMaxCapacity(c.MaxCapacity),
	}
}

// Options returns the loader options for c.
func (c IngestConfig) Options(log *zap.Logger) ingest.Options {
	comma, _ := utf8.DecodeRuneInString(c.Delimiter)
	return ingest.Options{
		Comma:          comma,
		KeyField:       c.KeyField,
		ValueFields:    c.ValueFields,
		ValueSeparator: c.ValueSeparator,
		MinFields:      c.MinFields,
		SkipHeader:     c.SkipHeader,
		BlankKeys:      c.BlankKeys,
		Workers:        c.Workers,
		Logger:         log,
	}
}
