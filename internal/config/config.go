// Package config loads sealkv settings from YAML or CUE files.
//
// CUE files are unified with an embedded #Config schema and must be fully
// concrete. YAML files are decoded strictly, so unknown fields are rejected.
// Both formats then pass through Validate.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sealkv/internal/keys"
	"github.com/roach88/sealkv/internal/querysql"
)

// EnvPassKey overrides Key.PassKey when set.
const EnvPassKey = "SEALKV_PASS_KEY"

//go:embed schema.cue
var schemaSource string

// Config holds everything needed to open and unlock a store.
type Config struct {
	Database Database `json:"database" yaml:"database"`
	Key      Key      `json:"key" yaml:"key"`
	Profile  string   `json:"profile,omitempty" yaml:"profile,omitempty"`
	Workers  int      `json:"workers,omitempty" yaml:"workers,omitempty"`
	LogLevel string   `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// Database selects the SQL driver and connection.
type Database struct {
	Driver  string `json:"driver,omitempty" yaml:"driver,omitempty"`
	DSN     string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	Dialect string `json:"dialect,omitempty" yaml:"dialect,omitempty"` // overrides the driver's dialect
}

// Key selects how the store key is derived from the pass key.
type Key struct {
	Method  string `json:"method,omitempty" yaml:"method,omitempty"`
	PassKey string `json:"pass_key,omitempty" yaml:"pass_key,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Database: Database{Driver: "sqlite3", DSN: "sealkv.db"},
		Key:      Key{Method: string(keys.MethodRaw)},
		LogLevel: "info",
	}
}

// Load reads path, picking the format from its extension, layers it over
// Default, then applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		cfg, err = ParseYAML(data)
	case ".cue":
		cfg, err = ParseCUE(data, path)
	default:
		return Config{}, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .cue)", ext)
	}
	if err != nil {
		return Config{}, err
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseYAML decodes data over Default with strict field checking.
func ParseYAML(data []byte) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

// ParseCUE unifies data with the #Config schema and decodes it over Default.
func ParseCUE(data []byte, filename string) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("config schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return Config{}, fmt.Errorf("failed to parse CUE: %w", err)
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("config does not match schema: %w", err)
	}

	cfg := Default()
	if err := unified.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode CUE: %w", err)
	}
	return cfg, nil
}

// ApplyEnv applies environment variable overrides.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvPassKey); ok {
		c.Key.PassKey = v
	}
}

// Validate checks values that both formats must satisfy.
func (c Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if _, err := querysql.LookupDialect(c.Database.Dialect); err != nil {
		return fmt.Errorf("database.dialect: %w", err)
	}
	if _, err := keys.ParseKeyMethod(c.Key.Method); err != nil {
		return fmt.Errorf("key.method: %w", err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if _, err := c.SlogLevel(); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// SlogLevel parses LogLevel; empty means info.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}
