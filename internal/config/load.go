package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Load reads the config file at path on top of Default(), then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := decode(path, b, cfg); err != nil {
				return nil, fmt.Errorf("config %s: %w", path, err)
			}
		}
	}
	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	jb, err := coerceToJSONBytes(path, data)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("invalid config: trailing data")
		}
		return err
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MISTRAL_API_KEY"); v != "" {
		cfg.Assistant.APIKey = v
	}
	if v := os.Getenv("PRAXUS_DB_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("PRAXUS_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DSN = v
		if os.Getenv("PRAXUS_DB_DRIVER") == "" {
			cfg.Storage.Driver = "postgres"
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	}
}

// Validate checks the fields that would otherwise fail late.
func Validate(cfg *Config) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			return errors.New("storage.path is required for sqlite")
		}
	case "postgres", "pgx":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return errors.New("storage.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown storage driver: %q", cfg.Storage.Driver)
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("assistant.timeout", cfg.Assistant.Timeout); err != nil {
		return err
	}
	if ds := strings.TrimSpace(cfg.Planning.DayStart); ds != "" {
		if _, err := time.Parse("15:04", ds); err != nil {
			return fmt.Errorf("planning.day_start: want HH:MM, got %q", cfg.Planning.DayStart)
		}
	}
	if _, err := cfg.Planning.Location(); err != nil {
		return fmt.Errorf("planning.timezone: %w", err)
	}
	switch cfg.Assistant.Provider {
	case "mistral", "claude":
	default:
		return fmt.Errorf("unknown assistant provider: %q", cfg.Assistant.Provider)
	}
	return nil
}

// coerceToJSONBytes converts YAML config to JSON bytes so both formats share
// the strict JSON decoder.
func coerceToJSONBytes(path string, data []byte) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if v == nil {
		return []byte("{}"), nil
	}
	j, err := json.Marshal(normalizeYAML(v))
	if err != nil {
		return nil, fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, nil
}

// normalizeYAML ensures all map keys are strings so the result can be JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}
