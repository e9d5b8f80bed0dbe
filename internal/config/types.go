package config

import "time"

// Config is the praxus configuration file.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Storage   StorageConfig   `json:"storage"`
	Logging   LoggingConfig   `json:"logging"`
	Planning  PlanningConfig  `json:"planning"`
	Assistant AssistantConfig `json:"assistant"`
	Server    ServerConfig    `json:"server"`
	Calendar  CalendarConfig  `json:"calendar"`
}

// StorageConfig selects the persistence backend.
//
// Example:
//
//	storage: { driver: sqlite, path: ./praxus.db }
//	storage: { driver: postgres, dsn: postgres://localhost/praxus }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// PlanningConfig controls the daily schedule.
//
// DayStart is a wall clock "HH:MM" in Timezone (empty = local time).
// AutoPlan is a cron spec (5 or 6 fields); empty disables scheduled runs.
type PlanningConfig struct {
	DayStart string `json:"day_start"`
	Timezone string `json:"timezone,omitempty"`
	AutoPlan string `json:"auto_plan,omitempty"`
}

type AssistantConfig struct {
	Provider     string  `json:"provider"`
	APIKey       string  `json:"api_key,omitempty"` // do not log
	Endpoint     string  `json:"endpoint,omitempty"`
	Model        string  `json:"model"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	HistoryLimit int     `json:"history_limit"`
	RatePerSec   int     `json:"rate_per_sec"`
	Timeout      string  `json:"timeout,omitempty"`
	WorkDir      string  `json:"work_dir,omitempty"` // claude provider only
}

type ServerConfig struct {
	Addr string `json:"addr"`
}

// CalendarConfig enables exporting plans to Google Calendar.
// The token file must already hold a valid OAuth2 token.
type CalendarConfig struct {
	Enabled         bool   `json:"enabled"`
	CalendarID      string `json:"calendar_id,omitempty"`
	CredentialsFile string `json:"credentials_file,omitempty"`
	TokenFile       string `json:"token_file,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver:      "sqlite",
			Path:        "./praxus.db",
			BusyTimeout: "5s",
		},
		Logging: LoggingConfig{Level: "info", Console: true},
		Planning: PlanningConfig{
			DayStart: "09:00",
		},
		Assistant: AssistantConfig{
			Provider:     "mistral",
			Endpoint:     "https://api.mistral.ai/v1/chat/completions",
			Model:        "mistral-tiny",
			Temperature:  0.7,
			MaxTokens:    1000,
			HistoryLimit: 10,
			RatePerSec:   1,
			Timeout:      "60s",
		},
		Server: ServerConfig{Addr: ":8080"},
		Calendar: CalendarConfig{
			CalendarID:      "primary",
			CredentialsFile: "credentials.json",
			TokenFile:       "token.json",
		},
	}
}

// Location resolves the planning timezone.
func (p PlanningConfig) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(p.Timezone)
}
