package config

import "praxus/pkg/logx"

// LogxConfig converts the logging section, letting level override the file
// when non-empty.
func (l LoggingConfig) LogxConfig(level string) logx.Config {
	if level == "" {
		level = l.Level
	}
	return logx.Config{
		Level:   level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
	}
}
