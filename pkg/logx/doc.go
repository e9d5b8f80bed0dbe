// Package logx configures praxus' structured logging.
//
// It is a small wrapper (logx.Logger) on top of zerolog that keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Levels swappable at runtime when the config file changes
package logx
