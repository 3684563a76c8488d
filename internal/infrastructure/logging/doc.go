// Package logging provides structured logging for the GreenHome proxy.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the proxy.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	log := logger.Component("bridge")
//	log.Info("subscribed", "channel", cfg.Bridge.CommandChannel)
//
// # Security
//
// Never log secrets, tokens or passwords. Command payloads are logged by
// request ID only.
package logging
