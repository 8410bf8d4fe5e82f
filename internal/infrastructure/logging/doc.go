// Package logging provides structured logging for factoryd.
//
// It wraps log/slog so every component logs with the same default fields
// (service, version) and format.
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
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("bridge").Info("client connected", "client", name)
//
// Log lines meant for the operator console (cycle summaries, recipe
// activity) go through the logsink package in addition to this logger.
//
// Never log client secrets or tokens.
package logging
