// Package logging sets up structured logging for xcalld. Grounded on
// marmos91-dittofs/internal/logger: stdlib log/slog with a small set of
// canonical field keys, kept protocol-agnostic so the same logger serves
// the dispatcher and every connection.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Canonical field keys, mirroring dittofs's Key* constants but scoped to
// the xCall domain.
const (
	KeySn         = "sn"
	KeyReqID      = "req_id"
	KeyConnSn     = "conn_sn"
	KeyNetwork    = "network"
	KeyConnection = "connection"
	KeyFrom       = "from"
	KeyTo         = "to"
)

// New builds the root logger for the given level string ("debug", "info",
// "warn", "error"); unrecognised values fall back to info.
func New(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}
