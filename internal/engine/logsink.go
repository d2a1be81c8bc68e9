// Package engine implements the ReconciliationEngine (§4.5): the heart of
// the system, turning a local scan, a remote tree snapshot, and the current
// StateStore mappings into a set of upload/download/rename/delete actions,
// applying them, and producing a RunSummary.
package engine

import (
	"context"
	"log/slog"
)

// LogSink is the logging seam the engine depends on (§9 "callback-style
// logging → context-carried sink"). Engine code writes log lines only
// through this interface; the other files in the package import log/slog
// only for its Level constants.
type LogSink interface {
	Emit(level slog.Level, module, message string, detail map[string]any)
}

// SlogSink adapts an *slog.Logger to LogSink — the concrete sink wired by
// main.go.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Emit(level slog.Level, module, message string, detail map[string]any) {
	attrs := make([]any, 0, 2+2*len(detail))
	attrs = append(attrs, slog.String("module", module))
	for k, v := range detail {
		attrs = append(attrs, slog.Any(k, v))
	}
	s.Logger.Log(context.Background(), level, message, attrs...)
}

// RecordingSink is a test double that stores every emitted record.
type RecordingSink struct {
	Records []Record
}

// Record is one captured log line.
type Record struct {
	Level   slog.Level
	Module  string
	Message string
	Detail  map[string]any
}

func (s *RecordingSink) Emit(level slog.Level, module, message string, detail map[string]any) {
	s.Records = append(s.Records, Record{Level: level, Module: module, Message: message, Detail: detail})
}
