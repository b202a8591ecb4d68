package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want *zapcore.Level
	}{
		{"debug", levelPtr(zapcore.DebugLevel)},
		{"info", levelPtr(zapcore.InfoLevel)},
		{"WARN", levelPtr(zapcore.WarnLevel)},
		{"error", levelPtr(zapcore.ErrorLevel)},
		{"verbose", nil},
		{"", levelPtr(zapcore.InfoLevel)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parseLevel(tt.in)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("parseLevel(%q) = %v, want nil", tt.in, *got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, *tt.want)
			}
		})
	}
}

func levelPtr(l zapcore.Level) *zapcore.Level { return &l }

func TestNamedAddsComponent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core)).Named("scheduler")

	log.Info("tick", Int("queries", 2))
	log.Debugf("... and %d more", 3)

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("logged %d entries, want 2", len(entries))
	}
	if entries[0].LoggerName != "scheduler" {
		t.Errorf("LoggerName = %q, want scheduler", entries[0].LoggerName)
	}
	if got := entries[0].ContextMap()["queries"]; got != int64(2) {
		t.Errorf("queries field = %v, want 2", got)
	}
	if entries[1].Message != "... and 3 more" {
		t.Errorf("Message = %q", entries[1].Message)
	}
}

func TestNewNopDiscards(t *testing.T) {
	log := NewNop()
	log.Error("ignored", Error(nil))
	if err := log.Sync(); err != nil {
		t.Errorf("Sync() error = %v", err)
	}
}
