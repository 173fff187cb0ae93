package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
		ok   bool
	}{
		{"debug", zapcore.DebugLevel, true},
		{"info", zapcore.InfoLevel, true},
		{"warn", zapcore.WarnLevel, true},
		{"error", zapcore.ErrorLevel, true},
		{"verbose", zapcore.InfoLevel, false},
		{"", zapcore.InfoLevel, false},
	}

	for _, tt := range tests {
		got, ok := parseLevel(tt.in)
		assert.Equal(t, tt.ok, ok, "parseLevel(%q)", tt.in)
		assert.Equal(t, tt.want, got, "parseLevel(%q)", tt.in)
	}
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := wrap(zap.New(core)).With(String("component", "health"))

	log.Debug("hidden")
	log.Info("checked", Int("count", 3), Error(errors.New("boom")))

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "checked", entries[0].Message)
		assert.Equal(t, "health", ctx["component"])
		assert.EqualValues(t, 3, ctx["count"])
		assert.Equal(t, "boom", ctx["error"])
	}
}

func TestNopDiscards(t *testing.T) {
	log := Nop()
	log.Info("nothing")
	assert.NoError(t, log.Sync())
}
