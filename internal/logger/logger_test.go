package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAppLogger_Level(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		l := NewAppLogger(&Config{LogLevel: in})
		assert.Equal(t, want, l.level(), in)
	}
}

func TestAppLogger_InitLogger(t *testing.T) {
	for _, dev := range []bool{false, true} {
		l := NewAppLogger(&Config{LogLevel: "debug", DevMode: dev})
		l.InitLogger()
		assert.NotNil(t, l.Logger())
		assert.True(t, l.Logger().Core().Enabled(zapcore.DebugLevel))
	}
}

func TestWith_CarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := New(zap.New(core)).With(zap.String("cycle_id", "c1"))

	log.Info("cycle finished")
	log.Debug("dropped")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "c1", entries[0].ContextMap()["cycle_id"])
	}
}
