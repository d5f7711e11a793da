package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"DEBUG":   zapcore.DebugLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).With("component", "codec")

	l.Warn("protocol error", "id", 3)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "protocol error", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "codec", fields["component"])
	assert.EqualValues(t, 3, fields["id"])
}

func TestNewFileWritesToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	l, err := NewFile("debug", path)
	require.NoError(t, err)

	l.Debug("hello", "k", "v")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Error("ignored")
	assert.NoError(t, l.Sync())
}
