package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-kernel/errors"
)

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "kernel.env")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func noEnv(string) (string, bool) { return "", false }

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, 128, cfg.MaxFiles)
	assert.Equal(t, zapcore.InfoLevel, cfg.LogLevel)
	assert.Empty(t, cfg.Root)
	assert.Zero(t, cfg.MemoryLimitPages)
	assert.False(t, cfg.BindStdin)
	assert.False(t, cfg.StrictStdio)
}

func TestLoadWith_File(t *testing.T) {
	t.Parallel()

	p := writeEnv(t, `
WASMKERNEL_ROOT=/srv/guest
WASMKERNEL_MAX_FILES=16
WASMKERNEL_MEMORY_LIMIT_PAGES=256
WASMKERNEL_BIND_STDIN=true
WASMKERNEL_STRICT_STDIO=1
WASMKERNEL_LOG_LEVEL=debug
`)

	cfg, err := LoadWith(GodotenvReader{}, noEnv, p)
	require.NoError(t, err)
	assert.Equal(t, Config{
		Root:             "/srv/guest",
		LogLevel:         zapcore.DebugLevel,
		MaxFiles:         16,
		MemoryLimitPages: 256,
		BindStdin:        true,
		StrictStdio:      true,
	}, cfg)
}

func TestLoadWith_MissingFileSkipped(t *testing.T) {
	t.Parallel()

	cfg, err := LoadWith(GodotenvReader{}, noEnv, filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWith_LaterFileWins(t *testing.T) {
	t.Parallel()

	first := writeEnv(t, "WASMKERNEL_MAX_FILES=8\nWASMKERNEL_ROOT=a\n")
	second := writeEnv(t, "WASMKERNEL_MAX_FILES=32\n")

	cfg, err := LoadWith(GodotenvReader{}, noEnv, first, second)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.MaxFiles)
	assert.Equal(t, "a", cfg.Root)
}

func TestLoadWith_EnvironmentOverridesFile(t *testing.T) {
	t.Parallel()

	p := writeEnv(t, "WASMKERNEL_MAX_FILES=8\n")
	env := map[string]string{KeyMaxFiles: "64", KeyLogLevel: "warn"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg, err := LoadWith(GodotenvReader{}, lookup, p)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.MaxFiles)
	assert.Equal(t, zapcore.WarnLevel, cfg.LogLevel)
}

func TestFromMap_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"max files not a number", KeyMaxFiles, "many"},
		{"max files zero", KeyMaxFiles, "0"},
		{"max files negative", KeyMaxFiles, "-3"},
		{"memory pages too large", KeyMemoryLimitPages, "65537"},
		{"memory pages negative", KeyMemoryLimitPages, "-1"},
		{"bind stdin", KeyBindStdin, "sometimes"},
		{"strict stdio", KeyStrictStdio, "yes please"},
		{"log level", KeyLogLevel, "loud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := FromMap(map[string]string{tt.key: tt.value})
			require.Error(t, err)
			assert.Equal(t, errors.KindInvalidArgument, errors.KindOf(err))
			assert.Contains(t, err.Error(), tt.key)

			var e *errors.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, errors.OpConfig, e.Op)
		})
	}
}

func TestFromMap_BlankKeepsDefault(t *testing.T) {
	t.Parallel()

	cfg, err := FromMap(map[string]string{KeyMaxFiles: "  ", KeyLogLevel: ""})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

type failingReader struct{ err error }

func (r failingReader) Read(...string) (map[string]string, error) { return nil, r.err }

func TestLoadWith_ReadError(t *testing.T) {
	t.Parallel()

	_, err := LoadWith(failingReader{err: os.ErrPermission}, noEnv, "x.env")
	require.Error(t, err)
	assert.Equal(t, errors.KindIO, errors.KindOf(err))
	assert.ErrorIs(t, err, os.ErrPermission)
}
