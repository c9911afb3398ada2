// Package config loads runtime settings from dotenv files and the process
// environment.
package config

import (
	stderrors "errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-kernel/errors"
	"github.com/wippyai/wasm-kernel/resource"
)

// Keys read by Load.
const (
	KeyRoot             = "WASMKERNEL_ROOT"
	KeyMaxFiles         = "WASMKERNEL_MAX_FILES"
	KeyMemoryLimitPages = "WASMKERNEL_MEMORY_LIMIT_PAGES"
	KeyBindStdin        = "WASMKERNEL_BIND_STDIN"
	KeyStrictStdio      = "WASMKERNEL_STRICT_STDIO"
	KeyLogLevel         = "WASMKERNEL_LOG_LEVEL"
)

// DefaultFile is the file cmd/run loads when no -env-file is given.
const DefaultFile = ".wasmkernel.env"

// maxMemoryPages is the 4GB address space limit of a 32-bit memory.
const maxMemoryPages = 65536

// Config holds runtime settings.
type Config struct {
	// Root is the host directory programs run against. Empty selects an
	// in-memory file system.
	Root string

	// LogLevel is the minimum level logged.
	LogLevel zapcore.Level

	// MaxFiles is the descriptor table capacity per process.
	MaxFiles int

	// MemoryLimitPages caps guest memory in 64KB pages. 0 keeps the engine default.
	MemoryLimitPages uint32

	BindStdin   bool
	StrictStdio bool
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		MaxFiles: resource.DefaultCapacity,
		LogLevel: zapcore.InfoLevel,
	}
}

// Load reads files in order with godotenv, then applies the process
// environment on top. Files that do not exist are skipped.
func Load(files ...string) (Config, error) {
	return LoadWith(GodotenvReader{}, os.LookupEnv, files...)
}

// LoadWith is Load with an explicit file reader and environment lookup.
func LoadWith(r Reader, lookup func(string) (string, bool), files ...string) (Config, error) {
	values := make(map[string]string)
	for _, f := range files {
		data, err := r.Read(f)
		if err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, errors.Wrap(errors.OpConfig, errors.KindIO, err, "read "+f)
		}
		for k, v := range data {
			values[k] = v
		}
	}

	if lookup != nil {
		for _, k := range []string{KeyRoot, KeyMaxFiles, KeyMemoryLimitPages, KeyBindStdin, KeyStrictStdio, KeyLogLevel} {
			if v, ok := lookup(k); ok {
				values[k] = v
			}
		}
	}

	return FromMap(values)
}

// FromMap builds a Config from key/value pairs. Keys that are absent or
// empty keep their default.
func FromMap(values map[string]string) (Config, error) {
	cfg := Default()
	get := func(key string) (string, bool) {
		v := strings.TrimSpace(values[key])
		return v, v != ""
	}

	if v, ok := get(KeyRoot); ok {
		cfg.Root = v
	}

	if v, ok := get(KeyMaxFiles); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, invalid(KeyMaxFiles, v, "want a positive integer")
		}
		cfg.MaxFiles = n
	}

	if v, ok := get(KeyMemoryLimitPages); ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n > maxMemoryPages {
			return Config{}, invalid(KeyMemoryLimitPages, v, "want 0 to 65536 pages")
		}
		cfg.MemoryLimitPages = uint32(n)
	}

	for key, dst := range map[string]*bool{KeyBindStdin: &cfg.BindStdin, KeyStrictStdio: &cfg.StrictStdio} {
		if v, ok := get(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return Config{}, invalid(key, v, "want a boolean")
			}
			*dst = b
		}
	}

	if v, ok := get(KeyLogLevel); ok {
		lvl, err := zapcore.ParseLevel(v)
		if err != nil {
			return Config{}, invalid(KeyLogLevel, v, "want debug, info, warn or error")
		}
		cfg.LogLevel = lvl
	}

	return cfg, nil
}

func invalid(key, value, want string) error {
	return errors.New(errors.OpConfig, errors.KindInvalidArgument).
		Value(value).
		Detail("%s=%q: %s", key, value, want).
		Build()
}
