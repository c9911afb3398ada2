package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-kernel/config"
	"github.com/wippyai/wasm-kernel/engine"
	"github.com/wippyai/wasm-kernel/proc"
	"github.com/wippyai/wasm-kernel/runtime"
	"github.com/wippyai/wasm-kernel/vfs"
)

func main() {
	os.Exit(runMain())
}

func runMain() int {
	var (
		wasmFile    = flag.String("wasm", "", "Program path inside the root file system")
		root        = flag.String("root", "", "Host directory used as the root file system (default: in-memory)")
		envFile     = flag.String("env-file", config.DefaultFile, "Settings file (KEY=VALUE)")
		maxFiles    = flag.Int("max-files", 0, "Descriptor table capacity per process")
		stdin       = flag.Bool("stdin", false, "Bind descriptor 0 to the console")
		strictStdio = flag.Bool("strict-stdio", false, "Fail when a standard stream cannot be bound")
		verbose     = flag.Bool("v", false, "Verbose (development) logging")
		interactive = flag.Bool("i", false, "Interactive syscall console")
	)
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	// Flags given on the command line win over the settings file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "root":
			cfg.Root = *root
		case "max-files":
			cfg.MaxFiles = *maxFiles
		case "stdin":
			cfg.BindStdin = *stdin
		case "strict-stdio":
			cfg.StrictStdio = *strictStdio
		}
	})

	log, err := newLogger(cfg.LogLevel, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer log.Sync()

	if *interactive {
		if err := runInteractive(cfg, log); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: run -wasm <path> [-root dir] [-env-file f] [-max-files n] [-stdin] [-strict-stdio] [-v]")
		fmt.Fprintln(os.Stderr, "       run -i [-root dir]  (interactive syscall console)")
		return 1
	}

	code, err := run(cfg, log, *wasmFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return int(code)
}

func run(cfg config.Config, log *zap.Logger, wasmFile string) (int32, error) {
	ctx := context.Background()

	rt, err := runtime.New(ctx, newVFS(cfg),
		runtime.WithLogger(log),
		runtime.WithConsole(os.Stdin, os.Stdout),
		runtime.WithMaxFiles(cfg.MaxFiles),
		runtime.WithMemoryLimitPages(cfg.MemoryLimitPages),
		runtime.WithBindStdin(cfg.BindStdin),
		runtime.WithStrictStdio(cfg.StrictStdio),
	)
	if err != nil {
		return 0, fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close(ctx)

	status, err := rt.Exec(ctx, wasmFile)
	if err != nil {
		return 0, err
	}
	log.Debug("exit", zap.String("name", status.Name), zap.Int32("pid", status.PID), zap.Int32("code", status.Code))
	return status.Code, nil
}

func newVFS(cfg config.Config) *vfs.VFS {
	if cfg.Root == "" {
		return vfs.NewMemory()
	}
	return vfs.NewOS(cfg.Root)
}

func newLogger(level zapcore.Level, verbose bool) (*zap.Logger, error) {
	var zc zap.Config
	if verbose {
		zc = zap.NewDevelopmentConfig()
		if level > zapcore.DebugLevel {
			level = zapcore.DebugLevel
		}
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}

	log, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	engine.SetLogger(log.Named("engine"))
	proc.SetLogger(log.Named("proc"))
	runtime.SetLogger(log.Named("runtime"))
	return log, nil
}
