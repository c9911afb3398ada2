package runtime

import (
	"io"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-kernel/vfs"
)

type options struct {
	logger           *zap.Logger
	devices          map[string]vfs.Device
	maxFiles         int
	memoryLimitPages uint32
	bindStdin        bool
	strictStdio      bool
}

// Option configures a Runtime.
type Option func(*options)

// WithLogger sets the logger processes derive theirs from.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMaxFiles sets the descriptor table capacity of each process.
func WithMaxFiles(n int) Option {
	return func(o *options) { o.maxFiles = n }
}

// WithMemoryLimitPages caps guest memory, in 64KB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(o *options) { o.memoryLimitPages = pages }
}

// WithBindStdin binds descriptor 0 to the console at process start.
func WithBindStdin(bind bool) Option {
	return func(o *options) { o.bindStdin = bind }
}

// WithStrictStdio fails Exec when a standard stream cannot be bound.
func WithStrictStdio(strict bool) Option {
	return func(o *options) { o.strictStdio = strict }
}

// WithConsole mounts the console device over in and out. Either may be nil.
func WithConsole(in io.Reader, out io.Writer) Option {
	return WithDevice(vfs.DeviceConsole, vfs.NewConsole(in, out))
}

// WithDevice mounts dev under name.
func WithDevice(name string, dev vfs.Device) Option {
	return func(o *options) {
		if o.devices == nil {
			o.devices = make(map[string]vfs.Device)
		}
		o.devices[name] = dev
	}
}
