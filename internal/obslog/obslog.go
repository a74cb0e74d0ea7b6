package obslog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatLegacy  = "legacy"
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Options describes one logger. FromEnv fills it from LOG_* variables.
type Options struct {
	Level   zapcore.Level
	Format  string
	Console bool
	File    string // empty disables the file sink
	Caller  bool
	Color   bool

	// Stdout replaces os.Stdout for the console sink.
	Stdout io.Writer
}

var (
	mu           sync.RWMutex
	globalLogger = zap.NewNop()
	closeFile    func() error
)

// L returns the process-wide logger. It is a no-op logger until InitFromEnv succeeds.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// Sync flushes buffered entries and closes the log file.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	_ = globalLogger.Sync()
	if closeFile != nil {
		_ = closeFile()
		closeFile = nil
	}
}

// InitFromEnv replaces the global logger with one built from the environment.
func InitFromEnv() error {
	logger, closer, err := New(FromEnv())
	if err != nil {
		return err
	}
	mu.Lock()
	prevClose := closeFile
	globalLogger, closeFile = logger, closer
	mu.Unlock()
	if prevClose != nil {
		_ = prevClose()
	}
	return nil
}

// FromEnv reads LOG_LEVEL, LOG_FORMAT (legacy|json|console), LOG_TO_CONSOLE, LOG_TO_FILE,
// LOG_FILE (default logs/site.log), LOG_CALLER and LOG_COLOR.
func FromEnv() Options {
	opts := Options{
		Level:   parseLevel(getenvDefault("LOG_LEVEL", "info")),
		Format:  normalizeFormat(getenvDefault("LOG_FORMAT", FormatLegacy)),
		Console: envBool("LOG_TO_CONSOLE", true),
		Caller:  envBool("LOG_CALLER", false),
		Color:   envBool("LOG_COLOR", false),
	}
	if envBool("LOG_TO_FILE", true) {
		opts.File = strings.TrimSpace(getenvDefault("LOG_FILE", filepath.Join("logs", "site.log")))
	}
	return opts
}

// New builds a logger. The returned closer releases the log file and may be nil.
func New(opts Options) (*zap.Logger, func() error, error) {
	format := normalizeFormat(opts.Format)
	var (
		cores  []zapcore.Core
		closer func() error
	)

	if opts.Console {
		out := opts.Stdout
		if out == nil {
			out = os.Stdout
		}
		cores = append(cores, zapcore.NewCore(newEncoder(format, opts.Color), zapcore.AddSync(out), opts.Level))
	}
	if opts.File != "" {
		f, err := openLogFile(opts.File)
		if err != nil {
			return nil, nil, err
		}
		closer = f.Close
		// files never get color escapes
		cores = append(cores, zapcore.NewCore(newEncoder(format, false), zapcore.AddSync(f), opts.Level))
	}
	if len(cores) == 0 {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), opts.Level))
	}

	zopts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if opts.Caller || format == FormatLegacy {
		zopts = append(zopts, zap.AddCaller())
	}
	return zap.New(zapcore.NewTee(cores...), zopts...), closer, nil
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func normalizeFormat(s string) string {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case FormatJSON, FormatConsole:
		return f
	default:
		return FormatLegacy
	}
}

func newEncoder(format string, color bool) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	switch format {
	case FormatJSON:
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	case FormatConsole:
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		if color {
			cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		return zapcore.NewConsoleEncoder(cfg)
	default:
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.ConsoleSeparator = " | "
		return zapcore.NewConsoleEncoder(cfg)
	}
}

func parseLevel(s string) zapcore.Level {
	var lvl zapcore.Level
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "warning":
		return zapcore.WarnLevel
	default:
		if err := lvl.UnmarshalText([]byte(v)); err != nil {
			return zapcore.InfoLevel
		}
		return lvl
	}
}

func envBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1"
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
