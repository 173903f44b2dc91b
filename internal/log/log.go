// Package log provides structured, colored logging for the Klingnet wallet.
package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Component loggers for different parts of the system.
var (
	Wallet  zerolog.Logger
	Ledger  zerolog.Logger
	Engine  zerolog.Logger
	Network zerolog.Logger
	Gas     zerolog.Logger
	Storage zerolog.Logger
	RPC     zerolog.Logger
)

// File rotation defaults for Init.
const (
	defaultMaxSizeMB  = 50
	defaultMaxBackups = 5
	defaultMaxAgeDays = 30
)

func init() {
	// Default to colored console output
	Logger = NewConsoleLogger(os.Stdout, "info")
	initComponentLoggers()
}

// Init initializes the logger with the given configuration.
// When file is non-empty, logs are written to both the console (colored or
// JSON depending on jsonOutput) and a size-rotated file (always JSON for
// machine parsing).
func Init(level string, jsonOutput bool, file string) error {
	if file != "" {
		lvl := parseLevel(level)

		// Console writer (stdout): colored or JSON per flag.
		var consoleWriter io.Writer
		if jsonOutput {
			consoleWriter = os.Stdout
		} else {
			consoleWriter = zerolog.ConsoleWriter{
				Out:        os.Stdout,
				TimeFormat: "15:04:05",
				NoColor:    false,
			}
		}

		multi := zerolog.MultiLevelWriter(consoleWriter, NewFileWriter(file))
		Logger = zerolog.New(multi).
			Level(lvl).
			With().
			Timestamp().
			Logger()
	} else if jsonOutput {
		Logger = NewJSONLogger(os.Stdout, level)
	} else {
		Logger = NewConsoleLogger(os.Stdout, level)
	}

	initComponentLoggers()
	return nil
}

// NewFileWriter returns a rotating file writer for the given path.
func NewFileWriter(path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    defaultMaxSizeMB,
		MaxBackups: defaultMaxBackups,
		MaxAge:     defaultMaxAgeDays,
		Compress:   true,
	}
}

// NewConsoleLogger creates a colored console logger.
func NewConsoleLogger(w io.Writer, level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
		NoColor:    false,
	}

	lvl := parseLevel(level)
	return zerolog.New(output).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// NewJSONLogger creates a structured JSON logger.
func NewJSONLogger(w io.Writer, level string) zerolog.Logger {
	lvl := parseLevel(level)
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// parseLevel converts a string level to zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// initComponentLoggers initializes loggers for each component.
func initComponentLoggers() {
	Wallet = WithComponent("wallet")
	Ledger = WithComponent("ledger")
	Engine = WithComponent("engine")
	Network = WithComponent("network")
	Gas = WithComponent("gas")
	Storage = WithComponent("storage")
	RPC = WithComponent("rpc")
}

// WithComponent returns a logger with a component field.
func WithComponent(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
