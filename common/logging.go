package common

import (
	"io"
	"log/slog"
	"os"
)

type LoggingOpts struct {
	Debug bool
	JSON  bool
	// Verbosity lowers the level from warn by one step per count.
	Verbosity int
	Service   string
	Version   string
	// Output defaults to stderr so that logs do not interleave with prompts.
	Output io.Writer
}

func LogLevel(opts *LoggingOpts) slog.Level {
	if opts.Debug {
		return slog.LevelDebug
	}
	level := slog.LevelWarn - slog.Level(4*opts.Verbosity)
	if level < slog.LevelDebug {
		level = slog.LevelDebug
	}
	return level
}

func SetupLogger(opts *LoggingOpts) (log *slog.Logger) {
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: LogLevel(opts)}
	if opts.JSON {
		log = slog.New(slog.NewJSONHandler(output, handlerOpts))
	} else {
		log = slog.New(slog.NewTextHandler(output, handlerOpts))
	}

	if opts.Service != "" {
		log = log.With("service", opts.Service)
	}
	if opts.Version != "" {
		log = log.With("version", opts.Version)
	}
	return log
}
