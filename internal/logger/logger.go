package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options control the zap configuration.
type Options struct {
	JSON  bool
	Debug bool
	// Quiet raises the level to warn unless Debug is set. The interactive interview uses it
	// so log lines do not interleave with the conversation.
	Quiet bool
	// Output is a zap sink URL or path. Defaults to stdout.
	Output string
}

func New(json bool, debug bool) (*zap.Logger, error) {
	return Build(Options{JSON: json, Debug: debug})
}

func Build(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	switch {
	case opts.Debug:
		level = zapcore.DebugLevel
	case opts.Quiet:
		level = zapcore.WarnLevel
	}

	encoding := "console"
	if opts.JSON {
		encoding = "json"
	}

	output := opts.Output
	if output == "" {
		output = "stdout"
	}

	cfg := zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "step",

			LevelKey:    "level",
			EncodeLevel: zapcore.LowercaseLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.RFC3339TimeEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,

			EncodeDuration: zapcore.StringDurationEncoder,
		},
	}

	return cfg.Build()
}
