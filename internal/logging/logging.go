// Package logging sets up the process-wide structured logger. It has no
// relation to internal/logring, which is the fixed-slot shared-memory
// record ring consulted by the per-worker fast path; this package only
// ever serves operator-facing control-plane text.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Config selects the minimum level logged.
type Config struct {
	Level zapcore.Level
}

// Init builds a *zap.SugaredLogger along with the AtomicLevel backing it,
// so callers can adjust verbosity at runtime (e.g. from a signal handler).
func Init(cfg *Config) (*zap.SugaredLogger, zap.AtomicLevel, error) {
	level := zap.NewAtomicLevelAt(cfg.Level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	var encoder zapcore.Encoder
	if term.IsTerminal(int(os.Stderr.Fd())) {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	logger := zap.New(core, zap.AddCaller())

	return logger.Sugar(), level, nil
}

// MustParseLevel parses a textual log level, panicking on malformed input
// (only used for flag defaults known to be valid at compile time).
func MustParseLevel(s string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		panic(fmt.Sprintf("invalid log level %q: %v", s, err))
	}
	return lvl
}
