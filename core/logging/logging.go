// Package logging builds the structured logger shared by the runtime.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-stack/stack"
	"gopkg.in/natefinch/lumberjack.v2"
)

const modulePrefix = "github.com/searchktools/fast-runtime/"

// Config selects the log level and destination.
type Config struct {
	Level string `config:"level" yaml:"level" json:"level"`
	// File is written through a rotating writer. Empty means stdout.
	File string `config:"file" yaml:"file" json:"file"`
}

// New returns a logfmt logger for cfg.
func New(cfg Config) log.Logger {
	var wr io.Writer
	if cfg.File == "" {
		wr = os.Stdout
	} else {
		wr = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    128, // megabytes
			MaxBackups: 10,
			MaxAge:     7, // days
			Compress:   true,
		}
	}
	return NewWithWriter(wr, cfg.Level)
}

// NewWithWriter returns a logfmt logger writing to w, filtered at lvl.
func NewWithWriter(w io.Writer, lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger,
		"time", log.DefaultTimestampUTC,
		"app", "fast-runtime",
		"caller", log.Valuer(func() interface{} {
			return pkgCaller{stack.Caller(5)}
		}),
	)
	return level.NewFilter(logger, allow(lvl))
}

// Nop returns a logger that discards everything.
func Nop() log.Logger {
	return log.NewNopLogger()
}

func allow(lvl string) level.Option {
	switch strings.ToLower(lvl) {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	case "none":
		return level.AllowNone()
	default:
		return level.AllowInfo()
	}
}

// pkgCaller trims the module prefix from the caller's package path.
type pkgCaller struct {
	c stack.Call
}

func (pc pkgCaller) String() string {
	return strings.TrimPrefix(fmt.Sprintf("%+v", pc.c), modulePrefix)
}
