// Package sysutil holds process-level helpers shared by cmd/server and the
// config loader: global logger setup and environment value parsing.
package sysutil

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger configures the global zerolog logger. pretty switches to a
// human-readable console writer for local development; otherwise JSON lines
// with RFC3339 timestamps are written to w.
func SetupLogger(w io.Writer, level string, pretty bool) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(level))
	zerolog.TimeFieldFormat = time.RFC3339

	out := w
	if pretty {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	l := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = l
	zerolog.DefaultContextLogger = &log.Logger
	return l
}

// ParseLevel maps a level name to a zerolog level. "warning" is accepted as
// an alias; blank, unknown, and the "trace"/"disabled" levels map to info.
func ParseLevel(name string) zerolog.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl < zerolog.DebugLevel || lvl > zerolog.PanicLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

var boolWords = map[string]bool{
	"1": true, "true": true, "yes": true, "y": true, "on": true,
	"0": false, "false": false, "no": false, "n": false, "off": false,
}

// ParseBool parses an environment flag case-insensitively. ok is false when
// v is not one of the recognised spellings.
func ParseBool(v string) (value, ok bool) {
	value, ok = boolWords[strings.ToLower(strings.TrimSpace(v))]
	return value, ok
}

// FirstNonEmpty returns the first argument that is not blank, unmodified.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
