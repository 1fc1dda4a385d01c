// Package sysutil holds process-level helpers used by cmd/server: global
// logger setup and small environment parsing utilities.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ParseLevel maps a LOG_LEVEL value to a zerolog level. Blank or unknown
// values fall back to info; "warning" is accepted for warn. Disabled and
// trace are refused so a typo cannot silence or flood the server.
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl < zerolog.DebugLevel || lvl > zerolog.PanicLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// SetLogLevel applies ParseLevel(lvl) globally.
func SetLogLevel(lvl string) { zerolog.SetGlobalLevel(ParseLevel(lvl)) }

// SetupLogger replaces the global logger. JSON lines go to w (stdout when
// nil); pretty switches to the console writer, honouring NO_COLOR. Every
// line carries service.
func SetupLogger(w io.Writer, level string, pretty bool, service string) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	SetLogLevel(level)

	if pretty {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    IsTruthy(os.Getenv("NO_COLOR")),
		}
	}
	ctx := zerolog.New(w).With().Timestamp()
	if service = strings.TrimSpace(service); service != "" {
		ctx = ctx.Str("service", service)
	}
	log.Logger = ctx.Logger()
	return log.Logger
}

var truthy = map[string]bool{"1": true, "true": true, "yes": true, "y": true, "on": true}

// IsTruthy reports whether an environment flag is set: 1, true, yes, y or
// on, in any case.
func IsTruthy(v string) bool { return truthy[strings.ToLower(strings.TrimSpace(v))] }

// FirstNonEmpty returns the first non-blank string, or "".
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
