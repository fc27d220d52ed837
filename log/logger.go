// Package log provides the node's structured logger: a zerolog backend
// behind the same small interface the rest of the node codes against,
// with an optional gocore-driven pretty console mode for local runs.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	utils "github.com/ordishs/go-utils"
	"github.com/ordishs/gocore"
	"github.com/rs/zerolog"
)

const (
	colorRed     = 31
	colorGreen   = 32
	colorYellow  = 33
	colorBlue    = 34
	colorWhite   = 37
	colorBold    = 1
)

// Logger is the interface every component of the node logs through.
type Logger = utils.Logger

// ZLogger wraps zerolog.Logger with the leveled-printf methods the node
// uses throughout (Debugf/Infof/Warnf/Errorf/Fatalf).
type ZLogger struct {
	zerolog.Logger
	service string
}

// New creates a service-scoped logger. logLevel defaults to "info" when
// omitted. Set PRETTY_LOGS=false (via gocore config) for plain JSON output.
func New(service string, logLevel ...string) *ZLogger {
	if service == "" {
		service = "aevumbond"
	}

	var z *ZLogger
	if gocore.Config().GetBool("PRETTY_LOGS", true) {
		z = prettyLogger(service)
	} else {
		z = &ZLogger{
			zerolog.New(os.Stdout).With().Timestamp().Logger(),
			service,
		}
	}

	if len(logLevel) > 0 {
		setLevel(logLevel[0], z)
	}

	return z
}

func setLevel(level string, z *ZLogger) {
	switch strings.ToUpper(level) {
	case "TRACE":
		z.Logger = z.Logger.Level(zerolog.TraceLevel)
	case "DEBUG":
		z.Logger = z.Logger.Level(zerolog.DebugLevel)
	case "WARN":
		z.Logger = z.Logger.Level(zerolog.WarnLevel)
	case "ERROR":
		z.Logger = z.Logger.Level(zerolog.ErrorLevel)
	default:
		z.Logger = z.Logger.Level(zerolog.InfoLevel)
	}
}

func prettyLogger(service string) *ZLogger {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}

	output.FormatTimestamp = func(i interface{}) string {
		parsed, err := time.Parse(time.RFC3339, fmt.Sprintf("%s", i))
		if err != nil {
			return fmt.Sprintf("%s", i)
		}
		return parsed.Format("15:04:05")
	}

	output.FormatLevel = func(i interface{}) string {
		l := strings.ToUpper(fmt.Sprintf("%-5s", i))
		switch i {
		case "debug":
			l = colorize(l, colorBlue)
		case "info":
			l = colorize(l, colorGreen)
		case "warn":
			l = colorize(l, colorYellow)
		case "error", "fatal", "panic":
			l = colorize(l, colorRed)
		default:
			l = colorize(l, colorWhite)
		}
		return fmt.Sprintf("| %s|", l)
	}

	output.FormatMessage = func(i interface{}) string {
		return fmt.Sprintf("| %-12s| %s", service, i)
	}

	output.FormatCaller = func(i interface{}) string {
		c, ok := i.(string)
		if !ok || c == "" {
			return ""
		}
		return colorize(filepath.Base(c), colorBold)
	}

	return &ZLogger{
		zerolog.New(output).With().Timestamp().Caller().Logger(),
		service,
	}
}

func (z *ZLogger) LogLevel() int {
	switch z.Logger.GetLevel() {
	case zerolog.DebugLevel:
		return int(gocore.DEBUG)
	case zerolog.WarnLevel:
		return int(gocore.WARN)
	case zerolog.ErrorLevel:
		return int(gocore.ERROR)
	case zerolog.FatalLevel:
		return int(gocore.FATAL)
	default:
		return int(gocore.INFO)
	}
}

func (z *ZLogger) Debugf(format string, args ...interface{}) { z.Logger.Debug().Msgf(format, args...) }
func (z *ZLogger) Infof(format string, args ...interface{})  { z.Logger.Info().Msgf(format, args...) }
func (z *ZLogger) Warnf(format string, args ...interface{})  { z.Logger.Warn().Msgf(format, args...) }
func (z *ZLogger) Errorf(format string, args ...interface{}) { z.Logger.Error().Msgf(format, args...) }
func (z *ZLogger) Fatalf(format string, args ...interface{}) { z.Logger.Fatal().Msgf(format, args...) }

// colorize wraps s in an ANSI color code unless NO_COLOR is set.
func colorize(s interface{}, c int) string {
	if os.Getenv("NO_COLOR") != "" || c == 0 {
		return fmt.Sprintf("%v", s)
	}
	return fmt.Sprintf("\x1b[%dm%v\x1b[0m", c, s)
}
