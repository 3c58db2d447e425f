package debug

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Debug levels
const (
	LevelOff     = 0 // Notices only (captured commands, invalid commands)
	LevelInfo    = 1 // Important info (startup, configuration)
	LevelLive    = 2 // Live info (actions dispatched, maneuvers)
	LevelVerbose = 3 // Verbose (loop steps, framing details)
	LevelTrace   = 4 // Trace (GPIO, bytes received, very low level)
)

var (
	level  int
	logger = zerolog.Nop()
	// extra holds the writers passed to Init; they survive SetOutput.
	extra []io.Writer
)

// Init initializes the debug system with a level (0-4).
// 0 = notices only (captured commands and invalid-command notices)
// 1 = important info (startup, configuration)
// 2 = live info (actions dispatched, maneuvers)
// 3 = verbose (loop steps, framing)
// 4 = trace (GPIO, very low level)
//
// Console output goes to stdout; extra writers (e.g. a rotating file from
// FileWriter) receive the raw JSON records.
func Init(debugLevel int, writers ...io.Writer) {
	level = debugLevel
	extra = writers
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	build(console(os.Stdout, false))
}

// SetOutput replaces the console destination, keeping the current level
// and the extra writers given to Init.
// Used by the web console to mirror the log over SSE.
func SetOutput(w io.Writer) {
	build(console(w, true))
}

func build(con io.Writer) {
	out := append([]io.Writer{con}, extra...)
	logger = zerolog.New(io.MultiWriter(out...)).
		With().Timestamp().Str("app", "ScanGo").Logger()
}

func console(w io.Writer, noColor bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:         w,
		TimeFormat:  "15:04:05.000",
		NoColor:     noColor,
		FormatLevel: formatLevel,
	}
}

var levelTags = map[string]string{
	"trace": "TRC",
	"debug": "DBG",
	"info":  "INF",
	"warn":  "WRN",
	"error": "ERR",
	"fatal": "FTL",
	"panic": "PNC",
}

// formatLevel prints notices (records without a level) as NTC.
func formatLevel(i interface{}) string {
	l, ok := i.(string)
	if !ok || l == "" {
		return "NTC"
	}
	if tag, ok := levelTags[l]; ok {
		return tag
	}
	return strings.ToUpper(l)
}

// FileWriter returns a size-rotated log file writer.
func FileWriter(path string) io.Writer {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    1, // MB
		MaxBackups: 2,
	}
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return level >= minLevel
}

// Logger exposes the underlying zerolog logger for structured fields.
func Logger() *zerolog.Logger {
	return &logger
}

// --- Always on ---

// Notice prints a diagnostic line regardless of level.
func Notice(format string, args ...interface{}) {
	logger.WithLevel(zerolog.NoLevel).Msgf(format, args...)
}

// Summary prints an important summary.
func Summary(title string) {
	logger.WithLevel(zerolog.NoLevel).Msg("═══════════════════════════════════════")
	logger.WithLevel(zerolog.NoLevel).Msgf("  %s", title)
	logger.WithLevel(zerolog.NoLevel).Msg("═══════════════════════════════════════")
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if level >= LevelInfo {
		logger.Info().Msgf(format, args...)
	}
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	if level >= LevelInfo {
		logger.Info().Interface(name, value).Send()
	}
}

// Warn prints a warning (level 1).
func Warn(format string, args ...interface{}) {
	if level >= LevelInfo {
		logger.Warn().Msgf(format, args...)
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if level >= LevelLive {
		logger.Debug().Str("tier", "live").Msgf(format, args...)
	}
}

// Maneuver prints a motor maneuver (level 2).
func Maneuver(direction string, left, right uint16, hold time.Duration) {
	if level >= LevelLive {
		logger.Debug().Str("tier", "live").
			Str("direction", direction).
			Uint16("left", left).
			Uint16("right", right).
			Dur("hold", hold).
			Msg("maneuver")
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if level >= LevelVerbose {
		logger.Debug().Msgf(format, args...)
	}
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if level >= LevelVerbose {
		logger.Debug().Msgf("%s: %+v", name, v)
	}
}

// Section prints a section separator (level 3).
func Section(name string) {
	if level >= LevelVerbose {
		logger.Debug().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		logger.Debug().Msgf("  %s", name)
		logger.Debug().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if level >= LevelVerbose {
		logger.Debug().Msgf("Step %d: %s", num, description)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace).
func Trace(format string, args ...interface{}) {
	if level >= LevelTrace {
		logger.Trace().Msgf(format, args...)
	}
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	if level >= LevelTrace {
		logger.Trace().Str("op", operation).Int("pin", pin).Interface("value", value).Msg("gpio")
	}
}

// --- General functions ---

// Error prints an error (level 1+).
func Error(err error) {
	if level >= LevelInfo && err != nil {
		logger.Error().Err(err).Send()
	}
}
