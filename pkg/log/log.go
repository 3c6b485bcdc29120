package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Logger is a named logger. Every line carries a "[name>]" prefix.
type Logger struct {
	name string
}

type writerHolder struct {
	w io.Writer
}

var (
	globalDebug  atomic.Bool
	serviceDebug sync.Map // map[string]*atomic.Bool
	loggers      sync.Map // map[string]*Logger

	outputWriter atomic.Value // writerHolder
	base         atomic.Pointer[zerolog.Logger]
)

func init() {
	SetOutput(os.Stderr)
}

// ForService returns the memoized logger for name.
func ForService(name string) *Logger {
	if name == "" {
		name = "unknown"
	}
	if l, ok := loggers.Load(name); ok {
		return l.(*Logger)
	}
	actual, _ := loggers.LoadOrStore(name, &Logger{name: name})
	return actual.(*Logger)
}

// Configure applies the debug settings from the command line or config file.
func Configure(debug bool, services []string) {
	SetGlobalDebug(debug)
	for _, s := range services {
		EnableDebugFor(strings.TrimSpace(s))
	}
}

func SetGlobalDebug(enabled bool) {
	globalDebug.Store(enabled)
}

func GlobalDebug() bool {
	return globalDebug.Load()
}

func EnableDebugFor(name string) {
	if name == "" {
		return
	}
	val, _ := serviceDebug.LoadOrStore(name, &atomic.Bool{})
	val.(*atomic.Bool).Store(true)
}

func DisableDebugFor(name string) {
	if name == "" {
		return
	}
	if val, ok := serviceDebug.Load(name); ok {
		val.(*atomic.Bool).Store(false)
	}
}

// DebugEnabledFor reports whether debug lines for name are emitted, either
// globally or for that service alone.
func DebugEnabledFor(name string) bool {
	if globalDebug.Load() {
		return true
	}
	if val, ok := serviceDebug.Load(name); ok {
		return val.(*atomic.Bool).Load()
	}
	return false
}

// SetOutput redirects every logger, existing and future, to w.
func SetOutput(w io.Writer) {
	if w == nil {
		return
	}
	outputWriter.Store(writerHolder{w: w})

	console := zerolog.NewConsoleWriter(func(cw *zerolog.ConsoleWriter) {
		cw.Out = w
		cw.NoColor = !isTerminal(w)
		cw.TimeFormat = "2006/01/02 15:04:05.000000"
	})
	l := zerolog.New(console).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	base.Store(&l)
}

// Output returns the current destination writer.
func Output() io.Writer {
	return outputWriter.Load().(writerHolder).w
}

func (l *Logger) Name() string {
	return l.name
}

func (l *Logger) emit(ev *zerolog.Event, msg string) {
	ev.Msg("[" + l.name + ">] " + msg)
}

func (l *Logger) Infof(format string, args ...any) {
	l.emit(base.Load().Info(), fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.emit(base.Load().Warn(), fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.emit(base.Load().Error(), fmt.Sprintf(format, args...))
}

// Debugf logs only when debug is enabled for this logger.
func (l *Logger) Debugf(format string, args ...any) {
	if !DebugEnabledFor(l.name) {
		return
	}
	l.emit(base.Load().Debug(), fmt.Sprintf(format, args...))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
