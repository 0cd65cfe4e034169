package logger

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// envLogLevel names the environment variable consulted when no -log.level flag is set.
const envLogLevel = "BOLT_LOG_LEVEL"

var (
	// atomicLevel implements slog.Leveler and can be changed at runtime.
	atomicLevel = &dynamicLevel{v: int64(slog.LevelInfo)}

	global   *slog.Logger
	initOnce sync.Once
	setOnce  sync.Once

	flagLevel = flag.String("log.level", "", "log level (debug, info, warn, error)")
)

// dynamicLevel is an atomic slog.Leveler so SetLevel can change verbosity while the server is
// already handling connections.
type dynamicLevel struct{ v int64 }

func (d *dynamicLevel) Level() slog.Level { return slog.Level(atomic.LoadInt64(&d.v)) }
func (d *dynamicLevel) set(l slog.Level)  { atomic.StoreInt64(&d.v, int64(l)) }

// Init builds the global JSON logger on first call; later calls are no-ops. Its initial level is
// whatever detectLevel resolves at that first call, so flags should be parsed (or BOLT_LOG_LEVEL
// set) before any package in the dependency graph logs its first line.
func Init() {
	initOnce.Do(func() {
		atomicLevel.set(detectLevel())
		global = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: atomicLevel}))
	})
}

// levelSource is one candidate place to find a configured log level, tried in the order
// detectLevel lists them; the first source that yields a parseable level wins.
type levelSource func() (string, bool)

// detectLevel resolves the initial level from, in precedence order: the -log.level flag, the
// BOLT_LOG_LEVEL environment variable, then a hardcoded default of info.
func detectLevel() slog.Level {
	sources := []levelSource{flagSource, envSource}
	for _, src := range sources {
		raw, ok := src()
		if !ok {
			continue
		}
		if lvl, ok := parseLevel(raw); ok {
			return lvl
		}
	}
	return slog.LevelInfo
}

// flagSource reads -log.level, scanning os.Args directly so a level is available even if the
// caller invokes Init before flag.Parse has run.
func flagSource() (string, bool) {
	if *flagLevel == "" {
		for _, arg := range os.Args[1:] {
			name, value, found := strings.Cut(arg, "=")
			if found && name == "-log.level" {
				*flagLevel = value
			}
		}
	}
	v := strings.TrimSpace(*flagLevel)
	return v, v != ""
}

func envSource() (string, bool) {
	v := os.Getenv(envLogLevel)
	return v, v != ""
}

// parseLevel converts a level name to slog.Level. An empty string parses as info so an unset
// flag or variable never fails a lookup; it is simply not preferred over a later source.
func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error", "err":
		return slog.LevelError, true
	}
	return 0, false
}

// SetLevel changes the runtime log level of the already-initialized global logger.
func SetLevel(level string) error {
	Init()
	lvl, ok := parseLevel(level)
	if !ok {
		return errors.New("invalid log level: " + level)
	}
	atomicLevel.set(lvl)
	return nil
}

// Level returns the current runtime level as a string.
func Level() string {
	Init()
	return atomicLevel.Level().String()
}

// UseWriter redirects global's output, for tests that want to capture log lines. The first call
// is otherwise equivalent to Init having targeted w from the start; later calls replace the
// handler each time, since capturing a new *testing.T's output is the whole point.
func UseWriter(w io.Writer) {
	setOnce.Do(Init)
	global = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: atomicLevel}))
}

// Logger returns the global logger, initializing it on first use.
func Logger() *slog.Logger { Init(); return global }

func Debug(msg string, args ...any) { Logger().Debug(msg, args...) }
func Info(msg string, args ...any)  { Logger().Info(msg, args...) }
func Warn(msg string, args ...any)  { Logger().Warn(msg, args...) }
func Error(msg string, args ...any) { Logger().Error(msg, args...) }

// WithConn attaches the identity of a raw, pre-handshake connection: its assigned id and the
// peer address it was accepted from.
func WithConn(l *slog.Logger, connID, peerAddr string) *slog.Logger {
	return l.With("conn_id", connID, "peer_addr", peerAddr)
}

// WithSession attaches a Bolt session's identity and current protocol state, for log lines
// emitted anywhere along a session's lifetime (handshake through close).
func WithSession(l *slog.Logger, sessionID, state string) *slog.Logger {
	return l.With("session_id", sessionID, "state", state)
}

// WithMessage narrows a session logger to a single in-flight message: its wire signature and
// the human-readable name (RUN, PULL_ALL, and so on) the dispatcher resolved it to.
func WithMessage(l *slog.Logger, signature byte, name string) *slog.Logger {
	return l.With("signature", fmt.Sprintf("0x%02X", signature), "message", name)
}
