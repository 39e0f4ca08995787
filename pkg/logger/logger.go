package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Component identifies the part of the service a log line comes from
type Component string

const (
	ComponentVerifier Component = "VERIFIER"
	ComponentKeys     Component = "KEYS"
	ComponentPolicy   Component = "POLICY"
	ComponentAccounts Component = "ACCOUNTS"
	ComponentSPIFFE   Component = "SPIFFE"
	ComponentCLI      Component = "CLI"
)

// ANSI color codes
const (
	colorReset   = "\033[0m"
	colorGreen   = "\033[32m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorYellow  = "\033[33m"
	colorCyan    = "\033[36m"
	colorWhite   = "\033[37m"
)

var componentColors = map[Component]string{
	ComponentVerifier: colorBlue,
	ComponentKeys:     colorYellow,
	ComponentPolicy:   colorCyan,
	ComponentAccounts: colorMagenta,
	ComponentSPIFFE:   colorGreen,
	ComponentCLI:      colorWhite,
}

// ColorHandler is a slog handler that prefixes every record with a
// color-coded component tag and a level marker
type ColorHandler struct {
	slog.Handler
	out       io.Writer
	mu        *sync.Mutex
	component Component
	useColors bool
	level     slog.Leveler
	attrs     []slog.Attr
}

// NewColorHandler creates a handler writing records at or above level to out
func NewColorHandler(out io.Writer, component Component, useColors bool, level slog.Leveler) *ColorHandler {
	return &ColorHandler{
		Handler:   slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}),
		out:       out,
		mu:        &sync.Mutex{},
		component: component,
		useColors: useColors,
		level:     level,
	}
}

// Enabled reports whether records at level are written
func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle writes: marker [COMPONENT] message key=value...
func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	color, reset := componentColors[h.component], colorReset
	if !h.useColors {
		color, reset = "", ""
	}

	fmt.Fprintf(h.out, "%s%s [%s]%s %s", color, levelMarker(r.Level), h.component, reset, r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(h.out, " %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.out, " %s=%v", a.Key, a.Value)
		return true
	})
	fmt.Fprintln(h.out)
	return nil
}

// WithAttrs returns a handler that appends attrs to every record
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.Handler = h.Handler.WithAttrs(attrs)
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup returns a handler for the named group
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.Handler = h.Handler.WithGroup(name)
	return &clone
}

func levelMarker(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\U0001F534"
	case level >= slog.LevelWarn:
		return "\U0001F7E1"
	case level >= slog.LevelInfo:
		return "\U0001F535"
	default:
		return "\U0001F7E3"
	}
}

// ParseLevel maps a config level name to a slog level, defaulting to info
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// level is shared by every logger created with New so that SetLevel applies
// process-wide
var level = new(slog.LevelVar)

// SetLevel changes the minimum level of loggers created with New
func SetLevel(l slog.Level) {
	level.Set(l)
}

// Logger wraps slog.Logger with component-specific helpers
type Logger struct {
	*slog.Logger
	component Component
}

// New creates a logger for component writing to stdout
func New(component Component) *Logger {
	useColors := os.Getenv("NO_COLOR") == "" && os.Getenv("TERM") != "dumb"
	return NewWithWriter(component, os.Stdout, useColors)
}

// NewWithWriter creates a logger with a custom writer
func NewWithWriter(component Component, w io.Writer, useColors bool) *Logger {
	return &Logger{
		Logger:    slog.New(NewColorHandler(w, component, useColors, level)),
		component: component,
	}
}

// With returns a logger carrying args on every record
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), component: l.component}
}

// Success logs a success message
func (l *Logger) Success(msg string, args ...any) {
	l.Info("✅ "+msg, args...)
}

// Deny logs a rejected request
func (l *Logger) Deny(msg string, args ...any) {
	l.Warn("❌ "+msg, args...)
}

// Section logs a section header
func (l *Logger) Section(title string) {
	rule := strings.Repeat("═", 50)
	l.Info(rule)
	l.Info(" " + title)
	l.Info(rule)
}

// SVID logs workload identity info
func (l *Logger) SVID(spiffeID string, msg string) {
	l.Info("\U0001F4DC [SVID] "+msg, "spiffe_id", spiffeID)
}

// Verification logs the outcome of a signature check
func (l *Logger) Verification(kid string, valid bool, args ...any) {
	args = append([]any{"kid", kid, "valid", valid}, args...)
	if valid {
		l.Success("ID token signature verified", args...)
		return
	}
	l.Deny("ID token signature rejected", args...)
}

// Policy logs a claim policy decision
func (l *Logger) Policy(allow bool, reason string, args ...any) {
	args = append([]any{"reason", reason}, args...)
	if allow {
		l.Info("\U0001F4CB ALLOW", args...)
		return
	}
	l.Info("\U0001F4CB DENY", args...)
}
