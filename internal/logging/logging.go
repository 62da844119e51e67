// Package logging adapts the teacher's structured-logging package
// (github.com/nabbar/golib/logger) down to the surface besd needs: a
// leveled, field-carrying logger backed by logrus, writing to a single
// io.Writer, with a debug-context registry standing in for BESDebug's named contexts
// (ppt, worker, supervisor, admin, ...).
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the interface every besd component logs through. It is
// intentionally small next to the teacher's Logger interface — besd has
// no gin/gorm/hclog integrations to carry.
type Logger interface {
	Debug(ctx string, msg string, fields ...interface{})
	Info(ctx string, msg string, fields ...interface{})
	Warn(ctx string, msg string, fields ...interface{})
	Error(ctx string, msg string, fields ...interface{})

	// SetDebug toggles a named debug context on or off (§4.7 GetLogContexts/SetLogContext).
	SetDebug(ctx string, on bool)
	// Contexts lists every known debug context and its state, insertion ordered.
	Contexts() []ContextState
}

type ContextState struct {
	Name string
	On   bool
}

type logger struct {
	out *logrus.Logger

	mu       sync.RWMutex
	ctxOrder []string
	ctxOn    map[string]bool
}

// New builds a Logger writing JSON lines to w; a nil w selects
// os.Stderr.
func New(w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.DebugLevel)

	return &logger{
		out:   l,
		ctxOn: make(map[string]bool),
	}
}

func (l *logger) entry(ctx string, fields []interface{}) *logrus.Entry {
	f := logrus.Fields{"context": ctx}
	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			f[key] = fields[i+1]
		}
	}
	return l.out.WithFields(f)
}

func (l *logger) debugEnabled(ctx string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	on, known := l.ctxOn[ctx]
	return !known || on
}

func (l *logger) Debug(ctx, msg string, fields ...interface{}) {
	if l.debugEnabled(ctx) {
		l.entry(ctx, fields).Debug(msg)
	}
}

func (l *logger) Info(ctx, msg string, fields ...interface{}) {
	l.entry(ctx, fields).Info(msg)
}

func (l *logger) Warn(ctx, msg string, fields ...interface{}) {
	l.entry(ctx, fields).Warn(msg)
}

func (l *logger) Error(ctx, msg string, fields ...interface{}) {
	l.entry(ctx, fields).Error(msg)
}

func (l *logger) SetDebug(ctx string, on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, known := l.ctxOn[ctx]; !known {
		l.ctxOrder = append(l.ctxOrder, ctx)
	}
	l.ctxOn[ctx] = on
}

func (l *logger) Contexts() []ContextState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ContextState, 0, len(l.ctxOrder))
	for _, name := range l.ctxOrder {
		out = append(out, ContextState{Name: name, On: l.ctxOn[name]})
	}
	return out
}
