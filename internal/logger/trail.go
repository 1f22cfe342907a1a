// file: internal/logger/trail.go
// version: 1.0.0
// guid: a0b1f452-1ee5-4d83-8925-4f20e0e344b4

package logger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Trail collects the human readable log lines of a single request.
// Lines are returned to the caller in error responses and mirrored to the
// structured logger. Safe for concurrent use by racing strategies.
type Trail struct {
	mu    sync.Mutex
	lines []string
	log   *Logger
}

// NewTrail creates a trail that mirrors entries to l.
func NewTrail(l *Logger) *Trail {
	if l == nil {
		l = Get()
	}
	return &Trail{log: l}
}

func (t *Trail) add(level, msg string, fields []map[string]interface{}) {
	if t == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(level)
	b.WriteString("] ")
	b.WriteString(msg)
	for _, set := range fields {
		keys := make([]string, 0, len(set))
		for k := range set {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, set[k])
		}
	}
	t.mu.Lock()
	t.lines = append(t.lines, b.String())
	t.mu.Unlock()
}

// Info records an informational line.
func (t *Trail) Info(msg string, fields ...map[string]interface{}) {
	if t == nil {
		Get().Info(msg, fields...)
		return
	}
	t.add("INFO", msg, fields)
	t.log.Info(msg, fields...)
}

// Warn records a warning line.
func (t *Trail) Warn(msg string, fields ...map[string]interface{}) {
	if t == nil {
		Get().Warn(msg, fields...)
		return
	}
	t.add("WARN", msg, fields)
	t.log.Warn(msg, fields...)
}

// Error records an error line.
func (t *Trail) Error(msg string, fields ...map[string]interface{}) {
	if t == nil {
		Get().Error(msg, fields...)
		return
	}
	t.add("ERROR", msg, fields)
	t.log.Error(msg, fields...)
}

// Lines returns a copy of the recorded lines. Never nil.
func (t *Trail) Lines() []string {
	if t == nil {
		return []string{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}

type trailKey struct{}

// WithTrail returns ctx carrying t.
func WithTrail(ctx context.Context, t *Trail) context.Context {
	return context.WithValue(ctx, trailKey{}, t)
}

// TrailFrom returns the request trail, or nil when none is attached.
// All Trail methods accept a nil receiver.
func TrailFrom(ctx context.Context) *Trail {
	if ctx == nil {
		return nil
	}
	t, _ := ctx.Value(trailKey{}).(*Trail)
	return t
}
