package logger

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Entry is one record kept by a Capture.
type Entry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]string
}

// Capture is a Logger that keeps records in memory. Child loggers created
// with With share the parent's record list.
type Capture struct {
	mu      *sync.Mutex
	entries *[]Entry
	attrs   []any
	group   string
}

// NewCapture returns an empty Capture.
func NewCapture() *Capture {
	return &Capture{mu: &sync.Mutex{}, entries: &[]Entry{}}
}

func (c *Capture) Debug(msg string, args ...any) { c.record(slog.LevelDebug, msg, args) }
func (c *Capture) Info(msg string, args ...any)  { c.record(slog.LevelInfo, msg, args) }
func (c *Capture) Warn(msg string, args ...any)  { c.record(slog.LevelWarn, msg, args) }
func (c *Capture) Error(msg string, args ...any) { c.record(slog.LevelError, msg, args) }
func (c *Capture) Fatal(msg string, args ...any) { c.record(LevelFatal, msg, args) }

func (c *Capture) With(args ...any) Logger {
	attrs := make([]any, 0, len(c.attrs)+len(args))
	attrs = append(attrs, c.attrs...)
	attrs = append(attrs, c.prefixed(args)...)
	return &Capture{mu: c.mu, entries: c.entries, attrs: attrs, group: c.group}
}

func (c *Capture) WithGroup(name string) Logger {
	group := name
	if c.group != "" && name != "" {
		group = c.group + "." + name
	} else if name == "" {
		group = c.group
	}
	return &Capture{mu: c.mu, entries: c.entries, attrs: c.attrs, group: group}
}

// Entries returns a copy of all records logged so far.
func (c *Capture) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(*c.entries))
	copy(out, *c.entries)
	return out
}

// Count returns how many records at or above level were logged.
func (c *Capture) Count(level slog.Level) int {
	n := 0
	for _, e := range c.Entries() {
		if e.Level >= level {
			n++
		}
	}
	return n
}

// Contains reports whether any record message at level contains substr.
func (c *Capture) Contains(level slog.Level, substr string) bool {
	for _, e := range c.Entries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// Reset drops all records.
func (c *Capture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	*c.entries = (*c.entries)[:0]
}

func (c *Capture) prefixed(args []any) []any {
	if c.group == "" {
		return args
	}
	out := make([]any, len(args))
	copy(out, args)
	for i := 0; i+1 < len(out); i += 2 {
		if k, ok := out[i].(string); ok {
			out[i] = c.group + "." + k
		}
	}
	return out
}

func (c *Capture) record(level slog.Level, msg string, args []any) {
	all := make([]any, 0, len(c.attrs)+len(args))
	all = append(all, c.attrs...)
	all = append(all, c.prefixed(args)...)

	attrs := make(map[string]string, len(all)/2)
	for i := 0; i+1 < len(all); i += 2 {
		attrs[fmt.Sprint(all[i])] = fmt.Sprint(all[i+1])
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	*c.entries = append(*c.entries, Entry{Level: level, Message: msg, Attrs: attrs})
}
