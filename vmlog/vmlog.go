// Package vmlog centralizes the virtual memory core's diagnostic output
// behind one indirection point, the way gopher-os's kernel/kfmt/early
// package stands between the rest of the kernel and raw console writes.
// Every package in this module logs through here instead of calling
// fmt.Printf directly.
package vmlog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu  sync.Mutex
	log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
)

/// SetOutput redirects subsequent log output, primarily for tests that
/// want to assert on the emitted trace.
func SetOutput(w io.Writer, level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

/// Debug logs a fine-grained paging event: page evicted, page faulted
/// in, address space grown, shrunk, or cloned.
func Debug(msg string, args ...any) {
	mu.Lock()
	l := log
	mu.Unlock()
	l.Log(context.Background(), slog.LevelDebug, msg, args...)
}

/// Info logs a lifecycle event: address space created or destroyed.
func Info(msg string, args ...any) {
	mu.Lock()
	l := log
	mu.Unlock()
	l.Log(context.Background(), slog.LevelInfo, msg, args...)
}

/// Error logs a fatal condition immediately before the core panics, such
/// as swap exhaustion.
func Error(msg string, args ...any) {
	mu.Lock()
	l := log
	mu.Unlock()
	l.Log(context.Background(), slog.LevelError, msg, args...)
}
