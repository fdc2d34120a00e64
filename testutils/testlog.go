// Package testutils carries the shared test fixtures of the read path: a
// deterministic chain generator and a logger that routes through the unit
// test log.
package testutils

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// Testing is the subset of testing.TB the test logger needs.
type Testing interface {
	Logf(format string, args ...any)
	Helper()
}

// testLogger forwards every record to t.Logf so log output interleaves with
// the test's own and is only shown for failing tests.
type testLogger struct {
	t   Testing
	l   log.Logger
	mu  *sync.Mutex
	buf *bytes.Buffer
}

var _ log.Logger = (*testLogger)(nil)

// Logger returns a logger which logs to the unit test log of t.
func Logger(t Testing, level slog.Level) log.Logger {
	l := &testLogger{t: t, mu: new(sync.Mutex), buf: new(bytes.Buffer)}
	l.l = log.NewLogger(log.NewTerminalHandlerWithLevel(l.buf, level, false))
	return l
}

func (l *testLogger) flush() {
	for _, line := range strings.Split(l.buf.String(), "\n") {
		if line != "" {
			l.t.Logf("%s", line)
		}
	}
	l.buf.Reset()
}

func (l *testLogger) write(level slog.Level, msg string, ctx ...any) {
	l.t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.l.Write(level, msg, ctx...)
	l.flush()
}

func (l *testLogger) Trace(msg string, ctx ...any) { l.t.Helper(); l.write(log.LevelTrace, msg, ctx...) }
func (l *testLogger) Debug(msg string, ctx ...any) { l.t.Helper(); l.write(log.LevelDebug, msg, ctx...) }
func (l *testLogger) Info(msg string, ctx ...any)  { l.t.Helper(); l.write(log.LevelInfo, msg, ctx...) }
func (l *testLogger) Warn(msg string, ctx ...any)  { l.t.Helper(); l.write(log.LevelWarn, msg, ctx...) }
func (l *testLogger) Error(msg string, ctx ...any) { l.t.Helper(); l.write(log.LevelError, msg, ctx...) }
func (l *testLogger) Crit(msg string, ctx ...any) {
	l.t.Helper()
	l.write(log.LevelCrit, msg, ctx...)
}

func (l *testLogger) Log(level slog.Level, msg string, ctx ...any) {
	l.t.Helper()
	l.write(level, msg, ctx...)
}

func (l *testLogger) Write(level slog.Level, msg string, ctx ...any) {
	l.t.Helper()
	l.write(level, msg, ctx...)
}

// New shares the buffer and mutex so child records still reach t.Logf.
func (l *testLogger) New(ctx ...any) log.Logger {
	return &testLogger{t: l.t, l: l.l.New(ctx...), mu: l.mu, buf: l.buf}
}

func (l *testLogger) With(ctx ...any) log.Logger {
	return l.New(ctx...)
}

func (l *testLogger) Handler() slog.Handler {
	return l.l.Handler()
}

func (l *testLogger) Enabled(ctx context.Context, level slog.Level) bool {
	return l.l.Enabled(ctx, level)
}
