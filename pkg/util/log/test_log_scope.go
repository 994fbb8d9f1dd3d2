// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestLogScope represents the lifetime of a logging output redirection for a
// test. Log messages emitted while the scope is open go to the test's own
// output instead of stderr.
type TestLogScope struct {
	restore       func()
	prevVerbosity int32
}

// Scope redirects the log output to t until Close is called. The idiom is:
//
//	defer log.Scope(t).Close(t)
func Scope(t testing.TB) *TestLogScope {
	l := zaptest.NewLogger(t, zaptest.Level(zap.DebugLevel))
	return &TestLogScope{
		restore:       SetLogger(l),
		prevVerbosity: logging.verbosity.Load(),
	}
}

// Close restores the logger that was active before the scope was opened.
func (s *TestLogScope) Close(t testing.TB) {
	t.Helper()
	s.restore()
	SetVerbosity(s.prevVerbosity)
}
