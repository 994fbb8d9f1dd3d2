// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package log is the logging facade used by the optimizer packages. Messages
// are formatted with redaction-aware formatting, prefixed with the logging
// tags found in the context, and written through a zap logger.
package log

import (
	"context"
	"os"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logging struct {
	logger    atomic.Pointer[zap.Logger]
	verbosity atomic.Int32
}

func init() {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = stderrLevelEncoder()
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), zap.InfoLevel,
	)
	logging.logger.Store(zap.New(core))
}

// SetLogger replaces the sink used by all logging functions and returns a
// function that restores the previous one.
func SetLogger(l *zap.Logger) (restore func()) {
	prev := logging.logger.Swap(l)
	return func() { logging.logger.Store(prev) }
}

// SetVerbosity sets the level below which VEventf messages are emitted and
// returns the previous level.
func SetVerbosity(level int32) int32 {
	return logging.verbosity.Swap(level)
}

// V returns true if the logging verbosity is set to the specified level or
// higher.
func V(level int32) bool {
	return logging.verbosity.Load() >= level
}

// Infof logs to the INFO severity.
func Infof(ctx context.Context, format string, args ...interface{}) {
	logging.logger.Load().Info(formatWithTags(ctx, format, args))
}

// Warningf logs to the WARNING severity.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	logging.logger.Load().Warn(formatWithTags(ctx, format, args))
}

// Errorf logs to the ERROR severity.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	logging.logger.Load().Error(formatWithTags(ctx, format, args))
}

// VEventf logs the message at INFO severity when the verbosity is at least
// the given level. Planner tracing goes through here so that it is free when
// verbosity is off.
func VEventf(ctx context.Context, level int32, format string, args ...interface{}) {
	if !V(level) {
		return
	}
	logging.logger.Load().Info(formatWithTags(ctx, format, args))
}

// FormatWithContextTags formats the string and prepends the context tags.
//
// Redaction markers are *not* inserted. The resulting string is generally
// unsafe for reporting.
func FormatWithContextTags(ctx context.Context, format string, args ...interface{}) string {
	return formatWithTags(ctx, format, args)
}

func formatWithTags(ctx context.Context, format string, args []interface{}) string {
	var buf strings.Builder
	if tags := logtags.FromContext(ctx); tags != nil {
		buf.WriteByte('[')
		buf.WriteString(tags.String())
		buf.WriteString("] ")
	}
	buf.WriteString(redact.Sprintf(format, args...).StripMarkers())
	return buf.String()
}
