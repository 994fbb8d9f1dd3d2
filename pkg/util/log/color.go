// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap/zapcore"
)

// stderrLevelEncoder colors the severity of log entries when stderr is a
// terminal that supports color output.
func stderrLevelEncoder() zapcore.LevelEncoder {
	if colorTerminal(os.Stderr, os.Getenv("TERM")) {
		return zapcore.CapitalColorLevelEncoder
	}
	return zapcore.CapitalLevelEncoder
}

func colorTerminal(f *os.File, term string) bool {
	return isatty.IsTerminal(f.Fd()) && termSupportsColor(term)
}

func termSupportsColor(term string) bool {
	switch term {
	case "ansi", "tmux", "st":
		return true
	}
	return strings.HasSuffix(term, "color") || strings.HasPrefix(term, "screen")
}
