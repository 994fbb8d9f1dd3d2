// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package log

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
	"github.com/cockroachdb/relopt/pkg/util/leaktest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFormatWithContextTags(t *testing.T) {
	defer leaktest.AfterTest(t)()

	ctx := logtags.AddTag(context.Background(), "hep", nil)
	ctx = logtags.AddTag(ctx, "phase", 2)
	s := FormatWithContextTags(ctx, "fired %s on %d nodes", redact.Safe("FilterMerge"), 3)
	require.Equal(t, "[hep,phase=2] fired FilterMerge on 3 nodes", s)

	s = FormatWithContextTags(context.Background(), "no tags")
	require.Equal(t, "no tags", s)
}

func TestVEventf(t *testing.T) {
	defer leaktest.AfterTest(t)()

	core, logs := observer.New(zapcore.DebugLevel)
	defer SetLogger(zap.New(core))()
	defer SetVerbosity(SetVerbosity(0))

	ctx := context.Background()
	VEventf(ctx, 2, "hidden")
	require.Equal(t, 0, logs.Len())

	SetVerbosity(2)
	require.True(t, V(2))
	require.False(t, V(3))
	VEventf(ctx, 2, "shown %d", 1)
	Warningf(ctx, "careful")
	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	require.Equal(t, "shown 1", entries[0].Message)
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestTermSupportsColor(t *testing.T) {
	defer leaktest.AfterTest(t)()

	for term, exp := range map[string]bool{
		"xterm-256color": true,
		"screen":         true,
		"tmux":           true,
		"dumb":           false,
		"":               false,
	} {
		require.Equal(t, exp, termSupportsColor(term), term)
	}

	// Files that are not terminals are never colored.
	f, err := os.CreateTemp(t.TempDir(), "log")
	require.NoError(t, err)
	defer f.Close()
	require.False(t, colorTerminal(f, "xterm-256color"))
}

func TestEveryN(t *testing.T) {
	defer leaktest.AfterTest(t)()

	defer SetVerbosity(SetVerbosity(0))

	start := time.Now()
	e := Every(time.Minute)
	require.True(t, e.shouldLog(start))
	require.False(t, e.shouldLog(start.Add(time.Second)))
	require.True(t, e.shouldLog(start.Add(time.Minute)))
	require.False(t, e.shouldLog(start.Add(time.Minute+time.Second)))

	SetVerbosity(2)
	require.True(t, e.shouldLog(start.Add(time.Minute+time.Second)))
}
