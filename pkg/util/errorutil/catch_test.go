// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package errorutil

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func catch(f func()) (caught bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			caught, err = ShouldCatch(r)
		}
	}()
	f()
	return false, nil
}

func TestShouldCatch(t *testing.T) {
	ok, err := catch(func() { panic(errors.AssertionFailedf("bad %d", 1)) })
	require.True(t, ok)
	require.True(t, errors.HasAssertionFailure(err))

	ok, err = catch(func() {
		var m map[string]int
		m["x"] = 1
	})
	require.True(t, ok)
	require.True(t, errors.HasAssertionFailure(err))

	ok, _ = catch(func() { panic("not an error") })
	require.False(t, ok)
}
