// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package leaktest provides tools to detect leaked goroutines in tests.
package leaktest

import (
	"testing"

	"go.uber.org/goleak"
)

// AfterTest snapshots the currently-running goroutines and returns a function
// to be run at the end of tests to see whether any goroutines leaked. The
// check is skipped if the test already failed.
//
//	defer leaktest.AfterTest(t)()
func AfterTest(t testing.TB) func() {
	ignore := goleak.IgnoreCurrent()
	return func() {
		if t.Failed() {
			return
		}
		goleak.VerifyNone(t, ignore)
	}
}
