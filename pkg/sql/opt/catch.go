// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import "github.com/cockroachdb/relopt/pkg/util/errorutil"

// CatchOptimizerError converts the value recovered from a panic in optimizer
// code into an error. It returns nil if r is nil and re-panics if r is not an
// error. Runtime errors are converted to assertion failures. Use it as:
//
//	defer func() {
//	  if r := recover(); r != nil {
//	    err = opt.CatchOptimizerError(r)
//	  }
//	}()
//
// Propagating errors as panics is only possible because the optimizer does not
// update shared state and does not manipulate locks.
func CatchOptimizerError(r interface{}) error {
	if r == nil {
		return nil
	}
	ok, err := errorutil.ShouldCatch(r)
	if !ok {
		// Not an error object. For serious internal errors e.g. in the scheduler,
		// bad goroutine state, allocator problem etc, the go runtime throws a
		// string which does not implement error. So in this case we suspect we are
		// not able to recover, and must crash.
		panic(r)
	}
	return err
}
