// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import "github.com/cockroachdb/errors"

// ErrValidation marks errors returned when an expression is constructed from
// inputs or parameters that the operator does not accept. Test for it with
// errors.Is.
var ErrValidation = errors.New("invalid expression")

// Validationf returns an error marked with ErrValidation.
func Validationf(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrValidation)
}
