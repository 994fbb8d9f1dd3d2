// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cat contains interfaces that are used by the query optimizer to
// avoid including specifics of catalog implementations.
package cat

import "context"

// Catalog is an interface to a database catalog, exposing only the
// information needed by the query optimizer.
type Catalog interface {
	// ResolveTable locates a table by its qualified name. It returns an
	// error if no such table exists.
	ResolveTable(ctx context.Context, name DataSourceName) (Table, error)
}
