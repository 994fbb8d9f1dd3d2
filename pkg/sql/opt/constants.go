// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

// DefaultMaxIterations is the default limit on the number of rule firings of
// a planning run.
const DefaultMaxIterations = 10000

// DefaultMinImprovement is the relative cost reduction that the cost-based
// planner must achieve over each improvement window to keep going.
const DefaultMinImprovement = 0.001
