// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"testing"

	"github.com/cockroachdb/relopt/pkg/util/leaktest"
)

func TestCostLess(t *testing.T) {
	defer leaktest.AfterTest(t)()
	testCases := []struct {
		left, right Cost
		expected    bool
	}{
		{Cost{CPU: 0.0}, Cost{CPU: 1.0}, true},
		{Cost{CPU: 0.0}, Cost{CPU: 1e-20}, true},
		{Cost{CPU: 0.0}, Cost{CPU: 0.0}, false},
		{Cost{CPU: 1.0}, Cost{CPU: 0.0}, false},
		{Cost{CPU: 1e-20}, Cost{CPU: 1.0000000000001e-20}, false},
		{Cost{CPU: 1e-20}, Cost{CPU: 1.000001e-20}, true},
		{Cost{CPU: 1}, Cost{CPU: 1.00000000000001}, false},
		{Cost{CPU: 1}, Cost{CPU: 1.00000001}, true},
		{Cost{CPU: 1000}, Cost{CPU: 1000.00000000001}, false},
		{Cost{CPU: 1000}, Cost{CPU: 1000.00001}, true},
		// IO is weighted more than CPU.
		{Cost{CPU: 3}, Cost{IO: 1}, true},
		{Cost{IO: 1}, Cost{CPU: 3}, false},
		// Equal totals are ordered by rows, then CPU, then IO.
		{Cost{Rows: 1, CPU: 4}, Cost{Rows: 2, CPU: 3}, true},
		{Cost{Rows: 2, CPU: 3}, Cost{Rows: 1, CPU: 4}, false},
		{Cost{CPU: 4}, Cost{CPU: 0, IO: 1}, false},
		{Cost{CPU: 0, IO: 1}, Cost{CPU: 4}, true},
		{MaxCost, Cost{CPU: 1.0}, false},
		{Cost{CPU: 0.0}, MaxCost, true},
		{MaxCost, MaxCost, false},
	}
	for _, tc := range testCases {
		if tc.left.Less(tc.right) != tc.expected {
			t.Errorf("expected %v.Less(%v) to be %v", tc.left, tc.right, tc.expected)
		}
	}
}

func TestCostAdd(t *testing.T) {
	defer leaktest.AfterTest(t)()
	testCases := []struct {
		left, right, expected Cost
	}{
		{Cost{CPU: 1.0}, Cost{CPU: 2.0}, Cost{CPU: 3.0}},
		{Cost{CPU: 0.0}, Cost{CPU: 0.0}, Cost{CPU: 0.0}},
		{Cost{CPU: -1.0}, Cost{CPU: 1.0}, Cost{CPU: 0.0}},
		{Cost{CPU: 1.5}, Cost{CPU: 2.5}, Cost{CPU: 4.0}},
		{Cost{Rows: 1, IO: 2}, Cost{Rows: 3, CPU: 1}, Cost{Rows: 4, CPU: 1, IO: 2}},
	}
	for _, tc := range testCases {
		res := tc.left.Plus(tc.right)
		tc.left.Add(tc.right)
		if tc.left != tc.expected || res != tc.expected {
			t.Errorf("expected %v.Add(%v) to be %v, got %v", tc.left, tc.right, tc.expected, tc.left)
		}
	}
}

func TestCostString(t *testing.T) {
	defer leaktest.AfterTest(t)()
	if s := (Cost{Rows: 14, CPU: 1.4, IO: 0}).String(); s != "{14 rows, 1.4 cpu, 0 io}" {
		t.Errorf("unexpected cost string %s", s)
	}
	if s := MaxCost.String(); s != "{inf}" {
		t.Errorf("unexpected cost string %s", s)
	}
}
