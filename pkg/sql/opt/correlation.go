// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// CorrelationID identifies the outer row bound by a Correlate (or a batched
// nested-loop join) and referenced from its right input through correlation
// variables. It is printed as $cor<N>.
type CorrelationID int

func (id CorrelationID) String() string {
	return fmt.Sprintf("$cor%d", int(id))
}

// ParseCorrelationID parses a name of the form $cor<N>.
func ParseCorrelationID(s string) (CorrelationID, error) {
	if !strings.HasPrefix(s, "$cor") {
		return 0, errors.Newf("invalid correlation id %q", s)
	}
	n, err := strconv.Atoi(s[len("$cor"):])
	if err != nil || n < 0 {
		return 0, errors.Newf("invalid correlation id %q", s)
	}
	return CorrelationID(n), nil
}

// CorrelationIDGenerator hands out correlation ids that are not used
// elsewhere in a tree. It is owned by a single planning run.
type CorrelationIDGenerator struct {
	next CorrelationID
}

// Reserve makes sure that ids up to and including id are never returned.
func (g *CorrelationIDGenerator) Reserve(id CorrelationID) {
	if id >= g.next {
		g.next = id + 1
	}
}

// Next returns a fresh correlation id.
func (g *CorrelationIDGenerator) Next() CorrelationID {
	id := g.next
	g.next++
	return id
}
