// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"sort"

	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/types"
)

// memoSet stores a set of logically equivalent expressions. Two sets found to
// be equivalent are merged: the set with the larger id is forwarded to the
// other one, and every lookup goes through find.
type memoSet struct {
	// id is the index of this set within the memo, starting at 1.
	id int

	// mergedInto is the set this set was merged into, if any.
	mergedInto *memoSet

	// rowType is the row type of the first expression registered in the set.
	// Inputs that reference the set see these field names.
	rowType *types.RowType

	// members holds the expressions of the set in registration order. After a
	// merge, members of both sets are interleaved by id.
	members []*member

	// parents are the members with an input that references this set.
	parents []*member

	// origin is the first expression registered in the set, with its
	// original inputs. It is only used in diagnostics.
	origin rel.Node
}

// find returns the set that s was merged into, or s.
func (s *memoSet) find() *memoSet {
	root := s
	for root.mergedInto != nil {
		root = root.mergedInto
	}
	// Compress the path so later lookups are direct.
	for s != root {
		next := s.mergedInto
		s.mergedInto = root
		s = next
	}
	return root
}

// live returns the members that are not duplicates of another member.
func (s *memoSet) live() []*member {
	res := make([]*member, 0, len(s.members))
	for _, m := range s.members {
		if !m.dup {
			res = append(res, m)
		}
	}
	return res
}

// absorb moves the members and parents of o into s.
func (s *memoSet) absorb(o *memoSet) {
	o.mergedInto = s
	s.members = append(s.members, o.members...)
	sort.Slice(s.members, func(i, j int) bool { return s.members[i].id < s.members[j].id })
	s.parents = append(s.parents, o.parents...)
	o.members = nil
	o.parents = nil
}

// member is an expression registered in a set. Its inputs are subsets.
type member struct {
	// id is the registration order of the member across the memo.
	id int

	node rel.Node
	set  *memoSet
	key  string

	// pruned members are not used as the root of new rule matches.
	pruned bool

	// dup is set when a merge made the member identical to another one. A
	// duplicate is ignored from then on.
	dup bool
}
