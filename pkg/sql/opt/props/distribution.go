// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package props

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
)

// DistributionType describes how the rows of an expression are spread over
// the processes that evaluate it.
type DistributionType uint8

const (
	// AnyDistributed means nothing is known, or nothing is required.
	AnyDistributed DistributionType = iota
	// Singleton means all rows are in a single process.
	Singleton
	// HashDistributed means rows with equal key values are in the same
	// process.
	HashDistributed
	// RangeDistributed means each process holds a contiguous key range.
	RangeDistributed
	// RandomDistributed means rows are spread arbitrarily.
	RandomDistributed
	// RoundRobinDistributed means rows are dealt out in turn.
	RoundRobinDistributed
	// BroadcastDistributed means every process has every row.
	BroadcastDistributed
)

var distributionNames = [...]string{
	AnyDistributed:        "any",
	Singleton:             "single",
	HashDistributed:       "hash",
	RangeDistributed:      "range",
	RandomDistributed:     "random",
	RoundRobinDistributed: "rr",
	BroadcastDistributed:  "broadcast",
}

func (t DistributionType) String() string { return distributionNames[t] }

// keyed returns true for the types that carry distribution keys.
func (t DistributionType) keyed() bool {
	return t == HashDistributed || t == RangeDistributed
}

// Distribution is the distribution trait of an expression.
type Distribution struct {
	Type DistributionType
	// Keys are the field ordinals for hash and range distributions.
	Keys []int
}

// Hash returns a hash distribution on the given keys.
func Hash(keys ...int) Distribution {
	return Distribution{Type: HashDistributed, Keys: keys}
}

// Equals returns true if both distributions have the same type and keys.
func (d Distribution) Equals(o Distribution) bool {
	if d.Type != o.Type || len(d.Keys) != len(o.Keys) {
		return false
	}
	for i := range d.Keys {
		if d.Keys[i] != o.Keys[i] {
			return false
		}
	}
	return true
}

// Satisfies returns true if rows distributed by d also meet required.
func (d Distribution) Satisfies(required Distribution) bool {
	if d.Equals(required) {
		return true
	}
	switch required.Type {
	case AnyDistributed:
		return true
	case RandomDistributed:
		switch d.Type {
		case HashDistributed, RangeDistributed, RoundRobinDistributed:
			return true
		}
	}
	return false
}

// Remap renumbers the keys. It returns the any distribution if a key is not
// mapped.
func (d Distribution) Remap(m opt.Mapping) Distribution {
	if len(d.Keys) == 0 {
		return d
	}
	keys := make([]int, len(d.Keys))
	for i, k := range d.Keys {
		keys[i] = m.TargetOpt(k)
		if keys[i] < 0 {
			return Distribution{}
		}
	}
	return Distribution{Type: d.Type, Keys: keys}
}

// Shift adds delta to every key.
func (d Distribution) Shift(delta int) Distribution {
	if len(d.Keys) == 0 {
		return d
	}
	keys := make([]int, len(d.Keys))
	for i, k := range d.Keys {
		keys[i] = k + delta
	}
	return Distribution{Type: d.Type, Keys: keys}
}

// String formats the distribution as single, hash[0, 1], and so on.
func (d Distribution) String() string {
	if !d.Type.keyed() {
		return d.Type.String()
	}
	var b strings.Builder
	b.WriteString(d.Type.String())
	b.WriteByte('[')
	for i, k := range d.Keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(k))
	}
	b.WriteByte(']')
	return b.String()
}

// ParseDistribution parses the output of Distribution.String.
func ParseDistribution(s string) (Distribution, error) {
	s = strings.TrimSpace(s)
	name, keys := s, ""
	if i := strings.IndexByte(s, '['); i >= 0 {
		if !strings.HasSuffix(s, "]") {
			return Distribution{}, errors.Newf("invalid distribution %q", s)
		}
		name, keys = s[:i], s[i+1:len(s)-1]
	}
	var d Distribution
	found := false
	for t, n := range distributionNames {
		if n == strings.ToLower(strings.TrimSpace(name)) {
			d.Type = DistributionType(t)
			found = true
			break
		}
	}
	if !found {
		return Distribution{}, errors.Newf("unknown distribution %q", name)
	}
	if strings.TrimSpace(keys) != "" {
		if !d.Type.keyed() {
			return Distribution{}, errors.Newf("distribution %s does not take keys", d.Type)
		}
		for _, k := range strings.Split(keys, ",") {
			ord, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(k), "$"))
			if err != nil || ord < 0 {
				return Distribution{}, errors.Newf("invalid distribution key %q", k)
			}
			d.Keys = append(d.Keys, ord)
		}
	}
	if d.Type.keyed() && len(d.Keys) == 0 {
		return Distribution{}, errors.Newf("distribution %s requires keys", d.Type)
	}
	return d, nil
}
