// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package graph

import (
	"strings"
	"testing"

	"github.com/cockroachdb/relopt/pkg/util/leaktest"
	"github.com/stretchr/testify/require"
)

func TestDirectedGraph(t *testing.T) {
	defer leaktest.AfterTest(t)()

	g := NewDirectedGraph[string]()
	require.True(t, g.AddVertex("A"))
	require.True(t, g.AddVertex("B"))
	require.True(t, g.AddVertex("C"))
	require.False(t, g.AddVertex("A"))

	added, err := g.AddEdge("A", "B")
	require.NoError(t, err)
	require.True(t, added)

	// Duplicate edges are ignored.
	added, err = g.AddEdge("A", "B")
	require.NoError(t, err)
	require.False(t, added)

	_, err = g.AddEdge("A", "Z")
	require.EqualError(t, err, "no vertex Z")

	_, err = g.AddEdge("B", "C")
	require.NoError(t, err)

	require.Equal(t, "graph(vertices: [A, B, C], edges: [(A, B), (B, C)])", g.String())

	_, ok := g.Edge("A", "B")
	require.True(t, ok)
	_, ok = g.Edge("B", "A")
	require.False(t, ok)

	require.Equal(t, []Edge[string]{{Source: "A", Target: "B"}}, g.InEdges("B"))
	require.Equal(t, []Edge[string]{{Source: "B", Target: "C"}}, g.OutEdges("B"))

	order, err := g.TopologicalOrder()
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C"}, order)

	require.True(t, g.RemoveEdge("A", "B"))
	require.False(t, g.RemoveEdge("A", "B"))

	g.RemoveAllVertices("C")
	require.Equal(t, []string{"A", "B"}, g.Vertices())
	require.Empty(t, g.Edges())
}

func TestTopologicalOrderCycle(t *testing.T) {
	defer leaktest.AfterTest(t)()

	g := NewDirectedGraph[int]()
	for i := 1; i <= 4; i++ {
		g.AddVertex(i)
	}
	for _, e := range [][2]int{{1, 2}, {2, 3}, {3, 2}, {1, 4}} {
		_, err := g.AddEdge(e[0], e[1])
		require.NoError(t, err)
	}
	order, err := g.TopologicalOrder()
	require.EqualError(t, err, "graph has a cycle through [2, 3]")
	require.Equal(t, []int{1, 4}, order)
}

func TestAttributedDirectedGraph(t *testing.T) {
	defer leaktest.AfterTest(t)()

	g := NewAttributedDirectedGraph[string, int]()
	g.AddVertex("A")
	g.AddVertex("B")

	added, err := g.AddEdge("A", "B", 1)
	require.NoError(t, err)
	require.True(t, added)

	// Parallel edges must carry different attributes.
	added, err = g.AddEdge("A", "B", 1)
	require.NoError(t, err)
	require.False(t, added)
	added, err = g.AddEdge("A", "B", 2)
	require.NoError(t, err)
	require.True(t, added)

	require.Len(t, g.Edges("A", "B"), 2)
	require.Len(t, g.Edges("B", "A"), 0)
	require.Equal(t, "graph(vertices: [A, B], edges: [(A, B, 1), (A, B, 2)])", g.String())

	require.Equal(t, 2, g.RemoveEdge("A", "B"))
	require.Empty(t, g.AllEdges())
}

func TestDot(t *testing.T) {
	defer leaktest.AfterTest(t)()

	g := NewAttributedDirectedGraph[string, string]()
	g.AddVertex("scan.a")
	g.AddVertex("project.x")
	_, err := g.AddEdge("project.x", "scan.a", "ref")
	require.NoError(t, err)

	out := g.Dot(func(v string) string { return v })
	require.True(t, strings.HasPrefix(out, "digraph"), out)
	require.Contains(t, out, `label="scan.a"`)
	require.Contains(t, out, `label="ref"`)
}
