// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package graph provides small directed graph containers used by the
// optimizer for dependency ordering and column lineage.
//
// Vertices and edges are kept in insertion order, so every listing and every
// rendering of a graph is deterministic.
package graph

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/emicklei/dot"
)

// Edge is a directed edge between two vertices.
type Edge[V comparable] struct {
	Source V
	Target V
}

func (e Edge[V]) String() string {
	return fmt.Sprintf("(%v, %v)", e.Source, e.Target)
}

// AttributedEdge is a directed edge that carries an attribute. Two attributed
// edges between the same vertices are distinct iff their attributes differ.
type AttributedEdge[V comparable, A comparable] struct {
	Edge[V]
	Attr A
}

func (e AttributedEdge[V, A]) String() string {
	return fmt.Sprintf("(%v, %v, %v)", e.Source, e.Target, e.Attr)
}

// core is the storage shared by both graph flavors.
type core[V comparable, A comparable] struct {
	vertices []V
	present  map[V]struct{}
	edges    []AttributedEdge[V, A]
	edgeSet  map[AttributedEdge[V, A]]struct{}
}

func (g *core[V, A]) init() {
	if g.present == nil {
		g.present = make(map[V]struct{})
		g.edgeSet = make(map[AttributedEdge[V, A]]struct{})
	}
}

func (g *core[V, A]) addVertex(v V) bool {
	g.init()
	if _, ok := g.present[v]; ok {
		return false
	}
	g.present[v] = struct{}{}
	g.vertices = append(g.vertices, v)
	return true
}

func (g *core[V, A]) hasVertex(v V) bool {
	_, ok := g.present[v]
	return ok
}

func (g *core[V, A]) addEdge(e AttributedEdge[V, A]) (bool, error) {
	g.init()
	if !g.hasVertex(e.Source) {
		return false, errors.Newf("no vertex %v", e.Source)
	}
	if !g.hasVertex(e.Target) {
		return false, errors.Newf("no vertex %v", e.Target)
	}
	if _, ok := g.edgeSet[e]; ok {
		return false, nil
	}
	g.edgeSet[e] = struct{}{}
	g.edges = append(g.edges, e)
	return true, nil
}

// removeEdges removes every edge for which match returns true and returns how
// many were removed.
func (g *core[V, A]) removeEdges(match func(e AttributedEdge[V, A]) bool) int {
	n := 0
	kept := g.edges[:0]
	for _, e := range g.edges {
		if match(e) {
			delete(g.edgeSet, e)
			n++
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept
	return n
}

func (g *core[V, A]) removeAllVertices(vs []V) {
	if len(vs) == 0 {
		return
	}
	drop := make(map[V]struct{}, len(vs))
	for _, v := range vs {
		drop[v] = struct{}{}
		delete(g.present, v)
	}
	kept := g.vertices[:0]
	for _, v := range g.vertices {
		if _, ok := drop[v]; !ok {
			kept = append(kept, v)
		}
	}
	g.vertices = kept
	g.removeEdges(func(e AttributedEdge[V, A]) bool {
		_, src := drop[e.Source]
		_, dst := drop[e.Target]
		return src || dst
	})
}

func (g *core[V, A]) outEdges(v V) []AttributedEdge[V, A] {
	var res []AttributedEdge[V, A]
	for _, e := range g.edges {
		if e.Source == v {
			res = append(res, e)
		}
	}
	return res
}

func (g *core[V, A]) inEdges(v V) []AttributedEdge[V, A] {
	var res []AttributedEdge[V, A]
	for _, e := range g.edges {
		if e.Target == v {
			res = append(res, e)
		}
	}
	return res
}

// topologicalOrder returns the vertices so that every edge goes from an
// earlier vertex to a later one. Among vertices that are ready at the same
// time, insertion order wins. If the graph has a cycle, the vertices that
// could be ordered are returned along with an error naming the rest.
func (g *core[V, A]) topologicalOrder() ([]V, error) {
	indegree := make(map[V]int, len(g.vertices))
	for _, e := range g.edges {
		indegree[e.Target]++
	}
	order := make([]V, 0, len(g.vertices))
	done := make(map[V]bool, len(g.vertices))
	for len(order) < len(g.vertices) {
		progress := false
		for _, v := range g.vertices {
			if done[v] || indegree[v] != 0 {
				continue
			}
			done[v] = true
			progress = true
			order = append(order, v)
			for _, e := range g.edges {
				if e.Source == v {
					indegree[e.Target]--
				}
			}
		}
		if !progress {
			var rest []string
			for _, v := range g.vertices {
				if !done[v] {
					rest = append(rest, fmt.Sprint(v))
				}
			}
			return order, errors.Newf("graph has a cycle through [%s]", strings.Join(rest, ", "))
		}
	}
	return order, nil
}

func (g *core[V, A]) format(b *strings.Builder, edge func(e AttributedEdge[V, A]) string) {
	b.WriteString("graph(vertices: [")
	for i, v := range g.vertices {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprint(b, v)
	}
	b.WriteString("], edges: [")
	for i, e := range g.edges {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(edge(e))
	}
	b.WriteString("])")
}

func (g *core[V, A]) dot(
	name func(V) string, label func(AttributedEdge[V, A]) string,
) *dot.Graph {
	d := dot.NewGraph(dot.Directed)
	nodes := make(map[V]dot.Node, len(g.vertices))
	for i, v := range g.vertices {
		nodes[v] = d.Node(fmt.Sprintf("v%d", i)).Label(name(v))
	}
	for _, e := range g.edges {
		edge := d.Edge(nodes[e.Source], nodes[e.Target])
		if label != nil {
			if l := label(e); l != "" {
				edge.Label(l)
			}
		}
	}
	return d
}

// DirectedGraph is a directed graph with at most one edge between any
// ordered pair of vertices. The zero value is an empty graph.
type DirectedGraph[V comparable] struct {
	c core[V, struct{}]
}

// NewDirectedGraph returns an empty graph.
func NewDirectedGraph[V comparable]() *DirectedGraph[V] {
	return &DirectedGraph[V]{}
}

// AddVertex adds v and returns false if it was already present.
func (g *DirectedGraph[V]) AddVertex(v V) bool { return g.c.addVertex(v) }

// HasVertex returns true if v is part of the graph.
func (g *DirectedGraph[V]) HasVertex(v V) bool { return g.c.hasVertex(v) }

// AddEdge adds an edge from src to dst. It returns false if the edge already
// exists, and an error if either vertex is missing.
func (g *DirectedGraph[V]) AddEdge(src, dst V) (bool, error) {
	return g.c.addEdge(AttributedEdge[V, struct{}]{Edge: Edge[V]{Source: src, Target: dst}})
}

// Edge returns the edge from src to dst, if any.
func (g *DirectedGraph[V]) Edge(src, dst V) (Edge[V], bool) {
	e := Edge[V]{Source: src, Target: dst}
	_, ok := g.c.edgeSet[AttributedEdge[V, struct{}]{Edge: e}]
	return e, ok
}

// RemoveEdge removes the edge from src to dst and reports whether it existed.
func (g *DirectedGraph[V]) RemoveEdge(src, dst V) bool {
	return g.c.removeEdges(func(e AttributedEdge[V, struct{}]) bool {
		return e.Source == src && e.Target == dst
	}) > 0
}

// RemoveAllVertices removes the given vertices and every edge touching them.
func (g *DirectedGraph[V]) RemoveAllVertices(vs ...V) { g.c.removeAllVertices(vs) }

// Vertices returns the vertices in insertion order.
func (g *DirectedGraph[V]) Vertices() []V {
	return append([]V(nil), g.c.vertices...)
}

// Edges returns the edges in insertion order.
func (g *DirectedGraph[V]) Edges() []Edge[V] { return plain(g.c.edges) }

// OutEdges returns the edges leaving v.
func (g *DirectedGraph[V]) OutEdges(v V) []Edge[V] { return plain(g.c.outEdges(v)) }

// InEdges returns the edges entering v.
func (g *DirectedGraph[V]) InEdges(v V) []Edge[V] { return plain(g.c.inEdges(v)) }

// TopologicalOrder orders the vertices so that every edge points forward. It
// returns an error if the graph contains a cycle.
func (g *DirectedGraph[V]) TopologicalOrder() ([]V, error) { return g.c.topologicalOrder() }

// Dot renders the graph in Graphviz format, labeling vertices with name.
func (g *DirectedGraph[V]) Dot(name func(V) string) string {
	return g.c.dot(name, nil).String()
}

func (g *DirectedGraph[V]) String() string {
	var b strings.Builder
	g.c.format(&b, func(e AttributedEdge[V, struct{}]) string { return e.Edge.String() })
	return b.String()
}

func plain[V comparable](edges []AttributedEdge[V, struct{}]) []Edge[V] {
	res := make([]Edge[V], len(edges))
	for i := range edges {
		res[i] = edges[i].Edge
	}
	return res
}

// AttributedDirectedGraph is a directed graph whose edges carry attributes.
// Several edges may connect the same ordered pair of vertices as long as
// their attributes differ.
type AttributedDirectedGraph[V comparable, A comparable] struct {
	c core[V, A]
}

// NewAttributedDirectedGraph returns an empty graph.
func NewAttributedDirectedGraph[V comparable, A comparable]() *AttributedDirectedGraph[V, A] {
	return &AttributedDirectedGraph[V, A]{}
}

// AddVertex adds v and returns false if it was already present.
func (g *AttributedDirectedGraph[V, A]) AddVertex(v V) bool { return g.c.addVertex(v) }

// HasVertex returns true if v is part of the graph.
func (g *AttributedDirectedGraph[V, A]) HasVertex(v V) bool { return g.c.hasVertex(v) }

// AddEdge adds an edge from src to dst carrying attr. It returns false if an
// edge with an equal attribute already connects the pair.
func (g *AttributedDirectedGraph[V, A]) AddEdge(src, dst V, attr A) (bool, error) {
	return g.c.addEdge(AttributedEdge[V, A]{Edge: Edge[V]{Source: src, Target: dst}, Attr: attr})
}

// Edges returns all edges from src to dst, in insertion order.
func (g *AttributedDirectedGraph[V, A]) Edges(src, dst V) []AttributedEdge[V, A] {
	var res []AttributedEdge[V, A]
	for _, e := range g.c.edges {
		if e.Source == src && e.Target == dst {
			res = append(res, e)
		}
	}
	return res
}

// RemoveEdge removes every edge from src to dst and returns the number
// removed.
func (g *AttributedDirectedGraph[V, A]) RemoveEdge(src, dst V) int {
	return g.c.removeEdges(func(e AttributedEdge[V, A]) bool {
		return e.Source == src && e.Target == dst
	})
}

// RemoveAllVertices removes the given vertices and every edge touching them.
func (g *AttributedDirectedGraph[V, A]) RemoveAllVertices(vs ...V) { g.c.removeAllVertices(vs) }

// Vertices returns the vertices in insertion order.
func (g *AttributedDirectedGraph[V, A]) Vertices() []V {
	return append([]V(nil), g.c.vertices...)
}

// AllEdges returns every edge in insertion order.
func (g *AttributedDirectedGraph[V, A]) AllEdges() []AttributedEdge[V, A] {
	return append([]AttributedEdge[V, A](nil), g.c.edges...)
}

// OutEdges returns the edges leaving v.
func (g *AttributedDirectedGraph[V, A]) OutEdges(v V) []AttributedEdge[V, A] {
	return g.c.outEdges(v)
}

// InEdges returns the edges entering v.
func (g *AttributedDirectedGraph[V, A]) InEdges(v V) []AttributedEdge[V, A] {
	return g.c.inEdges(v)
}

// TopologicalOrder orders the vertices so that every edge points forward. It
// returns an error if the graph contains a cycle.
func (g *AttributedDirectedGraph[V, A]) TopologicalOrder() ([]V, error) {
	return g.c.topologicalOrder()
}

// Dot renders the graph in Graphviz format. Vertices are labeled with name
// and edges with the formatted attribute.
func (g *AttributedDirectedGraph[V, A]) Dot(name func(V) string) string {
	return g.c.dot(name, func(e AttributedEdge[V, A]) string { return fmt.Sprint(e.Attr) }).String()
}

func (g *AttributedDirectedGraph[V, A]) String() string {
	var b strings.Builder
	g.c.format(&b, func(e AttributedEdge[V, A]) string { return e.String() })
	return b.String()
}
