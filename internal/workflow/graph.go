// Package workflow drives a task through the orchestration state machine:
// query analysis, then decision rounds that delegate to providers, then
// collation and output.
package workflow

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/gammazero/toposort"

	"github.com/aristath/stepflow/internal/state"
)

// NodeFunc runs one node against a private copy of the state and returns the
// change to apply.
type NodeFunc func(ctx context.Context, st state.TaskState) (state.Update, error)

// RouteFunc picks the next node from a conditional edge.
type RouteFunc func(st state.TaskState) string

type route struct {
	fn      RouteFunc
	targets []string
}

// Graph declares nodes and the edges between them. Build it once, then
// Compile it before running.
type Graph struct {
	nodes    map[string]NodeFunc
	order    []string          // declaration order
	edges    map[string]string // unconditional
	loops    map[string]string // unconditional, back to an earlier node
	routes   map[string]route  // conditional
	entry    string
	terminal string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:  make(map[string]NodeFunc),
		edges:  make(map[string]string),
		loops:  make(map[string]string),
		routes: make(map[string]route),
	}
}

// AddNode declares a node. Returns error if the name is taken.
func (g *Graph) AddNode(name string, fn NodeFunc) error {
	if name == "" || fn == nil {
		return fmt.Errorf("node needs a name and a function")
	}
	if _, exists := g.nodes[name]; exists {
		return fmt.Errorf("node %q already exists", name)
	}
	g.nodes[name] = fn
	g.order = append(g.order, name)
	return nil
}

// AddEdge declares an unconditional forward edge.
func (g *Graph) AddEdge(from, to string) {
	g.edges[from] = to
}

// AddLoop declares an unconditional edge back to an earlier node. Loops are
// left out of the acyclicity check.
func (g *Graph) AddLoop(from, to string) {
	g.loops[from] = to
}

// AddConditionalEdge routes from a node through fn, which must return one of
// targets.
func (g *Graph) AddConditionalEdge(from string, fn RouteFunc, targets ...string) {
	g.routes[from] = route{fn: fn, targets: targets}
}

// SetEntry sets the first node.
func (g *Graph) SetEntry(name string) { g.entry = name }

// SetTerminal sets the node that ends a run.
func (g *Graph) SetTerminal(name string) { g.terminal = name }

// Compiled is a validated, immutable graph.
type Compiled struct {
	nodes    map[string]NodeFunc
	edges    map[string]string
	routes   map[string]route
	entry    string
	terminal string
	order    []string
}

// Compile validates the graph: entry and terminal exist, every other node
// has exactly one way out, every edge ends at a declared node, all nodes are
// reachable from the entry and the forward edges are acyclic.
func (g *Graph) Compile() (*Compiled, error) {
	if _, ok := g.nodes[g.entry]; !ok {
		return nil, fmt.Errorf("entry node %q is not declared", g.entry)
	}
	if _, ok := g.nodes[g.terminal]; !ok {
		return nil, fmt.Errorf("terminal node %q is not declared", g.terminal)
	}

	edges := make(map[string]string, len(g.edges)+len(g.loops))
	for _, name := range g.order {
		outs := 0
		if to, ok := g.edges[name]; ok {
			edges[name] = to
			outs++
		}
		if to, ok := g.loops[name]; ok {
			edges[name] = to
			outs++
		}
		if _, ok := g.routes[name]; ok {
			outs++
		}

		switch {
		case name == g.terminal && outs > 0:
			return nil, fmt.Errorf("terminal node %q has outgoing edges", name)
		case name != g.terminal && outs == 0:
			return nil, fmt.Errorf("node %q has no outgoing edge", name)
		case outs > 1:
			return nil, fmt.Errorf("node %q has %d outgoing edges, want 1", name, outs)
		}
	}

	// Edges must start and end at declared nodes
	for _, set := range []map[string]string{g.edges, g.loops} {
		for from, to := range set {
			if _, ok := g.nodes[from]; !ok {
				return nil, fmt.Errorf("edge from undeclared node %q", from)
			}
			if _, ok := g.nodes[to]; !ok {
				return nil, fmt.Errorf("edge %q -> %q targets undeclared node", from, to)
			}
		}
	}
	for from, r := range g.routes {
		if _, ok := g.nodes[from]; !ok {
			return nil, fmt.Errorf("route from undeclared node %q", from)
		}
		if r.fn == nil || len(r.targets) == 0 {
			return nil, fmt.Errorf("route from %q needs a function and targets", from)
		}
		for _, to := range r.targets {
			if _, ok := g.nodes[to]; !ok {
				return nil, fmt.Errorf("route %q -> %q targets undeclared node", from, to)
			}
		}
	}

	order, err := g.sort()
	if err != nil {
		return nil, err
	}

	return &Compiled{
		nodes:    g.nodes,
		edges:    edges,
		routes:   g.routes,
		entry:    g.entry,
		terminal: g.terminal,
		order:    order,
	}, nil
}

// sort orders the nodes along the forward edges using toposort and checks
// every node is reachable from the entry.
func (g *Graph) sort() ([]string, error) {
	var edges []toposort.Edge
	edges = append(edges, toposort.Edge{nil, g.entry})
	for _, from := range g.order {
		if to, ok := g.edges[from]; ok {
			edges = append(edges, toposort.Edge{from, to})
		}
		if r, ok := g.routes[from]; ok {
			for _, to := range r.targets {
				edges = append(edges, toposort.Edge{from, to})
			}
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("graph contains cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	reachable := reach(g.entry, g.edges, g.loops, g.routes)
	var missing []string
	for _, name := range g.order {
		if !reachable[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("nodes unreachable from %q: %s", g.entry, strings.Join(missing, ", "))
	}
	return order, nil
}

func reach(entry string, edges, loops map[string]string, routes map[string]route) map[string]bool {
	seen := map[string]bool{}
	stack := []string{entry}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		if to, ok := edges[n]; ok {
			stack = append(stack, to)
		}
		if to, ok := loops[n]; ok {
			stack = append(stack, to)
		}
		if r, ok := routes[n]; ok {
			stack = append(stack, r.targets...)
		}
	}
	return seen
}

// Entry returns the entry node name.
func (c *Compiled) Entry() string { return c.entry }

// Terminal returns the terminal node name.
func (c *Compiled) Terminal() string { return c.terminal }

// Order returns the nodes in forward topological order.
func (c *Compiled) Order() []string { return slices.Clone(c.order) }

// Next returns the node that follows name in state st.
func (c *Compiled) Next(name string, st state.TaskState) (string, error) {
	if to, ok := c.edges[name]; ok {
		return to, nil
	}
	r, ok := c.routes[name]
	if !ok {
		return "", fmt.Errorf("node %q has no outgoing edge", name)
	}
	to := r.fn(st)
	if !slices.Contains(r.targets, to) {
		return "", fmt.Errorf("route from %q chose undeclared target %q", name, to)
	}
	return to, nil
}
