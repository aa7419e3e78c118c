package workflow

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/stepflow/internal/state"
)

func noop(context.Context, state.TaskState) (state.Update, error) {
	return state.Update{}, nil
}

func lineGraph(t *testing.T, names ...string) *Graph {
	t.Helper()
	g := NewGraph()
	for _, n := range names {
		require.NoError(t, g.AddNode(n, noop))
	}
	for i := 0; i+1 < len(names); i++ {
		g.AddEdge(names[i], names[i+1])
	}
	g.SetEntry(names[0])
	g.SetTerminal(names[len(names)-1])
	return g
}

func TestCompile_StandardGraph(t *testing.T) {
	c := standardGraph(t, &fakeAnalyzer{}, &fakeDecider{}, newProviders(t, nil), nil)

	order := c.Order()
	require.Len(t, order, 7)
	assert.Equal(t, NodeQueryAnalysis, order[0])

	before := func(a, b string) {
		t.Helper()
		assert.Less(t, slices.Index(order, a), slices.Index(order, b), "%s should come before %s", a, b)
	}
	before(NodeDecision, NodeRouter)
	before(NodeRouter, NodeExecution)
	before(NodeExecution, NodeValidation)
	before(NodeDecision, NodeCollation)
	before(NodeCollation, NodeOutput)

	assert.Equal(t, NodeQueryAnalysis, c.Entry())
	assert.Equal(t, NodeOutput, c.Terminal())
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T) *Graph
		want  string
	}{
		{
			name: "missing entry",
			build: func(t *testing.T) *Graph {
				g := lineGraph(t, "a", "b")
				g.SetEntry("nope")
				return g
			},
			want: "entry node",
		},
		{
			name: "edge to undeclared node",
			build: func(t *testing.T) *Graph {
				g := lineGraph(t, "a", "b")
				g.AddEdge("a", "ghost")
				return g
			},
			want: "undeclared",
		},
		{
			name: "route to undeclared node",
			build: func(t *testing.T) *Graph {
				g := NewGraph()
				require.NoError(t, g.AddNode("a", noop))
				require.NoError(t, g.AddNode("b", noop))
				g.AddConditionalEdge("a", func(state.TaskState) string { return "b" }, "b", "ghost")
				g.SetEntry("a")
				g.SetTerminal("b")
				return g
			},
			want: "undeclared",
		},
		{
			name: "dead end",
			build: func(t *testing.T) *Graph {
				g := lineGraph(t, "a", "b")
				require.NoError(t, g.AddNode("c", noop))
				return g
			},
			want: "no outgoing edge",
		},
		{
			name: "terminal with edge",
			build: func(t *testing.T) *Graph {
				g := lineGraph(t, "a", "b")
				g.AddLoop("b", "a")
				return g
			},
			want: "terminal node",
		},
		{
			name: "forward cycle",
			build: func(t *testing.T) *Graph {
				g := lineGraph(t, "a", "b", "c", "d")
				g.AddConditionalEdge("c", func(state.TaskState) string { return "d" }, "b", "d")
				delete(g.edges, "c")
				return g
			},
			want: "cycle",
		},
		{
			name: "unreachable node",
			build: func(t *testing.T) *Graph {
				g := lineGraph(t, "a", "b")
				require.NoError(t, g.AddNode("island", noop))
				g.AddEdge("island", "b")
				return g
			},
			want: "unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build(t).Compile()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAddNode_Duplicate(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNode("a", noop))
	assert.Error(t, g.AddNode("a", noop))
	assert.Error(t, g.AddNode("", noop))
	assert.Error(t, g.AddNode("b", nil))
}

func TestNext_RejectsUndeclaredRouteTarget(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNode("a", noop))
	require.NoError(t, g.AddNode("b", noop))
	g.AddConditionalEdge("a", func(state.TaskState) string { return "elsewhere" }, "b")
	g.SetEntry("a")
	g.SetTerminal("b")

	c, err := g.Compile()
	require.NoError(t, err)

	_, err = c.Next("a", state.TaskState{})
	assert.ErrorContains(t, err, "undeclared target")
}

func TestRouteAfterDecision(t *testing.T) {
	tests := []struct {
		action state.Action
		want   string
	}{
		{state.ActionDelegate, NodeRouter},
		{state.ActionComplete, NodeCollation},
		{state.ActionAskHuman, NodeCollation},
		{state.ActionError, NodeCollation},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			st := state.TaskState{CurrentDecision: &state.Decision{Action: tt.action}}
			assert.Equal(t, tt.want, RouteAfterDecision(st))
		})
	}
	assert.Equal(t, NodeCollation, RouteAfterDecision(state.TaskState{}))
}
