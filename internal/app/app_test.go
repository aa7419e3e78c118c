package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/stepflow/internal/config"
	"github.com/aristath/stepflow/internal/persistence"
	"github.com/aristath/stepflow/internal/reasoning"
	"github.com/aristath/stepflow/internal/state"
)

const (
	analysisReply = `{"intent":"write","required_providers":["writing"],"complexity":"simple",` +
		`"workflow_pattern":"single_provider","parameters":{}}`
	delegateReply = `{"action":"delegate","target_provider":"writing",` +
		`"provider_input":{"topic":"gophers"},"reasoning":"needs prose","confidence":0.9}`
	completeReply = `{"action":"complete","reasoning":"done","confidence":0.95}`
	writingReply  = `{"title":"Gophers","content":"Gophers dig tunnels.","content_type":"article",` +
		`"word_count":3,"style":"casual","summary":"Gophers dig."}`
)

// scripted serves canned replies per agent and counts client creations.
type scripted struct {
	replies map[string][]string
	created map[string]int
}

func (s *scripted) newClient(_ context.Context, agent string, st reasoning.Settings, _ *reasoning.ProcessManager) (reasoning.Client, error) {
	replies, ok := s.replies[agent]
	if !ok {
		return nil, errors.New("no script for " + agent)
	}
	s.created[agent]++
	return &reasoning.Static{Name: agent + "/" + st.Model, Responses: replies}, nil
}

func newScripted() *scripted {
	return &scripted{
		replies: map[string][]string{
			config.RoleAnalysis: {analysisReply},
			config.RoleDecision: {delegateReply, completeReply},
			"writing":           {writingReply},
		},
		created: map[string]int{},
	}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Database.Path = ""
	cfg.Orchestrator.MaxSteps = 5
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) (*App, *scripted) {
	t.Helper()
	s := newScripted()
	a, err := New(context.Background(), cfg, nil, append([]Option{WithClientFunc(s.newClient)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })
	return a, s
}

func TestNew_RegistersCatalogs(t *testing.T) {
	a, s := newTestApp(t, testConfig())

	names := make([]string, 0)
	for _, info := range a.Providers.ListAvailable() {
		names = append(names, info.Name)
		assert.True(t, info.Enabled)
	}
	assert.Equal(t, []string{"analysis", "coding", "github", "research", "social", "writing"}, names)
	assert.True(t, a.Tools.IsRegistered("text"))
	assert.Nil(t, a.Store)
	assert.Empty(t, s.created, "clients must not be created eagerly")
}

func TestNew_DisablesConfiguredAgents(t *testing.T) {
	cfg := testConfig()
	social := cfg.Agents["social"]
	social.Disabled = true
	cfg.Agents["social"] = social

	a, _ := newTestApp(t, cfg)

	info, err := a.Providers.Info("social")
	require.NoError(t, err)
	assert.False(t, info.Enabled)
}

func TestClient_CachedPerAgent(t *testing.T) {
	a, s := newTestApp(t, testConfig())
	ctx := context.Background()

	c1, err := a.Client(ctx, "writing")
	require.NoError(t, err)
	c2, err := a.Client(ctx, "writing")
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.Equal(t, 1, s.created["writing"])
	assert.Equal(t, "writing/qwen3:14b", c1.Model())
}

func TestClient_Errors(t *testing.T) {
	cfg := testConfig()
	cfg.Agents["legal"] = config.AgentConfig{Client: "missing"}
	a, _ := newTestApp(t, cfg)

	_, err := a.Client(context.Background(), "nobody")
	assert.ErrorContains(t, err, "not configured")

	_, err = a.Client(context.Background(), "legal")
	assert.ErrorContains(t, err, "unknown client")
}

func TestNewTask_UsesConfiguredBudget(t *testing.T) {
	a, _ := newTestApp(t, testConfig())

	st := a.NewTask("write about gophers", "")
	assert.NotEmpty(t, st.TaskID)
	assert.NotEmpty(t, st.SessionID)
	assert.Equal(t, 5, st.Control.MaxSteps)
	assert.Equal(t, state.StatusPending, st.Status)

	st = a.NewTask("again", "session-1", state.WithMaxSteps(2))
	assert.Equal(t, "session-1", st.SessionID)
	assert.Equal(t, 2, st.Control.MaxSteps)
}

func TestRun_EndToEnd(t *testing.T) {
	ctx := context.Background()
	store, err := persistence.NewMemoryStore(ctx)
	require.NoError(t, err)

	a, s := newTestApp(t, testConfig(), WithStore(store))

	final, err := a.Run(ctx, a.NewTask("write about gophers", ""))
	require.NoError(t, err)

	assert.Equal(t, state.StatusCompleted, final.Status)
	assert.True(t, final.Control.IsComplete)
	assert.Equal(t, 2, final.Control.CurrentStep)
	require.NotNil(t, final.FinalResponse)
	assert.Equal(t, "**Writing Result:**\nGophers dig.", *final.FinalResponse)
	assert.Equal(t, 1, s.created["writing"])

	saved, err := store.LoadCheckpoint(ctx, final.TaskID)
	require.NoError(t, err)
	assert.Equal(t, state.StatusCompleted, saved.Status)

	steps, err := store.GetSteps(ctx, final.TaskID)
	require.NoError(t, err)
	assert.Len(t, steps, len(final.History))
}

func TestRun_DecisionServiceDown(t *testing.T) {
	cfg := testConfig()
	cfg.Orchestrator.MaxSteps = 2
	a, s := newTestApp(t, cfg)
	delete(s.replies, config.RoleDecision)
	delete(s.replies, config.RoleAnalysis)
	s.replies["research"] = []string{"Research notes."}

	final, err := a.Run(context.Background(), a.NewTask("anything", ""))
	require.NoError(t, err)

	assert.Equal(t, state.StatusCompleted, final.Status)
	require.NotNil(t, final.FinalResponse)
	assert.Contains(t, *final.FinalResponse, "Research notes.")
}

func TestRunBatch(t *testing.T) {
	a, _ := newTestApp(t, testConfig())

	tasks := []state.TaskState{a.NewTask("one", ""), a.NewTask("two", "")}
	results := a.RunBatch(context.Background(), tasks)

	require.Len(t, results, 2)
	for i, res := range results {
		require.NoError(t, res.Err)
		assert.Equal(t, tasks[i].TaskID, res.State.TaskID)
		assert.Equal(t, state.StatusCompleted, res.State.Status)
	}
}
