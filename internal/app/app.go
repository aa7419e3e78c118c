// Package app builds the application context: configuration, logger,
// reasoning clients, registries, the compiled workflow and its runner are
// constructed once here and handed to the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aristath/stepflow/internal/capability"
	"github.com/aristath/stepflow/internal/config"
	"github.com/aristath/stepflow/internal/decision"
	"github.com/aristath/stepflow/internal/events"
	"github.com/aristath/stepflow/internal/persistence"
	"github.com/aristath/stepflow/internal/providers"
	"github.com/aristath/stepflow/internal/reasoning"
	"github.com/aristath/stepflow/internal/state"
	"github.com/aristath/stepflow/internal/validation"
	"github.com/aristath/stepflow/internal/window"
	"github.com/aristath/stepflow/internal/workflow"
)

// ClientFunc creates the raw reasoning client for an agent. The result is
// wrapped with retries and circuit breaking by the App.
type ClientFunc func(ctx context.Context, agent string, s reasoning.Settings, pm *reasoning.ProcessManager) (reasoning.Client, error)

// DefaultClientFunc dispatches on the configured client type.
func DefaultClientFunc(_ context.Context, _ string, s reasoning.Settings, pm *reasoning.ProcessManager) (reasoning.Client, error) {
	return reasoning.New(s, pm)
}

// App is the explicit application context.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Bus       *events.Bus
	Processes *reasoning.ProcessManager
	Validator *validation.Engine
	Providers *capability.Registry[capability.Provider]
	Tools     *capability.Registry[capability.Tool]
	Graph     *workflow.Compiled
	Runner    *workflow.Runner
	Store     persistence.Store // nil when checkpointing is off

	breakers  *reasoning.BreakerRegistry
	newClient ClientFunc

	mu      sync.Mutex
	clients map[string]reasoning.Client
}

// Option configures New.
type Option func(*options)

type options struct {
	store     persistence.Store
	newClient ClientFunc
	bus       *events.Bus
}

// WithStore uses s instead of opening the configured database.
func WithStore(s persistence.Store) Option {
	return func(o *options) { o.store = s }
}

// WithClientFunc replaces the reasoning client factory.
func WithClientFunc(f ClientFunc) Option {
	return func(o *options) { o.newClient = f }
}

// WithBus publishes run events to bus instead of a private one.
func WithBus(bus *events.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// New wires every component from cfg. Reasoning clients are created lazily
// on first use, so building an App never contacts a reasoning service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	o := options{newClient: DefaultClientFunc}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if o.bus == nil {
		o.bus = events.NewBus()
	}

	a := &App{
		Config:    cfg,
		Logger:    logger,
		Bus:       o.bus,
		Processes: reasoning.NewProcessManager(),
		breakers:  reasoning.NewBreakerRegistry(retryConfig(cfg.Resilience), logger),
		newClient: o.newClient,
		clients:   make(map[string]reasoning.Client),
	}

	validatorOpts := []validation.Option{
		validation.WithLogger(logger.Named("validation")),
		validation.WithMaxCorrectionAttempts(cfg.Validation.MaxCorrectionAttempts),
		validation.WithCorrections(cfg.Validation.CorrectionsOn()),
	}
	if _, ok := cfg.Agents[config.RoleCorrection]; ok {
		validatorOpts = append(validatorOpts, validation.WithCorrectionClient(a.lazy(config.RoleCorrection)))
	}
	a.Validator = validation.New(validatorOpts...)

	a.Providers = capability.NewRegistry[capability.Provider]("provider",
		capability.WithLogger(logger),
		capability.WithContractChecker(a.Validator),
		capability.WithExecTimeout(seconds(cfg.Orchestrator.ProviderTimeoutSeconds)))
	a.Providers.Discover(providers.Departments(cfg.Agents, a.Client, a.Validator, logger.Named("providers")))
	for _, name := range providers.Disabled(cfg.Agents) {
		if err := a.Providers.Disable(name); err != nil {
			return nil, err
		}
	}

	a.Tools = capability.NewRegistry[capability.Tool]("tool",
		capability.WithLogger(logger),
		capability.WithContractChecker(a.Validator))
	a.Tools.Discover(providers.Tools())

	builder := window.NewBuilder(
		window.WithLimits(cfg.Context.MaxTokens, cfg.Context.ReservedTokens),
		window.WithLogger(logger))

	graph, err := workflow.New(workflow.Deps{
		Analyzer:  decision.NewAnalyzer(a.lazy(config.RoleAnalysis), logger),
		Decider:   decision.NewEngine(a.lazy(config.RoleDecision), decision.WithBuilder(builder), decision.WithLogger(logger)),
		Providers: a.Providers,
		Tools:     a.Tools,
		Validator: a.Validator,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("building workflow: %w", err)
	}
	a.Graph = graph

	a.Store = o.store
	if a.Store == nil && cfg.Database.Path != "" {
		store, err := persistence.NewSQLiteStore(ctx, cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("opening checkpoint store: %w", err)
		}
		a.Store = store
	}

	runnerOpts := []workflow.RunnerOption{workflow.WithBus(a.Bus), workflow.WithLogger(logger)}
	if a.Store != nil {
		runnerOpts = append(runnerOpts, workflow.WithCheckpointer(a.Store))
	}
	a.Runner = workflow.NewRunner(graph, runnerOpts...)

	logger.Debug("Application ready",
		zap.Int("providers", len(a.Providers.ListAvailable())),
		zap.Int("tools", len(a.Tools.ListAvailable())),
		zap.Bool("checkpoints", a.Store != nil))
	return a, nil
}

// Client returns the resilient reasoning client for agent, creating it on
// first use.
func (a *App) Client(ctx context.Context, agent string) (reasoning.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.clients[agent]; ok {
		return c, nil
	}

	ac, ok := a.Config.Agents[agent]
	if !ok {
		return nil, fmt.Errorf("agent %q is not configured", agent)
	}
	cc, ok := a.Config.Clients[ac.Client]
	if !ok {
		return nil, fmt.Errorf("agent %q references unknown client %q", agent, ac.Client)
	}

	raw, err := a.newClient(ctx, agent, reasoning.Settings{
		Type:        cc.Type,
		Command:     cc.Command,
		Args:        cc.Args,
		BaseURL:     cc.BaseURL,
		Provider:    cc.Provider,
		APIKey:      reasoning.APIKeyFromEnv(cc.APIKeyEnv),
		Model:       ac.Model,
		Temperature: ac.Temperature,
	}, a.Processes)
	if err != nil {
		return nil, fmt.Errorf("creating client for %s: %w", agent, err)
	}

	c := reasoning.NewResilient(raw, a.breakers)
	a.clients[agent] = c
	a.Logger.Debug("Created reasoning client", zap.String("agent", agent), zap.String("model", c.Model()))
	return c, nil
}

// NewTask creates the initial state for task with the configured budget.
// An empty sessionID starts a new session.
func (a *App) NewTask(task, sessionID string, opts ...state.Option) state.TaskState {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	base := []state.Option{
		state.WithMaxSteps(a.Config.Orchestrator.MaxSteps),
		state.WithTimeout(a.Config.Orchestrator.TimeoutSeconds),
	}
	return state.New(uuid.NewString(), sessionID, task, append(base, opts...)...)
}

// Run drives st to completion.
func (a *App) Run(ctx context.Context, st state.TaskState) (state.TaskState, error) {
	return a.Runner.Run(ctx, st)
}

// RunBatch runs independent tasks with the configured concurrency.
func (a *App) RunBatch(ctx context.Context, tasks []state.TaskState) []workflow.BatchResult {
	return a.Runner.RunBatch(ctx, tasks, a.Config.Orchestrator.Concurrency)
}

// Close stops tracked subprocesses, closes the event bus and the store.
func (a *App) Close() error {
	var errs []error
	if err := a.Processes.KillAll(); err != nil {
		errs = append(errs, fmt.Errorf("killing subprocesses: %w", err))
	}
	a.Bus.Close()
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// lazy returns a client for agent that resolves on first Invoke.
func (a *App) lazy(agent string) reasoning.Client {
	return &lazyClient{app: a, agent: agent}
}

type lazyClient struct {
	app   *App
	agent string
}

func (l *lazyClient) Invoke(ctx context.Context, system, user string) (string, error) {
	c, err := l.app.Client(ctx, l.agent)
	if err != nil {
		return "", err
	}
	return c.Invoke(ctx, system, user)
}

func (l *lazyClient) Model() string {
	if ac, ok := l.app.Config.Agents[l.agent]; ok && ac.Model != "" {
		return ac.Model
	}
	return l.agent
}

func retryConfig(r config.ResilienceSettings) reasoning.RetryConfig {
	return reasoning.RetryConfig{
		InitialInterval:  time.Duration(r.InitialIntervalMS) * time.Millisecond,
		MaxInterval:      time.Duration(r.MaxIntervalMS) * time.Millisecond,
		MaxElapsedTime:   time.Duration(r.MaxElapsedMS) * time.Millisecond,
		CallTimeout:      seconds(r.CallTimeoutSeconds),
		FailureThreshold: uint32(max(r.FailureThreshold, 0)),
		RecoveryTimeout:  seconds(r.RecoverySeconds),
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
