// Package capability implements the generic provider registry: static
// discovery, lazy build-once instances and uniform execution with typed errors.
package capability

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aristath/stepflow/internal/state"
)

// Input and Output are the payloads exchanged with providers.
type (
	Input  = map[string]any
	Output = map[string]any
)

// Executor is anything the registry can dispatch to.
type Executor interface {
	Execute(ctx context.Context, in Input) (Output, error)
}

// Provider is an execution-capability provider (a department).
type Provider interface {
	Executor
}

// Tool is a tool-style provider exposing named actions.
type Tool interface {
	Executor
	Actions() []string
}

// Descriptor is a registry entry. Build produces the executable instance on
// first use.
type Descriptor[E Executor] struct {
	Name           string
	Description    string
	InputContract  string
	OutputContract string
	Build          func(ctx context.Context) (E, error)
}

// Catalog is a static table of descriptor constructors keyed by name.
type Catalog[E Executor] map[string]func() Descriptor[E]

// ContractChecker validates a payload against a named contract and returns
// the violations, if any.
type ContractChecker interface {
	Check(contract string, data map[string]any) []string
}

type entry[E Executor] struct {
	desc     Descriptor[E]
	enabled  bool
	built    bool
	instance E
}

// Registry holds descriptors by name. Registration is expected to finish
// before any run starts; after that the only mutation is the lazy build
// inside Execute, which is serialized per name.
type Registry[E Executor] struct {
	kind        string
	logger      *zap.Logger
	checker     ContractChecker
	execTimeout time.Duration

	mu      sync.RWMutex
	entries map[string]*entry[E]
	builds  *nameLocks
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	logger      *zap.Logger
	checker     ContractChecker
	execTimeout time.Duration
}

// WithLogger sets the logger used for warnings and lookups.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithContractChecker enables input/output contract checks at the boundary.
func WithContractChecker(c ContractChecker) Option {
	return func(o *options) { o.checker = c }
}

// WithExecTimeout bounds every Execute call.
func WithExecTimeout(d time.Duration) Option {
	return func(o *options) { o.execTimeout = d }
}

// NewRegistry creates an empty registry. kind names the entries in logs
// ("provider", "tool").
func NewRegistry[E Executor](kind string, opts ...Option) *Registry[E] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry[E]{
		kind:        kind,
		logger:      logger.With(zap.String("registry", kind)),
		checker:     o.checker,
		execTimeout: o.execTimeout,
		entries:     make(map[string]*entry[E]),
		builds:      newNameLocks(),
	}
}

// Register adds d. A duplicate name replaces the previous entry and drops
// its cached instance; that is logged, not returned.
func (r *Registry[E]) Register(d Descriptor[E]) error {
	if strings.TrimSpace(d.Name) == "" {
		return &ConfigurationError{Name: d.Name, Reason: "name must not be empty"}
	}
	if d.Build == nil {
		return &ConfigurationError{Name: d.Name, Reason: "build function is required"}
	}

	r.mu.Lock()
	_, exists := r.entries[d.Name]
	r.entries[d.Name] = &entry[E]{desc: d, enabled: true}
	r.mu.Unlock()

	if exists {
		r.logger.Warn("Overwriting registered "+r.kind, zap.String("name", d.Name))
	} else {
		r.logger.Debug("Registered "+r.kind, zap.String("name", d.Name))
	}
	return nil
}

// Discover registers every descriptor in catalog in sorted-name order and
// returns how many were accepted. A descriptor without a name takes its key.
func (r *Registry[E]) Discover(catalog Catalog[E]) int {
	count := 0
	for _, key := range slices.Sorted(maps.Keys(catalog)) {
		d := catalog[key]()
		if d.Name == "" {
			d.Name = key
		}
		if err := r.Register(d); err != nil {
			r.logger.Error("Skipping "+r.kind, zap.String("name", key), zap.Error(err))
			continue
		}
		count++
	}
	r.logger.Info("Discovered "+r.kind+"s", zap.Int("count", count))
	return count
}

// Get returns the descriptor registered under name.
func (r *Registry[E]) Get(name string) (Descriptor[E], error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		r.logger.Warn(r.kind+" not found", zap.String("name", name))
		return Descriptor[E]{}, &NotFoundError{Name: name}
	}
	return e.desc, nil
}

// IsRegistered reports whether name is registered.
func (r *Registry[E]) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Unregister removes name and reports whether it was present.
func (r *Registry[E]) Unregister(name string) bool {
	r.builds.Lock(name)
	defer r.builds.Unlock(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[name]
	delete(r.entries, name)
	return ok
}

// Clear removes every entry.
func (r *Registry[E]) Clear() {
	r.mu.RLock()
	names := slices.Collect(maps.Keys(r.entries))
	r.mu.RUnlock()

	// Wait out in-flight builds before dropping their entries
	r.builds.LockAll(names)
	defer r.builds.UnlockAll(names)

	r.mu.Lock()
	clear(r.entries)
	r.mu.Unlock()
}

// Enable re-enables a disabled entry.
func (r *Registry[E]) Enable(name string) error {
	return r.setEnabled(name, true)
}

// Disable keeps the entry registered but rejects Execute and hides it from
// the enabled listing.
func (r *Registry[E]) Disable(name string) error {
	return r.setEnabled(name, false)
}

func (r *Registry[E]) setEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return &NotFoundError{Name: name}
	}
	e.enabled = enabled
	return nil
}

// Info returns the listing entry for name.
func (r *Registry[E]) Info(name string) (state.ProviderInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return state.ProviderInfo{}, &NotFoundError{Name: name}
	}
	return infoOf(e), nil
}

// ListAvailable returns all entries sorted by name, disabled ones included
// with Enabled=false.
func (r *Registry[E]) ListAvailable() []state.ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]state.ProviderInfo, 0, len(r.entries))
	for _, name := range slices.Sorted(maps.Keys(r.entries)) {
		out = append(out, infoOf(r.entries[name]))
	}
	return out
}

// ListEnabled returns only the enabled entries, sorted by name.
func (r *Registry[E]) ListEnabled() []state.ProviderInfo {
	var out []state.ProviderInfo
	for _, info := range r.ListAvailable() {
		if info.Enabled {
			out = append(out, info)
		}
	}
	return out
}

func infoOf[E Executor](e *entry[E]) state.ProviderInfo {
	return state.ProviderInfo{
		Name:           e.desc.Name,
		Description:    e.desc.Description,
		InputContract:  e.desc.InputContract,
		OutputContract: e.desc.OutputContract,
		Enabled:        e.enabled,
	}
}

// Execute resolves name, builds it on first use and invokes it.
// Unknown names return *NotFoundError, disabled ones *DisabledError; every
// failure from the provider itself comes back as *ExecutionError.
func (r *Registry[E]) Execute(ctx context.Context, name string, in Input) (Output, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	var enabled bool
	if ok {
		enabled = e.enabled
	}
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn(r.kind+" not found", zap.String("name", name))
		return nil, &NotFoundError{Name: name}
	}
	if !enabled {
		return nil, &DisabledError{Name: name}
	}

	start := time.Now()
	fail := func(msg string, err error) (Output, error) {
		execErr := &ExecutionError{Provider: name, Elapsed: time.Since(start), Message: msg, Err: err}
		r.logger.Warn(r.kind+" execution failed",
			zap.String("name", name),
			zap.Duration("elapsed", execErr.Elapsed),
			zap.Error(err))
		return nil, execErr
	}

	if r.execTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.execTimeout)
		defer cancel()
	}

	inst, err := r.instance(ctx, e)
	if err != nil {
		return fail("build failed: "+err.Error(), err)
	}

	if msgs := r.check(e.desc.InputContract, in); len(msgs) > 0 {
		err := fmt.Errorf("input violates %s: %s", e.desc.InputContract, strings.Join(msgs, "; "))
		return fail(err.Error(), err)
	}

	out, err := r.invoke(ctx, inst, in)
	if err != nil {
		return fail(err.Error(), err)
	}

	if msgs := r.check(e.desc.OutputContract, out); len(msgs) > 0 {
		err := fmt.Errorf("output violates %s: %s", e.desc.OutputContract, strings.Join(msgs, "; "))
		return fail(err.Error(), err)
	}

	r.logger.Debug(r.kind+" executed", zap.String("name", name), zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

// instance returns the cached instance for e, building it at most once.
func (r *Registry[E]) instance(ctx context.Context, e *entry[E]) (inst E, err error) {
	name := e.desc.Name
	r.builds.Lock(name)
	defer r.builds.Unlock(name)

	r.mu.RLock()
	built, cached := e.built, e.instance
	r.mu.RUnlock()
	if built {
		return cached, nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic during build: %v", rec)
		}
	}()
	inst, err = e.desc.Build(ctx)
	if err != nil {
		return inst, err
	}

	r.mu.Lock()
	e.instance = inst
	e.built = true
	r.mu.Unlock()
	r.logger.Debug("Built "+r.kind, zap.String("name", name))
	return inst, nil
}

type result struct {
	out Output
	err error
}

// invoke runs the provider, converting panics to errors and returning as
// soon as ctx is done even if the provider ignores it.
func (r *Registry[E]) invoke(ctx context.Context, inst E, in Input) (Output, error) {
	done := make(chan result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- result{err: fmt.Errorf("panic: %v", rec)}
			}
		}()
		out, err := inst.Execute(ctx, in)
		done <- result{out: out, err: err}
	}()

	select {
	case res := <-done:
		return res.out, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry[E]) check(contract string, data map[string]any) []string {
	if r.checker == nil || contract == "" {
		return nil
	}
	return r.checker.Check(contract, data)
}
