// Package validation checks payloads against named contracts and, when
// allowed, asks a reasoning client to repair payloads that fail.
package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/aristath/stepflow/internal/reasoning"
	"github.com/aristath/stepflow/internal/schema"
)

// DefaultMaxCorrectionAttempts bounds repair passes per Validate call.
const DefaultMaxCorrectionAttempts = 2

// Result is the outcome of Validate.
type Result struct {
	Valid       bool           `json:"valid"`
	Data        map[string]any `json:"data,omitempty"`
	Errors      []string       `json:"errors,omitempty"`
	Corrections map[string]any `json:"corrections,omitempty"`
	Contract    string         `json:"schema_name"`
}

// ValidationError is returned by ValidateOrRaise.
type ValidationError struct {
	Contract string
	Errors   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Contract, strings.Join(e.Errors, "; "))
}

// validatable is implemented by contracts with checks beyond struct tags.
type validatable interface {
	Validate() error
}

// Engine validates payloads against a set of contracts. It holds only
// configuration and is safe for concurrent use.
type Engine struct {
	contracts   map[string]schema.Factory
	validate    *validator.Validate
	client      reasoning.Client
	maxAttempts int
	corrections bool
	logger      *zap.Logger

	descriptions sync.Map // contract name -> JSON schema text
}

// Option configures an Engine.
type Option func(*Engine)

// WithCorrectionClient sets the reasoning client used for repairs.
func WithCorrectionClient(c reasoning.Client) Option {
	return func(e *Engine) { e.client = c }
}

// WithMaxCorrectionAttempts overrides the repair budget. Negative values are ignored.
func WithMaxCorrectionAttempts(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxAttempts = n
		}
	}
}

// WithCorrections enables or disables repairs.
func WithCorrections(enabled bool) Option {
	return func(e *Engine) { e.corrections = enabled }
}

// WithContract adds or replaces a contract.
func WithContract(name string, f schema.Factory) Option {
	return func(e *Engine) { e.contracts[name] = f }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine over the built-in contract catalog.
func New(opts ...Option) *Engine {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	e := &Engine{
		contracts:   schema.Catalog(),
		validate:    v,
		maxAttempts: DefaultMaxCorrectionAttempts,
		corrections: true,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Has reports whether contract is known.
func (e *Engine) Has(contract string) bool {
	_, ok := e.contracts[contract]
	return ok
}

// Check validates data against contract without attempting repairs and
// returns the violations. An unknown contract is itself a violation.
func (e *Engine) Check(contract string, data map[string]any) []string {
	f, ok := e.contracts[contract]
	if !ok {
		return []string{fmt.Sprintf("contract %q not found", contract)}
	}
	if data == nil {
		return []string{"payload is empty"}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return []string{fmt.Sprintf("payload is not serializable: %v", err)}
	}
	v := f()
	if err := json.Unmarshal(raw, v); err != nil {
		return []string{decodeMessage(err)}
	}

	if err := e.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return msgs
		}
		return []string{err.Error()}
	}

	if vv, ok := v.(validatable); ok {
		if err := vv.Validate(); err != nil {
			return strings.Split(err.Error(), "\n")
		}
	}
	return nil
}

// Validate checks data against contract. On failure, and when corrections
// are enabled with a client attached, it runs up to the configured number of
// repair passes. It never returns an error; every failure is reported in
// Result.Errors.
func (e *Engine) Validate(ctx context.Context, data map[string]any, contract string) Result {
	errs := e.Check(contract, data)
	if len(errs) == 0 {
		return Result{Valid: true, Data: data, Contract: contract}
	}

	invalid := Result{Valid: false, Errors: errs, Contract: contract}
	if !e.Has(contract) || !e.corrections || e.client == nil || e.maxAttempts == 0 {
		return invalid
	}

	description, err := e.describe(contract)
	if err != nil {
		invalid.Errors = append(invalid.Errors, "Correction error: "+err.Error())
		return invalid
	}

	current, currentErrs := data, errs
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		log := e.logger.With(zap.String("contract", contract), zap.Int("attempt", attempt))

		prompt, err := correctionPrompt(current, currentErrs, description)
		if err != nil {
			invalid.Errors = append(invalid.Errors, "Correction error: "+err.Error())
			return invalid
		}
		text, err := e.client.Invoke(ctx, correctionSystem, prompt)
		if err != nil {
			log.Error("Correction call failed", zap.Error(err))
			invalid.Errors = append(invalid.Errors, "Correction error: "+err.Error())
			return invalid
		}

		corrected, err := DecodeObject(text)
		if err != nil {
			log.Warn("Correction response was not JSON", zap.Error(err))
			invalid.Errors = append(invalid.Errors, "Correction failed: "+err.Error())
			return invalid
		}

		if remaining := e.Check(contract, corrected); len(remaining) > 0 {
			log.Warn("Corrected payload still invalid", zap.Strings("errors", remaining))
			current, currentErrs = corrected, remaining
			continue
		}

		log.Info("Payload corrected")
		return Result{Valid: true, Data: corrected, Corrections: corrected, Contract: contract}
	}

	invalid.Errors = append(invalid.Errors, fmt.Sprintf("Correction failed after %d attempts: %s",
		e.maxAttempts, strings.Join(currentErrs, "; ")))
	return invalid
}

// ValidateOrRaise is Validate for callers that need fail-fast semantics.
func (e *Engine) ValidateOrRaise(ctx context.Context, data map[string]any, contract string) (map[string]any, error) {
	res := e.Validate(ctx, data, contract)
	if !res.Valid {
		return nil, &ValidationError{Contract: contract, Errors: res.Errors}
	}
	return res.Data, nil
}

// ValidateValue converts a typed value to a payload and validates it.
func (e *Engine) ValidateValue(ctx context.Context, v any, contract string) Result {
	data, err := ToPayload(v)
	if err != nil {
		return Result{Valid: false, Errors: []string{err.Error()}, Contract: contract}
	}
	return e.Validate(ctx, data, contract)
}

// ToPayload converts a struct into its JSON object form.
func ToPayload(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("payload is not an object: %w", err)
	}
	return out, nil
}

// describe returns the cached JSON Schema text of contract.
func (e *Engine) describe(contract string) (string, error) {
	if d, ok := e.descriptions.Load(contract); ok {
		return d.(string), nil
	}
	d, err := schema.Describe(e.contracts[contract])
	if err != nil {
		return "", err
	}
	e.descriptions.Store(contract, d)
	return d, nil
}

func decodeMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "payload"
		}
		return fmt.Sprintf("%s: expected %s, got %s", field, typeErr.Type, typeErr.Value)
	}
	return err.Error()
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch fe.Tag() {
	case "required", "required_without", "required_if":
		return field + ": is required"
	case "oneof":
		return fmt.Sprintf("%s: must be one of [%s]", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s: must be >= %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s: must be <= %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s: must have at least %s entries", field, fe.Param())
	case "url":
		return field + ": must be a valid URL"
	case "excluded_unless":
		return fmt.Sprintf("%s: must be empty unless %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s: failed %s validation", field, fe.Tag())
	}
}
