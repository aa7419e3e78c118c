// Package providers holds the static catalogs of department and tool
// providers assembled at process start.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aristath/stepflow/internal/capability"
	"github.com/aristath/stepflow/internal/reasoning"
	"github.com/aristath/stepflow/internal/schema"
	"github.com/aristath/stepflow/internal/validation"
)

// Validator validates and corrects provider replies.
type Validator interface {
	Validate(ctx context.Context, data map[string]any, contract string) validation.Result
}

// Department is a provider backed by a reasoning client with its own role
// prompt. Replies are decoded as JSON, validated against the output
// contract with correction, and shaped from the raw text when all of that
// fails.
type Department struct {
	name           string
	rolePrompt     string
	outputContract string
	schemaDesc     string // JSON schema of outputContract, empty when unknown
	client         reasoning.Client
	validator      Validator
	logger         *zap.Logger
}

// DepartmentConfig configures NewDepartment.
type DepartmentConfig struct {
	Name           string
	RolePrompt     string
	OutputContract string
	Client         reasoning.Client
	Validator      Validator
	Logger         *zap.Logger
}

// NewDepartment creates a department provider.
func NewDepartment(cfg DepartmentConfig) (*Department, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("department %q has no reasoning client", cfg.Name)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var desc string
	if f, ok := schema.Catalog()[cfg.OutputContract]; ok {
		var err error
		if desc, err = schema.Describe(f); err != nil {
			return nil, fmt.Errorf("describing %s: %w", cfg.OutputContract, err)
		}
	}
	return &Department{
		name:           cfg.Name,
		rolePrompt:     cfg.RolePrompt,
		outputContract: cfg.OutputContract,
		schemaDesc:     desc,
		client:         cfg.Client,
		validator:      cfg.Validator,
		logger:         logger.With(zap.String("department", cfg.Name)),
	}, nil
}

// Execute asks the reasoning client to carry out in and returns a payload
// satisfying the output contract.
func (d *Department) Execute(ctx context.Context, in capability.Input) (capability.Output, error) {
	user, err := d.prompt(in)
	if err != nil {
		return nil, err
	}

	text, err := d.client.Invoke(ctx, d.rolePrompt, user)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty reply from %s", d.client.Model())
	}

	obj, err := validation.DecodeObject(text)
	if err == nil && d.outputContract == "" {
		return obj, nil
	}
	if err == nil && d.validator != nil {
		res := d.validator.Validate(ctx, obj, d.outputContract)
		if res.Valid {
			if res.Corrections != nil {
				d.logger.Info("Reply corrected", zap.String("contract", d.outputContract))
			}
			return res.Data, nil
		}
		d.logger.Warn("Reply failed validation, shaping from text",
			zap.String("contract", d.outputContract), zap.Strings("errors", res.Errors))
	} else if err != nil {
		d.logger.Warn("Reply is not JSON, shaping from text", zap.Error(err))
	}

	return Shape(d.outputContract, text, in), nil
}

func (d *Department) prompt(in capability.Input) (string, error) {
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding input: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Input:\n%s\n", data)

	if d.schemaDesc != "" {
		fmt.Fprintf(&b, "\nRespond with a single JSON object matching this schema:\n%s\n", d.schemaDesc)
	} else {
		b.WriteString("\nRespond with a single JSON object.\n")
	}
	return b.String(), nil
}
