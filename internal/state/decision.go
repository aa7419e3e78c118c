package state

import (
	"errors"
	"fmt"
)

// Action is the kind of next step chosen by the decision engine.
type Action string

const (
	ActionDelegate Action = "delegate"
	ActionAskHuman Action = "ask_human"
	ActionComplete Action = "complete"
	ActionError    Action = "error"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionDelegate, ActionAskHuman, ActionComplete, ActionError:
		return true
	}
	return false
}

// Decision is the next-action choice produced once per round.
type Decision struct {
	Action         Action  `json:"action" validate:"required,oneof=delegate ask_human complete error"`
	TargetProvider string  `json:"target_provider,omitempty" validate:"required_if=Action delegate,excluded_unless=Action delegate"`
	ProviderInput  Payload `json:"provider_input,omitempty"`
	Reasoning      string  `json:"reasoning"`
	Confidence     float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// Validate checks the decision contract: a known action, a target provider
// if and only if the action is delegate, and a confidence within [0,1].
func (d Decision) Validate() error {
	var errs []error
	if !d.Action.Valid() {
		errs = append(errs, fmt.Errorf("action %q is not one of delegate, ask_human, complete, error", d.Action))
	}
	if d.Action == ActionDelegate && d.TargetProvider == "" {
		errs = append(errs, errors.New("target_provider is required when action is delegate"))
	}
	if d.Action != ActionDelegate && d.TargetProvider != "" {
		errs = append(errs, fmt.Errorf("target_provider must be empty when action is %s", d.Action))
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		errs = append(errs, fmt.Errorf("confidence %v is outside [0,1]", d.Confidence))
	}
	return errors.Join(errs...)
}
