// Package power validates and issues power actions against the orchestrator,
// optimistically transitioning local state once a command is acknowledged.
package power

import (
	"context"
	"errors"
	"fmt"

	"gamedash/internal/models"
	"gamedash/internal/orchestrator"
	"gamedash/internal/registry"
)

// Action is a user-issued power command.
type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
	ActionKill    Action = "kill"
)

// ErrUnknownAction is returned for an action outside the defined set.
var ErrUnknownAction = errors.New("unknown power action")

// ErrInvalidTransition is returned when an action is not valid for the
// server's current state. These guards only avoid redundant orchestrator
// calls; the orchestrator stays authoritative and a later reconciliation pass
// corrects any state the guard could not anticipate.
var ErrInvalidTransition = errors.New("power action not valid for current state")

// ParseAction validates a user-supplied action string.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionStart, ActionStop, ActionRestart, ActionKill:
		return Action(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// PowerSender is the orchestrator call the controller depends on.
type PowerSender interface {
	SendPower(ctx context.Context, credential, externalID, signal string) error
}

var _ PowerSender = (*orchestrator.Client)(nil)

// Controller applies power actions to registered servers.
type Controller struct {
	client PowerSender
	reg    registry.Registry
}

// NewController builds a controller over the given client and registry.
func NewController(client PowerSender, reg registry.Registry) *Controller {
	return &Controller{client: client, reg: reg}
}

// Apply validates the action against the record's current state, sends it to
// the orchestrator, and on acknowledgement transitions the local state
// optimistically. If the orchestrator call fails, local state is untouched
// and the error passes through unchanged.
func (c *Controller) Apply(ctx context.Context, internalID int64, credential string, action Action) (*models.ServerRecord, error) {
	rec, err := c.reg.ByInternalID(internalID)
	if err != nil {
		return nil, err
	}

	if err := validate(rec.PowerState, action); err != nil {
		return nil, err
	}

	if err := c.client.SendPower(ctx, credential, rec.ExternalID, string(action)); err != nil {
		return nil, err
	}

	return c.reg.SetPowerState(rec.ID, optimisticState(action))
}

// validate enforces the client-side transition guards.
func validate(state models.PowerState, action Action) error {
	if state == models.StateRemoved {
		return fmt.Errorf("%w: server is removed", ErrInvalidTransition)
	}
	switch action {
	case ActionStart:
		if state == models.StateRunning {
			return fmt.Errorf("%w: server is already running", ErrInvalidTransition)
		}
	case ActionStop, ActionRestart, ActionKill:
		if state != models.StateRunning {
			return fmt.Errorf("%w: server is not running", ErrInvalidTransition)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return nil
}

// optimisticState is the state applied immediately after the orchestrator
// accepts the command, before the action actually completes.
func optimisticState(action Action) models.PowerState {
	switch action {
	case ActionStart:
		return models.StateStarting
	case ActionRestart:
		return models.StateRestarting
	default: // stop and kill both drive toward stopping
		return models.StateStopping
	}
}
