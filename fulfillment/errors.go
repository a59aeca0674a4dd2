package fulfillment

import (
	"errors"
	"fmt"

	"github.com/cosmoos/cosmo_backend/models"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidDeliveryLink is the only answer a rider link lookup gives on
	// a miss, whatever the reason.
	ErrInvalidDeliveryLink = errors.New("invalid or expired link")
)

// TransitionError rejects an action the order's current state does not allow.
type TransitionError struct {
	Action string
	Stage  models.FulfillmentStage
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s order in stage %s: %s", e.Action, e.Stage, e.Reason)
}

// InputError is a malformed request to an otherwise allowed action.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string { return e.Field + " " + e.Reason }

func reject(action string, stage models.FulfillmentStage, reason string) error {
	return &TransitionError{Action: action, Stage: stage, Reason: reason}
}
