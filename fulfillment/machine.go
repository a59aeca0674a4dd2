// Package fulfillment moves orders through the pick, pack and ship
// lifecycle and handles rider delivery confirmation.
package fulfillment

import (
	"fmt"

	"github.com/cosmoos/cosmo_backend/models"
)

const (
	ActionSampleFreeIssue  = "sample_free_issue"
	ActionPrint            = "print"
	ActionReadyToDispatch  = "ready_to_dispatch"
	ActionHold             = "hold"
	ActionRevertHold       = "revert_hold"
	ActionDispatch         = "dispatch"
	ActionDeliveryComplete = "delivery_complete"
	ActionInvoiceComplete  = "invoice_complete"
	ActionResendRiderSms   = "resend_rider_sms"
)

// NextStage returns the stage after s. ok is false at the end.
func NextStage(s models.FulfillmentStage) (next models.FulfillmentStage, ok bool) {
	r := s.Rank()
	if r < 0 || r+1 >= len(models.FulfillmentStages) {
		return "", false
	}
	return models.FulfillmentStages[r+1], true
}

// checkAdvance allows moving to target only from the stage right before it.
// A held order cannot leave ready_to_dispatch.
func checkAdvance(action string, order *models.Order, target models.FulfillmentStage) error {
	next, ok := NextStage(order.FulfillmentStage)
	if !ok {
		return reject(action, order.FulfillmentStage, "order is already at the final stage")
	}
	if next != target {
		if order.FulfillmentStage.Rank() >= target.Rank() {
			return reject(action, order.FulfillmentStage, fmt.Sprintf("order is already past %s", target))
		}
		return reject(action, order.FulfillmentStage, fmt.Sprintf("order must be %s first", prevStage(target)))
	}
	if order.IsOnHold() {
		return reject(action, order.FulfillmentStage, "order is on hold")
	}
	return nil
}

func prevStage(s models.FulfillmentStage) models.FulfillmentStage {
	r := s.Rank()
	if r <= 0 {
		return s
	}
	return models.FulfillmentStages[r-1]
}

func checkHold(order *models.Order) error {
	if order.FulfillmentStage != models.StageReadyToDispatch {
		return reject(ActionHold, order.FulfillmentStage, "only orders ready to dispatch can be held")
	}
	if order.IsOnHold() {
		return reject(ActionHold, order.FulfillmentStage, "order is already on hold")
	}
	return nil
}

func checkRevertHold(order *models.Order) error {
	if !order.IsOnHold() {
		return reject(ActionRevertHold, order.FulfillmentStage, "order is not on hold")
	}
	return nil
}

func checkInvoiceComplete(order *models.Order) error {
	if order.FulfillmentStage != models.StageDeliveryComplete {
		return reject(ActionInvoiceComplete, order.FulfillmentStage, "delivery must be confirmed first")
	}
	if order.InvoiceCompleteAt != nil {
		return reject(ActionInvoiceComplete, order.FulfillmentStage, "invoice is already complete")
	}
	return nil
}

func checkResendRiderSms(order *models.Order) error {
	if order.FulfillmentStage != models.StageDispatched {
		return reject(ActionResendRiderSms, order.FulfillmentStage, "order is not out for delivery")
	}
	if order.DispatchMethod == nil || *order.DispatchMethod != models.DispatchMethodRider || order.RiderId == nil {
		return reject(ActionResendRiderSms, order.FulfillmentStage, "order has no assigned rider")
	}
	return nil
}
