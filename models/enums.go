package models

import (
	"encoding/json"
	"errors"
)

type FulfillmentStage string

const (
	StageOrderReceived    FulfillmentStage = "order_received"
	StageSampleFreeIssue  FulfillmentStage = "sample_free_issue"
	StagePrint            FulfillmentStage = "print"
	StageReadyToDispatch  FulfillmentStage = "ready_to_dispatch"
	StageDispatched       FulfillmentStage = "dispatched"
	StageDeliveryComplete FulfillmentStage = "delivery_complete"
)

// FulfillmentStages lists every stage in progression order.
var FulfillmentStages = []FulfillmentStage{
	StageOrderReceived,
	StageSampleFreeIssue,
	StagePrint,
	StageReadyToDispatch,
	StageDispatched,
	StageDeliveryComplete,
}

// Rank is the stage's position in the progression, or -1 if unknown.
func (s FulfillmentStage) Rank() int {
	for i, v := range FulfillmentStages {
		if v == s {
			return i
		}
	}
	return -1
}

func (s FulfillmentStage) IsValid() bool { return s.Rank() >= 0 }

func (s *FulfillmentStage) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("fulfillment stage must be string")
	}
	if !FulfillmentStage(str).IsValid() {
		return errors.New("invalid fulfillment stage")
	}
	*s = FulfillmentStage(str)
	return nil
}

type DispatchMethod string

const (
	DispatchMethodRider   DispatchMethod = "rider"
	DispatchMethodCourier DispatchMethod = "courier"
)

func (t *DispatchMethod) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("dispatch method must be string")
	}
	switch str {
	case "rider":
		*t = DispatchMethodRider
	case "courier":
		*t = DispatchMethodCourier
	default:
		return errors.New("invalid dispatch method")
	}
	return nil
}

type RemarkVisibility string

const (
	RemarkVisibilityInternal RemarkVisibility = "internal"
	RemarkVisibilityExternal RemarkVisibility = "external"
)

func (t *RemarkVisibility) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("remark visibility must be string")
	}
	switch str {
	case "", "internal":
		*t = RemarkVisibilityInternal
	case "external":
		*t = RemarkVisibilityExternal
	default:
		return errors.New("invalid remark visibility")
	}
	return nil
}

type NotificationTrigger string

const (
	TriggerOrderReceived    NotificationTrigger = "order_received"
	TriggerPackageReady     NotificationTrigger = "package_ready"
	TriggerDispatched       NotificationTrigger = "dispatched"
	TriggerRiderDispatched  NotificationTrigger = "rider_dispatched"
	TriggerDeliveryComplete NotificationTrigger = "delivery_complete"
)

func (t NotificationTrigger) IsValid() bool {
	switch t {
	case TriggerOrderReceived, TriggerPackageReady, TriggerDispatched, TriggerRiderDispatched, TriggerDeliveryComplete:
		return true
	}
	return false
}
