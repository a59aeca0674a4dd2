package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/cosmoos/cosmo_backend/analytics"
	"github.com/cosmoos/cosmo_backend/config"
	"github.com/cosmoos/cosmo_backend/models"
	"github.com/cosmoos/cosmo_backend/notification"
	"github.com/cosmoos/cosmo_backend/utils"
	"github.com/cosmoos/cosmo_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db        *gorm.DB
	publisher notification.Publisher
	sink      analytics.Sink
	logger    *logrus.Logger

	// PublicBaseURL prefixes rider confirmation links.
	PublicBaseURL string
	now           func() time.Time
}

func NewService(db *gorm.DB, publisher notification.Publisher, sink analytics.Sink) *Service {
	if sink == nil {
		sink = analytics.NopSink{}
	}
	return &Service{
		db:            db,
		publisher:     publisher,
		sink:          sink,
		logger:        config.GetLogger(),
		PublicBaseURL: strings.TrimRight(config.StringFromEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

type RemarkInput struct {
	Body           string                  `json:"body"`
	Visibility     models.RemarkVisibility `json:"visibility"`
	PrintOnInvoice bool                    `json:"print_on_invoice"`
}

func (r *RemarkInput) empty() bool { return r == nil || strings.TrimSpace(r.Body) == "" }

type DispatchInput struct {
	Method         models.DispatchMethod `json:"method"`
	RiderID        *int                  `json:"rider_id"`
	CourierName    string                `json:"courier_name"`
	TrackingNumber string                `json:"tracking_number"`
	Remark         *RemarkInput          `json:"remark"`
}

// change is what an action decided to write, plus what to announce once
// the write has committed.
type change struct {
	updates map[string]interface{}
	events  []notification.Event
}

func (s *Service) stamp(stage models.FulfillmentStage, actorID int) map[string]interface{} {
	updates := map[string]interface{}{"fulfillment_stage": stage}
	updates[string(stage)+"_at"] = s.now()
	updates[string(stage)+"_by_id"] = actorID
	return updates
}

// mutate locks the order, lets decide validate and describe the change,
// writes it with the optional remark, and after commit publishes the
// notifications and the analytics row.
func (s *Service) mutate(ctx context.Context, companyID string, orderID int, action string, actorID *int, remark *RemarkInput, decide func(tx *gorm.DB, order *models.Order) (*change, error)) (*models.Order, error) {
	var (
		order models.Order
		from  models.FulfillmentStage
		ch    *change
	)
	err := workflow.RunInTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if err := lockOrder(tx, companyID, orderID, &order); err != nil {
			return err
		}
		from = order.FulfillmentStage

		var err error
		if ch, err = decide(tx, &order); err != nil {
			return err
		}
		if len(ch.updates) > 0 {
			if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(ch.updates).Error; err != nil {
				return err
			}
		}
		id := order.ID
		// Reload into a cleared struct, or columns nulled by the update keep
		// their old values.
		order = models.Order{}
		if err := tx.Where("id = ?", id).Take(&order).Error; err != nil {
			return err
		}
		if !remark.empty() {
			if _, err := createRemark(tx, &order, actorID, *remark); err != nil {
				return err
			}
		}
		order = models.Order{}
		return tx.Preload("Remarks", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
			Where("id = ?", id).Take(&order).Error
	})
	if err != nil {
		return nil, err
	}

	for _, ev := range ch.events {
		notification.PublishAfterCommit(ctx, s.publisher, ev)
	}
	s.sink.Record(ctx, analytics.Transition{
		CompanyID: companyID,
		OrderID:   order.ID,
		Action:    action,
		FromStage: string(from),
		ToStage:   string(order.FulfillmentStage),
		ActorID:   actorID,
		ByRider:   actorID == nil,
		At:        s.now(),
	})
	return &order, nil
}

func lockOrder(tx *gorm.DB, companyID string, orderID int, dest *models.Order) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("company_id = ? AND id = ?", companyID, orderID).
		Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrOrderNotFound
	}
	return err
}

func createRemark(tx *gorm.DB, order *models.Order, actorID *int, in RemarkInput) (*models.OrderRemark, error) {
	visibility := in.Visibility
	if visibility == "" {
		visibility = models.RemarkVisibilityInternal
	}
	if visibility != models.RemarkVisibilityInternal && visibility != models.RemarkVisibilityExternal {
		return nil, &InputError{Field: "visibility", Reason: "must be internal or external"}
	}
	remark := models.OrderRemark{
		CompanyId:      order.CompanyId,
		OrderId:        order.ID,
		Stage:          order.FulfillmentStage,
		Body:           strings.TrimSpace(in.Body),
		Visibility:     visibility,
		PrintOnInvoice: in.PrintOnInvoice,
		CreatedById:    utils.DereferencePtr(actorID),
	}
	if err := tx.Create(&remark).Error; err != nil {
		return nil, err
	}
	return &remark, nil
}

func (s *Service) advance(ctx context.Context, companyID string, orderID, actorID int, action string, target models.FulfillmentStage, remark *RemarkInput, trigger models.NotificationTrigger) (*models.Order, error) {
	return s.mutate(ctx, companyID, orderID, action, &actorID, remark, func(tx *gorm.DB, order *models.Order) (*change, error) {
		if err := checkAdvance(action, order, target); err != nil {
			return nil, err
		}
		ch := &change{updates: s.stamp(target, actorID)}
		if trigger != "" {
			ch.events = append(ch.events, notification.NewEvent(companyID, order.ID, trigger, nil, &actorID))
		}
		return ch, nil
	})
}

func (s *Service) SampleFreeIssue(ctx context.Context, companyID string, orderID, actorID int, remark *RemarkInput) (*models.Order, error) {
	return s.advance(ctx, companyID, orderID, actorID, ActionSampleFreeIssue, models.StageSampleFreeIssue, remark, "")
}

func (s *Service) Print(ctx context.Context, companyID string, orderID, actorID int, remark *RemarkInput) (*models.Order, error) {
	return s.advance(ctx, companyID, orderID, actorID, ActionPrint, models.StagePrint, remark, "")
}

func (s *Service) ReadyToDispatch(ctx context.Context, companyID string, orderID, actorID int, remark *RemarkInput) (*models.Order, error) {
	return s.advance(ctx, companyID, orderID, actorID, ActionReadyToDispatch, models.StageReadyToDispatch, remark, models.TriggerPackageReady)
}

// Hold parks an order that is ready to dispatch. The stage does not change.
func (s *Service) Hold(ctx context.Context, companyID string, orderID, actorID int, reason string, remark *RemarkInput) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &InputError{Field: "reason", Reason: "is required"}
	}
	return s.mutate(ctx, companyID, orderID, ActionHold, &actorID, remark, func(tx *gorm.DB, order *models.Order) (*change, error) {
		if err := checkHold(order); err != nil {
			return nil, err
		}
		return &change{updates: map[string]interface{}{
			"hold_reason": reason,
			"hold_at":     s.now(),
			"hold_by_id":  actorID,
		}}, nil
	})
}

func (s *Service) RevertHold(ctx context.Context, companyID string, orderID, actorID int, remark *RemarkInput) (*models.Order, error) {
	return s.mutate(ctx, companyID, orderID, ActionRevertHold, &actorID, remark, func(tx *gorm.DB, order *models.Order) (*change, error) {
		if err := checkRevertHold(order); err != nil {
			return nil, err
		}
		return &change{updates: map[string]interface{}{
			"hold_reason": nil,
			"hold_at":     nil,
			"hold_by_id":  nil,
		}}, nil
	})
}

// Dispatch hands the order to a rider or a courier. A rider gets a
// single-use confirmation link by SMS; only the link token's hash is kept.
func (s *Service) Dispatch(ctx context.Context, companyID string, orderID, actorID int, in DispatchInput) (*models.Order, error) {
	switch in.Method {
	case models.DispatchMethodRider:
		if in.RiderID == nil || *in.RiderID <= 0 {
			return nil, &InputError{Field: "rider_id", Reason: "is required for rider dispatch"}
		}
	case models.DispatchMethodCourier:
		if strings.TrimSpace(in.CourierName) == "" {
			return nil, &InputError{Field: "courier_name", Reason: "is required for courier dispatch"}
		}
	default:
		return nil, &InputError{Field: "method", Reason: "must be rider or courier"}
	}

	return s.mutate(ctx, companyID, orderID, ActionDispatch, &actorID, in.Remark, func(tx *gorm.DB, order *models.Order) (*change, error) {
		if err := checkAdvance(ActionDispatch, order, models.StageDispatched); err != nil {
			return nil, err
		}
		method := in.Method
		ch := &change{updates: s.stamp(models.StageDispatched, actorID)}
		ch.updates["dispatch_method"] = method

		if method == models.DispatchMethodRider {
			rider, err := models.GetCompanyUser(tx.Statement.Context, tx, companyID, *in.RiderID)
			if err != nil {
				if utils.IsNotFound(err) {
					return nil, &InputError{Field: "rider_id", Reason: "does not match a company user"}
				}
				return nil, err
			}
			if !rider.IsActive || !rider.IsRider {
				return nil, &InputError{Field: "rider_id", Reason: "is not an active rider"}
			}
			token, hash, err := newDeliveryToken()
			if err != nil {
				return nil, err
			}
			ch.updates["rider_id"] = rider.ID
			ch.updates["courier_name"] = nil
			ch.updates["tracking_number"] = nil
			ch.updates["delivery_token_hash"] = hash
			ch.events = append(ch.events, notification.NewEvent(companyID, order.ID, models.TriggerRiderDispatched,
				map[string]string{"deliveryLink": s.deliveryLink(token)}, &actorID))
		} else {
			ch.updates["rider_id"] = nil
			ch.updates["courier_name"] = strings.TrimSpace(in.CourierName)
			ch.updates["tracking_number"] = utils.NilIfEmpty(strings.TrimSpace(in.TrackingNumber))
			ch.updates["delivery_token_hash"] = nil
		}
		ch.events = append(ch.events, notification.NewEvent(companyID, order.ID, models.TriggerDispatched, nil, &actorID))
		return ch, nil
	})
}

// ResendRiderSms issues a fresh confirmation link to the assigned rider.
// The previous link stops working.
func (s *Service) ResendRiderSms(ctx context.Context, companyID string, orderID, actorID int) (*models.Order, error) {
	return s.mutate(ctx, companyID, orderID, ActionResendRiderSms, &actorID, nil, func(tx *gorm.DB, order *models.Order) (*change, error) {
		if err := checkResendRiderSms(order); err != nil {
			return nil, err
		}
		token, hash, err := newDeliveryToken()
		if err != nil {
			return nil, err
		}
		return &change{
			updates: map[string]interface{}{"delivery_token_hash": hash},
			events: []notification.Event{notification.NewEvent(companyID, order.ID, models.TriggerRiderDispatched,
				map[string]string{"deliveryLink": s.deliveryLink(token)}, &actorID)},
		}, nil
	})
}

// CompleteDelivery is the staff-side confirmation. Any outstanding rider
// link is consumed with it.
func (s *Service) CompleteDelivery(ctx context.Context, companyID string, orderID, actorID int, remark *RemarkInput) (*models.Order, error) {
	return s.mutate(ctx, companyID, orderID, ActionDeliveryComplete, &actorID, remark, func(tx *gorm.DB, order *models.Order) (*change, error) {
		if err := checkAdvance(ActionDeliveryComplete, order, models.StageDeliveryComplete); err != nil {
			return nil, err
		}
		ch := &change{updates: s.stamp(models.StageDeliveryComplete, actorID)}
		if order.DeliveryTokenHash != nil {
			ch.updates["consumed_delivery_token_hash"] = *order.DeliveryTokenHash
			ch.updates["delivery_token_hash"] = nil
		}
		ch.events = append(ch.events, notification.NewEvent(companyID, order.ID, models.TriggerDeliveryComplete, nil, &actorID))
		return ch, nil
	})
}

func (s *Service) CompleteInvoice(ctx context.Context, companyID string, orderID, actorID int, remark *RemarkInput) (*models.Order, error) {
	return s.mutate(ctx, companyID, orderID, ActionInvoiceComplete, &actorID, remark, func(tx *gorm.DB, order *models.Order) (*change, error) {
		if err := checkInvoiceComplete(order); err != nil {
			return nil, err
		}
		return &change{updates: map[string]interface{}{
			"invoice_complete_at":    s.now(),
			"invoice_complete_by_id": actorID,
		}}, nil
	})
}

// AddRemark attaches a remark to the order's current stage.
func (s *Service) AddRemark(ctx context.Context, companyID string, orderID, actorID int, in RemarkInput) (*models.OrderRemark, error) {
	if in.empty() {
		return nil, &InputError{Field: "body", Reason: "is required"}
	}
	var remark *models.OrderRemark
	err := workflow.RunInTransaction(ctx, s.db, func(tx *gorm.DB) error {
		var order models.Order
		if err := lockOrder(tx, companyID, orderID, &order); err != nil {
			return err
		}
		var err error
		remark, err = createRemark(tx, &order, &actorID, in)
		return err
	})
	return remark, err
}

func (s *Service) GetOrder(ctx context.Context, companyID string, orderID int) (*models.Order, error) {
	order, err := models.GetOrder(ctx, s.db, companyID, orderID, "LineItems", "Remarks")
	if utils.IsNotFound(err) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

func (s *Service) deliveryLink(token string) string {
	return s.PublicBaseURL + "/public/delivery/" + token
}

const (
	DeliveryPending          = "pending"
	DeliveryConfirmed        = "confirmed"
	DeliveryAlreadyConfirmed = "already_confirmed"
)

// DeliveryStatus is what a rider link reveals about its order.
type DeliveryStatus struct {
	Status          string          `json:"status"`
	OrderNumber     string          `json:"order_number"`
	CustomerName    string          `json:"customer_name"`
	ShippingAddress json.RawMessage `json:"shipping_address,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
}

func statusOf(order *models.Order, status string) *DeliveryStatus {
	return &DeliveryStatus{
		Status:          status,
		OrderNumber:     order.OrderNumber,
		CustomerName:    order.CustomerName,
		ShippingAddress: json.RawMessage(order.ShippingAddress),
		DeliveredAt:     order.DeliveryCompleteAt,
	}
}

// DeliveryStatus looks a rider link up without changing anything.
func (s *Service) DeliveryStatus(ctx context.Context, token string) (*DeliveryStatus, error) {
	if len(token) < MinTokenLength {
		return nil, ErrInvalidDeliveryLink
	}
	hash := hashToken(token)
	db := s.db.WithContext(utils.SetSkipTenantScopeInContext(ctx, true))

	var order models.Order
	err := db.Where("delivery_token_hash = ?", hash).Take(&order).Error
	if err == nil {
		return statusOf(&order, DeliveryPending), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	err = db.Where("consumed_delivery_token_hash = ?", hash).Take(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidDeliveryLink
	}
	if err != nil {
		return nil, err
	}
	return statusOf(&order, DeliveryAlreadyConfirmed), nil
}

// ConfirmDelivery completes delivery on behalf of the rider holding token.
// The token works once; replaying it reports already_confirmed and changes
// nothing.
func (s *Service) ConfirmDelivery(ctx context.Context, token string) (*DeliveryStatus, error) {
	if len(token) < MinTokenLength {
		return nil, ErrInvalidDeliveryLink
	}
	hash := hashToken(token)
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	var (
		status *DeliveryStatus
		order  models.Order
		fired  bool
	)
	err := workflow.RunInTransaction(ctx, s.db, func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("delivery_token_hash = ?", hash).
			Take(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = tx.Where("consumed_delivery_token_hash = ?", hash).Take(&order).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidDeliveryLink
			}
			if err != nil {
				return err
			}
			status = statusOf(&order, DeliveryAlreadyConfirmed)
			return nil
		}
		if err != nil {
			return err
		}
		if order.FulfillmentStage != models.StageDispatched {
			return ErrInvalidDeliveryLink
		}

		now := s.now()
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
			"fulfillment_stage":            models.StageDeliveryComplete,
			"delivery_complete_at":         now,
			"delivery_confirmed_by_rider":  true,
			"consumed_delivery_token_hash": hash,
			"delivery_token_hash":          nil,
		}).Error; err != nil {
			return err
		}
		id := order.ID
		order = models.Order{}
		if err := tx.Where("id = ?", id).Take(&order).Error; err != nil {
			return err
		}
		status = statusOf(&order, DeliveryConfirmed)
		fired = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if fired {
		notification.PublishAfterCommit(ctx, s.publisher, notification.NewEvent(order.CompanyId, order.ID, models.TriggerDeliveryComplete, nil, nil))
		s.sink.Record(ctx, analytics.Transition{
			CompanyID: order.CompanyId,
			OrderID:   order.ID,
			Action:    ActionDeliveryComplete,
			FromStage: string(models.StageDispatched),
			ToStage:   string(models.StageDeliveryComplete),
			ByRider:   true,
			At:        s.now(),
		})
	}
	return status, nil
}
