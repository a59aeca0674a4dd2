package notification

import (
	"context"
	"errors"
	"strconv"

	"github.com/cosmoos/cosmo_backend/config"
	"github.com/cosmoos/cosmo_backend/models"
	"github.com/cosmoos/cosmo_backend/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Event asks for the SMS configured for Trigger to go out for one order.
// Vars override the values derived from the order.
type Event struct {
	EventID   string                     `json:"event_id"`
	CompanyID string                     `json:"company_id"`
	OrderID   int                        `json:"order_id"`
	Trigger   models.NotificationTrigger `json:"trigger"`
	Vars      map[string]string          `json:"vars,omitempty"`
	SentByID  *int                       `json:"sent_by_id,omitempty"`
}

func NewEvent(companyID string, orderID int, trigger models.NotificationTrigger, vars map[string]string, sentByID *int) Event {
	return Event{
		EventID:   uuid.NewString(),
		CompanyID: companyID,
		OrderID:   orderID,
		Trigger:   trigger,
		Vars:      vars,
		SentByID:  sentByID,
	}
}

// Report summarizes one dispatch. Skipped names why nothing was attempted.
type Report struct {
	Attempted int
	Sent      int
	Failed    int
	Skipped   string
}

const (
	SkipNoConfig      = "no_config"
	SkipDisabled      = "disabled"
	SkipNoRecipients  = "no_recipients"
	SkipOrderNotFound = "order_not_found"
)

type Dispatcher struct {
	db     *gorm.DB
	sms    *Service
	logger *logrus.Logger
}

func NewDispatcher(db *gorm.DB, sms *Service) *Dispatcher {
	return &Dispatcher{db: db, sms: sms, logger: config.GetLogger()}
}

// Dispatch renders and sends the configured message to every recipient.
// Missing or disabled configuration is a logged no-op. Recipients are sent
// to independently and failures are only logged.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) Report {
	fields := logrus.Fields{"company_id": ev.CompanyID, "order_id": ev.OrderID, "trigger": ev.Trigger, "event_id": ev.EventID}
	db := d.db.WithContext(ctx)

	var cfg models.SmsNotificationConfig
	err := db.Where("company_id = ? AND trigger_name = ?", ev.CompanyID, ev.Trigger).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		config.LogWarn(d.logger, "notification", "Dispatch", "no sms config for trigger", fields)
		return Report{Skipped: SkipNoConfig}
	}
	if err != nil {
		config.LogError(d.logger, "notification", "Dispatch", "load sms config", fields, err)
		return Report{Skipped: SkipNoConfig}
	}
	if !cfg.IsEnabled {
		config.LogWarn(d.logger, "notification", "Dispatch", "sms config disabled", fields)
		return Report{Skipped: SkipDisabled}
	}

	var order models.Order
	if err := db.Where("company_id = ? AND id = ?", ev.CompanyID, ev.OrderID).First(&order).Error; err != nil {
		config.LogError(d.logger, "notification", "Dispatch", "load order", fields, err)
		return Report{Skipped: SkipOrderNotFound}
	}
	var rider *models.CompanyUser
	if order.RiderId != nil {
		var u models.CompanyUser
		if err := db.Where("company_id = ? AND id = ?", ev.CompanyID, *order.RiderId).First(&u).Error; err == nil {
			rider = &u
		} else {
			config.LogError(d.logger, "notification", "Dispatch", "load rider", fields, err)
		}
	}

	vars := orderVars(&order, rider)
	for k, v := range ev.Vars {
		vars[k] = v
	}
	message := Render(cfg.Template, vars)

	recipients := d.recipients(ctx, &cfg, ev.Trigger, &order, rider)
	if len(recipients) == 0 {
		config.LogWarn(d.logger, "notification", "Dispatch", "no recipients after de-duplication", fields)
		return Report{Skipped: SkipNoRecipients}
	}

	report := Report{}
	orderID := order.ID
	for _, phone := range recipients {
		report.Attempted++
		res := d.sms.send(ctx, models.SmsLog{
			CompanyId: ev.CompanyID,
			OrderId:   &orderID,
			Trigger:   ev.Trigger,
			Phone:     phone,
			Message:   message,
			SentById:  ev.SentByID,
		})
		if res.Success {
			report.Sent++
		} else {
			report.Failed++
		}
	}
	return report
}

// recipients returns normalized, de-duplicated numbers in send order: the
// rider or customer first, then the configured additional recipients.
func (d *Dispatcher) recipients(ctx context.Context, cfg *models.SmsNotificationConfig, trigger models.NotificationTrigger, order *models.Order, rider *models.CompanyUser) []string {
	var raw []string
	if trigger == models.TriggerRiderDispatched {
		if cfg.SendToRider && rider != nil {
			raw = append(raw, rider.Phone)
		}
	} else if cfg.SendToCustomer {
		raw = append(raw, d.customerPhone(ctx, order))
	}
	raw = append(raw, cfg.AdditionalRecipients...)

	normalized := make([]string, 0, len(raw))
	for _, p := range raw {
		if n := NormalizePhone(p); n != "" {
			normalized = append(normalized, n)
		}
	}
	return utils.UniqueSlice(normalized)
}

func (d *Dispatcher) customerPhone(ctx context.Context, order *models.Order) string {
	if order.Phone != "" {
		return order.Phone
	}
	if order.CustomerId == nil {
		return ""
	}
	var c models.Customer
	if err := d.db.WithContext(ctx).Where("company_id = ? AND id = ?", order.CompanyId, *order.CustomerId).First(&c).Error; err != nil {
		return ""
	}
	return c.Phone
}

func orderVars(order *models.Order, rider *models.CompanyUser) map[string]string {
	vars := map[string]string{
		"orderId":      strconv.Itoa(order.ID),
		"orderNumber":  order.OrderNumber,
		"orderName":    order.OrderName,
		"customerName": order.CustomerName,
		"totalPrice":   order.TotalPrice.StringFixed(2),
		"currency":     order.Currency,
	}
	if order.CourierName != nil {
		vars["courierName"] = *order.CourierName
	}
	if order.TrackingNumber != nil {
		vars["trackingNumber"] = *order.TrackingNumber
	}
	if rider != nil {
		vars["riderName"] = rider.Name
		vars["riderPhone"] = rider.Phone
	}
	return vars
}
