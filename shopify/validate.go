package shopify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cosmoos/cosmo_backend/utils"
	"github.com/shopspring/decimal"
)

var validate = utils.NewValidator()

// ValidationError carries a reason per offending field path.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return "invalid order payload: " + strings.Join(parts, "; ")
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Order is the normalized form handed to the ingestion pipeline.
type Order struct {
	ExternalID        string
	Name              string
	OrderNumber       string
	Email             string
	Phone             string
	Currency          string
	SubtotalPrice     decimal.Decimal
	TotalTax          decimal.Decimal
	TotalDiscounts    decimal.Decimal
	TotalShipping     decimal.Decimal
	TotalPrice        decimal.Decimal
	FinancialStatus   string
	FulfillmentStatus string
	SourceName        string
	// StaffID is the POS user id, empty for web orders.
	StaffID              string
	DiscountCodes        []string
	DiscountCodesRaw     json.RawMessage
	DiscountApplications json.RawMessage
	ShippingLines        json.RawMessage
	ShippingAddress      json.RawMessage
	BillingAddress       json.RawMessage
	Note                 string
	Tags                 string
	// CreatedAt is zero when the payload omits created_at.
	CreatedAt time.Time
	Customer  *Customer
	LineItems []LineItem
}

type Customer struct {
	ExternalID string
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Address    json.RawMessage
}

func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

type LineItem struct {
	ExternalID   string
	VariantID    string
	ProductID    string
	Title        string
	VariantTitle string
	SKU          string
	Vendor       string
	ProductType  string
	Quantity     int
	Price        decimal.NullDecimal
}

const (
	SourcePOS = "pos"
	SourceWeb = "web"
)

// IsPOS reports whether the order was rung up in person.
func (o Order) IsPOS() bool { return strings.EqualFold(o.SourceName, SourcePOS) }

func (o Order) IsWeb() bool { return strings.EqualFold(o.SourceName, SourceWeb) }

// ParseOrder decodes and validates a raw webhook body. Any failure is a
// *ValidationError; nothing is coerced silently.
func ParseOrder(raw []byte) (*Order, error) {
	var p OrderPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, decodeError(err)
	}
	if err := validate.Struct(&p); err != nil {
		return nil, &ValidationError{Fields: utils.ProcessValidationErrors(err)}
	}
	return normalize(&p)
}

func decodeError(err error) *ValidationError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "_"
		}
		return &ValidationError{Fields: map[string]string{field: "must be " + describeType(typeErr)}}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &ValidationError{Fields: map[string]string{"_": fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)}}
	}
	return &ValidationError{Fields: map[string]string{"_": err.Error()}}
}

func describeType(e *json.UnmarshalTypeError) string {
	switch e.Type.Name() {
	case "FlexString":
		return "a string or number"
	case "int":
		return "an integer"
	case "string":
		return "a string"
	case "":
		return "a " + e.Type.Kind().String()
	default:
		return "of type " + e.Type.String()
	}
}

func normalize(p *OrderPayload) (*Order, error) {
	fields := map[string]string{}
	money := func(path string, v FlexString) decimal.Decimal {
		d, err := utils.ParseDecimal(v.String())
		if err != nil {
			fields[path] = "must be a decimal number"
		}
		return d
	}

	o := &Order{
		ExternalID:           p.ID.String(),
		Name:                 strings.TrimSpace(p.Name),
		OrderNumber:          p.OrderNumber.String(),
		Email:                strings.TrimSpace(p.Email),
		Phone:                strings.TrimSpace(p.Phone),
		Currency:             strings.TrimSpace(p.Currency),
		SubtotalPrice:        money("subtotal_price", p.SubtotalPrice),
		TotalTax:             money("total_tax", p.TotalTax),
		TotalDiscounts:       money("total_discounts", p.TotalDiscounts),
		TotalPrice:           money("total_price", p.TotalPrice),
		FinancialStatus:      p.FinancialStatus,
		FulfillmentStatus:    p.FulfillmentStatus,
		SourceName:           strings.ToLower(strings.TrimSpace(p.SourceName)),
		StaffID:              p.UserID.String(),
		DiscountApplications: nonNull(p.DiscountApplications),
		ShippingAddress:      nonNull(p.ShippingAddress),
		BillingAddress:       nonNull(p.BillingAddress),
		Note:                 p.Note,
		Tags:                 p.Tags,
	}
	if at, err := utils.ParseTimestamp(p.CreatedAt); err != nil {
		fields["created_at"] = "must be an RFC 3339 timestamp"
	} else {
		o.CreatedAt = at
	}

	if p.TotalShippingPriceSet != nil && p.TotalShippingPriceSet.ShopMoney.Amount != "" {
		o.TotalShipping = money("total_shipping_price_set.shop_money.amount", p.TotalShippingPriceSet.ShopMoney.Amount)
	} else {
		for i, sl := range p.ShippingLines {
			o.TotalShipping = o.TotalShipping.Add(money(fmt.Sprintf("shipping_lines[%d].price", i), sl.Price))
		}
	}

	for _, dc := range p.DiscountCodes {
		if code := strings.TrimSpace(dc.Code); code != "" {
			o.DiscountCodes = append(o.DiscountCodes, code)
		}
	}
	if len(p.DiscountCodes) > 0 {
		o.DiscountCodesRaw, _ = json.Marshal(p.DiscountCodes)
	}
	if len(p.ShippingLines) > 0 {
		o.ShippingLines, _ = json.Marshal(p.ShippingLines)
	}

	if p.Customer != nil {
		o.Customer = &Customer{
			ExternalID: p.Customer.ID.String(),
			FirstName:  strings.TrimSpace(p.Customer.FirstName),
			LastName:   strings.TrimSpace(p.Customer.LastName),
			Email:      strings.TrimSpace(p.Customer.Email),
			Phone:      strings.TrimSpace(p.Customer.Phone),
			Address:    nonNull(p.Customer.DefaultAddress),
		}
	}

	for i, li := range p.LineItems {
		price := money(fmt.Sprintf("line_items[%d].price", i), li.Price)
		o.LineItems = append(o.LineItems, LineItem{
			ExternalID:   li.ID.String(),
			VariantID:    li.VariantID.String(),
			ProductID:    li.ProductID.String(),
			Title:        strings.TrimSpace(li.Title),
			VariantTitle: strings.TrimSpace(li.VariantTitle),
			SKU:          strings.TrimSpace(li.SKU),
			Vendor:       strings.TrimSpace(li.Vendor),
			ProductType:  strings.TrimSpace(li.ProductType),
			Quantity:     utils.DereferencePtr(li.Quantity),
			Price:        decimal.NullDecimal{Decimal: price, Valid: true},
		})
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return o, nil
}

func nonNull(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return trimmed
}
