package shopify

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
)

// FlexString accepts a JSON string, number or null. Shopify sends ids as
// numbers in some topics and as strings in others; both are kept as the
// canonical decimal text so downstream keys never depend on JSON type.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return &json.UnmarshalTypeError{Value: string(b), Type: reflect.TypeOf(FlexString(""))}
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// OrderPayload is the subset of the Shopify order resource we read.
// Unknown fields are ignored.
type OrderPayload struct {
	ID                    FlexString        `json:"id" validate:"required"`
	Name                  string            `json:"name"`
	OrderNumber           FlexString        `json:"order_number"`
	Email                 string            `json:"email"`
	Phone                 string            `json:"phone"`
	Currency              string            `json:"currency"`
	SubtotalPrice         FlexString        `json:"subtotal_price" validate:"omitempty,decimal"`
	TotalTax              FlexString        `json:"total_tax" validate:"omitempty,decimal"`
	TotalDiscounts        FlexString        `json:"total_discounts" validate:"omitempty,decimal"`
	TotalPrice            FlexString        `json:"total_price" validate:"required,decimal"`
	TotalShippingPriceSet *PriceSet         `json:"total_shipping_price_set"`
	FinancialStatus       string            `json:"financial_status"`
	FulfillmentStatus     string            `json:"fulfillment_status"`
	SourceName            string            `json:"source_name"`
	UserID                FlexString        `json:"user_id"`
	DiscountCodes         []DiscountCode    `json:"discount_codes" validate:"dive"`
	DiscountApplications  json.RawMessage   `json:"discount_applications"`
	ShippingLines         []ShippingLine    `json:"shipping_lines" validate:"dive"`
	ShippingAddress       json.RawMessage   `json:"shipping_address"`
	BillingAddress        json.RawMessage   `json:"billing_address"`
	Customer              *CustomerPayload  `json:"customer"`
	Note                  string            `json:"note"`
	Tags                  string            `json:"tags"`
	CreatedAt             string            `json:"created_at"`
	LineItems             []LineItemPayload `json:"line_items" validate:"required,dive"`
}

type PriceSet struct {
	ShopMoney struct {
		Amount       FlexString `json:"amount" validate:"omitempty,decimal"`
		CurrencyCode string     `json:"currency_code"`
	} `json:"shop_money"`
}

type DiscountCode struct {
	Code   string     `json:"code"`
	Amount FlexString `json:"amount" validate:"omitempty,decimal"`
	Type   string     `json:"type"`
}

type ShippingLine struct {
	ID    FlexString `json:"id"`
	Title string     `json:"title"`
	Code  string     `json:"code"`
	Price FlexString `json:"price" validate:"omitempty,decimal"`
}

type CustomerPayload struct {
	ID             FlexString      `json:"id" validate:"required"`
	FirstName      string          `json:"first_name"`
	LastName       string          `json:"last_name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	DefaultAddress json.RawMessage `json:"default_address"`
}

type LineItemPayload struct {
	ID           FlexString `json:"id" validate:"required"`
	VariantID    FlexString `json:"variant_id" validate:"required"`
	ProductID    FlexString `json:"product_id"`
	Title        string     `json:"title"`
	VariantTitle string     `json:"variant_title"`
	SKU          string     `json:"sku"`
	Vendor       string     `json:"vendor"`
	ProductType  string     `json:"product_type"`
	Price        FlexString `json:"price" validate:"required,decimal"`
	Quantity     *int       `json:"quantity" validate:"required,gte=1"`
}
