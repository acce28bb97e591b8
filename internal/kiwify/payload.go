package kiwify

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Payload is the order notification as sent by Kiwify. Field names differ
// between integration versions, so every logical field may arrive under
// several aliases; Normalize picks the first present one.
type Payload struct {
	OrderID       Text `json:"order_id"`
	TransactionID Text `json:"transaction_id"`
	ID            Text `json:"id"`

	ProductID   Text     `json:"product_id"`
	ProductName Text     `json:"product_name"`
	Product     *Product `json:"product"`

	Amount      Literal      `json:"amount"`
	Currency    Text         `json:"currency"`
	Commissions *Commissions `json:"commissions"`

	Customer *Customer `json:"customer"`
	Email    Text      `json:"email"`
	Name     Text      `json:"name"`

	CreatedAt    Text `json:"created_at"`
	ApprovedDate Text `json:"approved_date"`

	Status      Text `json:"status"`
	OrderStatus Text `json:"order_status"`

	PaymentMethod Text `json:"payment_method"`
	PaymentType   Text `json:"payment_type"`
}

// Product, Commissions and Customer decode any non-object value as empty,
// so an unexpected shape falls back to the defaults instead of failing the delivery.
type Product struct {
	ID   Text `json:"id"`
	Name Text `json:"name"`
}

func (p *Product) UnmarshalJSON(b []byte) error {
	*p = Product{}
	if !isObject(b) {
		return nil
	}
	type plain Product
	return json.Unmarshal(b, (*plain)(p))
}

type Commissions struct {
	ChargeAmount Literal `json:"charge_amount"`
	Currency     Text    `json:"currency"`
}

func (c *Commissions) UnmarshalJSON(b []byte) error {
	*c = Commissions{}
	if !isObject(b) {
		return nil
	}
	type plain Commissions
	return json.Unmarshal(b, (*plain)(c))
}

type Customer struct {
	Email    Text `json:"email"`
	FullName Text `json:"full_name"`
	Name     Text `json:"name"`
}

func (c *Customer) UnmarshalJSON(b []byte) error {
	*c = Customer{}
	if !isObject(b) {
		return nil
	}
	type plain Customer
	return json.Unmarshal(b, (*plain)(c))
}

// Text is a scalar that may arrive as a JSON string, number or boolean.
// null, false, objects and arrays decode to the empty string.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")), bytes.Equal(b, []byte("false")):
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(strings.TrimSpace(s))
	case b[0] == '{' || b[0] == '[':
		*t = ""
	default:
		*t = Text(b)
	}
	return nil
}

// Literal keeps the textual form of a numeric field (number or numeric
// string) so integer literals can be told apart from decimal ones. Any other
// shape decodes to the empty literal.
type Literal string

func (l *Literal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")), bytes.Equal(b, []byte("false")), bytes.Equal(b, []byte("true")):
		*l = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = Literal(strings.TrimSpace(s))
	case b[0] == '{' || b[0] == '[':
		*l = ""
	default:
		*l = Literal(b)
	}
	return nil
}

func isObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

// first returns the first non-empty value.
func first[T ~string](vals ...T) T {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
