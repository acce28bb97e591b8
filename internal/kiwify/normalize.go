// Package kiwify turns loosely structured Kiwify webhook payloads into sale records.
package kiwify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/imrishuroy/go-kiwify-fulfillment/internal/sales"
)

var (
	// ErrMissingTransactionID means none of order_id, transaction_id or id was present.
	ErrMissingTransactionID = errors.New("missing transaction id")
	// ErrMalformedPayload wraps JSON syntax errors and non-object bodies.
	ErrMalformedPayload = errors.New("malformed payload")
)

// Parse decodes the raw body into a Payload.
func Parse(raw []byte) (*Payload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrMalformedPayload)
	}
	var p Payload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &p, nil
}

// Normalize parses raw and maps it onto a fully defaulted sale record.
// now is used as the purchase date when the payload carries none.
func Normalize(raw []byte, now time.Time) (sales.Sale, error) {
	p, err := Parse(raw)
	if err != nil {
		return sales.Sale{}, err
	}

	txID := first(p.OrderID, p.TransactionID, p.ID)
	if txID == "" {
		return sales.Sale{}, ErrMissingTransactionID
	}

	var (
		productID, productName Text
		chargeAmount           Literal
		commissionCurrency     Text
		customerEmail          Text
		customerFullName       Text
		customerName           Text
	)
	if p.Product != nil {
		productID, productName = p.Product.ID, p.Product.Name
	}
	if p.Commissions != nil {
		chargeAmount, commissionCurrency = p.Commissions.ChargeAmount, p.Commissions.Currency
	}
	if p.Customer != nil {
		customerEmail, customerFullName, customerName = p.Customer.Email, p.Customer.FullName, p.Customer.Name
	}

	return sales.Sale{
		TransactionID: string(txID),
		ProductID:     orDefault(first(p.ProductID, productID), sales.UnknownProductID),
		ProductName:   orDefault(first(p.ProductName, productName), sales.UnknownProductName),
		Amount:        NormalizeAmount(firstAmount(p.Amount, chargeAmount)),
		Currency:      orDefault(first(p.Currency, commissionCurrency), sales.DefaultCurrency),
		BuyerEmail:    orDefault(first(customerEmail, p.Email), sales.UnknownBuyerEmail),
		BuyerName:     orDefault(first(customerFullName, p.Name, customerName), sales.UnknownBuyerName),
		PurchaseDate:  orDefault(first(p.CreatedAt, p.ApprovedDate), now.UTC().Format(time.RFC3339)),
		Status:        orDefault(Text(strings.ToLower(string(first(p.Status, p.OrderStatus)))), sales.UnknownStatus),
		PaymentMethod: orDefault(first(p.PaymentMethod, p.PaymentType), sales.UnknownPayment),
		RawPayload:    string(bytes.TrimSpace(raw)),
	}, nil
}

// NormalizeAmount converts a raw amount literal to major currency units.
// Integer literals ("1999") are minor units and are divided by 100; decimal
// literals ("19.99", "20.00") are already scaled. Unparsable input yields 0.
func NormalizeAmount(lit Literal) float64 {
	s := strings.TrimSpace(string(lit))
	if s == "" {
		return 0
	}
	if isIntegerLiteral(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0
		}
		return float64(n) / 100
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// firstAmount skips empty and zero-valued literals.
func firstAmount(vals ...Literal) Literal {
	for _, v := range vals {
		if v == "" {
			continue
		}
		if f, err := strconv.ParseFloat(string(v), 64); err == nil && f == 0 {
			continue
		}
		return v
	}
	return ""
}

func isIntegerLiteral(s string) bool {
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func orDefault(v Text, def string) string {
	if v == "" {
		return def
	}
	return string(v)
}
