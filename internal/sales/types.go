package sales

import "strings"

// Sentinel values stored when the gateway payload omits a field.
const (
	UnknownProductID   = "unknown"
	UnknownProductName = "Produto Desconhecido"
	UnknownBuyerEmail  = "unknown@email.com"
	UnknownBuyerName   = "Cliente Desconhecido"
	UnknownStatus      = "unknown"
	UnknownPayment     = "unknown"
	DefaultCurrency    = "BRL"
)

// Sale represents the item stored in the sales DynamoDB table.
type Sale struct {
	TransactionID string  `dynamodbav:"kiwify_transaction_id" json:"kiwify_transaction_id"` // PK
	ProductID     string  `dynamodbav:"product_id" json:"product_id"`
	ProductName   string  `dynamodbav:"product_name" json:"product_name"`
	Amount        float64 `dynamodbav:"amount" json:"amount"` // major currency units
	Currency      string  `dynamodbav:"currency" json:"currency"`
	BuyerEmail    string  `dynamodbav:"buyer_email" json:"buyer_email"`
	BuyerName     string  `dynamodbav:"buyer_name" json:"buyer_name"`
	PurchaseDate  string  `dynamodbav:"purchase_date" json:"purchase_date"` // ISO-8601
	Status        string  `dynamodbav:"status" json:"status"`               // free text, lowercased
	PaymentMethod string  `dynamodbav:"payment_method" json:"payment_method"`
	RawPayload    string  `dynamodbav:"raw_payload" json:"raw_payload"` // verbatim JSON
	EmailSentAt   string  `dynamodbav:"email_sent_at,omitempty" json:"email_sent_at,omitempty"`
	CreatedAt     string  `dynamodbav:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt     string  `dynamodbav:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// EmailSent reports whether the fulfillment email was already recorded as sent.
func (s *Sale) EmailSent() bool {
	return strings.TrimSpace(s.EmailSentAt) != ""
}
