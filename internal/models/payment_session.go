package models

import "encoding/json"

// PaymentGateway names the provider a donation was paid through.
type PaymentGateway string

const (
	PaymentGatewayClickPesa PaymentGateway = "clickpesa"
	PaymentGatewayMidtrans  PaymentGateway = "midtrans"
)

// PaymentSession records one initiation against the payment gateway. The
// donation keeps its own status; the session keeps what was sent and received.
type PaymentSession struct {
	Base

	DonationID       string          `gorm:"type:uuid;index" json:"donation_id"`
	PaymentGateway   PaymentGateway  `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	Reference        string          `gorm:"type:varchar(100);index" json:"reference"`
	TransactionID    string          `gorm:"type:varchar(100);index" json:"transaction_id"`
	PaymentURL       string          `gorm:"type:text" json:"payment_url"`
	IsActive         bool            `gorm:"default:true" json:"is_active"`
	RequestMetadata  json.RawMessage `gorm:"type:jsonb" json:"request_metadata"`
	ResponseMetadata json.RawMessage `gorm:"type:jsonb" json:"response_metadata"`
}

func (PaymentSession) TableName() string { return "payment_sessions" }
