package models

import "encoding/json"

// PaymentCallbackHistory keeps every webhook payload received from a gateway,
// whether or not it changed a donation.
type PaymentCallbackHistory struct {
	Base

	PaymentGateway PaymentGateway  `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	TransactionID  string          `gorm:"type:varchar(100);index" json:"transaction_id"`
	Status         string          `gorm:"type:varchar(50)" json:"status"`
	Metadata       json.RawMessage `gorm:"type:jsonb" json:"metadata"`
}

func (PaymentCallbackHistory) TableName() string { return "payment_callback_histories" }
