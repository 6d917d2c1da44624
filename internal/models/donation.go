package models

import "time"

// PaymentStatus of a donation. Donations are created pending; only the
// payment webhook or the reconciliation task moves them on.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Currencies accepted by the donation form.
var Currencies = []string{"TZS", "USD", "EUR", "GBP"}

// Campaigns a donation can be earmarked for, keyed by form value.
var Campaigns = map[string]string{
	"general":        "General Fund",
	"samatta_cup":    "Samatta Cup",
	"education":      "Education Support",
	"health":         "Health & Wellness",
	"infrastructure": "Sports Infrastructure",
}

// DefaultCampaign is used when the form leaves the campaign empty.
const DefaultCampaign = "general"

// Donation is a single gift. DonorEmail is always present, even for
// anonymous gifts, because the receipt is sent there.
type Donation struct {
	Base

	DonorName        *string       `gorm:"type:varchar(100)" json:"donor_name,omitempty"`
	DonorEmail       string        `gorm:"type:varchar(255);not null" json:"donor_email"`
	DonorPhone       *string       `gorm:"type:varchar(50)" json:"donor_phone,omitempty"`
	Amount           float64       `gorm:"type:decimal(15,2);not null;check:amount > 0" json:"amount"`
	Currency         string        `gorm:"type:varchar(3);not null;default:'TZS'" json:"currency"`
	PaymentMethod    *string       `gorm:"type:varchar(50)" json:"payment_method,omitempty"`
	PaymentReference *string       `gorm:"type:varchar(100);index" json:"payment_reference,omitempty"`
	PaymentStatus    PaymentStatus `gorm:"type:varchar(20);default:'pending';index" json:"payment_status"`
	IsAnonymous      bool          `gorm:"default:false" json:"is_anonymous"`
	Message          *string       `gorm:"type:varchar(500)" json:"message,omitempty"`
	Campaign         string        `gorm:"type:varchar(50);default:'general'" json:"campaign"`
}

func (Donation) TableName() string { return "donations" }

// PublicDonorName is the name shown on the public donor wall.
func (d Donation) PublicDonorName() string {
	if d.IsAnonymous || d.DonorName == nil || *d.DonorName == "" {
		return "Anonymous"
	}
	return *d.DonorName
}

// DonationSummary is the public projection of a completed donation.
type DonationSummary struct {
	DonorName   *string   `json:"donor_name,omitempty"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
	IsAnonymous bool      `json:"is_anonymous"`
}
