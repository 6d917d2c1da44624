package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"foundation_site/internal/models"
)

// MsgRedirecting is reported with a successful initiation.
const MsgRedirecting = "Redirecting to payment gateway..."

// PaymentClient starts and checks payments with one gateway. It never waits
// for settlement; that arrives through the gateway webhook.
type PaymentClient interface {
	Gateway() models.PaymentGateway
	InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error)
	VerifyPayment(ctx context.Context, transactionID string) (*PaymentVerification, error)
}

// PaymentRequest is what the donation flow asks a gateway for. Reference must
// stay the same across retries of one donation.
type PaymentRequest struct {
	Amount      float64
	Currency    string
	Email       string
	Phone       string
	DonorName   string
	Description string
	Reference   string
	Metadata    map[string]string
	ReturnURL   string
	WebhookURL  string
}

// PaymentResponse carries the redirect target. Request and Response hold the
// raw payloads for the payment session record.
type PaymentResponse struct {
	TransactionID string
	PaymentURL    string
	Token         string
	Message       string
	Request       json.RawMessage
	Response      json.RawMessage
}

// PaymentVerification is a gateway's view of a transaction.
type PaymentVerification struct {
	TransactionID string
	Reference     string
	GatewayStatus string
	Status        models.PaymentStatus
	Method        string
	Message       string
}

// DonationReference is the merchant reference for a donation.
func DonationReference(donationID string) string {
	return "donation-" + donationID
}

// DonationIDFromReference undoes DonationReference.
func DonationIDFromReference(reference string) (string, bool) {
	id, ok := strings.CutPrefix(reference, "donation-")
	return id, ok && id != ""
}

// NewPaymentRequest builds the gateway request for a stored donation.
func NewPaymentRequest(d *models.Donation, returnURL, webhookURL string) PaymentRequest {
	campaign := models.Campaigns[d.Campaign]
	if campaign == "" {
		campaign = models.Campaigns[models.DefaultCampaign]
	}
	return PaymentRequest{
		Amount:      d.Amount,
		Currency:    d.Currency,
		Email:       d.DonorEmail,
		Phone:       models.StringValue(d.DonorPhone),
		DonorName:   d.PublicDonorName(),
		Description: fmt.Sprintf("Donation to Samatta Foundation - %s", campaign),
		Reference:   DonationReference(d.ID),
		Metadata: map[string]string{
			"donor_name":  d.PublicDonorName(),
			"campaign":    d.Campaign,
			"donation_id": d.ID,
		},
		ReturnURL:  returnURL,
		WebhookURL: webhookURL,
	}
}

// ClickPesaStatus maps a ClickPesa transaction status to a donation status.
func ClickPesaStatus(status string) models.PaymentStatus {
	switch strings.ToUpper(status) {
	case "SUCCESS", "SETTLED", "COMPLETED", "PAID":
		return models.PaymentStatusCompleted
	case "FAILED", "CANCELLED", "CANCELED", "EXPIRED", "REJECTED", "REVERSED":
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusPending
	}
}

// MidtransStatus maps Midtrans transaction and fraud status.
func MidtransStatus(transactionStatus, fraudStatus string) models.PaymentStatus {
	switch transactionStatus {
	case "settlement":
		return models.PaymentStatusCompleted
	case "capture":
		if fraudStatus == "" || fraudStatus == "accept" {
			return models.PaymentStatusCompleted
		}
		return models.PaymentStatusPending
	case "deny", "expire", "cancel", "failure":
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusPending
	}
}
