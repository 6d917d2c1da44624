package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"foundation_site/internal/apperror"
	"foundation_site/internal/models"
	"foundation_site/internal/store"
)

// PaymentStore is the part of store.Gateway the payment flow needs.
type PaymentStore interface {
	InsertPaymentSession(ctx context.Context, s *models.PaymentSession) error
	InsertPaymentCallback(ctx context.Context, h *models.PaymentCallbackHistory) error
	SetDonationReference(ctx context.Context, id, reference, method string) error
	TransitionDonation(ctx context.Context, id string, update store.PaymentUpdate) (bool, error)
	FindPaymentSession(ctx context.Context, gateway models.PaymentGateway, transactionID string) (*models.PaymentSession, error)
	FindDonation(ctx context.Context, id string) (*models.Donation, error)
}

// PaymentService ties a PaymentClient to the donation records: it starts
// payments, keeps the session trail and applies gateway results.
type PaymentService struct {
	store      PaymentStore
	client     PaymentClient
	returnURL  string
	webhookURL string
	logger     *zap.Logger

	// OnSettled, if set, runs after a donation leaves pending.
	OnSettled func(ctx context.Context, d *models.Donation)
}

func NewPaymentService(st PaymentStore, client PaymentClient, returnURL, webhookURL string, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		store:      st,
		client:     client,
		returnURL:  returnURL,
		webhookURL: webhookURL,
		logger:     logger,
	}
}

func (s *PaymentService) Gateway() models.PaymentGateway { return s.client.Gateway() }

// InitiateDonationPayment asks the gateway for a checkout for a stored
// donation. It makes one attempt; callers wrap it with retry.Do.
func (s *PaymentService) InitiateDonationPayment(ctx context.Context, d *models.Donation) (*PaymentResponse, error) {
	if d.ID == "" {
		return nil, apperror.New(apperror.KindBadRequest, "donation must be stored before payment")
	}
	return s.client.InitiatePayment(ctx, NewPaymentRequest(d, s.returnURL, s.webhookURL))
}

// RecordSession stores the initiation and the gateway reference on the
// donation. The donation status is not changed.
func (s *PaymentService) RecordSession(ctx context.Context, d *models.Donation, resp *PaymentResponse) error {
	session := &models.PaymentSession{
		DonationID:       d.ID,
		PaymentGateway:   s.client.Gateway(),
		Reference:        DonationReference(d.ID),
		TransactionID:    resp.TransactionID,
		PaymentURL:       resp.PaymentURL,
		IsActive:         true,
		RequestMetadata:  resp.Request,
		ResponseMetadata: resp.Response,
	}
	session.SetIdempotencyKey(uuid.NewString())
	if err := s.store.InsertPaymentSession(ctx, session); err != nil {
		return err
	}
	return s.store.SetDonationReference(ctx, d.ID, resp.TransactionID, string(s.client.Gateway()))
}

// Verify asks the gateway for the status of transactionID and applies a
// terminal result to the donation.
func (s *PaymentService) Verify(ctx context.Context, transactionID string) (*PaymentVerification, error) {
	v, err := s.client.VerifyPayment(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.apply(ctx, v); err != nil {
		return v, err
	}
	return v, nil
}

// HandleCallback records a webhook payload, then asks the gateway for the
// transaction and applies what the gateway reports. The status in the body is
// never applied on its own. It reports whether a donation changed state.
// Redelivered payloads are stored once.
func (s *PaymentService) HandleCallback(ctx context.Context, v *PaymentVerification, raw json.RawMessage) (bool, error) {
	history := &models.PaymentCallbackHistory{
		PaymentGateway: s.client.Gateway(),
		TransactionID:  v.TransactionID,
		Status:         v.GatewayStatus,
		Metadata:       raw,
	}
	history.SetIdempotencyKey(callbackKey(s.client.Gateway(), v, raw))
	if err := s.store.InsertPaymentCallback(ctx, history); err != nil {
		return false, fmt.Errorf("record callback: %w", err)
	}
	if v.Status == models.PaymentStatusPending {
		return false, nil
	}

	confirmed, err := s.confirm(ctx, v)
	if err != nil {
		return false, err
	}
	if confirmed.Status != v.Status {
		s.logger.Warn("callback status differs from gateway",
			zap.String("transaction_id", confirmed.TransactionID),
			zap.String("callback_status", string(v.Status)),
			zap.String("gateway_status", string(confirmed.Status)),
		)
	}
	return s.apply(ctx, confirmed)
}

// confirm looks the callback's transaction up at the gateway. Only the
// gateway's answer identifies the donation; the body's reference is used as
// the lookup key when no transaction id came with it.
func (s *PaymentService) confirm(ctx context.Context, v *PaymentVerification) (*PaymentVerification, error) {
	id := v.TransactionID
	byReference := id == ""
	if byReference {
		id = v.Reference
	}
	confirmed, err := s.client.VerifyPayment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("confirm callback %s: %w", id, err)
	}
	out := *confirmed
	if out.TransactionID == "" {
		out.TransactionID = id
	}
	if out.Reference == "" && byReference {
		out.Reference = id
	}
	return &out, nil
}

func (s *PaymentService) apply(ctx context.Context, v *PaymentVerification) (bool, error) {
	if v.Status == models.PaymentStatusPending {
		return false, nil
	}

	donationID, err := s.resolveDonation(ctx, v)
	if err != nil {
		return false, err
	}

	changed, err := s.store.TransitionDonation(ctx, donationID, store.PaymentUpdate{
		Status:    v.Status,
		Reference: v.TransactionID,
		Method:    v.Method,
	})
	if err != nil {
		return false, err
	}
	if !changed {
		s.logger.Info("donation already settled", zap.String("donation_id", donationID), zap.String("status", string(v.Status)))
		return false, nil
	}

	s.logger.Info("donation settled",
		zap.String("donation_id", donationID),
		zap.String("gateway", string(s.client.Gateway())),
		zap.String("status", string(v.Status)),
	)
	if s.OnSettled != nil {
		d, err := s.store.FindDonation(ctx, donationID)
		if err != nil {
			s.logger.Warn("load settled donation", zap.String("donation_id", donationID), zap.Error(err))
			return true, nil
		}
		s.OnSettled(ctx, d)
	}
	return true, nil
}

func (s *PaymentService) resolveDonation(ctx context.Context, v *PaymentVerification) (string, error) {
	if id, ok := DonationIDFromReference(v.Reference); ok {
		return id, nil
	}
	session, err := s.store.FindPaymentSession(ctx, s.client.Gateway(), v.TransactionID)
	if err != nil {
		return "", fmt.Errorf("resolve donation for %s: %w", v.TransactionID, err)
	}
	return session.DonationID, nil
}

func callbackKey(gateway models.PaymentGateway, v *PaymentVerification, raw json.RawMessage) string {
	h := sha256.New()
	h.Write([]byte(gateway))
	h.Write([]byte{0})
	h.Write([]byte(v.TransactionID))
	h.Write([]byte{0})
	h.Write([]byte(v.GatewayStatus))
	h.Write([]byte{0})
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil))
}
