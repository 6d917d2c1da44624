package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"foundation_site/internal/apperror"
	"foundation_site/internal/models"
	"foundation_site/internal/services"
)

// Payments is implemented by services.PaymentService.
type Payments interface {
	Gateway() models.PaymentGateway
	Verify(ctx context.Context, transactionID string) (*services.PaymentVerification, error)
	HandleCallback(ctx context.Context, v *services.PaymentVerification, raw json.RawMessage) (bool, error)
}

// CallbackParser turns a webhook body into a verification. Parsers check
// the gateway signature where the gateway provides one; the result is
// confirmed with the gateway before it is applied.
type CallbackParser func(body []byte) (*services.PaymentVerification, error)

// PaymentHandler serves payment verification and gateway webhooks.
type PaymentHandler struct {
	payments Payments
	parse    CallbackParser
	log      *zap.Logger
}

func NewPaymentHandler(payments Payments, parse CallbackParser, log *zap.Logger) *PaymentHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentHandler{payments: payments, parse: parse, log: log.Named("payments")}
}

type verifyRequest struct {
	TransactionID string `json:"transaction_id" form:"transaction_id"`
}

var statusMessages = map[models.PaymentStatus]string{
	models.PaymentStatusCompleted: "Payment completed successfully. Thank you for your donation!",
	models.PaymentStatusFailed:    "Payment failed. Please try again.",
	models.PaymentStatusPending:   "Payment is still being processed.",
}

// Verify asks the gateway for the status of a transaction.
func (h *PaymentHandler) Verify(c echo.Context) error {
	if h.payments == nil {
		return apperror.Configuration("payments are not configured")
	}

	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "The request could not be read.")
	}
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	if req.TransactionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "transaction_id is required.")
	}

	v, err := h.payments.Verify(c.Request().Context(), req.TransactionID)
	if v == nil {
		return err
	}
	if err != nil {
		h.log.Warn("apply verified status", zap.String("transaction_id", req.TransactionID), zap.Error(err))
	}

	message := v.Message
	if m, ok := statusMessages[v.Status]; ok {
		message = m
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  string(v.Status),
		"message": message,
	})
}

// Webhook receives the configured gateway's notification. Unknown gateways
// get 404; a failure to store or apply answers 5xx so the gateway redelivers.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	if h.payments == nil || h.parse == nil || c.Param("gateway") != string(h.payments.Gateway()) {
		return echo.ErrNotFound
	}

	body, err := readBody(c)
	if err != nil {
		return err
	}

	v, err := h.parse(body)
	if err != nil {
		h.log.Warn("rejected webhook", zap.String("gateway", c.Param("gateway")), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid notification.")
	}

	changed, err := h.payments.HandleCallback(c.Request().Context(), v, json.RawMessage(body))
	if err != nil {
		return err
	}

	h.log.Info("webhook processed",
		zap.String("transaction_id", v.TransactionID),
		zap.String("status", string(v.Status)),
		zap.Bool("changed", changed),
	)
	return c.JSON(http.StatusOK, map[string]interface{}{"status": "ok", "updated": changed})
}
