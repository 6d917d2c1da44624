package services

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"

	"foundation_site/internal/apperror"
	"foundation_site/internal/config"
	"foundation_site/internal/models"
)

// midtransCurrency is the only currency a Midtrans merchant account settles.
const midtransCurrency = "IDR"

// MidtransClient takes card and e-wallet donations through Midtrans Snap.
// Each client owns its keys; the midtrans package globals are not touched.
type MidtransClient struct {
	snapClient snap.Client
	coreClient coreapi.Client
	serverKey  string
	configErr  error
}

func NewMidtransClient(cfg config.PaymentConfig) *MidtransClient {
	env := midtrans.Sandbox
	if cfg.MidtransIsProduction {
		env = midtrans.Production
	}

	c := &MidtransClient{serverKey: cfg.MidtransServerKey}
	c.snapClient.New(cfg.MidtransServerKey, env)
	c.coreClient.New(cfg.MidtransServerKey, env)
	if cfg.MidtransServerKey == "" {
		c.configErr = apperror.Configuration("Midtrans is not configured: set MIDTRANS_SERVER_KEY")
	}
	return c
}

func (c *MidtransClient) Gateway() models.PaymentGateway { return models.PaymentGatewayMidtrans }

// InitiatePayment creates a Snap transaction whose order id is the donation
// reference. Snap charges IDR only; other currencies are refused rather than
// charged as rupiah. Amounts are whole units, so the amount is rounded up.
func (c *MidtransClient) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	if c.configErr != nil {
		return nil, c.configErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Currency != "" && !strings.EqualFold(req.Currency, midtransCurrency) {
		return nil, &apperror.Error{
			Kind:    apperror.KindBadRequest,
			Code:    "unsupported_currency",
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("Midtrans only accepts %s payments, not %s", midtransCurrency, strings.ToUpper(req.Currency)),
		}
	}
	amount := int64(math.Ceil(req.Amount))
	if amount <= 0 {
		return nil, apperror.New(apperror.KindBadRequest, "amount must be greater than 0")
	}

	param := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.Reference,
			GrossAmt: amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.DonorName,
			Email: req.Email,
			Phone: req.Phone,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    req.Reference,
				Name:  truncate(req.Description, 50),
				Price: amount,
				Qty:   1,
			},
		},
	}
	if req.ReturnURL != "" {
		param.Callbacks = &snap.Callbacks{Finish: req.ReturnURL}
	}

	resp, merr := c.snapClient.CreateTransaction(param)
	if merr != nil {
		return nil, classifyMidtrans(merr)
	}
	if resp.RedirectURL == "" {
		return nil, apperror.New(apperror.KindBadRequest, "Failed to generate payment URL")
	}

	reqBytes, _ := json.Marshal(param)
	respBytes, _ := json.Marshal(resp)
	return &PaymentResponse{
		TransactionID: req.Reference,
		PaymentURL:    resp.RedirectURL,
		Token:         resp.Token,
		Message:       MsgRedirecting,
		Request:       reqBytes,
		Response:      respBytes,
	}, nil
}

// VerifyPayment checks the status of an order id.
func (c *MidtransClient) VerifyPayment(ctx context.Context, orderID string) (*PaymentVerification, error) {
	if c.configErr != nil {
		return nil, c.configErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, merr := c.coreClient.CheckTransaction(orderID)
	if merr != nil {
		return nil, classifyMidtrans(merr)
	}
	return &PaymentVerification{
		TransactionID: resp.OrderID,
		Reference:     resp.OrderID,
		GatewayStatus: resp.TransactionStatus,
		Status:        MidtransStatus(resp.TransactionStatus, resp.FraudStatus),
		Method:        resp.PaymentType,
		Message:       resp.StatusMessage,
	}, nil
}

// CancelTransaction cancels a pending order.
func (c *MidtransClient) CancelTransaction(orderID string) error {
	if c.configErr != nil {
		return c.configErr
	}
	if _, merr := c.coreClient.CancelTransaction(orderID); merr != nil {
		return classifyMidtrans(merr)
	}
	return nil
}

// VerifySignature checks a notification's signature_key, which is
// SHA512(order_id + status_code + gross_amount + server_key).
func (c *MidtransClient) VerifySignature(orderID, statusCode, grossAmount, signatureKey string) bool {
	if c.serverKey == "" || signatureKey == "" {
		return false
	}
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + c.serverKey))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signatureKey)) == 1
}

func classifyMidtrans(merr *midtrans.Error) error {
	status := merr.StatusCode
	if status == 0 {
		return apperror.Wrap(apperror.KindTransient, merr, "midtrans request failed")
	}
	e := apperror.FromHTTPStatus(status, "", merr.Message)
	if status == http.StatusUnauthorized {
		e.Message = "Midtrans rejected the server key: check MIDTRANS_SERVER_KEY"
	}
	e.Err = merr
	return e
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// MidtransNotification is the HTTP notification body Midtrans posts.
type MidtransNotification struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	StatusMessage     string `json:"status_message"`
}

// ParseNotification decodes and authenticates a Midtrans notification.
func (c *MidtransClient) ParseNotification(body []byte) (*PaymentVerification, error) {
	var n MidtransNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, apperror.Wrap(apperror.KindBadRequest, err, "decode Midtrans notification")
	}
	if n.OrderID == "" {
		return nil, apperror.New(apperror.KindBadRequest, "Midtrans notification without order_id")
	}
	if !c.VerifySignature(n.OrderID, n.StatusCode, n.GrossAmount, n.SignatureKey) {
		return nil, &apperror.Error{Kind: apperror.KindBadRequest, Status: http.StatusUnauthorized, Message: "invalid Midtrans signature"}
	}
	return &PaymentVerification{
		TransactionID: n.OrderID,
		Reference:     n.OrderID,
		GatewayStatus: n.TransactionStatus,
		Status:        MidtransStatus(n.TransactionStatus, n.FraudStatus),
		Method:        n.PaymentType,
		Message:       n.StatusMessage,
	}, nil
}
