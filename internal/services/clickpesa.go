package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"foundation_site/internal/apperror"
	"foundation_site/internal/config"
	"foundation_site/internal/models"
)

// ClickPesaClient initiates mobile-money and card payments through
// ClickPesa's hosted checkout.
type ClickPesaClient struct {
	apiURL     string
	merchantID string
	apiKey     string
	client     *http.Client
	configErr  error
}

// NewClickPesaClient never fails: missing credentials are reported by each
// call as a configuration error.
func NewClickPesaClient(cfg config.PaymentConfig, client *http.Client) *ClickPesaClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	apiURL := cfg.ClickPesaAPIURL
	if apiURL == "" {
		apiURL = config.DefaultClickPesaAPIURL
	}
	c := &ClickPesaClient{
		apiURL:     strings.TrimRight(apiURL, "/"),
		merchantID: cfg.ClickPesaMerchantID,
		apiKey:     cfg.ClickPesaAPIKey,
		client:     client,
	}
	if c.merchantID == "" || c.apiKey == "" {
		c.configErr = apperror.Configuration("ClickPesa is not configured: set CLICKPESA_MERCHANT_ID and CLICKPESA_API_KEY")
	}
	return c
}

func (c *ClickPesaClient) Gateway() models.PaymentGateway { return models.PaymentGatewayClickPesa }

type clickPesaInitiateRequest struct {
	MerchantID  string  `json:"merchant_id"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone,omitempty"`
	Reference   string  `json:"reference"`
	Description string  `json:"description"`
	WebhookURL  string  `json:"webhook_url"`
	ReturnURL   string  `json:"return_url"`
	Metadata    string  `json:"metadata"`
}

type clickPesaInitiateResponse struct {
	PaymentURL    string `json:"payment_url"`
	TransactionID string `json:"transaction_id"`
	Message       string `json:"message"`
}

type clickPesaStatusResponse struct {
	TransactionID string `json:"transaction_id"`
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	Channel       string `json:"channel"`
	Message       string `json:"message"`
}

type clickPesaError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *ClickPesaClient) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	if c.configErr != nil {
		return nil, c.configErr
	}
	if req.Amount <= 0 {
		return nil, apperror.New(apperror.KindBadRequest, "amount must be greater than 0")
	}

	currency := req.Currency
	if currency == "" {
		currency = "TZS"
	}
	metadata, err := json.Marshal(req.Metadata)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindBadRequest, err, "encode metadata")
	}

	payload := clickPesaInitiateRequest{
		MerchantID:  c.merchantID,
		Amount:      req.Amount,
		Currency:    currency,
		Email:       req.Email,
		Phone:       req.Phone,
		Reference:   req.Reference,
		Description: req.Description,
		WebhookURL:  req.WebhookURL,
		ReturnURL:   req.ReturnURL,
		Metadata:    string(metadata),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindBadRequest, err, "encode payment request")
	}

	respBody, err := c.do(ctx, http.MethodPost, "/payments/initiate", body)
	if err != nil {
		return nil, err
	}

	var resp clickPesaInitiateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, apperror.Wrap(apperror.KindTransient, err, "decode ClickPesa response")
	}
	if resp.PaymentURL == "" {
		return nil, apperror.New(apperror.KindBadRequest, "Failed to generate payment URL")
	}

	return &PaymentResponse{
		TransactionID: resp.TransactionID,
		PaymentURL:    resp.PaymentURL,
		Message:       MsgRedirecting,
		Request:       body,
		Response:      respBody,
	}, nil
}

func (c *ClickPesaClient) VerifyPayment(ctx context.Context, transactionID string) (*PaymentVerification, error) {
	if c.configErr != nil {
		return nil, c.configErr
	}
	if transactionID == "" {
		return nil, apperror.New(apperror.KindBadRequest, "transaction id is required")
	}

	respBody, err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(transactionID)+"/status", nil)
	if err != nil {
		return nil, err
	}
	var resp clickPesaStatusResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, apperror.Wrap(apperror.KindTransient, err, "decode ClickPesa status")
	}
	if resp.TransactionID == "" {
		resp.TransactionID = transactionID
	}

	return &PaymentVerification{
		TransactionID: resp.TransactionID,
		Reference:     resp.Reference,
		GatewayStatus: resp.Status,
		Status:        ClickPesaStatus(resp.Status),
		Method:        resp.Channel,
		Message:       resp.Message,
	}, nil
}

func (c *ClickPesaClient) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindBadRequest, err, "build ClickPesa request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Merchant-ID", c.merchantID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, apperror.Wrap(apperror.KindTransient, err, "ClickPesa request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindTransient, err, "read ClickPesa response")
	}

	if resp.StatusCode >= 400 {
		var ce clickPesaError
		_ = json.Unmarshal(respBody, &ce)
		msg := ce.Message
		if msg == "" {
			msg = ce.Error
		}
		if msg == "" {
			msg = fmt.Sprintf("ClickPesa returned status %d", resp.StatusCode)
		}
		e := apperror.FromHTTPStatus(resp.StatusCode, "", msg)
		e.Code = ce.Code
		return nil, e
	}
	return respBody, nil
}

// clickPesaCallback is the webhook body. Some deliveries nest the
// transaction under "data".
type clickPesaCallback struct {
	clickPesaStatusResponse
	Event string                   `json:"event"`
	Data  *clickPesaStatusResponse `json:"data"`
}

// ParseClickPesaCallback decodes a ClickPesa webhook body. The body is not
// signed, so PaymentService.HandleCallback re-reads the status from ClickPesa.
func ParseClickPesaCallback(body []byte) (*PaymentVerification, error) {
	var cb clickPesaCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, apperror.Wrap(apperror.KindBadRequest, err, "decode ClickPesa callback")
	}
	tx := cb.clickPesaStatusResponse
	if cb.Data != nil {
		tx = *cb.Data
	}
	if tx.TransactionID == "" && tx.Reference == "" {
		return nil, apperror.New(apperror.KindBadRequest, "ClickPesa callback without transaction id or reference")
	}
	return &PaymentVerification{
		TransactionID: tx.TransactionID,
		Reference:     tx.Reference,
		GatewayStatus: tx.Status,
		Status:        ClickPesaStatus(tx.Status),
		Method:        tx.Channel,
		Message:       tx.Message,
	}, nil
}
