package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"foundation_site/internal/apperror"
	"foundation_site/internal/config"
)

const ga4Endpoint = "https://www.google-analytics.com/mp/collect"

// AnalyticsService records server-side events with the GA4 Measurement
// Protocol.
type AnalyticsService struct {
	endpoint      string
	measurementID string
	apiSecret     string
	client        *http.Client
}

// NewAnalyticsService returns nil when analytics is not configured.
func NewAnalyticsService(cfg config.AnalyticsConfig, client *http.Client) *AnalyticsService {
	if cfg.MeasurementID == "" || cfg.APISecret == "" {
		return nil
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &AnalyticsService{
		endpoint:      ga4Endpoint,
		measurementID: cfg.MeasurementID,
		apiSecret:     cfg.APISecret,
		client:        client,
	}
}

type ga4Event struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

type ga4Payload struct {
	ClientID string     `json:"client_id"`
	Events   []ga4Event `json:"events"`
}

// TrackEvent sends one event attributed to clientID.
func (a *AnalyticsService) TrackEvent(ctx context.Context, clientID, name string, params map[string]any) error {
	body, err := json.Marshal(ga4Payload{
		ClientID: clientID,
		Events:   []ga4Event{{Name: name, Params: params}},
	})
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("measurement_id", a.measurementID)
	q.Set("api_secret", a.apiSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("analytics request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return apperror.FromHTTPStatus(resp.StatusCode, "", "analytics collect failed")
	}
	return nil
}
