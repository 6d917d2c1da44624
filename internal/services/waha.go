package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"foundation_site/internal/apperror"
	"foundation_site/internal/config"
)

// WahaService sends WhatsApp messages through a WAHA instance. The site uses
// it for staff alerts.
type WahaService struct {
	baseURL string
	apiKey  string
	session string
	client  *http.Client

	// pause between the seen/typing steps; zero in tests
	pause func(ctx context.Context, d time.Duration) error
}

func NewWahaService(cfg config.WahaConfig, client *http.Client) *WahaService {
	url := cfg.BaseURL
	if url == "" {
		url = "http://waha:3000"
	}
	session := cfg.Session
	if session == "" {
		session = "default"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &WahaService{
		baseURL: strings.TrimRight(url, "/"),
		apiKey:  cfg.APIKey,
		session: session,
		client:  client,
		pause:   sleepCtx,
	}
}

func (s *WahaService) makeRequest(ctx context.Context, method, endpoint string, payload interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return apperror.FromHTTPStatus(resp.StatusCode, "", strings.TrimSpace(string(body)))
	}

	return nil
}

func (s *WahaService) chatAction(ctx context.Context, action, chatID string) error {
	return s.makeRequest(ctx, http.MethodPost, "/api/"+action, map[string]string{
		"chatId":  chatID,
		"session": s.session,
	})
}

func (s *WahaService) sendText(ctx context.Context, chatID, text string) error {
	return s.makeRequest(ctx, http.MethodPost, "/api/sendText", map[string]string{
		"chatId":  chatID,
		"text":    text,
		"session": s.session,
	})
}

// NormalizeChatID adds the WhatsApp suffix and rewrites Tanzanian numbers in
// national format (leading 0 or +) to the 255 country code.
func NormalizeChatID(chatID string) string {
	chatID = strings.TrimSpace(chatID)

	if strings.HasSuffix(chatID, "@g.us") {
		return chatID
	}

	chatID = strings.TrimSuffix(chatID, "@c.us")
	chatID = strings.NewReplacer(" ", "", "-", "", "+", "").Replace(chatID)

	if strings.HasPrefix(chatID, "0") {
		chatID = "255" + strings.TrimPrefix(chatID, "0")
	}

	return chatID + "@c.us"
}

// SendMessage mimics a person replying: seen, typing, stop typing, send.
func (s *WahaService) SendMessage(ctx context.Context, chatID, text string) error {
	chatID = NormalizeChatID(chatID)

	steps := []struct {
		action string
		wait   time.Duration
	}{
		{"sendSeen", 100 * time.Millisecond},
		{"startTyping", 150 * time.Millisecond},
		{"stopTyping", 50 * time.Millisecond},
	}
	for _, step := range steps {
		if err := s.chatAction(ctx, step.action, chatID); err != nil {
			return fmt.Errorf("failed to %s: %w", step.action, err)
		}
		if err := s.pause(ctx, step.wait); err != nil {
			return err
		}
	}

	if err := s.sendText(ctx, chatID, text); err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
