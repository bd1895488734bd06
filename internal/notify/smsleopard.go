package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// DefaultSMSLeopardURL is the production send endpoint.
const DefaultSMSLeopardURL = "https://api.smsleopard.com/v1/sms/send"

// SMSLeopardConfig holds the provider credentials.
type SMSLeopardConfig struct {
	URL       string
	APIKey    string
	APISecret string
	Source    string
	Timeout   time.Duration
}

// SMSLeopard sends messages through the SMSLeopard HTTP API.
type SMSLeopard struct {
	cfg     SMSLeopardConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewSMSLeopard(cfg SMSLeopardConfig) *SMSLeopard {
	if cfg.URL == "" {
		cfg.URL = DefaultSMSLeopardURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMSLeopard{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "smsleopard",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
	}
}

type smsDestination struct {
	Number string `json:"number"`
}

type smsRequest struct {
	Source      string           `json:"source"`
	Multi       bool             `json:"multi"`
	Message     string           `json:"message"`
	Destination []smsDestination `json:"destination"`
}

func (s *SMSLeopard) Send(ctx context.Context, phone, message string) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.send(ctx, phone, message)
	})
	return err
}

func (s *SMSLeopard) send(ctx context.Context, phone, message string) error {
	body, err := json.Marshal(smsRequest{
		Source:      s.cfg.Source,
		Message:     message,
		Destination: []smsDestination{{Number: phone}},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build sms request: %w", err)
	}
	req.SetBasicAuth(s.cfg.APIKey, s.cfg.APISecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms provider returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
