package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

const (
	SandboxURL    = "https://sandbox.safaricom.co.ke"
	ProductionURL = "https://api.safaricom.co.ke"

	timestampLayout = "20060102150405"
	tokenPath       = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath     = "/mpesa/stkpush/v1/processrequest"
)

// DarajaConfig holds M-Pesa Daraja credentials.
type DarajaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	PassKey        string
	CallbackURL    string
	Timeout        time.Duration
}

// Daraja is an M-Pesa STK push client. The OAuth token is cached until shortly before expiry.
type Daraja struct {
	cfg     DarajaConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewDaraja(cfg DarajaConfig) (*Daraja, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = SandboxURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if !strings.HasPrefix(cfg.CallbackURL, "https://") {
		return nil, fmt.Errorf("daraja callback url must use https: %q", cfg.CallbackURL)
	}
	if cfg.ShortCode == "" || cfg.PassKey == "" {
		return nil, errors.New("daraja shortcode and passkey are required")
	}

	return &Daraja{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "daraja",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			// a declined request is a healthy gateway
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrRejected)
			},
		}),
		now: time.Now,
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// AcquireToken returns the cached access token, fetching a new one when absent or expired.
func (d *Daraja) AcquireToken(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.token != "" && d.now().Before(d.tokenExpiry) {
		return d.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.BaseURL+tokenPath, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(d.cfg.ConsumerKey, d.cfg.ConsumerSecret)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("token request returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("token response has no access_token")
	}

	ttl, err := strconv.Atoi(tr.ExpiresIn)
	if err != nil || ttl <= 0 {
		ttl = 3599
	}
	d.token = tr.AccessToken
	d.tokenExpiry = d.now().Add(time.Duration(ttl)*time.Second - time.Minute)
	return d.token, nil
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// Password derives the STK push password for a timestamp.
func (d *Daraja) Password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(d.cfg.ShortCode + d.cfg.PassKey + timestamp))
}

func (d *Daraja) RequestPushPayment(ctx context.Context, req PushRequest) (*PushResult, error) {
	res, err := d.breaker.Execute(func() (interface{}, error) {
		return d.requestPushPayment(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*PushResult), nil
}

func (d *Daraja) requestPushPayment(ctx context.Context, req PushRequest) (*PushResult, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrRejected)
	}

	token, err := d.AcquireToken(ctx)
	if err != nil {
		return nil, err
	}

	ts := d.now().Format(timestampLayout)
	body, err := json.Marshal(stkPushRequest{
		BusinessShortCode: d.cfg.ShortCode,
		Password:          d.Password(ts),
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.Amount,
		PartyA:            req.Phone,
		PartyB:            d.cfg.ShortCode,
		PhoneNumber:       req.Phone,
		CallBackURL:       d.cfg.CallbackURL,
		AccountReference:  req.Reference,
		TransactionDesc:   req.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stk push request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.BaseURL+stkPushPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build stk push request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send stk push: %w", err)
	}
	defer resp.Body.Close()

	var sr stkPushResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode stk push response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		d.invalidateToken()
	}
	if sr.ResponseCode == "0" && sr.CheckoutRequestID != "" {
		return &PushResult{
			CheckoutID:        sr.CheckoutRequestID,
			MerchantRequestID: sr.MerchantRequestID,
			Description:       sr.ResponseDescription,
		}, nil
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("stk push returned %d: %s", resp.StatusCode, sr.ErrorMessage)
	}

	msg := sr.ResponseDescription
	if msg == "" {
		msg = sr.ErrorMessage
	}
	return nil, fmt.Errorf("%w: %s", ErrRejected, msg)
}

func (d *Daraja) invalidateToken() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.token = ""
}
