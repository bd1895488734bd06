package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDaraja struct {
	tokenCalls atomic.Int32
	lastPush   stkPushRequest
	respond    func(w http.ResponseWriter)
}

func (f *fakeDaraja) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "ck", user)
		assert.Equal(t, "cs", pass)
		assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok", ExpiresIn: "3599"})
	})
	mux.HandleFunc("POST /mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastPush))
		f.respond(w)
	})
	return mux
}

func newTestDaraja(t *testing.T, f *fakeDaraja) *Daraja {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	d, err := NewDaraja(DarajaConfig{
		BaseURL:        srv.URL,
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		ShortCode:      "174379",
		PassKey:        "pk",
		CallbackURL:    "https://example.com/payment/callback",
	})
	require.NoError(t, err)
	d.now = func() time.Time { return time.Date(2024, 3, 1, 10, 4, 5, 0, time.UTC) }
	return d
}

func TestDaraja_Accepted(t *testing.T) {
	f := &fakeDaraja{respond: func(w http.ResponseWriter) {
		json.NewEncoder(w).Encode(stkPushResponse{
			MerchantRequestID:   "m-1",
			CheckoutRequestID:   "ws_CO_1",
			ResponseCode:        "0",
			ResponseDescription: "Success. Request accepted for processing",
		})
	}}
	d := newTestDaraja(t, f)

	res, err := d.RequestPushPayment(context.Background(), PushRequest{
		Phone: "254700000001", Amount: 5000, Reference: "Order_7", Description: "Payment for Maize",
	})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_1", res.CheckoutID)

	p := f.lastPush
	assert.Equal(t, "174379", p.BusinessShortCode)
	assert.Equal(t, "20240301100405", p.Timestamp)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("174379pk20240301100405")), p.Password)
	assert.Equal(t, "CustomerPayBillOnline", p.TransactionType)
	assert.Equal(t, int64(5000), p.Amount)
	assert.Equal(t, "254700000001", p.PartyA)
	assert.Equal(t, "174379", p.PartyB)
	assert.Equal(t, "Order_7", p.AccountReference)

	// token is reused
	_, err = d.RequestPushPayment(context.Background(), PushRequest{Phone: "254700000001", Amount: 1, Reference: "Order_8"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.tokenCalls.Load())
}

func TestDaraja_Rejected(t *testing.T) {
	f := &fakeDaraja{respond: func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(stkPushResponse{ErrorCode: "400.002.02", ErrorMessage: "Bad Request - Invalid PhoneNumber"})
	}}
	d := newTestDaraja(t, f)

	_, err := d.RequestPushPayment(context.Background(), PushRequest{Phone: "254700000001", Amount: 10, Reference: "Order_1"})
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "Invalid PhoneNumber")

	_, err = d.RequestPushPayment(context.Background(), PushRequest{Phone: "254700000001", Amount: 0})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestDaraja_TokenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credentials", http.StatusBadRequest)
	}))
	defer srv.Close()

	d, err := NewDaraja(DarajaConfig{BaseURL: srv.URL, ShortCode: "1", PassKey: "p", CallbackURL: "https://x.test/cb"})
	require.NoError(t, err)

	_, err = d.RequestPushPayment(context.Background(), PushRequest{Phone: "254700000001", Amount: 10})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRejected)
	assert.True(t, strings.Contains(err.Error(), "400"))
}

func TestNewDaraja_Validation(t *testing.T) {
	_, err := NewDaraja(DarajaConfig{ShortCode: "1", PassKey: "p", CallbackURL: "http://insecure.test/cb"})
	assert.Error(t, err)

	_, err = NewDaraja(DarajaConfig{CallbackURL: "https://x.test/cb"})
	assert.Error(t, err)
}

func TestSandbox(t *testing.T) {
	s := &Sandbox{}
	a, err := s.RequestPushPayment(context.Background(), PushRequest{Phone: "254700000001", Amount: 10})
	require.NoError(t, err)
	b, err := s.RequestPushPayment(context.Background(), PushRequest{Phone: "254700000001", Amount: 10})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a.CheckoutID, "ws_CO_"))
	assert.NotEqual(t, a.CheckoutID, b.CheckoutID)
	assert.Len(t, s.Requests(), 2)

	_, err = s.RequestPushPayment(context.Background(), PushRequest{Phone: "254700000001"})
	assert.ErrorIs(t, err, ErrRejected)
}
