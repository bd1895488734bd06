package http

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akirachix/mlimizone-backend/internal/entity"
	"github.com/akirachix/mlimizone-backend/internal/gateway"
	"github.com/akirachix/mlimizone-backend/internal/gazetteer"
	"github.com/akirachix/mlimizone-backend/internal/messaging"
	"github.com/akirachix/mlimizone-backend/internal/notify"
	"github.com/akirachix/mlimizone-backend/internal/repository/memory"
	"github.com/akirachix/mlimizone-backend/internal/service"
	"github.com/akirachix/mlimizone-backend/internal/session"
	"github.com/akirachix/mlimizone-backend/internal/ussd"
)

// recordingGateway accepts like the sandbox and remembers the last checkout id.
type recordingGateway struct {
	gateway.Sandbox
	last string
}

func (g *recordingGateway) RequestPushPayment(ctx context.Context, req gateway.PushRequest) (*gateway.PushResult, error) {
	res, err := g.Sandbox.RequestPushPayment(ctx, req)
	if err == nil {
		g.last = res.CheckoutID
	}
	return res, err
}

func TestEndToEnd_BookPayAndConfirm(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.UpsertPrice(ctx, "Maize", "Southern Region", 100))

	g := gazetteer.Default()
	sms := &notify.Recorder{}
	gw := &recordingGateway{}
	pub := messaging.NopPublisher{}
	accounts := service.NewAccountService(store, store, g, sms, pub)
	market := service.NewMarketService(store, store, store, g, sms, pub)
	payments := service.NewPaymentService(store, store, gw, sms, pub)
	engine := ussd.NewEngine(session.NewMemoryStore(0), accounts, market, payments)
	srv := newTestServer(t, engine, payments)

	dial := func(sessionID, phone, text string) string {
		t.Helper()
		res, err := http.PostForm(srv.URL+"/ussd", url.Values{"sessionId": {sessionID}, "phoneNumber": {phone}, "text": {text}})
		require.NoError(t, err)
		defer res.Body.Close()
		return readAll(t, res)
	}

	assert.True(t, strings.HasPrefix(dial("f1", "0700000001", "1*Mary Banda*Blantyre"), "CON Welcome to MlimiZone Farmers"))
	assert.True(t, strings.HasPrefix(dial("f1", "0700000001", "1*Mary Banda*Blantyre*2*1*50"), "CON You have listed 50 KG of Maize"))
	assert.True(t, strings.HasPrefix(dial("w1", "+254 700 000 002", "2*John Phiri*Lilongwe"), "CON Welcome to MlimiZone Wholesaler"))
	assert.True(t, strings.HasPrefix(dial("w1", "+254 700 000 002", "2*John Phiri*Lilongwe*2*1*1*1"), "CON Booking successful"))
	assert.Equal(t, "END M-Pesa payment initiated. Check your phone for PIN prompt.", dial("w2", "254700000002", "3*1*1"))

	buyer, err := accounts.FindByPhone(ctx, "254700000002")
	require.NoError(t, err)
	orders, err := market.UnpaidOrders(ctx, buyer.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	sms.Reset()

	body := `{"Body":{"stkCallback":{"CheckoutRequestID":"` + gw.last + `","ResultCode":0,"ResultDesc":"The service request is processed successfully."}}}`
	for range 2 {
		res, err := http.Post(srv.URL+"/payment/callback", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		res.Body.Close()
	}

	o, err := market.Order(ctx, orders[0].ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderPaid, o.Status)
	// the replayed callback sends nothing
	assert.Len(t, sms.Messages(), 2)
}
