package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls map[string]int
	fails int
}

func (o *recordingObserver) ObserveGatewayCall(op string, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.calls == nil {
		o.calls = make(map[string]int)
	}
	o.calls[op]++
	if err != nil {
		o.fails++
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *recordingObserver) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	obs := &recordingObserver{}
	c := NewClient(Config{
		BaseURL:             srv.URL + "/",
		SecretKey:           "CHASECK_TEST",
		CallbackURL:         "https://cashier.test/transactions/callback",
		WithdrawCallbackURL: "https://cashier.test/transactions/withdraw/callback",
		ReturnURL:           "https://t.me/bot",
		Timeout:             time.Second,
	}, zap.NewNop(), obs)
	return c, obs
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestInitializePayment(t *testing.T) {
	var got PaymentRequest
	c, obs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer CHASECK_TEST", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, `{"message":"Hosted Link","status":"success","data":{"checkout_url":"https://checkout.chapa.co/checkout/payment/abc"}}`)
	})

	checkout, err := c.InitializePayment(context.Background(), PaymentRequest{
		Amount:   decimal.NewFromInt(100),
		Currency: "ETB",
		TxRef:    "txn-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.chapa.co/checkout/payment/abc", checkout.CheckoutURL)
	assert.Equal(t, "txn-1", got.TxRef)
	assert.Equal(t, "https://cashier.test/transactions/callback", got.CallbackURL)
	assert.Equal(t, "https://t.me/bot", got.ReturnURL)
	assert.True(t, decimal.NewFromInt(100).Equal(got.Amount))
	assert.Equal(t, 1, obs.calls["initialize_payment"])
}

func TestInitializePaymentErrors(t *testing.T) {
	c, obs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"message":{"email":["The email must be a valid email address."]},"status":"failed","data":null}`)
	})
	_, err := c.InitializePayment(context.Background(), PaymentRequest{TxRef: "txn-1"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "valid email")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, obs.fails)

	c, _ = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"message":"nope","status":"failed","data":null}`)
	})
	_, err = c.InitializePayment(context.Background(), PaymentRequest{TxRef: "txn-1"})
	assert.ErrorIs(t, err, ErrRejected)

	c, _ = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `<html>`)
	})
	_, err = c.InitializePayment(context.Background(), PaymentRequest{TxRef: "txn-1"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGatewayTimeout(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	c.cfg.Timeout = 50 * time.Millisecond

	_, err := c.VerifyPayment(context.Background(), "txn-1")
	assert.ErrorIs(t, err, ErrUnavailable)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestVerifyPayment(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transaction/verify/txn-1", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"message":"Payment details","status":"success","data":{"status":"success","tx_ref":"txn-1","amount":"100.00","currency":"ETB"}}`)
	})
	v, err := c.VerifyPayment(context.Background(), "txn-1")
	require.NoError(t, err)
	assert.True(t, v.Succeeded())
	assert.Equal(t, "txn-1", v.Reference)
	assert.True(t, decimal.NewFromInt(100).Equal(v.Amount))

	c, _ = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"message":"Payment details","status":"success","data":{"status":"pending","tx_ref":"txn-1"}}`)
	})
	v, err = c.VerifyPayment(context.Background(), "txn-1")
	require.NoError(t, err)
	assert.False(t, v.Succeeded(), "data status wins over the envelope status")
}

func TestVerifyPaymentMalformedData(t *testing.T) {
	for name, body := range map[string]string{
		"data not an object": `{"message":"Payment details","status":"success","data":"paid"}`,
		"bad amount":         `{"message":"Payment details","status":"success","data":{"status":"success","tx_ref":"txn-1","amount":"lots"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, body)
			})
			v, err := c.VerifyPayment(context.Background(), "txn-1")
			assert.ErrorIs(t, err, ErrUnavailable)
			assert.Nil(t, v, "the envelope status must not stand in for the payment status")
		})
	}
}

func TestTransfers(t *testing.T) {
	var got TransferRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/transfers":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			writeJSON(w, http.StatusOK, `{"message":"Transfer Queued Successfully","status":"success","data":"Transfer Queued Successfully"}`)
		case "/v1/transfers/verify/withdraw-1":
			writeJSON(w, http.StatusOK, `{"message":"Transfer details","status":"success","data":{"status":"success","reference":"withdraw-1","amount":50}}`)
		default:
			http.NotFound(w, r)
		}
	})

	receipt, err := c.InitializeTransfer(context.Background(), TransferRequest{Reference: "withdraw-1", Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)
	assert.True(t, receipt.Accepted)
	assert.Equal(t, "Transfer Queued Successfully", receipt.Message)
	assert.Equal(t, "https://cashier.test/transactions/withdraw/callback", got.CallbackURL)

	v, err := c.VerifyTransfer(context.Background(), "withdraw-1")
	require.NoError(t, err)
	assert.True(t, v.Succeeded())
	assert.Equal(t, "withdraw-1", v.Reference)
}

func TestTransferRejected(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"message":"Insufficient Balance","status":"failed","data":null}`)
	})
	receipt, err := c.InitializeTransfer(context.Background(), TransferRequest{Reference: "withdraw-1"})
	assert.ErrorIs(t, err, ErrRejected)
	require.NotNil(t, receipt)
	assert.False(t, receipt.Accepted)
	assert.Equal(t, "Insufficient Balance", receipt.Message)
}

func TestListBanks(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/banks", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"message":"Banks retrieved","data":[{"id":656,"slug":"awash_bank","swift":"AWINETAA","name":"Awash Bank","acct_length":14,"is_mobilemoney":null,"currency":"ETB"}]}`)
	})
	banks, err := c.ListBanks(context.Background())
	require.NoError(t, err)
	require.Len(t, banks, 1)
	assert.Equal(t, "Awash Bank", banks[0].Name)
	assert.Equal(t, json.Number("656"), banks[0].ID)
	assert.Equal(t, 14, banks[0].AccountLength)
}
