package gateway

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

const statusSuccess = "success"

type PaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Email         string          `json:"email"`
	FirstName     string          `json:"first_name"`
	LastName      string          `json:"last_name"`
	PhoneNumber   string          `json:"phone_number"`
	TxRef         string          `json:"tx_ref"`
	CallbackURL   string          `json:"callback_url,omitempty"`
	ReturnURL     string          `json:"return_url,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
}

type Checkout struct {
	CheckoutURL string `json:"checkout_url"`
}

type TransferRequest struct {
	AccountName   string          `json:"account_name"`
	AccountNumber string          `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Email         string          `json:"email,omitempty"`
	PhoneNumber   string          `json:"phone_number,omitempty"`
	Reference     string          `json:"reference"`
	BankCode      string          `json:"bank_code"`
	CallbackURL   string          `json:"callback_url,omitempty"`
}

// TransferReceipt is the synchronous answer to a payout request. Accepted
// only means the payout was queued.
type TransferReceipt struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// Verification is the processor's authoritative view of a payment or payout.
type Verification struct {
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Message   string          `json:"message"`
}

func (v *Verification) Succeeded() bool {
	return v != nil && strings.EqualFold(v.Status, statusSuccess)
}

// Bank is a payout destination.
type Bank struct {
	ID            json.Number `json:"id"`
	Slug          string      `json:"slug"`
	Swift         string      `json:"swift"`
	Name          string      `json:"name"`
	AccountLength int         `json:"acct_length"`
	IsMobileMoney json.Number `json:"is_mobilemoney"`
	Currency      string      `json:"currency"`
}

// envelope is the shape of every processor response body.
type envelope struct {
	Message json.RawMessage `json:"message"`
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
}

// messageText flattens the message field, which is a string on most
// responses and an object of field errors on validation failures.
func (e envelope) messageText() string {
	if len(e.Message) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Message, &s); err == nil {
		return s
	}
	return string(e.Message)
}

type verifyData struct {
	Status    string          `json:"status"`
	TxRef     string          `json:"tx_ref"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}
