package gateway

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

	"go.uber.org/zap"
)

var (
	// ErrUnavailable covers network failures, timeouts and non-2xx answers.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrRejected is a 2xx answer whose status is not success.
	ErrRejected = errors.New("payment gateway rejected the request")
)

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return ErrUnavailable }

type Config struct {
	BaseURL             string
	SecretKey           string
	CallbackURL         string
	WithdrawCallbackURL string
	ReturnURL           string
	PaymentMethod       string
	Timeout             time.Duration
}

// Observer is told about every outbound call.
type Observer interface {
	ObserveGatewayCall(operation string, err error, elapsed time.Duration)
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
	observer   Observer
}

func NewClient(cfg Config, logger *zap.Logger, observer Observer) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		observer:   observer,
	}
}

// InitializePayment opens a hosted checkout for a deposit.
func (c *Client) InitializePayment(ctx context.Context, req PaymentRequest) (*Checkout, error) {
	if req.CallbackURL == "" {
		req.CallbackURL = c.cfg.CallbackURL
	}
	if req.ReturnURL == "" {
		req.ReturnURL = c.cfg.ReturnURL
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = c.cfg.PaymentMethod
	}

	env, err := c.do(ctx, "initialize_payment", http.MethodPost, "/v1/transaction/initialize", req)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(env.Status, statusSuccess) {
		return nil, fmt.Errorf("%w: %s", ErrRejected, env.messageText())
	}

	var checkout Checkout
	if err := json.Unmarshal(env.Data, &checkout); err != nil {
		return nil, fmt.Errorf("%w: malformed checkout response: %v", ErrUnavailable, err)
	}
	if checkout.CheckoutURL == "" {
		return nil, fmt.Errorf("%w: checkout url missing", ErrRejected)
	}
	return &checkout, nil
}

func (c *Client) VerifyPayment(ctx context.Context, reference string) (*Verification, error) {
	return c.verify(ctx, "verify_payment", "/v1/transaction/verify/"+url.PathEscape(reference), reference)
}

// InitializeTransfer queues a payout. A 2xx answer without success status
// is reported as ErrRejected.
func (c *Client) InitializeTransfer(ctx context.Context, req TransferRequest) (*TransferReceipt, error) {
	if req.CallbackURL == "" {
		req.CallbackURL = c.cfg.WithdrawCallbackURL
	}

	env, err := c.do(ctx, "initialize_transfer", http.MethodPost, "/v1/transfers", req)
	if err != nil {
		return nil, err
	}
	receipt := &TransferReceipt{
		Accepted: strings.EqualFold(env.Status, statusSuccess),
		Message:  env.messageText(),
	}
	if !receipt.Accepted {
		return receipt, fmt.Errorf("%w: %s", ErrRejected, receipt.Message)
	}
	return receipt, nil
}

func (c *Client) VerifyTransfer(ctx context.Context, reference string) (*Verification, error) {
	return c.verify(ctx, "verify_transfer", "/v1/transfers/verify/"+url.PathEscape(reference), reference)
}

// ListBanks returns the payout destinations the processor supports.
func (c *Client) ListBanks(ctx context.Context) ([]Bank, error) {
	env, err := c.do(ctx, "list_banks", http.MethodGet, "/v1/banks", nil)
	if err != nil {
		return nil, err
	}
	var banks []Bank
	if err := json.Unmarshal(env.Data, &banks); err != nil {
		return nil, fmt.Errorf("%w: malformed bank list: %v", ErrUnavailable, err)
	}
	return banks, nil
}

// verify resolves the status from the data object when present; the
// top-level status only says the lookup itself worked.
func (c *Client) verify(ctx context.Context, op, path, reference string) (*Verification, error) {
	env, err := c.do(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	v := &Verification{
		Status:    env.Status,
		Reference: reference,
		Message:   env.messageText(),
	}
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		var data verifyData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: %s: malformed verification data: %v", ErrUnavailable, op, err)
		}
		if data.Status != "" && strings.EqualFold(env.Status, statusSuccess) {
			v.Status = data.Status
		}
		if data.TxRef != "" {
			v.Reference = data.TxRef
		} else if data.Reference != "" {
			v.Reference = data.Reference
		}
		v.Amount = data.Amount
		v.Currency = data.Currency
	}
	return v, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body interface{}) (env envelope, err error) {
	started := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveGatewayCall(op, err, time.Since(started))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, mErr := json.Marshal(body)
		if mErr != nil {
			return env, fmt.Errorf("failed to encode %s request: %w", op, mErr)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return env, fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("gateway call failed",
			zap.String("operation", op),
			zap.Error(err))
		return env, fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return env, fmt.Errorf("%w: %s: reading response: %v", ErrUnavailable, op, err)
	}
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && env.messageText() != "" {
			msg = env.messageText()
		}
		c.logger.Warn("gateway returned error status",
			zap.String("operation", op),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return env, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return env, fmt.Errorf("%w: %s: malformed response: %v", ErrUnavailable, op, decodeErr)
	}
	return env, nil
}
