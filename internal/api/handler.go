package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"cashier_service/internal/gateway"
	"cashier_service/internal/player"
	"cashier_service/internal/transaction"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// Engine is the part of the transaction service the HTTP layer drives.
type Engine interface {
	Deposit(ctx context.Context, req transaction.DepositRequest) (*transaction.Transaction, error)
	Withdraw(ctx context.Context, req transaction.WithdrawRequest) (*transaction.Transaction, error)
	VerifyDeposit(ctx context.Context, payload []byte, signatures ...string) (*transaction.CallbackResult, error)
	VerifyWithdraw(ctx context.Context, payload []byte, signatures ...string) (*transaction.CallbackResult, error)
	RefundWithdrawal(ctx context.Context, ref, reason string) (*transaction.CallbackResult, error)
	ListPayoutDestinations(ctx context.Context) ([]gateway.Bank, error)
	GetTransaction(ctx context.Context, ref string) (*transaction.Transaction, error)
	ListPlayerTransactions(ctx context.Context, playerID string, from, to time.Time) ([]transaction.Transaction, error)
	Balance(ctx context.Context, playerID string) (*player.BalanceResponse, error)
	Subscribe(playerID string) (<-chan transaction.Update, func())
}

type Handler struct {
	engine    Engine
	heartbeat time.Duration
	now       func() time.Time
}

func NewHandler(engine Engine) *Handler {
	return &Handler{engine: engine, heartbeat: 15 * time.Second, now: time.Now}
}

func (h *Handler) Deposit(c *gin.Context) {
	var req transaction.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", transaction.ErrInvalidInput, err), false)
		return
	}
	tx, err := h.engine.Deposit(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, false)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":      "Payment initialized successfully",
		"checkout_url": tx.CheckoutURL,
		"transaction":  tx,
	})
}

func (h *Handler) Withdraw(c *gin.Context) {
	var req transaction.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", transaction.ErrInvalidInput, err), false)
		return
	}
	tx, err := h.engine.Withdraw(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, false)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":     "Withdrawal initiated successfully",
		"transaction": tx,
	})
}

// DepositCallback is the payment webhook.
func (h *Handler) DepositCallback(c *gin.Context) {
	h.callback(c, h.engine.VerifyDeposit)
}

// WithdrawCallback is the payout webhook.
func (h *Handler) WithdrawCallback(c *gin.Context) {
	h.callback(c, h.engine.VerifyWithdraw)
}

type verifyFunc func(ctx context.Context, payload []byte, signatures ...string) (*transaction.CallbackResult, error)

func (h *Handler) callback(c *gin.Context, verify verifyFunc) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		writeError(c, fmt.Errorf("%w: %v", transaction.ErrMalformedPayload, err), true)
		return
	}
	res, err := verify(c.Request.Context(), payload,
		c.GetHeader("Chapa-Signature"),
		c.GetHeader("X-Chapa-Signature"))
	if err != nil {
		writeError(c, err, true)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Banks(c *gin.Context) {
	banks, err := h.engine.ListPayoutDestinations(c.Request.Context())
	if err != nil {
		writeError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": banks})
}

func (h *Handler) GetTransaction(c *gin.Context) {
	tx, err := h.engine.GetTransaction(c.Request.Context(), c.Param("reference"))
	if err != nil {
		writeError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, tx)
}

// PlayerTransactions lists by calendar day; from and to default to today.
func (h *Handler) PlayerTransactions(c *gin.Context) {
	today := h.now().Format(dateLayout)
	from, err := time.ParseInLocation(dateLayout, c.DefaultQuery("from", today), time.Local)
	if err != nil {
		writeError(c, fmt.Errorf("%w: from: %v", transaction.ErrInvalidDateRange, err), false)
		return
	}
	to, err := time.ParseInLocation(dateLayout, c.DefaultQuery("to", today), time.Local)
	if err != nil {
		writeError(c, fmt.Errorf("%w: to: %v", transaction.ErrInvalidDateRange, err), false)
		return
	}

	txs, err := h.engine.ListPlayerTransactions(c.Request.Context(), c.Param("player_id"), from, to)
	if err != nil {
		writeError(c, err, false)
		return
	}
	if txs == nil {
		txs = []transaction.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"data": txs})
}

func (h *Handler) Balance(c *gin.Context) {
	b, err := h.engine.Balance(c.Request.Context(), c.Param("player_id"))
	if err != nil {
		writeError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, b)
}

type refundRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) Refund(c *gin.Context) {
	var req refundRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, fmt.Errorf("%w: %v", transaction.ErrInvalidInput, err), false)
			return
		}
	}
	res, err := h.engine.RefundWithdrawal(c.Request.Context(), c.Param("reference"), req.Reason)
	if err != nil {
		writeError(c, err, false)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Stream pushes the player's transaction updates as server-sent events.
func (h *Handler) Stream(c *gin.Context) {
	updates, cancel := h.engine.Subscribe(c.Param("player_id"))
	defer cancel()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case u, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("transaction", u)
			return true
		case <-ticker.C:
			c.SSEvent("ping", h.now().Unix())
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
