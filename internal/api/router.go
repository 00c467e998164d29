package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	AdminToken string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	r.GET("/health", Health)
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	txs := r.Group("/transactions")
	{
		txs.POST("/deposit", h.Deposit)
		txs.POST("/callback", h.DepositCallback)
		txs.POST("/withdraw", h.Withdraw)
		txs.POST("/withdraw/callback", h.WithdrawCallback)
		txs.GET("/banks", h.Banks)
		txs.GET("/getBanks", h.Banks)
		txs.GET("/:reference", h.GetTransaction)
	}

	players := r.Group("/players/:player_id")
	{
		players.GET("/balance", h.Balance)
		players.GET("/transactions", h.PlayerTransactions)
		players.GET("/transactions/stream", h.Stream)
	}

	admin := r.Group("/admin")
	admin.Use(AdminOnly(cfg.AdminToken))
	{
		admin.POST("/transactions/:reference/refund", h.Refund)
	}

	return r
}
