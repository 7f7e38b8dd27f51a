package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/cleanupusers/internal/middleware"
	"github.com/hitoshi/cleanupusers/internal/model"
)

// healthCheckTimeout はDB疎通確認のタイムアウト。
const healthCheckTimeout = 3 * time.Second

// HealthChecker はDB接続の疎通確認を行う。*sqlx.DB が満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	checker HealthChecker
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

type healthResponse struct {
	Status string `json:"status"`
}

// Health はDBへ疎通できれば200を返す。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.checker != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := h.checker.PingContext(ctx); err != nil {
			middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
				Code:     "DATABASE_UNAVAILABLE",
				Message:  "データベースに接続できません。",
				Category: "system",
				Action:   "DATABASE_URLの接続先とデータベースの状態を確認してください。",
			})
			return
		}
	}

	middleware.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
