package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/sublink/internal/middleware"
)

// HealthChecker はストアのバックエンドへの疎通確認インターフェース。
// *sql.DB はこのインターフェースを満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// healthCheckTimeout は疎通確認の制限時間。
const healthCheckTimeout = 3 * time.Second

// HealthHandler はGET /health を処理する。
// checkerがnilの場合（ファイルストア）は常にokを返す。
type HealthHandler struct {
	checker HealthChecker
	logger  *slog.Logger
}

// NewHealthHandler は新しいHealthHandlerを生成する。
func NewHealthHandler(checker HealthChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checker: checker, logger: logger}
}

// ServeHTTP はhttp.Handlerを実装する。
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.checker != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := h.checker.PingContext(ctx); err != nil {
			h.logger.Warn("ヘルスチェックでストアに接続できません",
				slog.String("error", err.Error()),
			)
			middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
