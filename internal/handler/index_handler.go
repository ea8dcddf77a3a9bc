package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/gatehouse/internal/middleware"
)

// HealthPinger はヘルスチェックが必要とするデータストア疎通確認のインターフェース。
type HealthPinger interface {
	Ping(ctx context.Context) error
}

// IndexHandler はトップページとヘルスチェックのHTTPハンドラー。
type IndexHandler struct {
	pinger HealthPinger
}

// NewIndexHandler はIndexHandlerを生成する。
func NewIndexHandler(pinger HealthPinger) *IndexHandler {
	return &IndexHandler{pinger: pinger}
}

// Greeting はトップページを返す。
// GET /
// ログイン済みならユーザー名入りの挨拶、匿名なら素の挨拶を返す。
func (h *IndexHandler) Greeting(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if user, ok := middleware.UserFromContext(r.Context()); ok {
		fmt.Fprintf(w, "hello, %s!\n", user.Name)
		return
	}
	fmt.Fprint(w, "hello!\n")
}

// Health はサービスの稼働状態を返す。
// GET /health
// データストアへの疎通が取れない場合は503を返す。
func (h *IndexHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := h.pinger.Ping(r.Context()); err != nil {
		slog.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "degraded"})
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
