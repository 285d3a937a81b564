package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sublink/internal/middleware"
	"github.com/hitoshi/sublink/internal/model"
)

type originResponse struct {
	Name       string `json:"name"`
	ExpireDays int    `json:"expire_days"`
	Unbounded  bool   `json:"unbounded"`
}

// OriginHandler は発見元カテゴリのエンドポイントを提供する。
type OriginHandler struct{}

// NewOriginHandler は新しいOriginHandlerを生成する。
func NewOriginHandler() *OriginHandler {
	return &OriginHandler{}
}

// ListOrigins はGET /api/origins を処理する。
func (h *OriginHandler) ListOrigins(w http.ResponseWriter, r *http.Request) {
	origins := model.Origins()
	list := make([]originResponse, 0, len(origins))
	for _, o := range origins {
		list = append(list, toOriginResponse(o))
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"origins": list})
}

// GetOrigin はGET /api/origins/{name} を処理する。
// 名前は大文字小文字を区別しない。
func (h *OriginHandler) GetOrigin(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	o, ok := model.LookupOrigin(name)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewOriginNotFoundError(name))
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toOriginResponse(o))
}

func toOriginResponse(o model.Origin) originResponse {
	return originResponse{Name: o.Name, ExpireDays: o.ExpireDays, Unbounded: o.Unbounded()}
}
