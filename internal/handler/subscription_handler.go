package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/sublink/internal/lifecycle"
	"github.com/hitoshi/sublink/internal/middleware"
	"github.com/hitoshi/sublink/internal/model"
	"github.com/hitoshi/sublink/internal/repository"
)

// subscriptionResponse は購読APIのレスポンスJSON。
type subscriptionResponse struct {
	URL          string     `json:"url"`
	Origin       string     `json:"origin,omitempty"`
	State        string     `json:"state"`
	FailureCount int        `json:"failure_count"`
	LastSuccess  *time.Time `json:"last_success"`
	LastCheck    *time.Time `json:"last_check"`
	FirstFailure *time.Time `json:"first_failure"`
	ExpireDays   int        `json:"expire_days"`
	Prunable     bool       `json:"prunable"`
}

// subscriptionListResponse は購読一覧のレスポンスJSON。
type subscriptionListResponse struct {
	Subscriptions []subscriptionResponse `json:"subscriptions"`
	Total         int                    `json:"total"`
}

// SubscriptionHandler は購読ストアの参照系エンドポイントを提供する。
// ストアは読み込みのみ行い、ロックは取得しない。
type SubscriptionHandler struct {
	store repository.SubscriptionStore
	now   func() time.Time
}

// NewSubscriptionHandler は新しいSubscriptionHandlerを生成する。
func NewSubscriptionHandler(store repository.SubscriptionStore) *SubscriptionHandler {
	return &SubscriptionHandler{store: store, now: time.Now}
}

// ListSubscriptions はGET /api/subscriptions を処理する。
// 全購読を状態と削除対象フラグ付きでストアの順序のまま返す。
func (h *SubscriptionHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	store := h.store.Load(r.Context())
	now := h.now()

	list := make([]subscriptionResponse, 0, store.Len())
	for _, sub := range store.Subscriptions {
		list = append(list, toSubscriptionResponse(sub, now))
	}

	middleware.WriteJSON(w, http.StatusOK, subscriptionListResponse{
		Subscriptions: list,
		Total:         len(list),
	})
}

// ListPrunable はGET /api/subscriptions/prunable を処理する。
func (h *SubscriptionHandler) ListPrunable(w http.ResponseWriter, r *http.Request) {
	store := h.store.Load(r.Context())
	now := h.now()

	eligible := lifecycle.Prunable(store, now)
	list := make([]subscriptionResponse, 0, len(eligible))
	for _, sub := range eligible {
		list = append(list, toSubscriptionResponse(sub, now))
	}

	middleware.WriteJSON(w, http.StatusOK, subscriptionListResponse{
		Subscriptions: list,
		Total:         len(list),
	})
}

// LookupSubscription はGET /api/subscriptions/lookup?url=... を処理する。
func (h *SubscriptionHandler) LookupSubscription(w http.ResponseWriter, r *http.Request) {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("url パラメータが指定されていません"))
		return
	}

	sub := h.store.Load(r.Context()).Get(url)
	if sub == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewSubscriptionNotFoundError(url))
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toSubscriptionResponse(sub, h.now()))
}

func toSubscriptionResponse(sub *model.Subscription, now time.Time) subscriptionResponse {
	return subscriptionResponse{
		URL:          sub.URL,
		Origin:       sub.Origin,
		State:        string(lifecycle.StateOf(sub)),
		FailureCount: sub.FailureCount,
		LastSuccess:  sub.LastSuccess,
		LastCheck:    sub.LastCheck,
		FirstFailure: sub.FirstFailure,
		ExpireDays:   model.ExpiryDays(sub.Origin),
		Prunable:     lifecycle.EligibleForPruning(sub, sub.Origin, now),
	}
}
