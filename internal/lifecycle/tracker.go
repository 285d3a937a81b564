package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/sublink/internal/metrics"
	"github.com/hitoshi/sublink/internal/model"
	"github.com/hitoshi/sublink/internal/repository"
)

// BatchValidator は複数URLを並列にプローブし、入力ごとの結果を返すインターフェース。
type BatchValidator interface {
	ValidateRecords(ctx context.Context, urls []string) []model.LinkRecord
}

// SourceLoader は追跡対象の購読ソース一覧を返すインターフェース。
type SourceLoader interface {
	Load() ([]model.Source, error)
}

// CycleReport は追跡サイクル1回分の集計結果。
type CycleReport struct {
	Checked  int
	Healthy  int
	Failing  int
	Added    int
	Prunable int
}

// Tracker は購読ストアの読み込み、全購読のプローブ、状態更新、保存を1サイクルとして実行する。
// 状態の更新と保存はサイクル内で逐次に行い、並列化するのはプローブのみ。
type Tracker struct {
	store     repository.SubscriptionStore
	validator BatchValidator
	sources   SourceLoader
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewTracker はTrackerの新しいインスタンスを生成する。
// sourcesがnilの場合は新規購読の登録を行わない。
func NewTracker(
	store repository.SubscriptionStore,
	validator BatchValidator,
	sources SourceLoader,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *Tracker {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Tracker{
		store:     store,
		validator: validator,
		sources:   sources,
		logger:    logger,
		metrics:   collector,
		now:       time.Now,
	}
}

// RunOnce は追跡サイクルを1回実行する。
// ストアがLockerを実装している場合は、読み込みから保存までロックを保持する。
// コンテキストがキャンセルされた場合はプローブ結果が不完全なため保存しない。
func (t *Tracker) RunOnce(ctx context.Context) (*CycleReport, error) {
	start := time.Now()

	if locker, ok := t.store.(repository.Locker); ok {
		unlock, err := locker.Lock(ctx)
		if err != nil {
			return nil, fmt.Errorf("購読ストアのロック取得に失敗: %w", err)
		}
		defer unlock()
	}

	store := t.store.Load(ctx)
	report := &CycleReport{}
	report.Added = t.registerSources(store)

	if store.Len() == 0 {
		t.logger.Info("追跡対象の購読はありません")
		t.metrics.RecordSubscriptionStates(0, 0, 0)
		return report, nil
	}

	urls := make([]string, store.Len())
	for i, sub := range store.Subscriptions {
		urls[i] = sub.URL
	}

	t.logger.Info("追跡サイクルを開始します",
		slog.Int("subscription_count", len(urls)),
		slog.Int("added", report.Added),
	)

	records := t.validator.ValidateRecords(ctx, urls)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("追跡サイクルが中断されました: %w", err)
	}

	now := t.now()
	for _, rec := range records {
		UpdateAt(store.Subscriptions[rec.Index], rec.Alive, now)
	}
	report.Checked = len(records)

	for _, sub := range store.Subscriptions {
		switch StateOf(sub) {
		case StateHealthy:
			report.Healthy++
		case StateFailing:
			report.Failing++
		}
		if EligibleForPruning(sub, sub.Origin, now) {
			report.Prunable++
		}
	}

	if err := t.store.Save(ctx, store); err != nil {
		t.logger.Error("購読ストアの保存に失敗しました",
			slog.String("error", err.Error()),
		)
		return report, fmt.Errorf("購読ストアの保存に失敗: %w", err)
	}

	t.metrics.RecordSubscriptionStates(report.Healthy, report.Failing, report.Prunable)

	t.logger.Info("追跡サイクルが完了しました",
		slog.Int("checked", report.Checked),
		slog.Int("healthy", report.Healthy),
		slog.Int("failing", report.Failing),
		slog.Int("prunable", report.Prunable),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return report, nil
}

// registerSources はソース一覧のうちストアに未登録のURLを初期状態で追加し、追加件数を返す。
// ソースの読み込みに失敗した場合はログを出力し、登録済みの購読だけで続行する。
func (t *Tracker) registerSources(store *model.SubscriptionStore) int {
	if t.sources == nil {
		return 0
	}

	list, err := t.sources.Load()
	if err != nil {
		t.logger.Warn("購読ソースの読み込みに失敗したため登録済みの購読のみを追跡します",
			slog.String("error", err.Error()),
		)
		return 0
	}

	added := 0
	for _, src := range list {
		origin := src.Origin
		if origin != "" {
			if o, known := model.LookupOrigin(origin); known {
				origin = o.Name
			} else {
				t.logger.Debug("未知の発見元のため保持期限は無制限として扱います",
					slog.String("url", src.URL),
					slog.String("origin", origin),
				)
			}
		}

		if _, created := store.Ensure(src.URL, origin); created {
			added++
		}
	}
	return added
}
