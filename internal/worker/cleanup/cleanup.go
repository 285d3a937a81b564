// Package cleanup は保持期限を超過した購読の削除ジョブを提供する。
// 削除判定はlifecycleパッケージに委ね、このジョブはログ出力または削除の方針だけを持つ。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/sublink/internal/lifecycle"
	"github.com/hitoshi/sublink/internal/metrics"
	"github.com/hitoshi/sublink/internal/repository"
)

// Mode は削除対象の購読に対する動作。
type Mode string

const (
	// ModeLog は削除対象をログに出力するだけで、ストアは変更しない。
	ModeLog Mode = "log"
	// ModeRemove は削除対象をストアから削除して保存する。
	ModeRemove Mode = "remove"
)

// ParseMode は文字列からModeを解析する。
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLog, ModeRemove:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown prune mode: %q (expected log or remove)", s)
	}
}

// PruneJob は保持期限を超過した購読の削除ジョブ。
// 冪等: 削除対象がない場合でもエラーにならない。
type PruneJob struct {
	store   repository.SubscriptionStore
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	Mode    Mode // 削除対象への動作（デフォルト: log）
	now     func() time.Time
}

// NewPruneJob は新しいPruneJobを生成する。
// デフォルトのモードはlog。
func NewPruneJob(store repository.SubscriptionStore, logger *slog.Logger, collector metrics.MetricsCollector) *PruneJob {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &PruneJob{
		store:   store,
		logger:  logger,
		metrics: collector,
		Mode:    ModeLog,
		now:     time.Now,
	}
}

// Run は削除対象の購読を判定し、モードに応じてログ出力または削除を行う。
// 戻り値は削除対象の件数（logモードでも同じ件数を返す）。
func (j *PruneJob) Run(ctx context.Context) (int, error) {
	start := time.Now()

	if locker, ok := j.store.(repository.Locker); ok {
		unlock, err := locker.Lock(ctx)
		if err != nil {
			return 0, fmt.Errorf("購読ストアのロック取得に失敗: %w", err)
		}
		defer unlock()
	}

	store := j.store.Load(ctx)
	now := j.now()
	eligible := lifecycle.Prunable(store, now)

	for _, sub := range eligible {
		j.logger.Info("保持期限を超過した購読です",
			slog.String("url", sub.URL),
			slog.String("origin", sub.Origin),
			slog.Int("failure_count", sub.FailureCount),
			slog.Time("first_failure", *sub.FirstFailure),
			slog.String("mode", string(j.Mode)),
		)
	}

	if j.Mode == ModeRemove && len(eligible) > 0 {
		for _, sub := range eligible {
			store.Remove(sub.URL)
		}
		if err := j.store.Save(ctx, store); err != nil {
			j.logger.Error("購読削除ジョブの保存に失敗しました",
				slog.String("error", err.Error()),
			)
			return 0, fmt.Errorf("購読削除の保存に失敗: %w", err)
		}
		j.metrics.RecordPruned(len(eligible))
	}

	duration := time.Since(start)
	j.logger.Info("購読削除ジョブが完了しました",
		slog.Int("eligible_count", len(eligible)),
		slog.Int("remaining", store.Len()),
		slog.String("mode", string(j.Mode)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return len(eligible), nil
}
