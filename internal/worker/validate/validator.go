// Package validate はURLリストの並列生存確認（バッチ検証）を提供する。
// 最大並列数を制限したワーカープールで各URLをプローブし、生存したURLのみを残す。
package validate

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/sublink/internal/metrics"
	"github.com/hitoshi/sublink/internal/model"
)

// MaxConcurrency は同時に実行中のプローブ数の上限。
// 設定値がこれを超える場合でもこの値に切り詰める。
const MaxConcurrency = 20

// LinkProber は単一URLのプローブを行うインターフェース。
type LinkProber interface {
	// Probe はURLが生存していれば true を返す。エラーは返さない。
	Probe(ctx context.Context, rawURL string) bool
}

// Validator はURLリストを並列にプローブし、生存したURLを返す。
type Validator struct {
	prober         LinkProber
	logger         *slog.Logger
	metrics        metrics.MetricsCollector
	maxConcurrency int
}

// NewValidator はValidatorの新しいインスタンスを生成する。
// maxConcurrencyが0以下またはMaxConcurrencyを超える場合はMaxConcurrencyを使用する。
func NewValidator(
	prober LinkProber,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
	maxConcurrency int,
) *Validator {
	if maxConcurrency <= 0 || maxConcurrency > MaxConcurrency {
		maxConcurrency = MaxConcurrency
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Validator{
		prober:         prober,
		logger:         logger,
		metrics:        collector,
		maxConcurrency: maxConcurrency,
	}
}

// MaxConcurrency は実際に使用する最大並列数を返す。
func (v *Validator) MaxConcurrency() int {
	return v.maxConcurrency
}

// ValidateAll は全URLをプローブし、生存したURLを完了順で返す。
// 入力の重複は除去せず、それぞれ独立にプローブする。
// 全プローブが完了するまでブロックする。
func (v *Validator) ValidateAll(ctx context.Context, urls []string) []string {
	alive := make([]string, 0, len(urls))
	var mu sync.Mutex

	v.run(ctx, urls, func(rec model.LinkRecord) {
		if !rec.Alive {
			return
		}
		mu.Lock()
		alive = append(alive, rec.URL)
		mu.Unlock()
	})

	return alive
}

// ValidateRecords は全URLをプローブし、入力と同じ順序・件数のLinkRecordを返す。
func (v *Validator) ValidateRecords(ctx context.Context, urls []string) []model.LinkRecord {
	records := make([]model.LinkRecord, len(urls))

	// 各goroutineは自分のインデックスにのみ書き込むためロック不要
	v.run(ctx, urls, func(rec model.LinkRecord) {
		records[rec.Index] = rec
	})

	return records
}

// run はsemaphore付きのerrgroupでプローブを並列実行し、完了ごとにcollectを呼ぶ。
func (v *Validator) run(ctx context.Context, urls []string, collect func(model.LinkRecord)) {
	start := time.Now()

	if len(urls) == 0 {
		v.logger.Info("検証対象のURLはありません")
		return
	}

	v.logger.Info("バッチ検証を開始します",
		slog.Int("url_count", len(urls)),
		slog.Int("max_concurrency", v.maxConcurrency),
	)

	var g errgroup.Group
	g.SetLimit(v.maxConcurrency)

	var (
		mu         sync.Mutex
		aliveCount int
	)

	for i, u := range urls {
		i, u := i, u
		// 上限に達している場合、空きが出るまでGoがブロックする
		g.Go(func() error {
			rec := model.LinkRecord{Index: i, URL: u, Alive: v.safeProbe(ctx, u)}
			if rec.Alive {
				mu.Lock()
				aliveCount++
				mu.Unlock()
			}
			collect(rec)
			return nil
		})
	}

	// プローブは常にnilを返すためエラーは発生しない
	_ = g.Wait()

	v.metrics.RecordBatch(len(urls), aliveCount)

	duration := time.Since(start)
	v.logger.Info("バッチ検証が完了しました",
		slog.Int("url_count", len(urls)),
		slog.Int("alive_count", aliveCount),
		slog.Int("dead_count", len(urls)-aliveCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
}

// safeProbe はプローブ中のpanicを回収し、そのURLを不合格として扱う。
// 1件のpanicでバッチ全体が中断されることはない。
func (v *Validator) safeProbe(ctx context.Context, rawURL string) (alive bool) {
	defer func() {
		if rec := recover(); rec != nil {
			v.metrics.RecordProbe(metrics.ResultPanic, 0)
			v.logger.Error("プローブ中に予期しないpanicが発生しました",
				slog.String("url", rawURL),
				slog.String("panic", fmt.Sprint(rec)),
				slog.String("stack", string(debug.Stack())),
			)
			alive = false
		}
	}()
	return v.prober.Probe(ctx, rawURL)
}
