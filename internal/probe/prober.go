// Package probe は単一URLの生存確認（プローブ）を提供する。
package probe

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/sublink/internal/metrics"
)

const (
	// DefaultTimeout はプローブ1回あたりの既定タイムアウト。
	DefaultTimeout = 10 * time.Second
	// DefaultMinBodySize は生存と判定するレスポンスボディの最小バイト数。
	// 空やブロックページのような極小ボディを除外する。
	DefaultMinBodySize = 10
	// DefaultMaxBodySize はボディ読み取りの上限バイト数。
	DefaultMaxBodySize int64 = 5 * 1024 * 1024
)

// HTTPDoer はHTTPリクエストを実行するインターフェース。
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// URLValidator は送信前にURLを検証するインターフェース（SSRF防止用）。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Options はProberの任意設定。ゼロ値の項目は既定値を使う。
type Options struct {
	Timeout     time.Duration
	MinBodySize int
	MaxBodySize int64
	// Validator が設定された場合、リクエスト前にURLを検証する。
	Validator URLValidator
	// Limiter が設定された場合、プローブ開始前にトークンを待つ。
	Limiter *rate.Limiter
	Metrics metrics.MetricsCollector
}

// Prober は1つのURLに対してGETを発行し、生存しているかを判定する。
// 共有状態を持たないため、複数のgoroutineから同時に呼び出してよい。
type Prober struct {
	client      HTTPDoer
	logger      *slog.Logger
	timeout     time.Duration
	minBodySize int
	maxBodySize int64
	validator   URLValidator
	limiter     *rate.Limiter
	metrics     metrics.MetricsCollector
}

// NewProber はProberの新しいインスタンスを生成する。
func NewProber(client HTTPDoer, logger *slog.Logger, opts Options) *Prober {
	p := &Prober{
		client:      client,
		logger:      logger,
		timeout:     opts.Timeout,
		minBodySize: opts.MinBodySize,
		maxBodySize: opts.MaxBodySize,
		validator:   opts.Validator,
		limiter:     opts.Limiter,
		metrics:     opts.Metrics,
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if p.minBodySize <= 0 {
		p.minBodySize = DefaultMinBodySize
	}
	if p.maxBodySize <= 0 {
		p.maxBodySize = DefaultMaxBodySize
	}
	if p.maxBodySize < int64(p.minBodySize) {
		p.maxBodySize = int64(p.minBodySize)
	}
	if p.metrics == nil {
		p.metrics = metrics.Nop{}
	}
	return p
}

// Timeout はプローブ1回あたりのタイムアウトを返す。
func (p *Prober) Timeout() time.Duration {
	return p.timeout
}

// Probe はURLにGETを発行し、ステータス200かつボディがMinBodySize以上なら true を返す。
// ネットワークエラー、タイムアウト、それ以外のステータス、短すぎるボディはすべて false。
// エラーを呼び出し元に返すことはなく、false の場合は診断ログを必ず1行だけ出力する。
func (p *Prober) Probe(ctx context.Context, rawURL string) bool {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if p.validator != nil {
		if err := p.validator.ValidateURL(rawURL); err != nil {
			p.fail(metrics.ResultBlocked, start, slog.LevelWarn, "URL検証によりプローブをブロックしました",
				slog.String("url", rawURL),
				slog.String("error", err.Error()),
			)
			return false
		}
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			p.fail(metrics.ResultNetwork, start, slog.LevelError, "プローブのレート制限待ちに失敗しました",
				slog.String("url", rawURL),
				slog.String("error", err.Error()),
			)
			return false
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		p.fail(metrics.ResultNetwork, start, slog.LevelError, "プローブのリクエスト作成に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return false
	}
	req.Header.Set("User-Agent", "Sublink/1.0 Link Validator")

	resp, err := p.client.Do(req)
	if err != nil {
		p.fail(metrics.ResultNetwork, start, slog.LevelError, "プローブのHTTPリクエストに失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// キープアライブのためにボディを少しだけ読み捨てる
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		p.fail(metrics.ResultBadStatus, start, slog.LevelWarn, "プローブが200以外のステータスを返しました",
			slog.String("url", rawURL),
			slog.Int("http_status", resp.StatusCode),
		)
		return false
	}

	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, p.maxBodySize))
	if err != nil {
		p.fail(metrics.ResultNetwork, start, slog.LevelError, "プローブのレスポンスボディ読み取りに失敗しました",
			slog.String("url", rawURL),
			slog.Int64("body_bytes", n),
			slog.String("error", err.Error()),
		)
		return false
	}

	if n < int64(p.minBodySize) {
		p.fail(metrics.ResultShortBody, start, slog.LevelWarn, "プローブのレスポンスボディが短すぎます",
			slog.String("url", rawURL),
			slog.Int64("body_bytes", n),
			slog.Int("min_body_bytes", p.minBodySize),
		)
		return false
	}

	p.metrics.RecordProbe(metrics.ResultAlive, time.Since(start))
	return true
}

// fail は失敗結果をメトリクスに記録し、診断ログを1行出力する。
func (p *Prober) fail(result string, start time.Time, level slog.Level, msg string, attrs ...any) {
	duration := time.Since(start)
	p.metrics.RecordProbe(result, duration)
	attrs = append(attrs, slog.Float64("duration_ms", float64(duration.Milliseconds())))
	p.logger.Log(context.Background(), level, msg, attrs...)
}
