package converter

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"time"
)

// DefaultRunTimeout は外部コマンドの既定の実行時間上限。
const DefaultRunTimeout = 5 * time.Minute

// Runner は外部の変換ツールを実行する。
type Runner struct {
	workDir string
	timeout time.Duration
	logger  *slog.Logger
}

// NewRunner はRunnerを生成する。timeoutが0以下の場合はDefaultRunTimeoutを使用する。
func NewRunner(workDir string, timeout time.Duration, logger *slog.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &Runner{workDir: workDir, timeout: timeout, logger: logger}
}

// Run は実行ファイルを引数付きで実行し、成否と標準出力/標準エラーを結合した出力を返す。
// 実行に失敗してもエラーは返さず、false とログで報告する。
func (r *Runner) Run(ctx context.Context, binaryPath string, args []string) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.logger.Debug("外部コマンドを実行します",
		slog.String("cmd", binaryPath),
		slog.Any("args", args),
		slog.String("workdir", r.workDir),
	)

	start := time.Now()
	c := exec.CommandContext(ctx, binaryPath, args...)
	c.Dir = r.workDir

	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out

	if err := c.Run(); err != nil {
		r.logger.Error("外部コマンドの実行に失敗しました",
			slog.String("cmd", binaryPath),
			slog.String("error", err.Error()),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
		return false, out.String()
	}

	r.logger.Info("外部コマンドが完了しました",
		slog.String("cmd", binaryPath),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return true, out.String()
}
