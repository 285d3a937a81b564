package validate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hitoshi/sublink/internal/linklist"
)

// FileReport はソースリンクファイル検証1回分の結果。
type FileReport struct {
	RunID   string
	Total   int // プローブしたURL数
	Alive   int
	Dropped int // 空行を含む、削除された行数
}

// ValidateFile はソースリンクファイルを読み込み、全URLをプローブして
// 生存した行だけを元の順序・元の改行文字のまま書き戻す。
// 空行はプローブせずに削除する。
func (v *Validator) ValidateFile(ctx context.Context, path string) (*FileReport, error) {
	runID := uuid.NewString()
	rv := *v
	rv.logger = v.logger.With(slog.String("run_id", runID), slog.String("path", path))

	lines, err := linklist.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read link list: %w", err)
	}

	// プローブ対象の行インデックスを保持し、結果を元の行に対応付ける
	targets := make([]int, 0, len(lines))
	urls := make([]string, 0, len(lines))
	for i, l := range lines {
		if l.Blank() {
			continue
		}
		targets = append(targets, i)
		urls = append(urls, l.URL)
	}

	records := rv.ValidateRecords(ctx, urls)

	survivors := make([]linklist.Line, 0, len(records))
	for _, rec := range records {
		if rec.Alive {
			survivors = append(survivors, lines[targets[rec.Index]])
		}
	}

	if err := ctx.Err(); err != nil {
		// 中断された場合は生存判定が不完全なため書き戻さない
		rv.logger.Warn("検証が中断されたためリンクファイルを更新しません",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("validation interrupted: %w", err)
	}

	if err := linklist.WriteAtomic(path, survivors); err != nil {
		return nil, fmt.Errorf("failed to write link list: %w", err)
	}

	report := &FileReport{
		RunID:   runID,
		Total:   len(urls),
		Alive:   len(survivors),
		Dropped: len(lines) - len(survivors),
	}

	rv.logger.Info("リンクファイルを更新しました",
		slog.Int("total", report.Total),
		slog.Int("alive", report.Alive),
		slog.Int("dropped", report.Dropped),
	)

	return report, nil
}
