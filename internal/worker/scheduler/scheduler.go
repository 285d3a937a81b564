// Package scheduler はworkerモードの定期実行ループを提供する。
// 登録されたジョブを1ティックごとに登録順で逐次実行する。
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Job は定期実行するジョブ。
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler はジョブの定期実行を行う。
// 同一プロセス内でジョブ同士が重なって実行されることはない。
type Scheduler struct {
	jobs   []Job
	logger *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(logger *slog.Logger, jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs:   jobs,
		logger: logger,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("job_count", len(s.jobs)),
	)

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("スケジューラを停止しました")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("定期実行サイクルでエラーが発生しました",
			slog.String("error", err.Error()),
		)
	}
}

// RunOnce は全ジョブを登録順に1回ずつ実行する。
// あるジョブが失敗しても後続のジョブは実行し、失敗はまとめて返す。
// コンテキストがキャンセルされた場合は残りのジョブを実行しない。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	var errs []error

	for _, job := range s.jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		jobStart := time.Now()
		if err := job.Run(ctx); err != nil {
			s.logger.Error("ジョブの実行に失敗しました",
				slog.String("job", job.Name),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", job.Name, err))
			continue
		}

		s.logger.Info("ジョブが完了しました",
			slog.String("job", job.Name),
			slog.Float64("duration_ms", float64(time.Since(jobStart).Milliseconds())),
		)
	}

	s.logger.Info("定期実行サイクルが完了しました",
		slog.Int("job_count", len(s.jobs)),
		slog.Int("failed", len(errs)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return errors.Join(errs...)
}
