package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hitoshi/sublink/internal/filelock"
	"github.com/hitoshi/sublink/internal/linklist"
	"github.com/hitoshi/sublink/internal/model"
)

const (
	// DefaultLockTimeout はロック取得の既定の待ち時間。
	DefaultLockTimeout = filelock.DefaultTimeout
	// lockRetryDelay はロック取得の再試行間隔。
	lockRetryDelay = 100 * time.Millisecond
)

// FileSubscriptionStore はJSONファイルを使用した購読ストア。
// 書き込みは一時ファイル経由のリネームで行うため、読み手が書きかけの内容を見ることはない。
type FileSubscriptionStore struct {
	path        string
	lockPath    string
	lockTimeout time.Duration
	logger      *slog.Logger
}

// NewFileSubscriptionStore はFileSubscriptionStoreを生成する。
// lockTimeoutが0以下の場合はDefaultLockTimeoutを使用する。
func NewFileSubscriptionStore(path string, lockTimeout time.Duration, logger *slog.Logger) *FileSubscriptionStore {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &FileSubscriptionStore{
		path:        path,
		lockPath:    path + ".lock",
		lockTimeout: lockTimeout,
		logger:      logger,
	}
}

// Path はストアファイルのパスを返す。
func (s *FileSubscriptionStore) Path() string {
	return s.path
}

// Load はストアファイルを読み込む。
// ファイルが存在しない、空、または壊れている場合は空のストアを返す。
func (s *FileSubscriptionStore) Load(ctx context.Context) *model.SubscriptionStore {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("購読ストアファイルが存在しないため空の状態で開始します",
			slog.String("path", s.path),
		)
		return model.NewSubscriptionStore()
	}
	if err != nil {
		s.logger.Error("購読ストアファイルの読み込みに失敗しました",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return model.NewSubscriptionStore()
	}

	if len(bytes.TrimSpace(data)) == 0 {
		s.logger.Warn("購読ストアファイルが空のため空の状態で開始します",
			slog.String("path", s.path),
		)
		return model.NewSubscriptionStore()
	}

	store := model.NewSubscriptionStore()
	if err := json.Unmarshal(data, store); err != nil {
		s.logger.Error("購読ストアファイルの解析に失敗したため空の状態で開始します",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return model.NewSubscriptionStore()
	}
	store.Subscriptions = s.dropInvalid(store.Subscriptions)

	return store
}

// dropInvalid はnullやURLが空のエントリを取り除く。取り除いた件数はログに残す。
func (s *FileSubscriptionStore) dropInvalid(subs []*model.Subscription) []*model.Subscription {
	valid := make([]*model.Subscription, 0, len(subs))
	for _, sub := range subs {
		if sub == nil || strings.TrimSpace(sub.URL) == "" {
			continue
		}
		valid = append(valid, sub)
	}

	if dropped := len(subs) - len(valid); dropped > 0 {
		s.logger.Warn("購読ストアファイルの不正なエントリを無視します",
			slog.String("path", s.path),
			slog.Int("dropped", dropped),
		)
	}
	return valid
}

// Save はストア全体をJSONで書き込む。
func (s *FileSubscriptionStore) Save(ctx context.Context, store *model.SubscriptionStore) error {
	if store.Subscriptions == nil {
		store.Subscriptions = []*model.Subscription{}
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("購読ストアのシリアライズに失敗しました: %w", err)
	}
	data = append(data, '\n')

	if err := linklist.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("購読ストアの書き込みに失敗しました: %w", err)
	}
	return nil
}

// Lock は<path>.lockに対する協調的なファイルロックを取得する。
// lockTimeout以内に取得できない場合はErrLockTimeoutを返す。
func (s *FileSubscriptionStore) Lock(ctx context.Context) (func(), error) {
	return filelock.Acquire(ctx, s.lockPath, s.lockTimeout)
}
