// Package repository は購読ライフサイクルストアの永続化を提供する。
// JSONファイルとPostgreSQLの2つのバックエンドを持つ。
package repository

import (
	"context"

	"github.com/hitoshi/sublink/internal/filelock"
	"github.com/hitoshi/sublink/internal/model"
)

// ErrLockTimeout は排他ロックを制限時間内に取得できなかったことを表す。
var ErrLockTimeout = filelock.ErrTimeout

// SubscriptionStore は購読集合全体の読み込み/書き込みインターフェース。
// 部分更新は提供せず、常に集合全体を置き換える。
type SubscriptionStore interface {
	// Load は永続化された購読集合を読み込む。
	// 状態が存在しない、空、または解析できない場合は空の集合を返し、エラーにはしない。
	Load(ctx context.Context) *model.SubscriptionStore

	// Save は購読集合全体を書き込み、以前の状態を置き換える。
	// 読み手が書きかけの状態を観測することはない。
	Save(ctx context.Context, store *model.SubscriptionStore) error
}

// Locker はload-mutate-saveサイクル全体の排他制御を提供する。
// 複数プロセスからの同時書き込みは、このロックを取得した場合のみ安全。
type Locker interface {
	// Lock は排他ロックを取得し、解放関数を返す。
	// 制限時間内に取得できない場合はErrLockTimeoutを返す。
	Lock(ctx context.Context) (unlock func(), err error)
}

// LockingStore はLockerを備えたSubscriptionStore。
type LockingStore interface {
	SubscriptionStore
	Locker
}
