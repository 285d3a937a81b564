// Package filelock はプロセス間で協調する排他ファイルロックを提供する。
package filelock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

const (
	// DefaultTimeout はロック取得の既定の待ち時間。
	DefaultTimeout = 30 * time.Second
	// RetryDelay はロック取得の再試行間隔。
	RetryDelay = 100 * time.Millisecond
)

// ErrTimeout は排他ロックを制限時間内に取得できなかったことを表す。
var ErrTimeout = errors.New("timed out waiting for lock")

// Acquire はpathに対する排他ファイルロックを最大timeoutまで待って取得する。
// timeoutが0以下の場合はDefaultTimeoutを使用する。
// 返り値の関数でロックを解放する。
func Acquire(ctx context.Context, path string, timeout time.Duration) (func(), error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	fl := flock.New(path)

	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	locked, err := fl.TryLockContext(lockCtx, RetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, path)
		}
		return nil, fmt.Errorf("ロックの取得に失敗しました: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrTimeout, path)
	}

	return func() {
		_ = fl.Unlock()
	}, nil
}
