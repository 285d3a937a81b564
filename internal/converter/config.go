package converter

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hitoshi/sublink/internal/filelock"
)

// Pair は設定ファイルに追記するキーと値。
type Pair struct {
	Key   string
	Value string
}

// AppendConfig は設定ファイルに key=value 行を追記する。
// <path>.lock の排他ロックを最大timeoutまで待って取得し、成否にかかわらず解放する。
func AppendConfig(ctx context.Context, path string, pairs []Pair, timeout time.Duration) error {
	for _, p := range pairs {
		if p.Key == "" || strings.ContainsAny(p.Key, "=\r\n") || strings.ContainsAny(p.Value, "\r\n") {
			return fmt.Errorf("invalid config pair: %q=%q", p.Key, p.Value)
		}
	}

	unlock, err := filelock.Acquire(ctx, path+".lock", timeout)
	if err != nil {
		return fmt.Errorf("failed to lock config file: %w", err)
	}
	defer unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}

	var b strings.Builder
	for _, p := range pairs {
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(p.Value)
		b.WriteByte('\n')
	}

	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return fmt.Errorf("failed to append config: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close config file: %w", err)
	}
	return nil
}
