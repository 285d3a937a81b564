// Package logger はプロセス全体で共有する構造化ロガーを提供する。
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	initOnce sync.Once
	initErr  error
	logFile  *os.File
)

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// 各行に時刻、レベル、ソース位置、メッセージを含む。
func Setup(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
	})
	return slog.New(handler)
}

// Init はグローバルロガーを1回だけ初期化し、slog.Defaultを返す。
// wとログファイルの両方に出力する。pathが空の場合はwのみに出力する。
// 2回目以降の呼び出しは何もせず、初回の結果を返す。
func Init(w io.Writer, path string) (*slog.Logger, error) {
	initOnce.Do(func() {
		if w == nil {
			w = os.Stdout
		}

		if path != "" {
			f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				initErr = fmt.Errorf("failed to open log file: %w", err)
				slog.SetDefault(Setup(w))
				return
			}
			logFile = f
			w = io.MultiWriter(w, f)
		}

		slog.SetDefault(Setup(w))
	})
	return slog.Default(), initErr
}

// Close はログファイルを閉じる。Initでファイルを開いていない場合は何もしない。
func Close() error {
	if logFile == nil {
		return nil
	}
	return logFile.Close()
}
