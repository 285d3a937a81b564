package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// resetInit はテストごとにInitの状態を初期化する。
func resetInit(t *testing.T) {
	t.Helper()
	prev := slog.Default()
	initOnce = sync.Once{}
	initErr = nil
	logFile = nil
	t.Cleanup(func() {
		Close()
		slog.SetDefault(prev)
		initOnce = sync.Once{}
		initErr = nil
		logFile = nil
	})
}

func TestSetup_ReturnsJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	if l == nil {
		t.Fatal("expected non-nil logger")
	}

	l.Info("test message", slog.String("key", "value"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}

	if entry["msg"] != "test message" {
		t.Errorf("msg = %q, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %q, want %q", entry["key"], "value")
	}
}

func TestSetup_IncludesTimeLevelAndSource(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	l.Warn("warning test")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in JSON log output")
	}
	if entry["level"] != "WARN" {
		t.Errorf("level = %q, want %q", entry["level"], "WARN")
	}
	source, ok := entry["source"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected 'source' object in JSON log output: %s", buf.String())
	}
	if file, _ := source["file"].(string); !strings.HasSuffix(file, "logger_test.go") {
		t.Errorf("source.file = %q, want logger_test.go", file)
	}
}

func TestSetup_DebugIsFiltered(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf)

	l.Debug("debug message")

	if buf.Len() != 0 {
		t.Errorf("DEBUGレベルのログが出力されました: %s", buf.String())
	}
}

func TestInit_WritesToWriterAndFile(t *testing.T) {
	resetInit(t)
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "sublink.log")

	l, err := Init(&buf, path)
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}

	l.Info("probe failed", slog.String("url", "https://example.com/sub"))

	if !strings.Contains(buf.String(), "probe failed") {
		t.Errorf("writerに出力されていません: %s", buf.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ログファイルの読み込みに失敗: %v", err)
	}
	if !strings.Contains(string(data), "probe failed") {
		t.Errorf("ログファイルに出力されていません: %s", data)
	}
}

func TestInit_OnlyOnce(t *testing.T) {
	resetInit(t)
	var first, second bytes.Buffer

	l1, _ := Init(&first, "")
	l2, _ := Init(&second, "")

	if l1 != l2 {
		t.Error("2回目のInitで別のロガーが返されました")
	}

	slog.Info("hello")

	if !strings.Contains(first.String(), "hello") {
		t.Error("初回のwriterに出力されていません")
	}
	if second.Len() != 0 {
		t.Error("2回目のInitで出力先が変更されました")
	}
}

func TestInit_UnwritableFileFallsBackToWriter(t *testing.T) {
	resetInit(t)
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "missing-dir", "sublink.log")

	l, err := Init(&buf, path)
	if err == nil {
		t.Fatal("存在しないディレクトリでエラーが返されませんでした")
	}
	if l == nil {
		t.Fatal("エラー時もロガーは返されるべきです")
	}

	l.Info("still logging")
	if !strings.Contains(buf.String(), "still logging") {
		t.Errorf("writerへのフォールバックが機能していません: %s", buf.String())
	}
}
