// Package linklist は1行1URLのソースリンクファイルの読み書きを提供する。
// 各行は元の改行文字（\n、\r\n、または最終行の改行なし）を保持したまま扱う。
package linklist

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Line はソースリンクファイルの1行を表す。
type Line struct {
	// Raw は改行文字を含む元の行。
	Raw string
	// URL は前後の空白と改行を除いたURL。空行の場合は空文字。
	URL string
}

// Blank は空行（URLを含まない行）かを返す。
func (l Line) Blank() bool {
	return l.URL == ""
}

// Read はファイル全体を行単位で読み込む。
// ファイルが存在しない場合は空のスライスを返す。
func Read(path string) ([]Line, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return []Line{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open link list: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse はリーダーから行を読み込む。
func Parse(r io.Reader) ([]Line, error) {
	br := bufio.NewReader(r)
	lines := []Line{}

	for {
		raw, err := br.ReadString('\n')
		if raw != "" {
			lines = append(lines, Line{Raw: raw, URL: strings.TrimSpace(raw)})
		}
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read link list: %w", err)
		}
	}
}

// URLs は空行を除いた各行のURLを返す。
func URLs(lines []Line) []string {
	urls := make([]string, 0, len(lines))
	for _, l := range lines {
		if !l.Blank() {
			urls = append(urls, l.URL)
		}
	}
	return urls
}

// WriteAtomic は行を元の改行文字のまま書き出す。
// 同じディレクトリの一時ファイルに書き込んでからリネームするため、
// 読み手が書きかけの内容を見ることはない。
func WriteAtomic(path string, lines []Line) error {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l.Raw)
	}
	return WriteFileAtomic(path, buf.Bytes(), 0o644)
}

// WriteFileAtomic はdataを一時ファイル経由でpathに書き込む。
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
