// Package sources は追跡対象の購読ソース一覧（YAML）を読み込む。
package sources

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/sublink/internal/model"
)

// file はソースファイルのトップレベル構造。
type file struct {
	Subscriptions []model.Source `yaml:"subscriptions"`
}

// FileLoader はYAMLファイルから購読ソースを読み込む。
type FileLoader struct {
	path string
}

// NewFileLoader はFileLoaderを生成する。pathが空の場合、Loadは常に空を返す。
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

// Load はソース一覧を読み込む。
// ファイルが存在しない場合は空の一覧を返す。
// URLが空のエントリは除外し、同じURLは最初の出現のみを残す。
func (l *FileLoader) Load() ([]model.Source, error) {
	if l.path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	return Parse(data)
}

// Parse はYAMLのソース一覧を解析する。
func Parse(data []byte) ([]model.Source, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}

	seen := make(map[string]bool, len(f.Subscriptions))
	list := make([]model.Source, 0, len(f.Subscriptions))
	for _, src := range f.Subscriptions {
		src.URL = strings.TrimSpace(src.URL)
		src.Origin = strings.TrimSpace(src.Origin)
		if src.URL == "" || seen[src.URL] {
			continue
		}
		seen[src.URL] = true
		list = append(list, src)
	}

	return list, nil
}
