package sources

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileLoader_Load_MissingFile(t *testing.T) {
	l := NewFileLoader(filepath.Join(t.TempDir(), "missing.yaml"))

	list, err := l.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("len(list) = %d, want 0", len(list))
	}
}

func TestFileLoader_Load_EmptyPath(t *testing.T) {
	list, err := NewFileLoader("").Load()
	if err != nil || len(list) != 0 {
		t.Errorf("Load() = %v, %v, want empty, nil", list, err)
	}
}

func TestFileLoader_Load_ParsesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	data := `subscriptions:
  - url: https://a.example/sub
    origin: TELEGRAM
  - url: " https://b.example/sub "
  - url: ""
    origin: GITHUB
  - url: https://a.example/sub
    origin: REPO
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	list, err := NewFileLoader(path).Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len(list) = %d, want 2: %+v", len(list), list)
	}
	if list[0].URL != "https://a.example/sub" || list[0].Origin != "TELEGRAM" {
		t.Errorf("list[0] = %+v", list[0])
	}
	if list[1].URL != "https://b.example/sub" || list[1].Origin != "" {
		t.Errorf("list[1] = %+v", list[1])
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("subscriptions: [")); err == nil {
		t.Error("不正なYAMLでエラーが返されませんでした")
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	list, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("len(list) = %d, want 0", len(list))
	}
}
