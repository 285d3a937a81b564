package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/hitoshi/sublink/internal/model"
)

// PostgresSubscriptionStoreがLockingStoreインターフェースを満たすことを検証
func TestPostgresSubscriptionStore_ImplementsInterface(t *testing.T) {
	var _ LockingStore = (*PostgresSubscriptionStore)(nil)
}

func TestNewPostgresSubscriptionStore_Initializes(t *testing.T) {
	s := NewPostgresSubscriptionStore(nil, 0, slog.Default())
	if s == nil {
		t.Fatal("expected non-nil store")
	}
	if s.lockTimeout != DefaultLockTimeout {
		t.Errorf("lockTimeout = %v, want %v", s.lockTimeout, DefaultLockTimeout)
	}
}

func TestNullTimeHelpers(t *testing.T) {
	if nt := nullTime(nil); nt.Valid {
		t.Error("nullTime(nil) should be invalid")
	}
	if got := nullTimeValue(sql.NullTime{}); got != nil {
		t.Errorf("nullTimeValue(invalid) = %v, want nil", got)
	}

	jst := time.FixedZone("JST", 9*60*60)
	v := time.Date(2024, 1, 1, 9, 0, 0, 0, jst)
	got := nullTimeValue(nullTime(&v))
	if got == nil || !got.Equal(v) || got.Location() != time.UTC {
		t.Errorf("nullTime round trip = %v, want %v in UTC", got, v)
	}
}

func TestNullStringHelpers(t *testing.T) {
	if ns := nullString(""); ns.Valid {
		t.Error(`nullString("") should be invalid`)
	}
	if got := nullStringValue(nullString("GITHUB")); got != "GITHUB" {
		t.Errorf("nullString round trip = %q, want %q", got, "GITHUB")
	}
}

// setupPostgresStore はTEST_DATABASE_URLで指定されたDBにsubscriptionsテーブルを作成する。
// 未設定または接続できない場合はスキップする。
func setupPostgresStore(t *testing.T, lockTimeout time.Duration) (*PostgresSubscriptionStore, *sql.DB) {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		DROP TABLE IF EXISTS subscriptions;
		CREATE TABLE subscriptions (
			url           TEXT PRIMARY KEY,
			position      INTEGER NOT NULL,
			origin        VARCHAR(32),
			last_success  TIMESTAMPTZ,
			last_check    TIMESTAMPTZ,
			failure_count INTEGER NOT NULL DEFAULT 0,
			first_failure TIMESTAMPTZ
		);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("テーブル作成に失敗: %v", err)
	}

	return NewPostgresSubscriptionStore(db, lockTimeout, slog.Default()), db
}

func TestPostgresSubscriptionStore_SaveAndLoad(t *testing.T) {
	s, _ := setupPostgresStore(t, time.Second)
	ctx := context.Background()

	ff := time.Date(2024, 5, 2, 8, 15, 30, 0, time.UTC)
	store := model.NewSubscriptionStore()
	store.Subscriptions = append(store.Subscriptions,
		&model.Subscription{URL: "https://z.example/sub", Origin: model.OriginRepo},
		&model.Subscription{URL: "https://a.example/sub", LastCheck: &ff, FailureCount: 1, FirstFailure: &ff},
	)

	if err := s.Save(ctx, store); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	loaded := s.Load(ctx)
	if loaded.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", loaded.Len())
	}
	// 保存時の順序が保たれること
	if loaded.Subscriptions[0].URL != "https://z.example/sub" {
		t.Errorf("Subscriptions[0].URL = %q, want z.example", loaded.Subscriptions[0].URL)
	}
	if loaded.Subscriptions[0].Origin != model.OriginRepo {
		t.Errorf("Origin = %q, want %q", loaded.Subscriptions[0].Origin, model.OriginRepo)
	}
	b := loaded.Subscriptions[1]
	if b.FirstFailure == nil || !b.FirstFailure.Equal(ff) || b.FailureCount != 1 {
		t.Errorf("subscription not restored: %+v", b)
	}

	// 2回目の保存は全体を置き換える
	if err := s.Save(ctx, model.NewSubscriptionStore()); err != nil {
		t.Fatal(err)
	}
	if got := s.Load(ctx).Len(); got != 0 {
		t.Errorf("置き換え後のLen() = %d, want 0", got)
	}
}

func TestPostgresSubscriptionStore_Load_MissingTable(t *testing.T) {
	s, db := setupPostgresStore(t, time.Second)
	if _, err := db.Exec(`DROP TABLE subscriptions`); err != nil {
		t.Fatal(err)
	}

	store := s.Load(context.Background())
	if store == nil || store.Len() != 0 {
		t.Errorf("テーブルが無い場合は空のストアを返すべきです: %+v", store)
	}
}

func TestPostgresSubscriptionStore_Lock(t *testing.T) {
	s, db := setupPostgresStore(t, 300*time.Millisecond)
	other := NewPostgresSubscriptionStore(db, 300*time.Millisecond, slog.Default())
	ctx := context.Background()

	unlock, err := s.Lock(ctx)
	if err != nil {
		t.Fatalf("Lock returned error: %v", err)
	}

	if _, err := other.Lock(ctx); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("Lock error = %v, want ErrLockTimeout", err)
	}

	unlock()

	unlock2, err := other.Lock(ctx)
	if err != nil {
		t.Fatalf("解放後のLockに失敗: %v", err)
	}
	unlock2()
}
