package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/sublink/internal/model"
)

// storeAdvisoryLockKey はload-mutate-saveサイクルの排他に使うアドバイザリロックのキー。
const storeAdvisoryLockKey int64 = 0x73_75_62_6c_69_6e_6b // "sublink"

// PostgresSubscriptionStore はPostgreSQLを使用した購読ストア。
// Saveはテーブル全体を1トランザクションで置き換えるため、読み手は常に完全な集合を観測する。
type PostgresSubscriptionStore struct {
	db          *sql.DB
	lockTimeout time.Duration
	logger      *slog.Logger
}

// NewPostgresSubscriptionStore はPostgresSubscriptionStoreを生成する。
func NewPostgresSubscriptionStore(db *sql.DB, lockTimeout time.Duration, logger *slog.Logger) *PostgresSubscriptionStore {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &PostgresSubscriptionStore{db: db, lockTimeout: lockTimeout, logger: logger}
}

// Load は全購読を読み込む。取得に失敗した場合は空のストアを返す。
func (r *PostgresSubscriptionStore) Load(ctx context.Context) *model.SubscriptionStore {
	store := model.NewSubscriptionStore()

	rows, err := r.db.QueryContext(ctx,
		`SELECT url, origin, last_success, last_check, failure_count, first_failure
		 FROM subscriptions ORDER BY position`,
	)
	if err != nil {
		r.logger.Error("購読の取得に失敗したため空の状態で開始します",
			slog.String("error", err.Error()),
		)
		return store
	}
	defer rows.Close()

	for rows.Next() {
		sub := &model.Subscription{}
		var origin sql.NullString
		var lastSuccess, lastCheck, firstFailure sql.NullTime
		if err := rows.Scan(&sub.URL, &origin, &lastSuccess, &lastCheck, &sub.FailureCount, &firstFailure); err != nil {
			r.logger.Error("購読行の読み取りに失敗したため空の状態で開始します",
				slog.String("error", err.Error()),
			)
			return model.NewSubscriptionStore()
		}
		sub.Origin = nullStringValue(origin)
		sub.LastSuccess = nullTimeValue(lastSuccess)
		sub.LastCheck = nullTimeValue(lastCheck)
		sub.FirstFailure = nullTimeValue(firstFailure)
		store.Subscriptions = append(store.Subscriptions, sub)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("購読の走査に失敗したため空の状態で開始します",
			slog.String("error", err.Error()),
		)
		return model.NewSubscriptionStore()
	}

	return store
}

// Save はsubscriptionsテーブルの内容をストア全体で置き換える。
func (r *PostgresSubscriptionStore) Save(ctx context.Context, store *model.SubscriptionStore) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subscriptions`); err != nil {
		return fmt.Errorf("購読の削除に失敗しました: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO subscriptions (position, url, origin, last_success, last_check, failure_count, first_failure)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	)
	if err != nil {
		return fmt.Errorf("購読INSERT文の準備に失敗しました: %w", err)
	}
	defer stmt.Close()

	for i, sub := range store.Subscriptions {
		if _, err := stmt.ExecContext(ctx,
			i, sub.URL, nullString(sub.Origin),
			nullTime(sub.LastSuccess), nullTime(sub.LastCheck),
			sub.FailureCount, nullTime(sub.FirstFailure),
		); err != nil {
			return fmt.Errorf("購読の保存に失敗しました (%s): %w", sub.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// Lock は専用コネクション上でセッションレベルのアドバイザリロックを取得する。
// 解放関数はロックを解除してコネクションをプールに返す。
func (r *PostgresSubscriptionStore) Lock(ctx context.Context) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, r.lockTimeout)
	defer cancel()

	conn, err := r.db.Conn(lockCtx)
	if err != nil {
		return nil, fmt.Errorf("ロック用コネクションの取得に失敗しました: %w", err)
	}

	ticker := time.NewTicker(lockRetryDelay)
	defer ticker.Stop()

	for {
		var locked bool
		if err := conn.QueryRowContext(lockCtx, `SELECT pg_try_advisory_lock($1)`, storeAdvisoryLockKey).Scan(&locked); err != nil {
			conn.Close()
			if lockCtx.Err() != nil {
				return nil, ErrLockTimeout
			}
			return nil, fmt.Errorf("アドバイザリロックの取得に失敗しました: %w", err)
		}
		if locked {
			break
		}

		select {
		case <-lockCtx.Done():
			conn.Close()
			return nil, ErrLockTimeout
		case <-ticker.C:
		}
	}

	return func() {
		if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, storeAdvisoryLockKey); err != nil {
			r.logger.Error("アドバイザリロックの解放に失敗しました",
				slog.String("error", err.Error()),
			)
		}
		conn.Close()
	}, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullTime は*time.Timeをsql.NullTimeに変換する。
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// nullTimeValue はsql.NullTimeから*time.Timeを取得する。
func nullTimeValue(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
