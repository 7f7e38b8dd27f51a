package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/cleanupusers/internal/model"
)

// AnonymizedUsername は停止時にライブ行へ設定する匿名ユーザー名を返す。
func AnonymizedUsername(id int64) string {
	return fmt.Sprintf("anonym%d", id)
}

// PostgresCleanupRepo はPostgreSQLを使用したクリーンアップ操作リポジトリ。
type PostgresCleanupRepo struct {
	db *sqlx.DB
}

// NewPostgresCleanupRepo はPostgresCleanupRepoを生成する。
func NewPostgresCleanupRepo(db *sqlx.DB) *PostgresCleanupRepo {
	return &PostgresCleanupRepo{db: db}
}

// Suspend はアカウントのスナップショットをアーカイブへ退避し、
// マーカーを作成したうえでライブ行を匿名化して停止する。
// 以前の停止で残ったマーカーとアーカイブ行は同じトランザクションで置き換える。
func (r *PostgresCleanupRepo) Suspend(ctx context.Context, id int64, at time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var row accountRow
	err = tx.GetContext(ctx, &row,
		`SELECT id, username, auth, suspended, deleted, lastaccess
		   FROM users
		  WHERE id = $1 AND deleted = false
		  FOR UPDATE`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: id=%d", model.ErrAccountNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to lock account: %w", err)
	}

	if err := deleteToolRows(ctx, tx, id); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tool_cleanupusers (id, archived, timestamp) VALUES ($1, true, $2)`,
		id, model.ToUnix(at),
	)
	if err != nil {
		return fmt.Errorf("failed to insert suspension marker: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tool_cleanupusers_archive (id, auth, username, suspended, lastaccess, deleted)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		row.ID, row.Auth, row.Username, row.Suspended, row.LastAccess, row.Deleted,
	)
	if err != nil {
		return fmt.Errorf("failed to insert archive record: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET username = $2, suspended = true, lastaccess = 0 WHERE id = $1`,
		id, AnonymizedUsername(id),
	)
	if err != nil {
		return fmt.Errorf("failed to anonymize account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Reactivate はアーカイブがあればライブ行を復元し、マーカーとアーカイブを削除する。
// アーカイブがない場合は停止フラグのみを解除する。
func (r *PostgresCleanupRepo) Reactivate(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var archived accountRow
	err = tx.GetContext(ctx, &archived,
		`SELECT id, username, auth, suspended, deleted, lastaccess
		   FROM tool_cleanupusers_archive
		  WHERE id = $1
		  FOR UPDATE`,
		id,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if err := execAffectingOne(ctx, tx,
			`UPDATE users SET suspended = false WHERE id = $1 AND deleted = false`, id,
		); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("failed to lock archive record: %w", err)
	default:
		if err := execAffectingOne(ctx, tx,
			`UPDATE users SET username = $2, suspended = false, lastaccess = $3
			  WHERE id = $1 AND deleted = false`,
			id, archived.Username, archived.LastAccess,
		); err != nil {
			return err
		}
	}

	if err := deleteToolRows(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete はライブ行を削除済みにし、マーカーとアーカイブを削除する。
func (r *PostgresCleanupRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := execAffectingOne(ctx, tx,
		`UPDATE users SET deleted = true WHERE id = $1 AND deleted = false`, id,
	); err != nil {
		return err
	}
	if err := deleteToolRows(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// execAffectingOne はUPDATEを実行し、対象行がなければ ErrAccountNotFound を返す。
func execAffectingOne(ctx context.Context, tx *sqlx.Tx, query string, args ...any) error {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id=%d", model.ErrAccountNotFound, args[0])
	}
	return nil
}

func deleteToolRows(ctx context.Context, tx *sqlx.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM tool_cleanupusers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete suspension marker: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tool_cleanupusers_archive WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete archive record: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CleanupActionRepository = (*PostgresCleanupRepo)(nil)
