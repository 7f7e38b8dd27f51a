package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/cleanupusers/internal/model"
)

// accountRow はusersテーブルの行のスキャン先。
type accountRow struct {
	ID         int64  `db:"id"`
	Username   string `db:"username"`
	Auth       string `db:"auth"`
	Suspended  bool   `db:"suspended"`
	Deleted    bool   `db:"deleted"`
	LastAccess int64  `db:"lastaccess"`
}

func (r accountRow) toModel() model.Account {
	return model.Account{
		ID:         r.ID,
		Username:   r.Username,
		AuthMethod: r.Auth,
		Suspended:  r.Suspended,
		Deleted:    r.Deleted,
		LastAccess: model.UnixOrZero(r.LastAccess),
	}
}

func toAccounts(rows []accountRow) []model.Account {
	out := make([]model.Account, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out
}

// PostgresAccountRepo はPostgreSQLを使用したアカウント・マーカー・アーカイブの読み取りリポジトリ。
type PostgresAccountRepo struct {
	db *sqlx.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sqlx.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// ListByStatus は指定の認証方式・停止状態のアカウントを取得する。
func (r *PostgresAccountRepo) ListByStatus(ctx context.Context, authMethod string, suspended bool) ([]model.Account, error) {
	var rows []accountRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, username, auth, suspended, deleted, lastaccess
		   FROM users
		  WHERE auth = $1
		    AND suspended = $2
		    AND deleted = false
		  ORDER BY id`,
		authMethod, suspended,
	)
	if err != nil {
		return nil, fmt.Errorf("停止状態によるアカウント一覧の取得に失敗しました: %w", err)
	}
	return toAccounts(rows), nil
}

// ListNeverLoggedIn はlastaccess = 0 かつツールで未処理のアカウントを取得する。
func (r *PostgresAccountRepo) ListNeverLoggedIn(ctx context.Context, authMethod string) ([]model.Account, error) {
	var rows []accountRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT u.id, u.username, u.auth, u.suspended, u.deleted, u.lastaccess
		   FROM users u
		   LEFT JOIN tool_cleanupusers tc ON u.id = tc.id
		  WHERE u.auth = $1
		    AND u.lastaccess = 0
		    AND u.deleted = false
		    AND tc.id IS NULL
		  ORDER BY u.id`,
		authMethod,
	)
	if err != nil {
		return nil, fmt.Errorf("未ログインアカウント一覧の取得に失敗しました: %w", err)
	}
	return toAccounts(rows), nil
}

// UsernameTaken は削除されていないアカウントが指定のユーザー名を使用中の場合にtrueを返す。
func (r *PostgresAccountRepo) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var taken bool
	err := r.db.GetContext(ctx, &taken,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND deleted = false)`,
		username,
	)
	if err != nil {
		return false, fmt.Errorf("ユーザー名の使用状況の確認に失敗しました: %w", err)
	}
	return taken, nil
}

// FindMarker は指定IDの停止マーカーを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindMarker(ctx context.Context, id int64) (*model.SuspensionMarker, error) {
	var row struct {
		ID        int64 `db:"id"`
		Timestamp int64 `db:"timestamp"`
	}
	err := r.db.GetContext(ctx, &row,
		`SELECT id, timestamp FROM tool_cleanupusers WHERE id = $1`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("停止マーカーの取得に失敗しました: %w", err)
	}
	return &model.SuspensionMarker{
		ID:        row.ID,
		Timestamp: model.UnixOrZero(row.Timestamp),
	}, nil
}

// FindArchive は指定IDのアーカイブ行を取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindArchive(ctx context.Context, id int64) (*model.ArchiveRecord, error) {
	var row accountRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, username, auth, suspended, deleted, lastaccess
		   FROM tool_cleanupusers_archive
		  WHERE id = $1`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アーカイブ行の取得に失敗しました: %w", err)
	}
	return &model.ArchiveRecord{
		ID:         row.ID,
		AuthMethod: row.Auth,
		Username:   row.Username,
		Suspended:  row.Suspended,
		LastAccess: model.UnixOrZero(row.LastAccess),
		Deleted:    row.Deleted,
	}, nil
}

// ListAdminIDs はサイト管理者のアカウントIDを取得する。
func (r *PostgresAccountRepo) ListAdminIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM site_admins ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("サイト管理者一覧の取得に失敗しました: %w", err)
	}
	return ids, nil
}

// compile-time interface check
var (
	_ AccountRepository   = (*PostgresAccountRepo)(nil)
	_ MarkerRepository    = (*PostgresAccountRepo)(nil)
	_ ArchiveRepository   = (*PostgresAccountRepo)(nil)
	_ SiteAdminRepository = (*PostgresAccountRepo)(nil)
)
