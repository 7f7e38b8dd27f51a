// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/cleanupusers/internal/model"
)

// AccountRepository はusersテーブルの読み取りインターフェース。
// すべての一覧はdeleted = falseの行のみを対象とし、ID昇順で返す。
type AccountRepository interface {
	// ListByStatus は指定の認証方式・停止状態のアカウントを取得する。
	ListByStatus(ctx context.Context, authMethod string, suspended bool) ([]model.Account, error)

	// ListNeverLoggedIn はlastaccess = 0 かつ tool_cleanupusers に行のないアカウントを取得する。
	// 停止状態は問わない。
	ListNeverLoggedIn(ctx context.Context, authMethod string) ([]model.Account, error)

	// UsernameTaken は削除されていないアカウントが指定のユーザー名を使用中の場合にtrueを返す。
	UsernameTaken(ctx context.Context, username string) (bool, error)
}

// MarkerRepository はtool_cleanupusersテーブルの読み取りインターフェース。
type MarkerRepository interface {
	// FindMarker は指定IDの停止マーカーを取得する。見つからない場合はnilを返す。
	FindMarker(ctx context.Context, id int64) (*model.SuspensionMarker, error)
}

// ArchiveRepository はtool_cleanupusers_archiveテーブルの読み取りインターフェース。
type ArchiveRepository interface {
	// FindArchive は指定IDのアーカイブ行を取得する。見つからない場合はnilを返す。
	FindArchive(ctx context.Context, id int64) (*model.ArchiveRecord, error)
}

// SiteAdminRepository はサイト管理者の一覧を提供する。
type SiteAdminRepository interface {
	// ListAdminIDs はサイト管理者のアカウントIDを取得する。
	ListAdminIDs(ctx context.Context) ([]int64, error)
}

// CleanupActionRepository はクリーンアップ処理による変更操作のインターフェース。
// 各操作は1トランザクションで実行する。
type CleanupActionRepository interface {
	// Suspend はマーカーとアーカイブを作成し、ライブ行を匿名化して停止する。
	Suspend(ctx context.Context, id int64, at time.Time) error

	// Reactivate はアーカイブがあればライブ行を復元し、マーカーとアーカイブを削除する。
	// アーカイブがない（手動停止）場合は停止フラグのみを解除する。
	Reactivate(ctx context.Context, id int64) error

	// Delete はライブ行を削除済みにし、マーカーとアーカイブを削除する。
	Delete(ctx context.Context, id int64) error
}
