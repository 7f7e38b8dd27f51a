// Package model はドメインモデルを定義する。
package model

import "time"

// Account はローカルのユーザーディレクトリ（usersテーブル）の1行を表す。
// 認証システムとクリーンアップ処理が書き込み、ステータスチェッカーは読み取りのみを行う。
type Account struct {
	ID         int64
	Username   string
	AuthMethod string
	Suspended  bool
	Deleted    bool
	// LastAccess は最終サインイン時刻。一度もサインインしていない場合はゼロ値。
	LastAccess time.Time
}

// NeverLoggedIn はアカウントが一度もサインインしていない場合にtrueを返す。
func (a Account) NeverLoggedIn() bool {
	return a.LastAccess.IsZero()
}

// SuspensionMarker はツール自身が停止したアカウントの印（tool_cleanupusersテーブル）。
// 行が存在すること自体が「ツールによる停止」を意味する。
type SuspensionMarker struct {
	ID        int64
	Timestamp time.Time
}

// ArchiveRecord は停止前のアカウントのスナップショット（tool_cleanupusers_archiveテーブル）。
// 停止時に匿名化されたライブ行から元の識別情報を復元するために使う。
type ArchiveRecord struct {
	ID         int64
	AuthMethod string
	Username   string
	Suspended  bool
	LastAccess time.Time
	Deleted    bool
}

// ArchivedUser はステータスチェッカーが返す軽量な射影。
// クリーンアップ処理はこの一覧をもとに停止・削除・再有効化を行う。
type ArchivedUser struct {
	ID         int64     `json:"id"`
	Suspended  bool      `json:"suspended"`
	LastAccess time.Time `json:"last_access"`
	Username   string    `json:"username"`
	Deleted    bool      `json:"deleted"`
}

// ProjectAccount はライブ行から射影を作る。
func ProjectAccount(a Account) ArchivedUser {
	return ArchivedUser{
		ID:         a.ID,
		Suspended:  a.Suspended,
		LastAccess: a.LastAccess,
		Username:   a.Username,
		Deleted:    a.Deleted,
	}
}

// ProjectArchive はアーカイブ行から射影を作る。
// 匿名化済みのライブ行ではなく、停止前の識別情報を返すために使う。
func ProjectArchive(r ArchiveRecord) ArchivedUser {
	return ArchivedUser{
		ID:         r.ID,
		Suspended:  r.Suspended,
		LastAccess: r.LastAccess,
		Username:   r.Username,
		Deleted:    r.Deleted,
	}
}

// UnixOrZero はBIGINTのUNIX秒をtime.Timeに変換する。0は「未設定」としてゼロ値を返す。
func UnixOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// ToUnix はtime.TimeをBIGINTのUNIX秒に変換する。ゼロ値は0になる。
func ToUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
