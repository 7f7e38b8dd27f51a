// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ディレクトリ連携とストアの失敗を表すセンチネルエラー。
// 呼び出し側は errors.Is で判定する。
var (
	// ErrDirectoryUnavailable はディレクトリサーバーへ接続できなかったことを示す。
	ErrDirectoryUnavailable = errors.New("directory unavailable")
	// ErrBindRejected はディレクトリへのバインドが拒否されたことを示す。
	ErrBindRejected = errors.New("directory bind rejected")
	// ErrSearchFailed はディレクトリ検索が失敗したことを示す。
	ErrSearchFailed = errors.New("directory search failed")
	// ErrAccountNotFound は対象アカウントが存在しないことを示す。
	ErrAccountNotFound = errors.New("account not found")
)

// APIError は統一エラーフォーマットを表す。
// 運用者に表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: directory, report, system
	Action   string // 運用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeReportNotFound     = "REPORT_NOT_FOUND"
	ErrCodeDirectoryFailed    = "DIRECTORY_FAILED"
	ErrCodePassAlreadyRunning = "PASS_ALREADY_RUNNING"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewReportNotFoundError はまだパスが一度も実行されていない場合のエラーを生成する。
func NewReportNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeReportNotFound,
		Message:  "まだ照合パスが実行されていません。",
		Category: "report",
		Action:   "POST /api/reports/run で照合パスを実行するか、スケジュール実行を待ってください。",
	}
}

// NewDirectoryFailedError はディレクトリ連携の失敗によりパスが中断された場合のエラーを生成する。
func NewDirectoryFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeDirectoryFailed,
		Message:  fmt.Sprintf("ディレクトリからの取得に失敗したため照合パスを中断しました: %s", reason),
		Category: "directory",
		Action:   "LDAPの接続先・バインド情報・検索ベースを確認してください。",
	}
}

// NewPassAlreadyRunningError は照合パスが実行中の場合のエラーを生成する。
func NewPassAlreadyRunningError() *APIError {
	return &APIError{
		Code:     ErrCodePassAlreadyRunning,
		Message:  "照合パスは既に実行中です。",
		Category: "report",
		Action:   "実行中のパスが完了してから再度お試しください。",
	}
}
