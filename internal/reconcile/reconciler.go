// Package reconcile はローカルのアカウントを外部ディレクトリと照合し、
// 停止・削除・再有効化・未ログインの4つの候補一覧を算出する。
//
// 各クエリはストアの状態・LookupSet・保持期間・現在時刻の純粋な関数であり、
// ストアへの書き込みは行わない。
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hitoshi/cleanupusers/internal/directory"
	"github.com/hitoshi/cleanupusers/internal/model"
)

// Store は照合に必要なストアの読み取り操作。
// 一覧はdeleted = falseの行のみをID昇順で返す。
type Store interface {
	ListByStatus(ctx context.Context, authMethod string, suspended bool) ([]model.Account, error)
	ListNeverLoggedIn(ctx context.Context, authMethod string) ([]model.Account, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	FindMarker(ctx context.Context, id int64) (*model.SuspensionMarker, error)
	FindArchive(ctx context.Context, id int64) (*model.ArchiveRecord, error)
}

// 異常の理由。ログの anomaly 属性とメトリクスのラベルに使う。
const (
	AnomalyArchiveMissing = "archive_missing"
)

// DefaultRetentionDays は停止から削除までのデフォルト日数。
const DefaultRetentionDays = 365

// MaxRetentionDays は time.Duration が桁あふれしない最大の保持日数。
const MaxRetentionDays = int(math.MaxInt64 / int64(24*time.Hour))

// Options は Reconciler の設定。
type Options struct {
	// AuthMethod は対象とする認証方式。一致しないアカウントはどのクエリにも現れない。
	AuthMethod string
	// RetentionDays は停止から削除対象になるまでの日数。0以下はデフォルト値。
	// MaxRetentionDays を超える値は MaxRetentionDays に切り詰める。
	RetentionDays int
	// Clock は現在時刻の取得元。nilの場合は実時計。
	Clock clockwork.Clock
	// IsPrivileged がtrueを返すアカウントはすべての一覧から除外される。
	IsPrivileged func(model.Account) bool
	// OnAnomaly は候補を異常としてスキップしたときに呼ばれる。
	OnAnomaly func(reason string)
}

// Reconciler はローカルのアカウントとディレクトリの LookupSet を照合する。
type Reconciler struct {
	store        Store
	lookup       directory.LookupSet
	authMethod   string
	retention    time.Duration
	clock        clockwork.Clock
	isPrivileged func(model.Account) bool
	onAnomaly    func(reason string)
	logger       *slog.Logger
}

// New は Reconciler を生成する。
// lookup は照合パスの間は不変として扱う。
func New(store Store, lookup directory.LookupSet, opts Options, logger *slog.Logger) *Reconciler {
	days := opts.RetentionDays
	if days <= 0 {
		days = DefaultRetentionDays
	}
	if days > MaxRetentionDays {
		logger.Warn("保持日数が上限を超えているため切り詰めます",
			slog.Int("retention_days", days),
			slog.Int("max_retention_days", MaxRetentionDays),
		)
		days = MaxRetentionDays
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	isPrivileged := opts.IsPrivileged
	if isPrivileged == nil {
		isPrivileged = func(model.Account) bool { return false }
	}
	onAnomaly := opts.OnAnomaly
	if onAnomaly == nil {
		onAnomaly = func(string) {}
	}
	return &Reconciler{
		store:        store,
		lookup:       lookup,
		authMethod:   opts.AuthMethod,
		retention:    time.Duration(days) * 24 * time.Hour,
		clock:        clock,
		isPrivileged: isPrivileged,
		onAnomaly:    onAnomaly,
		logger:       logger,
	}
}

// Retention は設定された保持期間を返す。
func (r *Reconciler) Retention() time.Duration {
	return r.retention
}

// eligible はアカウントが照合の対象であるかを判定する。
// ストアの絞り込みに加えて、認証方式・削除フラグ・管理者を確認する。
func (r *Reconciler) eligible(a model.Account, suspended bool) bool {
	if a.AuthMethod != r.authMethod || a.Deleted || a.Suspended != suspended {
		return false
	}
	return !r.isPrivileged(a)
}

// ToSuspend はディレクトリに存在しない有効なアカウントを返す。
func (r *Reconciler) ToSuspend(ctx context.Context) ([]model.ArchivedUser, error) {
	accounts, err := r.store.ListByStatus(ctx, r.authMethod, false)
	if err != nil {
		return nil, fmt.Errorf("停止候補の取得に失敗しました: %w", err)
	}

	out := make([]model.ArchivedUser, 0)
	for _, a := range accounts {
		if !r.eligible(a, false) || r.lookup.Contains(a.Username) {
			continue
		}
		out = append(out, model.ProjectAccount(a))
		r.marked("to_suspend", a.ID, a.Username)
	}
	r.summarize("to_suspend", len(out))
	return out, nil
}

// ToDelete は停止から保持期間を超過し、ディレクトリにも存在しないアカウントを返す。
// ツールが停止したアカウントはアーカイブ行から識別情報を復元する。
func (r *Reconciler) ToDelete(ctx context.Context) ([]model.ArchivedUser, error) {
	accounts, err := r.store.ListByStatus(ctx, r.authMethod, true)
	if err != nil {
		return nil, fmt.Errorf("削除候補の取得に失敗しました: %w", err)
	}

	now := r.clock.Now()
	out := make([]model.ArchivedUser, 0)
	for _, a := range accounts {
		if !r.eligible(a, true) {
			continue
		}
		prov, err := r.provenanceOf(ctx, a.ID)
		if err != nil {
			return nil, err
		}

		switch p := prov.(type) {
		case ToolSuspended:
			if now.Sub(p.MarkedAt) <= r.retention {
				continue
			}
			archive, err := r.archiveOf(ctx, "to_delete", a.ID)
			if err != nil {
				return nil, err
			}
			if archive == nil || r.lookup.Contains(archive.Username) {
				continue
			}
			out = append(out, model.ProjectArchive(*archive))
			r.marked("to_delete", a.ID, archive.Username)

		case ManualSuspended:
			if a.NeverLoggedIn() {
				r.logger.Debug("最終アクセス時刻がないため削除判定をスキップしました",
					slog.String("query", "to_delete"),
					slog.Int64("account_id", a.ID),
				)
				continue
			}
			if now.Sub(a.LastAccess) <= r.retention || r.lookup.Contains(a.Username) {
				continue
			}
			out = append(out, model.ProjectAccount(a))
			r.marked("to_delete", a.ID, a.Username)
		}
	}
	r.summarize("to_delete", len(out))
	return out, nil
}

// ToReactivate はディレクトリに再び現れた停止中のアカウントを返す。
// ツールが停止したアカウントは、復元するユーザー名が他の有効なアカウントに
// 使われている場合は除外する。
func (r *Reconciler) ToReactivate(ctx context.Context) ([]model.ArchivedUser, error) {
	accounts, err := r.store.ListByStatus(ctx, r.authMethod, true)
	if err != nil {
		return nil, fmt.Errorf("再有効化候補の取得に失敗しました: %w", err)
	}

	out := make([]model.ArchivedUser, 0)
	for _, a := range accounts {
		if !r.eligible(a, true) {
			continue
		}
		prov, err := r.provenanceOf(ctx, a.ID)
		if err != nil {
			return nil, err
		}

		switch prov.(type) {
		case ToolSuspended:
			archive, err := r.archiveOf(ctx, "to_reactivate", a.ID)
			if err != nil {
				return nil, err
			}
			if archive == nil || !r.lookup.Contains(archive.Username) {
				continue
			}
			taken, err := r.store.UsernameTaken(ctx, archive.Username)
			if err != nil {
				return nil, fmt.Errorf("ユーザー名の使用状況の確認に失敗しました (id=%d): %w", a.ID, err)
			}
			if taken {
				r.logger.Info("復元するユーザー名が使用中のため再有効化をスキップしました",
					slog.Int64("account_id", a.ID),
					slog.String("username", archive.Username),
				)
				continue
			}
			out = append(out, model.ProjectArchive(*archive))
			r.marked("to_reactivate", a.ID, archive.Username)

		case ManualSuspended:
			if !r.lookup.Contains(a.Username) {
				continue
			}
			out = append(out, model.ProjectAccount(a))
			r.marked("to_reactivate", a.ID, a.Username)
		}
	}
	r.summarize("to_reactivate", len(out))
	return out, nil
}

// NeverLoggedIn は一度もサインインしておらず、ツールでも未処理のアカウントを返す。
// ディレクトリは参照しない。
func (r *Reconciler) NeverLoggedIn(ctx context.Context) ([]model.ArchivedUser, error) {
	accounts, err := r.store.ListNeverLoggedIn(ctx, r.authMethod)
	if err != nil {
		return nil, fmt.Errorf("未ログインアカウントの取得に失敗しました: %w", err)
	}

	out := make([]model.ArchivedUser, 0)
	for _, a := range accounts {
		if a.AuthMethod != r.authMethod || a.Deleted || !a.NeverLoggedIn() || r.isPrivileged(a) {
			continue
		}
		out = append(out, model.ProjectAccount(a))
		r.marked("never_logged_in", a.ID, a.Username)
	}
	r.summarize("never_logged_in", len(out))
	return out, nil
}

// archiveOf はアーカイブ行を取得する。存在しない場合は異常として記録し、nilを返す。
func (r *Reconciler) archiveOf(ctx context.Context, query string, id int64) (*model.ArchiveRecord, error) {
	archive, err := r.store.FindArchive(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("アーカイブ行の取得に失敗しました (id=%d): %w", id, err)
	}
	if archive == nil {
		r.logger.Warn("停止マーカーに対応するアーカイブ行がないため候補をスキップしました",
			slog.String("query", query),
			slog.Int64("account_id", id),
			slog.String("anomaly", AnomalyArchiveMissing),
		)
		r.onAnomaly(AnomalyArchiveMissing)
	}
	return archive, nil
}

func (r *Reconciler) marked(query string, id int64, username string) {
	r.logger.Debug("marked",
		slog.String("query", query),
		slog.Int64("account_id", id),
		slog.String("username", username),
	)
}

func (r *Reconciler) summarize(query string, n int) {
	r.logger.Info("照合クエリが完了しました",
		slog.String("query", query),
		slog.Int("marked_count", n),
	)
}
