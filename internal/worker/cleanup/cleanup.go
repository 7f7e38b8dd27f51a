// Package cleanup はアカウント照合パスの実行とスケジューリングを提供する。
// ステータスチェッカーが算出した候補一覧をレポートとして保持し、
// 適用モードでは停止・削除・再有効化を実際に行う。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/hitoshi/cleanupusers/internal/metrics"
	"github.com/hitoshi/cleanupusers/internal/model"
)

// ErrPassInProgress は照合パスが既に実行中であることを示す。
var ErrPassInProgress = errors.New("reconciliation pass already in progress")

// アクション名。レポート・ログ・メトリクスのラベルで共通に使う。
const (
	ActionSuspend       = "suspend"
	ActionDelete        = "delete"
	ActionReactivate    = "reactivate"
	ActionNeverLoggedIn = "never_logged_in"
)

// StatusChecker は4つの候補一覧を算出するステータスチェッカー。
// 照合の戦略ごとに実装を差し替えられる。
type StatusChecker interface {
	ToSuspend(ctx context.Context) ([]model.ArchivedUser, error)
	ToDelete(ctx context.Context) ([]model.ArchivedUser, error)
	ToReactivate(ctx context.Context) ([]model.ArchivedUser, error)
	NeverLoggedIn(ctx context.Context) ([]model.ArchivedUser, error)
}

// CheckerFactory はパスごとに新しい StatusChecker を生成する。
// ディレクトリの取得に失敗した場合はエラーを返し、パスは中断される。
type CheckerFactory func(ctx context.Context) (StatusChecker, error)

// ActionStore は候補一覧を実際の変更に反映するストア。
type ActionStore interface {
	Suspend(ctx context.Context, id int64, at time.Time) error
	Reactivate(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

// IsDirectoryFailure はエラーがディレクトリの接続・バインド・検索の失敗によるものかを判定する。
func IsDirectoryFailure(err error) bool {
	return errors.Is(err, model.ErrDirectoryUnavailable) ||
		errors.Is(err, model.ErrBindRejected) ||
		errors.Is(err, model.ErrSearchFailed)
}

// Report は1回の照合パスの結果。
type Report struct {
	ID            string               `json:"id"`
	StartedAt     time.Time            `json:"started_at"`
	FinishedAt    time.Time            `json:"finished_at"`
	Applied       bool                 `json:"applied"`
	ToSuspend     []model.ArchivedUser `json:"to_suspend"`
	ToDelete      []model.ArchivedUser `json:"to_delete"`
	ToReactivate  []model.ArchivedUser `json:"to_reactivate"`
	NeverLoggedIn []model.ArchivedUser `json:"never_logged_in"`
	Mutations     MutationSummary      `json:"mutations"`
}

// MutationSummary は適用モードでの変更操作の件数。
type MutationSummary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// JobOptions は Job の設定。
type JobOptions struct {
	// Apply がtrueの場合、候補一覧を実際の変更に反映する。
	Apply bool
	// RatePerSec は変更操作の1秒あたりの上限。0以下は無制限。
	RatePerSec float64
	Clock      clockwork.Clock
	Metrics    metrics.MetricsCollector
}

// Job は照合パスを実行し、直近のレポートを保持する。
// 同時に実行できるパスは1つだけ。
type Job struct {
	newChecker CheckerFactory
	actions    ActionStore
	apply      bool
	limiter    *rate.Limiter
	clock      clockwork.Clock
	metrics    metrics.MetricsCollector
	logger     *slog.Logger

	running atomic.Bool
	mu      sync.RWMutex
	latest  *Report
}

// NewJob は新しいJobを生成する。
// actions は適用モードでのみ使用する。
func NewJob(newChecker CheckerFactory, actions ActionStore, logger *slog.Logger, opts JobOptions) *Job {
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Job{
		newChecker: newChecker,
		actions:    actions,
		apply:      opts.Apply,
		limiter:    rate.NewLimiter(limit, 1),
		clock:      clock,
		metrics:    opts.Metrics,
		logger:     logger,
	}
}

// Latest は直近に完了したパスのレポートを返す。まだ実行されていない場合はfalseを返す。
func (j *Job) Latest() (*Report, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.latest, j.latest != nil
}

// RunOnce は照合パスを1回実行する。
// チェッカーの生成（ディレクトリ取得）に失敗した場合は一覧を作らずにエラーを返す。
func (j *Job) RunOnce(ctx context.Context) (*Report, error) {
	if !j.running.CompareAndSwap(false, true) {
		return nil, ErrPassInProgress
	}
	defer j.running.Store(false)

	report := &Report{
		ID:        uuid.NewString(),
		StartedAt: j.clock.Now(),
		Applied:   j.apply,
	}
	logger := j.logger.With(slog.String("pass_id", report.ID))

	checker, err := j.newChecker(ctx)
	if err != nil {
		result := metrics.PassStoreFailed
		if IsDirectoryFailure(err) {
			result = metrics.PassDirectoryFailed
		}
		j.recordPass(result, report.StartedAt)
		logger.Error("照合の準備に失敗したためパスを中断しました",
			slog.String("result", result),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("照合パスを中断しました: %w", err)
	}

	queries := []struct {
		action string
		run    func(context.Context) ([]model.ArchivedUser, error)
		dst    *[]model.ArchivedUser
	}{
		{ActionSuspend, checker.ToSuspend, &report.ToSuspend},
		{ActionDelete, checker.ToDelete, &report.ToDelete},
		{ActionReactivate, checker.ToReactivate, &report.ToReactivate},
		{ActionNeverLoggedIn, checker.NeverLoggedIn, &report.NeverLoggedIn},
	}
	for _, q := range queries {
		users, err := q.run(ctx)
		if err != nil {
			j.recordPass(metrics.PassStoreFailed, report.StartedAt)
			logger.Error("候補一覧の算出に失敗しました",
				slog.String("action", q.action),
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("%s の算出に失敗しました: %w", q.action, err)
		}
		*q.dst = users
		if j.metrics != nil {
			j.metrics.RecordCandidates(q.action, len(users))
		}
	}

	if j.apply {
		if err := j.applyAll(ctx, logger, report); err != nil {
			j.recordPass(metrics.PassCancelled, report.StartedAt)
			logger.Warn("変更操作の適用中にパスを中断しました",
				slog.String("result", metrics.PassCancelled),
				slog.Int("mutations_succeeded", report.Mutations.Succeeded),
				slog.Int("mutations_failed", report.Mutations.Failed),
				slog.String("error", err.Error()),
			)
			return nil, err
		}
	}

	report.FinishedAt = j.clock.Now()
	j.recordPass(metrics.PassSucceeded, report.StartedAt)

	j.mu.Lock()
	j.latest = report
	j.mu.Unlock()

	logger.Info("照合パスが完了しました",
		slog.Int("to_suspend", len(report.ToSuspend)),
		slog.Int("to_delete", len(report.ToDelete)),
		slog.Int("to_reactivate", len(report.ToReactivate)),
		slog.Int("never_logged_in", len(report.NeverLoggedIn)),
		slog.Bool("applied", report.Applied),
		slog.Int("mutations_succeeded", report.Mutations.Succeeded),
		slog.Int("mutations_failed", report.Mutations.Failed),
		slog.Float64("duration_ms", float64(report.FinishedAt.Sub(report.StartedAt).Milliseconds())),
	)
	return report, nil
}

// applyAll は候補一覧を変更として反映する。未ログイン一覧は情報提供のみで反映しない。
// 1件の失敗は記録して続行する。コンテキストがキャンセルされた場合のみ中断する。
func (j *Job) applyAll(ctx context.Context, logger *slog.Logger, report *Report) error {
	steps := []struct {
		action string
		users  []model.ArchivedUser
		do     func(ctx context.Context, id int64) error
	}{
		{ActionSuspend, report.ToSuspend, func(ctx context.Context, id int64) error {
			return j.actions.Suspend(ctx, id, j.clock.Now())
		}},
		{ActionDelete, report.ToDelete, j.actions.Delete},
		{ActionReactivate, report.ToReactivate, j.actions.Reactivate},
	}

	for _, step := range steps {
		for _, u := range step.users {
			if err := j.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("変更操作の適用を中断しました: %w", err)
			}
			if err := step.do(ctx, u.ID); err != nil {
				report.Mutations.Failed++
				j.recordMutation(step.action, metrics.MutationFailed)
				logger.Error("変更操作に失敗しました",
					slog.String("action", step.action),
					slog.Int64("account_id", u.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			report.Mutations.Succeeded++
			j.recordMutation(step.action, metrics.MutationApplied)
			logger.Debug("変更操作を適用しました",
				slog.String("action", step.action),
				slog.Int64("account_id", u.ID),
				slog.String("username", u.Username),
			)
		}
	}
	return nil
}

func (j *Job) recordPass(result string, startedAt time.Time) {
	if j.metrics != nil {
		j.metrics.RecordPass(result, j.clock.Since(startedAt))
	}
}

func (j *Job) recordMutation(action, result string) {
	if j.metrics != nil {
		j.metrics.RecordMutation(action, result)
	}
}
