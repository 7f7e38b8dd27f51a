package cleanup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/cleanupusers/internal/directory"
	"github.com/hitoshi/cleanupusers/internal/metrics"
	"github.com/hitoshi/cleanupusers/internal/reconcile"
	"github.com/hitoshi/cleanupusers/internal/repository"
)

// NewReconcilerFactory はパスごとにディレクトリを1回検索し、
// その LookupSet とサイト管理者の一覧で Reconciler を組み立てる CheckerFactory を返す。
// m がnilの場合はメトリクスを記録しない。
func NewReconcilerFactory(
	src directory.Source,
	store reconcile.Store,
	admins repository.SiteAdminRepository,
	opts reconcile.Options,
	m metrics.MetricsCollector,
	logger *slog.Logger,
) CheckerFactory {
	return func(ctx context.Context) (StatusChecker, error) {
		lookup, err := src.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		if m != nil {
			m.RecordDirectoryPrincipals(lookup.Len())
		}

		ids, err := admins.ListAdminIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("サイト管理者の取得に失敗しました: %w", err)
		}

		passOpts := opts
		passOpts.IsPrivileged = reconcile.PrivilegedIDs(ids)
		if m != nil {
			passOpts.OnAnomaly = m.RecordAnomaly
		}
		r := reconcile.New(store, lookup, passOpts, logger)
		logger.Info("照合器を構築しました",
			slog.Int("directory_principals", lookup.Len()),
			slog.Int("site_admins", len(ids)),
			slog.Duration("retention", r.Retention()),
		)
		return r, nil
	}
}
