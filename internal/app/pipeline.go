package app

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/cleanupusers/internal/config"
	"github.com/hitoshi/cleanupusers/internal/directory"
	"github.com/hitoshi/cleanupusers/internal/metrics"
	"github.com/hitoshi/cleanupusers/internal/reconcile"
	"github.com/hitoshi/cleanupusers/internal/repository"
	"github.com/hitoshi/cleanupusers/internal/worker/cleanup"
)

// pipeline は照合パスに必要な依存関係を組み立てた結果。
type pipeline struct {
	job      *cleanup.Job
	registry *prometheus.Registry
}

// newPipeline は設定とDB接続から LDAPSource・リポジトリ・メトリクス・Job をワイヤリングする。
// ディレクトリへの接続はパスの実行時に行うため、ここではネットワークにアクセスしない。
func newPipeline(cfg *config.Config, db *sqlx.DB, logger *slog.Logger) (*pipeline, error) {
	src, err := directory.NewLDAPSource(ldapConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure directory source: %w", err)
	}

	accountRepo := repository.NewPostgresAccountRepo(db)
	cleanupRepo := repository.NewPostgresCleanupRepo(db)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	factory := cleanup.NewReconcilerFactory(
		src,
		accountRepo,
		accountRepo,
		reconcile.Options{
			AuthMethod:    cfg.AuthMethod,
			RetentionDays: cfg.DeleteTimeDays,
		},
		collector,
		logger,
	)

	job := cleanup.NewJob(factory, cleanupRepo, logger, cleanup.JobOptions{
		Apply:      cfg.ApplyActions,
		RatePerSec: cfg.ApplyRatePerSec,
		Metrics:    collector,
	})

	return &pipeline{job: job, registry: reg}, nil
}

// ldapConfig はアプリケーション設定をLDAPConfigに変換する。
func ldapConfig(cfg *config.Config) directory.LDAPConfig {
	pageSize := uint32(0)
	if cfg.LDAPPageSize > 0 {
		pageSize = uint32(cfg.LDAPPageSize)
	}
	return directory.LDAPConfig{
		HostURL:      cfg.LDAPHostURL,
		Version:      cfg.LDAPVersion,
		StartTLS:     cfg.LDAPStartTLS,
		BindDN:       cfg.LDAPBindDN,
		BindPassword: cfg.LDAPBindPW,
		Contexts:     cfg.LDAPContexts,
		Filter:       cfg.LDAPFilter,
		Attribute:    cfg.LDAPAttribute,
		PageSize:     pageSize,
		Timeout:      cfg.LDAPTimeout,
	}
}
