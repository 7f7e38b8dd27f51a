package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

// Runner は照合パスを1回実行する。
type Runner interface {
	RunOnce(ctx context.Context) (*Report, error)
}

// Scheduler はcron式に従って照合パスを定期実行する。
type Scheduler struct {
	runner     Runner
	schedule   cron.Schedule
	spec       string
	runOnStart bool
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewScheduler はcron式（分 時 日 月 曜日）を検証してSchedulerを生成する。
// clockがnilの場合は実時計を使う。
func NewScheduler(runner Runner, spec string, runOnStart bool, clock clockwork.Clock, logger *slog.Logger) (*Scheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule '%s': %w", spec, err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		runner:     runner,
		schedule:   schedule,
		spec:       spec,
		runOnStart: runOnStart,
		clock:      clock,
		logger:     logger,
	}, nil
}

// Start はコンテキストがキャンセルされるまで照合パスを定期実行する。
// パスの失敗は記録して次回の実行を待つ。
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("照合スケジューラを開始しました",
		slog.String("schedule", s.spec),
		slog.Bool("run_on_start", s.runOnStart),
	)

	// 起動直後に1回実行
	if s.runOnStart {
		s.run(ctx)
	}

	for {
		now := s.clock.Now()
		next := s.schedule.Next(now)
		timer := s.clock.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("照合スケジューラを停止しました")
			return
		case <-timer.Chan():
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	if _, err := s.runner.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrPassInProgress) {
			s.logger.Warn("前回の照合パスが実行中のためスキップしました")
			return
		}
		s.logger.Error("照合パスの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
