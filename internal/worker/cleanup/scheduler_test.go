package cleanup

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// mockRunner はRunnerのテスト用モック。
type mockRunner struct {
	calls atomic.Int32
	ran   chan struct{}
	err   error
}

func newMockRunner() *mockRunner {
	return &mockRunner{ran: make(chan struct{}, 16)}
}

func (m *mockRunner) RunOnce(ctx context.Context) (*Report, error) {
	m.calls.Add(1)
	m.ran <- struct{}{}
	if m.err != nil {
		return nil, m.err
	}
	return &Report{}, nil
}

func waitRun(t *testing.T, r *mockRunner) {
	t.Helper()
	select {
	case <-r.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("照合パスが実行されなかった")
	}
}

func TestNewScheduler_RejectsInvalidSpec(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewScheduler(newMockRunner(), "every night", false, nil, newTestLogger(&buf)); err == nil {
		t.Fatal("不正なcron式でエラーが返らなかった")
	}
}

func TestNewScheduler_RejectsSecondsField(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewScheduler(newMockRunner(), "0 0 3 * * *", false, nil, newTestLogger(&buf)); err == nil {
		t.Fatal("6フィールドのcron式は受け付けない")
	}
}

func TestScheduler_Start_RunsOnStartAndOnSchedule(t *testing.T) {
	var buf bytes.Buffer
	runner := newMockRunner()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 2, 59, 0, 0, time.UTC))
	s, err := NewScheduler(runner, "0 3 * * *", true, clock, newTestLogger(&buf))
	if err != nil {
		t.Fatalf("NewScheduler がエラーを返した: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	waitRun(t, runner)

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("タイマーの待機に失敗: %v", err)
	}
	clock.Advance(time.Minute)
	waitRun(t, runner)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("スケジューラが停止しなかった")
	}

	if got := runner.calls.Load(); got != 2 {
		t.Errorf("実行回数 = %d, want 2", got)
	}
}

func TestScheduler_Start_WithoutRunOnStartWaitsForSchedule(t *testing.T) {
	var buf bytes.Buffer
	runner := newMockRunner()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC))
	s, err := NewScheduler(runner, "0 3 * * *", false, clock, newTestLogger(&buf))
	if err != nil {
		t.Fatalf("NewScheduler がエラーを返した: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("タイマーの待機に失敗: %v", err)
	}
	if got := runner.calls.Load(); got != 0 {
		t.Fatalf("スケジュール前に実行された: %d回", got)
	}

	clock.Advance(59 * time.Minute)
	select {
	case <-runner.ran:
		t.Fatal("スケジュール時刻より前に実行された")
	case <-time.After(50 * time.Millisecond):
	}

	clock.Advance(time.Minute)
	waitRun(t, runner)
}

func TestScheduler_Start_FailureDoesNotStopLoop(t *testing.T) {
	var buf bytes.Buffer
	runner := newMockRunner()
	runner.err = errors.New("directory unavailable")
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 2, 59, 0, 0, time.UTC))
	s, err := NewScheduler(runner, "* * * * *", true, clock, newTestLogger(&buf))
	if err != nil {
		t.Fatalf("NewScheduler がエラーを返した: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	waitRun(t, runner)
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("タイマーの待機に失敗: %v", err)
	}
	clock.Advance(time.Minute)
	waitRun(t, runner)

	cancel()
	<-done

	if !strings.Contains(buf.String(), "照合パスの実行に失敗しました") {
		t.Errorf("失敗がログに記録されていない: %s", buf.String())
	}
}
