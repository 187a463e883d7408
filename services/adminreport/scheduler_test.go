package adminreport

import (
	"context"
	"sync"
	"testing"
	"time"

	"betabay-platform/pkg/config"
	"betabay-platform/pkg/taskname"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type enqueuerMock struct {
	mu    sync.Mutex
	types []string
}

func (m *enqueuerMock) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types = append(m.types, task.Type())
	return &asynq.TaskInfo{}, nil
}

func TestRunDailyEnqueuesReportingTasks(t *testing.T) {
	enq := &enqueuerMock{}
	s := NewScheduler(&config.Config{}, enq)

	s.runDaily()

	require.Equal(t, []string{
		taskname.PayoutSummaryDaily,
		taskname.RewardPoolReconcile,
	}, enq.types)
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	cfg := &config.Config{}
	// schedule the next run far enough out that the loop parks in select
	cfg.Payout.SummaryHour = (time.Now().Hour() + 2) % 24

	s := NewScheduler(cfg, &enqueuerMock{})

	ctx, cancel := context.WithCancel(context.Background())
	go s.run(ctx)

	cancel()

	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}

func TestNextRunTime(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	next := nextRunTime(now, 11, 0)
	require.Equal(t, time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC), next)

	next = nextRunTime(now, 6, 0)
	require.Equal(t, time.Date(2026, 3, 15, 6, 0, 0, 0, time.UTC), next)
}
