package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDemarginer struct {
	mu    sync.Mutex
	calls []time.Time
	count int
	err   error
}

func (f *fakeDemarginer) DemarginRecent(ctx context.Context, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, since)
	return f.count, f.err
}

func newTestScheduler(d Demarginer) *Scheduler {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewScheduler(d, log)
}

func TestRunOnceUsesLookback(t *testing.T) {
	fake := &fakeDemarginer{count: 3}
	s := newTestScheduler(fake)
	now := time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	count, err := s.RunOnce(context.Background(), 30*time.Minute)

	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, now.Add(-30*time.Minute), fake.calls[0])
}

func TestRunOncePropagatesError(t *testing.T) {
	s := newTestScheduler(&fakeDemarginer{err: errors.New("database unavailable")})

	_, err := s.RunOnce(context.Background(), time.Hour)
	assert.Error(t, err)
}

func TestScheduleDemarginValidation(t *testing.T) {
	s := newTestScheduler(&fakeDemarginer{})

	assert.Error(t, s.ScheduleDemargin("not a schedule", time.Hour))
	assert.Error(t, s.ScheduleDemargin("*/5 * * * *", 0))
	assert.Error(t, s.Start(), "start without jobs")
}

func TestSchedulerLifecycle(t *testing.T) {
	s := newTestScheduler(&fakeDemarginer{})

	require.NoError(t, s.ScheduleDemargin("*/5 * * * *", time.Hour))
	assert.Len(t, s.Entries(), 1)
	assert.True(t, s.GetNextRun().IsZero())

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start())
	assert.Error(t, s.ScheduleDemargin("@hourly", time.Hour))

	assert.Eventually(t, func() bool {
		return !s.GetNextRun().IsZero()
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.NoError(t, s.Stop())
}
