package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsJobs(t *testing.T) {
	s := New(time.Second)
	fired := make(chan struct{})
	var once sync.Once
	err := s.AddJob("tick", "@every 10ms", func(ctx context.Context) error {
		once.Do(func() { close(fired) })
		return nil
	})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled job never fired")
	}
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(0)
	err := s.AddJob("bad", "not a schedule", func(ctx context.Context) error {
		return nil
	})
	assert.Error(t, err)
}

func TestEntries(t *testing.T) {
	s := New(0)
	require.NoError(t, s.AddJob("analyze", "@hourly", func(ctx context.Context) error {
		return nil
	}))

	s.Start()
	defer s.Stop()

	next := s.Entries()
	require.Contains(t, next, "analyze")
	assert.False(t, next["analyze"].IsZero())
}
