package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsScheduledJob(t *testing.T) {
	d := NewDispatcher(4, zerolog.Nop())
	defer d.Close()

	done := make(chan struct{})
	d.Schedule(Job{
		Name: "ping",
		Run: func(ctx context.Context) error {
			close(done)
			return nil
		},
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
}

func TestDispatcherSwallowsFailuresAndPanics(t *testing.T) {
	d := NewDispatcher(4, zerolog.Nop())

	var ran atomic.Int32
	d.ScheduleAll(
		Job{Name: "fails", Run: func(ctx context.Context) error {
			ran.Add(1)
			return errors.New("boom")
		}},
		Job{Name: "panics", Run: func(ctx context.Context) error {
			ran.Add(1)
			panic("boom")
		}},
		Job{Name: "works", Run: func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}},
	)

	d.Close()
	assert.Equal(t, int32(3), ran.Load(), "a failed job must not take the worker down")
}

func TestScheduleNeverBlocksWhenFull(t *testing.T) {
	d := NewDispatcher(1, zerolog.Nop())
	defer d.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	d.Schedule(Job{Name: "blocker", Run: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}})
	<-started

	// fill the queue, then overflow it
	d.Schedule(Job{Name: "queued", Run: func(ctx context.Context) error { return nil }})

	returned := make(chan struct{})
	go func() {
		d.Schedule(Job{Name: "dropped", Run: func(ctx context.Context) error { return nil }})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("Schedule blocked on a full queue")
	}
	close(release)
}

func TestCloseDrainsQueuedJobs(t *testing.T) {
	d := NewDispatcher(16, zerolog.Nop())

	release := make(chan struct{})
	started := make(chan struct{})
	d.Schedule(Job{Name: "blocker", Run: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}})
	<-started

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		d.Schedule(Job{Name: "queued", Run: func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}})
	}

	close(release)
	d.Close()
	assert.Equal(t, int32(5), ran.Load(), "jobs queued before Close must still run")
}

func TestScheduleAfterCloseDropsJob(t *testing.T) {
	d := NewDispatcher(4, zerolog.Nop())
	d.Close()

	var ran atomic.Int32
	d.Schedule(Job{Name: "late", Run: func(ctx context.Context) error {
		ran.Add(1)
		return nil
	}})

	require.Equal(t, int32(0), ran.Load())
}
