package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Job is a best-effort side effect triggered by a committed transition.
// A job's failure is logged and swallowed; it never reaches the request
// that scheduled it.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher runs scheduled jobs on a worker goroutine decoupled from the
// request path. Schedule never blocks and never fails the caller: when the
// queue is full the job is dropped with a warning.
type Dispatcher struct {
	queue   chan Job
	log     zerolog.Logger
	wg      sync.WaitGroup
	closing chan struct{}
	once    sync.Once
}

func NewDispatcher(queueSize int, log zerolog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &Dispatcher{
		queue:   make(chan Job, queueSize),
		log:     log,
		closing: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) Schedule(job Job) {
	select {
	case <-d.closing:
		d.log.Warn().Str("job", job.Name).Msg("dispatcher closed, job dropped")
	case d.queue <- job:
	default:
		d.log.Warn().Str("job", job.Name).Msg("job queue full, job dropped")
	}
}

// ScheduleAll submits jobs in order; ordering between them is best-effort
// submission order only.
func (d *Dispatcher) ScheduleAll(jobs ...Job) {
	for _, job := range jobs {
		d.Schedule(job)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.queue:
			d.execute(job)
		case <-d.closing:
			// drain whatever was queued before shutdown
			for {
				select {
				case job := <-d.queue:
					d.execute(job)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) execute(job Job) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("job", job.Name).Interface("panic", r).Msg("job panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := job.Run(ctx); err != nil {
		d.log.Error().Err(err).Str("job", job.Name).Msg("job failed")
		return
	}
	d.log.Debug().Str("job", job.Name).Msg("job completed")
}

// Close stops accepting jobs and waits for the queued ones to drain.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.closing)
	})
	d.wg.Wait()
}
