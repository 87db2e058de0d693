package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"docflow/api/internal/models"
	"docflow/api/internal/repository"
)

// Scheduler runs the daily review-backlog sweep: it counts documents still
// pending and publishes a reminder event for the admin notification feed.
type Scheduler struct {
	cron      *cron.Cron
	queue     *redis.Client
	documents *repository.DocumentRepository
	log       zerolog.Logger
}

func NewScheduler(queue *redis.Client, documents *repository.DocumentRepository, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		queue:     queue,
		documents: documents,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 8 * * *", s.sweepPending); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) sweepPending() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := s.documents.CountByStatus(ctx, models.DocumentStatusPending)
	if err != nil {
		s.log.Error().Err(err).Msg("pending sweep count failed")
		return
	}
	if count == 0 {
		return
	}

	s.log.Info().Int("pending", count).Msg("documents awaiting review")

	if s.queue == nil {
		return
	}
	if err := s.queue.XAdd(ctx, &redis.XAddArgs{
		Stream: notifyStream,
		Values: map[string]any{
			"type":    "pending_reminder",
			"pending": count,
		},
	}).Err(); err != nil {
		s.log.Error().Err(err).Msg("enqueue pending reminder failed")
	}
}
