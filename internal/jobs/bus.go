package jobs

import (
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Effects is the side-effect entry point the services see. It translates
// committed transitions into dispatcher jobs.
type Effects struct {
	dispatcher *Dispatcher
	queue      *redis.Client
	log        zerolog.Logger
}

func NewEffects(dispatcher *Dispatcher, queue *redis.Client, log zerolog.Logger) *Effects {
	return &Effects{
		dispatcher: dispatcher,
		queue:      queue,
		log:        log,
	}
}

// TransitionCommitted schedules the audit-log and notify-owner jobs for a
// transition that already committed. It returns immediately; job outcomes
// never reach the caller.
func (e *Effects) TransitionCommitted(event TransitionEvent) {
	e.dispatcher.ScheduleAll(
		AuditLogJob(e.log, event),
		NotifyOwnerJob(e.queue, event),
	)
}

func (e *Effects) Schedule(job Job) {
	e.dispatcher.Schedule(job)
}
