package sched

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain"
	red "github.com/smitsergei/tma-subscription-sub002/internal/infra/redis"
)

// JobFunc is one run of a periodic job.
type JobFunc func(ctx context.Context) error

// Scheduler runs jobs on cron specs. With a locker configured, a run is skipped
// when another replica holds the job's lock.
type Scheduler struct {
	cron    *cron.Cron
	locker  red.Locker
	timeout time.Duration
	log     zerolog.Logger
}

func NewScheduler(locker red.Locker, timeout time.Duration, logger *zerolog.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	l := logger.With().Str("component", "scheduler").Logger()
	cl := cronLogger{log: l}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		locker:  locker,
		timeout: timeout,
		log:     l,
	}
}

// Register adds job under spec. An empty spec disables the job.
func (s *Scheduler) Register(name, spec string, job JobFunc) error {
	if spec == "" {
		s.log.Info().Str("job", name).Msg("job disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, job) }); err != nil {
		return err
	}
	s.log.Info().Str("job", name).Str("schedule", spec).Msg("job scheduled")
	return nil
}

func (s *Scheduler) run(name string, job JobFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if s.locker != nil {
		key := "lock:job:" + name
		token, err := s.locker.TryLock(ctx, key, s.timeout)
		if errors.Is(err, domain.ErrLockHeld) {
			s.log.Debug().Str("job", name).Msg("job running elsewhere, skipped")
			return
		}
		if err != nil {
			// Every job is idempotent, so run unlocked.
			s.log.Warn().Err(err).Str("job", name).Msg("lock unavailable, running unlocked")
		} else {
			defer func() {
				if err := s.locker.Unlock(context.Background(), key, token); err != nil {
					s.log.Warn().Err(err).Str("job", name).Msg("unlock failed")
				}
			}()
		}
	}

	start := time.Now()
	if err := job(ctx); err != nil {
		s.log.Error().Err(err).Str("job", name).Dur("took", time.Since(start)).Msg("job failed")
		return
	}
	s.log.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("job finished")
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop prevents new runs and returns a context done when running jobs finish.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{ log zerolog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
