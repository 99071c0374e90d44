// Package maintenance runs periodic database housekeeping on cron schedules.
package maintenance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/config"
	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/database"
)

// Job names.
const (
	JobHealthCheck  = "health_check"
	JobSessionPurge = "session_purge"
	JobOptimize     = "optimize"
)

// jobTimeout bounds a single job run.
const jobTimeout = 5 * time.Minute

type job struct {
	name     string
	schedule string
	run      func(ctx context.Context) error
	entryID  cron.EntryID

	lastRun *time.Time
	lastErr string
}

// JobStatus is a snapshot of one scheduled job.
type JobStatus struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Scheduler runs the health probe, session purge and optimize jobs.
type Scheduler struct {
	db      *database.DB
	cron    *cron.Cron
	jobs    map[string]*job
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	now     func() time.Time
}

// New creates a scheduler. Jobs with an empty schedule are not registered.
func New(db *database.DB, cfg config.MaintenanceConfig) *Scheduler {
	s := &Scheduler{
		db:   db,
		cron: cron.New(cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{}))),
		jobs: make(map[string]*job),
		now:  time.Now,
	}
	s.add(JobHealthCheck, cfg.HealthCheck, s.healthCheck)
	s.add(JobSessionPurge, cfg.SessionPurge, s.purgeSessions)
	s.add(JobOptimize, cfg.Optimize, s.optimize)
	return s
}

func (s *Scheduler) add(name, schedule string, run func(context.Context) error) {
	if schedule == "" {
		return
	}
	s.jobs[name] = &job{name: name, schedule: schedule, run: run}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	for _, j := range s.jobs {
		name := j.name
		id, err := s.cron.AddFunc(j.schedule, func() { s.runJob(name) })
		if err != nil {
			for _, registered := range s.jobs {
				if registered.entryID != 0 {
					s.cron.Remove(registered.entryID)
					registered.entryID = 0
				}
			}
			return fmt.Errorf("invalid %s schedule %q: %w", name, j.schedule, err)
		}
		j.entryID = id
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron.Start()
	s.running = true

	log.Info().Int("jobs", len(s.jobs)).Msg("Maintenance scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()

	log.Info().Msg("Maintenance scheduler stopped")
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Status returns the jobs sorted by name.
func (s *Scheduler) Status() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		st := JobStatus{Name: j.name, Schedule: j.schedule, LastRun: j.lastRun, LastError: j.lastErr}
		if j.entryID != 0 {
			if entry := s.cron.Entry(j.entryID); !entry.Next.IsZero() {
				next := entry.Next
				st.NextRun = &next
			}
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// RunNow runs the named job synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown maintenance job %q", name)
	}
	return s.execute(ctx, j)
}

func (s *Scheduler) runJob(name string) {
	s.mu.RLock()
	j, ok := s.jobs[name]
	ctx := s.ctx
	s.mu.RUnlock()
	if !ok || ctx == nil {
		return
	}
	if err := s.execute(ctx, j); err != nil {
		log.Error().Err(err).Str("job", name).Msg("Maintenance job failed")
	}
}

func (s *Scheduler) execute(ctx context.Context, j *job) error {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	start := s.now()
	err := j.run(ctx)

	s.mu.Lock()
	j.lastRun = &start
	j.lastErr = ""
	if err != nil {
		j.lastErr = err.Error()
	}
	s.mu.Unlock()

	log.Debug().Str("job", j.name).Dur("duration", time.Since(start)).Msg("Maintenance job finished")
	return err
}

// healthCheck probes the connection and, when the probe fails, asks the
// manager for a handle so a reconnect happens before the next request.
func (s *Scheduler) healthCheck(ctx context.Context) error {
	err := s.db.HealthCheck(ctx)
	if err == nil {
		log.Trace().Str("state", s.db.State().String()).Msg("Database healthy")
		return nil
	}

	log.Warn().Err(err).Str("state", s.db.State().String()).Msg("Database health check failed, reconnecting")
	if _, err := s.db.Conn(ctx); err != nil {
		return fmt.Errorf("failed to recover database connection: %w", err)
	}
	log.Info().Msg("Database connection recovered")
	return nil
}

func (s *Scheduler) purgeSessions(ctx context.Context) error {
	if !config.NewLoader(ctx, s.db.Settings).BoolDefaultTrue("maintenance.session_purge") {
		return nil
	}
	n, err := s.db.Sessions.PurgeExpired(ctx, s.now())
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info().Int64("sessions", n).Msg("Purged expired sessions")
	}
	return nil
}

func (s *Scheduler) optimize(ctx context.Context) error {
	if !config.NewLoader(ctx, s.db.Settings).BoolDefaultTrue("maintenance.optimize_enabled") {
		return nil
	}
	start := time.Now()
	if err := s.db.Optimize(ctx); err != nil {
		return err
	}
	log.Info().Dur("duration", time.Since(start)).Msg("Database optimized")
	return nil
}

// cronLogger routes cron's own messages into zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
