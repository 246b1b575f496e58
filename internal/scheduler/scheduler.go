package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/metrics"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/pipeline"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PassRunner runs one pick pass
type PassRunner interface {
	RunPass(ctx context.Context) (*pipeline.Report, error)
}

// Scheduler runs pick passes on a cron schedule.
// A tick that arrives while the previous pass is still running is skipped;
// the store lock keeps passes from other processes out.
type Scheduler struct {
	spec       string
	runOnStart bool
	newRunner  func(now time.Time) PassRunner

	cron *cron.Cron
	wg   sync.WaitGroup

	mu      sync.Mutex
	running bool
	last    *pipeline.Report
	lastErr error
}

// NewScheduler creates a scheduler. newRunner is called per pass so the
// season can roll over without a restart.
func NewScheduler(spec string, runOnStart bool, newRunner func(now time.Time) PassRunner) *Scheduler {
	return &Scheduler{
		spec:       spec,
		runOnStart: runOnStart,
		newRunner:  newRunner,
		cron:       cron.New(cron.WithLogger(cronLogger{log.Logger})),
	}
}

// Start schedules passes and, if configured, runs one immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	log.Info().Msg("Scheduler starting...")

	if _, err := s.cron.AddFunc(s.spec, func() { s.RunNow(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pick pass: %w", err)
	}
	s.cron.Start()
	log.Info().Str("schedule", s.spec).Msg("Pick pass scheduled")

	if s.runOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.RunNow(ctx)
		}()
	}
	return nil
}

// Stop stops scheduling and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	log.Info().Msg("Stopping scheduler...")

	<-s.cron.Stop().Done()
	s.wg.Wait()

	log.Info().Msg("Scheduler stopped")
}

// RunNow runs one pass unless one is already running in this process.
// It reports whether a pass ran.
func (s *Scheduler) RunNow(ctx context.Context) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Warn().Msg("Previous pass still running, skipping tick")
		return false
	}
	s.running = true
	s.mu.Unlock()

	metrics.RecordWorkerRun()
	report, err := s.newRunner(time.Now()).RunPass(ctx)

	s.mu.Lock()
	s.running = false
	s.last, s.lastErr = report, err
	s.mu.Unlock()
	return true
}

// Last returns the most recent pass report and error.
func (s *Scheduler) Last() (*pipeline.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastErr
}

// cronLogger adapts zerolog to cron's logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
