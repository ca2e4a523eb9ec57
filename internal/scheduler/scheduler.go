// Package scheduler runs scan jobs on a cron expression, re-reading a
// target file and driving it through a fresh Orchestrator on each firing.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/pingcrafty/mcscan/internal/db"
	"github.com/pingcrafty/mcscan/internal/logging"
	"github.com/pingcrafty/mcscan/internal/orchestrator"
	"github.com/pingcrafty/mcscan/internal/target"
)

// JobConfig is what a scheduled job repeats: a target file plus an
// orchestrator configuration and the default port to assign lines that
// don't carry one.
type JobConfig struct {
	Name         string
	CronExpr     string
	TargetFile   string
	DefaultPort  uint16
	Orchestrator orchestrator.Config
}

// Job is a scheduled job's bookkeeping, mirroring what a caller needs to
// list or cancel scheduled scans.
type Job struct {
	ID      uuid.UUID
	Config  JobConfig
	cronID  cron.EntryID
	LastRun time.Time
	Running bool
}

// SinkFactory builds a fresh persistence sink for each firing; scheduled
// scans get their own sink lifetime rather than sharing one across runs.
type SinkFactory func() (db.Sink, error)

// Scheduler wraps a cron.Cron instance and tracks the jobs registered
// against it, following the teacher's job-map-plus-cron-entry-ID pattern.
type Scheduler struct {
	cron        *cron.Cron
	sinkFactory SinkFactory

	mu      sync.RWMutex
	jobs    map[uuid.UUID]*Job
	running bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a Scheduler. sinkFactory may be nil, in which case scheduled
// scans run without a persistence sink (enrich/notify hooks still fire).
func New(sinkFactory SinkFactory) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:        cron.New(cron.WithSeconds()),
		sinkFactory: sinkFactory,
		jobs:        make(map[uuid.UUID]*Job),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins firing registered jobs on their cron schedules.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	logging.Info("scheduler started", "job_count", len(s.jobs))
}

// Stop halts the cron scheduler and cancels any context derived from it.
// In-flight scans are not interrupted; they run to their own completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.cancel()
	s.running = false
	logging.Info("scheduler stopped")
}

// AddJob registers a scan to repeat on cfg.CronExpr and returns its ID.
func (s *Scheduler) AddJob(cfg JobConfig) (uuid.UUID, error) {
	id := uuid.New()
	job := &Job{ID: id, Config: cfg}

	entryID, err := s.cron.AddFunc(cfg.CronExpr, func() {
		s.runJob(job)
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("scheduler: invalid cron expression %q: %w", cfg.CronExpr, err)
	}
	job.cronID = entryID

	s.mu.Lock()
	s.jobs[id] = job
	s.mu.Unlock()

	logging.Info("scheduled scan registered", "job", cfg.Name, "cron", cfg.CronExpr, "target_file", cfg.TargetFile)
	return id, nil
}

// RemoveJob cancels a scheduled scan; a run already in progress completes.
func (s *Scheduler) RemoveJob(id uuid.UUID) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if ok {
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	if ok {
		s.cron.Remove(job.cronID)
	}
}

// Jobs returns a snapshot of every registered job.
func (s *Scheduler) Jobs() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	return out
}

func (s *Scheduler) runJob(job *Job) {
	s.mu.Lock()
	if job.Running {
		s.mu.Unlock()
		logging.Warn("scheduled scan still running, skipping this firing", "job", job.Config.Name)
		return
	}
	job.Running = true
	job.LastRun = time.Now()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		job.Running = false
		s.mu.Unlock()
	}()

	source, err := target.NewFileSource(job.Config.TargetFile, job.Config.DefaultPort)
	if err != nil {
		logging.Error("scheduled scan failed to open target file", "job", job.Config.Name, "error", err)
		return
	}

	var sink db.Sink
	if s.sinkFactory != nil {
		sink, err = s.sinkFactory()
		if err != nil {
			logging.Error("scheduled scan failed to build sink", "job", job.Config.Name, "error", err)
			return
		}
	}

	logging.Info("scheduled scan starting", "job", job.Config.Name)
	o := orchestrator.New(job.Config.Orchestrator, source, sink)
	if err := o.Run(s.ctx); err != nil {
		logging.Error("scheduled scan failed", "job", job.Config.Name, "error", err)
		return
	}
	logging.Info("scheduled scan completed", "job", job.Config.Name)
}
