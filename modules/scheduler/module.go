// Package scheduler emits events on cron schedules.
//
// A job names a schedule in standard cron syntax (or a descriptor such as
// "@hourly" or "@every 30s") and an event. Every tick emits the event on
// the application dispatcher, so the work itself lives in ordinary event
// handlers:
//
//	scheduler:
//	  jobs:
//	    - name: cleanup
//	      schedule: "0 3 * * *"
//	      event: jobs.cleanup
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/GoCodeAlone/colibri"
	"github.com/GoCodeAlone/colibri/events"
)

// ModuleName is the name of this module for registration and dependency resolution.
const ModuleName = "scheduler"

// Job is a scheduled event emission.
type Job struct {
	Name       string
	Schedule   string
	Event      string
	Cancelable bool
	Payload    any
}

func (j Job) validate() (cron.Schedule, error) {
	if j.Name == "" {
		return nil, ErrJobNameEmpty
	}
	if j.Event == "" {
		return nil, fmt.Errorf("%w: %s", ErrJobEventEmpty, j.Name)
	}
	schedule, err := cron.ParseStandard(j.Schedule)
	if err != nil {
		return nil, fmt.Errorf("%w: job %s: %q: %w", ErrInvalidSchedule, j.Name, j.Schedule, err)
	}
	return schedule, nil
}

// Execution records a single run of a job.
type Execution struct {
	ID        string
	Job       string
	StartTime time.Time
	EndTime   time.Time
	State     events.State
	Error     string
}

type entry struct {
	job  Job
	id   cron.EntryID
	last *Execution
}

// Module runs the configured jobs.
type Module struct {
	extra      []Job
	logger     colibri.Logger
	dispatcher *events.Dispatcher

	mu      sync.RWMutex
	cron    *cron.Cron
	entries map[string]*entry
	order   []string
	ctx     context.Context
	cancel  context.CancelFunc
}

// Option configures the module.
type Option func(*Module)

// WithJob adds a job next to the ones of the "scheduler" configuration section.
func WithJob(job Job) Option {
	return func(m *Module) {
		m.extra = append(m.extra, job)
	}
}

// New creates the module.
func New(opts ...Option) *Module {
	m := &Module{entries: make(map[string]*entry)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Name() string {
	return ModuleName
}

// Init validates every job and schedules it. Nothing runs before Start.
func (m *Module) Init(app *colibri.Application) error {
	m.logger = app.Logger()
	m.dispatcher = app.Events()
	m.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	jobs := make([]Job, 0, len(app.Config().Scheduler.Jobs)+len(m.extra))
	for _, jc := range app.Config().Scheduler.Jobs {
		jobs = append(jobs, Job{Name: jc.Name, Schedule: jc.Schedule, Event: jc.Event, Cancelable: jc.Cancelable})
	}
	jobs = append(jobs, m.extra...)

	for _, job := range jobs {
		if err := m.add(job); err != nil {
			return err
		}
	}
	m.logger.Info("Scheduler initialized", "jobs", len(jobs))
	return nil
}

func (m *Module) add(job Job) error {
	schedule, err := job.validate()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[job.Name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, job.Name)
	}
	e := &entry{job: job}
	e.id = m.cron.Schedule(schedule, cron.FuncJob(func() {
		m.run(m.runContext(), e)
	}))
	m.entries[job.Name] = e
	m.order = append(m.order, job.Name)
	m.logger.Debug("Scheduled job", "job", job.Name, "schedule", job.Schedule, "event", job.Event)
	return nil
}

func (m *Module) runContext() context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ctx == nil {
		return context.Background()
	}
	return m.ctx
}

// run emits the event of e and records the execution.
func (m *Module) run(ctx context.Context, e *entry) *Execution {
	exec := &Execution{
		ID:        uuid.New().String(),
		Job:       e.job.Name,
		StartTime: time.Now(),
	}

	opts := []events.EmitOption{events.WithPayload(e.job.Payload)}
	if e.job.Cancelable {
		opts = append(opts, events.Cancelable())
	}
	ev, err := m.dispatcher.Emit(ctx, e.job.Event, opts...)
	exec.EndTime = time.Now()
	if ev != nil {
		exec.State = ev.State()
	}
	if err != nil {
		exec.Error = err.Error()
		m.logger.Error("Scheduled job failed", "job", e.job.Name, "event", e.job.Event, "error", err)
	} else {
		m.logger.Debug("Scheduled job ran", "job", e.job.Name, "state", exec.State.String())
	}

	m.mu.Lock()
	e.last = exec
	m.mu.Unlock()
	return exec
}

// Trigger runs a job immediately, outside its schedule.
func (m *Module) Trigger(ctx context.Context, name string) (*Execution, error) {
	m.mu.RLock()
	e, ok := m.entries[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return m.run(ctx, e), nil
}

// Jobs returns the scheduled jobs in registration order.
func (m *Module) Jobs() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]Job, 0, len(m.order))
	for _, name := range m.order {
		jobs = append(jobs, m.entries[name].job)
	}
	return jobs
}

// LastRun returns the most recent execution of a job.
func (m *Module) LastRun(name string) (Execution, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	if !ok || e.last == nil {
		return Execution{}, false
	}
	return *e.last, true
}

// NextRun returns the next activation time of a job. It is zero until
// the module is started.
func (m *Module) NextRun(name string) (time.Time, bool) {
	m.mu.RLock()
	e, ok := m.entries[name]
	c := m.cron
	m.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}
	return c.Entry(e.id).Next, true
}

// Start starts the cron loop. Ticks emit with a context that is
// cancelled by Stop.
func (m *Module) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cron == nil {
		return ErrNotInitialized
	}
	if m.cancel != nil {
		return ErrAlreadyStarted
	}
	m.ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	m.cron.Start()
	m.logger.Info("Scheduler started", "jobs", len(m.entries))
	return nil
}

// Stop stops the cron loop and waits for running jobs until ctx is done.
func (m *Module) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel == nil {
		m.mu.Unlock()
		return nil
	}
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	done := m.cron.Stop()
	defer cancel()
	select {
	case <-done.Done():
		m.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler: waiting for running jobs: %w", ctx.Err())
	}
}
