package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"netpulse/internal/logger"
	"netpulse/internal/models"
)

// Hooks receive engine output. Any of them may be nil.
type Hooks struct {
	OnStart func(sess models.Session)
	OnTick  func(batch []models.PingRecord, view View)
	OnStop  func(sess models.Session)
	// OnClock fires once per second whether or not a session is running.
	OnClock func(now time.Time)
}

// Runner schedules controller ticks and the independent clock job.
type Runner struct {
	ctl      *Controller
	cron     *cron.Cron
	log      *logger.Logger
	interval time.Duration
	hooks    Hooks

	mu    sync.Mutex
	entry cron.EntryID
}

func NewRunner(ctl *Controller, interval time.Duration, log *logger.Logger, hooks Hooks) *Runner {
	cl := logger.CronLogger{L: log}
	r := &Runner{
		ctl:      ctl,
		cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		log:      log,
		interval: interval,
		hooks:    hooks,
	}
	if hooks.OnClock != nil {
		r.cron.Schedule(cron.Every(time.Second), cron.FuncJob(func() {
			hooks.OnClock(time.Now())
		}))
	}
	return r
}

func (r *Runner) Controller() *Controller {
	return r.ctl
}

// Run starts the scheduler and blocks until ctx is done. A session still
// running at that point is stopped so its summary is archived.
func (r *Runner) Run(ctx context.Context) {
	r.cron.Start()
	<-ctx.Done()

	if _, err := r.Stop(); err != nil && !errors.Is(err, ErrNotMonitoring) {
		r.log.Warn("stop on shutdown failed", "error", err)
	}
	<-r.cron.Stop().Done()
}

// Start opens a session and schedules its ticks.
func (r *Runner) Start() (models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, err := r.ctl.Start()
	if err != nil {
		return models.Session{}, err
	}

	id := sess.ID
	job := cron.NewChain(cron.DelayIfStillRunning(logger.CronLogger{L: r.log})).Then(cron.FuncJob(func() { r.tick(id) }))
	r.entry = r.cron.Schedule(cron.Every(r.interval), job)

	r.log.Info("monitoring started", "session", sess.ID, "nodes", len(sess.Nodes))
	if r.hooks.OnStart != nil {
		r.hooks.OnStart(sess)
	}
	return sess, nil
}

// Stop unschedules ticks and closes the session. A tick already running
// completes first; none is applied after Stop returns.
func (r *Runner) Stop() (models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entry != 0 {
		r.cron.Remove(r.entry)
		r.entry = 0
	}

	sess, err := r.ctl.Stop()
	if err != nil {
		return models.Session{}, err
	}

	r.log.Info("monitoring stopped",
		"session", sess.ID,
		"records", len(sess.Records),
		"duration", time.Duration(sess.EndTime-sess.StartTime)*time.Millisecond,
	)
	if r.hooks.OnStop != nil {
		r.hooks.OnStop(sess)
	}
	return sess, nil
}

// tick runs one round for session id. Rounds dispatched before a Stop, or
// before a Stop and a new Start, are dropped.
func (r *Runner) tick(id string) {
	batch, view, err := r.ctl.TickSession(id)
	if err != nil {
		r.log.Debug("tick skipped", "session", id, "error", err)
		return
	}
	r.log.Debug("tick", "records", len(batch), "live_score", view.Live.Score, "session_score", view.Session.Score)
	if r.hooks.OnTick != nil {
		r.hooks.OnTick(batch, view)
	}
}
