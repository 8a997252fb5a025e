package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/user/wind_analyzer_go/internal/logging"
)

// DefaultInterval is the delay between a status response and the next poll.
const DefaultInterval = 2 * time.Second

// Backend submits jobs and reports their status.
type Backend interface {
	SubmitJob(ctx context.Context, params Params) (Submission, error)
	JobStatus(ctx context.Context, ref Ref) (StatusReport, error)
}

// Options configure a Controller. Zero values select the defaults.
type Options struct {
	// Interval is measured from the receipt of one status response to the
	// issue of the next request, so slow responses never overlap.
	Interval time.Duration
	// MaxAttempts and MaxDuration bound a polling loop; 0 means unlimited.
	MaxAttempts int
	MaxDuration time.Duration

	Scheduler Scheduler
	Logger    *logging.Logger
	Now       func() time.Time

	// OnChange and OnError are invoked in order on a dispatcher goroutine,
	// never while the controller lock is held, so they may call back into
	// the controller.
	OnChange func(Snapshot)
	OnError  func(error)
}

// Controller is the asynchronous task state machine:
//
//	Idle -> Submitting -> Polling -> Completed | Failed
//
// Cancel returns to Idle from any state. It is safe for concurrent use.
type Controller struct {
	backend Backend
	opts    Options
	sched   Scheduler
	log     *logging.Logger

	mu         sync.Mutex
	gen        uint64
	state      State
	task       *AnalysisTask
	result     *Result
	failure    *AnalysisFailure
	lastErr    error
	attempts   int
	startedAt  time.Time
	timer      Stopper
	loopCtx    context.Context
	loopCancel context.CancelFunc
	changed    chan struct{}
	closed     bool
	nextPoll   *Options

	events      []event
	dispatching bool
}

type event struct {
	snap *Snapshot
	err  error
}

// NewController creates an idle controller.
func NewController(backend Backend, opts Options) *Controller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = timerScheduler{}
	}
	return &Controller{
		backend: backend,
		opts:    opts,
		sched:   sched,
		log:     logging.OrNop(opts.Logger).WithComponent("task"),
		changed: make(chan struct{}),
	}
}

// Submit starts a new task, superseding any task in flight. It blocks until
// the backend accepts or rejects the job. Rejections are returned as
// *SubmissionError and leave the controller Idle.
func (c *Controller) Submit(ctx context.Context, params Params) (*AnalysisTask, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, &SubmissionError{Reason: "controller closed", Err: ErrClosed}
	}
	c.stopLocked()
	if c.nextPoll != nil {
		c.opts.Interval = c.nextPoll.Interval
		c.opts.MaxAttempts = c.nextPoll.MaxAttempts
		c.opts.MaxDuration = c.nextPoll.MaxDuration
		c.nextPoll = nil
	}
	gen := c.gen
	c.task, c.result, c.failure, c.lastErr = nil, nil, nil, nil
	c.attempts = 0
	c.setStateLocked(Submitting)
	c.mu.Unlock()

	sub, err := c.safeSubmit(ctx, params)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		c.log.Debug("discarding stale submission response", "generation", gen)
		return nil, &SubmissionError{Reason: "superseded", Err: ErrStale}
	}
	if err == nil && sub.Ref == "" {
		err = &SubmissionError{Reason: "backend returned an empty task reference"}
	}
	if err != nil {
		serr := asSubmissionError(err)
		c.lastErr = serr
		c.log.Warn("analysis submission rejected", "error", serr)
		c.setStateLocked(Idle)
		return nil, serr
	}

	now := c.opts.Now()
	t := &AnalysisTask{Ref: sub.Ref, Params: params, SubmittedAt: now}
	c.task = t
	c.startedAt = now
	c.loopCtx, c.loopCancel = context.WithCancel(context.Background())
	c.log.WithTask(string(sub.Ref)).Info("analysis submitted", "status", sub.Status.Status.String())

	if !c.applyReportLocked(sub.Ref, sub.Status) {
		c.setStateLocked(Polling)
		c.scheduleLocked(gen, sub.Ref)
	}
	out := *t
	return &out, nil
}

// Cancel stops any polling loop and returns to Idle. A stored result or
// failure stays visible in Snapshot. Cancel is idempotent.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	if c.state == Idle {
		return
	}
	c.log.Info("analysis cancelled", "state", c.state.String())
	c.setStateLocked(Idle)
}

// SetPolling replaces the interval and poll limits. The running loop keeps
// its settings; the new ones apply from the next Submit.
func (c *Controller) SetPolling(interval time.Duration, maxAttempts int, maxDuration time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextPoll = &Options{Interval: interval, MaxAttempts: maxAttempts, MaxDuration: maxDuration}
}

// Close cancels the current task and rejects further submissions.
func (c *Controller) Close() {
	c.Cancel()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a consistent copy of the controller's state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Wait blocks until no task is in flight or ctx ends.
func (c *Controller) Wait(ctx context.Context) (Snapshot, error) {
	for {
		c.mu.Lock()
		if !c.state.Busy() {
			s := c.snapshotLocked()
			c.mu.Unlock()
			return s, nil
		}
		ch := c.changed
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		}
	}
}

func (c *Controller) poll(gen uint64, ref Ref) {
	c.mu.Lock()
	if gen != c.gen || c.state != Polling {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.attempts++
	attempt := c.attempts
	ctx := c.loopCtx
	c.mu.Unlock()

	report, err := c.safeStatus(ctx, ref)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != Polling {
		c.log.Debug("discarding stale poll response", "task_id", ref, "attempt", attempt)
		return
	}
	log := c.log.WithTask(string(ref))

	if err != nil {
		perr := &TransientPollError{Ref: ref, Attempt: attempt, Err: err}
		c.lastErr = perr
		log.Warn("status poll failed", "attempt", attempt, "error", err)
		c.enqueueLocked(event{err: perr})
		c.continueLocked(gen, ref)
		return
	}

	c.lastErr = nil
	log.Debug("status polled", "attempt", attempt, "status", report.Status.String())
	if !c.applyReportLocked(ref, report) {
		c.continueLocked(gen, ref)
	}
}

// safeSubmit turns a backend panic into a rejected submission.
func (c *Controller) safeSubmit(ctx context.Context, params Params) (sub Submission, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &SubmissionError{Reason: fmt.Sprintf("submit request panicked: %v", r)}
		}
	}()
	return c.backend.SubmitJob(ctx, params)
}

// safeStatus turns a backend panic into a transport error.
func (c *Controller) safeStatus(ctx context.Context, ref Ref) (report StatusReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("status request panicked: %v", r)
		}
	}()
	return c.backend.JobStatus(ctx, ref)
}

// applyReportLocked moves to a terminal state when the report is terminal
// and reports whether it did.
func (c *Controller) applyReportLocked(ref Ref, report StatusReport) bool {
	switch report.Status {
	case StatusCompleted:
		c.result = report.Result
		c.log.WithTask(string(ref)).Info("analysis completed", "attempts", c.attempts)
		c.finishLocked(Completed)
		return true
	case StatusFailed:
		msg := report.Error
		if msg == "" {
			msg = "backend reported failure"
		}
		c.failure = &AnalysisFailure{Ref: ref, Message: msg}
		c.log.WithTask(string(ref)).Warn("analysis failed", "error", msg)
		c.finishLocked(Failed)
		return true
	default:
		return false
	}
}

// continueLocked schedules the next poll unless a limit has been reached.
func (c *Controller) continueLocked(gen uint64, ref Ref) {
	limited := c.opts.MaxAttempts > 0 && c.attempts >= c.opts.MaxAttempts
	if c.opts.MaxDuration > 0 && c.opts.Now().Sub(c.startedAt) >= c.opts.MaxDuration {
		limited = true
	}
	if !limited {
		c.scheduleLocked(gen, ref)
		c.publishLocked()
		return
	}
	c.failure = &AnalysisFailure{
		Ref:     ref,
		Message: fmt.Sprintf("no terminal status after %d polls", c.attempts),
		Err:     ErrPollLimitExceeded,
	}
	c.log.WithTask(string(ref)).Warn("giving up on analysis", "attempts", c.attempts)
	c.finishLocked(Failed)
}

func (c *Controller) scheduleLocked(gen uint64, ref Ref) {
	c.timer = c.sched.AfterFunc(c.opts.Interval, func() { c.poll(gen, ref) })
}

func (c *Controller) finishLocked(s State) {
	if c.loopCancel != nil {
		c.loopCancel()
		c.loopCancel = nil
	}
	c.setStateLocked(s)
}

// stopLocked invalidates every outstanding poll.
func (c *Controller) stopLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.loopCancel != nil {
		c.loopCancel()
		c.loopCancel = nil
	}
}

func (c *Controller) setStateLocked(s State) {
	c.state = s
	close(c.changed)
	c.changed = make(chan struct{})
	c.publishLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		State:     c.state,
		Result:    c.result,
		Failure:   c.failure,
		LastError: c.lastErr,
		Attempts:  c.attempts,
	}
	if c.task != nil {
		t := *c.task
		s.Task = &t
	}
	return s
}

func (c *Controller) publishLocked() {
	if c.opts.OnChange == nil {
		return
	}
	s := c.snapshotLocked()
	c.enqueueLocked(event{snap: &s})
}

func (c *Controller) enqueueLocked(e event) {
	if e.snap != nil && c.opts.OnChange == nil {
		return
	}
	if e.err != nil && c.opts.OnError == nil {
		return
	}
	c.events = append(c.events, e)
	if !c.dispatching {
		c.dispatching = true
		go c.dispatch()
	}
}

func (c *Controller) dispatch() {
	for {
		c.mu.Lock()
		if len(c.events) == 0 {
			c.dispatching = false
			c.mu.Unlock()
			return
		}
		e := c.events[0]
		c.events = c.events[1:]
		c.mu.Unlock()

		if e.snap != nil {
			c.opts.OnChange(*e.snap)
		} else {
			c.opts.OnError(e.err)
		}
	}
}
