package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/librescoot/librefsm"

	"logbot-service/internal/fsm"
	"logbot-service/internal/logger"
	"logbot-service/internal/types"
)

// DefaultGracePeriod bounds how long a cancelled run may take to stop.
const DefaultGracePeriod = 2 * time.Second

type Options struct {
	Grace         time.Duration
	Preconditions PreconditionTable
	Messaging     MessagingClient
	Logger        *logger.Logger
}

type activeRun struct {
	kind      types.ActionKind
	id        uuid.UUID
	startedAt time.Time
	cancel    types.CancelFunc
	done      chan struct{}

	// Written once before done is closed
	result types.ActionResult

	// Set under the robot lock when the run is released without stopping
	abandoned bool
}

// Controller arbitrates access to the robot: at most one hardware action
// runs at a time, and every request is answered with a single decision
// taken under the robot lock.
type Controller struct {
	lock          *RobotLock
	actions       ActionSet
	preconditions PreconditionTable
	grace         time.Duration
	redis         MessagingClient
	logger        *logger.Logger

	healthy atomic.Bool
	closed  bool
	stop    context.CancelFunc

	active *activeRun
	last   *types.LastCompleted
	orphan *activeRun

	// Status machine, nil until Start. fsmStopped is set by Close before the
	// machine's loop goes away.
	sendFSM    func(librefsm.EventID) error
	fsmState   func() librefsm.StateID
	fsmStopped bool

	// Messaging calls and status changes are delivered by the notifier,
	// never under the robot lock
	notifyMu     sync.Mutex
	pending      *types.Snapshot
	outbox       []message
	notify       chan struct{}
	notifierDone chan struct{}
	listeners    []func(types.Snapshot)
}

// message is a queued call on the messaging client.
type message struct {
	what string
	send func(MessagingClient) error
}

func NewController(lock *RobotLock, actions ActionSet, opts Options) (*Controller, error) {
	if lock == nil {
		return nil, fmt.Errorf("robot lock is required")
	}
	if err := actions.Validate(); err != nil {
		return nil, err
	}
	if opts.Grace <= 0 {
		opts.Grace = DefaultGracePeriod
	}
	if opts.Preconditions == nil {
		opts.Preconditions = DefaultPreconditions
	}
	if opts.Messaging == nil {
		opts.Messaging = nopMessaging{}
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Controller{
		lock:          lock,
		actions:       actions,
		preconditions: opts.Preconditions,
		grace:         opts.Grace,
		redis:         opts.Messaging,
		logger:        opts.Logger,
		notify:        make(chan struct{}, 1),
	}, nil
}

// Start brings up the status machine and the change notifier. The
// controller reports healthy from here until Close.
func (c *Controller) Start(ctx context.Context) error {
	c.logger.Infof("Starting action controller (grace period %s)", c.grace)

	ctx, cancel := context.WithCancel(ctx)
	if err := c.initFSM(ctx); err != nil {
		cancel()
		return fmt.Errorf("failed to start status machine: %w", err)
	}
	c.stop = cancel

	c.notifierDone = make(chan struct{})
	go c.notifier(ctx)

	c.lock.Lock()
	c.emit()
	c.lock.Unlock()

	c.healthy.Store(true)
	return nil
}

// Dispatch handles one request. It returns once the decision is made: a
// started action keeps running in the background, a cancelled one has
// stopped (or timed out) before Dispatch returns.
func (c *Controller) Dispatch(requested types.ActionKind) DispatchResult {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.closed {
		return failure("", ErrClosed)
	}
	if requested != types.ActionStop && c.actions[requested] == nil {
		return DispatchResult{Status: http.StatusNotFound, Err: fmt.Errorf("%w: %q", ErrUnknownAction, requested)}
	}

	c.reap()
	released := c.resolveOrphan()

	var previous types.ActionKind
	if c.active != nil {
		previous = c.active.kind
	}

	if requested.IsHardware() && !c.preconditions.Satisfied(requested, previous, c.last) {
		required, _ := c.preconditions.Required(requested)
		c.logger.Infof("Rejecting %s: requires a successful %s first", requested, required)
		return preconditionUnmet(required)
	}

	d := decide(requested, previous)
	c.logger.Debugf("Dispatch %s with %q active: %s", requested, previous, d)

	switch d {
	case decideNothing:
		// A stop that released an orphan names it
		return accepted(released)

	case decideConflict:
		c.logger.Infof("Rejecting %s: already running (run %s)", requested, c.active.id)
		return conflict(previous)

	case decideCancel:
		if err := c.cancelActive(); err != nil {
			return failure(previous, err)
		}
		c.sendEvent(fsm.EvStopped)
		c.emit()
		return accepted(previous)

	case decideReplace:
		if err := c.cancelActive(); err != nil {
			return failure(previous, err)
		}
		c.start(requested)
		return accepted(previous)

	default:
		c.start(requested)
		return accepted("")
	}
}

// Health reports whether the controller is up. It never blocks on the
// robot lock.
func (c *Controller) Health() bool {
	return c.healthy.Load()
}

// Status returns the current controller status.
func (c *Controller) Status() types.Snapshot {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.reap()
	return c.snapshot()
}

// OnChange registers fn to receive every status change. fn runs on the
// notifier goroutine and must not block for long.
func (c *Controller) OnChange(fn func(types.Snapshot)) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Close cancels the active run and stops accepting requests.
func (c *Controller) Close() error {
	c.healthy.Store(false)

	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return nil
	}
	c.closed = true
	c.logger.Infof("Closing action controller")

	var err error
	if c.active != nil {
		kind := c.active.kind
		if cerr := c.cancelActive(); cerr != nil {
			err = fmt.Errorf("failed to stop %s: %w", kind, cerr)
		} else {
			c.sendEvent(fsm.EvStopped)
			c.emit()
		}
	}
	// An orphan left behind still retires through execute
	c.fsmStopped = true
	c.lock.Unlock()

	if c.stop != nil {
		c.stop()
	}
	if c.notifierDone != nil {
		<-c.notifierDone
	}
	return err
}

// start launches kind on its own goroutine. Must hold the robot lock.
func (c *Controller) start(kind types.ActionKind) {
	token, cancel := types.NewCancelToken()
	run := &activeRun{
		kind:      kind,
		id:        uuid.New(),
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	c.active = run
	c.logger.Infof("Starting %s (run %s)", kind, run.id)

	go c.execute(run, c.actions[kind], token)

	if ev, ok := fsm.StartEvent(kind); ok {
		c.sendEvent(ev)
	}
	c.emit()
}

// execute runs the action and then retires the run if it is still the one
// the controller tracks.
func (c *Controller) execute(run *activeRun, action HardwareAction, token types.CancelToken) {
	run.result = c.runAction(run, action, token)
	close(run.done)

	c.lock.Lock()
	defer c.lock.Unlock()

	switch {
	case c.active == run:
		c.retire(run)
	case c.orphan == run:
		c.logger.Infof("Orphaned %s (run %s) has stopped", run.kind, run.id)
		c.orphan = nil
		c.sendEvent(fsm.EvRecovered)
		c.emit()
	case run.abandoned:
		c.logger.Warnf("Abandoned %s (run %s) finally stopped", run.kind, run.id)
		c.clearFault(types.FaultRunAbandoned)
	}
}

func (c *Controller) runAction(run *activeRun, action HardwareAction, token types.CancelToken) (result types.ActionResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorf("%s (run %s) panicked: %v", run.kind, run.id, r)
			result = types.Failed(fmt.Errorf("panic: %v", r))
		}
	}()
	return action.Run(token)
}

// reap retires the active run if it already finished. Must hold the robot
// lock.
func (c *Controller) reap() {
	if c.active == nil {
		return
	}
	select {
	case <-c.active.done:
		c.retire(c.active)
	default:
	}
}

// retire clears a run that ended on its own. Must hold the robot lock.
func (c *Controller) retire(run *activeRun) {
	c.active = nil
	c.logger.Infof("%s (run %s) finished: %s", run.kind, run.id, run.result.Outcome)
	if run.result.Err != nil {
		c.logger.Warnf("%s error: %v", run.kind, run.result.Err)
	}
	c.record(run)
	c.sendEvent(fsm.EvFinished)
	c.emit()
}

func (c *Controller) record(run *activeRun) {
	if run.result.Outcome == types.OutcomeCancelled {
		return
	}
	c.last = &types.LastCompleted{
		Kind:       run.kind,
		Succeeded:  run.result.Outcome == types.OutcomeSucceeded,
		FinishedAt: time.Now(),
	}
}

// cancelActive signals the active run and joins it within the grace
// period. On timeout the run becomes the orphan. Must hold the robot lock.
func (c *Controller) cancelActive() error {
	run := c.active
	c.logger.Infof("Cancelling %s (run %s)", run.kind, run.id)
	run.cancel()

	timer := time.NewTimer(c.grace)
	defer timer.Stop()

	select {
	case <-run.done:
		c.active = nil
		// A natural result that raced the cancel still counts
		if run.result.Outcome != types.OutcomeCancelled {
			c.logger.Infof("%s (run %s) finished before observing cancellation: %s",
				run.kind, run.id, run.result.Outcome)
			c.record(run)
		}
		return nil

	case <-timer.C:
		c.active = nil
		c.orphan = run
		c.logger.Errorf("%s (run %s) did not stop within %s", run.kind, run.id, c.grace)
		c.sendEvent(fsm.EvCancelTimeout)
		c.emit()
		return ErrCancellationTimeout
	}
}

// resolveOrphan gives a run that ignored cancellation one more grace period
// and then releases the robot regardless. It returns the kind of the released
// run, if any. Must hold the robot lock.
func (c *Controller) resolveOrphan() types.ActionKind {
	run := c.orphan
	if run == nil {
		return ""
	}

	timer := time.NewTimer(c.grace)
	defer timer.Stop()

	select {
	case <-run.done:
		c.logger.Infof("Orphaned %s (run %s) has stopped", run.kind, run.id)
	case <-timer.C:
		run.abandoned = true
		c.logger.Errorf("Orphaned %s (run %s) still running after a further %s, releasing the robot",
			run.kind, run.id, c.grace)
		c.reportFault(types.FaultRunAbandoned, "action ignored cancellation and was abandoned", run.kind.String())
	}

	c.orphan = nil
	c.sendEvent(fsm.EvRecovered)
	c.emit()
	return run.kind
}

// snapshot must be called with the robot lock held.
func (c *Controller) snapshot() types.Snapshot {
	s := types.Snapshot{State: types.StateIdle, Degraded: c.orphan != nil}
	if c.last != nil {
		last := *c.last
		s.LastCompleted = &last
	}
	switch {
	case c.orphan != nil:
		s.State = types.StateDegraded
	case c.active != nil:
		started := c.active.startedAt
		s.State = types.RunningState(c.active.kind)
		s.Active = c.active.kind
		s.RunID = c.active.id.String()
		s.StartedAt = &started
	}
	return s
}

// emit queues the current status for the notifier; only the latest pending
// snapshot is kept. Must hold the robot lock.
func (c *Controller) emit() {
	s := c.snapshot()
	c.notifyMu.Lock()
	c.pending = &s
	c.notifyMu.Unlock()
	c.wake()
}

// post queues a messaging call. Calls are delivered in order, ahead of the
// pending snapshot.
func (c *Controller) post(what string, send func(MessagingClient) error) {
	c.notifyMu.Lock()
	c.outbox = append(c.outbox, message{what: what, send: send})
	c.notifyMu.Unlock()
	c.wake()
}

func (c *Controller) reportFault(code int, description, info string) {
	ts := time.Now().Unix()
	c.post("report fault", func(m MessagingClient) error {
		return m.ReportFaultPresent(code, description, ts, info)
	})
}

func (c *Controller) clearFault(code int) {
	c.post("clear fault", func(m MessagingClient) error {
		return m.ReportFaultAbsent(code)
	})
}

func (c *Controller) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// notifier delivers queued messages and status changes until ctx is done,
// then flushes what is left.
func (c *Controller) notifier(ctx context.Context) {
	defer close(c.notifierDone)
	for {
		select {
		case <-ctx.Done():
			c.deliver()
			return
		case <-c.notify:
			c.deliver()
		}
	}
}

func (c *Controller) deliver() {
	c.notifyMu.Lock()
	outbox := c.outbox
	c.outbox = nil
	s := c.pending
	c.pending = nil
	listeners := append([]func(types.Snapshot){}, c.listeners...)
	c.notifyMu.Unlock()

	for _, m := range outbox {
		if err := m.send(c.redis); err != nil {
			c.logger.Warnf("Failed to %s: %v", m.what, err)
		}
	}

	if s == nil {
		return
	}
	if err := c.redis.PublishSnapshot(*s); err != nil {
		c.logger.Warnf("Failed to publish status: %v", err)
	}
	for _, fn := range listeners {
		fn(*s)
	}
}
