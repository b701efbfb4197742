package core

import (
	"context"
	"errors"
	"io"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"logbot-service/internal/fsm"
	"logbot-service/internal/logger"
	"logbot-service/internal/types"
)

// Mock MessagingClient
type mockMessagingClient struct {
	mu sync.Mutex

	// gate, if set, stalls every call until closed
	gate chan struct{}

	publishedStates []types.ControllerState
	snapshots       []types.Snapshot
	faultsPresent   []int
	faultsAbsent    []int
}

func newMockMessagingClient() *mockMessagingClient {
	return &mockMessagingClient{}
}

func (m *mockMessagingClient) wait() {
	if m.gate != nil {
		<-m.gate
	}
}

func (m *mockMessagingClient) PublishControllerState(state types.ControllerState) error {
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishedStates = append(m.publishedStates, state)
	return nil
}

func (m *mockMessagingClient) PublishSnapshot(s types.Snapshot) error {
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, s)
	return nil
}

func (m *mockMessagingClient) ReportFaultPresent(code int, description string, timestamp int64, info string) error {
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faultsPresent = append(m.faultsPresent, code)
	return nil
}

func (m *mockMessagingClient) ReportFaultAbsent(code int) error {
	m.wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faultsAbsent = append(m.faultsAbsent, code)
	return nil
}

func (m *mockMessagingClient) faults() (present, absent []int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.faultsPresent...), append([]int(nil), m.faultsAbsent...)
}

// mockRobot counts how many actions drive the hardware at once
type mockRobot struct {
	driving    atomic.Int32
	maxDriving atomic.Int32
}

func (r *mockRobot) enter() {
	n := r.driving.Add(1)
	for {
		peak := r.maxDriving.Load()
		if n <= peak || r.maxDriving.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (r *mockRobot) leave() {
	r.driving.Add(-1)
}

// mockAction runs until cancelled or until a result is sent on finish
type mockAction struct {
	robot *mockRobot

	finish  chan types.ActionResult
	started chan struct{}
	runs    atomic.Int32

	// onCancel, if set, replaces the Cancelled result
	onCancel func() types.ActionResult
	// release, if set, makes the action ignore cancellation until closed
	release chan struct{}
	panics  bool
}

func newMockAction(robot *mockRobot) *mockAction {
	return &mockAction{
		robot:   robot,
		finish:  make(chan types.ActionResult, 1),
		started: make(chan struct{}, 16),
	}
}

func (a *mockAction) Run(cancel types.CancelToken) types.ActionResult {
	a.robot.enter()
	defer a.robot.leave()
	a.runs.Add(1)
	select {
	case a.started <- struct{}{}:
	default:
	}

	if a.panics {
		panic("motor on fire")
	}
	if a.release != nil {
		<-a.release
		return types.Cancelled()
	}

	select {
	case <-cancel.Done():
		if a.onCancel != nil {
			return a.onCancel()
		}
		return types.Cancelled()
	case r := <-a.finish:
		return r
	}
}

func (a *mockAction) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-a.started:
	case <-time.After(time.Second):
		t.Fatal("action did not start")
	}
}

type testController struct {
	*Controller
	redis   *mockMessagingClient
	robot   *mockRobot
	actions map[types.ActionKind]*mockAction
}

func newTestController(t *testing.T, grace time.Duration) *testController {
	t.Helper()
	return newTestControllerWith(t, grace, newMockMessagingClient())
}

func newTestControllerWith(t *testing.T, grace time.Duration, redis *mockMessagingClient) *testController {
	t.Helper()
	l := logger.NewLogger(log.New(io.Discard, "", 0), logger.LogLevelDebug)
	robot := &mockRobot{}
	mocks := map[types.ActionKind]*mockAction{}
	set := ActionSet{}
	for _, k := range types.HardwareActions {
		mocks[k] = newMockAction(robot)
		set[k] = mocks[k]
	}

	c, err := NewController(NewRobotLock(), set, Options{
		Grace:     grace,
		Messaging: redis,
		Logger:    l,
	})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		for _, m := range mocks {
			if m.release != nil {
				select {
				case <-m.release:
				default:
					close(m.release)
				}
			}
		}
		c.Close()
	})
	return &testController{Controller: c, redis: redis, robot: robot, actions: mocks}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func expectResult(t *testing.T, got DispatchResult, status int, reason types.ActionKind) {
	t.Helper()
	if got.Status != status {
		t.Errorf("Expected status %d, got %d (err: %v)", status, got.Status, got.Err)
	}
	if got.Reason() != reason {
		t.Errorf("Expected reason %q, got %q", reason, got.Reason())
	}
}

// ===== Construction =====

func TestNewControllerRequiresAllActions(t *testing.T) {
	l := logger.NewLogger(log.New(io.Discard, "", 0), logger.LogLevelError)
	set := ActionSet{
		types.ActionCalibrate: newMockAction(&mockRobot{}),
	}
	if _, err := NewController(NewRobotLock(), set, Options{Logger: l}); err == nil {
		t.Error("Expected error for incomplete action set")
	}
}

func TestNewControllerRejectsStopImplementation(t *testing.T) {
	l := logger.NewLogger(log.New(io.Discard, "", 0), logger.LogLevelError)
	set := ActionSet{}
	for _, k := range types.HardwareActions {
		set[k] = newMockAction(&mockRobot{})
	}
	set[types.ActionStop] = newMockAction(&mockRobot{})
	if _, err := NewController(NewRobotLock(), set, Options{Logger: l}); err == nil {
		t.Error("Expected error for STOP implementation")
	}
}

// ===== Stop =====

func TestStopWhenIdle(t *testing.T) {
	c := newTestController(t, time.Second)

	res := c.Dispatch(types.ActionStop)
	expectResult(t, res, http.StatusOK, "")

	for k, m := range c.actions {
		if m.runs.Load() != 0 {
			t.Errorf("%s should not have run", k)
		}
	}
	if s := c.Status(); s.State != types.StateIdle {
		t.Errorf("Expected idle, got %s", s.State)
	}
}

func TestStopCancelsActiveRun(t *testing.T) {
	c := newTestController(t, time.Second)

	expectResult(t, c.Dispatch(types.ActionCalibrate), http.StatusOK, "")
	c.actions[types.ActionCalibrate].waitStarted(t)

	if s := c.Status(); s.Active != types.ActionCalibrate || s.RunID == "" || s.StartedAt == nil {
		t.Errorf("Expected active calibrate run, got %+v", s)
	}

	expectResult(t, c.Dispatch(types.ActionStop), http.StatusOK, types.ActionCalibrate)

	s := c.Status()
	if s.Active != "" || s.State != types.StateIdle {
		t.Errorf("Expected idle after stop, got %+v", s)
	}
	if s.LastCompleted != nil {
		t.Errorf("Cancelled run must not be recorded, got %+v", s.LastCompleted)
	}
	if c.robot.driving.Load() != 0 {
		t.Error("Cancelled action still driving after stop returned")
	}
}

// ===== Preconditions =====

func TestFollowBeforeFindEdgeIsForbidden(t *testing.T) {
	c := newTestController(t, time.Second)

	expectResult(t, c.Dispatch(types.ActionFollow), http.StatusForbidden, types.ActionFindEdge)
	if c.actions[types.ActionFollow].runs.Load() != 0 {
		t.Error("Follow should not have run")
	}
}

func TestFollowAfterFindEdgeSucceeds(t *testing.T) {
	c := newTestController(t, time.Second)
	edge := c.actions[types.ActionFindEdge]

	expectResult(t, c.Dispatch(types.ActionFindEdge), http.StatusOK, "")
	edge.waitStarted(t)
	edge.finish <- types.Succeeded()
	waitFor(t, "edge to retire", func() bool { return c.Status().Active == "" })

	last := c.Status().LastCompleted
	if last == nil || last.Kind != types.ActionFindEdge || !last.Succeeded {
		t.Fatalf("Expected successful EDGE as last completed, got %+v", last)
	}

	expectResult(t, c.Dispatch(types.ActionFollow), http.StatusOK, "")
	c.actions[types.ActionFollow].waitStarted(t)
}

func TestFollowWhileFindEdgeRunsIsForbidden(t *testing.T) {
	c := newTestController(t, time.Second)
	edge := c.actions[types.ActionFindEdge]

	c.Dispatch(types.ActionFindEdge)
	edge.waitStarted(t)
	edge.finish <- types.Succeeded()
	waitFor(t, "edge to retire", func() bool { return c.Status().Active == "" })

	// A second edge search leaves the robot off the edge until it succeeds
	expectResult(t, c.Dispatch(types.ActionFindEdge), http.StatusOK, "")
	edge.waitStarted(t)
	before := c.Status()

	expectResult(t, c.Dispatch(types.ActionFollow), http.StatusForbidden, types.ActionFindEdge)

	after := c.Status()
	if after.Active != types.ActionFindEdge || after.RunID != before.RunID {
		t.Errorf("Edge search disturbed by forbidden follow: before %+v, after %+v", before, after)
	}
	if c.actions[types.ActionFollow].runs.Load() != 0 {
		t.Error("Follow should not have run")
	}

	edge.finish <- types.Succeeded()
	waitFor(t, "edge to retire", func() bool { return c.Status().Active == "" })
	expectResult(t, c.Dispatch(types.ActionFollow), http.StatusOK, "")
}

func TestFollowAfterFailedFindEdgeIsForbidden(t *testing.T) {
	c := newTestController(t, time.Second)
	edge := c.actions[types.ActionFindEdge]

	c.Dispatch(types.ActionFindEdge)
	edge.waitStarted(t)
	edge.finish <- types.Failed(errors.New("no line"))
	waitFor(t, "edge to retire", func() bool { return c.Status().Active == "" })

	expectResult(t, c.Dispatch(types.ActionFollow), http.StatusForbidden, types.ActionFindEdge)
}

func TestFollowAfterCancelledFindEdgeIsForbidden(t *testing.T) {
	c := newTestController(t, time.Second)

	c.Dispatch(types.ActionFindEdge)
	c.actions[types.ActionFindEdge].waitStarted(t)
	expectResult(t, c.Dispatch(types.ActionStop), http.StatusOK, types.ActionFindEdge)

	expectResult(t, c.Dispatch(types.ActionFollow), http.StatusForbidden, types.ActionFindEdge)
}

func TestFollowForbiddenAfterOtherActionCompletes(t *testing.T) {
	c := newTestController(t, time.Second)
	edge := c.actions[types.ActionFindEdge]
	cal := c.actions[types.ActionCalibrate]

	c.Dispatch(types.ActionFindEdge)
	edge.waitStarted(t)
	edge.finish <- types.Succeeded()
	waitFor(t, "edge to retire", func() bool { return c.Status().Active == "" })

	c.Dispatch(types.ActionCalibrate)
	cal.waitStarted(t)
	cal.finish <- types.Succeeded()
	waitFor(t, "calibrate to retire", func() bool { return c.Status().Active == "" })

	expectResult(t, c.Dispatch(types.ActionFollow), http.StatusForbidden, types.ActionFindEdge)
}

func TestNaturalResultRacingCancelIsRecorded(t *testing.T) {
	c := newTestController(t, time.Second)
	edge := c.actions[types.ActionFindEdge]
	edge.onCancel = types.Succeeded

	c.Dispatch(types.ActionFindEdge)
	edge.waitStarted(t)
	expectResult(t, c.Dispatch(types.ActionStop), http.StatusOK, types.ActionFindEdge)

	expectResult(t, c.Dispatch(types.ActionFollow), http.StatusOK, "")
}

// ===== Conflict and replace =====

func TestSameActionConflicts(t *testing.T) {
	c := newTestController(t, time.Second)

	c.Dispatch(types.ActionCalibrate)
	c.actions[types.ActionCalibrate].waitStarted(t)
	before := c.Status()

	expectResult(t, c.Dispatch(types.ActionCalibrate), http.StatusConflict, types.ActionCalibrate)

	after := c.Status()
	if after.RunID != before.RunID || after.Active != types.ActionCalibrate {
		t.Errorf("Active run changed on conflict: before %+v, after %+v", before, after)
	}
	if n := c.actions[types.ActionCalibrate].runs.Load(); n != 1 {
		t.Errorf("Expected 1 calibrate run, got %d", n)
	}
}

func TestOtherActionReplaces(t *testing.T) {
	c := newTestController(t, time.Second)

	c.Dispatch(types.ActionCalibrate)
	c.actions[types.ActionCalibrate].waitStarted(t)

	expectResult(t, c.Dispatch(types.ActionDemo), http.StatusOK, types.ActionCalibrate)
	c.actions[types.ActionDemo].waitStarted(t)

	if s := c.Status(); s.Active != types.ActionDemo || s.State != types.StateDemo {
		t.Errorf("Expected demo running, got %+v", s)
	}

	expectResult(t, c.Dispatch(types.ActionStop), http.StatusOK, types.ActionDemo)
}

func TestUnknownAction(t *testing.T) {
	c := newTestController(t, time.Second)

	res := c.Dispatch(types.ActionKind("LIFT"))
	if res.Status != http.StatusNotFound || !errors.Is(res.Err, ErrUnknownAction) {
		t.Errorf("Expected 404 unknown action, got %+v", res)
	}
}

// ===== Natural completion =====

func TestNaturalCompletionRetiresRun(t *testing.T) {
	c := newTestController(t, time.Second)
	cal := c.actions[types.ActionCalibrate]

	c.Dispatch(types.ActionCalibrate)
	cal.waitStarted(t)
	cal.finish <- types.Failed(errors.New("no contrast"))
	waitFor(t, "calibrate to retire", func() bool { return c.Status().Active == "" })

	last := c.Status().LastCompleted
	if last == nil || last.Kind != types.ActionCalibrate || last.Succeeded {
		t.Errorf("Expected failed CALIBRATE as last completed, got %+v", last)
	}
	waitFor(t, "status machine to return to idle", func() bool { return c.fsmState() == fsm.StateIdle })

	// Stop after completion has nothing to cancel
	expectResult(t, c.Dispatch(types.ActionStop), http.StatusOK, "")
}

func TestPanickingActionFails(t *testing.T) {
	c := newTestController(t, time.Second)
	c.actions[types.ActionDemo].panics = true

	expectResult(t, c.Dispatch(types.ActionDemo), http.StatusOK, "")
	waitFor(t, "demo to retire", func() bool { return c.Status().Active == "" })

	last := c.Status().LastCompleted
	if last == nil || last.Kind != types.ActionDemo || last.Succeeded {
		t.Errorf("Expected failed DEMO as last completed, got %+v", last)
	}
}

// ===== Health =====

func TestHealthIsIdempotent(t *testing.T) {
	c := newTestController(t, time.Second)

	for i := 0; i < 3; i++ {
		if !c.Health() {
			t.Fatal("Expected healthy controller")
		}
	}
	c.Dispatch(types.ActionCalibrate)
	c.actions[types.ActionCalibrate].waitStarted(t)
	before := c.Status()
	for i := 0; i < 3; i++ {
		c.Health()
	}
	if after := c.Status(); after.RunID != before.RunID {
		t.Error("Health changed the active run")
	}
}

func TestHealthDoesNotTakeRobotLock(t *testing.T) {
	c := newTestController(t, time.Second)

	c.lock.Lock()
	defer c.lock.Unlock()

	done := make(chan bool)
	go func() { done <- c.Health() }()
	select {
	case healthy := <-done:
		if !healthy {
			t.Error("Expected healthy controller")
		}
	case <-time.After(time.Second):
		t.Fatal("Health blocked on the robot lock")
	}
}

func TestHealthFalseBeforeStartAndAfterClose(t *testing.T) {
	l := logger.NewLogger(log.New(io.Discard, "", 0), logger.LogLevelError)
	set := ActionSet{}
	for _, k := range types.HardwareActions {
		set[k] = newMockAction(&mockRobot{})
	}
	c, err := NewController(NewRobotLock(), set, Options{Logger: l})
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	if c.Health() {
		t.Error("Expected unhealthy before Start")
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !c.Health() {
		t.Error("Expected healthy after Start")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if c.Health() {
		t.Error("Expected unhealthy after Close")
	}

	res := c.Dispatch(types.ActionCalibrate)
	if res.Status != http.StatusInternalServerError || !errors.Is(res.Err, ErrClosed) {
		t.Errorf("Expected 500 closed, got %+v", res)
	}
}

func TestCloseCancelsActiveRun(t *testing.T) {
	c := newTestController(t, time.Second)

	c.Dispatch(types.ActionFollow) // forbidden, nothing runs
	c.Dispatch(types.ActionDemo)
	c.actions[types.ActionDemo].waitStarted(t)

	if err := c.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if c.robot.driving.Load() != 0 {
		t.Error("Action still driving after Close")
	}
}

func TestCloseDeliversFinalStatus(t *testing.T) {
	c := newTestController(t, time.Second)

	c.Dispatch(types.ActionDemo)
	c.actions[types.ActionDemo].waitStarted(t)
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	c.redis.mu.Lock()
	defer c.redis.mu.Unlock()
	if len(c.redis.snapshots) == 0 {
		t.Fatal("No status published")
	}
	last := c.redis.snapshots[len(c.redis.snapshots)-1]
	if last.State != types.StateIdle || last.Active != "" {
		t.Errorf("Expected idle status delivered before Close returned, got %+v", last)
	}
}

// ===== Cancellation timeout =====

func TestNonCooperativeActionTimesOut(t *testing.T) {
	grace := 50 * time.Millisecond
	c := newTestController(t, grace)
	cal := c.actions[types.ActionCalibrate]
	cal.release = make(chan struct{})

	c.Dispatch(types.ActionCalibrate)
	cal.waitStarted(t)

	start := time.Now()
	res := c.Dispatch(types.ActionStop)
	elapsed := time.Since(start)

	expectResult(t, res, http.StatusInternalServerError, types.ActionCalibrate)
	if !errors.Is(res.Err, ErrCancellationTimeout) {
		t.Errorf("Expected ErrCancellationTimeout, got %v", res.Err)
	}
	if elapsed < grace || elapsed > grace+time.Second {
		t.Errorf("Stop took %s, expected about %s", elapsed, grace)
	}

	s := c.Status()
	if !s.Degraded || s.State != types.StateDegraded || s.Active != "" {
		t.Errorf("Expected degraded with no active run, got %+v", s)
	}
	waitFor(t, "status machine degraded", func() bool { return c.fsmState() == fsm.StateDegraded })
	waitFor(t, "cancellation timeout fault", func() bool {
		present, _ := c.redis.faults()
		return len(present) == 1 && present[0] == types.FaultCancellationTimeout
	})

	// The next dispatch releases the orphan and proceeds
	res = c.Dispatch(types.ActionDemo)
	expectResult(t, res, http.StatusOK, "")
	c.actions[types.ActionDemo].waitStarted(t)

	s = c.Status()
	if s.Degraded || s.Active != types.ActionDemo {
		t.Errorf("Expected demo running after recovery, got %+v", s)
	}
	waitFor(t, "abandoned-run fault and cleared timeout fault", func() bool {
		present, absent := c.redis.faults()
		return len(present) == 2 && present[1] == types.FaultRunAbandoned &&
			len(absent) == 1 && absent[0] == types.FaultCancellationTimeout
	})

	// The abandoned run finally stops
	close(cal.release)
	waitFor(t, "abandoned fault to clear", func() bool {
		_, absent := c.redis.faults()
		return len(absent) == 2 && absent[1] == types.FaultRunAbandoned
	})

	expectResult(t, c.Dispatch(types.ActionStop), http.StatusOK, types.ActionDemo)
}

func TestStopWhileDegradedNamesReleasedRun(t *testing.T) {
	c := newTestController(t, 20*time.Millisecond)
	cal := c.actions[types.ActionCalibrate]
	cal.release = make(chan struct{})

	c.Dispatch(types.ActionCalibrate)
	cal.waitStarted(t)
	expectResult(t, c.Dispatch(types.ActionStop), http.StatusInternalServerError, types.ActionCalibrate)

	expectResult(t, c.Dispatch(types.ActionStop), http.StatusOK, types.ActionCalibrate)
	if s := c.Status(); s.Degraded {
		t.Errorf("Expected degraded to clear, got %+v", s)
	}

	// Nothing left to release
	expectResult(t, c.Dispatch(types.ActionStop), http.StatusOK, "")
}

func TestOrphanStoppingAfterCloseKeepsLockFree(t *testing.T) {
	c := newTestController(t, 20*time.Millisecond)
	cal := c.actions[types.ActionCalibrate]
	cal.release = make(chan struct{})

	c.Dispatch(types.ActionCalibrate)
	cal.waitStarted(t)

	if err := c.Close(); !errors.Is(err, ErrCancellationTimeout) {
		t.Errorf("Expected Close to report the timeout, got %v", err)
	}

	close(cal.release)
	waitFor(t, "orphan to stop", func() bool { return c.robot.driving.Load() == 0 })

	done := make(chan DispatchResult, 1)
	go func() {
		for c.Status().Degraded {
			time.Sleep(time.Millisecond)
		}
		done <- c.Dispatch(types.ActionStop)
	}()
	select {
	case res := <-done:
		if !errors.Is(res.Err, ErrClosed) {
			t.Errorf("Expected ErrClosed, got %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Robot lock still held after the orphan stopped")
	}
}

func TestDispatchDoesNotWaitOnMessaging(t *testing.T) {
	redis := newMockMessagingClient()
	redis.gate = make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(redis.gate) }) }

	c := newTestControllerWith(t, 20*time.Millisecond, redis)
	t.Cleanup(unblock)
	cal := c.actions[types.ActionCalibrate]
	cal.release = make(chan struct{})

	start := time.Now()
	expectResult(t, c.Dispatch(types.ActionCalibrate), http.StatusOK, "")
	cal.waitStarted(t)
	expectResult(t, c.Dispatch(types.ActionStop), http.StatusInternalServerError, types.ActionCalibrate)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Dispatch waited on stalled messaging for %s", elapsed)
	}
	if present, _ := redis.faults(); len(present) != 0 {
		t.Errorf("Fault delivered while messaging was stalled: %v", present)
	}

	unblock()
	waitFor(t, "cancellation timeout fault", func() bool {
		present, _ := redis.faults()
		return len(present) == 1 && present[0] == types.FaultCancellationTimeout
	})
}

func TestOrphanRecoversWhenItStops(t *testing.T) {
	c := newTestController(t, 20*time.Millisecond)
	cal := c.actions[types.ActionCalibrate]
	cal.release = make(chan struct{})

	c.Dispatch(types.ActionCalibrate)
	cal.waitStarted(t)
	expectResult(t, c.Dispatch(types.ActionDemo), http.StatusInternalServerError, types.ActionCalibrate)
	if c.actions[types.ActionDemo].runs.Load() != 0 {
		t.Error("Demo must not start when the previous run did not stop")
	}

	close(cal.release)
	waitFor(t, "degraded to clear", func() bool { return !c.Status().Degraded })

	waitFor(t, "status machine idle", func() bool { return c.fsmState() == fsm.StateIdle })
	expectResult(t, c.Dispatch(types.ActionDemo), http.StatusOK, "")
}

// ===== Mutual exclusion =====

func TestMutualExclusionUnderConcurrentLoad(t *testing.T) {
	c := newTestController(t, time.Second)

	kinds := append([]types.ActionKind{types.ActionStop}, types.HardwareActions...)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 50; i++ {
				res := c.Dispatch(kinds[rng.Intn(len(kinds))])
				switch res.Status {
				case http.StatusOK, http.StatusForbidden, http.StatusConflict:
				default:
					t.Errorf("Unexpected result %+v", res)
				}
			}
		}(int64(w))
	}
	wg.Wait()

	if peak := c.robot.maxDriving.Load(); peak > 1 {
		t.Errorf("Expected at most one action driving, saw %d", peak)
	}

	c.Dispatch(types.ActionStop)
	if c.robot.driving.Load() != 0 {
		t.Error("Action still driving after final stop")
	}
}

func TestRobotLockReleasedAfterDispatch(t *testing.T) {
	c := newTestController(t, time.Second)

	c.Dispatch(types.ActionCalibrate)
	c.actions[types.ActionCalibrate].waitStarted(t)
	if !c.lock.TryLock() {
		t.Fatal("Robot lock still held after dispatch returned")
	}
	c.lock.Unlock()
}

// ===== Status notifications =====

func TestStatusMachineMirrorsController(t *testing.T) {
	c := newTestController(t, time.Second)

	c.Dispatch(types.ActionCalibrate)
	waitFor(t, "calibrating", func() bool { return c.fsmState() == fsm.StateCalibrating })
	c.Dispatch(types.ActionFindEdge)
	waitFor(t, "finding-edge", func() bool { return c.fsmState() == fsm.StateFindingEdge })
	c.Dispatch(types.ActionStop)
	waitFor(t, "idle", func() bool { return c.fsmState() == fsm.StateIdle })

	want := []types.ControllerState{types.StateCalibrating, types.StateFindingEdge, types.StateIdle}
	waitFor(t, "published states", func() bool {
		c.redis.mu.Lock()
		defer c.redis.mu.Unlock()
		got := c.redis.publishedStates
		if len(got) < len(want) {
			return false
		}
		got = got[len(got)-len(want):]
		for i := range want {
			if got[i] != want[i] {
				return false
			}
		}
		return true
	})
}

func TestOnChangeReceivesLatestStatus(t *testing.T) {
	c := newTestController(t, time.Second)

	seen := make(chan types.Snapshot, 64)
	c.OnChange(func(s types.Snapshot) {
		select {
		case seen <- s:
		default:
		}
	})

	c.Dispatch(types.ActionFindEdge)

	timeout := time.After(2 * time.Second)
	for {
		select {
		case s := <-seen:
			if s.Active == types.ActionFindEdge && s.State == types.StateFindingEdge {
				return
			}
		case <-timeout:
			t.Fatal("No status change for the started run")
		}
	}
}

// ===== Tables =====

func TestDecisionTable(t *testing.T) {
	tests := []struct {
		requested types.ActionKind
		previous  types.ActionKind
		want      decision
	}{
		{types.ActionStop, "", decideNothing},
		{types.ActionStop, types.ActionFollow, decideCancel},
		{types.ActionCalibrate, "", decideStart},
		{types.ActionCalibrate, types.ActionCalibrate, decideConflict},
		{types.ActionDemo, types.ActionCalibrate, decideReplace},
	}
	for _, tt := range tests {
		if got := decide(tt.requested, tt.previous); got != tt.want {
			t.Errorf("decide(%s, %q) = %s, want %s", tt.requested, tt.previous, got, tt.want)
		}
	}
}

func TestPreconditionTable(t *testing.T) {
	table := DefaultPreconditions

	if req, ok := table.Required(types.ActionFollow); !ok || req != types.ActionFindEdge {
		t.Errorf("Expected FOLLOW to require EDGE, got %q %v", req, ok)
	}
	for _, k := range []types.ActionKind{types.ActionCalibrate, types.ActionFindEdge, types.ActionDemo} {
		if !table.Satisfied(k, "", nil) {
			t.Errorf("%s should have no precondition", k)
		}
	}

	edgeOK := &types.LastCompleted{Kind: types.ActionFindEdge, Succeeded: true}
	if table.Satisfied(types.ActionFollow, "", nil) {
		t.Error("FOLLOW should need a completed run")
	}
	if table.Satisfied(types.ActionFollow, "", &types.LastCompleted{Kind: types.ActionFindEdge}) {
		t.Error("FOLLOW should need a successful EDGE")
	}
	if !table.Satisfied(types.ActionFollow, "", edgeOK) {
		t.Error("FOLLOW should be allowed after a successful EDGE")
	}
	if table.Satisfied(types.ActionFollow, types.ActionFindEdge, edgeOK) {
		t.Error("FOLLOW should wait for a running EDGE")
	}
	if !table.Satisfied(types.ActionFollow, types.ActionCalibrate, edgeOK) {
		t.Error("FOLLOW may replace an unrelated run")
	}
}
