package core

import (
	"context"

	"github.com/librescoot/librefsm"

	"logbot-service/internal/fsm"
	"logbot-service/internal/types"
)

// Ensure Controller implements fsm.Actions
var _ fsm.Actions = (*Controller)(nil)

// initFSM initializes and starts the librefsm machine
func (c *Controller) initFSM(ctx context.Context) error {
	def := fsm.NewDefinition(c)
	machine, err := def.Build()
	if err != nil {
		return err
	}

	// The callback runs while the dispatching goroutine holds the robot lock
	// in SendSync: it must not take the lock or wait on Redis
	machine.OnStateChange(func(from, to librefsm.StateID) {
		c.logger.Infof("State transition: %s -> %s", from, to)
		state := fsm.ToControllerState(to)
		c.post("publish state", func(m MessagingClient) error {
			return m.PublishControllerState(state)
		})
	})

	if err := machine.Start(ctx); err != nil {
		return err
	}

	c.lock.Lock()
	c.sendFSM = func(ev librefsm.EventID) error {
		return machine.SendSync(librefsm.Event{ID: ev})
	}
	c.fsmState = machine.CurrentState
	c.lock.Unlock()

	c.logger.Infof("librefsm state machine started")
	return nil
}

// sendEvent sends an event to the FSM. Must hold the robot lock.
func (c *Controller) sendEvent(event librefsm.EventID) {
	if c.sendFSM == nil || c.fsmStopped {
		return
	}
	if err := c.sendFSM(event); err != nil {
		c.logger.Warnf("Status machine rejected %s: %v", event, err)
	}
}

// === State Entry/Exit Actions ===

func (c *Controller) EnterIdle(_ *librefsm.Context) error {
	c.logger.Debugf("FSM: EnterIdle")
	return nil
}

func (c *Controller) EnterRunning(_ *librefsm.Context) error {
	c.logger.Debugf("FSM: EnterRunning")
	return nil
}

func (c *Controller) EnterDegraded(_ *librefsm.Context) error {
	c.logger.Warnf("FSM: EnterDegraded")
	c.reportFault(types.FaultCancellationTimeout, "action did not stop within the grace period", "")
	return nil
}

func (c *Controller) ExitDegraded(_ *librefsm.Context) error {
	c.logger.Infof("FSM: ExitDegraded")
	c.clearFault(types.FaultCancellationTimeout)
	return nil
}
