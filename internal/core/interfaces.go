package core

import (
	"fmt"

	"logbot-service/internal/types"
)

// HardwareAction is one behaviour of the robot. Run drives the hardware until
// it finishes on its own or observes cancel, and produces no hardware output
// once it has returned.
type HardwareAction interface {
	Run(cancel types.CancelToken) types.ActionResult
}

// HardwareActionFunc adapts a plain function to HardwareAction.
type HardwareActionFunc func(cancel types.CancelToken) types.ActionResult

func (f HardwareActionFunc) Run(cancel types.CancelToken) types.ActionResult {
	return f(cancel)
}

// ActionSet maps every hardware action kind to its implementation.
type ActionSet map[types.ActionKind]HardwareAction

// Validate checks that every hardware kind has an implementation and that no
// non-hardware kind has one.
func (s ActionSet) Validate() error {
	for _, k := range types.HardwareActions {
		if s[k] == nil {
			return fmt.Errorf("no implementation for action %s", k)
		}
	}
	for k := range s {
		if !k.IsHardware() {
			return fmt.Errorf("%s is not a hardware action", k)
		}
	}
	return nil
}

// MessagingClient defines the telemetry operations needed by the Controller
type MessagingClient interface {
	PublishControllerState(state types.ControllerState) error
	PublishSnapshot(s types.Snapshot) error

	ReportFaultPresent(code int, description string, timestamp int64, info string) error
	ReportFaultAbsent(code int) error
}

// nopMessaging is used when no messaging client is configured.
type nopMessaging struct{}

func (nopMessaging) PublishControllerState(types.ControllerState) error  { return nil }
func (nopMessaging) PublishSnapshot(types.Snapshot) error                { return nil }
func (nopMessaging) ReportFaultPresent(int, string, int64, string) error { return nil }
func (nopMessaging) ReportFaultAbsent(int) error                         { return nil }
