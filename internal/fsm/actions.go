package fsm

import "github.com/librescoot/librefsm"

// Actions defines the hooks the controller status machine calls on entry and
// exit. The action controller implements this interface.
type Actions interface {
	EnterIdle(c *librefsm.Context) error
	EnterRunning(c *librefsm.Context) error

	// Degraded is entered when a run ignored cancellation
	EnterDegraded(c *librefsm.Context) error
	ExitDegraded(c *librefsm.Context) error
}
