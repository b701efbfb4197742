package types

import (
	"sync"
	"time"
)

// CancelToken is a one-shot, level-triggered cancellation signal. It is
// handed by value to an action; once cancelled it stays cancelled.
type CancelToken struct {
	done <-chan struct{}
}

// CancelFunc signals the paired token. Calling it more than once is a no-op.
type CancelFunc func()

func NewCancelToken() (CancelToken, CancelFunc) {
	ch := make(chan struct{})
	var once sync.Once
	return CancelToken{done: ch}, func() {
		once.Do(func() { close(ch) })
	}
}

// Done is closed when the token is cancelled. A zero token never cancels.
func (t CancelToken) Done() <-chan struct{} {
	return t.done
}

func (t CancelToken) Cancelled() bool {
	if t.done == nil {
		return false
	}
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Sleep waits for d and returns false if the token was cancelled first.
func (t CancelToken) Sleep(d time.Duration) bool {
	if d <= 0 {
		return !t.Cancelled()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-t.done:
		return false
	case <-timer.C:
		return true
	}
}
