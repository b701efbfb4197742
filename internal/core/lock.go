package core

import "sync"

// RobotLock grants exclusive access to the robot. One lock guards all
// controller state; whoever owns the robot hardware creates it and hands it
// to the controller.
type RobotLock struct {
	mu sync.Mutex
}

func NewRobotLock() *RobotLock {
	return &RobotLock{}
}

func (l *RobotLock) Lock()   { l.mu.Lock() }
func (l *RobotLock) Unlock() { l.mu.Unlock() }

// TryLock reports whether the lock was free and is now held.
func (l *RobotLock) TryLock() bool { return l.mu.TryLock() }
