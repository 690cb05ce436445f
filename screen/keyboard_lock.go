package screen

import (
	"sync"
	"time"
)

// keyboardLock tracks whether the host currently owns the keyboard. Sending an AID locks
// it and a Write with the keyboard restore bit unlocks it. Waiters block on the released
// channel, which is closed on unlock and replaced on the next lock.
type keyboardLock struct {
	control  sync.Mutex
	locked   bool
	released chan struct{}
}

// newKeyboardLock returns a locked keyboard. Hosts unlock the keyboard with their first
// screen.
func newKeyboardLock() *keyboardLock {
	return &keyboardLock{
		locked:   true,
		released: make(chan struct{}),
	}
}

func (l *keyboardLock) Lock() error {
	l.control.Lock()
	defer l.control.Unlock()

	if l.locked {
		return ErrKeyboardLocked
	}

	l.locked = true
	l.released = make(chan struct{})
	return nil
}

func (l *keyboardLock) Unlock() {
	l.control.Lock()
	defer l.control.Unlock()

	if !l.locked {
		return
	}

	l.locked = false
	close(l.released)
}

func (l *keyboardLock) IsLocked() bool {
	l.control.Lock()
	defer l.control.Unlock()

	return l.locked
}

// Wait blocks until the keyboard is unlocked or the timeout passes
func (l *keyboardLock) Wait(timeout time.Duration) error {
	l.control.Lock()
	if !l.locked {
		l.control.Unlock()
		return nil
	}
	released := l.released
	l.control.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-released:
		return nil
	case <-timer.C:
		return ErrTimeout
	}
}
