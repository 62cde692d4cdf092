package flood

import (
	"sync"
	"time"
)

// Loop calls a step function on a fixed interval from a single goroutine.
// Ticks that arrive while a step is still running are dropped by the
// underlying ticker, so a slow step never builds a backlog.
type Loop struct {
	interval time.Duration
	step     func()

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewLoop creates a stopped loop.
func NewLoop(interval time.Duration, step func()) *Loop {
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &Loop{interval: interval, step: step}
}

// Start arms the loop. It reports false when the loop is already running.
func (l *Loop) Start() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop != nil {
		return false
	}
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(l.stop, l.done)
	return true
}

func (l *Loop) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// A stop request wins over a tick that raced with it.
			select {
			case <-stop:
				return
			default:
			}
			l.step()
		}
	}
}

// Stop disarms the loop and waits for an in-flight step to finish. It is
// safe to call at any time and more than once.
func (l *Loop) Stop() {
	l.mu.Lock()
	stop, done := l.stop, l.done
	l.stop, l.done = nil, nil
	l.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Running reports whether the loop is armed.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stop != nil
}

