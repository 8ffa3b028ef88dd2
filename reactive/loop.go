package reactive

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Loop is a single-goroutine task loop with two priorities. Microtasks run
// before any macrotask queued at the same time; timers and Post feed the
// macrotask queue.
type Loop struct {
	logger *slog.Logger

	micro    []func()
	macro    []func()
	draining bool

	mu     sync.Mutex
	inbox  []func()
	timers int
	wake   chan struct{}
}

func NewLoop(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

func (l *Loop) QueueMicrotask(fn func()) {
	l.micro = append(l.micro, fn)
}

func (l *Loop) Post(fn func()) {
	l.macro = append(l.macro, fn)
}

// AfterFunc posts fn as a macrotask once d has elapsed. fn runs on the
// goroutine driving the loop, not on the timer's.
func (l *Loop) AfterFunc(d time.Duration, fn func()) {
	l.mu.Lock()
	l.timers++
	l.mu.Unlock()

	time.AfterFunc(d, func() {
		l.mu.Lock()
		l.inbox = append(l.inbox, fn)
		l.timers--
		l.mu.Unlock()

		select {
		case l.wake <- struct{}{}:
		default:
		}
	})
}

// Drain runs microtasks until none are left, including ones queued while
// draining. Nested calls return immediately.
func (l *Loop) Drain() {
	if l.draining {
		return
	}
	l.draining = true
	defer func() {
		l.draining = false
	}()

	for len(l.micro) > 0 {
		fn := l.micro[0]
		l.micro[0] = nil
		l.micro = l.micro[1:]
		fn()
	}
	l.micro = nil
}

func (l *Loop) collectInbox() {
	l.mu.Lock()
	inbox := l.inbox
	l.inbox = nil
	l.mu.Unlock()
	l.macro = append(l.macro, inbox...)
}

// Turn drains microtasks, runs one macrotask and drains again. It reports
// whether anything ran.
func (l *Loop) Turn() bool {
	ran := len(l.micro) > 0
	l.Drain()

	l.collectInbox()
	if len(l.macro) > 0 {
		fn := l.macro[0]
		l.macro[0] = nil
		l.macro = l.macro[1:]
		fn()
		ran = true
	}

	if len(l.micro) > 0 {
		ran = true
		l.Drain()
	}
	return ran
}

// Pending reports whether any task is queued or any timer is outstanding.
func (l *Loop) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.micro) > 0 || len(l.macro) > 0 || len(l.inbox) > 0 || l.timers > 0
}

// Run turns the loop until it is idle with no timers outstanding, or until
// ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.Turn() {
			continue
		}
		if !l.Pending() {
			return nil
		}

		l.logger.Debug("loop waiting on timers")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}
