package monitor

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// DefaultInterval is the time between scheduled cycles.
const DefaultInterval = 30 * time.Minute

// Runner runs one cycle. *Monitor implements it.
type Runner interface {
	RunCycle(ctx context.Context) (*CycleResult, error)
}

// Scheduler runs a cycle immediately and then on a fixed interval until
// its context is cancelled. Cancellation stops the loop between cycles; a
// cycle that has started always runs to completion.
type Scheduler struct {
	Runner   Runner
	Interval time.Duration
	// OnResult, if set, is called after every completed cycle.
	OnResult func(*CycleResult)

	mu   sync.Mutex
	next time.Time
}

func NewScheduler(r Runner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{Runner: r, Interval: interval}
}

// Next returns when the next scheduled cycle is due, or the zero time when
// the scheduler is not running.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

func (s *Scheduler) setNext(t time.Time) {
	s.mu.Lock()
	s.next = t
	s.mu.Unlock()
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	defer s.setNext(time.Time{})

	log.Printf("[scheduler] started, interval %v", s.Interval)
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("[scheduler] stopping")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.setNext(time.Now().Add(s.Interval))
	res, err := s.Runner.RunCycle(context.WithoutCancel(ctx))
	if errors.Is(err, ErrCycleInProgress) {
		log.Println("[scheduler] previous check still running, skipping")
		return
	}
	if err != nil {
		log.Printf("[scheduler] cycle failed: %v", err)
		return
	}
	if s.OnResult != nil {
		s.OnResult(res)
	}
}
