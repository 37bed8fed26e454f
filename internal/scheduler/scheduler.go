// Package scheduler runs each registered source adapter on its own interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/ransomfuse/internal/threat"
)

var (
	// ErrUnknownSource is returned by Trigger for a source with no job.
	ErrUnknownSource = errors.New("scheduler: unknown source")
	// ErrRunInProgress is returned by Trigger when the source is already running.
	ErrRunInProgress = errors.New("scheduler: run already in progress")
)

// Runner executes one adapter run. *threat.Service satisfies it.
type Runner interface {
	Run(ctx context.Context, a threat.Adapter) (*threat.RunStats, error)
}

// Job pairs an adapter with its polling interval. A zero interval runs the
// adapter once at startup and never again.
type Job struct {
	Adapter  threat.Adapter
	Interval time.Duration
}

type slot struct {
	job  Job
	busy sync.Mutex
}

// Scheduler owns one polling loop per job. Runs of the same source never
// overlap; runs of different sources proceed concurrently.
type Scheduler struct {
	runner Runner
	logger log.Logger
	slots  map[string]*slot
	order  []string
}

// New builds a Scheduler. Jobs with duplicate adapter names are rejected.
func New(runner Runner, logger log.Logger, jobs []Job) (*Scheduler, error) {
	if logger == nil {
		logger = log.Nop()
	}
	s := &Scheduler{
		runner: runner,
		logger: logger,
		slots:  make(map[string]*slot, len(jobs)),
	}
	for _, j := range jobs {
		name := j.Adapter.Name()
		if _, dup := s.slots[name]; dup {
			return nil, fmt.Errorf("scheduler: duplicate job for source %q", name)
		}
		if j.Interval < 0 {
			return nil, fmt.Errorf("scheduler: negative interval for source %q", name)
		}
		s.slots[name] = &slot{job: j}
		s.order = append(s.order, name)
	}
	return s, nil
}

// Sources returns the scheduled source names in registration order.
func (s *Scheduler) Sources() []string {
	return append([]string(nil), s.order...)
}

// Start runs every job immediately and then on its interval until ctx is
// cancelled. Run failures are logged; they never stop the loop.
func (s *Scheduler) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range s.order {
		sl := s.slots[name]
		g.Go(func() error {
			s.loop(ctx, sl)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, sl *slot) {
	s.runSlot(ctx, sl, false)
	if sl.job.Interval == 0 {
		return
	}

	t := time.NewTicker(sl.job.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.runSlot(ctx, sl, false)
		}
	}
}

// Trigger runs source now and waits for the result.
func (s *Scheduler) Trigger(ctx context.Context, source string) (*threat.RunStats, error) {
	sl, ok := s.slots[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	return s.runSlot(ctx, sl, true)
}

func (s *Scheduler) runSlot(ctx context.Context, sl *slot, manual bool) (*threat.RunStats, error) {
	name := sl.job.Adapter.Name()
	if !sl.busy.TryLock() {
		if !manual {
			s.logger.Warn(ctx, "skipping tick, previous run still in progress", "source", name)
		}
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, name)
	}
	defer sl.busy.Unlock()

	stats, err := s.runner.Run(ctx, sl.job.Adapter)
	if err != nil && ctx.Err() == nil {
		s.logger.Error(ctx, err, "source run failed", "source", name, "manual", manual)
	}
	return stats, err
}
