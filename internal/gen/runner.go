package gen

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/narratage/narratage/internal/events"
	"github.com/narratage/narratage/internal/project"
	"github.com/narratage/narratage/internal/provider"
	"github.com/rs/zerolog"
)

// ErrBatchRunning indicates a batch was requested while another is in flight.
var ErrBatchRunning = errors.New("a batch is already running")

// ErrRunnerStopped indicates a batch was requested after Stop.
var ErrRunnerStopped = errors.New("batch runner stopped")

// BatchKind selects what a batch generates.
type BatchKind string

const (
	BatchAudio  BatchKind = "audio"
	BatchImages BatchKind = "images"
)

// batchJob is one segment's worth of generation work.
type batchJob struct {
	kind      BatchKind
	segmentID string
	speech    provider.Provider
	last      bool
}

// BatchStats reports the state of the batch runner.
type BatchStats struct {
	Running   bool   `json:"running"`
	Kind      string `json:"kind,omitempty"`
	Pending   int    `json:"pending"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
}

// RunnerOptions configures the batch runner.
type RunnerOptions struct {
	Service   *Service
	Project   *project.Store
	Bus       *events.Bus
	Delay     time.Duration
	QueueSize int
	Log       zerolog.Logger
}

// Runner executes generate-all batches. Remote providers rate-limit free
// keys aggressively, so batches run on a single worker with a fixed delay
// between calls instead of fanning out.
type Runner struct {
	svc    *Service
	proj   *project.Store
	bus    *events.Bus
	delay  time.Duration
	log    zerolog.Logger
	jobs   chan batchJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// closeMu orders StartBatch's sends against Stop's close of r.jobs.
	closeMu sync.Mutex
	closed  bool

	running   atomic.Bool
	kind      atomic.Value // BatchKind
	completed atomic.Int64
	failed    atomic.Int64
}

// NewRunner creates a batch runner.
func NewRunner(opts RunnerOptions) *Runner {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		svc:    opts.Service,
		proj:   opts.Project,
		bus:    opts.Bus,
		delay:  opts.Delay,
		log:    opts.Log.With().Str("component", "batch").Logger(),
		jobs:   make(chan batchJob, opts.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the worker goroutine.
func (r *Runner) Start() {
	r.wg.Add(1)
	go r.worker()
	r.log.Info().Dur("delay", r.delay).Msg("batch runner started")
}

// Stop signals the worker to drain and waits for completion. It is safe to
// call concurrently with StartBatch; later StartBatch calls fail with
// ErrRunnerStopped.
func (r *Runner) Stop() {
	r.closeMu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.closeMu.Unlock()
	r.wg.Wait()
	r.cancel()
	r.log.Info().
		Int64("completed", r.completed.Load()).
		Int64("failed", r.failed.Load()).
		Msg("batch runner stopped")
}

// StartBatch enqueues generation work for every segment that still needs it.
// Only one batch may run at a time. Returns the number of segments enqueued.
func (r *Runner) StartBatch(kind BatchKind, speech provider.Provider) (int, error) {
	segments := r.proj.Get().Segments

	var pending []string
	for _, seg := range segments {
		switch kind {
		case BatchImages:
			if seg.ImageKey == "" && seg.ImagePrompt != "" {
				pending = append(pending, seg.ID)
			}
		default:
			if seg.AudioKey == "" && seg.Narration != "" {
				pending = append(pending, seg.ID)
			}
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	if !r.running.CompareAndSwap(false, true) {
		return 0, ErrBatchRunning
	}
	r.kind.Store(kind)
	r.completed.Store(0)
	r.failed.Store(0)

	if len(pending) > cap(r.jobs) {
		r.log.Warn().Int("wanted", len(pending)).Int("capacity", cap(r.jobs)).Msg("batch truncated to queue capacity")
		pending = pending[:cap(r.jobs)]
	}
	r.closeMu.Lock()
	if r.closed {
		r.closeMu.Unlock()
		r.running.Store(false)
		return 0, ErrRunnerStopped
	}
	for i, id := range pending {
		r.jobs <- batchJob{kind: kind, segmentID: id, speech: speech, last: i == len(pending)-1}
	}
	r.closeMu.Unlock()

	r.bus.Publish("batch_started", "", map[string]any{
		"kind":  string(kind),
		"total": len(pending),
	})
	r.log.Info().Str("kind", string(kind)).Int("segments", len(pending)).Msg("batch started")

	return len(pending), nil
}

// Stats returns the current runner state.
func (r *Runner) Stats() BatchStats {
	stats := BatchStats{
		Running:   r.running.Load(),
		Pending:   len(r.jobs),
		Completed: r.completed.Load(),
		Failed:    r.failed.Load(),
	}
	if k, ok := r.kind.Load().(BatchKind); ok && stats.Running {
		stats.Kind = string(k)
	}
	return stats
}

func (r *Runner) worker() {
	defer r.wg.Done()

	for job := range r.jobs {
		err := r.processJob(job)
		if err != nil {
			r.failed.Add(1)
			r.log.Warn().Err(err).
				Str("kind", string(job.kind)).
				Str("segment", job.segmentID).
				Msg("batch item failed")
			r.bus.Publish("batch_item_failed", job.segmentID, map[string]string{
				"kind":  string(job.kind),
				"error": err.Error(),
			})
		} else {
			r.completed.Add(1)
		}

		if job.last {
			r.running.Store(false)
			r.bus.Publish("batch_complete", "", map[string]any{
				"kind":      string(job.kind),
				"completed": r.completed.Load(),
				"failed":    r.failed.Load(),
			})
			r.log.Info().Str("kind", string(job.kind)).Msg("batch complete")
			continue
		}

		if r.delay > 0 {
			select {
			case <-time.After(r.delay):
			case <-r.ctx.Done():
			}
		}
	}
}

func (r *Runner) processJob(job batchJob) error {
	ctx, cancel := context.WithTimeout(r.ctx, 5*time.Minute)
	defer cancel()

	var err error
	switch job.kind {
	case BatchImages:
		_, err = r.svc.GenerateSegmentImage(ctx, job.segmentID)
	default:
		_, err = r.svc.GenerateSegmentAudio(ctx, job.segmentID, job.speech)
	}
	return err
}
