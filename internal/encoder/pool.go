package encoder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/recodarr/recodarr/internal/config"
	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/repository"
	"github.com/recodarr/recodarr/internal/resources"
)

// JobRunner executes one claimed item to a terminal state.
type JobRunner interface {
	Run(ctx context.Context) error
	Stop()
}

// RunnerFactory builds a runner for a claimed item.
type RunnerFactory func(item *models.QueueItem, profile *models.Profile) JobRunner

// Pool claims pending items and runs one supervisor per claim, bounded by
// the configured concurrency. The scheduler starts and stops it around the
// rest window.
type Pool struct {
	cfg      config.EncoderConfig
	queue    repository.QueueRepository
	profiles repository.ProfileRepository
	factory  RunnerFactory
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	active  map[models.ULID]JobRunner
}

// NewPool creates an encoder pool. factory may be nil, in which case
// SupervisorFactory must be installed before Start.
func NewPool(cfg config.EncoderConfig, queue repository.QueueRepository, profiles repository.ProfileRepository, factory RunnerFactory, logger *slog.Logger) *Pool {
	if cfg.MaxConcurrentJobs < 1 {
		cfg.MaxConcurrentJobs = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		cfg:      cfg,
		queue:    queue,
		profiles: profiles,
		factory:  factory,
		logger:   logger.With(slog.String("component", "pool")),
		active:   make(map[models.ULID]JobRunner),
	}
}

// SupervisorFactory returns the production runner factory.
func SupervisorFactory(
	cfg config.EncoderConfig,
	queue repository.QueueRepository,
	finalizer *Finalizer,
	monitor *resources.Monitor,
	detector *HWAccelDetector,
	prestage PreStage,
	sampleInterval time.Duration,
	logger *slog.Logger,
	transcoderLog *slog.Logger,
) RunnerFactory {
	return func(item *models.QueueItem, profile *models.Profile) JobRunner {
		return NewSupervisor(cfg, item, profile, queue, finalizer, monitor, detector,
			NewSignalPauseStrategy(), prestage, sampleInterval, logger).
			WithTranscoderLog(transcoderLog)
	}
}

// Start begins the claim loop. Starting a running pool is a no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.running = true
	p.wg.Add(1)
	go p.loop(ctx)
	p.logger.Info("encoder pool started",
		slog.Int("max_concurrent", p.cfg.MaxConcurrentJobs))
}

// Stop halts claiming and propagates a graceful stop to every active
// runner, then waits for them to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	runners := make([]JobRunner, 0, len(p.active))
	for _, runner := range p.active {
		runners = append(runners, runner)
	}
	p.mu.Unlock()

	for _, runner := range runners {
		runner.Stop()
	}
	p.wg.Wait()
	p.logger.Info("encoder pool stopped")
}

// Running reports whether the claim loop is active.
func (p *Pool) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// ActiveCount reports the number of in-flight jobs.
func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

func (p *Pool) loop(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if p.ActiveCount() >= p.cfg.MaxConcurrentJobs {
			sleepCtx(ctx, time.Second)
			continue
		}

		item, err := p.queue.ClaimNextPending(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Error("claiming next item failed", slog.String("error", err.Error()))
			}
			sleepCtx(ctx, time.Second)
			continue
		}
		if item == nil {
			// Queue idle
			sleepCtx(ctx, time.Second)
			continue
		}

		profile, err := p.profiles.GetByID(ctx, item.ProfileID)
		if err != nil || profile == nil {
			reason := "profile not found"
			if err != nil {
				reason = "loading profile: " + err.Error()
			}
			item.MarkFailed(reason)
			if updateErr := p.queue.Update(ctx, item); updateErr != nil {
				p.logger.Error("marking unplannable item failed",
					slog.String("error", updateErr.Error()))
			}
			continue
		}

		runner := p.factory(item, profile)
		p.mu.Lock()
		p.active[item.ID] = runner
		p.mu.Unlock()

		p.wg.Add(1)
		go func(id models.ULID) {
			defer p.wg.Done()
			defer func() {
				p.mu.Lock()
				delete(p.active, id)
				p.mu.Unlock()
			}()
			if err := runner.Run(ctx); err != nil {
				p.logger.Warn("job ended with error", slog.String("error", err.Error()))
			}
		}(item.ID)
	}
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
