package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"leadflow/app/database"
	"leadflow/app/ratelimit"
	"leadflow/app/telegram"
)

// Config carries the orchestrator's timing and classification knobs.
type Config struct {
	CycleInterval      time.Duration
	ReplyCheckInterval time.Duration
	NoReplyTTL         time.Duration
	JanitorInterval    time.Duration
	SummaryHour        int // UTC hour of day
	DiscoveryInterval  time.Duration
	MinRelevance       float64
	TargetStacks       []string
}

// Orchestrator runs the pipeline's concurrent loops: intake, outreach, reply
// tracking, janitor, daily summary, and optional discovery. One loop failing
// hard takes the whole group down so the process can restart clean.
type Orchestrator struct {
	channels  database.ChannelRepository
	messages  database.MessageRepository
	leads     database.LeadRepository
	budget    database.BudgetRepository
	llm       Classifier
	client    telegram.Client
	collector Collector
	notifier  Notifier
	discovery Discoverer
	limiter   *ratelimit.Limiter
	retry     *telegram.RetryPolicy
	queue     *telegram.Queue
	config    Config

	// pausedUntil is written by the outreach loop and the push reply
	// handler, read by the status endpoint.
	mu          sync.Mutex
	pausedUntil time.Time

	startedAt time.Time
	ourUserID int64

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type Deps struct {
	Channels  database.ChannelRepository
	Messages  database.MessageRepository
	Leads     database.LeadRepository
	Budget    database.BudgetRepository
	LLM       Classifier
	Client    telegram.Client
	Collector Collector
	Notifier  Notifier
	Discovery Discoverer // nil disables the discovery loop
	Limiter   *ratelimit.Limiter
	Retry     *telegram.RetryPolicy
	Queue     *telegram.Queue
}

func NewOrchestrator(deps Deps, config Config) *Orchestrator {
	return &Orchestrator{
		channels:  deps.Channels,
		messages:  deps.Messages,
		leads:     deps.Leads,
		budget:    deps.Budget,
		llm:       deps.LLM,
		client:    deps.Client,
		collector: deps.Collector,
		notifier:  deps.Notifier,
		discovery: deps.Discovery,
		limiter:   deps.Limiter,
		retry:     deps.Retry,
		queue:     deps.Queue,
		config:    config,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// Run starts all loops and blocks until the context is cancelled or a loop
// fails. The returned error is the first loop failure, or the context error
// on clean shutdown.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startedAt = o.now().UTC()

	me, err := o.client.Me(ctx)
	if err != nil {
		return err
	}
	o.ourUserID = me.ID

	o.collector.OnPrivateMessage(o.handlePrivateMessage)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return o.intakeLoop(ctx) })
	g.Go(func() error { return o.outreachLoop(ctx) })
	g.Go(func() error { return o.replyLoop(ctx) })
	g.Go(func() error { return o.janitorLoop(ctx) })
	g.Go(func() error { return o.summaryLoop(ctx) })

	loops := 5
	if o.discovery != nil {
		g.Go(func() error { return o.discoveryLoop(ctx) })
		loops++
	}

	slog.Info("Orchestrator started", "loops", loops)

	return g.Wait()
}

func (o *Orchestrator) isPaused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pausedUntil.IsZero() {
		return false
	}
	if !o.now().Before(o.pausedUntil) {
		o.pausedUntil = time.Time{}
		slog.Info("Outreach pause lifted")
		return false
	}

	return true
}

func (o *Orchestrator) pauseFor(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.pausedUntil = o.now().Add(d)

	slog.Warn("Outreach paused", "until", o.pausedUntil.UTC().Format(time.RFC3339))
}

func (o *Orchestrator) pausedUntilTime() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.pausedUntil
}

func (o *Orchestrator) discoveryLoop(ctx context.Context) error {
	slog.Info("Discovery loop started", "interval", o.config.DiscoveryInterval)

	// The startup keyword search already ran; wait a full interval before
	// the first complete cycle.
	for {
		if err := o.sleep(ctx, o.config.DiscoveryInterval); err != nil {
			return err
		}

		count, err := o.discovery.RunCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Discovery cycle failed", "error", err)
			continue
		}

		slog.Info("Discovery cycle complete", "new_channels", count)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
