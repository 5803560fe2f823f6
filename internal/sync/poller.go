package sync

import (
	"context"
	"fmt"
	"runtime/debug"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	cronv3 "github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/mailpdf/internal/auth"
	"github.com/nhle/mailpdf/internal/logger"
	"github.com/nhle/mailpdf/internal/model"
	"github.com/nhle/mailpdf/internal/source"
)

// SyncState represents the current state of the poller.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "idle"
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return "unknown"
	}
}

// SyncStatus holds the poller state after the most recent cycle.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Cycles   int
	Error    error
}

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	ID               string
	Listed           int
	Processed        int
	Skipped          int
	Failed           int
	MarkReadFailures int
	Files            []string
	Errors           []error
	StartedAt        time.Time
	Duration         time.Duration

	// Err is the cycle-level failure, if any.
	Err error
}

// Outcome condenses the result to "ok", "partial" or "failed".
func (r *CycleResult) Outcome() string {
	switch {
	case r.Err != nil:
		return "failed"
	case r.Failed > 0 || r.MarkReadFailures > 0:
		return "partial"
	default:
		return "ok"
	}
}

func (r *CycleResult) record(msg model.Message, outcome *MessageOutcome, err error) {
	if outcome != nil {
		r.Files = append(r.Files, outcome.Files...)
	}
	switch {
	case err != nil:
		r.Failed++
		r.Errors = append(r.Errors, fmt.Errorf("message %s: %w", msg.ID, err))
	case outcome.NoAttachments:
		r.Skipped++
	default:
		r.Processed++
		if outcome.MarkReadErr != nil {
			r.MarkReadFailures++
		}
	}
}

// Config holds the poll loop settings.
type Config struct {
	Subject  string
	Workers  int
	Interval time.Duration
}

// Poller drives the poll cycle: acquire a token, list matching unread
// messages and hand each to the Processor.
type Poller struct {
	tokens    auth.TokenSource
	mailbox   source.Mailbox
	processor *Processor
	cfg       Config
	log       logger.Logger
	sleep     func(ctx context.Context, d time.Duration) error

	mu     gosync.Mutex
	status SyncStatus
}

// New creates a Poller.
func New(tokens auth.TokenSource, mailbox source.Mailbox, processor *Processor, cfg Config, log logger.Logger) *Poller {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	return &Poller{
		tokens:    tokens,
		mailbox:   mailbox,
		processor: processor,
		cfg:       cfg,
		log:       log,
		sleep:     sleepContext,
	}
}

// Status returns the state reached by the last cycle.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// RunCycle runs one poll cycle. The returned error covers failures of the
// cycle as a whole; per-message failures are only recorded in the result.
func (p *Poller) RunCycle(ctx context.Context) (result *CycleResult, err error) {
	result = &CycleResult{ID: uuid.NewString(), StartedAt: time.Now()}
	log := p.log.With(zap.String("cycle_id", result.ID))
	p.setState(SyncRunning, nil)

	defer func() {
		if r := recover(); r != nil {
			log.Error("poll cycle panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("poll cycle panicked: %v", r)
		}
		result.Err = err
		result.Duration = time.Since(result.StartedAt)
		p.finish(err)
	}()

	token, err := p.tokens.Token(ctx)
	if err != nil {
		return result, fmt.Errorf("acquiring token: %w", err)
	}

	messages, err := p.mailbox.ListUnread(ctx, token, p.cfg.Subject)
	if err != nil {
		return result, fmt.Errorf("listing unread messages: %w", err)
	}
	result.Listed = len(messages)
	log.Debug("unread messages listed", zap.Int("count", len(messages)))

	var mu gosync.Mutex
	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)

	for _, msg := range messages {
		if ctx.Err() != nil {
			log.Info("cancelled, leaving remaining messages for a later cycle")
			break
		}
		g.Go(func() error {
			outcome, err := p.processSafely(ctx, token, msg)
			if err != nil {
				log.Error("message processing failed", zap.String("message_id", msg.ID), zap.Error(err))
			}
			mu.Lock()
			defer mu.Unlock()
			result.record(msg, outcome, err)
			return nil
		})
	}
	_ = g.Wait()

	return result, nil
}

// processSafely isolates a message: a panic becomes an error for that
// message only.
func (p *Poller) processSafely(ctx context.Context, token string, msg model.Message) (outcome *MessageOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = fmt.Errorf("processing panicked: %v", r)
		}
	}()
	return p.processor.ProcessMessage(ctx, token, msg)
}

// Run polls until ctx is cancelled, sleeping the configured interval
// between cycles. It returns nil on cancellation.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("poller started",
		zap.String("subject", p.cfg.Subject),
		zap.Duration("interval", p.cfg.Interval),
		zap.Int("workers", p.cfg.Workers))

	for {
		if ctx.Err() != nil {
			break
		}
		p.runAndLog(ctx)
		if err := p.sleep(ctx, p.cfg.Interval); err != nil {
			break
		}
	}

	p.log.Info("poller stopped")
	return nil
}

// RunScheduled runs cycles on a cron schedule (with seconds field) until
// ctx is cancelled. A cycle still running when the next one is due causes
// that tick to be skipped.
func (p *Poller) RunScheduled(ctx context.Context, spec string) error {
	cl := cronLogger{log: p.log}
	c := cronv3.New(
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cl),
			cronv3.Recover(cl),
		),
	)
	if _, err := c.AddFunc(spec, func() { p.runAndLog(ctx) }); err != nil {
		return fmt.Errorf("invalid poll schedule %q: %w", spec, err)
	}

	p.log.Info("scheduled poller started", zap.String("schedule", spec), zap.String("subject", p.cfg.Subject))
	c.Start()
	<-ctx.Done()

	// Wait for a running cycle to finish.
	<-c.Stop().Done()
	p.log.Info("poller stopped")
	return nil
}

func (p *Poller) runAndLog(ctx context.Context) {
	result, err := p.RunCycle(ctx)
	log := p.log.With(zap.String("cycle_id", result.ID))

	if err != nil {
		if auth.IsAuthenticationError(err) {
			log.Error("authentication failed, will retry next cycle", zap.Error(err))
		} else {
			log.Error("poll cycle failed", zap.Error(err))
		}
		return
	}

	log.Info("poll cycle finished",
		zap.String("outcome", result.Outcome()),
		zap.Int("listed", result.Listed),
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Int("files", len(result.Files)),
		zap.Duration("duration", result.Duration))
}

func (p *Poller) setState(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.State = state
	p.status.Error = err
}

func (p *Poller) finish(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Cycles++
	if err != nil {
		p.status.State = SyncError
		p.status.Error = err
		return
	}
	p.status.State = SyncIdle
	p.status.Error = nil
	p.status.LastSync = time.Now()
}

// cronLogger adapts the application logger to cron's logger interface.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Logger().Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Logger().Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
