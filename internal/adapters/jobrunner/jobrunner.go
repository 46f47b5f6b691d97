// Package jobrunner claims pipeline messages from the queue and executes the
// stage handlers they route to.
package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/target/title-doctor/internal/core"
	"github.com/target/title-doctor/internal/data"
	"github.com/target/title-doctor/internal/domain/pipeline"
	"github.com/target/title-doctor/internal/observability/metrics"
	"github.com/target/title-doctor/internal/observability/statsd"
)

const (
	tracerName = "github.com/target/title-doctor/internal/adapters/jobrunner"

	defaultClaimTimeout  = 2 * time.Second
	defaultStageTimeout  = 60 * time.Second
	defaultRecoverLimit  = 1000
	claimErrorBackoff    = time.Second
	settleTimeout        = 10 * time.Second
	queueDepthEveryClaim = 50
)

// depthReporter is implemented by queues that can report their backlog.
type depthReporter interface {
	Depth(ctx context.Context) (queued, inflight int64, err error)
}

// RunnerOptions configures the pipeline runner.
type RunnerOptions struct {
	Queue    core.MessageQueue                        // Required
	Handlers map[pipeline.Subscriber]pipeline.Handler // Required: handler per route subscriber
	Logger   *slog.Logger

	Concurrency  int           // handlers running at once across all jobs; defaults to 1
	StageTimeout time.Duration // per-message handler deadline; defaults to 60s
	MailboxSize  int           // initial capacity of a job's mailbox
	ClaimTimeout time.Duration // how long one Claim blocks; defaults to 2s
	RecoverLimit int64         // in-flight messages requeued at startup; defaults to 1000

	Metrics statsd.Sink
	Tracer  trace.Tracer // defaults to the global otel tracer
}

// Runner delivers each job's messages to a per-job mailbox goroutine so
// handlers for the same job never overlap, while a weighted semaphore bounds
// the total number of claimed, unfinished messages.
type Runner struct {
	queue        core.MessageQueue
	handlers     map[pipeline.Subscriber]pipeline.Handler
	logger       *slog.Logger
	metrics      statsd.Sink
	tracer       trace.Tracer
	sem          *semaphore.Weighted
	stageTimeout time.Duration
	claimTimeout time.Duration
	mailboxSize  int
	recoverLimit int64

	mu        sync.Mutex
	mailboxes map[string]*mailbox
	wg        sync.WaitGroup
}

type mailbox struct {
	pending []*core.Delivery
}

// NewRunner validates opts and constructs a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Queue == nil {
		return nil, errors.New("message queue is required")
	}
	if len(opts.Handlers) == 0 {
		return nil, errors.New("at least one handler is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	workers := max(opts.Concurrency, 1)
	stageTimeout := opts.StageTimeout
	if stageTimeout <= 0 {
		stageTimeout = defaultStageTimeout
	}
	claimTimeout := opts.ClaimTimeout
	if claimTimeout <= 0 {
		claimTimeout = defaultClaimTimeout
	}
	recoverLimit := opts.RecoverLimit
	if recoverLimit <= 0 {
		recoverLimit = defaultRecoverLimit
	}

	return &Runner{
		queue:        opts.Queue,
		handlers:     opts.Handlers,
		logger:       logger.With("component", "pipeline_runner"),
		metrics:      opts.Metrics,
		tracer:       tracer,
		sem:          semaphore.NewWeighted(int64(workers)),
		stageTimeout: stageTimeout,
		claimTimeout: claimTimeout,
		mailboxSize:  max(opts.MailboxSize, 1),
		recoverLimit: recoverLimit,
		mailboxes:    make(map[string]*mailbox),
	}, nil
}

// Run claims messages until ctx is cancelled or the queue closes, then waits
// for in-flight handlers to finish. Returns nil on graceful shutdown.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting pipeline runner", "stage_timeout", r.stageTimeout)
	r.recoverInflight(ctx)

	defer r.wg.Wait()

	claims := 0
	for {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return r.stopped(ctx)
		}

		d, err := r.queue.Claim(ctx, r.claimTimeout)
		if err != nil {
			r.sem.Release(1)
			switch {
			case errors.Is(err, core.ErrNoMessage):
				continue
			case ctx.Err() != nil:
				return r.stopped(ctx)
			case errors.Is(err, data.ErrQueueClosed):
				r.logger.InfoContext(ctx, "queue closed, pipeline runner stopping")
				return nil
			default:
				r.logger.ErrorContext(ctx, "claim failed", "error", err)
				if !sleepCtx(ctx, claimErrorBackoff) {
					return r.stopped(ctx)
				}
				continue
			}
		}

		r.dispatch(ctx, d)

		claims++
		if claims%queueDepthEveryClaim == 0 {
			r.reportDepth(ctx)
		}
	}
}

func (r *Runner) stopped(ctx context.Context) error {
	r.logger.InfoContext(ctx, "pipeline runner stopping", "reason", ctx.Err())
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

// recoverInflight requeues deliveries a previous process claimed but never acknowledged.
func (r *Runner) recoverInflight(ctx context.Context) {
	n, err := r.queue.RequeueInflight(ctx, r.recoverLimit)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to requeue in-flight messages", "error", err)
		return
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "requeued in-flight messages", "count", n)
	}
}

// dispatch hands d to its job's mailbox, starting a mailbox goroutine when
// the job has none.
func (r *Runner) dispatch(ctx context.Context, d *core.Delivery) {
	jobID := d.Envelope.JobID

	r.mu.Lock()
	if mb, ok := r.mailboxes[jobID]; ok {
		mb.pending = append(mb.pending, d)
		r.mu.Unlock()
		return
	}
	r.mailboxes[jobID] = &mailbox{pending: make([]*core.Delivery, 0, r.mailboxSize)}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.drainMailbox(ctx, jobID, d)
	}()
}

func (r *Runner) drainMailbox(ctx context.Context, jobID string, d *core.Delivery) {
	for d != nil {
		r.process(ctx, d)
		r.sem.Release(1)

		r.mu.Lock()
		mb := r.mailboxes[jobID]
		if len(mb.pending) == 0 {
			delete(r.mailboxes, jobID)
			d = nil
		} else {
			d = mb.pending[0]
			mb.pending[0] = nil
			mb.pending = mb.pending[1:]
		}
		r.mu.Unlock()
	}
}

// process runs the handler for one delivery, publishes its outcome and
// acknowledges the delivery. Handler errors drop the message; stage failures
// are reported as StageFailed outcomes, not errors.
func (r *Runner) process(ctx context.Context, d *core.Delivery) {
	start := time.Now()
	logger := r.logger.With("job_id", d.Envelope.JobID, "topic", d.Envelope.Topic)

	// In-flight work finishes during shutdown, bounded by the stage timeout.
	workCtx := context.WithoutCancel(ctx)

	msg, err := pipeline.Decode(d.Envelope)
	if err != nil {
		logger.ErrorContext(ctx, "dropping undecodable message", "error", err)
		r.ack(workCtx, logger, d)
		r.emit(metrics.StageMetric{Topic: string(d.Envelope.Topic), Result: metrics.ResultError, Err: err})
		return
	}

	sub, ok := pipeline.Route(msg.Topic())
	if !ok {
		r.ack(workCtx, logger, d)
		return
	}
	h, ok := r.handlers[sub]
	if !ok {
		logger.ErrorContext(ctx, "no handler registered, dropping message", "subscriber", sub)
		r.ack(workCtx, logger, d)
		return
	}

	out, err := r.handle(workCtx, sub, h, msg)
	m := metrics.StageMetric{
		Subscriber: string(sub),
		Topic:      string(msg.Topic()),
		Duration:   time.Since(start),
	}
	if err != nil {
		logger.ErrorContext(ctx, "handler failed, dropping message", "subscriber", sub, "error", err)
		r.ack(workCtx, logger, d)
		m.Result, m.Err = metrics.ResultError, err
		r.emit(m)
		return
	}

	m.Result = metrics.ResultNoop
	if out != nil {
		m.Result, m.Outcome = metrics.ResultSuccess, string(out.Topic())
		if err := r.publish(workCtx, out); err != nil {
			// Left unacknowledged so a restart requeues it.
			logger.ErrorContext(ctx, "failed to publish outcome", "outcome", out.Topic(), "error", err)
			m.Result, m.Err = metrics.ResultError, err
			r.emit(m)
			return
		}
	}

	r.ack(workCtx, logger, d)
	r.emit(m)
}

func (r *Runner) handle(
	ctx context.Context,
	sub pipeline.Subscriber,
	h pipeline.Handler,
	msg pipeline.Message,
) (pipeline.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, r.stageTimeout)
	defer cancel()

	ctx, span := r.tracer.Start(ctx, "pipeline.handle",
		trace.WithAttributes(
			attribute.String("pipeline.subscriber", string(sub)),
			attribute.String("pipeline.topic", string(msg.Topic())),
			attribute.String("pipeline.job_id", msg.Job()),
		),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	defer span.End()

	out, err := h.Handle(ctx, msg)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case out != nil && out.Topic() == pipeline.TopicStageFailed:
		span.SetAttributes(attribute.String("pipeline.outcome", string(out.Topic())))
		span.SetStatus(codes.Error, "stage failed")
	default:
		if out != nil {
			span.SetAttributes(attribute.String("pipeline.outcome", string(out.Topic())))
		}
		span.SetStatus(codes.Ok, "")
	}
	return out, err
}

func (r *Runner) publish(ctx context.Context, msg pipeline.Message) error {
	env, err := pipeline.Encode(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	if err := r.queue.Publish(ctx, env); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Topic(), err)
	}
	return nil
}

func (r *Runner) ack(ctx context.Context, logger *slog.Logger, d *core.Delivery) {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	if err := r.queue.Ack(ctx, d); err != nil {
		logger.WarnContext(ctx, "failed to acknowledge message", "error", err)
	}
}

func (r *Runner) emit(m metrics.StageMetric) {
	metrics.EmitStageTransition(r.metrics, m)
}

func (r *Runner) reportDepth(ctx context.Context) {
	dr, ok := r.queue.(depthReporter)
	if !ok || r.metrics == nil {
		return
	}
	queued, inflight, err := dr.Depth(ctx)
	if err != nil {
		r.logger.DebugContext(ctx, "failed to read queue depth", "error", err)
		return
	}
	metrics.EmitQueueDepth(r.metrics, queued, inflight)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
