package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/target/title-doctor/config"
)

type depthReporter interface {
	Depth(ctx context.Context) (queued, inflight int64, err error)
}

func runQueueDepth(cmdCtx *commandContext, _ []string) error {
	if cmdCtx.Config.Store.Queue != config.QueueBackendRedis {
		return errors.New("queue-depth requires QUEUE_BACKEND=redis")
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	a, err := openStores(cmdCtx)
	if err != nil {
		return err
	}
	defer a.close(cmdCtx)

	dr, ok := a.stores.Queue.(depthReporter)
	if !ok {
		return errors.New("configured queue does not report depth")
	}
	queued, inflight, err := dr.Depth(ctx)
	if err != nil {
		return err
	}
	return fprintf(cmdCtx.Out, "queued: %d\ninflight: %d\n", queued, inflight)
}

func runRequeueInflight(cmdCtx *commandContext, args []string) error {
	if cmdCtx.Config.Store.Queue != config.QueueBackendRedis {
		return errors.New("requeue-inflight requires QUEUE_BACKEND=redis")
	}

	fs := flag.NewFlagSet("requeue-inflight", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	limit := fs.Int64("limit", 1000, "Maximum number of messages to move")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("--limit must be greater than zero")
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	a, err := openStores(cmdCtx)
	if err != nil {
		return err
	}
	defer a.close(cmdCtx)

	moved, err := a.stores.Queue.RequeueInflight(ctx, *limit)
	if err != nil {
		return err
	}
	cmdCtx.Logger.InfoContext(ctx, "requeued in-flight messages", "moved", moved)
	return fprintf(cmdCtx.Out, "Requeued %d message(s).\n", moved)
}
