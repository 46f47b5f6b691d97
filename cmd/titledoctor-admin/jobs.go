package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/target/title-doctor/config"
	"github.com/target/title-doctor/internal/bootstrap"
	"github.com/target/title-doctor/internal/domain/model"
	"github.com/target/title-doctor/internal/service"
)

// adminStores opens the configured shared backends. In-process backends
// hold nothing another process could inspect.
type adminStores struct {
	infra  *bootstrap.Infrastructure
	stores bootstrap.Stores
	states *service.JobStateService
}

func openStores(cmdCtx *commandContext) (*adminStores, error) {
	cfg := cmdCtx.Config
	if cfg.Store.Backend == config.StoreBackendMemory {
		return nil, errors.New("JOB_STORE_BACKEND=memory is private to the running service; nothing to inspect")
	}

	infra, err := bootstrap.ConnectInfrastructure(cmdCtx.Ctx, &cfg, cmdCtx.Logger)
	if err != nil {
		return nil, err
	}
	stores, err := bootstrap.BuildStores(&cfg, infra)
	if err != nil {
		return nil, errors.Join(err, infra.Close())
	}
	states, err := service.NewJobStateService(service.JobStateServiceOptions{
		Repo:   stores.Jobs,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return nil, errors.Join(err, infra.Close())
	}
	return &adminStores{infra: infra, stores: stores, states: states}, nil
}

func (a *adminStores) close(cmdCtx *commandContext) {
	if err := a.infra.Close(); err != nil {
		cmdCtx.Logger.Warn("close connections failed", "error", err)
	}
}

type getJobOptions struct {
	JobID   string
	RawJSON bool
}

func parseGetJobFlags(args []string) (getJobOptions, error) {
	fs := flag.NewFlagSet("get-job", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts getJobOptions
	fs.BoolVar(&opts.RawJSON, "json", false, "Print the raw JSON record")
	if err := fs.Parse(args); err != nil {
		return getJobOptions{}, err
	}
	if fs.NArg() != 1 {
		return getJobOptions{}, errors.New("usage: get-job [--json] <job-id>")
	}
	opts.JobID = fs.Arg(0)
	return opts, nil
}

func runGetJob(cmdCtx *commandContext, args []string) error {
	opts, err := parseGetJobFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	a, err := openStores(cmdCtx)
	if err != nil {
		return err
	}
	defer a.close(cmdCtx)

	job, err := a.states.Get(ctx, opts.JobID)
	if err != nil {
		return err
	}

	if opts.RawJSON {
		enc := json.NewEncoder(cmdCtx.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	}
	return printJob(cmdCtx.Out, job)
}

func printJob(w io.Writer, job *model.Job) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"Job ID", job.ID},
		{"Status", string(job.Status)},
		{"Channel", job.ChannelRef},
		{"Email", job.NotifyAddress},
		{"Created", job.CreatedAt.Format(time.RFC3339)},
		{"Updated", job.UpdatedAt.Format(time.RFC3339)},
	}
	if job.ChannelID != "" {
		rows = append(rows, [2]string{"Channel ID", job.ChannelID + " (" + job.ChannelName + ")"})
	}
	if len(job.Videos) > 0 {
		rows = append(rows, [2]string{"Videos", fmt.Sprint(len(job.Videos))})
	}
	if len(job.ImprovedTitles) > 0 {
		rows = append(rows, [2]string{"Improved titles", fmt.Sprint(len(job.ImprovedTitles))})
	}
	if job.EmailID != "" {
		rows = append(rows, [2]string{"Email ID", job.EmailID})
	}
	if job.Error != "" {
		rows = append(rows, [2]string{"Error", job.Error}, [2]string{"Failed stage", string(job.FailedStage)})
	}
	if job.NotificationError != "" {
		rows = append(rows, [2]string{"Notification error", job.NotificationError})
	}
	for _, d := range job.DiscardedErrors {
		rows = append(rows, [2]string{"Discarded error", d})
	}
	for _, st := range job.Stages {
		rows = append(rows, [2]string{"Stage " + string(st.Stage), st.CompletedAt.Format(time.RFC3339)})
	}

	for _, r := range rows {
		if err := fprintf(tw, "%s:\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

type staleOptions struct {
	OlderThan time.Duration
	Limit     int
}

func parseStaleFlags(name string, args []string, defaults config.ReaperConfig) (staleOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := staleOptions{OlderThan: defaults.StaleAfter, Limit: defaults.BatchSize}
	fs.DurationVar(&opts.OlderThan, "older-than", defaults.StaleAfter, "Minimum time since the job's last update")
	fs.IntVar(&opts.Limit, "limit", defaults.BatchSize, "Maximum number of jobs")
	if err := fs.Parse(args); err != nil {
		return staleOptions{}, err
	}
	if opts.OlderThan <= 0 {
		return staleOptions{}, errors.New("--older-than must be greater than zero")
	}
	if opts.Limit <= 0 {
		return staleOptions{}, errors.New("--limit must be greater than zero")
	}
	return opts, nil
}

func runListStale(cmdCtx *commandContext, args []string) error {
	opts, err := parseStaleFlags("list-stale", args, cmdCtx.Config.Reaper)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	a, err := openStores(cmdCtx)
	if err != nil {
		return err
	}
	defer a.close(cmdCtx)

	jobs, err := a.states.ListStale(ctx, time.Now().UTC().Add(-opts.OlderThan), opts.Limit)
	if err != nil {
		return err
	}
	return printStaleJobs(cmdCtx.Out, jobs, time.Now())
}

func printStaleJobs(w io.Writer, jobs []*model.Job, now time.Time) error {
	if len(jobs) == 0 {
		return fprintf(w, "No stale jobs.\n")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := fprintf(tw, "JOB ID\tSTATUS\tCHANNEL\tIDLE\n"); err != nil {
		return err
	}
	for _, j := range jobs {
		idle := now.Sub(j.UpdatedAt).Truncate(time.Second)
		if err := fprintf(tw, "%s\t%s\t%s\t%s\n", j.ID, j.Status, j.ChannelRef, idle); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runReap(cmdCtx *commandContext, args []string) error {
	if cmdCtx.Config.Store.Queue != config.QueueBackendRedis {
		return errors.New("reap requires QUEUE_BACKEND=redis so the running failure aggregator receives the events")
	}
	opts, err := parseStaleFlags("reap", args, cmdCtx.Config.Reaper)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	a, err := openStores(cmdCtx)
	if err != nil {
		return err
	}
	defer a.close(cmdCtx)

	reaperCfg := cmdCtx.Config.Reaper
	reaperCfg.StaleAfter = opts.OlderThan
	reaperCfg.BatchSize = opts.Limit

	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		States: a.states,
		Queue:  a.stores.Queue,
		Config: reaperCfg,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return err
	}

	n, err := reaper.ReapStale(ctx)
	if err != nil {
		return err
	}
	return fprintf(cmdCtx.Out, "Reaped %d job(s); failure events queued for the aggregator.\n", n)
}
