// Package main is the hyp3 command-line client for submitting, finding,
// watching, and downloading HyP3 jobs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/asfhyp3/hyp3-go/internal/config"
	"github.com/asfhyp3/hyp3-go/pkg/hyp3"
)

const usage = `usage: hyp3 <command> [flags]

commands:
  submit    submit jobs from a YAML jobs file
  find      list jobs matching filters
  watch     block until a job completes
  download  download a succeeded job's products

run 'hyp3 <command> -h' for command flags
`

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(os.Args[1:]); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("no command given")
	}

	// Credentials usually live in a .env next to the working directory; a
	// missing file is fine, the environment may carry them already.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := hyp3.NewClient(ctx, hyp3.ClientConfig{
		APIURL:   cfg.API.URL,
		Token:    cfg.Auth.Token,
		Username: cfg.Auth.Username,
		Password: cfg.Auth.Password,
		Timeout:  cfg.API.Timeout,
	})
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	command, commandArgs := args[0], args[1:]
	switch command {
	case "submit":
		return runSubmit(ctx, client, cfg, commandArgs)
	case "find":
		return runFind(ctx, client, commandArgs)
	case "watch":
		return runWatch(ctx, client, cfg, commandArgs)
	case "download":
		return runDownload(ctx, client, commandArgs)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func runSubmit(ctx context.Context, client *hyp3.Client, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	file := fs.String("f", "jobs.yaml", "jobs file to submit")
	validate := fs.Bool("validate-only", false, "validate the jobs without creating them")
	watch := fs.Bool("watch", false, "block until the submitted jobs complete")
	if err := fs.Parse(args); err != nil {
		return err
	}

	submissions, err := readJobsFile(*file)
	if err != nil {
		return err
	}
	slog.Info("jobs file parsed", "file", *file, "jobs", len(submissions))

	if *validate {
		if err := client.ValidateJobs(ctx, submissions...); err != nil {
			return err
		}
		slog.Info("all jobs valid", "jobs", len(submissions))
		return nil
	}

	batch, err := client.SubmitJobs(ctx, submissions...)
	if err != nil {
		return err
	}
	slog.Info("jobs submitted", "jobs", batch.Len())

	if *watch {
		batch, err = client.WatchBatch(ctx, batch, &hyp3.WatchOptions{
			Timeout:  cfg.Watch.Timeout,
			Interval: cfg.Watch.Interval,
		})
		if err != nil {
			return err
		}
	}
	return printJSON(batch.Jobs())
}

func runFind(ctx context.Context, client *hyp3.Client, args []string) error {
	fs := flag.NewFlagSet("find", flag.ExitOnError)
	name := fs.String("name", "", "filter by job name")
	jobType := fs.String("job-type", "", "filter by job type")
	status := fs.String("status", "", "filter by status code")
	since := fs.Duration("since", 0, "only jobs requested within this window, e.g. 72h")
	if err := fs.Parse(args); err != nil {
		return err
	}

	params := hyp3.FindJobsParams{
		Name:       *name,
		JobType:    *jobType,
		StatusCode: hyp3.Status(*status),
	}
	if *since > 0 {
		start := time.Now().UTC().Add(-*since)
		params.Start = &start
	}

	batch, err := client.FindJobs(ctx, params)
	if err != nil {
		return err
	}
	slog.Info("jobs found", "jobs", batch.Len())
	return printJSON(batch.Jobs())
}

func runWatch(ctx context.Context, client *hyp3.Client, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: hyp3 watch <job_id>")
	}

	job, err := client.GetJob(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	job, err = client.WatchJob(ctx, job, &hyp3.WatchOptions{
		Timeout:  cfg.Watch.Timeout,
		Interval: cfg.Watch.Interval,
	})
	if err != nil {
		return err
	}
	slog.Info("job complete", "job_id", job.JobID, "status", job.StatusCode)
	return printJSON(job)
}

func runDownload(ctx context.Context, client *hyp3.Client, args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	dir := fs.String("d", ".", "destination directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: hyp3 download [-d dir] <job_id>")
	}

	job, err := client.GetJob(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	paths, err := job.DownloadFiles(ctx, *dir, nil)
	if err != nil {
		return err
	}
	slog.Info("files downloaded", "job_id", job.JobID, "files", len(paths))
	return printJSON(paths)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
