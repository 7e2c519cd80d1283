package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	platformerrors "github.com/jmgilman/go/errors"

	"github.com/utkarsh5026/taskflow/config"
	"github.com/utkarsh5026/taskflow/retry"
	"github.com/utkarsh5026/taskflow/task"
)

// fetchTaskName namespaces cached pages.
const fetchTaskName = "fetch_pages"

// queueChunk is how many URLs each Put carries in queue mode.
const queueChunk = 16

type fetchFlags struct {
	configPath string
	parallel   int
	cacheMode  string
	retries    int
	wait       time.Duration
	timeout    time.Duration
	out        string
	formats    string
	mode       string
	noProgress bool
}

func parseFetchFlags(args []string, stderr io.Writer) (*fetchFlags, *flag.FlagSet, error) {
	ff := &fetchFlags{}
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&ff.configPath, "config", "", "path to a YAML config file")
	fs.IntVar(&ff.parallel, "parallel", 4, "number of concurrent fetches")
	fs.StringVar(&ff.cacheMode, "cache", "off", "cache mode: off, on or refresh")
	fs.IntVar(&ff.retries, "retries", 2, "retries per URL")
	fs.DurationVar(&ff.wait, "wait", 500*time.Millisecond, "wait between retries")
	fs.DurationVar(&ff.timeout, "timeout", 15*time.Second, "per-request timeout")
	fs.StringVar(&ff.out, "out", "", "output directory (overrides config)")
	fs.StringVar(&ff.formats, "format", "json", "output formats, comma separated (json,csv)")
	fs.StringVar(&ff.mode, "mode", "sync", "execution mode: sync, async or queue")
	fs.BoolVar(&ff.noProgress, "no-progress", false, "hide the progress bar")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: taskflow fetch [flags] FILE")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, errUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, nil, errUsage
	}
	return ff, fs, nil
}

// apply copies the flags the user set onto cfg, so unset flags leave the
// config file and environment in charge.
func (ff *fetchFlags) apply(fs *flag.FlagSet, cfg *config.Config) error {
	var err error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "parallel":
			cfg.Task.Parallel = ff.parallel
		case "cache":
			cfg.Task.Cache = ff.cacheMode
		case "retries":
			cfg.Task.MaxRetry = ff.retries
		case "wait":
			cfg.Task.RetryWait = ff.wait
		case "out":
			cfg.Output.Dir = ff.out
		case "format":
			cfg.Output.Formats = strings.Split(ff.formats, ",")
		case "mode":
			switch ff.mode {
			case "sync":
				cfg.Task.RunAsync, cfg.Task.AsyncQueue = false, false
			case "async":
				cfg.Task.RunAsync, cfg.Task.AsyncQueue = true, false
			case "queue":
				cfg.Task.RunAsync, cfg.Task.AsyncQueue = false, true
			default:
				err = platformerrors.Newf(platformerrors.CodeInvalidInput, "unknown mode %q", ff.mode)
			}
		}
	})
	if err != nil {
		return err
	}
	if cfg.Output.Name == "" {
		cfg.Output.Name = fetchTaskName
	}
	return cfg.Validate()
}

func runFetch(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	ff, fs, err := parseFetchFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ff.configPath)
	if err != nil {
		return err
	}
	if err := ff.apply(fs, cfg); err != nil {
		return err
	}

	urls, err := readURLs(fs.Arg(0))
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		colorPrintLn(Yellow, "no URLs to fetch")
		return nil
	}

	logger := slog.Default()
	rt, err := task.RuntimeFromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}
	opts, err := task.FromConfig(cfg)
	if err != nil {
		return err
	}
	opts = append(opts, task.WithRuntime(rt), task.WithLogger(logger))

	if !ff.noProgress {
		bar := newProgressBar(len(urls), "fetching")
		defer func() { _ = bar.Finish() }()
		opts = append(opts, task.WithProgress(func(done, total int) {
			_ = bar.Set(done)
		}))
	}

	o, err := newFetcher(ff.timeout, opts...)
	if err != nil {
		return err
	}
	defer o.Close(context.WithoutCancel(ctx))

	start := time.Now()
	pages, err := fetchAll(ctx, o, urls)
	if err != nil {
		return err
	}
	renderPages(stdout, urls, pages, time.Since(start))
	if cfg.Output.Enabled {
		fmt.Fprintf(stdout, "results written to %s\n", cfg.Output.Dir)
	}
	return nil
}

// newFetcher builds the page-fetching orchestrator. Blocked responses are
// never retried and only network errors are.
func newFetcher(timeout time.Duration, opts ...task.Option) (*task.Orchestrator[*session, string, Page], error) {
	base := []task.Option{
		task.WithMustRaise(retry.As[*BlockedError]()),
		task.WithRetryable(retry.Classified()),
	}
	return task.New(fetchTaskName, sessionFactory(timeout), fetchPage, append(base, opts...)...)
}

// fetchAll runs the orchestrator in whichever mode it was configured for.
func fetchAll(ctx context.Context, o *task.Orchestrator[*session, string, Page], urls []string) ([]Page, error) {
	switch o.Mode() {
	case task.ModeAsync:
		return o.Go(ctx, urls).GetWithContext(ctx)
	case task.ModeQueue:
		q, err := o.Queue(ctx)
		if err != nil {
			return nil, err
		}
		for chunk := range chunks(urls, queueChunk) {
			if err := q.Put(chunk); err != nil {
				return nil, err
			}
		}
		return q.Get(ctx)
	default:
		return o.RunBatch(ctx, urls)
	}
}

func chunks[T any](items []T, size int) func(yield func([]T) bool) {
	return func(yield func([]T) bool) {
		for start := 0; start < len(items); start += size {
			if !yield(items[start:min(start+size, len(items))]) {
				return
			}
		}
	}
}

// readURLs returns the distinct non-empty lines of path, skipping # comments.
func readURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, platformerrors.Wrapf(err, platformerrors.CodeInvalidInput, "open %s", path)
	}
	defer f.Close()

	var urls []string
	seen := make(map[string]struct{})
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, platformerrors.Wrapf(err, platformerrors.CodeInvalidInput, "read %s", path)
	}
	return urls, nil
}
