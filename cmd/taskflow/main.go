// Command taskflow fetches lists of URLs through the task orchestrator and
// manages its result cache.
//
// Usage:
//
//	taskflow fetch [flags] FILE
//	taskflow cache ls -fn NAME
//	taskflow cache clear [-fn NAME]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/utkarsh5026/taskflow/config"
	"github.com/utkarsh5026/taskflow/internal/logger"
)

const usage = `taskflow runs tasks with caching, retries and pooled resources.

Commands:
  fetch [flags] FILE        fetch every URL in FILE (one per line)
  cache ls -fn NAME         list cached keys of a task
  cache clear [-fn NAME]    remove cached results of a task, or all of them

Run "taskflow COMMAND -h" for the flags of a command.
`

// errUsage is returned for malformed command lines; the usage text has
// already been printed.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		os.Exit(2)
	case errors.Is(err, context.Canceled):
		colorPrintLn(Red, "interrupted")
		os.Exit(130)
	default:
		colorPrintf(Red, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}

	switch args[0] {
	case "fetch":
		return runFetch(ctx, args[1:], stdout, stderr)
	case "cache":
		return runCache(ctx, args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return errUsage
	}
}

// loadConfig reads the config file and installs the configured logger.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}
