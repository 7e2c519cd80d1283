package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/olekukonko/tablewriter"

	"github.com/utkarsh5026/taskflow/cache"
	"github.com/utkarsh5026/taskflow/task"
)

func runCache(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "usage: taskflow cache ls|clear [flags]")
		return errUsage
	}

	fs := flag.NewFlagSet("cache "+args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file")
	name := fs.String("fn", "", "task name")
	if err := fs.Parse(args[1:]); err != nil {
		return errUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	rt, err := task.RuntimeFromConfig(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}

	switch args[0] {
	case "ls":
		if *name == "" {
			fmt.Fprintln(stderr, "cache ls: -fn is required")
			return errUsage
		}
		return listCache(ctx, stdout, rt.Cache(), *name)
	case "clear":
		return clearCache(ctx, stdout, rt.Cache(), *name)
	default:
		fmt.Fprintf(stderr, "unknown cache command %q\n", args[0])
		return errUsage
	}
}

func listCache(ctx context.Context, w io.Writer, c *cache.Cache, name string) error {
	keys, err := c.Keys(ctx, name)
	if err != nil {
		return err
	}
	if keys.Len() == 0 {
		fmt.Fprintf(w, "no cached results for %s\n", name)
		return nil
	}

	sorted := make([]cache.Key, 0, keys.Len())
	for k := range keys {
		sorted = append(sorted, k)
	}
	slices.Sort(sorted)

	table := tablewriter.NewWriter(w)
	table.Header("#", "Key")
	for i, k := range sorted {
		_ = table.Append(fmt.Sprint(i+1), k.String())
	}
	_ = table.Render()
	_, _ = Bold.Fprintf(w, "%d cached results for %s\n", len(sorted), name)
	return nil
}

// clearCache clears one task's entries, or the whole cache when name is
// empty.
func clearCache(ctx context.Context, w io.Writer, c *cache.Cache, name string) error {
	if name == "" {
		if err := c.ClearAll(ctx); err != nil {
			return err
		}
		_, _ = Green.Fprintln(w, "cleared all cached results")
		return nil
	}
	if err := c.Clear(ctx, name); err != nil {
		return err
	}
	_, _ = Green.Fprintf(w, "cleared cached results for %s\n", name)
	return nil
}
