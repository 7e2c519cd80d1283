// Package output writes task results to their final destination.
//
// A Sink receives the task name, the input as the caller passed it and the
// result the caller gets back. FileSink encodes the result as JSON and/or CSV
// files on a billy filesystem:
//
//	sink := output.NewFileSink(osfs.New("output"), output.WithFormats(output.JSON, output.CSV))
//	paths, err := sink.Write(ctx, "scrape", urls, pages)
package output

import (
	"context"
	"log/slog"
)

// Sink persists the result of a task run. It returns the written locations.
type Sink interface {
	Write(ctx context.Context, name string, input, result any) ([]string, error)
}

// SinkFunc adapts a function to Sink. It writes nothing on its own, so the
// returned paths are always nil.
type SinkFunc func(ctx context.Context, input, result any) error

func (f SinkFunc) Write(ctx context.Context, name string, input, result any) ([]string, error) {
	return nil, f(ctx, input, result)
}

type discard struct{}

func (discard) Write(context.Context, string, any, any) ([]string, error) { return nil, nil }

// Discard is a Sink that drops every result.
var Discard Sink = discard{}

// LogWritten logs each written path the way the CLI reports them.
func LogWritten(logger *slog.Logger, paths []string) {
	for _, p := range paths {
		logger.Info("output written", "path", p)
	}
}
