package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// DefaultDir is where NewLocalFileSink writes when no directory is given.
const DefaultDir = "output"

// FileOption configures a FileSink.
type FileOption func(*FileSink)

// WithFormats selects the encodings to write. Defaults to JSON.
func WithFormats(formats ...Format) FileOption {
	return func(s *FileSink) {
		if len(formats) > 0 {
			s.formats = formats
		}
	}
}

// WithFilename writes to base instead of the task name. The format's
// extension is appended when missing.
func WithFilename(base string) FileOption {
	return func(s *FileSink) { s.filename = base }
}

// WithLogger sets the logger that reports written files.
func WithLogger(l *slog.Logger) FileOption {
	return func(s *FileSink) {
		if l != nil {
			s.logger = l
		}
	}
}

// FileSink writes results as files on a billy filesystem.
type FileSink struct {
	fs       billy.Filesystem
	formats  []Format
	filename string
	logger   *slog.Logger
}

// NewFileSink returns a sink writing into the root of fsys.
func NewFileSink(fsys billy.Filesystem, opts ...FileOption) *FileSink {
	s := &FileSink{
		fs:      fsys,
		formats: []Format{JSON},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewLocalFileSink returns a sink writing into dir on the local disk.
func NewLocalFileSink(dir string, opts ...FileOption) *FileSink {
	if dir == "" {
		dir = DefaultDir
	}
	return NewFileSink(osfs.New(dir), opts...)
}

// Formats returns the configured encodings.
func (s *FileSink) Formats() []Format { return s.formats }

// Write encodes result once per format. The input is not written.
func (s *FileSink) Write(ctx context.Context, name string, _ any, result any) ([]string, error) {
	base := s.filename
	if base == "" {
		base = name
	}
	if base == "" {
		return nil, fmt.Errorf("output: no filename for result")
	}

	var written []string
	for _, f := range s.formats {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		data, err := encode(f, result)
		if err != nil {
			return written, fmt.Errorf("encode %s output: %w", f, err)
		}

		path := filename(base, f)
		if err := util.WriteFile(s.fs, path, data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, s.fs.Join(s.fs.Root(), path))
	}

	LogWritten(s.logger, written)
	return written, nil
}

func encode(f Format, result any) ([]byte, error) {
	switch f {
	case JSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case CSV:
		return encodeCSV(result)
	default:
		return nil, fmt.Errorf("unknown format %q", f)
	}
}
