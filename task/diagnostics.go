package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
	platformerrors "github.com/jmgilman/go/errors"

	"github.com/utkarsh5026/taskflow/cache"
	"github.com/utkarsh5026/taskflow/resource"
	"github.com/utkarsh5026/taskflow/retry"
)

// DefaultDiagnosticsDir holds one directory per failure bundle.
const DefaultDiagnosticsDir = "error_logs"

const (
	errorLogFile  = "error.log"
	errorJSONFile = "error.json"
)

// Report describes a failed input.
type Report struct {
	Task  string
	Input any
	Err   error
	// Resource is the handle the last attempt ran with, if any. Resources
	// implementing resource.Inspector add their artifacts to the bundle.
	Resource any
}

// Diagnostics writes failure bundles to a billy filesystem. Each bundle is
// a directory "<UTC time>-<id>" holding error.log, error.json and any
// resource artifacts.
type Diagnostics struct {
	// mu serializes bundles; memfs is not safe for concurrent writers
	mu sync.Mutex

	fs     billy.Filesystem
	root   string
	logger *slog.Logger
	now    func() time.Time
}

// NewDiagnostics returns a writer placing bundles under root in fsys.
func NewDiagnostics(fsys billy.Filesystem, root string, logger *slog.Logger) *Diagnostics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Diagnostics{fs: fsys, root: root, logger: logger, now: time.Now}
}

// NewLocalDiagnostics returns a writer placing bundles in dir on the local
// disk.
func NewLocalDiagnostics(dir string, logger *slog.Logger) *Diagnostics {
	if dir == "" {
		dir = DefaultDiagnosticsDir
	}
	return NewDiagnostics(osfs.New(dir), "", logger)
}

// Write persists a bundle for rep and returns its directory.
func (d *Diagnostics) Write(ctx context.Context, rep Report) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.now().UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
	dir := d.fs.Join(d.root, id)
	if err := d.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create diagnostics dir: %w", err)
	}

	if err := util.WriteFile(d.fs, d.fs.Join(dir, errorLogFile), errorLog(rep), 0o644); err != nil {
		return dir, fmt.Errorf("write %s: %w", errorLogFile, err)
	}

	data, err := json.MarshalIndent(platformerrors.ToJSON(platformError(rep.Err)), "", "  ")
	if err != nil {
		return dir, fmt.Errorf("encode %s: %w", errorJSONFile, err)
	}
	if err := util.WriteFile(d.fs, d.fs.Join(dir, errorJSONFile), data, 0o644); err != nil {
		return dir, fmt.Errorf("write %s: %w", errorJSONFile, err)
	}

	if ins, ok := rep.Resource.(resource.Inspector); ok {
		d.writeArtifacts(ctx, dir, ins)
	}

	d.logger.Error("task failed, diagnostics saved",
		"task", rep.Task,
		"dir", dir,
		"error", rep.Err)
	return dir, nil
}

func (d *Diagnostics) writeArtifacts(ctx context.Context, dir string, ins resource.Inspector) {
	artifacts, err := ins.Inspect(ctx)
	if err != nil {
		d.logger.Warn("resource inspection failed", "dir", dir, "error", err)
		return
	}
	for name, data := range artifacts {
		name = path.Base(name)
		if name == errorLogFile || name == errorJSONFile || name == "." || name == "/" {
			continue
		}
		if err := util.WriteFile(d.fs, d.fs.Join(dir, name), data, 0o644); err != nil {
			d.logger.Warn("write artifact failed", "dir", dir, "artifact", name, "error", err)
		}
	}
}

func errorLog(rep Report) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "task: %s\n", rep.Task)
	fmt.Fprintf(&b, "error: %v\n", rep.Err)

	b.WriteString("\nchain:\n")
	for err := rep.Err; err != nil; err = errors.Unwrap(err) {
		fmt.Fprintf(&b, "  %T: %v\n", err, err)
	}

	b.WriteString("\ninput:\n")
	if in, err := cache.Canonical(rep.Input); err == nil {
		b.Write(in)
	} else {
		fmt.Fprintf(&b, "%#v", rep.Input)
	}
	b.WriteString("\n")

	b.WriteString("\nstack:\n")
	var pe *retry.PanicError
	if errors.As(rep.Err, &pe) {
		b.Write(pe.Stack)
	} else {
		b.Write(debug.Stack())
	}
	return []byte(b.String())
}

// platformError classifies err for error.json.
func platformError(err error) error {
	var ex *retry.ExhaustedError
	if errors.As(err, &ex) {
		return ex.Platform()
	}
	var mr *retry.MustRaiseError
	if errors.As(err, &mr) {
		return platformerrors.WrapWithContext(mr.Err, platformerrors.CodeExecutionFailed,
			"unrecoverable failure", map[string]interface{}{"attempt": mr.Attempt + 1})
	}
	var pe platformerrors.PlatformError
	if errors.As(err, &pe) {
		return pe
	}
	return platformerrors.Wrap(err, platformerrors.CodeExecutionFailed, "task failed")
}
