package vfs

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/manifest"
)

// MountError reports a manifest entry that could not be materialized
type MountError struct {
	Path string // manifest path, or the absolute path for collisions and writes
	Op   string // "normalize", "decode", "collision", "mkdir", "write"
	Err  error
}

func (e *MountError) Error() string {
	return fmt.Sprintf("mount %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *MountError) Unwrap() error { return e.Err }

// MountReport summarizes a successful mount
type MountReport struct {
	Files    int           `json:"files"`
	Bytes    int64         `json:"bytes"`
	Digest   string        `json:"digest"`
	Duration time.Duration `json:"duration_ns"`
}

// Provisioner materializes manifests under a fixed project root
type Provisioner struct {
	fs     *FS
	root   string
	logger *logging.Logger
}

// NewProvisioner creates a provisioner writing into fs under root
func NewProvisioner(fs *FS, root string, logger *logging.Logger) *Provisioner {
	return &Provisioner{
		fs:     fs,
		root:   path.Clean("/" + root),
		logger: logging.OrNop(logger).Named("provisioner"),
	}
}

// Root returns the project root
func (p *Provisioner) Root() string {
	return p.root
}

// Mount writes every manifest entry, overwriting previous contents. All
// entries are decoded before the first write; the first write failure
// aborts the rest.
func (p *Provisioner) Mount(ctx context.Context, m manifest.Manifest) (*MountReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	files, err := manifest.Resolve(p.root, m)
	if err != nil {
		mountErr := asMountError(err)
		p.logger.Warn("Manifest rejected", zap.String("path", mountErr.Path), zap.String("op", mountErr.Op), zap.Error(mountErr.Err))
		return nil, mountErr
	}

	var total int64
	for _, f := range files {
		if err := p.fs.MkdirAll(path.Dir(f.Path)); err != nil {
			p.logger.Error("Failed to create directory", zap.String("path", f.Path), zap.Error(err))
			return nil, &MountError{Path: f.Path, Op: "mkdir", Err: err}
		}
		if err := p.fs.WriteFile(f.Path, f.Data); err != nil {
			p.logger.Error("Failed to write file", zap.String("path", f.Path), zap.Error(err))
			return nil, &MountError{Path: f.Path, Op: "write", Err: err}
		}
		total += int64(len(f.Data))
	}

	report := &MountReport{
		Files:    len(files),
		Bytes:    total,
		Digest:   p.fs.Digest(),
		Duration: time.Since(start),
	}
	p.logger.Debug("Project files mounted",
		zap.Int("files", report.Files),
		zap.Int64("bytes", report.Bytes),
		zap.String("digest", report.Digest),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func asMountError(err error) *MountError {
	var entryErr *manifest.EntryError
	if errors.As(err, &entryErr) {
		return &MountError{Path: entryErr.Path, Op: entryErr.Op, Err: entryErr.Err}
	}
	var collision *manifest.CollisionError
	if errors.As(err, &collision) {
		return &MountError{Path: collision.Path, Op: "collision", Err: collision}
	}
	return &MountError{Op: "resolve", Err: err}
}
