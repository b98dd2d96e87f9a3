// Package provision installs script packages into a sandbox filesystem.
//
// Packages are single CommonJS files placed at /lib/<name>.js, where the
// sandbox require resolves bare module names.
package provision

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/infrastructure/httpclient"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/vfs"
)

// Installer places packages into fs
type Installer interface {
	Install(ctx context.Context, fs *vfs.FS, packages []string) error
}

// PackageError names the package that failed to install
type PackageError struct {
	Package string
	Err     error
}

func (e *PackageError) Error() string {
	return fmt.Sprintf("install package %q: %v", e.Package, e.Err)
}

func (e *PackageError) Unwrap() error { return e.Err }

// Nop installs nothing
type Nop struct{}

// Install does nothing
func (Nop) Install(context.Context, *vfs.FS, []string) error { return nil }

// HTTPInstaller downloads packages from an index URL
type HTTPInstaller struct {
	IndexURL string
	Gzip     bool // fetch <name>.js.gz and decompress
	Client   *httpclient.Client
	Logger   *logging.Logger
}

// NewHTTPInstaller creates an installer with the default client
func NewHTTPInstaller(indexURL string, gz bool, logger *logging.Logger) *HTTPInstaller {
	return &HTTPInstaller{
		IndexURL: strings.TrimRight(indexURL, "/"),
		Gzip:     gz,
		Client:   httpclient.NewDefault(),
		Logger:   logging.OrNop(logger).Named("provision"),
	}
}

// Install fetches every package in order and stops at the first failure
func (i *HTTPInstaller) Install(ctx context.Context, fs *vfs.FS, packages []string) error {
	client := i.Client
	if client == nil {
		client = httpclient.NewDefault()
	}
	logger := logging.OrNop(i.Logger)

	for _, name := range packages {
		if err := validName(name); err != nil {
			return &PackageError{Package: name, Err: err}
		}

		url := strings.TrimRight(i.IndexURL, "/") + "/" + name + ".js"
		if i.Gzip {
			url += ".gz"
		}

		data, err := client.Get(ctx, url)
		if err != nil {
			return &PackageError{Package: name, Err: err}
		}
		if i.Gzip {
			if data, err = gunzip(data); err != nil {
				return &PackageError{Package: name, Err: err}
			}
		}
		if err := writePackage(fs, name, data); err != nil {
			return &PackageError{Package: name, Err: err}
		}
		logger.Debug("Package installed", zap.String("package", name), zap.Int("bytes", len(data)))
	}
	return nil
}

// DirInstaller copies packages from a host directory
type DirInstaller struct {
	Dir    string
	Logger *logging.Logger
}

// Install copies <Dir>/<name>.js for every package
func (d *DirInstaller) Install(ctx context.Context, fs *vfs.FS, packages []string) error {
	logger := logging.OrNop(d.Logger)

	for _, name := range packages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := validName(name); err != nil {
			return &PackageError{Package: name, Err: err}
		}

		data, err := os.ReadFile(filepath.Join(d.Dir, filepath.FromSlash(name)+".js"))
		if err != nil {
			return &PackageError{Package: name, Err: err}
		}
		if err := writePackage(fs, name, data); err != nil {
			return &PackageError{Package: name, Err: err}
		}
		logger.Debug("Package copied", zap.String("package", name), zap.Int("bytes", len(data)))
	}
	return nil
}

// Path returns where a package lands in the sandbox
func Path(name string) string {
	return sandbox.LibDir + "/" + name + ".js"
}

func writePackage(fs *vfs.FS, name string, data []byte) error {
	p := Path(name)
	if err := fs.MkdirAll(p[:strings.LastIndex(p, "/")]); err != nil {
		return err
	}
	return fs.WriteFile(p, data)
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return out, nil
}

// validName allows scoped names like "ui/charts" but never escapes /lib
func validName(name string) error {
	if name == "" {
		return fmt.Errorf("empty package name")
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid package name")
		}
	}
	if strings.ContainsAny(name, `\`) {
		return fmt.Errorf("invalid package name")
	}
	return nil
}
