package worker

import (
	"context"

	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/vfs"
)

// Engine is the embedded script engine a worker drives
type Engine interface {
	FS() *vfs.FS
	SetEnv(name string, value any) error
	Load(ctx context.Context, module string) error
	RunScript(ctx context.Context, path string) (sandbox.Outcome, error)
	Evaluate(ctx context.Context, expr string) (string, error)
	Close() error
}

// EngineFactory builds a fresh engine for one initialize attempt
type EngineFactory func(ctx context.Context) (Engine, error)

// SandboxFactory builds goja runtimes, each with its own filesystem and
// component session
func SandboxFactory(config sandbox.Config, logger *logging.Logger) EngineFactory {
	return func(ctx context.Context) (Engine, error) {
		return sandbox.New(vfs.New(), sandbox.NewSession(), config, logger)
	}
}
