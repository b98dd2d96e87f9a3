package worker

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/vfs"
)

// ErrNotInitialized is returned by every operation that needs a live engine
// before Initialize has succeeded
var ErrNotInitialized = errors.New("sandbox not initialized")

// Initialize steps, in execution order
const (
	StepEngine     = "engine"
	StepEnv        = "env"
	StepWorkdir    = "workdir"
	StepProvision  = "provision"
	StepEntrypoint = "entrypoint"
)

// DefaultRunFailure is reported when a script fails without a message
const DefaultRunFailure = "execution failed"

// InitError names the initialize step that failed
type InitError struct {
	Step string
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initialize %s: %v", e.Step, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// MountError is a manifest fetch or materialization failure
type MountError = vfs.MountError

// RunError is a script failure. Err is set when the engine itself faulted.
type RunError struct {
	Path    string
	Message string
	Err     error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %q: %s", e.Path, e.Message)
}

func (e *RunError) Unwrap() error { return e.Err }

// ExtractError is a failure to read component state after a successful run
type ExtractError struct {
	Err error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract components: %v", e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }
