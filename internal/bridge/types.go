package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/manifest"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/vfs"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/worker"
)

var (
	ErrClosed     = errors.New("bridge closed")
	ErrBadRequest = errors.New("bad request")
)

// Method names a bridge operation
type Method string

const (
	MethodInitialize Method = "initialize"
	MethodRun        Method = "run"
	MethodMount      Method = "mount"
	MethodState      Method = "state"
	MethodReadFile   Method = "read_file"
	MethodPing       Method = "ping"
)

// ErrorKind tags an error payload
type ErrorKind string

const (
	KindInit           ErrorKind = "init"
	KindMount          ErrorKind = "mount"
	KindNotInitialized ErrorKind = "not_initialized"
	KindRun            ErrorKind = "run"
	KindExtract        ErrorKind = "extract"
	KindBadRequest     ErrorKind = "bad_request"
	KindInternal       ErrorKind = "internal"
)

// Request is one message to the worker goroutine
type Request struct {
	ID       string            `json:"id,omitempty"`
	Method   Method            `json:"method"`
	Path     string            `json:"path,omitempty"`
	Manifest manifest.Manifest `json:"-"` // nil mount = fetch from the configured source
}

// Response answers exactly one Request
type Response struct {
	ID         string               `json:"id"`
	Success    bool                 `json:"success"`
	Components worker.ComponentTree `json:"components,omitempty"`
	Mount      *vfs.MountReport     `json:"mount,omitempty"`
	State      *worker.State        `json:"state,omitempty"`
	File       *FilePayload         `json:"file,omitempty"`
	Error      *ErrorPayload        `json:"error,omitempty"`
}

// MarshalJSON emits components whenever they are set, so a run that
// rendered nothing still answers with an empty object
func (r Response) MarshalJSON() ([]byte, error) {
	type plain Response
	out := struct {
		plain
		Components *worker.ComponentTree `json:"components,omitempty"`
	}{plain: plain(r)}
	if r.Components != nil {
		out.Components = &r.Components
	}
	return json.Marshal(out)
}

// FilePayload is a sandbox file in manifest form
type FilePayload struct {
	Path    string        `json:"path"`
	Kind    manifest.Kind `json:"kind"`
	Content string        `json:"content"`
}

// ErrorPayload is the wire form of a failure
type ErrorPayload struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Path    string    `json:"path,omitempty"`
	Step    string    `json:"step,omitempty"`
}

func (e *ErrorPayload) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewErrorPayload classifies err
func NewErrorPayload(err error) *ErrorPayload {
	var (
		initErr    *worker.InitError
		mountErr   *worker.MountError
		runErr     *worker.RunError
		extractErr *worker.ExtractError
	)

	switch {
	case errors.As(err, &initErr):
		return &ErrorPayload{Kind: KindInit, Message: err.Error(), Step: initErr.Step}
	case errors.As(err, &mountErr):
		return &ErrorPayload{Kind: KindMount, Message: err.Error(), Path: mountErr.Path}
	case errors.As(err, &runErr):
		return &ErrorPayload{Kind: KindRun, Message: runErr.Message, Path: runErr.Path}
	case errors.As(err, &extractErr):
		return &ErrorPayload{Kind: KindExtract, Message: err.Error()}
	case errors.Is(err, worker.ErrNotInitialized):
		return &ErrorPayload{Kind: KindNotInitialized, Message: err.Error()}
	case errors.Is(err, ErrBadRequest):
		return &ErrorPayload{Kind: KindBadRequest, Message: err.Error()}
	default:
		return &ErrorPayload{Kind: KindInternal, Message: err.Error()}
	}
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}
