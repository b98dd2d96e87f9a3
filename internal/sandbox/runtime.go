package sandbox

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/vfs"
)

// Runtime wraps a goja VM bound to one sandbox filesystem and one
// component session
type Runtime struct {
	vm      *goja.Runtime
	config  Config
	fs      *vfs.FS
	session *Session
	modules *modules
	logger  *logging.Logger
	mu      sync.Mutex
	closed  bool

	env map[string]goja.Value

	// Console output
	console   []LogEntry
	consoleMu sync.Mutex
}

// New creates a sandboxed runtime. A nil fs or session gets a fresh one.
func New(fs *vfs.FS, session *Session, config Config, logger *logging.Logger) (*Runtime, error) {
	if fs == nil {
		fs = vfs.New()
	}
	if session == nil {
		session = NewSession()
	}

	vm := goja.New()
	if config.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(config.MaxCallStackSize)
	}

	r := &Runtime{
		vm:      vm,
		config:  config,
		fs:      fs,
		session: session,
		modules: newModules(vm, fs),
		logger:  logging.OrNop(logger).Named("sandbox"),
		env:     make(map[string]goja.Value),
		console: []LogEntry{},
	}

	if err := r.setupGlobals(); err != nil {
		return nil, err
	}
	return r, nil
}

// FS returns the sandbox filesystem
func (r *Runtime) FS() *vfs.FS {
	return r.fs
}

// Session returns the component registry
func (r *Runtime) Session() *Session {
	return r.session
}

// SetEnv exposes value as a global and through env.get
func (r *Runtime) SetEnv(name string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	v := r.vm.ToValue(value)
	r.env[name] = v
	return r.vm.Set(name, v)
}

// Load requires module at top level. Built-in names such as
// EntrypointModule resolve without touching the filesystem.
func (r *Runtime) Load(ctx context.Context, module string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	_, err := r.guard(ctx, func() (goja.Value, error) {
		return r.modules.require(module, r.fs.Getwd())
	})
	if err != nil {
		return err
	}
	r.logger.Debug("Module loaded", zap.String("module", module))
	return nil
}

// RunScript asks the entrypoint service to run path. Script faults come
// back in the Outcome; the error is reserved for engine faults such as an
// interrupt or a missing service.
func (r *Runtime) RunScript(ctx context.Context, path string) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Outcome{}, ErrClosed
	}

	run, err := r.serviceMethod("runScript")
	if err != nil {
		return Outcome{}, err
	}

	r.consoleMu.Lock()
	r.console = []LogEntry{}
	r.consoleMu.Unlock()
	r.modules.reset()

	start := time.Now()
	val, err := r.guard(ctx, func() (goja.Value, error) {
		return run(goja.Undefined(), r.vm.ToValue(path))
	})
	if err != nil {
		r.logger.Warn("Script run aborted", zap.String("path", path), zap.Error(err))
		return Outcome{}, err
	}

	outcome := toOutcome(r.vm, val)
	r.logger.Debug("Script run finished",
		zap.String("path", path),
		zap.Bool("success", outcome.Success),
		zap.Duration("duration", time.Since(start)),
	)
	return outcome, nil
}

// Evaluate runs expr and returns its string form. Undefined and null are
// reported as ErrNoValue.
func (r *Runtime) Evaluate(ctx context.Context, expr string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrClosed
	}

	val, err := r.guard(ctx, func() (goja.Value, error) {
		return r.vm.RunString(expr)
	})
	if err != nil {
		return "", err
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return "", ErrNoValue
	}
	return val.String(), nil
}

// Console returns console output captured since the last script run
func (r *Runtime) Console() []LogEntry {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	return append([]LogEntry{}, r.console...)
}

// Close releases resources
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.vm = nil
	r.modules = nil
	r.console = nil
	return nil
}

// guard runs fn with ctx cancellation and the configured timeout wired to
// vm.Interrupt. Caller holds mu.
func (r *Runtime) guard(ctx context.Context, fn func() (goja.Value, error)) (goja.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var timeout <-chan time.Time
	if r.config.Timeout > 0 {
		timer := time.NewTimer(r.config.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-timeout:
			r.vm.Interrupt(ErrTimeout)
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-stop:
		}
	}()

	val, err := fn()

	close(stop)
	<-done
	r.vm.ClearInterrupt()

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return nil, cause
		}
	}
	return val, err
}

func (r *Runtime) serviceMethod(name string) (goja.Callable, error) {
	service := r.vm.Get("__sandbox")
	if service == nil || goja.IsUndefined(service) || goja.IsNull(service) {
		return nil, ErrNoService
	}
	fn, ok := goja.AssertFunction(service.ToObject(r.vm).Get(name))
	if !ok {
		return nil, ErrNoService
	}
	return fn, nil
}

func toOutcome(vm *goja.Runtime, val goja.Value) Outcome {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return Outcome{}
	}
	obj := val.ToObject(vm)

	outcome := Outcome{Success: obj.Get("success").ToBoolean()}
	if msg := obj.Get("error"); msg != nil && !goja.IsUndefined(msg) && !goja.IsNull(msg) {
		outcome.Error = msg.String()
	}
	return outcome
}

// makeConsoleFunc creates a console function
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		msg := strings.Join(parts, " ")

		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{
			Level:   level,
			Message: msg,
			Time:    time.Now(),
		})
		r.consoleMu.Unlock()

		r.logger.Debug("Script console", zap.String("level", level), zap.String("message", msg))
		return goja.Undefined()
	}
}
