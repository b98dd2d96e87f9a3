package worker

import (
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/manifest"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/provision"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/vfs"
)

// extractExpr serializes the registry inside the engine
const extractExpr = "JSON.stringify(__sandbox.renderedComponents())"

// numberAPI keeps numbers as json.Number so component values survive
// exactly
var numberAPI = sonic.Config{UseNumber: true}.Froze()

// Config defines worker behavior
type Config struct {
	ProjectRoot string   // Mounted manifests land here; also the working directory
	EnvFlag     string   // Global set to true before anything else runs
	Entrypoint  string   // Module that registers the __sandbox service
	Packages    []string // Installed under /lib during initialize
}

// DefaultConfig returns the standard layout
func DefaultConfig() Config {
	return Config{
		ProjectRoot: "/project",
		EnvFlag:     "__SANDBOX_BROWSER_MODE",
		Entrypoint:  sandbox.EntrypointModule,
	}
}

// Worker owns one sandbox: its engine, filesystem and component state.
// Run it from a single goroutine; see package bridge.
type Worker struct {
	config    Config
	source    manifest.Source
	factory   EngineFactory
	installer provision.Installer
	logger    *logging.Logger
	metrics   *monitoring.Metrics

	mu               sync.Mutex
	engine           Engine
	provisioner      *vfs.Provisioner
	initialized      bool
	activeScriptPath string
	lastComponents   ComponentTree
}

// Option configures a Worker
type Option func(*Worker)

// WithEngineFactory replaces the default goja engine
func WithEngineFactory(f EngineFactory) Option {
	return func(w *Worker) { w.factory = f }
}

// WithInstaller sets the package installer
func WithInstaller(i provision.Installer) Option {
	return func(w *Worker) { w.installer = i }
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// WithMetrics records operation metrics
func WithMetrics(m *monitoring.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// New creates an uninitialized worker reading manifests from source
func New(config Config, source manifest.Source, opts ...Option) *Worker {
	def := DefaultConfig()
	if config.ProjectRoot == "" {
		config.ProjectRoot = def.ProjectRoot
	}
	if config.EnvFlag == "" {
		config.EnvFlag = def.EnvFlag
	}
	if config.Entrypoint == "" {
		config.Entrypoint = def.Entrypoint
	}
	config.ProjectRoot = path.Clean("/" + config.ProjectRoot)

	w := &Worker{
		config:    config,
		source:    source,
		installer: provision.Nop{},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logging.OrNop(w.logger).Named("worker")
	if w.factory == nil {
		w.factory = SandboxFactory(sandbox.DefaultConfig(), w.logger)
	}
	return w
}

type initStep struct {
	name string
	run  func(ctx context.Context) error
}

// Initialize builds the engine and prepares the sandbox. Steps run in order
// and stop at the first failure, which discards the engine and leaves the
// worker uninitialized. Calling it again after success does nothing.
func (w *Worker) Initialize(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.initialized {
		return nil
	}
	timer := monitoring.NewTimer(w.metrics, "initialize")

	var eng Engine
	steps := []initStep{
		{StepEngine, func(ctx context.Context) error {
			e, err := w.factory(ctx)
			if err != nil {
				return err
			}
			eng = e
			return nil
		}},
		{StepEnv, func(ctx context.Context) error {
			return eng.SetEnv(w.config.EnvFlag, true)
		}},
		{StepWorkdir, func(ctx context.Context) error {
			if err := eng.FS().MkdirAll(w.config.ProjectRoot); err != nil {
				return err
			}
			return eng.FS().Chdir(w.config.ProjectRoot)
		}},
		{StepProvision, func(ctx context.Context) error {
			if len(w.config.Packages) == 0 {
				return nil
			}
			return w.installer.Install(ctx, eng.FS(), w.config.Packages)
		}},
		{StepEntrypoint, func(ctx context.Context) error {
			return eng.Load(ctx, w.config.Entrypoint)
		}},
	}

	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			if eng != nil {
				_ = eng.Close()
			}
			timer.Stop("init_error")
			w.logger.Error("Initialization failed", zap.String("step", step.name), zap.Error(err))
			return &InitError{Step: step.name, Err: err}
		}
	}

	w.engine = eng
	w.provisioner = vfs.NewProvisioner(eng.FS(), w.config.ProjectRoot, w.logger)
	w.initialized = true

	duration := timer.Stop(monitoring.StatusSuccess)
	w.logger.Info("Sandbox initialized",
		zap.String("root", w.config.ProjectRoot),
		zap.Strings("packages", w.config.Packages),
		zap.Duration("duration", duration),
	)
	return nil
}

// RunScript re-mounts the current manifest, resets the working directory
// to the project root, runs path, and returns the rendered components. A failed run keeps the previous components.
func (w *Worker) RunScript(ctx context.Context, scriptPath string) (ComponentTree, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.initialized {
		return nil, ErrNotInitialized
	}
	timer := monitoring.NewTimer(w.metrics, "run")

	if _, err := w.mountLocked(ctx); err != nil {
		timer.Stop("mount_error")
		return nil, err
	}
	// scripts may chdir; every run starts at the project root
	if err := w.engine.FS().Chdir(w.config.ProjectRoot); err != nil {
		timer.Stop("mount_error")
		return nil, &MountError{Path: w.config.ProjectRoot, Op: "chdir", Err: err}
	}

	w.activeScriptPath = scriptPath

	outcome, err := w.engine.RunScript(ctx, scriptPath)
	if err != nil {
		timer.Stop("run_error")
		w.logger.Warn("Script faulted", zap.String("path", scriptPath), zap.Error(err))
		return nil, &RunError{Path: scriptPath, Message: err.Error(), Err: err}
	}
	if !outcome.Success {
		msg := outcome.Error
		if msg == "" {
			msg = DefaultRunFailure
		}
		timer.Stop("run_error")
		w.logger.Info("Script failed", zap.String("path", scriptPath), zap.String("error", msg))
		return nil, &RunError{Path: scriptPath, Message: msg}
	}

	components, err := w.extractLocked(ctx)
	if err != nil {
		timer.Stop("extract_error")
		return nil, err
	}
	w.lastComponents = components

	duration := timer.Stop(monitoring.StatusSuccess)
	w.logger.Debug("Script run complete",
		zap.String("path", scriptPath),
		zap.Int("components", len(components)),
		zap.Duration("duration", duration),
	)
	return components.Clone(), nil
}

// MountFiles fetches and mounts the current manifest without running
// anything
func (w *Worker) MountFiles(ctx context.Context) (*vfs.MountReport, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.initialized {
		return nil, ErrNotInitialized
	}
	return w.mountLocked(ctx)
}

// Mount writes m into the sandbox, bypassing the configured source
func (w *Worker) Mount(ctx context.Context, m manifest.Manifest) (*vfs.MountReport, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.initialized {
		return nil, ErrNotInitialized
	}
	return w.mountManifestLocked(ctx, m)
}

// ExtractComponents reads the component registry from the engine
func (w *Worker) ExtractComponents(ctx context.Context) (ComponentTree, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	components, err := w.extractLocked(ctx)
	if err != nil {
		return nil, err
	}
	return components.Clone(), nil
}

// ReadFile reads a file from the sandbox filesystem
func (w *Worker) ReadFile(p string) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.initialized {
		return nil, ErrNotInitialized
	}
	return w.engine.FS().ReadFile(p)
}

// State returns a copy of the worker state
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	return State{
		Initialized:      w.initialized,
		ActiveScriptPath: w.activeScriptPath,
		LastComponents:   w.lastComponents.Clone(),
	}
}

// Close discards the engine. The worker can be initialized again.
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.engine == nil {
		return nil
	}
	err := w.engine.Close()
	w.engine = nil
	w.provisioner = nil
	w.initialized = false
	return err
}

func (w *Worker) mountLocked(ctx context.Context) (*vfs.MountReport, error) {
	if w.source == nil {
		return nil, &MountError{Op: "fetch", Err: fmt.Errorf("no manifest source configured")}
	}
	m, err := w.source.Fetch(ctx)
	if err != nil {
		w.logger.Error("Manifest fetch failed", zap.Error(err))
		return nil, &MountError{Op: "fetch", Err: err}
	}
	return w.mountManifestLocked(ctx, m)
}

func (w *Worker) mountManifestLocked(ctx context.Context, m manifest.Manifest) (*vfs.MountReport, error) {
	timer := monitoring.NewTimer(w.metrics, "mount")
	report, err := w.provisioner.Mount(ctx, m)
	if err != nil {
		timer.Stop(monitoring.StatusError)
		return nil, err
	}
	timer.Stop(monitoring.StatusSuccess)
	w.metrics.RecordMount(report.Files, report.Bytes)
	return report, nil
}

func (w *Worker) extractLocked(ctx context.Context) (ComponentTree, error) {
	if w.engine == nil {
		return nil, &ExtractError{Err: ErrNotInitialized}
	}

	raw, err := w.engine.Evaluate(ctx, extractExpr)
	if err != nil {
		w.logger.Warn("Component extraction failed", zap.Error(err))
		return nil, &ExtractError{Err: err}
	}

	var tree ComponentTree
	if err := numberAPI.UnmarshalFromString(raw, &tree); err != nil {
		w.logger.Warn("Component state is not valid JSON", zap.Error(err))
		return nil, &ExtractError{Err: fmt.Errorf("decode components: %w", err)}
	}
	if tree == nil {
		tree = ComponentTree{}
	}
	return tree, nil
}
