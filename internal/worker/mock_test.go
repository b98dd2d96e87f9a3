package worker

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/sandbox"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/vfs"
)

// MockEngine is a mock implementation of Engine for testing
type MockEngine struct {
	mock.Mock
	fs *vfs.FS
}

func newMockEngine() *MockEngine {
	return &MockEngine{fs: vfs.New()}
}

// FS returns a real in-memory filesystem
func (m *MockEngine) FS() *vfs.FS {
	return m.fs
}

// SetEnv mocks the SetEnv method
func (m *MockEngine) SetEnv(name string, value any) error {
	return m.Called(name, value).Error(0)
}

// Load mocks the Load method
func (m *MockEngine) Load(ctx context.Context, module string) error {
	return m.Called(ctx, module).Error(0)
}

// RunScript mocks the RunScript method
func (m *MockEngine) RunScript(ctx context.Context, path string) (sandbox.Outcome, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(sandbox.Outcome), args.Error(1)
}

// Evaluate mocks the Evaluate method
func (m *MockEngine) Evaluate(ctx context.Context, expr string) (string, error) {
	args := m.Called(ctx, expr)
	return args.String(0), args.Error(1)
}

// Close mocks the Close method
func (m *MockEngine) Close() error {
	return m.Called().Error(0)
}

// withDefaults sets up a successful initialize
func (m *MockEngine) withDefaults() *MockEngine {
	m.On("SetEnv", "__SANDBOX_BROWSER_MODE", true).Return(nil).Maybe()
	m.On("Load", mock.Anything, sandbox.EntrypointModule).Return(nil).Maybe()
	m.On("Close").Return(nil).Maybe()
	return m
}

func factoryFor(engines ...Engine) (EngineFactory, *int) {
	calls := 0
	return func(ctx context.Context) (Engine, error) {
		e := engines[calls%len(engines)]
		calls++
		return e, nil
	}, &calls
}
