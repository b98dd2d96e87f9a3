package sandbox

import (
	_ "embed"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/vfs"
)

//go:embed js/entrypoint.js
var entrypointSource string

// LibDir is where installed packages live
const LibDir = "/lib"

const (
	moduleHeader = "(function (exports, require, module, __filename, __dirname) {"
	moduleFooter = "\n})"
)

// modules implements CommonJS loading over the sandbox filesystem
type modules struct {
	vm       *goja.Runtime
	fs       *vfs.FS
	builtins map[string]string
	cache    map[string]*goja.Object
}

func newModules(vm *goja.Runtime, fs *vfs.FS) *modules {
	return &modules{
		vm: vm,
		fs: fs,
		builtins: map[string]string{
			EntrypointModule: entrypointSource,
		},
		cache: make(map[string]*goja.Object),
	}
}

// reset forgets loaded modules so the next require re-reads the filesystem
func (m *modules) reset() {
	m.cache = make(map[string]*goja.Object)
}

// requireFunc returns a require bound to dir. An empty dir means the
// filesystem's working directory at call time.
func (m *modules) requireFunc(dir string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		from := dir
		if from == "" {
			from = m.fs.Getwd()
		}
		exports, err := m.require(name, from)
		if err != nil {
			m.throw(err)
		}
		return exports
	}
}

// require resolves name from dir and returns the module's exports
func (m *modules) require(name, dir string) (goja.Value, error) {
	if name == "" {
		return nil, fmt.Errorf("require: empty module name")
	}
	if src, ok := m.builtins[name]; ok {
		return m.load(name, "/", src, true)
	}

	file, ok := m.resolve(name, dir)
	if !ok {
		return nil, fmt.Errorf("cannot find module %q", name)
	}
	if mod, ok := m.cache[file]; ok {
		return mod.Get("exports"), nil
	}
	data, err := m.fs.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return m.load(file, path.Dir(file), string(data), true)
}

// exec runs a file as a fresh top-level module, bypassing the cache
func (m *modules) exec(file string) error {
	file = m.fs.Abs(file)
	data, err := m.fs.ReadFile(file)
	if err != nil {
		return err
	}
	_, err = m.load(file, path.Dir(file), string(data), false)
	return err
}

func (m *modules) resolve(name, dir string) (string, bool) {
	var candidates []string
	if strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../") || path.IsAbs(name) {
		p := name
		if !path.IsAbs(p) {
			p = path.Join(dir, p)
		}
		p = path.Clean(p)
		candidates = []string{p, p + ".js", p + ".json", p + "/index.js"}
	} else {
		p := path.Join(LibDir, name)
		candidates = []string{p + ".js", p + "/index.js", p}
	}

	for _, c := range candidates {
		if info, err := m.fs.Stat(c); err == nil && !info.IsDir {
			return c, true
		}
	}
	return "", false
}

func (m *modules) load(id, dir, src string, cache bool) (goja.Value, error) {
	module := m.vm.NewObject()
	exports := m.vm.NewObject()
	_ = module.Set("id", id)
	_ = module.Set("filename", id)
	_ = module.Set("exports", exports)
	if cache {
		m.cache[id] = module
	}

	if strings.HasSuffix(id, ".json") {
		parse, _ := goja.AssertFunction(m.vm.Get("JSON").ToObject(m.vm).Get("parse"))
		v, err := parse(goja.Undefined(), m.vm.ToValue(src))
		if err != nil {
			delete(m.cache, id)
			return nil, err
		}
		_ = module.Set("exports", v)
		return v, nil
	}

	prg, err := goja.Compile(id, moduleHeader+src+moduleFooter, false)
	if err != nil {
		delete(m.cache, id)
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	wrapper, err := m.vm.RunProgram(prg)
	if err != nil {
		delete(m.cache, id)
		return nil, err
	}
	fn, ok := goja.AssertFunction(wrapper)
	if !ok {
		delete(m.cache, id)
		return nil, fmt.Errorf("%s: module wrapper is not callable", id)
	}

	_, err = fn(exports, exports, m.vm.ToValue(m.requireFunc(dir)), module, m.vm.ToValue(id), m.vm.ToValue(dir))
	if err != nil {
		delete(m.cache, id)
		return nil, err
	}
	_ = module.Set("loaded", true)
	return module.Get("exports"), nil
}

// throw raises err inside the engine, keeping script exceptions intact
func (m *modules) throw(err error) {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		// nested calls hand interrupts back as errors; re-arm so the
		// interrupt unwinds past any catch block in the caller
		m.vm.Interrupt(interrupted.Value())
		panic(m.vm.ToValue(interrupted.Error()))
	}
	var exc *goja.Exception
	if errors.As(err, &exc) {
		panic(exc.Value())
	}
	panic(m.vm.NewGoError(err))
}
