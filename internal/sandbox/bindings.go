package sandbox

import (
	"github.com/dop251/goja"
)

// setupGlobals installs host bindings and blocks what scripts must not reach
func (r *Runtime) setupGlobals() error {
	// Remove dangerous globals
	for _, name := range []string{"process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	// Timers are no-ops; scripts run to completion synchronously
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	for _, name := range []string{"setTimeout", "setInterval", "clearTimeout", "clearInterval"} {
		if err := r.vm.Set(name, noop); err != nil {
			return err
		}
	}

	if r.config.EnableConsole {
		console := r.vm.NewObject()
		for _, level := range []string{"log", "warn", "error", "info", "debug"} {
			if err := console.Set(level, r.makeConsoleFunc(level)); err != nil {
				return err
			}
		}
		if err := r.vm.Set("console", console); err != nil {
			return err
		}
	}

	bindings := map[string]*goja.Object{
		"fs":     r.fsObject(),
		"os":     r.osObject(),
		"env":    r.envObject(),
		"ui":     r.uiObject(),
		"__host": r.hostObject(),
	}
	for name, obj := range bindings {
		if err := r.vm.Set(name, obj); err != nil {
			return err
		}
	}
	return r.vm.Set("require", r.modules.requireFunc(""))
}

func (r *Runtime) fsObject() *goja.Object {
	obj := r.vm.NewObject()
	_ = obj.Set("readFile", func(p string) (string, error) {
		data, err := r.fs.ReadFile(p)
		if err != nil {
			return "", err
		}
		return string(data), nil
	})
	_ = obj.Set("readBytes", func(p string) (goja.Value, error) {
		data, err := r.fs.ReadFile(p)
		if err != nil {
			return nil, err
		}
		return r.vm.ToValue(r.vm.NewArrayBuffer(data)), nil
	})
	_ = obj.Set("writeFile", func(p, content string) error {
		return r.fs.WriteFile(p, []byte(content))
	})
	_ = obj.Set("exists", func(p string) bool {
		return r.fs.Exists(p)
	})
	_ = obj.Set("listdir", func(p string) ([]string, error) {
		entries, err := r.fs.ReadDir(p)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name
		}
		return names, nil
	})
	_ = obj.Set("makedirs", func(p string) error {
		return r.fs.MkdirAll(p)
	})
	return obj
}

func (r *Runtime) osObject() *goja.Object {
	obj := r.vm.NewObject()
	_ = obj.Set("getcwd", func() string {
		return r.fs.Getwd()
	})
	_ = obj.Set("chdir", func(p string) error {
		return r.fs.Chdir(p)
	})
	return obj
}

func (r *Runtime) envObject() *goja.Object {
	obj := r.vm.NewObject()
	_ = obj.Set("get", func(name string) goja.Value {
		if v, ok := r.env[name]; ok {
			return v
		}
		return goja.Undefined()
	})
	return obj
}

func (r *Runtime) uiObject() *goja.Object {
	obj := r.vm.NewObject()
	_ = obj.Set("render", func(id string, descriptor goja.Value) {
		r.session.Render(id, descriptor)
	})
	_ = obj.Set("remove", func(id string) bool {
		return r.session.Remove(id)
	})
	_ = obj.Set("clear", func() {
		r.session.Clear()
	})
	_ = obj.Set("components", func() *goja.Object {
		return r.session.toObject(r.vm)
	})
	return obj
}

// hostObject exposes entrypoint-only helpers
func (r *Runtime) hostObject() *goja.Object {
	obj := r.vm.NewObject()
	_ = obj.Set("exec", func(call goja.FunctionCall) goja.Value {
		if err := r.modules.exec(call.Argument(0).String()); err != nil {
			r.modules.throw(err)
		}
		return goja.Undefined()
	})
	return obj
}
