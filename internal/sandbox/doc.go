/*
Package sandbox is the embedded script engine: a goja VM bound to one
virtual filesystem and one component session.

# Host bindings

Scripts see a small set of globals:

  - fs: readFile, readBytes, writeFile, exists, listdir, makedirs
  - os: getcwd, chdir
  - env: get
  - ui: render, remove, clear, components
  - require: CommonJS over the sandbox filesystem; bare names resolve
    under /lib
  - console: captured, see Runtime.Console

process, module and exports are undefined at top level. Timers are no-ops.

# Entrypoint

EntrypointModule registers the __sandbox service with runScript(path) and
renderedComponents(). runScript reports script faults in its result and
never throws for them, so RunScript only returns an error for engine
faults: a timeout, a cancelled context, or a missing service.

# Usage Example

	rt, err := sandbox.New(fs, sandbox.NewSession(), sandbox.DefaultConfig(), logger)
	if err != nil {
		return err
	}
	if err := rt.Load(ctx, sandbox.EntrypointModule); err != nil {
		return err
	}
	outcome, err := rt.RunScript(ctx, "app.js")
*/
package sandbox
