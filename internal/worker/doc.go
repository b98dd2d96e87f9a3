/*
Package worker implements the sandbox lifecycle: initialize an engine,
re-mount the project manifest before every run, run a script, and extract
the components it rendered.

# Lifecycle

Initialize runs five steps in order: engine, env, workdir, provision and
entrypoint. The first failure is returned as an *InitError naming the step;
the half-built engine is discarded and Initialize may be retried.

RunScript fails fast with ErrNotInitialized before touching the manifest
source or the filesystem. Otherwise it fetches the manifest, mounts it,
runs the script and extracts components. Failures surface as *MountError,
*RunError or *ExtractError, and never replace the last good components.

A Worker is not meant to be shared between goroutines; package bridge owns
one per goroutine and serializes requests.
*/
package worker
