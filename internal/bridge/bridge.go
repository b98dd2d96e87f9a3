package bridge

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/manifest"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/shared/utils"
	"github.com/GriffinCanCode/AgentOS/scriptworker/internal/worker"
)

type result struct {
	resp *Response
	err  error
}

type call struct {
	ctx   context.Context
	req   Request
	reply chan result
}

// Bridge owns a worker on a dedicated goroutine. Requests are handled one
// at a time in arrival order.
type Bridge struct {
	worker   *worker.Worker
	logger   *logging.Logger
	requests chan *call
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// New starts the worker goroutine
func New(w *worker.Worker, logger *logging.Logger) *Bridge {
	b := &Bridge{
		worker:   w,
		logger:   logging.OrNop(logger).Named("bridge"),
		requests: make(chan *call),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Bridge) loop() {
	defer close(b.done)
	for {
		select {
		case <-b.quit:
			return
		default:
		}

		select {
		case <-b.quit:
			return
		case c := <-b.requests:
			resp, err := b.process(c.ctx, c.req)
			c.reply <- result{resp: resp, err: err}
		}
	}
}

// Do sends req and waits for its response. If ctx ends first the caller
// gets ctx.Err(); the request still runs to completion.
func (b *Bridge) Do(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.ID == "" {
		req.ID = id.NewRequestID().String()
	}
	c := &call{
		// detached so an abandoned request still finishes
		ctx:   context.WithoutCancel(ctx),
		req:   req,
		reply: make(chan result, 1),
	}

	select {
	case <-b.quit:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case b.requests <- c:
	}

	select {
	case r := <-c.reply:
		return r.resp, r.err
	case <-ctx.Done():
		b.logger.Debug("Caller gave up on request",
			zap.String("request_id", req.ID),
			zap.String("method", string(req.Method)),
		)
		return nil, ctx.Err()
	}
}

// Handle is the envelope form used by transports: failures come back as a
// response carrying an error payload
func (b *Bridge) Handle(ctx context.Context, req Request) *Response {
	if req.ID == "" {
		req.ID = id.NewRequestID().String()
	}
	resp, err := b.Do(ctx, req)
	if err != nil {
		return &Response{ID: req.ID, Error: NewErrorPayload(err)}
	}
	return resp
}

// Initialize prepares the sandbox
func (b *Bridge) Initialize(ctx context.Context) (*Response, error) {
	return b.Do(ctx, Request{Method: MethodInitialize})
}

// RunScript runs path and returns the rendered components
func (b *Bridge) RunScript(ctx context.Context, path string) (*Response, error) {
	return b.Do(ctx, Request{Method: MethodRun, Path: path})
}

// MountFiles mounts m, or the configured source when m is nil
func (b *Bridge) MountFiles(ctx context.Context, m manifest.Manifest) (*Response, error) {
	return b.Do(ctx, Request{Method: MethodMount, Manifest: m})
}

// State returns a copy of the worker state
func (b *Bridge) State(ctx context.Context) (*Response, error) {
	return b.Do(ctx, Request{Method: MethodState})
}

// ReadFile returns a sandbox file
func (b *Bridge) ReadFile(ctx context.Context, path string) (*Response, error) {
	return b.Do(ctx, Request{Method: MethodReadFile, Path: path})
}

// Close stops the goroutine after the in-flight request and releases the
// worker. Later calls return ErrClosed.
func (b *Bridge) Close() error {
	var err error
	b.once.Do(func() {
		close(b.quit)
		<-b.done
		err = b.worker.Close()
	})
	return err
}

// process runs on the worker goroutine only
func (b *Bridge) process(ctx context.Context, req Request) (*Response, error) {
	logger := b.logger.With(zap.String("request_id", req.ID), zap.String("method", string(req.Method)))
	resp := &Response{ID: req.ID, Success: true}

	switch req.Method {
	case MethodPing:

	case MethodInitialize:
		if err := b.worker.Initialize(ctx); err != nil {
			return nil, err
		}

	case MethodRun:
		if err := utils.ValidateScriptPath(req.Path); err != nil {
			return nil, badRequest("%v", err)
		}
		components, err := b.worker.RunScript(ctx, req.Path)
		if err != nil {
			logger.Debug("Run failed", zap.String("path", req.Path), zap.Error(err))
			return nil, err
		}
		if components == nil {
			components = worker.ComponentTree{}
		}
		resp.Components = components

	case MethodMount:
		var err error
		if req.Manifest != nil {
			resp.Mount, err = b.worker.Mount(ctx, req.Manifest)
		} else {
			resp.Mount, err = b.worker.MountFiles(ctx)
		}
		if err != nil {
			return nil, err
		}

	case MethodState:
		state := b.worker.State()
		resp.State = &state

	case MethodReadFile:
		if err := utils.ValidateScriptPath(req.Path); err != nil {
			return nil, badRequest("%v", err)
		}
		data, err := b.worker.ReadFile(req.Path)
		if err != nil {
			return nil, err
		}
		payload := manifest.Classify(data)
		resp.File = &FilePayload{Path: req.Path, Kind: payload.Kind(), Content: payload.Content()}

	default:
		return nil, badRequest("unknown method %q", req.Method)
	}

	logger.Debug("Request handled")
	return resp, nil
}
