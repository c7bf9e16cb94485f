package core

import (
	"context"
	"errors"
	"io"
	"net"
	stdhttp "net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/searchktools/fast-runtime/core/binding"
	"github.com/searchktools/fast-runtime/core/dispatch"
	"github.com/searchktools/fast-runtime/core/http"
	"github.com/searchktools/fast-runtime/core/pools"
	"github.com/searchktools/fast-runtime/core/router"
)

// HandlerFunc defines the handler function type
type HandlerFunc func(ctx Context)

const readBufferSize = 4096

// Engine serves HTTP/1.x over any net.Listener, one goroutine per
// connection. Parsers and routers come from the dispatcher, so the
// accelerator is used whenever it is loaded.
type Engine struct {
	dispatcher *dispatch.Dispatcher
	router     dispatch.Router
	logger     log.Logger

	readTimeout  time.Duration
	writeTimeout time.Duration
	idleTimeout  time.Duration

	bytePool    *pools.BytePool
	contextPool *pools.SmartPool[*reqContext]

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	conns     map[net.Conn]struct{}
	active    sync.WaitGroup
	closed    atomic.Bool

	requests atomic.Uint64
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithTimeouts sets the per-request read and write deadlines. Zero means
// no deadline.
func WithTimeouts(read, write time.Duration) EngineOption {
	return func(e *Engine) {
		e.readTimeout = read
		e.writeTimeout = write
	}
}

// WithIdleTimeout bounds how long a keep-alive connection waits for the
// next request.
func WithIdleTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.idleTimeout = d }
}

// WithEngineLogger sets the logger for connection errors and the access log.
func WithEngineLogger(l log.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a new engine instance
func NewEngine(d *dispatch.Dispatcher, opts ...EngineOption) *Engine {
	e := &Engine{
		dispatcher:   d,
		router:       d.NewRouter(),
		logger:       log.NewNopLogger(),
		readTimeout:  10 * time.Second,
		writeTimeout: 10 * time.Second,
		idleTimeout:  60 * time.Second,
		bytePool:     pools.NewBytePool(),
		listeners:    make(map[net.Listener]struct{}),
		conns:        make(map[net.Conn]struct{}),
	}
	e.contextPool = pools.NewSmartPool(pools.SmartPoolConfig[*reqContext]{
		New:        func() *reqContext { return &reqContext{} },
		Reset:      func(c *reqContext) { c.reset(nil, nil, "", nil) },
		WarmupSize: 64,
	})
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dispatcher returns the dispatcher the engine was built with.
func (e *Engine) Dispatcher() *dispatch.Dispatcher {
	return e.dispatcher
}

// Handle registers handler for method and pattern. A second registration
// of the same method and pattern replaces the first. Malformed patterns
// panic.
func (e *Engine) Handle(method, pattern string, handler HandlerFunc) {
	e.router.Add(method, pattern, handler)
}

// Unhandle removes the route for method and pattern.
func (e *Engine) Unhandle(method, pattern string) bool {
	return e.router.Remove(method, pattern)
}

// Routes lists the registered routes, sorted by pattern and method.
func (e *Engine) Routes() []router.Route {
	return e.router.Routes()
}

// GET registers a GET route
func (e *Engine) GET(path string, handler HandlerFunc) {
	e.Handle(stdhttp.MethodGet, path, handler)
}

// POST registers a POST route
func (e *Engine) POST(path string, handler HandlerFunc) {
	e.Handle(stdhttp.MethodPost, path, handler)
}

// PUT registers a PUT route
func (e *Engine) PUT(path string, handler HandlerFunc) {
	e.Handle(stdhttp.MethodPut, path, handler)
}

// DELETE registers a DELETE route
func (e *Engine) DELETE(path string, handler HandlerFunc) {
	e.Handle(stdhttp.MethodDelete, path, handler)
}

// PATCH registers a PATCH route
func (e *Engine) PATCH(path string, handler HandlerFunc) {
	e.Handle(stdhttp.MethodPatch, path, handler)
}

// HEAD registers a HEAD route
func (e *Engine) HEAD(path string, handler HandlerFunc) {
	e.Handle(stdhttp.MethodHead, path, handler)
}

// OPTIONS registers an OPTIONS route
func (e *Engine) OPTIONS(path string, handler HandlerFunc) {
	e.Handle(stdhttp.MethodOptions, path, handler)
}

// Run listens on addr and serves until Shutdown.
func (e *Engine) Run(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return e.Serve(ln)
}

// Serve accepts connections on ln until it fails or the engine shuts
// down, in which case ErrServerClosed is returned.
func (e *Engine) Serve(ln net.Listener) error {
	if !e.track(ln, nil, true) {
		ln.Close()
		return ErrServerClosed
	}
	defer e.track(ln, nil, false)

	level.Info(e.logger).Log("msg", "listening", "addr", ln.Addr(),
		"parser", e.dispatcher.Backend(binding.Parser), "router", e.dispatcher.Backend(binding.Router))

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if e.closed.Load() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				// same backoff as net/http
				if delay == 0 {
					delay = 5 * time.Millisecond
				} else {
					delay = min(2*delay, time.Second)
				}
				level.Warn(e.logger).Log("msg", "accept error", "err", err, "retry", delay)
				time.Sleep(delay)
				continue
			}
			return err
		}
		delay = 0

		if !e.track(nil, conn, true) {
			conn.Close()
			continue
		}
		go func() {
			defer e.track(nil, conn, false)
			if err := e.ServeConn(conn); err != nil {
				level.Debug(e.logger).Log("msg", "connection closed", "remote", conn.RemoteAddr(), "err", err)
			}
		}()
	}
}

func (e *Engine) track(ln net.Listener, conn net.Conn, add bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if add && e.closed.Load() {
		return false
	}
	switch {
	case ln != nil && add:
		e.listeners[ln] = struct{}{}
	case ln != nil:
		delete(e.listeners, ln)
	case add:
		e.conns[conn] = struct{}{}
		e.active.Add(1)
	default:
		delete(e.conns, conn)
		e.active.Done()
	}
	return true
}

// ServeConn serves requests on conn until the client closes it, a request
// asks for close, or a request fails to parse. conn is closed on return.
// Pipelined requests are answered in order.
func (e *Engine) ServeConn(conn net.Conn) error {
	defer conn.Close()

	p := e.dispatcher.AcquireParser()
	defer e.dispatcher.ReleaseParser(p)
	buf := e.bytePool.Get(readBufferSize)
	defer e.bytePool.Put(buf)

	var (
		out     []byte
		pending []byte
		readErr error
		idle    = true
	)
	for {
		if len(pending) == 0 {
			if idle && e.closed.Load() {
				return nil
			}
			if readErr != nil {
				if readErr == io.EOF && idle {
					return nil
				}
				return readErr
			}
			e.setReadDeadline(conn, idle)
			var n int
			n, readErr = conn.Read(buf)
			pending = buf[:n]
			continue
		}

		idle = false
		n, err := p.Write(pending)
		pending = pending[n:]
		if err != nil {
			var pe *http.ParseError
			if !errors.As(err, &pe) {
				return err
			}
			out = appendResponse(out[:0], pe.Status(), nil, nil, false, false)
			e.write(conn, out)
			level.Debug(e.logger).Log("msg", "bad request", "remote", conn.RemoteAddr(), "status", pe.Status(), "err", err)
			return nil
		}
		if p.State() != http.StateComplete {
			continue
		}

		req, err := p.Result()
		if err != nil {
			return err
		}
		keepAlive := req.KeepAlive() && !req.Upgrade() && !e.closed.Load()
		out = e.serve(out[:0], req, keepAlive)
		if err := e.write(conn, out); err != nil {
			return err
		}
		p.Reset()
		idle = true
		if !keepAlive {
			return nil
		}
	}
}

func (e *Engine) setReadDeadline(conn net.Conn, idle bool) {
	d := e.readTimeout
	if idle && e.idleTimeout > 0 {
		d = e.idleTimeout
	}
	if d > 0 {
		conn.SetReadDeadline(time.Now().Add(d))
	}
}

func (e *Engine) write(conn net.Conn, b []byte) error {
	if e.writeTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(e.writeTimeout))
	}
	_, err := conn.Write(b)
	return err
}

// serve routes req and appends the response to out.
func (e *Engine) serve(out []byte, req *http.Request, keepAlive bool) []byte {
	start := time.Now()
	e.requests.Add(1)
	head := req.Method == stdhttp.MethodHead

	path, err := e.routePath(req.Target)
	if err != nil {
		e.access(req, stdhttp.StatusBadRequest, start)
		return appendResponse(out, stdhttp.StatusBadRequest, nil, nil, head, keepAlive)
	}

	m := e.router.Find(req.Method, path)
	if !m.Found {
		code := stdhttp.StatusNotFound
		var headers []http.Header
		if len(m.Allowed) > 0 {
			code = stdhttp.StatusMethodNotAllowed
			headers = []http.Header{{Name: HeaderAllow, Value: strings.Join(m.Allowed, ", ")}}
		}
		e.access(req, code, start)
		return appendResponse(out, code, headers, nil, head, keepAlive)
	}

	ctx := e.contextPool.Get()
	defer e.contextPool.Put(ctx)
	ctx.reset(e, req, path, m.Params)
	e.call(m.Handler.(HandlerFunc), ctx)
	if !ctx.written {
		ctx.status = stdhttp.StatusOK
	}
	e.access(req, ctx.status, start)
	return appendResponse(out, ctx.status, ctx.headers, ctx.body, head, keepAlive)
}

// routePath returns the path to route target on. Origin-form targets and
// "*" are used as is; absolute-form targets are split first.
func (e *Engine) routePath(target string) (string, error) {
	if target == "*" || strings.HasPrefix(target, "/") {
		return target, nil
	}
	u, err := e.dispatcher.ParseURL(target)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", http.ErrInvalidTarget
	}
	if u.RawPath == "" {
		return "/", nil
	}
	return u.RawPath, nil
}

func (e *Engine) call(h HandlerFunc, ctx *reqContext) {
	defer func() {
		if r := recover(); r != nil {
			level.Error(e.logger).Log("msg", "handler panic", "method", ctx.Method(), "path", ctx.Path(), "panic", r)
			ctx.headers = ctx.headers[:0]
			ctx.body = ctx.body[:0]
			ctx.written = false
			ctx.Error(stdhttp.StatusInternalServerError, stdhttp.StatusText(stdhttp.StatusInternalServerError))
		}
	}()
	h(ctx)
}

func (e *Engine) access(req *http.Request, status int, start time.Time) {
	level.Debug(e.logger).Log("msg", "request", "method", req.Method, "path", req.Target,
		"status", status, "duration", time.Since(start))
}

// Requests returns the number of requests routed so far.
func (e *Engine) Requests() uint64 {
	return e.requests.Load()
}

// Shutdown stops accepting, lets in-flight requests finish and closes idle
// connections. Connections still busy when ctx ends are closed forcibly.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed.Store(true)
	for ln := range e.listeners {
		ln.Close()
	}
	// wake connections blocked waiting for the next request
	for conn := range e.conns {
		conn.SetReadDeadline(time.Now())
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		e.Close()
		return ctx.Err()
	}
}

// Close stops accepting and closes every open connection.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed.Store(true)
	for ln := range e.listeners {
		ln.Close()
	}
	for conn := range e.conns {
		conn.Close()
	}
	return nil
}
