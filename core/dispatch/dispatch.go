// Package dispatch hands out parsers and routers backed by the accelerator
// when it is loaded and by the reference implementations otherwise. The
// backend for each capability is chosen once and then cached.
package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/searchktools/fast-runtime/core/binding"
	"github.com/searchktools/fast-runtime/core/http"
	"github.com/searchktools/fast-runtime/core/pools"
	"github.com/searchktools/fast-runtime/core/router"
)

// Parser is a streaming HTTP/1.x request parser. See http.Parser for the
// contract every implementation follows.
type Parser interface {
	Write(p []byte) (int, error)
	State() http.State
	Result() (*http.Request, error)
	Err() error
	Reset()
}

// Router matches request paths to handlers. See router.Radix for the
// contract every implementation follows.
type Router interface {
	Add(method, pattern string, handler any)
	Find(method, path string) router.Match
	Remove(method, pattern string) bool
	Routes() []router.Route
}

// URLParser splits request targets and decodes query strings. See
// http.SplitURL and http.ParseQuery for the contract.
type URLParser interface {
	Parse(raw string) (http.URL, error)
	ParseQuery(raw string) map[string]string
}

// Accelerator export types. A symbol of any other type is ignored.
type (
	ParserFactory    = func(http.Limits) Parser
	RouterFactory    = func() Router
	URLParserFactory = func() URLParser
)

var (
	_ Parser    = (*http.Parser)(nil)
	_ Router    = (*router.Radix)(nil)
	_ URLParser = http.URLParser{}
)

// Backend identifies which implementation serves a capability.
type Backend uint8

const (
	Fallback Backend = iota
	Accelerator
)

func (b Backend) String() string {
	if b == Accelerator {
		return "accelerator"
	}
	return "fallback"
}

type choice struct {
	backend Backend
	export  any
}

// Dispatcher selects and constructs backends. It is safe for concurrent use.
type Dispatcher struct {
	resolver  *binding.Resolver
	limits    http.Limits
	cacheSize int
	logger    log.Logger

	mu      sync.Mutex
	choices map[binding.Capability]choice

	parsers atomic.Pointer[pools.SmartPool[Parser]]

	parserWrites   atomic.Uint64
	routerFinds    atomic.Uint64
	urlCalls       atomic.Uint64
	cacheHits      atomic.Uint64
	cacheMisses    atomic.Uint64
	cacheEvictions atomic.Uint64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLimits sets the limits every parser is created with.
func WithLimits(l http.Limits) Option {
	return func(d *Dispatcher) { d.limits = l }
}

// WithCacheSize overrides the resolver's MaxCacheSize. Zero disables the
// route match cache.
func WithCacheSize(n int) Option {
	return func(d *Dispatcher) { d.cacheSize = n }
}

// WithLogger sets the logger for backend selection.
func WithLogger(l log.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New creates a dispatcher over resolver. No backend is selected until
// first use.
func New(resolver *binding.Resolver, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		resolver:  resolver,
		cacheSize: resolver.Config().MaxCacheSize,
		logger:    log.NewNopLogger(),
		choices:   make(map[binding.Capability]choice),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.limits = d.limits.Normalize()
	d.parsers.Store(d.newParserPool())
	return d
}

func (d *Dispatcher) newParserPool() *pools.SmartPool[Parser] {
	var pool *pools.SmartPool[Parser]
	pool = pools.NewSmartPool(pools.SmartPoolConfig[Parser]{
		New: func() Parser {
			p := d.newParser()
			p.pool = pool
			return p
		},
		Reset: func(p Parser) { p.Reset() },
	})
	return pool
}

// Backend returns the implementation serving c, selecting it on first use.
func (d *Dispatcher) Backend(c binding.Capability) Backend {
	return d.choose(c).backend
}

func (d *Dispatcher) choose(c binding.Capability) choice {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.choices[c]; ok {
		return ch
	}

	ch := choice{backend: Fallback}
	if v, ok := d.resolver.Symbol(c); ok {
		if accepts(c, v) {
			ch = choice{backend: Accelerator, export: v}
		} else {
			level.Warn(d.logger).Log("msg", "accelerator export has the wrong type", "capability", c, "symbol", c.Symbol())
		}
	}
	d.choices[c] = ch
	level.Debug(d.logger).Log("msg", "backend selected", "capability", c, "backend", ch.backend)
	return ch
}

func accepts(c binding.Capability, v any) bool {
	switch c {
	case binding.Parser:
		_, ok := v.(ParserFactory)
		return ok
	case binding.Router:
		_, ok := v.(RouterFactory)
		return ok
	case binding.URL:
		_, ok := v.(URLParserFactory)
		return ok
	}
	return false
}

// Reselect forgets every backend choice and drops pooled parsers, so the
// next use consults the resolver again. Parsers acquired before Reselect
// are discarded on release.
func (d *Dispatcher) Reselect() {
	d.mu.Lock()
	clear(d.choices)
	d.mu.Unlock()
	d.parsers.Store(d.newParserPool())
}

// NewParser returns a parser from the selected backend.
func (d *Dispatcher) NewParser() Parser {
	return d.newParser()
}

func (d *Dispatcher) newParser() *countingParser {
	var p Parser
	if ch := d.choose(binding.Parser); ch.backend == Accelerator {
		p = ch.export.(ParserFactory)(d.limits)
	} else {
		p = http.NewParser(d.limits)
	}
	return &countingParser{Parser: p, writes: &d.parserWrites}
}

// AcquireParser takes a parser from the pool.
func (d *Dispatcher) AcquireParser() Parser {
	return d.parsers.Load().Get()
}

// ReleaseParser resets p and returns it to the pool it came from. Any
// Request obtained from p is invalid afterwards. Parsers from a pool that
// Reselect replaced, or not taken from a pool at all, are dropped.
func (d *Dispatcher) ReleaseParser(p Parser) {
	pool := d.parsers.Load()
	if cp, ok := p.(*countingParser); !ok || cp.pool != pool {
		return
	}
	pool.Put(p)
}

// PoolStats returns statistics of the parser pool.
func (d *Dispatcher) PoolStats() pools.SmartPoolStats {
	return d.parsers.Load().Stats()
}

// NewRouter returns an empty router from the selected backend, wrapped in
// a match cache when the cache size is positive.
func (d *Dispatcher) NewRouter() Router {
	var r Router
	if ch := d.choose(binding.Router); ch.backend == Accelerator {
		r = ch.export.(RouterFactory)()
	} else {
		r = router.New()
	}
	if d.cacheSize > 0 {
		r = newCachingRouter(r, d.cacheSize, &d.cacheHits, &d.cacheMisses, &d.cacheEvictions)
	}
	return &countingRouter{Router: r, finds: &d.routerFinds}
}

func (d *Dispatcher) urlParser() URLParser {
	d.urlCalls.Add(1)
	if ch := d.choose(binding.URL); ch.backend == Accelerator {
		return ch.export.(URLParserFactory)()
	}
	return http.URLParser{}
}

// ParseURL splits a request target with the selected backend.
func (d *Dispatcher) ParseURL(raw string) (http.URL, error) {
	return d.urlParser().Parse(raw)
}

// ParseQuery decodes a raw query string with the selected backend.
func (d *Dispatcher) ParseQuery(raw string) map[string]string {
	return d.urlParser().ParseQuery(raw)
}

// Limits returns the parser limits.
func (d *Dispatcher) Limits() http.Limits {
	return d.limits
}

type countingParser struct {
	Parser
	writes *atomic.Uint64
	pool   *pools.SmartPool[Parser]
}

func (p *countingParser) Write(b []byte) (int, error) {
	p.writes.Add(1)
	return p.Parser.Write(b)
}

// Unwrap returns the backend parser.
func (p *countingParser) Unwrap() Parser {
	return p.Parser
}

type countingRouter struct {
	Router
	finds *atomic.Uint64
}

func (r *countingRouter) Find(method, path string) router.Match {
	r.finds.Add(1)
	return r.Router.Find(method, path)
}
