// Package binding locates and loads the optional accelerator module and
// reports which capabilities it provides.
package binding

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// DefaultMaxCacheSize bounds the route match cache when none is configured.
const DefaultMaxCacheSize = 10000

var (
	ErrDisabled = errors.New("accelerator disabled")
	ErrNotFound = errors.New("no accelerator found")
)

// Config controls accelerator discovery.
type Config struct {
	Enabled bool `config:"enabled" yaml:"enabled" json:"enabled"`
	// Verbose logs every load attempt at debug level with its duration.
	Verbose      bool     `config:"verbose" yaml:"verbose" json:"verbose"`
	MaxCacheSize int      `config:"max_cache_size" yaml:"max_cache_size" json:"max_cache_size"`
	SearchPaths  []string `config:"search_paths" yaml:"search_paths" json:"search_paths"`
}

// DefaultConfig enables the accelerator with the default search paths.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		MaxCacheSize: DefaultMaxCacheSize,
		SearchPaths:  DefaultSearchPaths(),
	}
}

type attempt struct {
	mod Module
	err error
}

// Resolver finds the accelerator once and caches the outcome of every load
// attempt until ClearCache. It is safe for concurrent use.
type Resolver struct {
	cfg    Config
	loader Loader
	logger log.Logger

	mu       sync.Mutex
	attempts map[string]attempt
	resolved bool
	selected Module
	path     string
	lastErr  error

	loadAttempts  atomic.Uint64
	loadSuccesses atomic.Uint64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLoader replaces the plugin loader.
func WithLoader(l Loader) Option {
	return func(r *Resolver) { r.loader = l }
}

// WithLogger sets the logger for load traces.
func WithLogger(l log.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver. Nothing is loaded until the first query.
func NewResolver(cfg Config, opts ...Option) *Resolver {
	r := &Resolver{
		cfg:      cfg,
		loader:   PluginLoader{},
		logger:   log.NewNopLogger(),
		attempts: make(map[string]attempt),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the configuration the resolver was built with.
func (r *Resolver) Config() Config {
	return r.cfg
}

// Resolve tries candidates in order and returns the first module that
// loads. A path that was already attempted is answered from the cache.
func (r *Resolver) Resolve(candidates []string) (Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mod, _, ok := r.resolveLocked(candidates)
	return mod, ok
}

func (r *Resolver) resolveLocked(candidates []string) (Module, string, bool) {
	if !r.cfg.Enabled {
		r.lastErr = ErrDisabled
		return nil, "", false
	}
	for _, path := range candidates {
		a, ok := r.attempts[path]
		if !ok {
			a = r.load(path)
			r.attempts[path] = a
		}
		if a.err == nil {
			return a.mod, path, true
		}
		r.lastErr = a.err
	}
	return nil, "", false
}

func (r *Resolver) load(path string) (a attempt) {
	start := time.Now()
	r.loadAttempts.Add(1)

	defer func() {
		if rec := recover(); rec != nil {
			a = attempt{err: fmt.Errorf("binding: loading %s: %v", path, rec)}
		}
		if r.cfg.Verbose {
			level.Debug(r.logger).Log("msg", "accelerator load attempt", "path", path,
				"duration", time.Since(start), "ok", a.err == nil, "err", a.err)
		}
		if a.err == nil {
			r.loadSuccesses.Add(1)
		}
	}()

	mod, err := r.loader.Load(path)
	if err != nil {
		return attempt{err: err}
	}
	return attempt{mod: mod}
}

// ensure selects a module from the configured search paths on first use.
func (r *Resolver) ensure() Module {
	if r.resolved {
		return r.selected
	}
	r.resolved = true

	mod, path, ok := r.resolveLocked(r.cfg.SearchPaths)
	if !ok {
		if r.lastErr == nil {
			r.lastErr = ErrNotFound
		}
		level.Info(r.logger).Log("msg", "using fallback implementations", "reason", r.lastErr)
		return nil
	}
	r.selected, r.path, r.lastErr = mod, path, nil
	level.Info(r.logger).Log("msg", "accelerator loaded", "path", path)
	return mod
}

// Symbol returns the export that provides c, if an accelerator is loaded
// and exports it.
func (r *Resolver) Symbol(c Capability) (v any, ok bool) {
	r.mu.Lock()
	mod := r.ensure()
	r.mu.Unlock()
	if mod == nil {
		return nil, false
	}

	defer func() {
		if rec := recover(); rec != nil {
			v, ok = nil, false
		}
	}()
	v, err := mod.Lookup(c.Symbol())
	if err != nil || v == nil {
		return nil, false
	}
	return v, true
}

// Available reports whether the accelerator provides c.
func (r *Resolver) Available(c Capability) bool {
	_, ok := r.Symbol(c)
	return ok
}

// Status returns a snapshot of the binding state.
func (r *Resolver) Status() Status {
	r.mu.Lock()
	r.ensure()
	s := Status{
		Enabled: r.cfg.Enabled,
		Loaded:  r.selected != nil,
		Path:    r.path,
	}
	if r.lastErr != nil {
		s.Error = r.lastErr.Error()
	}
	r.mu.Unlock()

	for _, c := range Capabilities() {
		s.set(c, r.Available(c))
	}
	s.Attempts = r.loadAttempts.Load()
	s.Successes = r.loadSuccesses.Load()
	s.CPU = cpuFeatures()
	return s
}

// Counters returns the number of load attempts and successful loads.
func (r *Resolver) Counters() (attempts, successes uint64) {
	return r.loadAttempts.Load(), r.loadSuccesses.Load()
}

// ClearCache forgets every attempt and the selected module, so the next
// query searches again.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = make(map[string]attempt)
	r.resolved = false
	r.selected = nil
	r.path = ""
	r.lastErr = nil
	r.loadAttempts.Store(0)
	r.loadSuccesses.Store(0)
}
