package pools

import (
	"sync"
	"sync/atomic"
)

// SmartPool is a typed object pool with warmup, reset-on-put and statistics.
type SmartPool[T any] struct {
	pool  sync.Pool
	newFn func() T
	reset func(T)

	// Statistics
	gets atomic.Uint64
	puts atomic.Uint64
	news atomic.Uint64
}

// SmartPoolConfig configures a smart pool
type SmartPoolConfig[T any] struct {
	New        func() T
	Reset      func(T) // called before an object goes back to the pool
	WarmupSize int     // Number of objects to pre-allocate
}

// NewSmartPool creates a new smart pool with configuration
func NewSmartPool[T any](config SmartPoolConfig[T]) *SmartPool[T] {
	sp := &SmartPool[T]{
		newFn: config.New,
		reset: config.Reset,
	}
	sp.pool.New = func() any {
		sp.news.Add(1)
		return config.New()
	}

	// Warmup: pre-allocate objects
	for i := 0; i < config.WarmupSize; i++ {
		sp.pool.Put(config.New())
	}
	return sp
}

// Get acquires an object from the pool
func (sp *SmartPool[T]) Get() T {
	sp.gets.Add(1)
	return sp.pool.Get().(T)
}

// Put resets obj and returns it to the pool
func (sp *SmartPool[T]) Put(obj T) {
	sp.puts.Add(1)
	if sp.reset != nil {
		sp.reset(obj)
	}
	sp.pool.Put(obj)
}

// Stats returns pool statistics
func (sp *SmartPool[T]) Stats() SmartPoolStats {
	gets := sp.gets.Load()
	news := sp.news.Load()

	hitRate := 0.0
	if gets > news {
		// objects served from the pool vs newly created
		hitRate = float64(gets-news) / float64(gets)
	}
	return SmartPoolStats{
		Gets:    gets,
		Puts:    sp.puts.Load(),
		News:    news,
		HitRate: hitRate,
	}
}

// SmartPoolStats contains smart pool statistics
type SmartPoolStats struct {
	Gets    uint64  `json:"gets"`
	Puts    uint64  `json:"puts"`
	News    uint64  `json:"news"`
	HitRate float64 `json:"hit_rate"`
}
