package core

import (
	"encoding/json"
	"fmt"

	"github.com/searchktools/fast-runtime/core/pools"
)

// PoolStats represents statistics for all pools
type PoolStats struct {
	Parser  pools.SmartPoolStats `json:"parser"`
	Context pools.SmartPoolStats `json:"context"`
}

// GetPoolStats returns statistics for all memory pools
func (e *Engine) GetPoolStats() PoolStats {
	return PoolStats{
		Parser:  e.dispatcher.PoolStats(),
		Context: e.contextPool.Stats(),
	}
}

// GetPoolStatsJSON returns pool statistics as JSON string
func (e *Engine) GetPoolStatsJSON() string {
	stats := e.GetPoolStats()
	data, _ := json.MarshalIndent(stats, "", "  ")
	return string(data)
}

// GetPoolStatsText returns pool statistics as human-readable text
func (e *Engine) GetPoolStatsText() string {
	stats := e.GetPoolStats()
	return fmt.Sprintf(`Memory Pool Statistics
======================

Parser Pool:
  Gets:     %d
  Puts:     %d
  News:     %d
  Hit Rate: %.2f%%

Context Pool:
  Gets:     %d
  Puts:     %d
  News:     %d
  Hit Rate: %.2f%%
`,
		stats.Parser.Gets, stats.Parser.Puts, stats.Parser.News, stats.Parser.HitRate*100,
		stats.Context.Gets, stats.Context.Puts, stats.Context.News, stats.Context.HitRate*100,
	)
}
