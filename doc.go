/*
Package fastruntime is an HTTP/1.x serving core with an optional native
accelerator.

The core has two hot paths, request parsing and route matching. Each has a
reference implementation in pure Go and an accelerated one that can be
loaded at startup as a Go plugin. A dispatcher picks the accelerator for a
capability when the plugin is present and exports it, and the reference
implementation otherwise. Both backends accept and reject exactly the same
inputs, so callers never need to know which one is active.

Quick Start

	package main

	import (
	    "github.com/searchktools/fast-runtime/app"
	    "github.com/searchktools/fast-runtime/config"
	    "github.com/searchktools/fast-runtime/core"
	)

	func main() {
	    cfg := config.New()
	    application := app.New(cfg)

	    engine := application.Engine()
	    engine.GET("/hello/:name", func(ctx core.Context) {
	        ctx.String(200, "Hello, "+ctx.Param("name"))
	    })

	    application.Run()
	}

Building the accelerator

	go build -buildmode=plugin -o accelerator.so ./cmd/accelerator

The resolver looks for accelerator.so in $FASTRT_ACCELERATOR, the working
directory, next to the executable and in /usr/local/lib/fast-runtime.

Modules

  - app: wiring, diagnostics endpoints and graceful shutdown
  - config: defaults, YAML/JSON file, FASTRT_* environment and flags
  - core: connection loop and handler context
  - core/http: streaming request parser and request model
  - core/router: radix router and route pattern rules
  - core/accel: accelerated parser, router and URL splitter
  - core/binding: accelerator discovery, loading and status
  - core/dispatch: backend selection, pooling, LRU match cache and metrics
  - core/pools: object pools
  - core/logging: go-kit logger construction
  - core/optimize: ASCII helpers and CPU feature detection
*/
package fastruntime
