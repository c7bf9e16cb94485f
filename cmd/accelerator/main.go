// Command accelerator is the accelerator module. Build it with
//
//	go build -buildmode=plugin -o accelerator.so ./cmd/accelerator
//
// and place the result on one of the binding search paths.
package main

import (
	"github.com/searchktools/fast-runtime/core/accel"
	"github.com/searchktools/fast-runtime/core/dispatch"
	"github.com/searchktools/fast-runtime/core/http"
)

func NewParser(l http.Limits) dispatch.Parser { return accel.NewParser(l) }

func NewRouter() dispatch.Router { return accel.NewRouter() }

func NewURLParser() dispatch.URLParser { return accel.NewURLParser() }

func main() {}
