package accel

import (
	"github.com/searchktools/fast-runtime/core/binding"
	"github.com/searchktools/fast-runtime/core/dispatch"
	"github.com/searchktools/fast-runtime/core/http"
)

// Symbols returns the accelerator exports keyed by symbol name, for
// linking the accelerator statically through binding.StaticLoader.
func Symbols() binding.Symbols {
	return binding.Symbols{
		binding.Parser.Symbol(): func(l http.Limits) dispatch.Parser { return NewParser(l) },
		binding.Router.Symbol(): func() dispatch.Router { return NewRouter() },
		binding.URL.Symbol():    func() dispatch.URLParser { return NewURLParser() },
	}
}
