package binding

import (
	"errors"
	"fmt"
	"plugin"
)

// ErrSymbolNotFound is returned by a Module that does not export a symbol.
var ErrSymbolNotFound = errors.New("binding: symbol not found")

// Module is a loaded accelerator.
type Module interface {
	Lookup(symbol string) (any, error)
}

// Loader opens an accelerator module by path.
type Loader interface {
	Load(path string) (Module, error)
}

// PluginLoader loads modules built with -buildmode=plugin.
type PluginLoader struct{}

func (PluginLoader) Load(path string) (Module, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return pluginModule{p}, nil
}

type pluginModule struct {
	p *plugin.Plugin
}

func (m pluginModule) Lookup(symbol string) (any, error) {
	s, err := m.p.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return s, nil
}

// Symbols is a module held in memory, keyed by export name.
type Symbols map[string]any

func (s Symbols) Lookup(symbol string) (any, error) {
	v, ok := s[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return v, nil
}

// StaticLoader serves modules linked into the binary. It lets platforms
// without plugin support, and tests, provide an accelerator.
type StaticLoader map[string]Symbols

func (l StaticLoader) Load(path string) (Module, error) {
	s, ok := l[path]
	if !ok {
		return nil, fmt.Errorf("binding: no module at %s", path)
	}
	return s, nil
}
