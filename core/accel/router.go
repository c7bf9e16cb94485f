package accel

import (
	"strings"

	"github.com/searchktools/fast-runtime/core/router"
)

// Router is a compile-time optimized router. Literal-only routes are also
// indexed by their normalized path so the common case is one map lookup.
type Router struct {
	// Static routes: normalized path -> method -> handler
	static map[string]map[string]any

	root *compiledNode
}

type compiledNode struct {
	literals map[string]*compiledNode
	param    *compiledNode
	wildcard *compiledNode
	name     string
	handlers map[string]any
}

// NewRouter creates an empty accelerated router.
func NewRouter() *Router {
	return &Router{
		static: make(map[string]map[string]any),
		root:   &compiledNode{},
	}
}

// Add adds a route and compiles it
func (r *Router) Add(method, pattern string, handler any) {
	segs := router.Compile(pattern)
	n := r.root
	literal := true
	for _, seg := range segs {
		switch seg.Kind {
		case router.KindParam:
			literal = false
			if n.param == nil {
				n.param = &compiledNode{name: seg.Text}
			} else if n.param.name != seg.Text {
				panic(router.PatternError(pattern, router.ErrConflictingParam))
			}
			n = n.param
		case router.KindWildcard:
			literal = false
			if n.wildcard == nil {
				n.wildcard = &compiledNode{name: seg.Text}
			} else if n.wildcard.name != seg.Text {
				panic(router.PatternError(pattern, router.ErrConflictingWildcard))
			}
			n = n.wildcard
		default:
			if n.literals == nil {
				n.literals = make(map[string]*compiledNode)
			}
			child := n.literals[seg.Text]
			if child == nil {
				child = &compiledNode{}
				n.literals[seg.Text] = child
			}
			n = child
		}
	}

	if n.handlers == nil {
		n.handlers = make(map[string]any)
	}
	n.handlers[method] = handler

	if literal {
		key := staticKey(segs)
		if r.static[key] == nil {
			r.static[key] = make(map[string]any)
		}
		r.static[key][method] = handler
	}
}

// Find matches path for method with the same precedence as router.Radix.
func (r *Router) Find(method, path string) router.Match {
	// Step 1: static routes, only when path is already normalized
	if key, ok := normalized(path); ok {
		if h, ok := r.static[key][method]; ok {
			return router.Match{Found: true, Handler: h}
		}
	}

	// Step 2: segment tree
	var (
		m      router.Match
		shapes []map[string]any
	)
	if n := r.root.find(method, path, 0, &m.Params, &shapes); n != nil {
		m.Found = true
		m.Handler = n.handlers[method]
		return m
	}
	m.Params = nil
	if len(shapes) > 0 {
		m.Allowed = router.AllowedMethods(shapes...)
	}
	return m
}

// Routes lists every registered route, sorted by pattern and method.
func (r *Router) Routes() []router.Route {
	var routes []router.Route
	r.root.walk("", func(pattern string, n *compiledNode) {
		if pattern == "" {
			pattern = "/"
		}
		for method := range n.handlers {
			routes = append(routes, router.Route{Method: method, Pattern: pattern})
		}
	})
	router.SortRoutes(routes)
	return routes
}

func (n *compiledNode) walk(prefix string, fn func(string, *compiledNode)) {
	if len(n.handlers) > 0 {
		fn(prefix, n)
	}
	for seg, child := range n.literals {
		child.walk(prefix+"/"+seg, fn)
	}
	if n.param != nil {
		n.param.walk(prefix+"/:"+n.param.name, fn)
	}
	if n.wildcard != nil {
		if n.wildcard.name == router.WildcardKey {
			n.wildcard.walk(prefix+"/*", fn)
		} else {
			n.wildcard.walk(prefix+"/*"+n.wildcard.name, fn)
		}
	}
}

// Remove removes a route and reports whether it existed.
func (r *Router) Remove(method, pattern string) bool {
	segs := router.Compile(pattern)
	if !r.root.remove(method, segs) {
		return false
	}
	for _, s := range segs {
		if s.Kind != router.KindLiteral {
			return true
		}
	}
	key := staticKey(segs)
	if methods, ok := r.static[key]; ok {
		delete(methods, method)
		if len(methods) == 0 {
			delete(r.static, key)
		}
	}
	return true
}

func (n *compiledNode) find(method, path string, i int, params *[]router.Param, shapes *[]map[string]any) *compiledNode {
	seg, next := router.NextSegment(path, i)
	if seg == "" {
		if len(n.handlers) == 0 {
			return nil
		}
		if _, ok := n.handlers[method]; ok {
			return n
		}
		*shapes = append(*shapes, n.handlers)
		return nil
	}

	if child, ok := n.literals[seg]; ok {
		if found := child.find(method, path, next, params, shapes); found != nil {
			return found
		}
	}

	if n.param != nil {
		mark := len(*params)
		*params = append(*params, router.Param{Key: n.param.name, Value: seg})
		if found := n.param.find(method, path, next, params, shapes); found != nil {
			return found
		}
		*params = (*params)[:mark]
	}

	if w := n.wildcard; w != nil && len(w.handlers) > 0 {
		if _, ok := w.handlers[method]; ok {
			*params = append(*params, router.Param{Key: w.name, Value: router.Rest(path, i)})
			return w
		}
		*shapes = append(*shapes, w.handlers)
	}
	return nil
}

func (n *compiledNode) remove(method string, segs []router.Segment) bool {
	if len(segs) == 0 {
		if _, ok := n.handlers[method]; !ok {
			return false
		}
		delete(n.handlers, method)
		return true
	}

	seg, rest := segs[0], segs[1:]
	var child *compiledNode
	switch seg.Kind {
	case router.KindParam:
		child = n.param
	case router.KindWildcard:
		child = n.wildcard
	default:
		child = n.literals[seg.Text]
	}
	if child == nil || (seg.Kind != router.KindLiteral && child.name != seg.Text) {
		return false
	}
	if !child.remove(method, rest) {
		return false
	}

	if len(child.handlers) == 0 && len(child.literals) == 0 && child.param == nil && child.wildcard == nil {
		switch seg.Kind {
		case router.KindParam:
			n.param = nil
		case router.KindWildcard:
			n.wildcard = nil
		default:
			delete(n.literals, seg.Text)
		}
	}
	return true
}

func staticKey(segs []router.Segment) string {
	if len(segs) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, s := range segs {
		b.WriteByte('/')
		b.WriteString(s.Text)
	}
	return b.String()
}

// normalized reports whether path is already in static key form, which
// lets Find skip building the key.
func normalized(path string) (string, bool) {
	if path == "" || path == "/" {
		return "/", true
	}
	if path[0] != '/' || path[len(path)-1] == '/' || strings.Contains(path, "//") {
		return "", false
	}
	return path, true
}
