package router

import "strings"

// Radix is a segment trie router with parameter and wildcard support.
// Routes are registered up front and then served; Find is safe for
// concurrent use once registration has stopped.
type Radix struct {
	root *node
}

type node struct {
	segment  string
	indices  string // first byte of each literal child, parallel to children
	children []*node

	param    *node // :name child
	wildcard *node // *name child, always a leaf
	name     string

	handlers map[string]any // method -> handler
}

// New creates an empty router.
func New() *Radix {
	return &Radix{root: &node{}}
}

// Add registers handler for method and pattern. A later registration of the
// same method and pattern replaces the earlier handler.
func (r *Radix) Add(method, pattern string, handler any) {
	n := r.root
	for _, seg := range Compile(pattern) {
		switch seg.Kind {
		case KindParam:
			if n.param == nil {
				n.param = &node{name: seg.Text}
			} else if n.param.name != seg.Text {
				panic(PatternError(pattern, ErrConflictingParam))
			}
			n = n.param
		case KindWildcard:
			if n.wildcard == nil {
				n.wildcard = &node{name: seg.Text}
			} else if n.wildcard.name != seg.Text {
				panic(PatternError(pattern, ErrConflictingWildcard))
			}
			n = n.wildcard
		default:
			child := n.literal(seg.Text)
			if child == nil {
				child = &node{segment: seg.Text}
				n.indices += string(seg.Text[0])
				n.children = append(n.children, child)
			}
			n = child
		}
	}

	if n.handlers == nil {
		n.handlers = make(map[string]any)
	}
	n.handlers[method] = handler
}

// Find matches path for method. When the path matches one or more route
// shapes but not the method, Found is false and Allowed lists the methods
// registered on any of them.
func (r *Radix) Find(method, path string) Match {
	var (
		m      Match
		shapes []*node
	)
	if n := r.root.find(method, path, 0, &m.Params, &shapes); n != nil {
		m.Found = true
		m.Handler = n.handlers[method]
		return m
	}
	m.Params = nil
	if len(shapes) > 0 {
		handlers := make([]map[string]any, len(shapes))
		for i, n := range shapes {
			handlers[i] = n.handlers
		}
		m.Allowed = AllowedMethods(handlers...)
	}
	return m
}

// Remove unregisters method for pattern and prunes nodes left empty.
// It reports whether a handler was removed.
func (r *Radix) Remove(method, pattern string) bool {
	return r.root.remove(method, Compile(pattern))
}

// Routes lists every registered route, sorted by pattern and method.
func (r *Radix) Routes() []Route {
	var routes []Route
	r.root.walk(nil, func(segs []string, n *node) {
		pattern := "/" + strings.Join(segs, "/")
		for method := range n.handlers {
			routes = append(routes, Route{Method: method, Pattern: pattern})
		}
	})
	SortRoutes(routes)
	return routes
}

func (n *node) literal(seg string) *node {
	for i := 0; i < len(n.indices); i++ {
		if n.indices[i] == seg[0] && n.children[i].segment == seg {
			return n.children[i]
		}
	}
	return nil
}

func (n *node) find(method, path string, i int, params *[]Param, shapes *[]*node) *node {
	seg, next := NextSegment(path, i)
	if seg == "" {
		if len(n.handlers) == 0 {
			return nil
		}
		if _, ok := n.handlers[method]; ok {
			return n
		}
		*shapes = append(*shapes, n)
		return nil
	}

	if child := n.literal(seg); child != nil {
		if found := child.find(method, path, next, params, shapes); found != nil {
			return found
		}
	}

	if n.param != nil {
		mark := len(*params)
		*params = append(*params, Param{Key: n.param.name, Value: seg})
		if found := n.param.find(method, path, next, params, shapes); found != nil {
			return found
		}
		*params = (*params)[:mark]
	}

	if w := n.wildcard; w != nil && len(w.handlers) > 0 {
		if _, ok := w.handlers[method]; ok {
			*params = append(*params, Param{Key: w.name, Value: Rest(path, i)})
			return w
		}
		*shapes = append(*shapes, w)
	}
	return nil
}

func (n *node) remove(method string, segs []Segment) bool {
	if len(segs) == 0 {
		if _, ok := n.handlers[method]; !ok {
			return false
		}
		delete(n.handlers, method)
		return true
	}

	seg := segs[0]
	switch seg.Kind {
	case KindParam:
		if n.param == nil || n.param.name != seg.Text || !n.param.remove(method, segs[1:]) {
			return false
		}
		if n.param.empty() {
			n.param = nil
		}
	case KindWildcard:
		if n.wildcard == nil || n.wildcard.name != seg.Text || !n.wildcard.remove(method, segs[1:]) {
			return false
		}
		if n.wildcard.empty() {
			n.wildcard = nil
		}
	default:
		child := n.literal(seg.Text)
		if child == nil || !child.remove(method, segs[1:]) {
			return false
		}
		if child.empty() {
			n.drop(child)
		}
	}
	return true
}

func (n *node) drop(child *node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			n.indices = n.indices[:i] + n.indices[i+1:]
			return
		}
	}
}

func (n *node) empty() bool {
	return len(n.handlers) == 0 && len(n.children) == 0 && n.param == nil && n.wildcard == nil
}

func (n *node) walk(segs []string, fn func([]string, *node)) {
	if len(n.handlers) > 0 {
		fn(segs, n)
	}
	for _, c := range n.children {
		c.walk(append(segs, c.segment), fn)
	}
	if n.param != nil {
		n.param.walk(append(segs, ":"+n.param.name), fn)
	}
	if n.wildcard != nil {
		name := "*" + n.wildcard.name
		if n.wildcard.name == WildcardKey {
			name = "*"
		}
		n.wildcard.walk(append(segs, name), fn)
	}
}
