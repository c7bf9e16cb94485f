package router

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// WildcardKey is the parameter key bound by an unnamed trailing "*".
const WildcardKey = "*"

// Pattern errors. Registration panics with one of these wrapped in the
// offending pattern.
var (
	ErrWildcardNotLast     = errors.New("wildcard must be the last segment")
	ErrUnnamedParam        = errors.New("parameter segment needs a name")
	ErrConflictingParam    = errors.New("conflicting parameter names at the same position")
	ErrConflictingWildcard = errors.New("conflicting wildcard names at the same position")
)

// PatternError wraps err with the offending pattern.
func PatternError(pattern string, err error) error {
	return fmt.Errorf("router: pattern %q: %w", pattern, err)
}

// Kind classifies a pattern segment.
type Kind uint8

const (
	KindLiteral Kind = iota
	KindParam
	KindWildcard
)

// Segment is one compiled pattern segment. Text is the literal, or the
// parameter name for KindParam and KindWildcard.
type Segment struct {
	Kind Kind
	Text string
}

// Param is one captured path parameter.
type Param struct {
	Key   string
	Value string
}

// Match is the result of a route lookup.
type Match struct {
	Found   bool
	Handler any
	Params  []Param
	// Allowed is set when the path matched a route but the method did not.
	Allowed []string
}

// Param returns the value captured for key, or "".
func (m Match) Param(key string) string {
	for _, p := range m.Params {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}

// Route is one registered (method, pattern) pair.
type Route struct {
	Method  string `json:"method"`
	Pattern string `json:"pattern"`
}

// AllowedMethods returns the sorted union of the methods registered in
// each handler table.
func AllowedMethods(tables ...map[string]any) []string {
	var methods []string
	for _, t := range tables {
		for m := range t {
			methods = append(methods, m)
		}
	}
	sort.Strings(methods)
	return slices.Compact(methods)
}

// SortRoutes orders routes by pattern, then method.
func SortRoutes(routes []Route) {
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Pattern != routes[j].Pattern {
			return routes[i].Pattern < routes[j].Pattern
		}
		return routes[i].Method < routes[j].Method
	})
}

// Split breaks a path into its non-empty segments.
func Split(path string) []string {
	segs := make([]string, 0, strings.Count(path, "/")+1)
	for i := 0; ; {
		var seg string
		seg, i = NextSegment(path, i)
		if seg == "" {
			return segs
		}
		segs = append(segs, seg)
	}
}

// NextSegment returns the segment starting at or after offset i, skipping
// any slashes, and the offset just past it. seg is "" at the end of path.
func NextSegment(path string, i int) (seg string, next int) {
	for i < len(path) && path[i] == '/' {
		i++
	}
	start := i
	for i < len(path) && path[i] != '/' {
		i++
	}
	return path[start:i], i
}

// Rest joins the segments from offset i to the end of path with "/".
func Rest(path string, i int) string {
	for i < len(path) && path[i] == '/' {
		i++
	}
	rest := strings.TrimRight(path[i:], "/")
	if !strings.Contains(rest, "//") {
		return rest
	}
	return strings.Join(Split(rest), "/")
}

// Compile validates pattern and splits it into segments. It panics on a
// malformed pattern, which is a programming error.
func Compile(pattern string) []Segment {
	parts := Split(pattern)
	segs := make([]Segment, len(parts))
	for i, p := range parts {
		switch p[0] {
		case ':':
			if len(p) == 1 {
				panic(PatternError(pattern, ErrUnnamedParam))
			}
			segs[i] = Segment{Kind: KindParam, Text: p[1:]}
		case '*':
			if i != len(parts)-1 {
				panic(PatternError(pattern, ErrWildcardNotLast))
			}
			name := p[1:]
			if name == "" {
				name = WildcardKey
			}
			segs[i] = Segment{Kind: KindWildcard, Text: name}
		default:
			segs[i] = Segment{Kind: KindLiteral, Text: p}
		}
	}
	return segs
}
