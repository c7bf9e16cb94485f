package http

import (
	"strconv"

	"golang.org/x/net/http/httpguts"

	"github.com/searchktools/fast-runtime/core/optimize"
)

// Header is one field line, stored as received.
type Header struct {
	Name  string
	Value string
}

// Request is the result of parsing one HTTP/1.x request. A Request returned
// by a parser is owned by that parser and stays valid until its next Reset.
type Request struct {
	Method     string
	Target     string // raw path, before '?'
	RawQuery   string // raw, after the first '?'
	ProtoMajor int
	ProtoMinor int

	// Headers and Trailers keep arrival order and the sender's spelling.
	Headers  []Header
	Trailers []Header

	// ContentLength is -1 when the request carried no Content-Length.
	ContentLength int64
	Chunked       bool

	Body     []byte
	Complete bool

	query map[string]string
}

// Reset clears the request for reuse (memory not freed, just reset)
func (r *Request) Reset() {
	r.Method = ""
	r.Target = ""
	r.RawQuery = ""
	r.ProtoMajor = 0
	r.ProtoMinor = 0
	r.Headers = r.Headers[:0]
	r.Trailers = r.Trailers[:0]
	r.ContentLength = -1
	r.Chunked = false
	r.Body = r.Body[:0]
	r.Complete = false

	// Clear map without freeing memory
	for k := range r.query {
		delete(r.query, k)
	}
}

// Lookup returns the first value of the named header. Names match without
// regard to ASCII case.
func (r *Request) Lookup(name string) (string, bool) {
	for i := range r.Headers {
		if optimize.EqualFold(r.Headers[i].Name, name) {
			return r.Headers[i].Value, true
		}
	}
	return "", false
}

// Header returns the first value of the named header, or "".
func (r *Request) Header(name string) string {
	v, _ := r.Lookup(name)
	return v
}

// Values returns every value of the named header in arrival order.
func (r *Request) Values(name string) []string {
	var vs []string
	for i := range r.Headers {
		if optimize.EqualFold(r.Headers[i].Name, name) {
			vs = append(vs, r.Headers[i].Value)
		}
	}
	return vs
}

// Host returns the Host header.
func (r *Request) Host() string {
	return r.Header("Host")
}

// Proto returns the protocol string, e.g. "HTTP/1.1".
func (r *Request) Proto() string {
	return "HTTP/" + strconv.Itoa(r.ProtoMajor) + "." + strconv.Itoa(r.ProtoMinor)
}

// KeepAlive reports whether the connection may carry another request
// after this one.
func (r *Request) KeepAlive() bool {
	conn := r.Values("Connection")
	if r.ProtoMajor == 1 && r.ProtoMinor == 0 {
		return httpguts.HeaderValuesContainsToken(conn, "keep-alive")
	}
	return !httpguts.HeaderValuesContainsToken(conn, "close")
}

// Upgrade reports whether the client asked to switch protocols.
func (r *Request) Upgrade() bool {
	if _, ok := r.Lookup("Upgrade"); !ok {
		return false
	}
	return httpguts.HeaderValuesContainsToken(r.Values("Connection"), "upgrade")
}

// Query returns the decoded query parameters. The map is built on first use.
func (r *Request) Query() map[string]string {
	if r.query == nil {
		r.query = make(map[string]string)
	}
	if len(r.query) == 0 && r.RawQuery != "" {
		parseQuery(r.query, r.RawQuery)
	}
	return r.query
}
