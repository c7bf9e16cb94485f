package core

import (
	"encoding/json"
	stdhttp "net/http"
	"strconv"

	"github.com/searchktools/fast-runtime/core/http"
	"github.com/searchktools/fast-runtime/core/router"
)

// Context defines the request context handed to handlers
type Context interface {
	// Request information
	Method() string
	Path() string
	Param(key string) string
	Query(key string) string
	Header(key string) string
	Body() []byte
	Request() *http.Request

	// Response methods
	SetHeader(key, value string)
	String(code int, s string)
	JSON(code int, v any)
	Bytes(code int, data []byte)
	Data(code int, contentType string, data []byte)
	Error(code int, message string)
}

// reqContext renders one response into a reusable buffer
type reqContext struct {
	engine  *Engine
	request *http.Request
	path    string
	params  []router.Param
	query   map[string]string

	status  int
	headers []http.Header
	body    []byte
	written bool
}

func (c *reqContext) reset(e *Engine, req *http.Request, path string, params []router.Param) {
	c.engine = e
	c.request = req
	c.path = path
	c.params = params
	c.query = nil
	c.status = 0
	c.headers = c.headers[:0]
	c.body = c.body[:0]
	c.written = false
}

func (c *reqContext) Method() string { return c.request.Method }

// Path is the routed path. For an absolute-form target it excludes the
// scheme and authority.
func (c *reqContext) Path() string { return c.path }

func (c *reqContext) Request() *http.Request { return c.request }

func (c *reqContext) Body() []byte { return c.request.Body }

func (c *reqContext) Param(key string) string {
	for _, p := range c.params {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}

func (c *reqContext) Query(key string) string {
	if c.query == nil {
		c.query = c.engine.dispatcher.ParseQuery(c.request.RawQuery)
	}
	return c.query[key]
}

func (c *reqContext) Header(key string) string {
	return c.request.Header(key)
}

func (c *reqContext) SetHeader(key, value string) {
	c.headers = append(c.headers, http.Header{Name: key, Value: value})
}

func (c *reqContext) String(code int, s string) {
	c.Data(code, "text/plain; charset=utf-8", []byte(s))
}

func (c *reqContext) JSON(code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.Error(stdhttp.StatusInternalServerError, err.Error())
		return
	}
	c.Data(code, "application/json", data)
}

func (c *reqContext) Bytes(code int, data []byte) {
	c.Data(code, "application/octet-stream", data)
}

func (c *reqContext) Data(code int, contentType string, data []byte) {
	if c.written {
		return
	}
	c.written = true
	c.status = code
	c.SetHeader(HeaderContentType, contentType)
	c.body = append(c.body, data...)
}

func (c *reqContext) Error(code int, message string) {
	c.JSON(code, map[string]string{"error": message})
}

// appendResponse serializes the status line, headers and body.
func appendResponse(b []byte, code int, headers []http.Header, body []byte, head, keepAlive bool) []byte {
	b = append(b, "HTTP/1.1 "...)
	b = strconv.AppendInt(b, int64(code), 10)
	b = append(b, ' ')
	b = append(b, stdhttp.StatusText(code)...)
	b = append(b, "\r\n"...)
	for _, h := range headers {
		b = append(b, h.Name...)
		b = append(b, ": "...)
		b = append(b, h.Value...)
		b = append(b, "\r\n"...)
	}
	b = append(b, HeaderContentLength+": "...)
	b = strconv.AppendInt(b, int64(len(body)), 10)
	b = append(b, "\r\n"...)
	if !keepAlive {
		b = append(b, HeaderConnection+": close\r\n"...)
	}
	b = append(b, "\r\n"...)
	if !head {
		b = append(b, body...)
	}
	return b
}
