package http

import (
	"reflect"
	"testing"
)

func TestRequestHeaderLookup(t *testing.T) {
	req := parseAll(t, []byte("GET / HTTP/1.1\r\nHOST: example.com\r\nAccept: a\r\naccept: b\r\n\r\n"))

	if got := req.Host(); got != "example.com" {
		t.Errorf("Expected example.com, got %q", got)
	}
	if got := req.Values("ACCEPT"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Expected [a b], got %v", got)
	}
	if _, ok := req.Lookup("X-Missing"); ok {
		t.Error("Expected missing header")
	}
	// sender spelling is preserved
	if req.Headers[0].Name != "HOST" {
		t.Errorf("Expected HOST, got %s", req.Headers[0].Name)
	}
}

func TestRequestKeepAlive(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"GET / HTTP/1.1\r\n\r\n", true},
		{"GET / HTTP/1.1\r\nConnection: close\r\n\r\n", false},
		{"GET / HTTP/1.1\r\nConnection: Upgrade, Close\r\n\r\n", false},
		{"GET / HTTP/1.0\r\n\r\n", false},
		{"GET / HTTP/1.0\r\nConnection: keep-alive\r\n\r\n", true},
	}

	for _, tt := range tests {
		req := parseAll(t, []byte(tt.raw))
		if got := req.KeepAlive(); got != tt.want {
			t.Errorf("%q: Expected %v, got %v", tt.raw, tt.want, got)
		}
	}
}

func TestRequestUpgrade(t *testing.T) {
	req := parseAll(t, []byte("GET /ws HTTP/1.1\r\nConnection: keep-alive, Upgrade\r\nUpgrade: websocket\r\n\r\n"))
	if !req.Upgrade() {
		t.Error("Expected upgrade request")
	}
	req = parseAll(t, []byte("GET /ws HTTP/1.1\r\nUpgrade: websocket\r\n\r\n"))
	if req.Upgrade() {
		t.Error("Upgrade without Connection: upgrade should not count")
	}
}

func TestRequestQuery(t *testing.T) {
	p := NewParser(Limits{})
	p.Write([]byte("GET /s?q=hello+world&lang=go&empty=&flag&bad=%zz HTTP/1.1\r\n\r\n"))
	req, err := p.Result()
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]string{
		"q":     "hello world",
		"lang":  "go",
		"empty": "",
		"flag":  "",
		"bad":   "%zz",
	}
	if got := req.Query(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	// the cached map must not survive Reset
	p.Reset()
	p.Write([]byte("GET /s?other=1 HTTP/1.1\r\n\r\n"))
	req, _ = p.Result()
	if got := req.Query(); !reflect.DeepEqual(got, map[string]string{"other": "1"}) {
		t.Errorf("Expected only other=1, got %v", got)
	}
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		raw  string
		want map[string]string
	}{
		{"", map[string]string{}},
		{"a=1&&b=2", map[string]string{"a": "1", "b": "2"}},
		{"a=1&a=2", map[string]string{"a": "2"}},
		{"k%20ey=v%2Fal", map[string]string{"k ey": "v/al"}},
	}

	for _, tt := range tests {
		if got := ParseQuery(tt.raw); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseQuery(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestSplitTarget(t *testing.T) {
	tests := []struct {
		target, path, query string
	}{
		{"/a/b", "/a/b", ""},
		{"/a?x=1?y", "/a", "x=1?y"},
		{"/?", "/", ""},
	}

	for _, tt := range tests {
		path, query := SplitTarget(tt.target)
		if path != tt.path || query != tt.query {
			t.Errorf("SplitTarget(%q) = %q, %q", tt.target, path, query)
		}
	}
}

func TestSplitURL(t *testing.T) {
	tests := []struct {
		raw  string
		want URL
	}{
		{"/users/42", URL{Path: "/users/42", RawPath: "/users/42"}},
		{"*", URL{Path: "*", RawPath: "*"}},
		{"/a%2Fb?x=1#f%21", URL{Path: "/a/b", RawPath: "/a%2Fb", RawQuery: "x=1", Fragment: "f!"}},
		{"HTTP://u:p@Example.com:8080/x", URL{
			Scheme: "http", Username: "u", Password: "p",
			Host: "Example.com", Port: "8080", Path: "/x", RawPath: "/x",
		}},
		{"http://[::1]/v6", URL{Scheme: "http", Host: "::1", Path: "/v6", RawPath: "/v6"}},
		{"http://h", URL{Scheme: "http", Host: "h"}},
		{"http:///p", URL{Scheme: "http", Path: "/p", RawPath: "/p"}},
		{"mailto:a@b", URL{Scheme: "mailto", Opaque: "a@b"}},
	}

	for _, tt := range tests {
		got, err := SplitURL(tt.raw)
		if err != nil {
			t.Errorf("SplitURL(%q): %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("SplitURL(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}

	for _, bad := range []string{":x", "/%zz", "http://h:port/", "1a:b"} {
		if _, err := SplitURL(bad); err != ErrInvalidTarget {
			t.Errorf("SplitURL(%q): expected ErrInvalidTarget, got %v", bad, err)
		}
	}
}

func TestStateString(t *testing.T) {
	if StateBodyChunked.String() != "BODY_CHUNKED" {
		t.Errorf("unexpected name %s", StateBodyChunked)
	}
	if StateError.String() != "ERROR" {
		t.Errorf("unexpected name %s", StateError)
	}
}
