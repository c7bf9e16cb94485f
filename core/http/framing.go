package http

import (
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/searchktools/fast-runtime/core/optimize"
)

// Rules shared by every parser backend. Both implementations must derive
// their byte classes and framing decisions from here so they stay
// byte-for-byte equivalent.

const (
	// DefaultMaxHeaderBytes bounds the request line plus header section.
	DefaultMaxHeaderBytes = 64 << 10

	// MaxMethodLen is the length of the longest known method.
	MaxMethodLen = 7
	// MaxChunkSizeDigits caps the hex digits of a chunk size (2^60 bytes).
	MaxChunkSizeDigits = 15
	// MaxChunkExtBytes caps the extension text on one chunk-size line.
	MaxChunkExtBytes = 1024

	versionLen = len("HTTP/1.1")
)

// Limits bounds what a parser accepts.
type Limits struct {
	// MaxHeaderBytes applies to the request line plus headers, and again
	// separately to a chunked trailer section. Zero selects the default.
	MaxHeaderBytes int
	// MaxBodyBytes caps the decoded body. Zero means unlimited.
	MaxBodyBytes int64
}

// Normalize fills zero fields with defaults.
func (l Limits) Normalize() Limits {
	if l.MaxHeaderBytes <= 0 {
		l.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if l.MaxBodyBytes < 0 {
		l.MaxBodyBytes = 0
	}
	return l
}

// BodyExceeds reports whether n decoded body bytes break the limit.
func (l Limits) BodyExceeds(n int64) bool {
	return l.MaxBodyBytes > 0 && n > l.MaxBodyBytes
}

var methods = map[string]string{
	"GET":     "GET",
	"HEAD":    "HEAD",
	"POST":    "POST",
	"PUT":     "PUT",
	"DELETE":  "DELETE",
	"CONNECT": "CONNECT",
	"OPTIONS": "OPTIONS",
	"TRACE":   "TRACE",
	"PATCH":   "PATCH",
}

// LookupMethod returns the interned method name for b.
func LookupMethod(b []byte) (string, bool) {
	m, ok := methods[string(b)]
	return m, ok
}

var (
	tokenBytes  [256]bool
	valueBytes  [256]bool
	targetBytes [256]bool
	hexValues   [256]int8
)

func init() {
	for i := 0; i < 256; i++ {
		c := byte(i)
		tokenBytes[i] = c < 0x80 && httpguts.IsTokenRune(rune(c))
		valueBytes[i] = httpguts.ValidHeaderFieldValue(string([]byte{c}))
		targetBytes[i] = c > 0x20 && c < 0x7f
		hexValues[i] = -1
	}
	for c := '0'; c <= '9'; c++ {
		hexValues[c] = int8(c - '0')
	}
	for c := 'a'; c <= 'f'; c++ {
		hexValues[c] = int8(c - 'a' + 10)
		hexValues[c-'a'+'A'] = int8(c - 'a' + 10)
	}
}

// IsMethodByte reports whether c may appear in a method.
func IsMethodByte(c byte) bool { return c >= 'A' && c <= 'Z' }

// IsTokenByte reports whether c may appear in a header field name.
func IsTokenByte(c byte) bool { return tokenBytes[c] }

// IsValueByte reports whether c may appear in a header field value.
func IsValueByte(c byte) bool { return valueBytes[c] }

// IsTargetByte reports whether c may appear in a request target.
func IsTargetByte(c byte) bool { return targetBytes[c] }

// IsOWS reports whether c is optional whitespace.
func IsOWS(c byte) bool { return c == ' ' || c == '\t' }

// HexValue returns the value of hex digit c, or -1.
func HexValue(c byte) int { return int(hexValues[c]) }

// CheckVersionByte validates byte c at position pos of "HTTP/d.d".
func CheckVersionByte(pos int, c byte) error {
	switch {
	case pos < 5:
		if c != "HTTP/"[pos] {
			return ErrInvalidVersion
		}
	case pos == 5:
		if c < '0' || c > '9' {
			return ErrInvalidVersion
		}
		if c != '1' {
			return ErrUnsupportedVersion
		}
	case pos == 6:
		if c != '.' {
			return ErrInvalidVersion
		}
	case pos == 7:
		if c < '0' || c > '9' {
			return ErrInvalidVersion
		}
	default:
		return ErrInvalidVersion
	}
	return nil
}

// VersionComplete reports whether pos bytes form a full version token.
func VersionComplete(pos int) bool { return pos == versionLen }

// SplitTarget separates the raw path from the raw query.
func SplitTarget(target string) (path, query string) {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i], target[i+1:]
	}
	return target, ""
}

// TrimOWS strips trailing optional whitespace from a field value.
func TrimOWS(b []byte) []byte {
	for len(b) > 0 && IsOWS(b[len(b)-1]) {
		b = b[:len(b)-1]
	}
	return b
}

// BodyKind is the framing selected at the end of the header section.
type BodyKind uint8

const (
	BodyNone BodyKind = iota
	BodyFixed
	BodyChunked
)

// Framing is the resolved body framing of a request.
type Framing struct {
	Kind   BodyKind
	Length int64 // -1 unless a Content-Length was present
}

// ResolveFraming decides how the body is delimited. It never guesses:
// ambiguous or malformed framing is an error.
func ResolveFraming(headers []Header, limits Limits) (Framing, error) {
	var te []string
	cl := int64(-1)

	for i := range headers {
		h := &headers[i]
		switch {
		case optimize.EqualFold(h.Name, "Transfer-Encoding"):
			te = append(te, h.Value)
		case optimize.EqualFold(h.Name, "Content-Length"):
			n, ok := parseContentLength(h.Value)
			if !ok {
				return Framing{}, ErrInvalidContentLength
			}
			if cl >= 0 && n != cl {
				return Framing{}, ErrConflictingFraming
			}
			cl = n
		}
	}

	if len(te) > 0 {
		if cl >= 0 {
			return Framing{}, ErrConflictingFraming
		}
		if !httpguts.HeaderValuesContainsToken(te, "chunked") || !chunkedIsFinal(te[len(te)-1]) {
			return Framing{}, ErrInvalidTransferEncoding
		}
		return Framing{Kind: BodyChunked, Length: -1}, nil
	}

	if cl > 0 {
		if limits.BodyExceeds(cl) {
			return Framing{}, ErrPayloadTooLarge
		}
		return Framing{Kind: BodyFixed, Length: cl}, nil
	}
	return Framing{Kind: BodyNone, Length: cl}, nil
}

func chunkedIsFinal(v string) bool {
	if i := strings.LastIndexByte(v, ','); i >= 0 {
		v = v[i+1:]
	}
	return optimize.EqualFold(strings.Trim(v, " \t"), "chunked")
}

func parseContentLength(v string) (int64, bool) {
	if v == "" || len(v) > 18 {
		return 0, false
	}
	var n int64
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	return n, true
}
