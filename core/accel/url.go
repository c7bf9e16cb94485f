package accel

import (
	"net/netip"
	"strings"

	"github.com/searchktools/fast-runtime/core/http"
)

// URLParser splits request targets and decodes query strings.
type URLParser struct{}

// NewURLParser returns the accelerated URL backend.
func NewURLParser() *URLParser {
	return &URLParser{}
}

// Parse splits raw. See SplitURL.
func (*URLParser) Parse(raw string) (http.URL, error) { return SplitURL(raw) }

// ParseQuery decodes raw. See ParseQuery.
func (*URLParser) ParseQuery(raw string) map[string]string { return ParseQuery(raw) }

type escapeMode uint8

const (
	modePath escapeMode = iota
	modeHost
	modeUserinfo
)

// SplitURL splits raw into scheme, userinfo, host, port, path, query and
// fragment. Components without escapes are substrings of raw.
func SplitURL(raw string) (http.URL, error) {
	var u http.URL

	rest, frag, hasFrag := strings.Cut(raw, "#")
	for i := 0; i < len(rest); i++ {
		if rest[i] < 0x20 || rest[i] == 0x7f {
			return http.URL{}, http.ErrInvalidTarget
		}
	}
	if rest == "*" {
		u.Path, u.RawPath = "*", "*"
		return u, fragment(&u, frag, hasFrag)
	}

	scheme, rest, ok := cutScheme(rest)
	if !ok {
		return http.URL{}, http.ErrInvalidTarget
	}
	u.Scheme = lowerScheme(scheme)
	rest, u.RawQuery, _ = strings.Cut(rest, "?")

	if len(rest) == 0 || rest[0] != '/' {
		if u.Scheme != "" {
			u.Opaque = rest
			return u, fragment(&u, frag, hasFrag)
		}
		seg := rest
		if i := strings.IndexByte(seg, '/'); i >= 0 {
			seg = seg[:i]
		}
		if strings.IndexByte(seg, ':') >= 0 {
			return http.URL{}, http.ErrInvalidTarget
		}
	}

	if strings.HasPrefix(rest, "//") && (u.Scheme != "" || !strings.HasPrefix(rest, "///")) {
		authority := rest[2:]
		rest = ""
		if i := strings.IndexByte(authority, '/'); i >= 0 {
			authority, rest = authority[:i], authority[i:]
		}
		if err := splitAuthority(&u, authority); err != nil {
			return http.URL{}, err
		}
	}

	path, err := unescape(rest, modePath)
	if err != nil {
		return http.URL{}, err
	}
	u.Path, u.RawPath = path, rest
	return u, fragment(&u, frag, hasFrag)
}

func fragment(u *http.URL, frag string, ok bool) error {
	if !ok {
		return nil
	}
	f, err := unescape(frag, modePath)
	if err != nil {
		return err
	}
	u.Fragment = f
	return nil
}

// cutScheme splits off a leading "scheme:". A string that does not start
// with a scheme is returned whole. A leading ':' is malformed.
func cutScheme(s string) (scheme, rest string, ok bool) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z':
		case '0' <= c && c <= '9' || c == '+' || c == '-' || c == '.':
			if i == 0 {
				return "", s, true
			}
		case c == ':':
			if i == 0 {
				return "", "", false
			}
			return s[:i], s[i+1:], true
		default:
			return "", s, true
		}
	}
	return "", s, true
}

func lowerScheme(s string) string {
	for i := 0; i < len(s); i++ {
		if 'A' <= s[i] && s[i] <= 'Z' {
			return strings.ToLower(s)
		}
	}
	return s
}

func splitAuthority(u *http.URL, authority string) error {
	hostport := authority
	at := strings.LastIndexByte(authority, '@')
	if at >= 0 {
		hostport = authority[at+1:]
	}

	host, port, ipv6, err := splitHost(hostport)
	if err != nil {
		return err
	}
	if host, err = unescape(host, modeHost); err != nil {
		return err
	}
	if ipv6 {
		if addr, err := netip.ParseAddr(host); err != nil || !addr.Is6() {
			return http.ErrInvalidTarget
		}
	}
	u.Host, u.Port = host, port
	if at < 0 {
		return nil
	}

	userinfo := authority[:at]
	for i := 0; i < len(userinfo); i++ {
		if !userinfoByte(userinfo[i]) {
			return http.ErrInvalidTarget
		}
	}
	name, pass, _ := strings.Cut(userinfo, ":")
	if u.Username, err = unescape(name, modeUserinfo); err != nil {
		return err
	}
	if u.Password, err = unescape(pass, modeUserinfo); err != nil {
		return err
	}
	return nil
}

// splitHost separates an optional ":port" and strips IPv6 brackets.
func splitHost(hostport string) (host, port string, ipv6 bool, err error) {
	if strings.HasPrefix(hostport, "[") {
		end := strings.LastIndexByte(hostport, ']')
		if end < 0 {
			return "", "", false, http.ErrInvalidTarget
		}
		colonPort := hostport[end+1:]
		if !validPort(colonPort) {
			return "", "", false, http.ErrInvalidTarget
		}
		if colonPort != "" {
			port = colonPort[1:]
		}
		return hostport[1:end], port, true, nil
	}
	if i := strings.LastIndexByte(hostport, ':'); i >= 0 {
		if !validPort(hostport[i:]) {
			return "", "", false, http.ErrInvalidTarget
		}
		return hostport[:i], hostport[i+1:], false, nil
	}
	return hostport, "", false, nil
}

func validPort(s string) bool {
	if s == "" {
		return true
	}
	if s[0] != ':' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func userinfoByte(c byte) bool {
	if alnum(c) {
		return true
	}
	switch c {
	case '-', '.', '_', ':', '~', '!', '$', '&', '\'', '(', ')', '*', '+', ',', ';', '=', '%', '@':
		return true
	}
	return false
}

func hostByte(c byte) bool {
	if alnum(c) || c >= 0x80 {
		return true
	}
	switch c {
	case '-', '.', '_', '~', '!', '$', '&', '\'', '(', ')', '*', '+', ',', ';', '=', ':', '[', ']', '<', '>', '"':
		return true
	}
	return false
}

func alnum(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}

// unescape decodes %XX sequences. '+' is kept as is. In host mode only
// host bytes are allowed and an escape may not produce an ASCII byte,
// except for "%25".
func unescape(s string, mode escapeMode) (string, error) {
	n := 0
	for i := 0; i < len(s); {
		switch c := s[i]; {
		case c == '%':
			if i+2 >= len(s) || !ishex(s[i+1]) || !ishex(s[i+2]) {
				return "", http.ErrInvalidTarget
			}
			if mode == modeHost && unhex(s[i+1]) < 8 && s[i:i+3] != "%25" {
				return "", http.ErrInvalidTarget
			}
			n++
			i += 3
		case mode == modeHost && !hostByte(c):
			return "", http.ErrInvalidTarget
		default:
			i++
		}
	}
	if n == 0 {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s) - 2*n)
	for i := 0; i < len(s); i++ {
		if s[i] == '%' {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String(), nil
}

func ishex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}
