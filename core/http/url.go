package http

import (
	"net/url"
	"strings"
)

// URL is a request target split into its components. Path and Fragment are
// percent-decoded; RawPath and RawQuery are the bytes as received.
type URL struct {
	Scheme   string
	Username string
	Password string
	Host     string
	Port     string
	Opaque   string
	Path     string
	RawPath  string
	RawQuery string
	Fragment string
}

// SplitURL splits an origin-form or absolute-form target. Malformed input
// yields ErrInvalidTarget.
func SplitURL(raw string) (URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return URL{}, ErrInvalidTarget
	}

	out := URL{
		Scheme:   u.Scheme,
		Host:     u.Hostname(),
		Port:     u.Port(),
		Opaque:   u.Opaque,
		Path:     u.Path,
		RawPath:  rawPath(u, raw),
		RawQuery: u.RawQuery,
		Fragment: u.Fragment,
	}
	if u.User != nil {
		out.Username = u.User.Username()
		out.Password, _ = u.User.Password()
	}
	return out, nil
}

// rawPath recovers the undecoded path of a target u was parsed from.
func rawPath(u *url.URL, raw string) string {
	if u.Opaque != "" {
		return ""
	}
	raw, _, _ = strings.Cut(raw, "#")
	raw, _, _ = strings.Cut(raw, "?")
	if u.Scheme != "" {
		raw = raw[len(u.Scheme)+1:]
	}
	if strings.HasPrefix(raw, "//") && (u.Scheme != "" || !strings.HasPrefix(raw, "///")) {
		raw = raw[2:]
		i := strings.IndexByte(raw, '/')
		if i < 0 {
			return ""
		}
		raw = raw[i:]
	}
	return raw
}

// URLParser is the reference URL backend.
type URLParser struct{}

// Parse splits raw. See SplitURL.
func (URLParser) Parse(raw string) (URL, error) { return SplitURL(raw) }

// ParseQuery decodes raw. See ParseQuery.
func (URLParser) ParseQuery(raw string) map[string]string { return ParseQuery(raw) }
