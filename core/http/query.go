package http

import (
	"net/url"
	"strings"
)

// ParseQuery decodes a raw query string into a map. Later keys overwrite
// earlier ones; pairs that fail to unescape are kept raw.
func ParseQuery(raw string) map[string]string {
	m := make(map[string]string)
	parseQuery(m, raw)
	return m
}

func parseQuery(dst map[string]string, raw string) {
	for raw != "" {
		var pair string
		pair, raw, _ = strings.Cut(raw, "&")
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		dst[unescape(k)] = unescape(v)
	}
}

func unescape(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}
