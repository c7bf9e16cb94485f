package accel

import (
	"net/url"
	"strings"
)

// ParseQuery decodes a raw query string. Later keys overwrite earlier
// ones and pairs that fail to unescape are kept raw.
func ParseQuery(raw string) map[string]string {
	m := make(map[string]string, strings.Count(raw, "&")+1)
	for len(raw) > 0 {
		end := strings.IndexByte(raw, '&')
		if end < 0 {
			end = len(raw)
		}
		pair := raw[:end]
		if end < len(raw) {
			raw = raw[end+1:]
		} else {
			raw = ""
		}
		if pair == "" {
			continue
		}

		key, value := pair, ""
		if eq := strings.IndexByte(pair, '='); eq >= 0 {
			key, value = pair[:eq], pair[eq+1:]
		}
		m[decode(key)] = decode(value)
	}
	return m
}

func decode(s string) string {
	if strings.IndexByte(s, '%') < 0 && strings.IndexByte(s, '+') < 0 {
		return s
	}
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}
