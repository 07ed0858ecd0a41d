// Package origin checks browser Origin headers on WebSocket upgrades.
package origin

import (
	"net/url"
	"strconv"
	"strings"
)

// Normalize validates a browser Origin value and returns it as
// scheme://host[:port], lowercased, with the scheme's default port dropped.
// The special value "null" is returned unchanged.
func Normalize(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	switch trimmed {
	case "":
		return "", false
	case "null":
		return "null", true
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" || u.Opaque != "" {
		return "", false
	}
	if u.User != nil || u.RawQuery != "" || u.Fragment != "" || (u.Path != "" && u.Path != "/") {
		return "", false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}

	hostname := strings.ToLower(u.Hostname())
	if hostname == "" {
		return "", false
	}
	if strings.Contains(hostname, ":") {
		hostname = "[" + hostname + "]"
	}

	if p := u.Port(); p != "" {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil || n == 0 {
			return "", false
		}
		if !(scheme == "http" && n == 80) && !(scheme == "https" && n == 443) {
			hostname += ":" + strconv.FormatUint(n, 10)
		}
	} else if strings.HasSuffix(u.Host, ":") {
		return "", false
	}
	return scheme + "://" + hostname, true
}

// Allowed reports whether a request carrying the given Origin header may
// upgrade.
//
// An empty allowlist accepts every request, including ones with no Origin
// (native clients). Otherwise the header must normalize to an allowlist entry
// or the allowlist must contain "*". Entries are expected to be normalized.
func Allowed(header string, allowlist []string) bool {
	if len(allowlist) == 0 {
		return true
	}
	normalized, ok := Normalize(header)
	if !ok {
		return false
	}
	for _, allowed := range allowlist {
		if allowed == "*" || allowed == normalized {
			return true
		}
	}
	return false
}
