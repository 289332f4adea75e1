package cache

import (
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
)

const DefaultKeyPrefix = "tmio"

// Keyer derives cache keys from upstream requests.
type Keyer struct {
	Prefix string
}

func NewKeyer(prefix string) Keyer {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return Keyer{Prefix: prefix}
}

// Key returns "<prefix>:<METHOD>:<path>[?<query>]". Parameter names and the
// values of repeated parameters are sorted, utm_* parameters are dropped.
func (k Keyer) Key(method, rawPath string, query url.Values) string {
	if method == "" {
		method = http.MethodGet
	}
	key := k.Prefix + ":" + strings.ToUpper(method) + ":" + NormalizePath(rawPath)
	if q := canonicalQuery(query); q != "" {
		key += "?" + q
	}
	return key
}

// NormalizePath unescapes and cleans p so that "player/x", "/player/x/" and
// "/player//x" name the same resource.
func NormalizePath(p string) string {
	decoded, err := url.PathUnescape(p)
	if err != nil {
		decoded = p
	}
	return path.Clean("/" + decoded)
}

// StripTracking returns a copy of q without utm_* parameters.
func StripTracking(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for name, values := range q {
		if strings.HasPrefix(strings.ToLower(name), "utm_") {
			continue
		}
		out[name] = append([]string(nil), values...)
	}
	return out
}

func canonicalQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	clean := StripTracking(q)
	for _, values := range clean {
		sort.Strings(values)
	}
	// Encode sorts by parameter name.
	return clean.Encode()
}
