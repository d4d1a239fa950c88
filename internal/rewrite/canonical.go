package rewrite

import (
	"net/url"
	"strings"
)

// trackingParams are share-source markers appended by the platform.
var trackingParams = map[string]struct{}{
	"s":       {},
	"t":       {},
	"ref_src": {},
	"ref_url": {},
}

// TrackingParams returns the query keys removed by ModeCanonicalize.
func TrackingParams() []string {
	return []string{"s", "t", "ref_src", "ref_url"}
}

// canonicalize drops tracking parameters from u. Surviving parameters keep
// their order and raw encoding. When nothing is removed raw is returned as is.
func canonicalize(raw string, u *url.URL) string {
	if u.RawQuery == "" {
		return raw
	}

	segments := strings.Split(u.RawQuery, "&")
	kept := segments[:0:0]
	removed := false
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		key, _, _ := strings.Cut(seg, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if _, ok := trackingParams[key]; ok {
			removed = true
			continue
		}
		kept = append(kept, seg)
	}
	if !removed {
		return raw
	}

	clean := *u
	clean.RawQuery = strings.Join(kept, "&")
	clean.ForceQuery = false
	return clean.String()
}
