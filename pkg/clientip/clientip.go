package clientip

import (
	"net"
	"net/http"
	"strings"
)

var proxyHeaders = []string{"CF-Connecting-IP", "X-Real-IP"}

// FromRequest returns the normalized client address or "" when none of
// the sources holds a valid IP.
func FromRequest(r *http.Request) string {
	for _, h := range proxyHeaders {
		if ip := normalize(r.Header.Get(h)); ip != "" {
			return ip
		}
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for part := range strings.SplitSeq(fwd, ",") {
			if ip := normalize(part); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return normalize(r.RemoteAddr)
	}
	return normalize(host)
}

func normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	return ip.String()
}
