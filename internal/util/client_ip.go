package util

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the caller IP from request metadata. The first
// X-Forwarded-For hop is used only when trustForwarded is set (i.e. the
// service sits behind a known proxy); otherwise the socket peer wins.
func ClientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
		if forwarded != "" {
			first := strings.TrimSpace(strings.SplitN(forwarded, ",", 2)[0])
			if ip := net.ParseIP(first); ip != nil {
				return ip.String()
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
