package ratelimit

import (
	"net/http"
	"strings"
)

// UnknownClient is the identifier used when no client address header is present.
const UnknownClient = "unknown"

// ClientIP derives the rate-limit identifier from proxy headers.
//
// Headers are checked in order: x-real-ip, x-forwarded-for (first entry),
// cf-connecting-ip, x-vercel-forwarded-for.
func ClientIP(h http.Header) string {
	if ip := strings.TrimSpace(h.Get("X-Real-Ip")); ip != "" {
		return ip
	}
	if fwd := h.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(h.Get("Cf-Connecting-Ip")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(h.Get("X-Vercel-Forwarded-For")); ip != "" {
		return ip
	}
	return UnknownClient
}
