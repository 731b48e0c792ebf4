package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/netip"
	"slices"
	"strconv"

	"github.com/redmonkez12/quick-flayer-api/internal/httputil"
	"github.com/redmonkez12/quick-flayer-api/internal/logging"
)

// Recorder is told about every rejected request
type Recorder interface {
	RateLimited()
}

type peerContextKey struct{}

// CapturePeer records the socket peer address before anything rewrites
// RemoteAddr. It must run ahead of chi's RealIP middleware.
func CapturePeer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), peerContextKey{}, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ParseTrustedProxies turns IPs and CIDR ranges into prefixes
func ParseTrustedProxies(values []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		if prefix, err := netip.ParsePrefix(v); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", v, err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return prefixes, nil
}

// Middleware limits requests per client IP. The client is the socket peer
// recorded by CapturePeer; a forwarded address is used only when that peer is
// one of trustedProxies. When Redis is unavailable requests are let through.
func Middleware(limiter *Limiter, recorder Recorder, trustedProxies ...netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logging.GetLoggerFromContext(r.Context())
			ip := clientIP(r, trustedProxies)

			result, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				logger.Error("rate limit check failed, allowing request", "error", err.Error())
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

			if !result.Allowed {
				if recorder != nil {
					recorder.RateLimited()
				}
				logger.Warn("rate limit exceeded", "ip", ip)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(result.ResetAfter.Seconds()))))
				httputil.RespondErrorWithCode(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP picks the rate limit key. RemoteAddr may have been rewritten from
// forwarding headers by RealIP; that value is honored only behind a trusted peer.
func clientIP(r *http.Request, trustedProxies []netip.Prefix) string {
	peer, ok := r.Context().Value(peerContextKey{}).(string)
	if !ok {
		return hostOnly(r.RemoteAddr)
	}

	peerHost := hostOnly(peer)
	if !isTrusted(peerHost, trustedProxies) {
		return peerHost
	}

	if forwarded, err := netip.ParseAddr(hostOnly(r.RemoteAddr)); err == nil {
		return forwarded.Unmap().String()
	}
	return peerHost
}

func isTrusted(host string, trustedProxies []netip.Prefix) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return slices.ContainsFunc(trustedProxies, func(p netip.Prefix) bool {
		return p.Contains(addr)
	})
}

// hostOnly strips the port from an address when there is one
func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
