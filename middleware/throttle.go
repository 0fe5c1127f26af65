package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/upb/dino-games/backend/internal/observability"
	"github.com/upb/dino-games/backend/services/ratelimit"
	"github.com/upb/dino-games/backend/utils"
	"go.uber.org/zap"
)

type peerAddrKey struct{}

// RateLimiter counts a request against a client key
type RateLimiter interface {
	CheckLimit(ctx context.Context, key string) (*ratelimit.RateLimitResult, error)
}

// PeerAddr records the socket peer address. It must run before chi's RealIP,
// which rewrites RemoteAddr from client-supplied headers.
func PeerAddr(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), peerAddrKey{}, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ParseTrustedProxies parses IPs and CIDR blocks of the reverse proxies whose
// forwarding headers may name the client
func ParseTrustedProxies(entries []string) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", entry)
			}
			bits := 128
			if ip.To4() != nil {
				ip = ip.To4()
				bits = 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

// Throttle limits requests per client IP. The client is the socket peer unless
// the peer is a trusted proxy, in which case the forwarded address is used.
// When the counter store is unavailable requests are let through.
func Throttle(limiter RateLimiter, trustedProxies []*net.IPNet, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			result, err := limiter.CheckLimit(ctx, clientIP(r, trustedProxies))
			if err != nil {
				observability.RequestLogger(ctx, logger).Warn("throttle check failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.RequestsRemaining))

			if !result.Allowed {
				observability.ThrottledRequests.Inc()
				_ = utils.WriteTooManyRequests(w, "Too many requests, please try again later", result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request, trustedProxies []*net.IPNet) string {
	peer, ok := r.Context().Value(peerAddrKey{}).(string)
	if !ok {
		peer = r.RemoteAddr
	}
	peerHost := hostOf(peer)

	ip := net.ParseIP(peerHost)
	if ip == nil {
		return peerHost
	}
	for _, n := range trustedProxies {
		if n.Contains(ip) {
			return hostOf(r.RemoteAddr)
		}
	}
	return peerHost
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
