package api

import (
	"math"
	"net"
	"net/http"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/time/rate"
)

// rateLimit applies a token bucket per client address. The number of tracked
// clients is bounded by an LRU; perSecond <= 0 disables limiting.
func rateLimit(perSecond float64, maxClients int) func(http.Handler) http.Handler {
	if perSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiters, err := lru.New(maxClients)
	if err != nil {
		panic(err)
	}
	burst := int(math.Max(1, math.Ceil(perSecond*2)))

	limiterFor := func(key string) *rate.Limiter {
		if v, ok := limiters.Get(key); ok {
			return v.(*rate.Limiter)
		}
		lim := rate.NewLimiter(rate.Limit(perSecond), burst)
		if found, _ := limiters.ContainsOrAdd(key, lim); found {
			if v, ok := limiters.Get(key); ok {
				return v.(*rate.Limiter)
			}
		}
		return lim
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiterFor(clientKey(r)).Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
