package middleware

import (
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	sharederrors "github.com/itchan-dev/crosspost/shared/errors"
	"github.com/itchan-dev/crosspost/shared/logger"
	"github.com/itchan-dev/crosspost/shared/middleware/ratelimiter"
	"github.com/itchan-dev/crosspost/shared/utils"
)

func RateLimit(rl *ratelimiter.KeyedRateLimiter, getIdentity func(r *http.Request) (string, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := getIdentity(r)
			if err != nil {
				utils.WriteErrorAndStatusCode(w, err)
				return
			}
			if !rl.Allow(identity) {
				logger.Log.Info("rate limit exceeded", "component", "http", "identity", identity, "path", r.URL.Path)
				utils.WriteErrorAndStatusCode(w, &sharederrors.ErrorWithStatusCode{
					Message:    "Rate limit exceeded, try again later",
					StatusCode: http.StatusTooManyRequests,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func GlobalRateLimit(rl *ratelimiter.KeyedRateLimiter) func(http.Handler) http.Handler {
	return RateLimit(rl, func(r *http.Request) (string, error) { return "global", nil })
}

// GetIP extracts the client IP from RemoteAddr. Forwarding headers are not
// trusted.
func GetIP(r *http.Request) (string, error) {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if net.ParseIP(ip) == nil {
		return "", sharederrors.BadRequest(fmt.Sprintf("invalid IP address: %s", ip))
	}
	return ip, nil
}

// GetProfileKey identifies the (website, profile) pair of the route, so
// live checks against one remote account are paced.
func GetProfileKey(r *http.Request) (string, error) {
	site, profile := chi.URLParam(r, "website"), chi.URLParam(r, "profile")
	if site == "" || profile == "" {
		return "", sharederrors.BadRequest("website and profile are required")
	}
	return site + "/" + profile, nil
}
