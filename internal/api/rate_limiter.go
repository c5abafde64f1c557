package api

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// UserTier identifies the caller's service tier.
type UserTier string

const (
	// TierFree is the default tier.
	TierFree UserTier = "free"
	// TierBasic is the mid tier.
	TierBasic UserTier = "basic"
	// TierPremium is the top tier.
	TierPremium UserTier = "premium"
)

// RateLimiter manages per-user rate limiting for API requests.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex

	freeTierLimit    rate.Limit
	basicTierLimit   rate.Limit
	premiumTierLimit rate.Limit

	burstSize int
}

// NewRateLimiter creates a new rate limiter with per-tier requests/second.
func NewRateLimiter(freeTierRPS, basicTierRPS, premiumTierRPS int) *RateLimiter {
	return &RateLimiter{
		limiters:         make(map[string]*rate.Limiter),
		freeTierLimit:    rate.Limit(freeTierRPS),
		basicTierLimit:   rate.Limit(basicTierRPS),
		premiumTierLimit: rate.Limit(premiumTierRPS),
		burstSize:        10,
	}
}

// getLimiter returns the rate limiter for a specific user and tier.
func (rl *RateLimiter) getLimiter(userID string, tier UserTier) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[userID]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	var limit rate.Limit
	switch tier {
	case TierPremium:
		limit = rl.premiumTierLimit
	case TierBasic:
		limit = rl.basicTierLimit
	default:
		limit = rl.freeTierLimit
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists := rl.limiters[userID]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(limit, rl.burstSize)
	rl.limiters[userID] = limiter

	return limiter
}

// RateLimitMiddleware creates a middleware that enforces rate limiting based
// on the X-User-ID and X-User-Tier headers, falling back to the remote
// address and the free tier.
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get("X-User-ID")
			if userID == "" {
				userID = r.RemoteAddr
			}

			tier := UserTier(r.Header.Get("X-User-Tier"))
			if tier == "" {
				tier = TierFree
			}

			limiter := rl.getLimiter(userID, tier)
			if !limiter.Allow() {
				respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded. Please try again later.", map[string]interface{}{
					"tier":  tier,
					"limit": limiter.Limit(),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
