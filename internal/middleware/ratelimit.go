package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tradejournal/internal/ratelimit"
	"github.com/tradejournal/pkg/response"
)

const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// TooManyRequestsMessage is the body message of a rejected request
const TooManyRequestsMessage = "too many requests, please try again later"

// Checker decides whether one more request is allowed for an identifier
type Checker interface {
	Check(ctx context.Context, identifier string) ratelimit.Decision
}

// KeyFunc derives the rate limit identifier of a request
type KeyFunc func(c *gin.Context) string

// ByIP keys requests by client IP. Used for unauthenticated routes.
func ByIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// ByUserOrIP keys by authenticated user, falling back to client IP
func ByUserOrIP(c *gin.Context) string {
	if userID := GetUserID(c); userID != 0 {
		return "user:" + strconv.FormatUint(uint64(userID), 10)
	}
	return ByIP(c)
}

// GlobalKey puts every caller in one shared bucket
func GlobalKey(*gin.Context) string {
	return ratelimit.GlobalIdentifier
}

// RateLimit rejects requests over the limiter's budget with 429.
// Every response carries the X-RateLimit-* headers; Reset is in epoch milliseconds.
func RateLimit(limiter Checker, keyFunc KeyFunc) gin.HandlerFunc {
	if keyFunc == nil {
		keyFunc = ByUserOrIP
	}
	return func(c *gin.Context) {
		d := limiter.Check(c.Request.Context(), keyFunc(c))

		c.Header(HeaderRateLimitLimit, strconv.Itoa(d.Limit))
		c.Header(HeaderRateLimitRemaining, strconv.Itoa(d.Remaining))
		c.Header(HeaderRateLimitReset, strconv.FormatInt(d.Reset, 10))

		if !d.Allowed {
			retry := time.Until(time.UnixMilli(d.Reset))
			secs := int64((retry + time.Second - 1) / time.Second)
			if secs < 1 {
				secs = 1
			}
			c.Header(HeaderRetryAfter, strconv.FormatInt(secs, 10))
			response.TooManyRequests(c, TooManyRequestsMessage)
			c.Abort()
			return
		}

		c.Next()
	}
}
