package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per client key. Buckets untouched for
// longer than idle are dropped on the next sweep.
type RateLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

type client struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewRateLimiter allows perMinute requests per minute per key with the given burst.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 5
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &RateLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		idle:    10 * time.Minute,
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

// Allow reports whether key may make a request now.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.idle {
		for k, cl := range l.clients {
			if now.Sub(cl.seen) > l.idle {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	cl, ok := l.clients[key]
	if !ok {
		cl = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = cl
	}
	cl.seen = now
	return cl.limiter.AllowN(now, 1)
}

// ContextKeyRateSubject holds the client named in the body of a request that
// has no session yet.
const ContextKeyRateSubject = "rate_subject"

const (
	maxSubjectPeek = 8 << 10
	maxSubjectLen  = 64
)

// Middleware limits requests per subject, client IP and route. The subject is
// the authenticated account, or the one set by SubjectFromBody in front of
// authentication, or empty.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.GetString(ContextKeyAccountID)
		if subject == "" {
			subject = c.GetString(ContextKeyRateSubject)
		}
		key := subject + "|" + c.ClientIP() + "|" + c.FullPath()
		if !l.Allow(key) {
			c.Header("Retry-After", "60")
			abort(c, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, try again later")
			return
		}
		c.Next()
	}
}

// SubjectFromBody takes the rate limit subject from a string field of the JSON
// body. The body is left intact for the handler. Oversized or malformed bodies
// leave the subject empty.
func SubjectFromBody(field string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}
		head, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSubjectPeek))
		c.Request.Body = peekedBody{
			Reader: io.MultiReader(bytes.NewReader(head), c.Request.Body),
			Closer: c.Request.Body,
		}
		if err == nil {
			var fields map[string]json.RawMessage
			var subject string
			if json.Unmarshal(head, &fields) == nil &&
				json.Unmarshal(fields[field], &subject) == nil &&
				subject != "" && len(subject) <= maxSubjectLen {
				c.Set(ContextKeyRateSubject, subject)
			}
		}
		c.Next()
	}
}

type peekedBody struct {
	io.Reader
	io.Closer
}
