// Package ratelimit provides Redis-backed rate limiting using the INCR + EXPIRE
// fixed window algorithm. The flash lifecycle uses it to throttle postbacks
// per session, so a client cannot flood the session store with buffers.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whisper/flashscope/internal/log"
)

// Rule defines a rate limiting policy: the Redis key prefix, maximum number of
// requests allowed in the window, and the window duration.
type Rule struct {
	Key    string        // Redis key prefix (e.g., "rl:postback:")
	Limit  int           // max count in the window
	Window time.Duration // time window
}

// RulePostback allows 30 postbacks per minute per session.
var RulePostback = Rule{Key: "rl:postback:", Limit: 30, Window: 1 * time.Minute}

// Limiter performs rate limiting checks against Redis.
type Limiter struct {
	client *redis.Client
}

// NewLimiter creates a Limiter backed by the given Redis client.
func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// Allow checks whether the given identifier is within the rate limit defined by
// rule. It increments the counter in Redis and sets the expiry on first access.
//
// Returns true if the request is allowed, false if rate limited. On Redis
// errors the method fails open (returns true) so that a Redis outage does not
// block legitimate traffic.
func (l *Limiter) Allow(ctx context.Context, identifier string, rule Rule) (bool, error) {
	key := rule.Key + identifier

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		log.Warnf("[ratelimit] redis INCR error key=%s: %v (failing open)", key, err)
		return true, err
	}

	// On the first increment, set the expiry to define the window boundary.
	if count == 1 {
		if err := l.client.Expire(ctx, key, rule.Window).Err(); err != nil {
			log.Warnf("[ratelimit] redis EXPIRE error key=%s: %v (failing open)", key, err)
			// A key without TTL would throttle the identifier forever.
			l.client.Del(ctx, key)
			return true, err
		}
	}

	return int(count) <= rule.Limit, nil
}

// SessionThrottle applies one rule to session ids.
type SessionThrottle struct {
	limiter *Limiter
	rule    Rule
}

// NewSessionThrottle returns a throttle enforcing rule.
func NewSessionThrottle(limiter *Limiter, rule Rule) *SessionThrottle {
	return &SessionThrottle{limiter: limiter, rule: rule}
}

// Allow reports whether sessionID may submit another postback.
func (t *SessionThrottle) Allow(ctx context.Context, sessionID string) (bool, error) {
	return t.limiter.Allow(ctx, sessionID, t.rule)
}
