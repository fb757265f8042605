package scene

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/puzpuzpuz/xsync/v3"
)

// Limiter gates /watch per session. Reserve records now as the last call when
// it allows the call, so the window is charged whatever the upstream does.
type Limiter interface {
	Reserve(ctx context.Context, key string, now time.Time) (allowed bool, retryAfter time.Duration, err error)
}

// RetryAfterSeconds rounds a wait up to whole seconds.
func RetryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

type MemoryLimiter struct {
	Window time.Duration
	last   *xsync.MapOf[string, time.Time]
}

func NewMemoryLimiter(window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{Window: window, last: xsync.NewMapOf[string, time.Time]()}
}

func (l *MemoryLimiter) Reserve(_ context.Context, key string, now time.Time) (bool, time.Duration, error) {
	if l.Window <= 0 {
		return true, 0, nil
	}
	allowed := false
	var wait time.Duration
	l.last.Compute(key, func(prev time.Time, loaded bool) (time.Time, bool) {
		if loaded {
			if elapsed := now.Sub(prev); elapsed < l.Window {
				wait = l.Window - elapsed
				return prev, false
			}
		}
		allowed = true
		return now, false
	})
	if wait > l.Window {
		wait = l.Window
	}
	return allowed, wait, nil
}

// Prune drops entries whose window has passed.
func (l *MemoryLimiter) Prune(now time.Time) int {
	removed := 0
	l.last.Range(func(key string, _ time.Time) bool {
		l.last.Compute(key, func(prev time.Time, loaded bool) (time.Time, bool) {
			if loaded && now.Sub(prev) >= l.Window {
				removed++
				return prev, true
			}
			return prev, !loaded
		})
		return true
	})
	return removed
}

func (l *MemoryLimiter) Len() int {
	return l.last.Size()
}

// reserveScript returns 0 after recording ARGV[1], or the milliseconds left in the window.
var reserveScript = redis.NewScript(`
local last = redis.call('GET', KEYS[1])
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
if last then
  local elapsed = now - tonumber(last)
  if elapsed < window then
    return window - elapsed
  end
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 0
`)

// RedisLimiter shares the watch window across replicas.
type RedisLimiter struct {
	Client *redis.Client
	Window time.Duration
	Prefix string
}

func NewRedisLimiter(client *redis.Client, window time.Duration) *RedisLimiter {
	return &RedisLimiter{Client: client, Window: window, Prefix: "watch_rate:"}
}

func (l *RedisLimiter) Reserve(ctx context.Context, key string, now time.Time) (bool, time.Duration, error) {
	if l.Window <= 0 {
		return true, 0, nil
	}
	windowMs := l.Window.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}
	left, err := reserveScript.Run(ctx, l.Client, []string{l.Prefix + key},
		strconv.FormatInt(now.UnixMilli(), 10), strconv.FormatInt(windowMs, 10)).Int64()
	if err != nil {
		return false, 0, fmt.Errorf("reserve watch slot: %w", err)
	}
	if left <= 0 {
		return true, 0, nil
	}
	wait := time.Duration(left) * time.Millisecond
	if wait > l.Window {
		wait = l.Window
	}
	return false, wait, nil
}
