package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Скрипт атомарно увеличивает счётчик и выставляет TTL на первом запросе окна.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {count, ttl}
`)

// Redis хранит окна в Redis; истечение окна обеспечивается TTL ключа.
type Redis struct {
	client *redis.Client
	policy Policy
	prefix string
	now    func() time.Time
}

// NewRedis создаёт лимитер поверх клиента Redis.
func NewRedis(client *redis.Client, policy Policy, prefix string) *Redis {
	return &Redis{
		client: client,
		policy: policy,
		prefix: prefix,
		now:    time.Now,
	}
}

// Allow реализует Limiter.
func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	const op = "ratelimit.Redis.Allow"

	res, err := fixedWindowScript.Run(ctx, r.client, []string{r.prefix + key}, r.policy.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("%s: unexpected script result %v", op, res)
	}

	ttl := time.Duration(res[1]) * time.Millisecond
	if ttl < 0 {
		ttl = r.policy.Window
	}
	return r.policy.decide(int(res[0]), r.now().Add(ttl)), nil
}
