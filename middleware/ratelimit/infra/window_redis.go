package infra

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"feedback-drop/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// hitScript incrementa o contador e arma o PEXPIRE no primeiro hit, devolvendo
// {count, pttl}. Se a chave por algum motivo ficou sem TTL, rearma.
var hitScript = redis.NewScript(`
local c = redis.call('INCR', KEYS[1])
if c == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {c, ttl}
`)

// RedisWindowStore compartilha janelas fixas entre várias instâncias.
//
// A chave gravada no Redis é o hash da Key, e expira junto com a janela, então
// o endereço do cliente não fica retido depois da contagem.
type RedisWindowStore struct {
	rdb    redis.Scripter
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

type RedisWindowOption func(*RedisWindowStore)

func WithWindowPrefix(prefix string) RedisWindowOption {
	return func(s *RedisWindowStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithRedisClock(now func() time.Time) RedisWindowOption {
	return func(s *RedisWindowStore) { s.now = now }
}

func NewRedisWindowStore(rdb redis.Scripter, limit int, window time.Duration, opts ...RedisWindowOption) *RedisWindowStore {
	s := &RedisWindowStore{
		rdb:    rdb,
		prefix: "ratelimit:window",
		limit:  limit,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisWindowStore) Limit() int             { return s.limit }
func (s *RedisWindowStore) Window() time.Duration { return s.window }

// Hit implementa domain.WindowStore.
func (s *RedisWindowStore) Hit(ctx context.Context, key domain.Key) (domain.Window, error) {
	res, err := hitScript.Run(ctx, s.rdb, []string{s.redisKey(key)}, s.window.Milliseconds()).Int64Slice()
	if err != nil {
		return domain.Window{}, fmt.Errorf("redis window hit: %w", err)
	}
	if len(res) != 2 {
		return domain.Window{}, fmt.Errorf("redis window hit: unexpected reply of %d values", len(res))
	}

	return domain.Window{
		Count:   int(res[0]),
		Limit:   s.limit,
		ResetAt: s.now().Add(time.Duration(res[1]) * time.Millisecond),
	}, nil
}

func (s *RedisWindowStore) redisKey(key domain.Key) string {
	sum := sha256.Sum256([]byte(key))
	return s.prefix + ":" + hex.EncodeToString(sum[:16])
}
