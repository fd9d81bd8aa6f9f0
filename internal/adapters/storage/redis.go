package storage

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/betledger/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConfig son los parámetros de conexión del backend Redis.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	TLSEnabled bool
	KeyPrefix  string // por defecto "betledger"
}

// RedisStore implementa ports.StateStore como un único string JSON en Redis,
// con el mismo documento que el archivo JSON.
//
// Key schema:
//
//	{prefix}:state   - MarketState en JSON
//	{prefix}:version - se incrementa en cada Save
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore conecta, hace ping y devuelve el store.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("storage.NewRedisStore: ping %s: %w", cfg.Addr, err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "betledger"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}, nil
}

func (s *RedisStore) stateKey() string   { return s.prefix + ":state" }
func (s *RedisStore) versionKey() string { return s.prefix + ":version" }

// Load lee el estado. Sin key, estado inicial.
func (s *RedisStore) Load(ctx context.Context) (domain.MarketState, error) {
	data, err := s.rdb.Get(ctx, s.stateKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.InitialState(), nil
	}
	if err != nil {
		return domain.MarketState{}, fmt.Errorf("storage.RedisStore.Load: get: %w", err)
	}
	state, err := decodeState(data)
	if err != nil {
		return domain.MarketState{}, fmt.Errorf("storage.RedisStore.Load: %w", err)
	}
	return state, nil
}

// Save escribe el estado e incrementa la versión en un solo MULTI/EXEC.
func (s *RedisStore) Save(ctx context.Context, state domain.MarketState) error {
	data, err := encodeState(state)
	if err != nil {
		return fmt.Errorf("storage.RedisStore.Save: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.stateKey(), data, 0)
	pipe.Incr(ctx, s.versionKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storage.RedisStore.Save: exec: %w", err)
	}
	return nil
}

// Version devuelve cuántos Save ha visto el store.
func (s *RedisStore) Version(ctx context.Context) (int64, error) {
	v, err := s.rdb.Get(ctx, s.versionKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage.RedisStore.Version: %w", err)
	}
	return v, nil
}

// Locker devuelve un lock distribuido sobre la misma conexión.
func (s *RedisStore) Locker(ttl time.Duration) *RedisLocker {
	return NewRedisLocker(s.rdb, s.prefix, ttl)
}

// Close cierra la conexión a Redis.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// unlockLua borra el lock solo si todavía guarda el token del caller: nadie
// libera el lock de otro.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

const lockRetryInterval = 25 * time.Millisecond

// RedisLocker implementa ports.Locker con SET NX PX y unlock condicional en Lua.
type RedisLocker struct {
	rdb      *redis.Client
	prefix   string
	ttl      time.Duration
	unlockSc *redis.Script
}

// NewRedisLocker crea el locker. ttl acota cuánto retiene el lock un holder
// que se cayó.
func NewRedisLocker(rdb *redis.Client, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		rdb:      rdb,
		prefix:   prefix,
		ttl:      ttl,
		unlockSc: redis.NewScript(unlockLua),
	}
}

// Acquire reintenta hasta obtener el lock o hasta que ctx expire.
func (lm *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()
	lk := lm.prefix + ":lock:" + key

	for {
		ok, err := lm.rdb.SetNX(ctx, lk, token, lm.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("storage.RedisLocker: acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("storage.RedisLocker: acquire %s: %w: %w", key, domain.ErrLockHeld, ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}

	released := false
	unlock := func() {
		if released {
			return
		}
		released = true

		// context.Background: el ctx del caller puede estar ya cancelado
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lm.unlockSc.Run(unlockCtx, lm.rdb, []string{lk}, token).Err()
	}
	return unlock, nil
}
