package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"spot-swing-bot/internal/logger"
)

// unlockScript deletes the lock only while it still holds our token.
const unlockScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// RedisStore keeps the whole ledger document under one key. SET replaces it atomically; the lock is a
// SET NX key with a TTL so a crashed holder cannot block other processes forever.
type RedisStore struct {
	client      redis.Cmdable
	key         string
	lockTimeout time.Duration
	lockTTL     time.Duration

	newToken func() string
}

func NewRedisStore(client redis.Cmdable, key string, lockTimeout time.Duration) *RedisStore {
	return &RedisStore{
		client:      client,
		key:         key,
		lockTimeout: lockTimeout,
		lockTTL:     30 * time.Second,
		newToken:    func() string { return uuid.NewString() },
	}
}

func (s *RedisStore) lockKey() string { return s.key + ":lock" }

func (s *RedisStore) Load(ctx context.Context) (Positions, error) {
	b, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Positions{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	p, skipped, err := Decode(b)
	if err != nil {
		logger.Warn(ctx, "Ledger unreadable, treating as empty", "event", "LEDGER_CORRUPT", "key", s.key, "error", err.Error())
		if err := s.keepCorrupt(ctx, b); err != nil {
			// without a copy the next save would destroy the document
			return nil, fmt.Errorf("keep corrupt ledger: %w", err)
		}
		return Positions{}, nil
	}
	if len(skipped) > 0 {
		logger.Warn(ctx, "Ledger entries unreadable, kept as stored", "event", "LEDGER_ENTRY_INVALID", "key", s.key, "keys", skipped)
	}
	return p, nil
}

// CorruptKey is where the copy of an unparseable document b is kept.
func (s *RedisStore) CorruptKey(b []byte) string { return s.key + ":corrupt:" + digest(b) }

func (s *RedisStore) keepCorrupt(ctx context.Context, b []byte) error {
	backup := s.CorruptKey(b)
	created, err := s.client.SetNX(ctx, backup, string(b), 0).Result()
	if err != nil {
		return err
	}
	if created {
		logger.Warn(ctx, "Corrupt ledger copy kept", "key", backup)
	}
	return nil
}

func (s *RedisStore) Save(ctx context.Context, p Positions) error {
	b, err := Encode(p)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := s.client.Set(ctx, s.key, string(b), 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Lock(ctx context.Context) (func(), error) {
	token := s.newToken()
	deadline := time.Now().Add(s.lockTimeout)
	for {
		ok, err := s.client.SetNX(ctx, s.lockKey(), token, s.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock: %w", err)
		}
		if ok {
			return func() {
				// the caller's ctx may already be cancelled; release anyway
				uctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := s.client.Eval(uctx, unlockScript, []string{s.lockKey()}, token).Err(); err != nil {
					logger.Warn(ctx, "Ledger unlock failed", "key", s.lockKey(), "error", err.Error())
				}
			}, nil
		}
		if !time.Now().Add(lockRetryDelay).Before(deadline) {
			return nil, fmt.Errorf("%w after %s", ErrLockTimeout, s.lockTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
}
