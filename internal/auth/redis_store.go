package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orders/internal/config"
)

const maxTxRetries = 5

// RedisStore shares sessions between processes and survives restarts.
type RedisStore struct {
	client *goredis.Client
	prefix string
}

func newRedisStore(lc fx.Lifecycle, cfg config.Auth, redisCfg config.Redis, logger *zap.Logger) *RedisStore {
	client := goredis.NewClient(&goredis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("ping redis session store: %w", err)
			}
			logger.Info("redis session store connected", zap.String("addr", redisCfg.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return NewRedisStore(client, cfg.SessionPrefix)
}

// NewRedisStore wraps an existing client; the caller owns its lifecycle.
func NewRedisStore(client *goredis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) tokenKey(token string) string { return s.prefix + "token:" + token }

func (s *RedisStore) userKey(username string) string { return s.prefix + "user:" + username }

func (s *RedisStore) Save(ctx context.Context, session Session) error {
	body, err := json.Marshal(session)
	if err != nil {
		return err
	}
	userKey := s.userKey(session.Username)

	return s.retry(ctx, func(tx *goredis.Tx) error {
		old, err := tx.Get(ctx, userKey).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			if old != "" {
				p.Del(ctx, s.tokenKey(old))
			}
			p.Set(ctx, s.tokenKey(session.Token), body, 0)
			p.Set(ctx, userKey, session.Token, 0)
			return nil
		})
		return err
	}, userKey)
}

func (s *RedisStore) Resolve(ctx context.Context, token string) (Session, error) {
	raw, err := s.client.Get(ctx, s.tokenKey(token)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}

func (s *RedisStore) Revoke(ctx context.Context, token string) (bool, error) {
	session, err := s.Resolve(ctx, token)
	if errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	tokenKey := s.tokenKey(token)
	userKey := s.userKey(session.Username)
	revoked := false

	err = s.retry(ctx, func(tx *goredis.Tx) error {
		current, err := tx.Get(ctx, userKey).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		var del *goredis.IntCmd
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			del = p.Del(ctx, tokenKey)
			if current == token {
				p.Del(ctx, userKey)
			}
			return nil
		})
		if err != nil {
			return err
		}
		revoked = del.Val() > 0
		return nil
	}, tokenKey, userKey)
	return revoked, err
}

// retry runs fn under WATCH, retrying when a watched key changed concurrently.
func (s *RedisStore) retry(ctx context.Context, fn func(*goredis.Tx) error, keys ...string) error {
	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, goredis.TxFailedErr) {
			return err
		}
	}
	return err
}
