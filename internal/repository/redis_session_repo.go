package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rigo1357/saprotmon/internal/builder"
	pkgerrors "github.com/rigo1357/saprotmon/pkg/errors"
	"github.com/rigo1357/saprotmon/pkg/redis"
)

const sessionKeyPrefix = "scheduler:session:"

type redisSessionRepo struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisSessionRepo 创建基于 Redis 的会话存储，支持多实例部署
func NewRedisSessionRepo(rdb *redis.Client, ttl time.Duration) SessionRepository {
	return &redisSessionRepo{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (r *redisSessionRepo) Create(ctx context.Context, session *builder.SchedulingSession) error {
	session.Version = 1
	session.UpdatedAt = time.Now()
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	ok, err := r.rdb.SetNX(ctx, sessionKey(session.ID), data, r.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *redisSessionRepo) Get(ctx context.Context, id string) (*builder.SchedulingSession, error) {
	data, err := r.rdb.Get(ctx, sessionKey(id))
	if err != nil {
		return nil, err
	}
	var session builder.SchedulingSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *redisSessionRepo) Save(ctx context.Context, session *builder.SchedulingSession) error {
	oldVersion, oldUpdated := session.Version, session.UpdatedAt

	err := r.rdb.Update(ctx, sessionKey(session.ID), r.ttl, func(current []byte) ([]byte, error) {
		var stored struct {
			Version int `json:"version"`
		}
		if err := json.Unmarshal(current, &stored); err != nil {
			return nil, err
		}
		if stored.Version != oldVersion {
			return nil, pkgerrors.ErrOptimisticLock
		}
		session.Version = oldVersion + 1
		session.UpdatedAt = time.Now()
		return json.Marshal(session)
	})
	if err != nil {
		session.Version, session.UpdatedAt = oldVersion, oldUpdated
		return err
	}
	return nil
}

func (r *redisSessionRepo) Delete(ctx context.Context, id string) error {
	ok, err := r.rdb.Delete(ctx, sessionKey(id))
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.ErrNotFound
	}
	return nil
}
