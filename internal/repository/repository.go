package repository

import (
	"time"

	"github.com/rigo1357/saprotmon/pkg/redis"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Session SessionRepository
}

// NewRepository 创建 Repository 聚合
// rdb 为 nil 时使用进程内存储（单实例部署）
func NewRepository(rdb *redis.Client, ttl time.Duration) *Repository {
	if rdb == nil {
		return &Repository{Session: NewMemorySessionRepo(ttl)}
	}
	return &Repository{Session: NewRedisSessionRepo(rdb, ttl)}
}
