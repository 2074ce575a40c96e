package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rigo1357/saprotmon/internal/builder"
	pkgerrors "github.com/rigo1357/saprotmon/pkg/errors"
)

// SessionRepository 排课会话数据访问接口
//
// Save 基于 Version 做乐观锁：存储中的版本与入参不一致时返回 ErrOptimisticLock，
// 成功后入参 Version+1。Get 返回的是独立副本，修改不会影响存储。
type SessionRepository interface {
	Create(ctx context.Context, session *builder.SchedulingSession) error
	Get(ctx context.Context, id string) (*builder.SchedulingSession, error)
	Save(ctx context.Context, session *builder.SchedulingSession) error
	Delete(ctx context.Context, id string) error
}

// ── 内存实现 ──

type memoryEntry struct {
	data      []byte
	version   int
	expiresAt time.Time
}

type memorySessionRepo struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemorySessionRepo 创建进程内会话存储
// 条目在空闲 ttl 后过期；以 JSON 快照保存，保证读写隔离
func NewMemorySessionRepo(ttl time.Duration) SessionRepository {
	return &memorySessionRepo{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (r *memorySessionRepo) Create(_ context.Context, session *builder.SchedulingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if e, ok := r.entries[session.ID]; ok && now.Before(e.expiresAt) {
		return pkgerrors.ErrOptimisticLock
	}

	session.Version = 1
	session.UpdatedAt = now
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	r.entries[session.ID] = memoryEntry{data: data, version: 1, expiresAt: now.Add(r.ttl)}
	return nil
}

func (r *memorySessionRepo) Get(_ context.Context, id string) (*builder.SchedulingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.lookup(id)
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	var session builder.SchedulingSession
	if err := json.Unmarshal(e.data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *memorySessionRepo) Save(_ context.Context, session *builder.SchedulingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.lookup(session.ID)
	if !ok {
		return pkgerrors.ErrNotFound
	}
	if e.version != session.Version {
		return pkgerrors.ErrOptimisticLock
	}

	oldVersion, oldUpdated := session.Version, session.UpdatedAt
	now := r.now()
	session.Version = oldVersion + 1
	session.UpdatedAt = now
	data, err := json.Marshal(session)
	if err != nil {
		session.Version, session.UpdatedAt = oldVersion, oldUpdated
		return err
	}
	r.entries[session.ID] = memoryEntry{data: data, version: session.Version, expiresAt: now.Add(r.ttl)}
	return nil
}

func (r *memorySessionRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.lookup(id); !ok {
		return pkgerrors.ErrNotFound
	}
	delete(r.entries, id)
	return nil
}

// lookup 读取未过期条目，顺带清理过期条目；调用方需持有锁
func (r *memorySessionRepo) lookup(id string) (memoryEntry, bool) {
	e, ok := r.entries[id]
	if !ok {
		return memoryEntry{}, false
	}
	if !r.now().Before(e.expiresAt) {
		delete(r.entries, id)
		return memoryEntry{}, false
	}
	return e, true
}
