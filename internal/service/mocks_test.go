package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rigo1357/saprotmon/config"
	"github.com/rigo1357/saprotmon/internal/builder"
	"github.com/rigo1357/saprotmon/internal/model"
	"github.com/rigo1357/saprotmon/internal/repository"
	pkgerrors "github.com/rigo1357/saprotmon/pkg/errors"
)

// ── Mock CatalogClient ──

type mockCatalog struct {
	mu           sync.Mutex
	courses      []model.Course
	coursesErr   error
	sessions     map[string][]model.Session
	sessionsErr  error
	semesters    []string
	majors       []string
	metadataErr  error
	sessionCalls int
	// onListSessions 在返回班组前调用，用于模拟解析期间的并发操作
	onListSessions func()
}

func (m *mockCatalog) ListCourses(_ context.Context, _, _ string) ([]model.Course, error) {
	return m.courses, m.coursesErr
}

func (m *mockCatalog) ListSessions(_ context.Context, originalCode, _ string) ([]model.Session, error) {
	m.mu.Lock()
	m.sessionCalls++
	hook := m.onListSessions
	m.onListSessions = nil
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if m.sessionsErr != nil {
		return nil, m.sessionsErr
	}
	return m.sessions[originalCode], nil
}

func (m *mockCatalog) ListSemesters(_ context.Context) ([]string, error) {
	return m.semesters, m.metadataErr
}

func (m *mockCatalog) ListMajors(_ context.Context) ([]string, error) {
	return m.majors, m.metadataErr
}

// ── Mock OptimizerClient ──

type mockOptimizer struct {
	result  *model.ScheduleResult
	err     error
	calls   int
	lastReq builder.ScheduleRequest
	onCall  func()
}

func (m *mockOptimizer) Generate(_ context.Context, req builder.ScheduleRequest) (*model.ScheduleResult, error) {
	m.calls++
	m.lastReq = req
	if m.onCall != nil {
		m.onCall()
	}
	return m.result, m.err
}

// ── 冲突注入的 SessionRepository ──

// flakyRepo 前 conflicts 次 Save 返回乐观锁冲突
type flakyRepo struct {
	repository.SessionRepository
	conflicts int
	saves     int
}

func (r *flakyRepo) Save(ctx context.Context, s *builder.SchedulingSession) error {
	r.saves++
	if r.conflicts > 0 {
		r.conflicts--
		return pkgerrors.ErrOptimisticLock
	}
	return r.SessionRepository.Save(ctx, s)
}

// ── 测试辅助 ──

var fixedNow = time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Optimizer: config.UpstreamConfig{BaseURL: "http://optimizer", Timeout: 15 * time.Second},
		Catalog:   config.UpstreamConfig{BaseURL: "http://catalog", Timeout: 15 * time.Second},
		Session:   config.SessionConfig{TTL: time.Hour},
	}
}

type testEnv struct {
	svc       *schedulerService
	repo      *repository.Repository
	catalog   *mockCatalog
	optimizer *mockOptimizer
}

func setupTestScheduler() *testEnv {
	repo := repository.NewRepository(nil, time.Hour)
	cat := &mockCatalog{sessions: map[string][]model.Session{}}
	opt := &mockOptimizer{}
	svc := NewSchedulerService(testConfig(), repo, Clients{Catalog: cat, Optimizer: opt}, zap.NewNop()).(*schedulerService)
	svc.now = func() time.Time { return fixedNow }
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return &testEnv{svc: svc, repo: repo, catalog: cat, optimizer: opt}
}
