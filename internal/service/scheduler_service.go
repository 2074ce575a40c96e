package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rigo1357/saprotmon/config"
	"github.com/rigo1357/saprotmon/internal/builder"
	"github.com/rigo1357/saprotmon/internal/client"
	"github.com/rigo1357/saprotmon/internal/dto"
	"github.com/rigo1357/saprotmon/internal/model"
	"github.com/rigo1357/saprotmon/internal/repository"
	pkgerrors "github.com/rigo1357/saprotmon/pkg/errors"
)

// ── 排课会话业务错误 ──

var (
	ErrSessionNotFound  = errors.New("排课会话不存在")
	ErrNoScheduleResult = errors.New("尚未生成课表")
)

// maxSaveAttempts 乐观锁冲突时的最大重试次数
const maxSaveAttempts = 3

// SchedulerService 排课会话业务接口
//
// 每次修改都是 加载 → 状态迁移 → 带版本校验保存；
// 版本冲突时重新加载并重放迁移，最多 maxSaveAttempts 次。
// 会话只对创建者可见，其他用户访问一律返回 ErrSessionNotFound。
type SchedulerService interface {
	CreateSession(ctx context.Context, userID string, req *dto.CreateSessionRequest) (*dto.SessionResponse, error)
	GetSession(ctx context.Context, userID, sessionID string) (*dto.SessionResponse, error)
	DeleteSession(ctx context.Context, userID, sessionID string) error

	UpdateStudyInfo(ctx context.Context, userID, sessionID string, req *dto.UpdateStudyInfoRequest) (*dto.SessionResponse, error)
	SetMaxCredits(ctx context.Context, userID, sessionID string, req *dto.SetMaxCreditsRequest) (*dto.SessionResponse, error)
	SetTab(ctx context.Context, userID, sessionID string, req *dto.SetTabRequest) (*dto.SessionResponse, error)

	ToggleSubject(ctx context.Context, userID, sessionID string, req *dto.ToggleSubjectRequest) (*dto.ToggleResponse, error)
	RemoveSubject(ctx context.Context, userID, sessionID, originalCode string) (*dto.SessionResponse, error)
	ReorderSubject(ctx context.Context, userID, sessionID string, req *dto.ReorderSubjectRequest) (*dto.SessionResponse, error)

	SetFreeTime(ctx context.Context, userID, sessionID string, req *dto.SetFreeTimeRequest) (*dto.SessionResponse, error)
	ToggleFreeTime(ctx context.Context, userID, sessionID string, req *dto.ToggleFreeTimeRequest) (*dto.SessionResponse, error)
	UpdateConstraints(ctx context.Context, userID, sessionID string, req *dto.UpdateConstraintsRequest) (*dto.SessionResponse, error)

	PreviewRequest(ctx context.Context, userID, sessionID string) (*builder.ScheduleRequest, error)
	Generate(ctx context.Context, userID, sessionID string) (*dto.ScheduleResultResponse, error)
	GetResult(ctx context.Context, userID, sessionID string) (*dto.ScheduleResultResponse, error)
}

type schedulerService struct {
	repo             *repository.Repository
	catalog          client.CatalogClient
	optimizer        client.OptimizerClient
	optimizerTimeout time.Duration
	logger           *zap.Logger
	now              func() time.Time
	newID            func() string
}

// NewSchedulerService 创建 SchedulerService 实例
func NewSchedulerService(cfg *config.Config, repo *repository.Repository, clients Clients, logger *zap.Logger) SchedulerService {
	return &schedulerService{
		repo:             repo,
		catalog:          clients.Catalog,
		optimizer:        clients.Optimizer,
		optimizerTimeout: cfg.Optimizer.Timeout,
		logger:           logger,
		now:              time.Now,
		newID:            func() string { return uuid.New().String() },
	}
}

// ── 加载与保存 ──

// load 读取会话并校验归属
func (s *schedulerService) load(ctx context.Context, userID, sessionID string) (*builder.SchedulingSession, error) {
	sess, err := s.repo.Session.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		s.logger.Error("查询排课会话失败", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}
	if sess.OwnerID != userID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// mutate 加载 → fn → 保存；版本冲突时重放 fn
// fn 返回错误时不保存，错误原样返回
func (s *schedulerService) mutate(ctx context.Context, userID, sessionID string, fn func(*builder.SchedulingSession) error) (*builder.SchedulingSession, error) {
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		sess, err := s.load(ctx, userID, sessionID)
		if err != nil {
			return nil, err
		}
		if err := fn(sess); err != nil {
			return nil, err
		}

		err = s.repo.Session.Save(ctx, sess)
		if err == nil {
			return sess, nil
		}
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("保存排课会话失败", zap.String("session_id", sessionID), zap.Error(err))
			return nil, err
		}
		s.logger.Debug("排课会话版本冲突，重试",
			zap.String("session_id", sessionID),
			zap.Int("attempt", attempt),
		)
	}
	s.logger.Warn("排课会话并发冲突，放弃保存", zap.String("session_id", sessionID))
	return nil, pkgerrors.ErrOptimisticLock
}

func (s *schedulerService) mutateView(ctx context.Context, userID, sessionID string, fn func(*builder.SchedulingSession) error) (*dto.SessionResponse, error) {
	sess, err := s.mutate(ctx, userID, sessionID, fn)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(sess, s.now()), nil
}

// ═══════════════════════════════════════════════════════════
// 会话
// ═══════════════════════════════════════════════════════════

func (s *schedulerService) CreateSession(ctx context.Context, userID string, req *dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	sess := builder.NewSession(s.newID(), userID, s.now())
	sess.SetStudyInfo(req.Semester, req.Major)
	if err := sess.SetMaxCredits(req.MaxCredits); err != nil {
		return nil, err
	}

	if err := s.repo.Session.Create(ctx, sess); err != nil {
		s.logger.Error("创建排课会话失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("排课会话已创建",
		zap.String("session_id", sess.ID),
		zap.String("user_id", userID),
		zap.String("semester", req.Semester),
	)
	return toSessionResponse(sess, s.now()), nil
}

func (s *schedulerService) GetSession(ctx context.Context, userID, sessionID string) (*dto.SessionResponse, error) {
	sess, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(sess, s.now()), nil
}

func (s *schedulerService) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if _, err := s.load(ctx, userID, sessionID); err != nil {
		return err
	}
	if err := s.repo.Session.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return ErrSessionNotFound
		}
		s.logger.Error("删除排课会话失败", zap.String("session_id", sessionID), zap.Error(err))
		return err
	}
	return nil
}

// ═══════════════════════════════════════════════════════════
// 表单字段
// ═══════════════════════════════════════════════════════════

func (s *schedulerService) UpdateStudyInfo(ctx context.Context, userID, sessionID string, req *dto.UpdateStudyInfoRequest) (*dto.SessionResponse, error) {
	return s.mutateView(ctx, userID, sessionID, func(sess *builder.SchedulingSession) error {
		sess.SetStudyInfo(req.Semester, req.Major)
		return nil
	})
}

func (s *schedulerService) SetMaxCredits(ctx context.Context, userID, sessionID string, req *dto.SetMaxCreditsRequest) (*dto.SessionResponse, error) {
	return s.mutateView(ctx, userID, sessionID, func(sess *builder.SchedulingSession) error {
		return sess.SetMaxCredits(req.MaxCredits)
	})
}

func (s *schedulerService) SetTab(ctx context.Context, userID, sessionID string, req *dto.SetTabRequest) (*dto.SessionResponse, error) {
	return s.mutateView(ctx, userID, sessionID, func(sess *builder.SchedulingSession) error {
		return sess.SetTab(model.Tab(req.Tab))
	})
}

func (s *schedulerService) SetFreeTime(ctx context.Context, userID, sessionID string, req *dto.SetFreeTimeRequest) (*dto.SessionResponse, error) {
	return s.mutateView(ctx, userID, sessionID, func(sess *builder.SchedulingSession) error {
		sess.SetFreeTime(req.FreeTime)
		return nil
	})
}

func (s *schedulerService) ToggleFreeTime(ctx context.Context, userID, sessionID string, req *dto.ToggleFreeTimeRequest) (*dto.SessionResponse, error) {
	return s.mutateView(ctx, userID, sessionID, func(sess *builder.SchedulingSession) error {
		return sess.ToggleFreeTime(model.DayTag(req.Day), model.Period(req.Period))
	})
}

func (s *schedulerService) UpdateConstraints(ctx context.Context, userID, sessionID string, req *dto.UpdateConstraintsRequest) (*dto.SessionResponse, error) {
	return s.mutateView(ctx, userID, sessionID, func(sess *builder.SchedulingSession) error {
		sess.SetConstraints(req.Apply(sess.Constraints))
		return nil
	})
}

// ═══════════════════════════════════════════════════════════
// 选课
// ═══════════════════════════════════════════════════════════
//
// 勾选分两阶段：
//   1. BeginToggle 并保存（取消勾选在此结束）
//   2. 在任何保存之外查询班组，再以令牌 CompleteToggle
// 两阶段之间同一课程再次被勾选会使令牌失效，迟到的解析结果被丢弃。

func (s *schedulerService) ToggleSubject(ctx context.Context, userID, sessionID string, req *dto.ToggleSubjectRequest) (*dto.ToggleResponse, error) {
	var ticket builder.ToggleTicket
	sess, err := s.mutate(ctx, userID, sessionID, func(sess *builder.SchedulingSession) error {
		ticket = sess.BeginToggle(req.ToCourse())
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ticket.Action != builder.TogglePending {
		return &dto.ToggleResponse{Action: string(ticket.Action), Session: toSessionResponse(sess, s.now())}, nil
	}

	code := ticket.Course.OriginalCode
	sessions, lookupErr := s.catalog.ListSessions(ctx, code, ticket.Semester)
	if lookupErr != nil {
		s.logger.Warn("查询开课班组失败，使用默认时间窗",
			zap.String("original_code", code),
			zap.String("semester", ticket.Semester),
			zap.Error(lookupErr),
		)
	}
	subject := builder.BuildSubject(ticket.Course, sessions, lookupErr, ticket.IsRetake, s.now())

	// 解析完成后即使调用方已断开也要落库，否则令牌会一直挂起
	saveCtx := context.WithoutCancel(ctx)
	sess, err = s.mutate(saveCtx, userID, sessionID, func(sess *builder.SchedulingSession) error {
		return sess.CompleteToggle(code, ticket.Token, subject)
	})
	if errors.Is(err, builder.ErrStaleResolution) {
		s.logger.Info("丢弃过期的班组解析结果",
			zap.String("session_id", sessionID),
			zap.String("original_code", code),
			zap.Uint64("token", ticket.Token),
		)
		if sess, err = s.load(saveCtx, userID, sessionID); err != nil {
			return nil, err
		}
		return &dto.ToggleResponse{Action: "discarded", Session: toSessionResponse(sess, s.now())}, nil
	}
	if err != nil {
		return nil, err
	}

	subject.Priority = builder.PriorityAt(sess.Selection.Len()-1, subject.IsRetake)
	return &dto.ToggleResponse{Action: "added", Subject: &subject, Session: toSessionResponse(sess, s.now())}, nil
}

func (s *schedulerService) RemoveSubject(ctx context.Context, userID, sessionID, originalCode string) (*dto.SessionResponse, error) {
	return s.mutateView(ctx, userID, sessionID, func(sess *builder.SchedulingSession) error {
		sess.RemoveSubject(originalCode)
		return nil
	})
}

func (s *schedulerService) ReorderSubject(ctx context.Context, userID, sessionID string, req *dto.ReorderSubjectRequest) (*dto.SessionResponse, error) {
	return s.mutateView(ctx, userID, sessionID, func(sess *builder.SchedulingSession) error {
		_, err := sess.Reorder(*req.Index, req.Direction)
		return err
	})
}

// ═══════════════════════════════════════════════════════════
// 生成课表
// ═══════════════════════════════════════════════════════════

func (s *schedulerService) PreviewRequest(ctx context.Context, userID, sessionID string) (*builder.ScheduleRequest, error) {
	sess, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	req, err := sess.AssembleRequest()
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Generate 提交优化器
//
// 流程：
//   - BeginGeneration 并保存（校验失败或已有进行中的尝试时不发起网络调用）
//   - 调用优化器
//   - 以 attemptID 记录成功 / 失败；失败不会修改选课与上一次成功结果
func (s *schedulerService) Generate(ctx context.Context, userID, sessionID string) (*dto.ScheduleResultResponse, error) {
	attemptID := s.newID()
	var req builder.ScheduleRequest
	_, err := s.mutate(ctx, userID, sessionID, func(sess *builder.SchedulingSession) error {
		var err error
		req, err = sess.BeginGeneration(s.now(), s.optimizerTimeout, attemptID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("提交排课请求",
		zap.String("session_id", sessionID),
		zap.String("attempt_id", attemptID),
		zap.Int("subjects", len(req.Subjects)),
		zap.Int("slots", len(req.AvailableTimeSlots)),
	)

	result, genErr := s.optimizer.Generate(ctx, req)

	recordCtx := context.WithoutCancel(ctx)
	if genErr != nil {
		s.logger.Error("排课优化失败",
			zap.String("session_id", sessionID),
			zap.String("attempt_id", attemptID),
			zap.Error(genErr),
		)
		_, err := s.mutate(recordCtx, userID, sessionID, func(sess *builder.SchedulingSession) error {
			return sess.FailGeneration(attemptID, genErr, client.DetailOf(genErr), s.now())
		})
		if err != nil && !errors.Is(err, builder.ErrStaleAttempt) {
			s.logger.Warn("记录排课失败状态失败", zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil, genErr
	}

	sess, err := s.mutate(recordCtx, userID, sessionID, func(sess *builder.SchedulingSession) error {
		return sess.FinishGeneration(attemptID, *result, s.now())
	})
	if err != nil {
		if errors.Is(err, builder.ErrStaleAttempt) {
			s.logger.Warn("排课结果已被更新的尝试取代",
				zap.String("session_id", sessionID),
				zap.String("attempt_id", attemptID),
			)
		}
		return nil, err
	}

	s.logger.Info("排课完成",
		zap.String("session_id", sessionID),
		zap.String("attempt_id", attemptID),
		zap.Int("scheduled", len(result.Schedule)),
		zap.Int("conflicts", len(result.RemovedConflicts)),
		zap.Float64("cost", result.Cost),
	)
	return toResultResponse(sess)
}

func (s *schedulerService) GetResult(ctx context.Context, userID, sessionID string) (*dto.ScheduleResultResponse, error) {
	sess, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return toResultResponse(sess)
}
