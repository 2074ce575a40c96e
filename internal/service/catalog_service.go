package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rigo1357/saprotmon/internal/builder"
	"github.com/rigo1357/saprotmon/internal/client"
	"github.com/rigo1357/saprotmon/internal/dto"
	"github.com/rigo1357/saprotmon/internal/repository"
	pkgerrors "github.com/rigo1357/saprotmon/pkg/errors"
)

// CatalogService 课程目录查询业务接口
type CatalogService interface {
	// Metadata 并发获取学期与专业列表
	Metadata(ctx context.Context) (*dto.CatalogMetadataResponse, error)
	// ListCourses 课程列表；目录不可用时返回空列表并标记 CatalogUnavailable
	ListCourses(ctx context.Context, userID string, req *dto.CourseListRequest) (*dto.CourseListResponse, error)
}

type catalogService struct {
	repo    *repository.Repository
	catalog client.CatalogClient
	logger  *zap.Logger
}

// NewCatalogService 创建 CatalogService 实例
func NewCatalogService(repo *repository.Repository, catalog client.CatalogClient, logger *zap.Logger) CatalogService {
	return &catalogService{repo: repo, catalog: catalog, logger: logger}
}

func (s *catalogService) Metadata(ctx context.Context) (*dto.CatalogMetadataResponse, error) {
	var semesters, majors []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		semesters, err = s.catalog.ListSemesters(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		majors, err = s.catalog.ListMajors(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("获取课程目录元数据失败", zap.Error(err))
		return nil, err
	}

	return &dto.CatalogMetadataResponse{Semesters: semesters, Majors: majors}, nil
}

func (s *catalogService) ListCourses(ctx context.Context, userID string, req *dto.CourseListRequest) (*dto.CourseListResponse, error) {
	var sess *builder.SchedulingSession
	if req.SessionID != "" {
		got, err := s.repo.Session.Get(ctx, req.SessionID)
		if err != nil {
			if errors.Is(err, pkgerrors.ErrNotFound) {
				return nil, ErrSessionNotFound
			}
			return nil, err
		}
		if got.OwnerID != userID {
			return nil, ErrSessionNotFound
		}
		sess = got
	}

	courses, err := s.catalog.ListCourses(ctx, req.Semester, req.Major)
	if err != nil {
		if errors.Is(err, client.ErrCatalogUnavailable) {
			s.logger.Warn("课程目录不可用，返回空列表",
				zap.String("semester", req.Semester),
				zap.Error(err),
			)
			return &dto.CourseListResponse{Items: []dto.CourseItem{}, CatalogUnavailable: true}, nil
		}
		s.logger.Error("查询课程列表失败", zap.Error(err))
		return nil, err
	}

	items := make([]dto.CourseItem, 0, len(courses))
	for _, c := range courses {
		item := dto.CourseItem{Course: c}
		if sess != nil {
			item.Selected = sess.Selection.Contains(c)
			item.Pending = sess.IsPending(c.OriginalCode)
		}
		items = append(items, item)
	}
	return &dto.CourseListResponse{Total: len(items), Items: items}, nil
}
