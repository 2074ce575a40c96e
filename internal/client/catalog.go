package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/rigo1357/saprotmon/config"
	"github.com/rigo1357/saprotmon/internal/model"
)

// ErrCatalogUnavailable 课程目录不可达、超时或返回 5xx
var ErrCatalogUnavailable = errors.New("课程目录服务不可用")

// CatalogClient 课程目录只读查询接口
// 空列表是合法结果，永远不会作为错误返回
type CatalogClient interface {
	ListCourses(ctx context.Context, semester, major string) ([]model.Course, error)
	ListSessions(ctx context.Context, originalCode, semester string) ([]model.Session, error)
	ListSemesters(ctx context.Context) ([]string, error)
	ListMajors(ctx context.Context) ([]string, error)
}

type catalogClient struct {
	t transport
}

// NewCatalogClient 创建课程目录客户端
func NewCatalogClient(cfg *config.UpstreamConfig, logger *zap.Logger) CatalogClient {
	return &catalogClient{t: newTransport(cfg.BaseURL, cfg.Timeout, logger, ErrCatalogUnavailable)}
}

// ── 线上格式 ──

// dayField 兼容 day 为字符串、字符串数组或 null 的情况；数组取第一个元素
type dayField string

func (d *dayField) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*d = dayField(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		if len(list) > 0 {
			*d = dayField(list[0])
		} else {
			*d = ""
		}
		return nil
	}
	*d = ""
	return nil
}

type courseWire struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Credits    int    `json:"credits"`
	Semester   string `json:"semester"`
	Department string `json:"department"`
	Major      string `json:"major"`
	Metadata   struct {
		OriginalCode string   `json:"original_code"`
		Day          dayField `json:"day"`
	} `json:"metadata"`
}

func (w courseWire) toModel() model.Course {
	c := model.Course{
		Code:         strings.TrimSpace(w.Code),
		Name:         w.Name,
		Credits:      w.Credits,
		Department:   w.Department,
		Major:        w.Major,
		Semester:     w.Semester,
		OriginalCode: w.Metadata.OriginalCode,
		Day:          string(w.Metadata.Day),
	}
	c.Normalize()
	return c
}

type sessionWire struct {
	Code         string   `json:"code"`
	OriginalCode string   `json:"original_code"`
	Name         string   `json:"name"`
	Credits      int      `json:"credits"`
	Department   string   `json:"department"`
	Semester     string   `json:"semester"`
	Day          dayField `json:"day"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	Group        string   `json:"group"`
}

func (w sessionWire) toModel() model.Session {
	s := model.Session{
		Code:         strings.TrimSpace(w.Code),
		OriginalCode: w.OriginalCode,
		Name:         w.Name,
		Credits:      w.Credits,
		Department:   w.Department,
		Semester:     w.Semester,
		Day:          string(w.Day),
		StartTime:    w.StartTime,
		EndTime:      w.EndTime,
		StartDate:    w.StartDate,
		EndDate:      w.EndDate,
		Group:        w.Group,
	}
	s.Normalize()
	return s
}

// ── 查询 ──

// ListCourses GET /courses?semester=&major=
func (c *catalogClient) ListCourses(ctx context.Context, semester, major string) ([]model.Course, error) {
	q := url.Values{}
	if semester != "" {
		q.Set("semester", semester)
	}
	if major = strings.TrimSpace(major); major != "" {
		q.Set("major", major)
	}

	var resp struct {
		Items []courseWire `json:"items"`
	}
	if err := c.t.do(ctx, http.MethodGet, "/courses", q, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]model.Course, 0, len(resp.Items))
	for _, w := range resp.Items {
		out = append(out, w.toModel())
	}
	return out, nil
}

// ListSessions GET /courses/{originalCode}/sessions?semester=
func (c *catalogClient) ListSessions(ctx context.Context, originalCode, semester string) ([]model.Session, error) {
	q := url.Values{}
	if semester != "" {
		q.Set("semester", semester)
	}

	var resp struct {
		Sessions []sessionWire `json:"sessions"`
	}
	path := "/courses/" + url.PathEscape(originalCode) + "/sessions"
	if err := c.t.do(ctx, http.MethodGet, path, q, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]model.Session, 0, len(resp.Sessions))
	for _, w := range resp.Sessions {
		s := w.toModel()
		if s.Semester == "" {
			s.Semester = semester
		}
		out = append(out, s)
	}
	return out, nil
}

// ListSemesters GET /metadata/semesters
func (c *catalogClient) ListSemesters(ctx context.Context) ([]string, error) {
	var resp struct {
		Semesters []string `json:"semesters"`
	}
	if err := c.t.do(ctx, http.MethodGet, "/metadata/semesters", nil, nil, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Semesters), nil
}

// ListMajors GET /metadata/majors
func (c *catalogClient) ListMajors(ctx context.Context) ([]string, error) {
	var resp struct {
		Majors []string `json:"majors"`
	}
	if err := c.t.do(ctx, http.MethodGet, "/metadata/majors", nil, nil, &resp); err != nil {
		return nil, err
	}
	return nonNil(resp.Majors), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
