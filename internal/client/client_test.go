package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rigo1357/saprotmon/config"
	"github.com/rigo1357/saprotmon/internal/builder"
	"github.com/rigo1357/saprotmon/internal/model"
)

func upstream(srv *httptest.Server) *config.UpstreamConfig {
	return &config.UpstreamConfig{BaseURL: srv.URL + "/api/", Timeout: 2 * time.Second}
}

// ── 课程目录 ──

func TestCatalog_ListCourses(t *testing.T) {
	var gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/courses" {
			t.Errorf("路径错误: %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"total":3,"items":[
			{"code":"INT1001-G1","name":"Lập trình","credits":3,"metadata":{"day":["T2","T4"]}},
			{"code":"MAT2002","name":"Giải tích","credits":4,"metadata":{"original_code":"MAT2002X","day":"T3"}},
			{"code":"PHY1001","name":"Vật lý","credits":2}
		]}`))
	}))
	defer srv.Close()

	c := NewCatalogClient(upstream(srv), zap.NewNop())
	ctx := WithBearerToken(context.Background(), "tok")
	courses, err := c.ListCourses(ctx, "HK1", " ")
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery != "semester=HK1" {
		t.Errorf("空专业不应出现在查询参数中，实际: %s", gotQuery)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("应转发 Bearer Token，实际: %q", gotAuth)
	}
	if len(courses) != 3 {
		t.Fatalf("期望 3 门课程，实际 %d", len(courses))
	}
	if courses[0].OriginalCode != "INT1001" || courses[0].Day != "T2" {
		t.Errorf("课程 0 归一化错误: %+v", courses[0])
	}
	if courses[1].OriginalCode != "MAT2002X" || courses[1].Day != "T3" {
		t.Errorf("课程 1 归一化错误: %+v", courses[1])
	}
	if courses[2].OriginalCode != "PHY1001" {
		t.Errorf("课程 2 归一化错误: %+v", courses[2])
	}
}

func TestCatalog_EmptyListIsNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total":0,"sessions":[]}`))
	}))
	defer srv.Close()

	c := NewCatalogClient(upstream(srv), zap.NewNop())
	sessions, err := c.ListSessions(context.Background(), "INT1001", "HK1")
	if err != nil {
		t.Fatalf("空列表不应报错: %v", err)
	}
	if sessions == nil || len(sessions) != 0 {
		t.Errorf("期望非 nil 空切片，实际: %#v", sessions)
	}
}

func TestCatalog_ListSessions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/courses/INT1001/sessions" || r.URL.Query().Get("semester") != "HK1" {
			t.Errorf("请求错误: %s", r.URL.String())
		}
		_, _ = w.Write([]byte(`{"total":1,"sessions":[{"code":"INT1001-G2","name":"Lập trình","credits":3,"day":"T5","start_time":"12:30","end_time":"16:15","group":"G2"}]}`))
	}))
	defer srv.Close()

	c := NewCatalogClient(upstream(srv), zap.NewNop())
	sessions, err := c.ListSessions(context.Background(), "INT1001", "HK1")
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].OriginalCode != "INT1001" || sessions[0].Semester != "HK1" || sessions[0].Day != "T5" {
		t.Errorf("班组解析错误: %+v", sessions)
	}
}

func TestCatalog_ErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		unavailable bool
	}{
		{"5xx 视为不可用", http.StatusBadGateway, true},
		{"4xx 为状态错误", http.StatusNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"detail":"boom"}`))
			}))
			defer srv.Close()

			c := NewCatalogClient(upstream(srv), zap.NewNop())
			_, err := c.ListSemesters(context.Background())
			if errors.Is(err, ErrCatalogUnavailable) != tt.unavailable {
				t.Fatalf("错误分类不符，实际: %v", err)
			}
			var se *StatusError
			if !errors.As(err, &se) || se.StatusCode != tt.status || se.Detail != "boom" {
				t.Errorf("期望 StatusError(%d, boom)，实际: %v", tt.status, err)
			}
		})
	}
}

func TestCatalog_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewCatalogClient(&config.UpstreamConfig{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, zap.NewNop())
	if _, err := c.ListMajors(context.Background()); !errors.Is(err, ErrCatalogUnavailable) {
		t.Errorf("超时期望 ErrCatalogUnavailable，实际: %v", err)
	}
}

// ── 优化器 ──

func TestOptimizer_Generate(t *testing.T) {
	var body map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/schedule" {
			t.Errorf("请求错误: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"schedule":[{"subject":"A - A","time":"T2_Sáng","instructor":"CNTT","sessions":15,"priority":10,"is_retake":false}],
			"cost":12.5,"db_id":"x","removed_conflicts":[{"subject":"B - B","kept_with":"A - A","reason":"trùng"}]}`))
	}))
	defer srv.Close()

	req, _ := builder.BuildPayload([]model.SelectedSubject{{Code: "A", Name: "A - A", Credits: 3}}, []string{"T2_Sáng"}, model.DefaultConstraints())
	c := NewOptimizerClient(upstream(srv), zap.NewNop())
	res, err := c.Generate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Schedule) != 1 || res.Schedule[0].Time != "T2_Sáng" || res.Cost != 12.5 {
		t.Errorf("结果解析错误: %+v", res)
	}
	if len(res.RemovedConflicts) != 1 || res.RemovedConflicts[0].KeptWith != "A - A" {
		t.Errorf("冲突解析错误: %+v", res.RemovedConflicts)
	}
	if string(body["constraints"]) != "{}" || string(body["available_time_slots"]) != `["T2_Sáng"]` {
		t.Errorf("请求体错误: %s %s", body["constraints"], body["available_time_slots"])
	}
}

func TestOptimizer_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"Không có môn học"}`))
	}))
	defer srv.Close()

	c := NewOptimizerClient(upstream(srv), zap.NewNop())
	_, err := c.Generate(context.Background(), builder.ScheduleRequest{})
	if !errors.Is(err, ErrOptimizerRejected) {
		t.Fatalf("期望 ErrOptimizerRejected，实际: %v", err)
	}
	if DetailOf(err) != "Không có môn học" {
		t.Errorf("detail 错误: %q", DetailOf(err))
	}
}

func TestOptimizer_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`internal`))
	}))
	defer srv.Close()

	c := NewOptimizerClient(upstream(srv), zap.NewNop())
	_, err := c.Generate(context.Background(), builder.ScheduleRequest{})
	if !errors.Is(err, ErrOptimizerUnavailable) || errors.Is(err, ErrOptimizerRejected) {
		t.Fatalf("期望 ErrOptimizerUnavailable，实际: %v", err)
	}
	if DetailOf(err) != "internal" {
		t.Errorf("detail 错误: %q", DetailOf(err))
	}
}
