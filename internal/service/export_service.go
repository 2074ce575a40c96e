package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/rigo1357/saprotmon/internal/builder"
	"github.com/rigo1357/saprotmon/internal/model"
	"github.com/rigo1357/saprotmon/internal/repository"
	pkgerrors "github.com/rigo1357/saprotmon/pkg/errors"
)

// ── 导出模块业务错误 ──

var ErrExportGenerateFail = errors.New("生成导出文件失败")

// ExportService 导出业务接口
//
// 设计说明：
//   - 导出对象是会话最近一次成功的排课结果，无结果时返回 ErrNoScheduleResult
//   - Excel：Sheet "Lịch học" 为逐门课程明细，Sheet "Thời khóa biểu" 为 时段 × 星期 周课表
//   - ICS：每门课程一个按周重复的 VEVENT，起止日期取课程的 start_date / end_date
//   - 以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头
type ExportService interface {
	ExportXLSX(ctx context.Context, userID, sessionID string) (*bytes.Buffer, string, error)
	ExportICS(ctx context.Context, userID, sessionID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo     *repository.Repository
	logger   *zap.Logger
	location *time.Location
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger, location: scheduleLocation()}
}

// scheduleLocation 课表所在时区
func scheduleLocation() *time.Location {
	if loc, err := time.LoadLocation("Asia/Ho_Chi_Minh"); err == nil {
		return loc
	}
	return time.FixedZone("ICT", 7*3600)
}

// outcome 读取会话的最近一次成功结果
func (s *exportService) outcome(ctx context.Context, userID, sessionID string) (*builder.SchedulingSession, error) {
	sess, err := s.repo.Session.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		s.logger.Error("查询排课会话失败", zap.Error(err))
		return nil, err
	}
	if sess.OwnerID != userID {
		return nil, ErrSessionNotFound
	}
	if sess.Outcome == nil {
		return nil, ErrNoScheduleResult
	}
	return sess, nil
}

func exportFilename(sess *builder.SchedulingSession, ext string) string {
	name := "thoi-khoa-bieu"
	if sem := strings.TrimSpace(sess.StudyInfo.Semester); sem != "" {
		name += "_" + sem
	}
	return name + "." + ext
}

// ═══════════════════════════════════════════════════════════
// ExportXLSX 导出为 Excel
// ═══════════════════════════════════════════════════════════

var detailHeaders = []string{"Môn học", "Thời gian", "Giảng viên", "Số buổi", "Giờ bắt đầu", "Giờ kết thúc", "Ngày bắt đầu", "Ngày kết thúc", "Ưu tiên", "Học lại"}

const (
	detailSheet = "Lịch học"
	gridSheet   = "Thời khóa biểu"
)

func (s *exportService) ExportXLSX(ctx context.Context, userID, sessionID string) (*bytes.Buffer, string, error) {
	sess, err := s.outcome(ctx, userID, sessionID)
	if err != nil {
		return nil, "", err
	}
	items := sess.Outcome.Result.Schedule

	f := excelize.NewFile()
	defer f.Close()

	idx, _ := f.NewSheet(detailSheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	wrapStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})

	// ── 明细 ──
	f.SetColWidth(detailSheet, "A", "A", 40)
	f.SetColWidth(detailSheet, "B", "C", 18)
	f.SetColWidth(detailSheet, "D", "J", 14)
	for i, h := range detailHeaders {
		f.SetCellValue(detailSheet, cell(colName(i), 1), h)
	}
	f.SetCellStyle(detailSheet, "A1", cell(colName(len(detailHeaders)-1), 1), headerStyle)

	for i, it := range items {
		row := i + 2
		retake := "Không"
		if it.IsRetake {
			retake = "Có"
		}
		values := []any{
			it.Subject,
			it.Time,
			it.Instructor,
			it.Sessions,
			it.StartTime,
			it.EndTime,
			it.StartDate,
			it.EndDate,
			fmt.Sprintf("%d/10", it.Priority),
			retake,
		}
		for col, v := range values {
			f.SetCellValue(detailSheet, cell(colName(col), row), v)
		}
	}

	// ── 周课表 ──
	if _, err := f.NewSheet(gridSheet); err != nil {
		s.logger.Error("创建 Sheet 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	f.SetColWidth(gridSheet, "A", "A", 18)
	f.SetColWidth(gridSheet, "B", "H", 26)
	f.SetCellValue(gridSheet, "A1", "Buổi")
	for i, d := range model.Days {
		f.SetCellValue(gridSheet, cell(colName(i+1), 1), string(d))
	}
	f.SetCellStyle(gridSheet, "A1", "H1", headerStyle)

	for r, row := range builder.BuildGrid(sess.CellMap()) {
		rowNum := r + 2
		f.SetCellValue(gridSheet, cell("A", rowNum), fmt.Sprintf("%s (%s-%s)", row.Label, row.Start, row.End))
		for c, gc := range row.Cells {
			text := "-"
			if len(gc.Items) > 0 {
				parts := make([]string, 0, len(gc.Items))
				for _, it := range gc.Items {
					parts = append(parts, it.Subject)
				}
				text = strings.Join(parts, "\n")
			}
			f.SetCellValue(gridSheet, cell(colName(c+1), rowNum), text)
		}
		f.SetCellStyle(gridSheet, cell("B", rowNum), cell("H", rowNum), wrapStyle)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	return buf, exportFilename(sess, "xlsx"), nil
}

// ═══════════════════════════════════════════════════════════
// ExportICS 导出为 iCalendar
// ═══════════════════════════════════════════════════════════

const (
	icsDateLayout  = "2006-01-02"
	icsClockLayout = "15:04"
	icsUTCLayout   = "20060102T150405Z"
)

func (s *exportService) ExportICS(ctx context.Context, userID, sessionID string) (*bytes.Buffer, string, error) {
	sess, err := s.outcome(ctx, userID, sessionID)
	if err != nil {
		return nil, "", err
	}
	o := sess.Outcome

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//smart-scheduler//schedule export//VI")

	for i, it := range o.Result.Schedule {
		start, end, until, ok := s.occurrence(it, o.GeneratedAt)
		if !ok {
			s.logger.Warn("跳过无法解析时间的课程",
				zap.String("subject", it.Subject),
				zap.String("time", it.Time),
			)
			continue
		}

		event := cal.AddEvent(fmt.Sprintf("%s-%d@smart-scheduler", o.AttemptID, i))
		event.SetDtStampTime(o.GeneratedAt)
		event.SetSummary(it.Subject)
		event.SetStartAt(start)
		event.SetEndAt(end)
		event.SetProperty(ics.ComponentPropertyRrule, "FREQ=WEEKLY;UNTIL="+until.UTC().Format(icsUTCLayout))
		if it.Instructor != "" {
			event.SetDescription(fmt.Sprintf("Giảng viên: %s | Ưu tiên: %d/10", it.Instructor, it.Priority))
		}
	}

	buf := bytes.NewBufferString(cal.Serialize())
	return buf, exportFilename(sess, "ics"), nil
}

// occurrence 计算课程的首次上课时间与重复截止时间
// 首次上课为 start_date 当天或之后第一个与槽位星期相符的日期
func (s *exportService) occurrence(it model.ScheduleItem, generatedAt time.Time) (time.Time, time.Time, time.Time, bool) {
	day, period, ok := model.ParseSlotKey(it.Time)
	if !ok {
		return time.Time{}, time.Time{}, time.Time{}, false
	}
	defStart, defEnd := period.ClockRange()
	startClock := orDefault(it.StartTime, defStart)
	endClock := orDefault(it.EndTime, defEnd)

	firstDate := generatedAt.In(s.location)
	if d, err := time.ParseInLocation(icsDateLayout, it.StartDate, s.location); err == nil {
		firstDate = d
	}
	lastDate := firstDate.AddDate(0, 0, 90)
	if d, err := time.ParseInLocation(icsDateLayout, it.EndDate, s.location); err == nil {
		lastDate = d
	}

	di, _ := model.DayIndex(day)
	want := time.Weekday((di + 1) % 7)
	for firstDate.Weekday() != want {
		firstDate = firstDate.AddDate(0, 0, 1)
	}

	start, err := atClock(firstDate, startClock, s.location)
	if err != nil {
		return time.Time{}, time.Time{}, time.Time{}, false
	}
	end, err := atClock(firstDate, endClock, s.location)
	if err != nil || !end.After(start) {
		return time.Time{}, time.Time{}, time.Time{}, false
	}
	until := time.Date(lastDate.Year(), lastDate.Month(), lastDate.Day(), 23, 59, 59, 0, s.location)
	return start, end, until, true
}

func atClock(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(icsClockLayout, clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
