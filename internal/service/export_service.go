package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"student-portal/internal/access"
	"student-portal/internal/dto"
	"student-portal/internal/model"
	pkgerrors "student-portal/pkg/errors"
)

// ── 导出模块业务错误 ──

var (
	ErrExportPermission   = pkgerrors.New(pkgerrors.ErrPermission, "仅管理员可导出项目清单")
	ErrExportGenerateFail = pkgerrors.New(pkgerrors.ErrIllegalState, "生成导出文件失败")
)

// ExportService 导出业务接口
//
// 导出内容以内存缓冲返回，由 Handler 设置响应头后写出。
type ExportService interface {
	// ExportProjects 导出项目清单为 Excel，仅管理员
	ExportProjects(ctx context.Context, sess access.Session, status string) (*bytes.Buffer, string, error)
	// ExportCalendar 导出会话可见项目的起止日期为 iCalendar
	ExportCalendar(ctx context.Context, sess access.Session) (string, string, error)
}

type exportService struct {
	projects ProjectService
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService 创建 ExportService 实例
func NewExportService(projects ProjectService, logger *zap.Logger) ExportService {
	return &exportService{
		projects: projects,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ────────────────────── ExportProjects ──────────────────────
//
// 表头: | 标题 | 学生 | 导师 | 状态 | 类别 | 开始日期 | 结束日期 | 周期(月) | 版本 |

var projectSheetHeaders = []string{"标题", "学生", "导师", "状态", "类别", "开始日期", "结束日期", "周期(月)", "版本"}

func (s *exportService) ExportProjects(ctx context.Context, sess access.Session, status string) (*bytes.Buffer, string, error) {
	if !sess.Is(model.RoleAdmin) {
		return nil, "", ErrExportPermission
	}

	var filter *model.ProjectStatus
	if status != "" {
		st, err := model.ParseProjectStatus(status)
		if err != nil {
			return nil, "", err
		}
		filter = &st
	}

	projects, err := s.projects.VisibleProjects(ctx, sess, filter)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "项目清单"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 36)
	f.SetColWidth(sheetName, "B", "C", 16)
	f.SetColWidth(sheetName, "D", "E", 14)
	f.SetColWidth(sheetName, "F", "G", 12)
	f.SetColWidth(sheetName, "H", "I", 10)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for i, h := range projectSheetHeaders {
		f.SetCellValue(sheetName, cell(colName(i), 1), h)
	}
	f.SetCellStyle(sheetName, "A1", cell(colName(len(projectSheetHeaders)-1), 1), headerStyle)

	row := 2
	for i := range projects {
		p := dto.NewProjectResponse(&projects[i])
		values := []interface{}{
			p.Title,
			nameOrID(p.StudentName, p.StudentID),
			supervisorLabel(p),
			p.Status,
			p.Category,
			dateOrDash(p.StartDate),
			dateOrDash(p.EndDate),
			p.DurationMonths,
			p.Version,
		}
		for col, v := range values {
			f.SetCellValue(sheetName, cell(colName(col), row), v)
		}
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("项目清单_%s.xlsx", s.now().Format("20060102"))
	return buf, filename, nil
}

// ────────────────────── ExportCalendar ──────────────────────

func (s *exportService) ExportCalendar(ctx context.Context, sess access.Session) (string, string, error) {
	projects, err := s.projects.VisibleProjects(ctx, sess, nil)
	if err != nil {
		return "", "", err
	}

	now := s.now()
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//student-portal//projects//CN")

	for _, p := range projects {
		if p.StartDate == nil || p.EndDate == nil {
			continue
		}
		evt := cal.AddEvent(p.ProjectID + "@student-portal")
		evt.SetDtStampTime(now)
		evt.SetSummary(p.Title)
		evt.SetDescription(fmt.Sprintf("状态: %s", p.Status))
		evt.SetAllDayStartAt(*p.StartDate)
		// DTEND 为开区间，结束日当天包含在内
		evt.SetAllDayEndAt(p.EndDate.AddDate(0, 0, 1))
	}

	filename := fmt.Sprintf("projects_%s.ics", now.Format("20060102"))
	return cal.Serialize(), filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func nameOrID(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

func supervisorLabel(p dto.ProjectResponse) string {
	if p.SupervisorName != "" {
		return p.SupervisorName
	}
	if p.SupervisorID != nil {
		return *p.SupervisorID
	}
	return "-"
}

func dateOrDash(d *string) string {
	if d == nil {
		return "-"
	}
	return *d
}
