package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"student-portal/internal/dto"
	"student-portal/internal/service"
	pkgerrors "student-portal/pkg/errors"
	"student-portal/pkg/response"
)

// ProgressHandler 周进度 HTTP 处理器
type ProgressHandler struct {
	progressSvc service.ProgressService
}

// NewProgressHandler 创建 ProgressHandler
func NewProgressHandler(progressSvc service.ProgressService) *ProgressHandler {
	return &ProgressHandler{progressSvc: progressSvc}
}

// Record 学生记录周进度，项目须处于进行中
// POST /api/v1/progress-updates
func (h *ProgressHandler) Record(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	var req dto.RecordProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	update, err := h.progressSvc.Record(c.Request.Context(), sess, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, update)
}

// ListByProject 项目全部周进度
// GET /api/v1/progress-updates/project/:id
func (h *ProgressHandler) ListByProject(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	updates, err := h.progressSvc.ListByProject(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, updates)
}

// ListByWeek 项目某一周的进度
// GET /api/v1/progress-updates/project/:id/week/:week
func (h *ProgressHandler) ListByWeek(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	week, err := strconv.Atoi(c.Param("week"))
	if err != nil {
		handleError(c, pkgerrors.Invalid("week_number", "周次必须是整数"))
		return
	}

	updates, err := h.progressSvc.ListByWeek(c.Request.Context(), sess, c.Param("id"), week)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, updates)
}

// Count 项目周进度条数
// GET /api/v1/progress-updates/project/:id/count
func (h *ProgressHandler) Count(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	projectID := c.Param("id")
	n, err := h.progressSvc.CountByProject(c.Request.Context(), sess, projectID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, gin.H{"project_id": projectID, "count": n})
}
