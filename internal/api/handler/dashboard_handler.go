package handler

import (
	"github.com/gin-gonic/gin"

	"student-portal/internal/service"
	"student-portal/pkg/response"
)

// DashboardHandler 看板 HTTP 处理器
type DashboardHandler struct {
	dashboardSvc service.DashboardService
}

// NewDashboardHandler 创建 DashboardHandler
func NewDashboardHandler(dashboardSvc service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardSvc: dashboardSvc}
}

// Get 当前会话角色对应的看板
// GET /api/v1/dashboard
func (h *DashboardHandler) Get(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	board, err := h.dashboardSvc.ForSession(c.Request.Context(), sess)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, board)
}

// ProjectProgress 单个项目进展（管理员）
// GET /api/v1/dashboard/projects/:id/progress
func (h *DashboardHandler) ProjectProgress(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	progress, err := h.dashboardSvc.ProjectProgress(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, progress)
}
