package dto

import (
	"time"

	"student-portal/internal/model"
)

// ── 周进度 ──

// RecordProgressRequest 记录周进度
type RecordProgressRequest struct {
	ProjectID   string `json:"project_id"  binding:"required"`
	WeekNumber  int    `json:"week_number"`
	Description string `json:"description"`
	Note        string `json:"note"`
}

// ProgressUpdateResponse 周进度响应
type ProgressUpdateResponse struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	WeekNumber  int    `json:"week_number"`
	Description string `json:"description"`
	Note        string `json:"note,omitempty"`
	RecordedBy  string `json:"recorded_by"`
	Timestamp   string `json:"timestamp"`
}

// NewProgressUpdateResponses 批量构造
func NewProgressUpdateResponses(list []model.ProgressUpdate) []ProgressUpdateResponse {
	out := make([]ProgressUpdateResponse, 0, len(list))
	for i := range list {
		out = append(out, NewProgressUpdateResponse(&list[i]))
	}
	return out
}

// NewProgressUpdateResponse 由模型构造响应
func NewProgressUpdateResponse(u *model.ProgressUpdate) ProgressUpdateResponse {
	return ProgressUpdateResponse{
		ID:          u.ProgressUpdateID,
		ProjectID:   u.ProjectID,
		WeekNumber:  u.WeekNumber,
		Description: u.Description,
		Note:        u.Note,
		RecordedBy:  u.RecordedBy,
		Timestamp:   u.Timestamp.Format(time.RFC3339Nano),
	}
}

// ── 评分 ──

// SubmitEvaluationRequest 提交评分
type SubmitEvaluationRequest struct {
	ProjectID    string `json:"project_id" binding:"required"`
	FinalScore   *int   `json:"final_score"`
	FinalComment string `json:"final_comment"`
}

// UpdateEvaluationRequest 修改评分
type UpdateEvaluationRequest struct {
	FinalScore   *int   `json:"final_score"`
	FinalComment string `json:"final_comment"`
}

// EvaluationExistsResponse 项目是否已有评分
type EvaluationExistsResponse struct {
	ProjectID string `json:"project_id"`
	Exists    bool   `json:"exists"`
}

// EvaluationResponse 评分响应
type EvaluationResponse struct {
	ID           string `json:"id"`
	ProjectID    string `json:"project_id"`
	FinalScore   int    `json:"final_score"`
	FinalComment string `json:"final_comment"`
	EvaluatorID  string `json:"evaluator_id"`
	Timestamp    string `json:"timestamp"`
}

// NewEvaluationResponse 由模型构造响应
func NewEvaluationResponse(e *model.Evaluation) EvaluationResponse {
	return EvaluationResponse{
		ID:           e.EvaluationID,
		ProjectID:    e.ProjectID,
		FinalScore:   e.FinalScore,
		FinalComment: e.FinalComment,
		EvaluatorID:  e.EvaluatorID,
		Timestamp:    e.Timestamp.Format(time.RFC3339Nano),
	}
}

// NewEvaluationResponses 批量构造
func NewEvaluationResponses(list []model.Evaluation) []EvaluationResponse {
	out := make([]EvaluationResponse, 0, len(list))
	for i := range list {
		out = append(out, NewEvaluationResponse(&list[i]))
	}
	return out
}

// AverageResponse 平均分响应，无记录时 Average 为 null
type AverageResponse struct {
	ProjectID string   `json:"project_id"`
	Average   *float64 `json:"average"`
}

// ── 反馈 ──

// CreateFeedbackRequest 导师反馈
type CreateFeedbackRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
	Comment   string `json:"comment"`
	Rating    int    `json:"rating"`
}

// UpdateFeedbackRequest 修改反馈
type UpdateFeedbackRequest struct {
	Comment string `json:"comment"`
	Rating  int    `json:"rating"`
}

// FeedbackResponse 反馈响应
type FeedbackResponse struct {
	ID           string `json:"id"`
	ProjectID    string `json:"project_id"`
	SupervisorID string `json:"supervisor_id"`
	Comment      string `json:"comment"`
	Rating       int    `json:"rating"`
	CreatedAt    string `json:"created_at"`
}

// NewFeedbackResponse 由模型构造响应
func NewFeedbackResponse(f *model.Feedback) FeedbackResponse {
	return FeedbackResponse{
		ID:           f.FeedbackID,
		ProjectID:    f.ProjectID,
		SupervisorID: f.SupervisorID,
		Comment:      f.Comment,
		Rating:       f.Rating,
		CreatedAt:    f.CreatedAt.Format(time.RFC3339),
	}
}
