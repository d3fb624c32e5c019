package dto

import (
	"time"

	"student-portal/internal/model"
)

// DateLayout 请求与响应中的日期格式
const DateLayout = "2006-01-02"

// ── 项目模块 DTO ──

// ProjectDraft 学生提交 / 修改项目的内容
// 必填项由 Service 校验，以便返回字段级错误
type ProjectDraft struct {
	Title          string  `json:"title"`
	Objective      string  `json:"objective"`
	Description    string  `json:"description"`
	Category       string  `json:"category"`
	Tools          string  `json:"tools"`
	Resources      string  `json:"resources"`
	GithubLink     string  `json:"github_link"`
	StartDate      *string `json:"start_date"` // YYYY-MM-DD
	EndDate        *string `json:"end_date"`   // YYYY-MM-DD
	DurationMonths int     `json:"duration_months"`
}

// UpdateProjectRequest 修改项目请求，Version 为调用方读到的版本
type UpdateProjectRequest struct {
	ProjectDraft
	Version int `json:"version" binding:"required,min=1"`
}

// TransitionRequest 状态迁移请求体（可选），也可通过 If-Match 头传递版本
type TransitionRequest struct {
	Version *int `json:"version" binding:"omitempty,min=1"`
}

// SetDeadlineRequest 管理员设置截止日期
type SetDeadlineRequest struct {
	EndDate string `json:"end_date" binding:"required"`
	Version int    `json:"version"  binding:"required,min=1"`
}

// ProjectListRequest 项目列表查询参数
type ProjectListRequest struct {
	Status string `form:"status"`
}

// ProjectResponse 项目响应
type ProjectResponse struct {
	ID             string  `json:"id"`
	StudentID      string  `json:"student_id"`
	StudentName    string  `json:"student_name,omitempty"`
	SupervisorID   *string `json:"supervisor_id"`
	SupervisorName string  `json:"supervisor_name,omitempty"`
	Title          string  `json:"title"`
	Objective      string  `json:"objective"`
	Description    string  `json:"description"`
	Category       string  `json:"category"`
	Tools          string  `json:"tools"`
	Resources      string  `json:"resources"`
	GithubLink     string  `json:"github_link"`
	StartDate      *string `json:"start_date"`
	EndDate        *string `json:"end_date"`
	DurationMonths int     `json:"duration_months"`
	Status         string  `json:"status"`
	Version        int     `json:"version"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}

// NewProjectResponse 由模型构造响应
func NewProjectResponse(p *model.Project) ProjectResponse {
	resp := ProjectResponse{
		ID:             p.ProjectID,
		StudentID:      p.StudentID,
		SupervisorID:   p.SupervisorID,
		Title:          p.Title,
		Objective:      p.Objective,
		Description:    p.Description,
		Category:       p.Category,
		Tools:          p.Tools,
		Resources:      p.Resources,
		GithubLink:     p.GithubLink,
		StartDate:      formatDate(p.StartDate),
		EndDate:        formatDate(p.EndDate),
		DurationMonths: p.DurationMonths,
		Status:         string(p.Status),
		Version:        p.Version,
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      p.UpdatedAt.Format(time.RFC3339),
	}
	if p.Student != nil {
		resp.StudentName = p.Student.FullName()
	}
	if p.Supervisor != nil {
		resp.SupervisorName = p.Supervisor.FullName()
	}
	return resp
}

// NewProjectResponses 批量构造
func NewProjectResponses(projects []model.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(projects))
	for i := range projects {
		out = append(out, NewProjectResponse(&projects[i]))
	}
	return out
}
