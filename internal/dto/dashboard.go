package dto

// ── 看板 ──

// DashboardResponse 按角色组装的看板，三者只有一个非空
type DashboardResponse struct {
	Role       string               `json:"role"`
	Student    *StudentDashboard    `json:"student,omitempty"`
	Supervisor *SupervisorDashboard `json:"supervisor,omitempty"`
	Admin      *AdminDashboard      `json:"admin,omitempty"`
}

// StudentDashboard 学生看板
type StudentDashboard struct {
	Supervisor *UserResponse            `json:"supervisor"`
	Projects   []StudentProjectOverview `json:"projects"`
}

// StudentProjectOverview 学生项目概览
type StudentProjectOverview struct {
	Project          ProjectResponse     `json:"project"`
	ProgressCount    int64               `json:"progress_count"`
	LatestEvaluation *EvaluationResponse `json:"latest_evaluation"`
}

// SupervisorDashboard 导师看板
type SupervisorDashboard struct {
	Students     []UserResponse    `json:"students"`
	Projects     []ProjectResponse `json:"projects"`
	PendingCount int               `json:"pending_count"`
	ActiveCount  int               `json:"active_count"`
}

// AdminDashboard 管理员看板
type AdminDashboard struct {
	TotalStudents     int64            `json:"total_students"`
	TotalSupervisors  int64            `json:"total_supervisors"`
	TotalProjects     int64            `json:"total_projects"`
	PendingProjects   int64            `json:"pending_projects"`
	CompletedProjects int64            `json:"completed_projects"`
	CompletionRate    float64          `json:"completion_rate"` // 百分比，保留一位小数
	ByStatus          map[string]int64 `json:"by_status"`
}

// ProjectProgressResponse 管理员查看单个项目进展
type ProjectProgressResponse struct {
	Project      ProjectResponse `json:"project"`
	UpdateCount  int64           `json:"update_count"`
	AverageScore *float64        `json:"average_score"`
}

// AccessCheckResponse 准入判定结果
type AccessCheckResponse struct {
	Route  string `json:"route"`
	Role   string `json:"role,omitempty"`
	Admit  bool   `json:"admit"`
	Target string `json:"target,omitempty"`
}
