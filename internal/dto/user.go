package dto

// ── 用户模块 DTO ──

// UserListRequest 用户列表查询参数
type UserListRequest struct {
	PaginationRequest
	Role string `form:"role" binding:"omitempty,oneof=STUDENT SUPERVISOR ADMIN"`
}

// CreateSupervisorRequest 管理员创建导师账号
type CreateSupervisorRequest struct {
	Username   string `json:"username"   binding:"required,min=3,max=50"`
	Email      string `json:"email"      binding:"required,email"`
	Password   string `json:"password"   binding:"required,min=8,max=64"`
	FirstName  string `json:"first_name" binding:"required,max=50"`
	LastName   string `json:"last_name"  binding:"required,max=50"`
	Department string `json:"department" binding:"omitempty,max=100"`
}

// UpdateUserRequest 管理员修改用户资料，角色与用户名不可修改
type UpdateUserRequest struct {
	Email      string `json:"email"      binding:"required,email,max=100"`
	FirstName  string `json:"first_name" binding:"required,max=50"`
	LastName   string `json:"last_name"  binding:"required,max=50"`
	Department string `json:"department" binding:"omitempty,max=100"`
	Version    int    `json:"version"    binding:"required,min=1"`
}

// AssignmentResponse 指导关系变更结果
type AssignmentResponse struct {
	StudentID       string  `json:"student_id"`
	SupervisorID    *string `json:"supervisor_id"`
	ProjectsUpdated int64   `json:"projects_updated"`
}

// SyncSupervisorsResponse 批量回填项目导师结果
type SyncSupervisorsResponse struct {
	ProjectsUpdated int64 `json:"projects_updated"`
}
