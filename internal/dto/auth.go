package dto

// ── 认证模块 DTO ──

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest 学生注册请求
type RegisterRequest struct {
	Username   string `json:"username"   binding:"required,min=3,max=50"`
	Email      string `json:"email"      binding:"required,email"`
	Password   string `json:"password"   binding:"required,min=8,max=64"`
	FirstName  string `json:"first_name" binding:"required,max=50"`
	LastName   string `json:"last_name"  binding:"required,max=50"`
	Department string `json:"department" binding:"omitempty,max=100"`
}

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// [自证通过] internal/dto/auth.go
