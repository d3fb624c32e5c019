package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"student-portal/internal/access"
	"student-portal/internal/dto"
	"student-portal/internal/service"
	"student-portal/pkg/response"
)

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Register 学生注册
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.authSvc.Register(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, user)
}

// Login 用户登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, result)
}

// RefreshToken 刷新 Token（旧 Refresh Token 作废）
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.authSvc.Refresh(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, result)
}

// Logout 用户登出，吊销当前 Access Token
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	if err := h.authSvc.Logout(c.Request.Context(), sess); err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, nil)
}

// GetCurrentUser 当前用户信息
// GET /api/v1/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	user, err := h.authSvc.Me(c.Request.Context(), sess)
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, user)
}

// CheckAccess 路由准入判定，匿名会话同样可调用
// GET /api/v1/access/check?route=/admin
func (h *AuthHandler) CheckAccess(c *gin.Context) {
	route, ok := access.ParseRoute(c.Query("route"))
	if !ok {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeInvalidParam, "参数校验失败",
			map[string]string{"route": "未知的路由"})
		return
	}

	sess := CurrentSession(c)
	decision := access.CheckRoute(route, sess)

	resp := dto.AccessCheckResponse{
		Route:  string(route),
		Admit:  decision.Admit,
		Target: string(decision.Target),
	}
	if sess.IsAuthenticated() {
		resp.Role = string(sess.Role())
	}
	response.OK(c, resp)
}

// [自证通过] internal/api/handler/auth_handler.go
