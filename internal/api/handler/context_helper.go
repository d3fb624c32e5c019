package handler

import (
	"github.com/gin-gonic/gin"

	"student-portal/internal/access"
	"student-portal/pkg/response"
)

// sessionKey 认证中间件注入会话使用的上下文键
const sessionKey = "session"

// CurrentSession 取出当前会话，未注入时返回匿名会话
func CurrentSession(c *gin.Context) access.Session {
	v, exists := c.Get(sessionKey)
	if !exists {
		return access.Anonymous()
	}
	sess, ok := v.(access.Session)
	if !ok {
		return access.Anonymous()
	}
	return sess
}

// MustGetSession 从 Gin 上下文中安全提取已认证会话。
// 如果 JWT 中间件未正确注入会话，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetSession(c *gin.Context) (access.Session, bool) {
	sess := CurrentSession(c)
	if !sess.IsAuthenticated() {
		response.Unauthorized(c, response.CodeUnauthorized, "未认证")
		return sess, false
	}
	return sess, true
}
