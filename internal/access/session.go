// Package access 表示“谁在操作”，并在任何受保护操作之前做准入判定。
//
// Session 是显式传入每个业务调用的值，不存在进程级全局会话。
package access

import (
	"time"

	"student-portal/internal/model"
)

// Session 一次已认证（或匿名）的会话
type Session struct {
	actorID       string
	role          model.Role
	tokenID       string
	expiresAt     time.Time
	authenticated bool
}

// Anonymous 未认证会话
func Anonymous() Session { return Session{} }

// NewSession 认证成功后创建会话
func NewSession(actorID string, role model.Role, tokenID string, expiresAt time.Time) Session {
	return Session{
		actorID:       actorID,
		role:          role,
		tokenID:       tokenID,
		expiresAt:     expiresAt,
		authenticated: actorID != "" && role.Valid(),
	}
}

// IsAuthenticated 是否已认证
func (s Session) IsAuthenticated() bool { return s.authenticated }

// Role 会话角色，匿名会话为空
func (s Session) Role() model.Role { return s.role }

// ActorID 当前操作者 ID
func (s Session) ActorID() string { return s.actorID }

// TokenID 签发该会话的 token JTI，用于注销
func (s Session) TokenID() string { return s.tokenID }

// ExpiresAt 会话过期时间
func (s Session) ExpiresAt() time.Time { return s.expiresAt }

// Is 已认证且角色为 r
func (s Session) Is(r model.Role) bool { return s.authenticated && s.role == r }

// IsAny 已认证且角色属于 roles
func (s Session) IsAny(roles ...model.Role) bool {
	if !s.authenticated {
		return false
	}
	for _, r := range roles {
		if s.role == r {
			return true
		}
	}
	return false
}
