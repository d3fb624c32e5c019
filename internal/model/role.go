package model

import (
	"fmt"

	pkgerrors "student-portal/pkg/errors"
)

// Role 用户角色（封闭枚举）
type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleSupervisor Role = "SUPERVISOR"
	RoleAdmin      Role = "ADMIN"
)

// Roles 全部合法角色
var Roles = []Role{RoleStudent, RoleSupervisor, RoleAdmin}

// ParseRole 解析角色标签
// 旧系统中的 FACULTY 等标签不做隐式映射，直接拒绝
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleStudent, RoleSupervisor, RoleAdmin:
		return r, nil
	default:
		return "", pkgerrors.Invalid("role", fmt.Sprintf("未知角色: %q", s))
	}
}

// Valid 是否为合法角色
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// HomeRoute 角色对应的首页路由
func (r Role) HomeRoute() string {
	switch r {
	case RoleAdmin:
		return "/admin"
	case RoleSupervisor:
		return "/supervisor"
	case RoleStudent:
		return "/dashboard"
	default:
		return "/dashboard"
	}
}

func (r Role) String() string { return string(r) }
