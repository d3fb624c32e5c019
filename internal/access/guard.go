package access

import (
	"strings"

	"student-portal/internal/model"
)

// Route 由准入判定管理的逻辑路由
type Route string

const (
	RoutePublic         Route = "/"
	RouteStudentHome    Route = "/dashboard"
	RouteSupervisorHome Route = "/supervisor"
	RouteAdminHome      Route = "/admin"
	RouteProject        Route = "/project"
)

// RoleSet 允许访问的角色集合，空集合表示任意已认证会话
type RoleSet []model.Role

// AnyRole 任意已认证角色
var AnyRole = RoleSet{}

// Roles 构造角色集合
func Roles(roles ...model.Role) RoleSet { return RoleSet(roles) }

// Contains 集合是否包含 r
func (rs RoleSet) Contains(r model.Role) bool {
	for _, x := range rs {
		if x == r {
			return true
		}
	}
	return false
}

// RouteRequirements 每个受保护路由要求的角色（零个或一个）
var RouteRequirements = map[Route]RoleSet{
	RouteStudentHome:    Roles(model.RoleStudent),
	RouteSupervisorHome: Roles(model.RoleSupervisor),
	RouteAdminHome:      Roles(model.RoleAdmin),
	RouteProject:        AnyRole,
}

// Decision 准入结果：Admit 为 false 时跳转到 Target
type Decision struct {
	Admit  bool  `json:"admit"`
	Target Route `json:"target,omitempty"`
}

// Admitted 放行
func Admitted() Decision { return Decision{Admit: true} }

// Redirect 跳转到 target
func Redirect(target Route) Decision { return Decision{Target: target} }

// HomeOf 角色对应的首页
func HomeOf(r model.Role) Route { return Route(r.HomeRoute()) }

// Check 纯函数：根据会话与所需角色给出准入结果
//   - 未认证：跳转到公共入口
//   - required 非空且角色不在其中：跳转到该角色的首页
//   - 其余放行
func Check(required RoleSet, s Session) Decision {
	if !s.IsAuthenticated() {
		return Redirect(RoutePublic)
	}
	if len(required) == 0 || required.Contains(s.Role()) {
		return Admitted()
	}
	return Redirect(HomeOf(s.Role()))
}

// CheckRoute 对逻辑路由做准入判定，公共入口始终放行
func CheckRoute(route Route, s Session) Decision {
	if route == RoutePublic {
		return Admitted()
	}
	return Check(RouteRequirements[route], s)
}

// ParseRoute 解析路由路径，接受带或不带前导斜杠的形式
func ParseRoute(s string) (Route, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	r := Route(s)
	if r == RoutePublic {
		return r, true
	}
	if _, ok := RouteRequirements[r]; ok {
		return r, true
	}
	return "", false
}
