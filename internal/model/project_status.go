package model

import (
	"fmt"

	pkgerrors "student-portal/pkg/errors"
)

// ProjectStatus 项目状态（封闭枚举）
type ProjectStatus string

const (
	StatusPending    ProjectStatus = "PENDING"
	StatusApproved   ProjectStatus = "APPROVED"
	StatusRejected   ProjectStatus = "REJECTED"
	StatusInProgress ProjectStatus = "IN_PROGRESS"
	StatusCompleted  ProjectStatus = "COMPLETED"
)

// ProjectStatuses 全部合法状态
var ProjectStatuses = []ProjectStatus{
	StatusPending, StatusApproved, StatusRejected, StatusInProgress, StatusCompleted,
}

// ErrLegacyStatus 旧看板使用过的状态标签，不做隐式映射
var ErrLegacyStatus = pkgerrors.New(pkgerrors.ErrValidation, "旧版状态标签不再支持")

var legacyStatuses = map[string]bool{
	"SUBMITTED":    true,
	"UNDER_REVIEW": true,
	"ACTIVE":       true,
	"DONE":         true,
}

// ParseProjectStatus 解析状态标签
func ParseProjectStatus(s string) (ProjectStatus, error) {
	switch st := ProjectStatus(s); st {
	case StatusPending, StatusApproved, StatusRejected, StatusInProgress, StatusCompleted:
		return st, nil
	}
	if legacyStatuses[s] {
		return "", fmt.Errorf("%w: %s", ErrLegacyStatus, s)
	}
	return "", pkgerrors.Invalid("status", fmt.Sprintf("未知状态: %q", s))
}

// IsActive 进行中超状态：APPROVED 与 IN_PROGRESS 对周进度与评分等价
func (s ProjectStatus) IsActive() bool {
	return s == StatusApproved || s == StatusInProgress
}

// IsTerminal 终态
func (s ProjectStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

func (s ProjectStatus) String() string { return string(s) }

// ── 状态机 ──

// Action 状态迁移动作
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionComplete Action = "complete"
	// ActionStart APPROVED → IN_PROGRESS，当前没有对外暴露的触发入口
	ActionStart Action = "start"
)

type edge struct {
	from []ProjectStatus
	to   ProjectStatus
}

var transitions = map[Action]edge{
	ActionApprove:  {from: []ProjectStatus{StatusPending}, to: StatusApproved},
	ActionReject:   {from: []ProjectStatus{StatusPending}, to: StatusRejected},
	ActionStart:    {from: []ProjectStatus{StatusApproved}, to: StatusInProgress},
	ActionComplete: {from: []ProjectStatus{StatusApproved, StatusInProgress}, to: StatusCompleted},
}

// ErrInvalidTransition 当前状态不允许该动作
var ErrInvalidTransition = pkgerrors.New(pkgerrors.ErrInvalidTransition, "当前项目状态不允许该操作")

// ErrUnknownAction 未定义的迁移动作
var ErrUnknownAction = pkgerrors.New(pkgerrors.ErrValidation, "未知的状态迁移动作")

// Apply 计算从 from 执行动作后的状态
// 不相邻的迁移返回 ErrInvalidTransition，不存在部分生效
func (a Action) Apply(from ProjectStatus) (ProjectStatus, error) {
	e, ok := transitions[a]
	if !ok {
		return "", ErrUnknownAction
	}
	for _, s := range e.from {
		if s == from {
			return e.to, nil
		}
	}
	return "", fmt.Errorf("%w: %s 不能从 %s 执行", ErrInvalidTransition, a, from)
}
