package errors

import (
	"errors"
	"fmt"
)

// ── 错误分类 ──
// 业务模块的哨兵错误通过 New(kind, msg) 包装其中一种分类，
// Handler 层只需按分类映射 HTTP 状态码。

var (
	// ErrValidation 输入不合法（字段级）
	ErrValidation = errors.New("参数校验失败")
	// ErrPermission 角色或归属不满足
	ErrPermission = errors.New("无权操作")
	// ErrInvalidTransition 项目状态不允许该迁移
	ErrInvalidTransition = errors.New("无效的状态迁移")
	// ErrIllegalState 项目当前状态不允许写入附属记录
	ErrIllegalState = errors.New("项目当前状态不允许该操作")
	// ErrNotFound 引用的记录不存在
	ErrNotFound = errors.New("记录不存在")
	// ErrAuth 会话无效或已失效
	ErrAuth = errors.New("会话无效")
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrConflict 与 ErrOptimisticLock 为同一分类
var ErrConflict = ErrOptimisticLock

// kindError 带分类的业务错误
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// New 创建归属于 kind 分类的业务哨兵错误
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// ValidationError 字段级校验错误
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap 使 errors.Is(err, ErrValidation) 成立
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid 构造字段级校验错误
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Kind 返回错误所属分类，未分类时返回 nil
func Kind(err error) error {
	for _, k := range []error{
		ErrValidation,
		ErrPermission,
		ErrInvalidTransition,
		ErrIllegalState,
		ErrNotFound,
		ErrConflict,
		ErrAuth,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
