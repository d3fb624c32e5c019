package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	pkgerrors "student-portal/pkg/errors"
	"student-portal/pkg/response"
)

// handleError 按错误分类写入响应
//
//	Validation        → 400 10001（字段写入 details）
//	Auth              → 401 10002
//	Permission        → 403 10003
//	NotFound          → 404 10005
//	InvalidTransition → 409 20001
//	IllegalState      → 409 20002
//	Conflict          → 409 20003
//	其余              → 500 50000
func handleError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch pkgerrors.Kind(err) {
	case pkgerrors.ErrValidation:
		var verr *pkgerrors.ValidationError
		if errors.As(err, &verr) {
			response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeInvalidParam,
				"参数校验失败", map[string]string{verr.Field: verr.Message})
			return
		}
		response.BadRequest(c, response.CodeInvalidParam, err.Error())
	case pkgerrors.ErrAuth:
		response.Unauthorized(c, response.CodeUnauthorized, err.Error())
	case pkgerrors.ErrPermission:
		response.Forbidden(c, response.CodeForbidden, err.Error())
	case pkgerrors.ErrNotFound:
		response.NotFound(c, response.CodeNotFound, err.Error())
	case pkgerrors.ErrInvalidTransition:
		response.Conflict(c, response.CodeInvalidTransition, err.Error())
	case pkgerrors.ErrIllegalState:
		response.Conflict(c, response.CodeIllegalState, err.Error())
	case pkgerrors.ErrConflict:
		response.Conflict(c, response.CodeConflict, err.Error())
	default:
		response.InternalError(c)
	}
}

// bindError 请求体 / 查询参数绑定失败
func bindError(c *gin.Context, err error) {
	_ = c.Error(err).SetType(gin.ErrorTypeBind)
	response.BadRequest(c, response.CodeInvalidParam, "参数校验失败")
}
