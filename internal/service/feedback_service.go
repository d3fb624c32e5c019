package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"student-portal/internal/access"
	"student-portal/internal/dto"
	"student-portal/internal/model"
	"student-portal/internal/repository"
	pkgerrors "student-portal/pkg/errors"
)

// ── 反馈模块业务错误 ──

var (
	ErrFeedbackNotFound    = pkgerrors.New(pkgerrors.ErrNotFound, "反馈不存在")
	ErrFeedbackPermission  = pkgerrors.New(pkgerrors.ErrPermission, "只有导师或管理员可以提交反馈")
	ErrFeedbackNotOwner    = pkgerrors.New(pkgerrors.ErrPermission, "只能修改自己提交的反馈")
	ErrRatingOutOfRange    = pkgerrors.Invalid("rating", "评级必须在 1-5 之间")
	ErrFeedbackCommentNone = pkgerrors.Invalid("comment", "反馈内容不能为空")
)

// FeedbackService 导师反馈
type FeedbackService interface {
	Create(ctx context.Context, sess access.Session, req *dto.CreateFeedbackRequest) (*dto.FeedbackResponse, error)
	ListByProject(ctx context.Context, sess access.Session, projectID string) ([]dto.FeedbackResponse, error)
	AverageRating(ctx context.Context, sess access.Session, projectID string) (*dto.AverageResponse, error)
	Update(ctx context.Context, sess access.Session, id string, req *dto.UpdateFeedbackRequest) (*dto.FeedbackResponse, error)
	Delete(ctx context.Context, sess access.Session, id string) error
}

type feedbackService struct {
	repo     *repository.Repository
	projects ProjectService
	logger   *zap.Logger
}

// NewFeedbackService 创建 FeedbackService 实例
func NewFeedbackService(repo *repository.Repository, projects ProjectService, logger *zap.Logger) FeedbackService {
	return &feedbackService{repo: repo, projects: projects, logger: logger}
}

func (s *feedbackService) Create(ctx context.Context, sess access.Session, req *dto.CreateFeedbackRequest) (*dto.FeedbackResponse, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if !sess.IsAny(model.RoleSupervisor, model.RoleAdmin) {
		return nil, ErrFeedbackPermission
	}
	comment, err := validateFeedback(req.Rating, req.Comment)
	if err != nil {
		return nil, err
	}

	project, err := s.projects.LoadVisible(ctx, sess, req.ProjectID)
	if err != nil {
		return nil, err
	}

	fb := &model.Feedback{
		ProjectID:    project.ProjectID,
		SupervisorID: sess.ActorID(),
		Comment:      comment,
		Rating:       req.Rating,
	}
	if err := s.repo.Feedback.Create(ctx, fb); err != nil {
		s.logger.Error("提交反馈失败", zap.String("project_id", project.ProjectID), zap.Error(err))
		return nil, err
	}

	resp := dto.NewFeedbackResponse(fb)
	return &resp, nil
}

func (s *feedbackService) ListByProject(ctx context.Context, sess access.Session, projectID string) ([]dto.FeedbackResponse, error) {
	if _, err := s.projects.LoadVisible(ctx, sess, projectID); err != nil {
		return nil, err
	}

	list, err := s.repo.Feedback.ListByProject(ctx, projectID)
	if err != nil {
		s.logger.Error("查询反馈失败", zap.String("project_id", projectID), zap.Error(err))
		return nil, err
	}

	out := make([]dto.FeedbackResponse, 0, len(list))
	for i := range list {
		out = append(out, dto.NewFeedbackResponse(&list[i]))
	}
	return out, nil
}

func (s *feedbackService) AverageRating(ctx context.Context, sess access.Session, projectID string) (*dto.AverageResponse, error) {
	if _, err := s.projects.LoadVisible(ctx, sess, projectID); err != nil {
		return nil, err
	}

	avg, err := s.repo.Feedback.AverageRating(ctx, projectID)
	if err != nil {
		s.logger.Error("计算平均评级失败", zap.String("project_id", projectID), zap.Error(err))
		return nil, err
	}
	return &dto.AverageResponse{ProjectID: projectID, Average: avg}, nil
}

func (s *feedbackService) Update(ctx context.Context, sess access.Session, id string, req *dto.UpdateFeedbackRequest) (*dto.FeedbackResponse, error) {
	fb, err := s.loadOwned(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	comment, err := validateFeedback(req.Rating, req.Comment)
	if err != nil {
		return nil, err
	}

	fb.Comment = comment
	fb.Rating = req.Rating
	if err := s.repo.Feedback.Update(ctx, fb); err != nil {
		s.logger.Error("修改反馈失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	resp := dto.NewFeedbackResponse(fb)
	return &resp, nil
}

func (s *feedbackService) Delete(ctx context.Context, sess access.Session, id string) error {
	if _, err := s.loadOwned(ctx, sess, id); err != nil {
		return err
	}
	if err := s.repo.Feedback.Delete(ctx, id); err != nil {
		s.logger.Error("删除反馈失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// loadOwned 读取反馈，仅作者本人或管理员可继续操作
func (s *feedbackService) loadOwned(ctx context.Context, sess access.Session, id string) (*model.Feedback, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if !sess.IsAny(model.RoleSupervisor, model.RoleAdmin) {
		return nil, ErrFeedbackPermission
	}

	fb, err := s.repo.Feedback.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFeedbackNotFound
		}
		s.logger.Error("查询反馈失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if !sess.Is(model.RoleAdmin) && fb.SupervisorID != sess.ActorID() {
		return nil, ErrFeedbackNotOwner
	}
	return fb, nil
}

func validateFeedback(rating int, comment string) (string, error) {
	if rating < model.MinRating || rating > model.MaxRating {
		return "", ErrRatingOutOfRange
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return "", ErrFeedbackCommentNone
	}
	return comment, nil
}
