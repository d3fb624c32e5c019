package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"student-portal/internal/access"
	"student-portal/internal/dto"
	"student-portal/internal/model"
	"student-portal/internal/repository"
	pkgerrors "student-portal/pkg/errors"
	"student-portal/pkg/metrics"
	"student-portal/pkg/mq"
)

// ── 评分模块业务错误 ──

var (
	ErrEvaluationNotFound   = pkgerrors.New(pkgerrors.ErrNotFound, "评分不存在")
	ErrEvaluationPermission = pkgerrors.New(pkgerrors.ErrPermission, "只有导师或管理员可以评分")
	ErrEvaluationNotOwner   = pkgerrors.New(pkgerrors.ErrPermission, "只能修改自己提交的评分")
	ErrScoreRequired        = pkgerrors.Invalid("final_score", "分数不能为空")
	ErrScoreOutOfRange      = pkgerrors.Invalid("final_score", "分数必须在 0-100 之间")
	ErrCommentRequired      = pkgerrors.Invalid("final_comment", "评语不能为空")
	ErrCommentTooLong       = pkgerrors.Invalid("final_comment", "评语不能超过 2000 个字符")
)

// EvaluationService 项目评分
//
// 一个项目可有多条评分，最新一条为当前评分；不校验项目状态。
type EvaluationService interface {
	Submit(ctx context.Context, sess access.Session, req *dto.SubmitEvaluationRequest) (*dto.EvaluationResponse, error)
	ListByProject(ctx context.Context, sess access.Session, projectID string) ([]dto.EvaluationResponse, error)
	// Latest 最新评分，无评分时返回 nil
	Latest(ctx context.Context, sess access.Session, projectID string) (*dto.EvaluationResponse, error)
	// Average 平均分，无评分时 Average 为 nil
	Average(ctx context.Context, sess access.Session, projectID string) (*dto.AverageResponse, error)
	Exists(ctx context.Context, sess access.Session, projectID string) (*dto.EvaluationExistsResponse, error)
	// Update 评分人或管理员修改分数与评语，评分时间不变
	Update(ctx context.Context, sess access.Session, id string, req *dto.UpdateEvaluationRequest) (*dto.EvaluationResponse, error)
	Delete(ctx context.Context, sess access.Session, id string) error
}

type evaluationService struct {
	repo     *repository.Repository
	projects ProjectService
	events   mq.Publisher
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewEvaluationService 创建 EvaluationService 实例
func NewEvaluationService(
	repo *repository.Repository,
	projects ProjectService,
	events mq.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) EvaluationService {
	return &evaluationService{
		repo:     repo,
		projects: projects,
		events:   events,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ────────────────────── Submit ──────────────────────

func (s *evaluationService) Submit(ctx context.Context, sess access.Session, req *dto.SubmitEvaluationRequest) (*dto.EvaluationResponse, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if !sess.IsAny(model.RoleSupervisor, model.RoleAdmin) {
		return nil, ErrEvaluationPermission
	}
	score, comment, err := validateEvaluation(req.FinalScore, req.FinalComment)
	if err != nil {
		return nil, err
	}

	project, err := s.projects.Lookup(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	evaluation := &model.Evaluation{
		ProjectID:    project.ProjectID,
		FinalScore:   score,
		FinalComment: comment,
		EvaluatorID:  sess.ActorID(),
		Timestamp:    s.now(),
	}
	if err := s.repo.Evaluation.Create(ctx, evaluation); err != nil {
		s.logger.Error("提交评分失败", zap.String("project_id", project.ProjectID), zap.Error(err))
		return nil, err
	}

	s.metrics.ObserveEvaluation()
	resp := dto.NewEvaluationResponse(evaluation)
	publishEvent(ctx, s.events, s.logger, mq.RoutingEvaluationRecorded, sess.ActorID(), resp)
	return &resp, nil
}

// ────────────────────── Queries ──────────────────────

func (s *evaluationService) ListByProject(ctx context.Context, sess access.Session, projectID string) ([]dto.EvaluationResponse, error) {
	if _, err := s.projects.LoadVisible(ctx, sess, projectID); err != nil {
		return nil, err
	}

	list, err := s.repo.Evaluation.ListByProject(ctx, projectID)
	if err != nil {
		s.logger.Error("查询评分失败", zap.String("project_id", projectID), zap.Error(err))
		return nil, err
	}
	return dto.NewEvaluationResponses(list), nil
}

func (s *evaluationService) Latest(ctx context.Context, sess access.Session, projectID string) (*dto.EvaluationResponse, error) {
	if _, err := s.projects.LoadVisible(ctx, sess, projectID); err != nil {
		return nil, err
	}

	evaluation, err := s.repo.Evaluation.Latest(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.logger.Error("查询最新评分失败", zap.String("project_id", projectID), zap.Error(err))
		return nil, err
	}
	resp := dto.NewEvaluationResponse(evaluation)
	return &resp, nil
}

func (s *evaluationService) Average(ctx context.Context, sess access.Session, projectID string) (*dto.AverageResponse, error) {
	if _, err := s.projects.LoadVisible(ctx, sess, projectID); err != nil {
		return nil, err
	}

	avg, err := s.repo.Evaluation.Average(ctx, projectID)
	if err != nil {
		s.logger.Error("计算平均分失败", zap.String("project_id", projectID), zap.Error(err))
		return nil, err
	}
	return &dto.AverageResponse{ProjectID: projectID, Average: avg}, nil
}

func (s *evaluationService) Exists(ctx context.Context, sess access.Session, projectID string) (*dto.EvaluationExistsResponse, error) {
	if _, err := s.projects.LoadVisible(ctx, sess, projectID); err != nil {
		return nil, err
	}

	ok, err := s.repo.Evaluation.ExistsByProject(ctx, projectID)
	if err != nil {
		s.logger.Error("查询评分失败", zap.String("project_id", projectID), zap.Error(err))
		return nil, err
	}
	return &dto.EvaluationExistsResponse{ProjectID: projectID, Exists: ok}, nil
}

// ────────────────────── Update / Delete ──────────────────────

func (s *evaluationService) Update(ctx context.Context, sess access.Session, id string, req *dto.UpdateEvaluationRequest) (*dto.EvaluationResponse, error) {
	evaluation, err := s.loadOwned(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	score, comment, err := validateEvaluation(req.FinalScore, req.FinalComment)
	if err != nil {
		return nil, err
	}

	evaluation.FinalScore = score
	evaluation.FinalComment = comment
	if err := s.repo.Evaluation.Update(ctx, evaluation); err != nil {
		s.logger.Error("修改评分失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	resp := dto.NewEvaluationResponse(evaluation)
	return &resp, nil
}

func (s *evaluationService) Delete(ctx context.Context, sess access.Session, id string) error {
	if _, err := s.loadOwned(ctx, sess, id); err != nil {
		return err
	}
	if err := s.repo.Evaluation.Delete(ctx, id); err != nil {
		s.logger.Error("删除评分失败", zap.String("id", id), zap.Error(err))
		return err
	}
	s.logger.Info("评分已删除", zap.String("id", id), zap.String("actor_id", sess.ActorID()))
	return nil
}

// loadOwned 读取评分，仅评分人本人或管理员可继续操作
func (s *evaluationService) loadOwned(ctx context.Context, sess access.Session, id string) (*model.Evaluation, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if !sess.IsAny(model.RoleSupervisor, model.RoleAdmin) {
		return nil, ErrEvaluationPermission
	}

	evaluation, err := s.repo.Evaluation.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEvaluationNotFound
		}
		s.logger.Error("查询评分失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if !sess.Is(model.RoleAdmin) && evaluation.EvaluatorID != sess.ActorID() {
		return nil, ErrEvaluationNotOwner
	}
	return evaluation, nil
}

func validateEvaluation(score *int, comment string) (int, string, error) {
	if score == nil {
		return 0, "", ErrScoreRequired
	}
	if *score < model.MinScore || *score > model.MaxScore {
		return 0, "", ErrScoreOutOfRange
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return 0, "", ErrCommentRequired
	}
	if utf8.RuneCountInString(comment) > model.MaxCommentLen {
		return 0, "", ErrCommentTooLong
	}
	return *score, comment, nil
}
