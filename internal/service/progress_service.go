package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"student-portal/internal/access"
	"student-portal/internal/dto"
	"student-portal/internal/model"
	"student-portal/internal/repository"
	pkgerrors "student-portal/pkg/errors"
	"student-portal/pkg/metrics"
)

// ── 周进度模块业务错误 ──

var (
	ErrProgressPermission = pkgerrors.New(pkgerrors.ErrPermission, "只有项目所属学生可以提交周进度")
	ErrProjectNotActive   = pkgerrors.New(pkgerrors.ErrIllegalState, "项目未处于进行中，不能提交周进度")
	ErrWeekNumberInvalid  = pkgerrors.Invalid("week_number", "周次必须为正整数")
)

// ProgressService 周进度台账（只追加）
//
// 写入前提：项目处于 APPROVED 或 IN_PROGRESS。
// 同一周允许多条记录，读取按时间升序。
type ProgressService interface {
	Record(ctx context.Context, sess access.Session, req *dto.RecordProgressRequest) (*dto.ProgressUpdateResponse, error)
	ListByProject(ctx context.Context, sess access.Session, projectID string) ([]dto.ProgressUpdateResponse, error)
	ListByWeek(ctx context.Context, sess access.Session, projectID string, week int) ([]dto.ProgressUpdateResponse, error)
	CountByProject(ctx context.Context, sess access.Session, projectID string) (int64, error)
}

type progressService struct {
	repo     *repository.Repository
	projects ProjectService
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewProgressService 创建 ProgressService 实例
func NewProgressService(repo *repository.Repository, projects ProjectService, m *metrics.Metrics, logger *zap.Logger) ProgressService {
	return &progressService{
		repo:     repo,
		projects: projects,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ────────────────────── Record ──────────────────────

func (s *progressService) Record(ctx context.Context, sess access.Session, req *dto.RecordProgressRequest) (*dto.ProgressUpdateResponse, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if req.WeekNumber < 1 {
		return nil, ErrWeekNumberInvalid
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, pkgerrors.Invalid("description", "进度描述不能为空")
	}

	project, err := s.projects.Lookup(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if !sess.Is(model.RoleStudent) || !project.OwnedBy(sess.ActorID()) {
		return nil, ErrProgressPermission
	}
	if !project.Status.IsActive() {
		return nil, fmt.Errorf("%w: 当前状态 %s", ErrProjectNotActive, project.Status)
	}

	update := &model.ProgressUpdate{
		ProjectID:   project.ProjectID,
		WeekNumber:  req.WeekNumber,
		Description: description,
		Note:        strings.TrimSpace(req.Note),
		RecordedBy:  sess.ActorID(),
		Timestamp:   s.now(),
	}
	if err := s.repo.ProgressUpdate.Create(ctx, update); err != nil {
		s.logger.Error("记录周进度失败", zap.String("project_id", project.ProjectID), zap.Error(err))
		return nil, err
	}

	s.metrics.ObserveProgress()
	resp := dto.NewProgressUpdateResponse(update)
	return &resp, nil
}

// ────────────────────── Queries ──────────────────────

func (s *progressService) ListByProject(ctx context.Context, sess access.Session, projectID string) ([]dto.ProgressUpdateResponse, error) {
	if _, err := s.projects.LoadVisible(ctx, sess, projectID); err != nil {
		return nil, err
	}

	list, err := s.repo.ProgressUpdate.ListByProject(ctx, projectID)
	if err != nil {
		s.logger.Error("查询周进度失败", zap.String("project_id", projectID), zap.Error(err))
		return nil, err
	}
	return dto.NewProgressUpdateResponses(list), nil
}

func (s *progressService) ListByWeek(ctx context.Context, sess access.Session, projectID string, week int) ([]dto.ProgressUpdateResponse, error) {
	if week < 1 {
		return nil, ErrWeekNumberInvalid
	}
	if _, err := s.projects.LoadVisible(ctx, sess, projectID); err != nil {
		return nil, err
	}

	list, err := s.repo.ProgressUpdate.ListByProjectAndWeek(ctx, projectID, week)
	if err != nil {
		s.logger.Error("查询周进度失败", zap.String("project_id", projectID), zap.Int("week", week), zap.Error(err))
		return nil, err
	}
	return dto.NewProgressUpdateResponses(list), nil
}

func (s *progressService) CountByProject(ctx context.Context, sess access.Session, projectID string) (int64, error) {
	if _, err := s.projects.LoadVisible(ctx, sess, projectID); err != nil {
		return 0, err
	}

	n, err := s.repo.ProgressUpdate.CountByProject(ctx, projectID)
	if err != nil {
		s.logger.Error("统计周进度失败", zap.String("project_id", projectID), zap.Error(err))
		return 0, err
	}
	return n, nil
}
