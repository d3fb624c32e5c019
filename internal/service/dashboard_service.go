package service

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"student-portal/internal/access"
	"student-portal/internal/dto"
	"student-portal/internal/model"
	"student-portal/internal/repository"
)

// DashboardService 按会话角色组装看板
type DashboardService interface {
	ForSession(ctx context.Context, sess access.Session) (*dto.DashboardResponse, error)
	// ProjectProgress 管理员查看单个项目的进展
	ProjectProgress(ctx context.Context, sess access.Session, projectID string) (*dto.ProjectProgressResponse, error)
}

type dashboardService struct {
	repo        *repository.Repository
	assignments AssignmentService
	projects    ProjectService
	logger      *zap.Logger
}

// NewDashboardService 创建 DashboardService 实例
func NewDashboardService(
	repo *repository.Repository,
	assignments AssignmentService,
	projects ProjectService,
	logger *zap.Logger,
) DashboardService {
	return &dashboardService{
		repo:        repo,
		assignments: assignments,
		projects:    projects,
		logger:      logger,
	}
}

func (s *dashboardService) ForSession(ctx context.Context, sess access.Session) (*dto.DashboardResponse, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}

	resp := &dto.DashboardResponse{Role: string(sess.Role())}
	var err error
	switch sess.Role() {
	case model.RoleStudent:
		resp.Student, err = s.student(ctx, sess)
	case model.RoleSupervisor:
		resp.Supervisor, err = s.supervisor(ctx, sess)
	case model.RoleAdmin:
		resp.Admin, err = s.admin(ctx)
	default:
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ── 学生 ──

func (s *dashboardService) student(ctx context.Context, sess access.Session) (*dto.StudentDashboard, error) {
	supervisor, err := s.assignments.GetSupervisor(ctx, sess, sess.ActorID())
	if err != nil {
		return nil, err
	}

	projects, err := s.projects.VisibleProjects(ctx, sess, nil)
	if err != nil {
		return nil, err
	}

	overview := make([]dto.StudentProjectOverview, 0, len(projects))
	for i := range projects {
		p := &projects[i]
		count, err := s.repo.ProgressUpdate.CountByProject(ctx, p.ProjectID)
		if err != nil {
			s.logger.Error("统计周进度失败", zap.String("project_id", p.ProjectID), zap.Error(err))
			return nil, err
		}

		item := dto.StudentProjectOverview{
			Project:       dto.NewProjectResponse(p),
			ProgressCount: count,
		}
		latest, err := s.repo.Evaluation.Latest(ctx, p.ProjectID)
		switch {
		case err == nil:
			e := dto.NewEvaluationResponse(latest)
			item.LatestEvaluation = &e
		case !errors.Is(err, gorm.ErrRecordNotFound):
			s.logger.Error("查询最新评分失败", zap.String("project_id", p.ProjectID), zap.Error(err))
			return nil, err
		}
		overview = append(overview, item)
	}

	return &dto.StudentDashboard{Supervisor: supervisor, Projects: overview}, nil
}

// ── 导师 ──

func (s *dashboardService) supervisor(ctx context.Context, sess access.Session) (*dto.SupervisorDashboard, error) {
	students, err := s.assignments.StudentsOf(ctx, sess.ActorID())
	if err != nil {
		return nil, err
	}
	projects, err := s.projects.VisibleProjects(ctx, sess, nil)
	if err != nil {
		return nil, err
	}

	board := &dto.SupervisorDashboard{
		Students: dto.NewUserResponses(students),
		Projects: dto.NewProjectResponses(projects),
	}
	for _, p := range projects {
		switch {
		case p.Status == model.StatusPending:
			board.PendingCount++
		case p.Status.IsActive():
			board.ActiveCount++
		}
	}
	return board, nil
}

// ── 管理员 ──

func (s *dashboardService) admin(ctx context.Context) (*dto.AdminDashboard, error) {
	students, err := s.repo.User.CountByRole(ctx, model.RoleStudent)
	if err != nil {
		s.logger.Error("统计学生数失败", zap.Error(err))
		return nil, err
	}
	supervisors, err := s.repo.User.CountByRole(ctx, model.RoleSupervisor)
	if err != nil {
		s.logger.Error("统计导师数失败", zap.Error(err))
		return nil, err
	}
	byStatus, err := s.repo.Project.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("按状态统计项目失败", zap.Error(err))
		return nil, err
	}

	board := &dto.AdminDashboard{
		TotalStudents:    students,
		TotalSupervisors: supervisors,
		ByStatus:         make(map[string]int64, len(model.ProjectStatuses)),
	}
	for _, st := range model.ProjectStatuses {
		n := byStatus[st]
		board.ByStatus[string(st)] = n
		board.TotalProjects += n
	}
	board.PendingProjects = byStatus[model.StatusPending]
	board.CompletedProjects = byStatus[model.StatusCompleted]
	board.CompletionRate = completionRate(board.CompletedProjects, board.TotalProjects)
	return board, nil
}

// completionRate 完成率百分比，保留一位小数；无项目时为 0
func completionRate(completed, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*1000) / 10
}

// ────────────────────── ProjectProgress ──────────────────────

func (s *dashboardService) ProjectProgress(ctx context.Context, sess access.Session, projectID string) (*dto.ProjectProgressResponse, error) {
	if !sess.Is(model.RoleAdmin) {
		return nil, ErrProjectPermission
	}

	project, err := s.projects.Lookup(ctx, projectID)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.ProgressUpdate.CountByProject(ctx, projectID)
	if err != nil {
		s.logger.Error("统计周进度失败", zap.String("project_id", projectID), zap.Error(err))
		return nil, err
	}
	avg, err := s.repo.Evaluation.Average(ctx, projectID)
	if err != nil {
		s.logger.Error("计算平均分失败", zap.String("project_id", projectID), zap.Error(err))
		return nil, err
	}

	return &dto.ProjectProgressResponse{
		Project:      dto.NewProjectResponse(project),
		UpdateCount:  count,
		AverageScore: avg,
	}, nil
}
