package service

import (
	"context"
	"errors"
	"fmt"
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

// ── 项目模块业务错误 ──

var (
	ErrProjectNotFound        = pkgerrors.New(pkgerrors.ErrNotFound, "项目不存在")
	ErrProjectPermission      = pkgerrors.New(pkgerrors.ErrPermission, "无权操作该项目")
	ErrProjectVersionConflict = pkgerrors.New(pkgerrors.ErrConflict, "项目已被其他操作修改，请刷新后重试")
	ErrProjectNotEditable     = pkgerrors.New(pkgerrors.ErrIllegalState, "项目已进入审核流程，不能再修改")
)

// ProjectService 项目生命周期
//
// 状态只经由 model.Action 定义的迁移边修改。迁移的判定顺序：
//  1. 权限：管理员，或项目所属学生的当前导师
//  2. 状态：当前状态必须是动作的源状态
//  3. 写入：按 (状态, 版本) 比较交换，输掉竞争的一方不产生任何修改
type ProjectService interface {
	Submit(ctx context.Context, sess access.Session, draft *dto.ProjectDraft) (*dto.ProjectResponse, error)
	Get(ctx context.Context, sess access.Session, id string) (*dto.ProjectResponse, error)
	// List 按角色限定范围：学生看自己的，导师看名下学生的，管理员看全部
	List(ctx context.Context, sess access.Session, status string) ([]dto.ProjectResponse, error)
	ListByStudent(ctx context.Context, sess access.Session, studentID string) ([]dto.ProjectResponse, error)
	ListForSupervisor(ctx context.Context, sess access.Session, supervisorID string) ([]dto.ProjectResponse, error)
	UpdateDetails(ctx context.Context, sess access.Session, id string, req *dto.UpdateProjectRequest) (*dto.ProjectResponse, error)

	Approve(ctx context.Context, sess access.Session, id string, expectedVersion *int) (*dto.ProjectResponse, error)
	Reject(ctx context.Context, sess access.Session, id string, expectedVersion *int) (*dto.ProjectResponse, error)
	Complete(ctx context.Context, sess access.Session, id string, expectedVersion *int) (*dto.ProjectResponse, error)
	// AuthorizeReview 仅执行迁移的权限判定，不读取请求中的版本号
	AuthorizeReview(ctx context.Context, sess access.Session, id string) error

	SetDeadline(ctx context.Context, sess access.Session, id string, req *dto.SetDeadlineRequest) (*dto.ProjectResponse, error)
	Delete(ctx context.Context, sess access.Session, id string) error

	// Lookup 读取项目当前快照（含状态），不做可见性校验
	Lookup(ctx context.Context, id string) (*model.Project, error)
	// LoadVisible 读取会话可见的项目，不可见时返回 ErrProjectPermission
	LoadVisible(ctx context.Context, sess access.Session, id string) (*model.Project, error)
	// VisibleProjects 会话可见的全部项目
	VisibleProjects(ctx context.Context, sess access.Session, status *model.ProjectStatus) ([]model.Project, error)
}

type projectService struct {
	repo        *repository.Repository
	assignments AssignmentService
	events      mq.Publisher
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewProjectService 创建 ProjectService 实例
func NewProjectService(
	repo *repository.Repository,
	assignments AssignmentService,
	events mq.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) ProjectService {
	return &projectService{
		repo:        repo,
		assignments: assignments,
		events:      events,
		metrics:     m,
		logger:      logger,
	}
}

// ────────────────────── Submit ──────────────────────

func (s *projectService) Submit(ctx context.Context, sess access.Session, draft *dto.ProjectDraft) (*dto.ProjectResponse, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if !sess.Is(model.RoleStudent) {
		return nil, ErrProjectPermission
	}

	project := &model.Project{
		StudentID: sess.ActorID(),
		Status:    model.StatusPending,
	}
	if err := applyDraft(project, draft); err != nil {
		return nil, err
	}

	supervisorID, err := s.assignments.SupervisorOf(ctx, sess.ActorID())
	if err != nil {
		return nil, err
	}
	project.SupervisorID = supervisorID

	actor := sess.ActorID()
	project.CreatedBy = &actor
	project.UpdatedBy = &actor
	project.Version = 1

	if err := s.repo.Project.Create(ctx, project); err != nil {
		s.logger.Error("创建项目失败", zap.String("student_id", actor), zap.Error(err))
		return nil, err
	}

	publishEvent(ctx, s.events, s.logger, mq.RoutingProjectSubmitted, actor, projectEvent(project, ""))
	resp := dto.NewProjectResponse(project)
	return &resp, nil
}

// ────────────────────── Queries ──────────────────────

func (s *projectService) Get(ctx context.Context, sess access.Session, id string) (*dto.ProjectResponse, error) {
	project, err := s.LoadVisible(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	resp := dto.NewProjectResponse(project)
	return &resp, nil
}

func (s *projectService) List(ctx context.Context, sess access.Session, status string) ([]dto.ProjectResponse, error) {
	var filter *model.ProjectStatus
	if status != "" {
		st, err := model.ParseProjectStatus(status)
		if err != nil {
			return nil, err
		}
		filter = &st
	}

	projects, err := s.VisibleProjects(ctx, sess, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewProjectResponses(projects), nil
}

func (s *projectService) VisibleProjects(ctx context.Context, sess access.Session, status *model.ProjectStatus) ([]model.Project, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}

	filter := repository.ProjectFilter{Status: status}
	switch sess.Role() {
	case model.RoleAdmin:
	case model.RoleSupervisor:
		ids, err := s.studentIDsOf(ctx, sess.ActorID())
		if err != nil {
			return nil, err
		}
		filter.StudentIDs = ids
	case model.RoleStudent:
		filter.StudentID = sess.ActorID()
	default:
		return nil, ErrProjectPermission
	}

	projects, err := s.repo.Project.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询项目列表失败", zap.String("role", string(sess.Role())), zap.Error(err))
		return nil, err
	}
	return projects, nil
}

func (s *projectService) ListByStudent(ctx context.Context, sess access.Session, studentID string) ([]dto.ProjectResponse, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}

	switch sess.Role() {
	case model.RoleAdmin:
	case model.RoleStudent:
		if studentID != sess.ActorID() {
			return nil, ErrProjectPermission
		}
	case model.RoleSupervisor:
		supervisorID, err := s.assignments.SupervisorOf(ctx, studentID)
		if err != nil {
			return nil, err
		}
		if supervisorID == nil || *supervisorID != sess.ActorID() {
			return nil, ErrProjectPermission
		}
	default:
		return nil, ErrProjectPermission
	}

	projects, err := s.repo.Project.List(ctx, repository.ProjectFilter{StudentID: studentID})
	if err != nil {
		s.logger.Error("查询学生项目失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	return dto.NewProjectResponses(projects), nil
}

func (s *projectService) ListForSupervisor(ctx context.Context, sess access.Session, supervisorID string) ([]dto.ProjectResponse, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if !sess.Is(model.RoleAdmin) && !(sess.Is(model.RoleSupervisor) && sess.ActorID() == supervisorID) {
		return nil, ErrProjectPermission
	}

	ids, err := s.studentIDsOf(ctx, supervisorID)
	if err != nil {
		return nil, err
	}
	projects, err := s.repo.Project.List(ctx, repository.ProjectFilter{StudentIDs: ids})
	if err != nil {
		s.logger.Error("查询导师项目失败", zap.String("supervisor_id", supervisorID), zap.Error(err))
		return nil, err
	}
	return dto.NewProjectResponses(projects), nil
}

func (s *projectService) Lookup(ctx context.Context, id string) (*model.Project, error) {
	project, err := s.repo.Project.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		s.logger.Error("查询项目失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return project, nil
}

func (s *projectService) LoadVisible(ctx context.Context, sess access.Session, id string) (*model.Project, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	project, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	switch sess.Role() {
	case model.RoleAdmin:
		return project, nil
	case model.RoleStudent:
		if project.OwnedBy(sess.ActorID()) {
			return project, nil
		}
	case model.RoleSupervisor:
		ok, err := s.supervises(ctx, sess.ActorID(), project)
		if err != nil {
			return nil, err
		}
		if ok {
			return project, nil
		}
	}
	return nil, ErrProjectPermission
}

// ────────────────────── UpdateDetails ──────────────────────

func (s *projectService) UpdateDetails(ctx context.Context, sess access.Session, id string, req *dto.UpdateProjectRequest) (*dto.ProjectResponse, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	project, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.Is(model.RoleStudent) || !project.OwnedBy(sess.ActorID()) {
		return nil, ErrProjectPermission
	}
	if project.Status != model.StatusPending {
		return nil, ErrProjectNotEditable
	}
	if req.Version != project.Version {
		return nil, ErrProjectVersionConflict
	}

	if err := applyDraft(project, &req.ProjectDraft); err != nil {
		return nil, err
	}
	actor := sess.ActorID()
	project.UpdatedBy = &actor

	if err := s.repo.Project.UpdateDetails(ctx, project); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, s.classifyLostUpdate(ctx, id, model.StatusPending, ErrProjectNotEditable)
		}
		s.logger.Error("更新项目失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	resp := dto.NewProjectResponse(project)
	return &resp, nil
}

// ────────────────────── Transitions ──────────────────────

func (s *projectService) Approve(ctx context.Context, sess access.Session, id string, expectedVersion *int) (*dto.ProjectResponse, error) {
	return s.transition(ctx, sess, id, model.ActionApprove, expectedVersion)
}

func (s *projectService) Reject(ctx context.Context, sess access.Session, id string, expectedVersion *int) (*dto.ProjectResponse, error) {
	return s.transition(ctx, sess, id, model.ActionReject, expectedVersion)
}

func (s *projectService) Complete(ctx context.Context, sess access.Session, id string, expectedVersion *int) (*dto.ProjectResponse, error) {
	return s.transition(ctx, sess, id, model.ActionComplete, expectedVersion)
}

func (s *projectService) AuthorizeReview(ctx context.Context, sess access.Session, id string) error {
	_, err := s.reviewable(ctx, sess, id)
	return err
}

// reviewable 读取项目并校验审核权限
func (s *projectService) reviewable(ctx context.Context, sess access.Session, id string) (*model.Project, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	// 1. 角色
	if !sess.IsAny(model.RoleSupervisor, model.RoleAdmin) {
		return nil, ErrProjectPermission
	}

	project, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	// 2. 导师须为项目所属学生的当前导师
	if sess.Is(model.RoleSupervisor) {
		ok, err := s.supervises(ctx, sess.ActorID(), project)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrProjectPermission
		}
	}
	return project, nil
}

func (s *projectService) transition(ctx context.Context, sess access.Session, id string, action model.Action, expectedVersion *int) (*dto.ProjectResponse, error) {
	project, err := s.reviewable(ctx, sess, id)
	if err != nil {
		return nil, err
	}

	// 3. 状态机
	from := project.Status
	to, err := action.Apply(from)
	if err != nil {
		return nil, err
	}
	if expectedVersion != nil && *expectedVersion != project.Version {
		return nil, ErrProjectVersionConflict
	}

	// 4. 比较交换
	err = s.repo.Project.CompareAndSetStatus(ctx, repository.StatusCAS{
		ProjectID:       id,
		From:            from,
		To:              to,
		ExpectedVersion: expectedVersion,
		UpdatedBy:       sess.ActorID(),
	})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, s.classifyLostUpdate(ctx, id, from, model.ErrInvalidTransition)
		}
		s.logger.Error("项目状态迁移失败",
			zap.String("id", id),
			zap.String("action", string(action)),
			zap.Error(err),
		)
		return nil, err
	}

	project.Status = to
	project.Version++
	s.metrics.ObserveTransition(string(from), string(to))
	s.logger.Info("项目状态迁移",
		zap.String("id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor_id", sess.ActorID()),
	)
	publishEvent(ctx, s.events, s.logger, routingFor(action), sess.ActorID(), projectEvent(project, from))

	resp := dto.NewProjectResponse(project)
	return &resp, nil
}

// classifyLostUpdate 比较交换未命中时重新读取：状态已变返回 stateErr，仅版本变化返回冲突
func (s *projectService) classifyLostUpdate(ctx context.Context, id string, expected model.ProjectStatus, stateErr error) error {
	current, err := s.Lookup(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != expected {
		return fmt.Errorf("%w: 当前状态 %s", stateErr, current.Status)
	}
	return ErrProjectVersionConflict
}

// ────────────────────── SetDeadline ──────────────────────

func (s *projectService) SetDeadline(ctx context.Context, sess access.Session, id string, req *dto.SetDeadlineRequest) (*dto.ProjectResponse, error) {
	if !sess.Is(model.RoleAdmin) {
		return nil, ErrProjectPermission
	}

	end, err := time.Parse(dto.DateLayout, req.EndDate)
	if err != nil {
		return nil, pkgerrors.Invalid("end_date", "日期格式应为 YYYY-MM-DD")
	}

	project, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.StartDate != nil && end.Before(*project.StartDate) {
		return nil, pkgerrors.Invalid("end_date", "截止日期不能早于开始日期")
	}
	if req.Version != project.Version {
		return nil, ErrProjectVersionConflict
	}

	if err := s.repo.Project.SetEndDate(ctx, id, end, req.Version, sess.ActorID()); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrProjectVersionConflict
		}
		s.logger.Error("设置截止日期失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	project.EndDate = &end
	project.Version++
	resp := dto.NewProjectResponse(project)
	return &resp, nil
}

// ────────────────────── Delete ──────────────────────

func (s *projectService) Delete(ctx context.Context, sess access.Session, id string) error {
	if !sess.Is(model.RoleAdmin) {
		return ErrProjectPermission
	}
	if _, err := s.Lookup(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Project.Delete(ctx, id, sess.ActorID()); err != nil {
		s.logger.Error("删除项目失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// ── 内部辅助 ──

// supervises 导师是否为项目所属学生的当前导师（以指导关系为准）
func (s *projectService) supervises(ctx context.Context, supervisorID string, project *model.Project) (bool, error) {
	current, err := s.assignments.SupervisorOf(ctx, project.StudentID)
	if err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			return false, nil
		}
		return false, err
	}
	return current != nil && *current == supervisorID, nil
}

func (s *projectService) studentIDsOf(ctx context.Context, supervisorID string) ([]string, error) {
	students, err := s.assignments.StudentsOf(ctx, supervisorID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.UserID)
	}
	return ids, nil
}

// applyDraft 校验并写入描述性字段，不触碰状态与归属
func applyDraft(project *model.Project, draft *dto.ProjectDraft) error {
	title := strings.TrimSpace(draft.Title)
	objective := strings.TrimSpace(draft.Objective)
	description := strings.TrimSpace(draft.Description)
	category := strings.TrimSpace(draft.Category)
	tools := strings.TrimSpace(draft.Tools)
	githubLink := strings.TrimSpace(draft.GithubLink)

	if title == "" {
		return pkgerrors.Invalid("title", "项目标题不能为空")
	}
	if objective == "" {
		return pkgerrors.Invalid("objective", "项目目标不能为空")
	}
	if description == "" {
		return pkgerrors.Invalid("description", "项目描述不能为空")
	}
	for _, f := range []struct {
		field string
		value string
		max   int
	}{
		{"title", title, model.MaxTitleLen},
		{"objective", objective, model.MaxObjectiveLen},
		{"category", category, model.MaxCategoryLen},
		{"tools", tools, model.MaxToolsLen},
		{"github_link", githubLink, model.MaxGithubLinkLen},
	} {
		if utf8.RuneCountInString(f.value) > f.max {
			return pkgerrors.Invalid(f.field, fmt.Sprintf("长度不能超过 %d 个字符", f.max))
		}
	}
	if draft.DurationMonths < 0 {
		return pkgerrors.Invalid("duration_months", "项目周期不能为负数")
	}

	start, err := parseOptionalDate("start_date", draft.StartDate)
	if err != nil {
		return err
	}
	end, err := parseOptionalDate("end_date", draft.EndDate)
	if err != nil {
		return err
	}
	if start != nil && end != nil && end.Before(*start) {
		return pkgerrors.Invalid("end_date", "结束日期不能早于开始日期")
	}

	project.Title = title
	project.Objective = objective
	project.Description = description
	project.Category = category
	project.Tools = tools
	project.Resources = strings.TrimSpace(draft.Resources)
	project.GithubLink = githubLink
	project.StartDate = start
	project.EndDate = end
	project.DurationMonths = draft.DurationMonths
	return nil
}

func parseOptionalDate(field string, s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := time.Parse(dto.DateLayout, strings.TrimSpace(*s))
	if err != nil {
		return nil, pkgerrors.Invalid(field, "日期格式应为 YYYY-MM-DD")
	}
	return &t, nil
}

func routingFor(action model.Action) string {
	switch action {
	case model.ActionApprove:
		return mq.RoutingProjectApproved
	case model.ActionReject:
		return mq.RoutingProjectRejected
	case model.ActionComplete:
		return mq.RoutingProjectCompleted
	default:
		return "project." + string(action)
	}
}

type projectEventPayload struct {
	ProjectID    string  `json:"project_id"`
	StudentID    string  `json:"student_id"`
	SupervisorID *string `json:"supervisor_id,omitempty"`
	From         string  `json:"from,omitempty"`
	To           string  `json:"to"`
	Version      int     `json:"version"`
}

func projectEvent(p *model.Project, from model.ProjectStatus) projectEventPayload {
	return projectEventPayload{
		ProjectID:    p.ProjectID,
		StudentID:    p.StudentID,
		SupervisorID: p.SupervisorID,
		From:         string(from),
		To:           string(p.Status),
		Version:      p.Version,
	}
}
