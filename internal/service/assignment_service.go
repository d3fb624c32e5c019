package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"student-portal/internal/access"
	"student-portal/internal/dto"
	"student-portal/internal/model"
	"student-portal/internal/repository"
	pkgerrors "student-portal/pkg/errors"
	"student-portal/pkg/mq"
)

// ── 指导关系模块业务错误 ──

var (
	ErrStudentNotFound      = pkgerrors.New(pkgerrors.ErrNotFound, "学生不存在")
	ErrSupervisorNotFound   = pkgerrors.New(pkgerrors.ErrNotFound, "导师不存在")
	ErrAssignmentPermission = pkgerrors.New(pkgerrors.ErrPermission, "无权变更该学生的导师")
	ErrAssignmentNotVisible = pkgerrors.New(pkgerrors.ErrPermission, "无权查看该指导关系")
)

// AssignmentService 学生 → 导师指导关系
//
// 关系以 users.supervisor_id 存储，每个学生至多一位导师。
// 变更导师时同一事务内同步该学生全部非终态项目的 supervisor_id。
type AssignmentService interface {
	// Assign 覆盖学生的导师（后写覆盖），仅管理员
	Assign(ctx context.Context, sess access.Session, studentID, supervisorID string) (*dto.AssignmentResponse, error)
	// Unassign 解除指导关系，管理员或当前导师；未分配时为空操作
	Unassign(ctx context.Context, sess access.Session, studentID string) (*dto.AssignmentResponse, error)
	StudentsOf(ctx context.Context, supervisorID string) ([]model.User, error)
	// SupervisorOf 学生当前导师 ID，未分配时返回 nil
	SupervisorOf(ctx context.Context, studentID string) (*string, error)
	// GetSupervisor 学生当前导师信息，未分配时返回 nil
	GetSupervisor(ctx context.Context, sess access.Session, studentID string) (*dto.UserResponse, error)
	ListStudents(ctx context.Context, sess access.Session, supervisorID string) ([]dto.UserResponse, error)
	// SyncProjectSupervisors 为缺少导师的项目回填学生当前导师，仅管理员
	SyncProjectSupervisors(ctx context.Context, sess access.Session) (*dto.SyncSupervisorsResponse, error)
}

type assignmentService struct {
	repo   *repository.Repository
	events mq.Publisher
	logger *zap.Logger
}

// NewAssignmentService 创建 AssignmentService 实例
func NewAssignmentService(repo *repository.Repository, events mq.Publisher, logger *zap.Logger) AssignmentService {
	return &assignmentService{repo: repo, events: events, logger: logger}
}

// ────────────────────── Assign ──────────────────────

func (s *assignmentService) Assign(ctx context.Context, sess access.Session, studentID, supervisorID string) (*dto.AssignmentResponse, error) {
	if !sess.Is(model.RoleAdmin) {
		return nil, ErrAssignmentPermission
	}

	if _, err := s.loadUser(ctx, studentID, model.RoleStudent, ErrStudentNotFound); err != nil {
		return nil, err
	}
	if _, err := s.loadUser(ctx, supervisorID, model.RoleSupervisor, ErrSupervisorNotFound); err != nil {
		return nil, err
	}

	var updated int64
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.User.SetSupervisor(ctx, studentID, &supervisorID, sess.ActorID()); err != nil {
			return err
		}
		n, err := tx.Project.ReassignSupervisor(ctx, studentID, &supervisorID)
		updated = n
		return err
	})
	if err != nil {
		s.logger.Error("分配导师失败",
			zap.String("student_id", studentID),
			zap.String("supervisor_id", supervisorID),
			zap.Error(err),
		)
		return nil, err
	}

	resp := &dto.AssignmentResponse{
		StudentID:       studentID,
		SupervisorID:    &supervisorID,
		ProjectsUpdated: updated,
	}
	publishEvent(ctx, s.events, s.logger, mq.RoutingAssignmentChanged, sess.ActorID(), resp)
	return resp, nil
}

// ────────────────────── Unassign ──────────────────────

func (s *assignmentService) Unassign(ctx context.Context, sess access.Session, studentID string) (*dto.AssignmentResponse, error) {
	if !sess.IsAny(model.RoleAdmin, model.RoleSupervisor) {
		return nil, ErrAssignmentPermission
	}

	student, err := s.loadUser(ctx, studentID, model.RoleStudent, ErrStudentNotFound)
	if err != nil {
		return nil, err
	}

	resp := &dto.AssignmentResponse{StudentID: studentID}
	if student.SupervisorID == nil {
		return resp, nil
	}
	if sess.Is(model.RoleSupervisor) && *student.SupervisorID != sess.ActorID() {
		return nil, ErrAssignmentPermission
	}

	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.User.SetSupervisor(ctx, studentID, nil, sess.ActorID()); err != nil {
			return err
		}
		n, err := tx.Project.ReassignSupervisor(ctx, studentID, nil)
		resp.ProjectsUpdated = n
		return err
	})
	if err != nil {
		s.logger.Error("解除导师失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	publishEvent(ctx, s.events, s.logger, mq.RoutingAssignmentChanged, sess.ActorID(), resp)
	return resp, nil
}

// ────────────────────── Queries ──────────────────────

func (s *assignmentService) StudentsOf(ctx context.Context, supervisorID string) ([]model.User, error) {
	students, err := s.repo.User.ListBySupervisor(ctx, supervisorID)
	if err != nil {
		s.logger.Error("查询导师名下学生失败", zap.String("supervisor_id", supervisorID), zap.Error(err))
		return nil, err
	}
	return students, nil
}

func (s *assignmentService) SupervisorOf(ctx context.Context, studentID string) (*string, error) {
	student, err := s.loadUser(ctx, studentID, model.RoleStudent, ErrStudentNotFound)
	if err != nil {
		return nil, err
	}
	return student.SupervisorID, nil
}

// GetSupervisor 管理员、学生本人或其当前导师可查看
func (s *assignmentService) GetSupervisor(ctx context.Context, sess access.Session, studentID string) (*dto.UserResponse, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}

	student, err := s.loadUser(ctx, studentID, model.RoleStudent, ErrStudentNotFound)
	if err != nil {
		return nil, err
	}
	supervisorID := student.SupervisorID
	switch {
	case sess.Is(model.RoleAdmin), sess.ActorID() == studentID:
	case sess.Is(model.RoleSupervisor) && supervisorID != nil && *supervisorID == sess.ActorID():
	default:
		return nil, ErrAssignmentNotVisible
	}
	if supervisorID == nil {
		return nil, nil
	}

	supervisor, err := s.repo.User.GetByID(ctx, *supervisorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.logger.Error("查询导师失败", zap.String("supervisor_id", *supervisorID), zap.Error(err))
		return nil, err
	}
	resp := dto.NewUserResponse(supervisor)
	return &resp, nil
}

// ListStudents 管理员或导师本人可查看
func (s *assignmentService) ListStudents(ctx context.Context, sess access.Session, supervisorID string) ([]dto.UserResponse, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if !sess.Is(model.RoleAdmin) && sess.ActorID() != supervisorID {
		return nil, ErrAssignmentNotVisible
	}
	if _, err := s.loadUser(ctx, supervisorID, model.RoleSupervisor, ErrSupervisorNotFound); err != nil {
		return nil, err
	}

	students, err := s.StudentsOf(ctx, supervisorID)
	if err != nil {
		return nil, err
	}
	return dto.NewUserResponses(students), nil
}

// ────────────────────── SyncProjectSupervisors ──────────────────────

func (s *assignmentService) SyncProjectSupervisors(ctx context.Context, sess access.Session) (*dto.SyncSupervisorsResponse, error) {
	if !sess.Is(model.RoleAdmin) {
		return nil, ErrAssignmentPermission
	}

	n, err := s.repo.Project.FillMissingSupervisors(ctx)
	if err != nil {
		s.logger.Error("回填项目导师失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("已回填项目导师", zap.Int64("projects", n))
	return &dto.SyncSupervisorsResponse{ProjectsUpdated: n}, nil
}

// ── 内部辅助 ──

// loadUser 按 ID 查询指定角色的用户，角色不符同样视为不存在
func (s *assignmentService) loadUser(ctx context.Context, id string, role model.Role, notFound error) (*model.User, error) {
	user, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound
		}
		s.logger.Error("查询用户失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if user.Role != role {
		return nil, notFound
	}
	return user, nil
}
