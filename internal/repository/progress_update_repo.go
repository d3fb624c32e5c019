package repository

import (
	"context"

	"gorm.io/gorm"

	"student-portal/internal/model"
)

// ProgressUpdateRepository 周进度数据访问接口（只追加）
type ProgressUpdateRepository interface {
	Create(ctx context.Context, update *model.ProgressUpdate) error
	ListByProject(ctx context.Context, projectID string) ([]model.ProgressUpdate, error)
	ListByProjectAndWeek(ctx context.Context, projectID string, week int) ([]model.ProgressUpdate, error)
	CountByProject(ctx context.Context, projectID string) (int64, error)
}

type progressUpdateRepo struct {
	db *gorm.DB
}

// NewProgressUpdateRepo 创建 ProgressUpdateRepository 实例
func NewProgressUpdateRepo(db *gorm.DB) ProgressUpdateRepository {
	return &progressUpdateRepo{db: db}
}

func (r *progressUpdateRepo) Create(ctx context.Context, update *model.ProgressUpdate) error {
	return r.db.WithContext(ctx).Create(update).Error
}

// ListByProject 按时间升序，同一时间按 ID 排序保证重复读取顺序稳定
func (r *progressUpdateRepo) ListByProject(ctx context.Context, projectID string) ([]model.ProgressUpdate, error) {
	var updates []model.ProgressUpdate
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("timestamp ASC, progress_update_id ASC").
		Find(&updates).Error
	return updates, err
}

func (r *progressUpdateRepo) ListByProjectAndWeek(ctx context.Context, projectID string, week int) ([]model.ProgressUpdate, error) {
	var updates []model.ProgressUpdate
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND week_number = ?", projectID, week).
		Order("timestamp ASC, progress_update_id ASC").
		Find(&updates).Error
	return updates, err
}

func (r *progressUpdateRepo) CountByProject(ctx context.Context, projectID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.ProgressUpdate{}).
		Where("project_id = ?", projectID).
		Count(&n).Error
	return n, err
}
