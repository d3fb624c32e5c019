package repository

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"student-portal/internal/model"
)

// FeedbackRepository 导师反馈数据访问接口
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *model.Feedback) error
	GetByID(ctx context.Context, id string) (*model.Feedback, error)
	// Update 修改内容与评级
	Update(ctx context.Context, feedback *model.Feedback) error
	Delete(ctx context.Context, id string) error
	ListByProject(ctx context.Context, projectID string) ([]model.Feedback, error)
	AverageRating(ctx context.Context, projectID string) (*float64, error)
}

type feedbackRepo struct {
	db *gorm.DB
}

// NewFeedbackRepo 创建 FeedbackRepository 实例
func NewFeedbackRepo(db *gorm.DB) FeedbackRepository {
	return &feedbackRepo{db: db}
}

func (r *feedbackRepo) Create(ctx context.Context, feedback *model.Feedback) error {
	return r.db.WithContext(ctx).Create(feedback).Error
}

func (r *feedbackRepo) GetByID(ctx context.Context, id string) (*model.Feedback, error) {
	var feedback model.Feedback
	err := r.db.WithContext(ctx).
		Where("feedback_id = ?", id).
		First(&feedback).Error
	if err != nil {
		return nil, err
	}
	return &feedback, nil
}

func (r *feedbackRepo) Update(ctx context.Context, feedback *model.Feedback) error {
	return r.db.WithContext(ctx).
		Model(&model.Feedback{}).
		Where("feedback_id = ?", feedback.FeedbackID).
		Updates(map[string]interface{}{
			"comment": feedback.Comment,
			"rating":  feedback.Rating,
		}).Error
}

func (r *feedbackRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("feedback_id = ?", id).
		Delete(&model.Feedback{}).Error
}

func (r *feedbackRepo) ListByProject(ctx context.Context, projectID string) ([]model.Feedback, error) {
	var list []model.Feedback
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *feedbackRepo) AverageRating(ctx context.Context, projectID string) (*float64, error) {
	var avg sql.NullFloat64
	err := r.db.WithContext(ctx).
		Model(&model.Feedback{}).
		Select("AVG(rating)").
		Where("project_id = ?", projectID).
		Scan(&avg).Error
	if err != nil {
		return nil, err
	}
	if !avg.Valid {
		return nil, nil
	}
	return &avg.Float64, nil
}
