package repository

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"student-portal/internal/model"
)

// EvaluationRepository 评分数据访问接口
type EvaluationRepository interface {
	Create(ctx context.Context, evaluation *model.Evaluation) error
	GetByID(ctx context.Context, id string) (*model.Evaluation, error)
	// Update 修改分数与评语，不改变评分时间
	Update(ctx context.Context, evaluation *model.Evaluation) error
	Delete(ctx context.Context, id string) error
	ExistsByProject(ctx context.Context, projectID string) (bool, error)
	ListByProject(ctx context.Context, projectID string) ([]model.Evaluation, error)
	// Latest 最新一条评分，不存在时返回 gorm.ErrRecordNotFound
	Latest(ctx context.Context, projectID string) (*model.Evaluation, error)
	// Average 平均分，无评分时返回 nil
	Average(ctx context.Context, projectID string) (*float64, error)
}

type evaluationRepo struct {
	db *gorm.DB
}

// NewEvaluationRepo 创建 EvaluationRepository 实例
func NewEvaluationRepo(db *gorm.DB) EvaluationRepository {
	return &evaluationRepo{db: db}
}

func (r *evaluationRepo) Create(ctx context.Context, evaluation *model.Evaluation) error {
	return r.db.WithContext(ctx).Create(evaluation).Error
}

func (r *evaluationRepo) GetByID(ctx context.Context, id string) (*model.Evaluation, error) {
	var evaluation model.Evaluation
	err := r.db.WithContext(ctx).
		Where("evaluation_id = ?", id).
		First(&evaluation).Error
	if err != nil {
		return nil, err
	}
	return &evaluation, nil
}

func (r *evaluationRepo) Update(ctx context.Context, evaluation *model.Evaluation) error {
	return r.db.WithContext(ctx).
		Model(&model.Evaluation{}).
		Where("evaluation_id = ?", evaluation.EvaluationID).
		Updates(map[string]interface{}{
			"final_score":   evaluation.FinalScore,
			"final_comment": evaluation.FinalComment,
		}).Error
}

func (r *evaluationRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("evaluation_id = ?", id).
		Delete(&model.Evaluation{}).Error
}

func (r *evaluationRepo) ExistsByProject(ctx context.Context, projectID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Evaluation{}).
		Where("project_id = ?", projectID).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (r *evaluationRepo) ListByProject(ctx context.Context, projectID string) ([]model.Evaluation, error) {
	var evaluations []model.Evaluation
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("timestamp DESC, evaluation_id DESC").
		Find(&evaluations).Error
	return evaluations, err
}

func (r *evaluationRepo) Latest(ctx context.Context, projectID string) (*model.Evaluation, error) {
	var evaluation model.Evaluation
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("timestamp DESC, evaluation_id DESC").
		First(&evaluation).Error
	if err != nil {
		return nil, err
	}
	return &evaluation, nil
}

func (r *evaluationRepo) Average(ctx context.Context, projectID string) (*float64, error) {
	var avg sql.NullFloat64
	err := r.db.WithContext(ctx).
		Model(&model.Evaluation{}).
		Select("AVG(final_score)").
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
