package repository

import (
	"context"

	"gorm.io/gorm"

	"student-portal/internal/model"
)

// DocumentRepository 导师资料数据访问接口
type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, id string) (*model.Document, error)
	ListBySupervisor(ctx context.Context, supervisorID string) ([]model.Document, error)
	// ListForStudent 导师的通用资料与发给该学生的资料
	ListForStudent(ctx context.Context, supervisorID, studentID string) ([]model.Document, error)
	Delete(ctx context.Context, id string) error
}

type documentRepo struct {
	db *gorm.DB
}

// NewDocumentRepo 创建 DocumentRepository 实例
func NewDocumentRepo(db *gorm.DB) DocumentRepository {
	return &documentRepo{db: db}
}

func (r *documentRepo) Create(ctx context.Context, doc *model.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *documentRepo) GetByID(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).
		Where("document_id = ?", id).
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepo) ListBySupervisor(ctx context.Context, supervisorID string) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.WithContext(ctx).
		Where("supervisor_id = ?", supervisorID).
		Order("created_at DESC").
		Find(&docs).Error
	return docs, err
}

func (r *documentRepo) ListForStudent(ctx context.Context, supervisorID, studentID string) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.WithContext(ctx).
		Where("supervisor_id = ? AND (student_id IS NULL OR student_id = ?)", supervisorID, studentID).
		Order("created_at DESC").
		Find(&docs).Error
	return docs, err
}

func (r *documentRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("document_id = ?", id).
		Delete(&model.Document{}).Error
}
