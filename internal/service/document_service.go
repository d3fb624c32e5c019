package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"student-portal/internal/access"
	"student-portal/internal/dto"
	"student-portal/internal/model"
	"student-portal/internal/repository"
	pkgerrors "student-portal/pkg/errors"
	"student-portal/pkg/storage"
)

// ── 资料模块业务错误 ──

var (
	ErrDocumentNotFound    = pkgerrors.New(pkgerrors.ErrNotFound, "资料不存在")
	ErrDocumentPermission  = pkgerrors.New(pkgerrors.ErrPermission, "无权访问该资料")
	ErrDocumentFileMissing = pkgerrors.Invalid("file", "请选择要上传的文件")
	ErrDocumentTooLarge    = pkgerrors.Invalid("file", "文件大小超出限制")
	ErrStorageUnavailable  = pkgerrors.New(pkgerrors.ErrIllegalState, "文件存储未启用")
)

// DocumentService 导师向名下学生分发资料
//
// 文件内容写入对象存储，元数据写入数据库；
// StudentID 为空的资料对导师名下全部学生可见。
type DocumentService interface {
	Upload(ctx context.Context, sess access.Session, req *dto.UploadDocumentRequest, file *dto.UploadFile) (*dto.DocumentResponse, error)
	// List 学生看到自己导师的资料；导师看到自己的；管理员须指定导师
	List(ctx context.Context, sess access.Session, supervisorID string) ([]dto.DocumentResponse, error)
	Download(ctx context.Context, sess access.Session, id string) (*dto.DocumentDownload, error)
	// DownloadURL 生成限时直链，可见性规则同 Download
	DownloadURL(ctx context.Context, sess access.Session, id string) (*dto.DocumentLinkResponse, error)
	Delete(ctx context.Context, sess access.Session, id string) error
}

type documentService struct {
	repo        *repository.Repository
	assignments AssignmentService
	store       storage.ObjectStore
	maxSize     int64
	logger      *zap.Logger
	now         func() time.Time
}

// NewDocumentService 创建 DocumentService 实例
func NewDocumentService(
	repo *repository.Repository,
	assignments AssignmentService,
	store storage.ObjectStore,
	maxSize int64,
	logger *zap.Logger,
) DocumentService {
	return &documentService{
		repo:        repo,
		assignments: assignments,
		store:       store,
		maxSize:     maxSize,
		logger:      logger,
		now:         time.Now,
	}
}

// ────────────────────── Upload ──────────────────────

func (s *documentService) Upload(ctx context.Context, sess access.Session, req *dto.UploadDocumentRequest, file *dto.UploadFile) (*dto.DocumentResponse, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if !sess.Is(model.RoleSupervisor) {
		return nil, ErrDocumentPermission
	}
	if s.store == nil {
		return nil, ErrStorageUnavailable
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, pkgerrors.Invalid("title", "资料标题不能为空")
	}
	if file == nil || file.Reader == nil || file.Size <= 0 {
		return nil, ErrDocumentFileMissing
	}
	if s.maxSize > 0 && file.Size > s.maxSize {
		return nil, ErrDocumentTooLarge
	}

	var studentID *string
	if id := strings.TrimSpace(req.StudentID); id != "" {
		ok, err := s.supervisesStudent(ctx, sess.ActorID(), id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrDocumentPermission
		}
		studentID = &id
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := storage.ObjectKey(sess.ActorID(), file.Name, s.now())

	// 1. 先写对象，再写元数据
	if err := s.store.Put(ctx, key, file.Reader, file.Size, contentType); err != nil {
		s.logger.Error("上传资料文件失败", zap.String("key", key), zap.Error(err))
		return nil, err
	}

	doc := &model.Document{
		SupervisorID: sess.ActorID(),
		StudentID:    studentID,
		Title:        title,
		Description:  strings.TrimSpace(req.Description),
		ObjectKey:    key,
		FileName:     file.Name,
		FileSize:     file.Size,
		ContentType:  contentType,
	}
	if err := s.repo.Document.Create(ctx, doc); err != nil {
		s.logger.Error("保存资料记录失败", zap.String("key", key), zap.Error(err))
		// 2. 元数据失败时清理孤立对象
		if rmErr := s.store.Remove(ctx, key); rmErr != nil {
			s.logger.Warn("清理资料文件失败", zap.String("key", key), zap.Error(rmErr))
		}
		return nil, err
	}

	s.logger.Info("导师上传资料",
		zap.String("document_id", doc.DocumentID),
		zap.String("supervisor_id", doc.SupervisorID),
		zap.Int64("size", doc.FileSize),
	)
	resp := dto.NewDocumentResponse(doc)
	return &resp, nil
}

// ────────────────────── List ──────────────────────

func (s *documentService) List(ctx context.Context, sess access.Session, supervisorID string) ([]dto.DocumentResponse, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}

	var (
		docs []model.Document
		err  error
	)
	switch sess.Role() {
	case model.RoleStudent:
		current, lookupErr := s.assignments.SupervisorOf(ctx, sess.ActorID())
		if lookupErr != nil {
			return nil, lookupErr
		}
		if current == nil {
			return []dto.DocumentResponse{}, nil
		}
		docs, err = s.repo.Document.ListForStudent(ctx, *current, sess.ActorID())
	case model.RoleSupervisor:
		if supervisorID != "" && supervisorID != sess.ActorID() {
			return nil, ErrDocumentPermission
		}
		docs, err = s.repo.Document.ListBySupervisor(ctx, sess.ActorID())
	case model.RoleAdmin:
		if supervisorID == "" {
			return nil, pkgerrors.Invalid("supervisor_id", "请指定导师")
		}
		docs, err = s.repo.Document.ListBySupervisor(ctx, supervisorID)
	default:
		return nil, ErrDocumentPermission
	}
	if err != nil {
		s.logger.Error("查询资料列表失败", zap.String("role", string(sess.Role())), zap.Error(err))
		return nil, err
	}
	return dto.NewDocumentResponses(docs), nil
}

// ────────────────────── Download ──────────────────────

func (s *documentService) Download(ctx context.Context, sess access.Session, id string) (*dto.DocumentDownload, error) {
	doc, err := s.loadVisible(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, ErrStorageUnavailable
	}

	body, size, err := s.store.Get(ctx, doc.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrDocumentNotFound
		}
		s.logger.Error("读取资料文件失败", zap.String("document_id", id), zap.Error(err))
		return nil, err
	}

	return &dto.DocumentDownload{
		FileName:    doc.FileName,
		ContentType: doc.ContentType,
		Size:        size,
		Body:        body,
	}, nil
}

// documentLinkTTL 直链有效期
const documentLinkTTL = 15 * time.Minute

func (s *documentService) DownloadURL(ctx context.Context, sess access.Session, id string) (*dto.DocumentLinkResponse, error) {
	doc, err := s.loadVisible(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, ErrStorageUnavailable
	}

	url, err := s.store.PresignedURL(ctx, doc.ObjectKey, documentLinkTTL)
	if err != nil {
		s.logger.Error("生成资料直链失败", zap.String("document_id", id), zap.Error(err))
		return nil, err
	}
	return &dto.DocumentLinkResponse{
		URL:       url,
		ExpiresAt: s.now().Add(documentLinkTTL).UTC().Format(time.RFC3339),
	}, nil
}

// ────────────────────── Delete ──────────────────────

func (s *documentService) Delete(ctx context.Context, sess access.Session, id string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	doc, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	if !sess.Is(model.RoleAdmin) && !(sess.Is(model.RoleSupervisor) && doc.SupervisorID == sess.ActorID()) {
		return ErrDocumentPermission
	}

	if err := s.repo.Document.Delete(ctx, id); err != nil {
		s.logger.Error("删除资料记录失败", zap.String("document_id", id), zap.Error(err))
		return err
	}
	if s.store != nil {
		if err := s.store.Remove(ctx, doc.ObjectKey); err != nil {
			s.logger.Warn("删除资料文件失败", zap.String("key", doc.ObjectKey), zap.Error(err))
		}
	}
	return nil
}

// ── 内部辅助 ──

func (s *documentService) lookup(ctx context.Context, id string) (*model.Document, error) {
	doc, err := s.repo.Document.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		s.logger.Error("查询资料失败", zap.String("document_id", id), zap.Error(err))
		return nil, err
	}
	return doc, nil
}

func (s *documentService) loadVisible(ctx context.Context, sess access.Session, id string) (*model.Document, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	doc, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	switch sess.Role() {
	case model.RoleAdmin:
		return doc, nil
	case model.RoleSupervisor:
		if doc.SupervisorID == sess.ActorID() {
			return doc, nil
		}
	case model.RoleStudent:
		current, err := s.assignments.SupervisorOf(ctx, sess.ActorID())
		if err != nil {
			return nil, err
		}
		if current != nil && *current == doc.SupervisorID && doc.VisibleTo(sess.ActorID()) {
			return doc, nil
		}
	}
	return nil, ErrDocumentPermission
}

func (s *documentService) supervisesStudent(ctx context.Context, supervisorID, studentID string) (bool, error) {
	current, err := s.assignments.SupervisorOf(ctx, studentID)
	if err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("查询学生导师失败: %w", err)
	}
	return current != nil && *current == supervisorID, nil
}
