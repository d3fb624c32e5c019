package dto

import (
	"io"
	"time"

	"student-portal/internal/model"
)

// ── 导师资料 ──

// UploadDocumentRequest 上传资料（multipart 表单字段）
type UploadDocumentRequest struct {
	Title       string `form:"title"`
	Description string `form:"description"`
	StudentID   string `form:"student_id"` // 为空表示发给名下全部学生
}

// UploadFile 上传文件内容，由 Handler 从 multipart 中取出
type UploadFile struct {
	Name        string
	Size        int64
	ContentType string
	Reader      io.Reader
}

// DocumentResponse 资料响应
type DocumentResponse struct {
	ID           string  `json:"id"`
	SupervisorID string  `json:"supervisor_id"`
	StudentID    *string `json:"student_id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	FileName     string  `json:"file_name"`
	FileSize     int64   `json:"file_size"`
	ContentType  string  `json:"content_type"`
	CreatedAt    string  `json:"created_at"`
}

// NewDocumentResponse 由模型构造响应
func NewDocumentResponse(d *model.Document) DocumentResponse {
	return DocumentResponse{
		ID:           d.DocumentID,
		SupervisorID: d.SupervisorID,
		StudentID:    d.StudentID,
		Title:        d.Title,
		Description:  d.Description,
		FileName:     d.FileName,
		FileSize:     d.FileSize,
		ContentType:  d.ContentType,
		CreatedAt:    d.CreatedAt.Format(time.RFC3339),
	}
}

// NewDocumentResponses 批量构造
func NewDocumentResponses(docs []model.Document) []DocumentResponse {
	out := make([]DocumentResponse, 0, len(docs))
	for i := range docs {
		out = append(out, NewDocumentResponse(&docs[i]))
	}
	return out
}

// DocumentDownload 下载结果
type DocumentDownload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// DocumentLinkResponse 限时下载直链
type DocumentLinkResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}
