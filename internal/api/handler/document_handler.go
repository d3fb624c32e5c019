package handler

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"student-portal/internal/dto"
	"student-portal/internal/service"
	"student-portal/pkg/response"
)

// DocumentHandler 导师资料 HTTP 处理器
type DocumentHandler struct {
	documentSvc service.DocumentService
}

// NewDocumentHandler 创建 DocumentHandler
func NewDocumentHandler(documentSvc service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentSvc: documentSvc}
}

// Upload 导师上传资料（multipart/form-data，文件字段 file）
// POST /api/v1/documents
func (h *DocumentHandler) Upload(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	var req dto.UploadDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			handleError(c, service.ErrDocumentFileMissing)
			return
		}
		bindError(c, err)
		return
	}

	f, err := fh.Open()
	if err != nil {
		_ = c.Error(err)
		response.InternalError(c)
		return
	}
	defer f.Close()

	doc, err := h.documentSvc.Upload(c.Request.Context(), sess, &req, &dto.UploadFile{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Reader:      f,
	})
	if err != nil {
		handleError(c, err)
		return
	}

	response.Created(c, doc)
}

// List 资料列表
// GET /api/v1/documents?supervisor_id=xxx
func (h *DocumentHandler) List(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	docs, err := h.documentSvc.List(c.Request.Context(), sess, c.Query("supervisor_id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, docs)
}

// Download 下载资料
// GET /api/v1/documents/:id/download
func (h *DocumentHandler) Download(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	file, err := h.documentSvc.Download(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	defer file.Body.Close()

	// 设置下载响应头
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(file.FileName))
	c.Header("Content-Type", file.ContentType)
	if file.Size > 0 {
		c.Header("Content-Length", strconv.FormatInt(file.Size, 10))
	}
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file.Body); err != nil {
		_ = c.Error(err)
	}
}

// DownloadURL 获取限时下载直链
// GET /api/v1/documents/:id/url
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	link, err := h.documentSvc.DownloadURL(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, link)
}

// Delete 删除资料（上传者或管理员）
// DELETE /api/v1/documents/:id
func (h *DocumentHandler) Delete(c *gin.Context) {
	sess, ok := MustGetSession(c)
	if !ok {
		return
	}

	if err := h.documentSvc.Delete(c.Request.Context(), sess, c.Param("id")); err != nil {
		handleError(c, err)
		return
	}

	response.OK(c, nil)
}
