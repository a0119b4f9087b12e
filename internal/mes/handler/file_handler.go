package handler

import (
	"fmt"
	"io"
	"mime/multipart"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/gin-gonic/gin"
)

// FileHandler 文件上传下载
type FileHandler struct {
	svc *service.FileService
}

func NewFileHandler(svc *service.FileService) *FileHandler {
	return &FileHandler{svc: svc}
}

// Upload POST /files/upload（multipart，字段 file 或 files）
func (h *FileHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		RespondError(c, service.ValidationError("cannot parse upload: "+err.Error()))
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["file"]
	}
	if len(files) == 0 {
		RespondError(c, service.ValidationError("no file uploaded", service.FieldError{Field: "file", Message: "is required"}))
		return
	}

	uploaded := make([]*entity.StoredFile, 0, len(files))
	for _, fh := range files {
		stored, err := h.store(c, fh)
		if err != nil {
			RespondError(c, err)
			return
		}
		uploaded = append(uploaded, stored)
	}
	Created(c, gin.H{"files": uploaded})
}

func (h *FileHandler) store(c *gin.Context, fh *multipart.FileHeader) (*entity.StoredFile, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, service.ValidationError("cannot read uploaded file " + fh.Filename)
	}
	defer src.Close()
	return h.svc.Upload(c.Request.Context(), GetPrincipal(c), fh.Filename, fh.Header.Get("Content-Type"), fh.Size, src)
}

// Download GET /files/download/:id
func (h *FileHandler) Download(c *gin.Context) {
	file, body, err := h.svc.Download(c.Request.Context(), GetPrincipal(c), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	defer body.Close()

	c.Header("Content-Type", file.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	c.Status(200)
	if _, err := io.Copy(c.Writer, body); err != nil {
		_ = c.Error(err)
	}
}
