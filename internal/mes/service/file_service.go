package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/mes/storage"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileService 文件上传下载。store 为 nil 表示未配置对象存储
type FileService struct {
	repo    *repository.FileRepository
	store   storage.ObjectStore
	maxSize int64
	logger  *zap.Logger
}

func NewFileService(repo *repository.FileRepository, store storage.ObjectStore, maxSize int64, logger *zap.Logger) *FileService {
	return &FileService{repo: repo, store: store, maxSize: maxSize, logger: logger}
}

// Upload stores the blob under teamID/yyyy/mm/<id><ext> and records its metadata.
func (s *FileService) Upload(ctx context.Context, p *Principal, fileName, contentType string, size int64, r io.Reader) (*entity.StoredFile, error) {
	if s.store == nil {
		return nil, InternalError("file storage is not configured", storage.ErrNotConfigured)
	}
	fileName = filepath.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." || fileName == "/" {
		return nil, ValidationError("file name is required", FieldError{Field: "file", Message: "is required"})
	}
	if s.maxSize > 0 && size > s.maxSize {
		return nil, ValidationError(fmt.Sprintf("file exceeds the %s limit", humanize.IBytes(uint64(s.maxSize))),
			FieldError{Field: "file", Message: "too large"})
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	now := time.Now()
	id := uuid.New().String()
	key := fmt.Sprintf("%s/%s/%s%s", p.TeamID, now.Format("2006/01"), id, strings.ToLower(filepath.Ext(fileName)))
	if err := s.store.Put(ctx, key, r, size, contentType); err != nil {
		return nil, InternalError("failed to store file", err)
	}

	file := &entity.StoredFile{
		ID:          id,
		TeamID:      p.TeamID,
		FileName:    fileName,
		ObjectKey:   key,
		Size:        size,
		ContentType: contentType,
		UploadedBy:  p.UserID,
		CreatedAt:   now,
	}
	if err := s.repo.Create(ctx, file); err != nil {
		return nil, InternalError("failed to save file metadata", err)
	}
	s.logger.Info("file uploaded",
		zap.String("team_id", p.TeamID),
		zap.String("file_id", id),
		zap.String("size", humanize.IBytes(uint64(size))))
	return file, nil
}

// Download 返回文件元数据与内容，调用方负责关闭
func (s *FileService) Download(ctx context.Context, p *Principal, id string) (*entity.StoredFile, io.ReadCloser, error) {
	if s.store == nil {
		return nil, nil, InternalError("file storage is not configured", storage.ErrNotConfigured)
	}
	file, err := s.repo.FindByID(ctx, p.TeamID, id)
	if err != nil {
		return nil, nil, notFoundOr(err, "file")
	}
	body, err := s.store.Get(ctx, file.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, NotFoundError("file content")
		}
		return nil, nil, InternalError("failed to read file", err)
	}
	return file, body, nil
}
