package repository

import (
	"context"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"gorm.io/gorm"
)

// FileRepository 文件元数据仓库
type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, file *entity.StoredFile) error {
	return r.db.WithContext(ctx).Create(file).Error
}

func (r *FileRepository) FindByID(ctx context.Context, teamID, id string) (*entity.StoredFile, error) {
	var file entity.StoredFile
	if err := r.db.WithContext(ctx).Where("id = ? AND team_id = ?", id, teamID).First(&file).Error; err != nil {
		return nil, translate(err)
	}
	return &file, nil
}
