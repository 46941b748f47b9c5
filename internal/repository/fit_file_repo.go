package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/yuqie6/RideMirror/internal/schema"
	"gorm.io/gorm"
)

// FitFileRepository 活动文件审计仓储
type FitFileRepository struct {
	db *gorm.DB
}

// NewFitFileRepository 创建仓储
func NewFitFileRepository(db *gorm.DB) *FitFileRepository {
	return &FitFileRepository{db: db}
}

// HasFingerprint 判断内容指纹是否已入库
func (r *FitFileRepository) HasFingerprint(ctx context.Context, md5sum string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&schema.FitFile{}).
		Where("file_md5 = ?", md5sum).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("查询文件指纹失败: %w", err)
	}
	return count > 0, nil
}

// Insert 新增一条审计行，指纹冲突返回 ErrDuplicateFingerprint
func (r *FitFileRepository) Insert(ctx context.Context, file *schema.FitFile) error {
	return r.InsertTx(r.db.WithContext(ctx), file)
}

// InsertTx 同 Insert，但在给定事务句柄上执行
func (r *FitFileRepository) InsertTx(tx *gorm.DB, file *schema.FitFile) error {
	if err := tx.Create(file).Error; err != nil {
		// 唯一索引兜底，并发或逻辑缺陷下的双写在这里被拦下
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("%w: %s", ErrDuplicateFingerprint, file.FileMD5)
		}
		return fmt.Errorf("写入文件记录失败: %w", err)
	}
	return nil
}

// GetSince 按结束时间升序返回 endTime 之后的审计行（报表窗口查询）
func (r *FitFileRepository) GetSince(ctx context.Context, endTime string) ([]schema.FitFile, error) {
	var files []schema.FitFile
	err := r.db.WithContext(ctx).
		Where("end_time >= ?", endTime).
		Order("end_time ASC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("查询文件记录失败: %w", err)
	}
	return files, nil
}
