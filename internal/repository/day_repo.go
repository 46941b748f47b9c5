package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yuqie6/RideMirror/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DayRepository 日账本仓储
type DayRepository struct {
	db *gorm.DB
}

// NewDayRepository 创建仓储
func NewDayRepository(db *gorm.DB) *DayRepository {
	return &DayRepository{db: db}
}

// InitHorizon 初始化账本日期范围（含两端）。
// 范围只记录在 schema_meta 单行里，日行在查询时按需补零，不预生成几千条空行。
// 已初始化的账本再次调用返回 ErrAlreadyInitialized。
func (r *DayRepository) InitHorizon(ctx context.Context, startDate, endDate string) error {
	start, err := time.ParseInLocation(schema.DayDateFormat, startDate, time.Local)
	if err != nil {
		return fmt.Errorf("解析起始日期失败: %w", err)
	}
	end, err := time.ParseInLocation(schema.DayDateFormat, endDate, time.Local)
	if err != nil {
		return fmt.Errorf("解析结束日期失败: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("结束日期 %s 早于起始日期 %s", endDate, startDate)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var meta schema.SchemaMeta
		if err := tx.First(&meta, 1).Error; err != nil {
			return fmt.Errorf("读取 schema_meta 失败: %w", err)
		}
		if meta.HorizonStart != "" {
			return ErrAlreadyInitialized
		}
		meta.HorizonStart = startDate
		meta.HorizonEnd = endDate
		if err := tx.Save(&meta).Error; err != nil {
			return fmt.Errorf("写入账本范围失败: %w", err)
		}
		return nil
	})
}

// Horizon 读取账本日期范围，未初始化返回 ErrNotInitialized
func (r *DayRepository) Horizon(ctx context.Context) (string, string, error) {
	return r.horizon(r.db.WithContext(ctx))
}

// HorizonTx 同 Horizon，但在给定事务句柄上执行
func (r *DayRepository) HorizonTx(tx *gorm.DB) (string, string, error) {
	return r.horizon(tx)
}

func (r *DayRepository) horizon(db *gorm.DB) (string, string, error) {
	var meta schema.SchemaMeta
	if err := db.First(&meta, 1).Error; err != nil {
		return "", "", fmt.Errorf("读取 schema_meta 失败: %w", err)
	}
	if meta.HorizonStart == "" || meta.HorizonEnd == "" {
		return "", "", ErrNotInitialized
	}
	return meta.HorizonStart, meta.HorizonEnd, nil
}

// GetRange 按日期升序返回 [fromDate, toDate]（与账本范围取交集）内每一天的记录。
// 库里没有的天以全零行补齐，保证“范围内每天恰好一行”的读取契约。
func (r *DayRepository) GetRange(ctx context.Context, fromDate, toDate string) ([]schema.DayRecord, error) {
	return r.GetRangeTx(r.db.WithContext(ctx), fromDate, toDate)
}

// GetRangeTx 同 GetRange，但在给定事务句柄上执行
func (r *DayRepository) GetRangeTx(tx *gorm.DB, fromDate, toDate string) ([]schema.DayRecord, error) {
	horizonStart, horizonEnd, err := r.horizon(tx)
	if err != nil {
		return nil, err
	}

	// 与账本范围取交集
	if fromDate < horizonStart {
		fromDate = horizonStart
	}
	if toDate > horizonEnd {
		toDate = horizonEnd
	}
	if toDate < fromDate {
		return nil, nil
	}

	var stored []schema.DayRecord
	err = tx.
		Where("date >= ? AND date <= ?", fromDate, toDate).
		Order("date ASC").
		Find(&stored).Error
	if err != nil {
		return nil, fmt.Errorf("查询日记录失败: %w", err)
	}

	byDate := make(map[string]schema.DayRecord, len(stored))
	for _, rec := range stored {
		byDate[rec.Date] = rec
	}

	start, err := time.ParseInLocation(schema.DayDateFormat, fromDate, time.Local)
	if err != nil {
		return nil, fmt.Errorf("解析日期失败: %w", err)
	}
	end, err := time.ParseInLocation(schema.DayDateFormat, toDate, time.Local)
	if err != nil {
		return nil, fmt.Errorf("解析日期失败: %w", err)
	}

	var records []schema.DayRecord
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if rec, ok := byDate[day.Format(schema.DayDateFormat)]; ok {
			records = append(records, rec)
		} else {
			records = append(records, schema.NewDayRecord(day))
		}
	}
	return records, nil
}

// Upsert 按日期写回一条日记录，日期超出账本范围返回 ErrUnknownDate
func (r *DayRepository) Upsert(ctx context.Context, rec *schema.DayRecord) error {
	return r.UpsertTx(r.db.WithContext(ctx), rec)
}

// UpsertTx 同 Upsert，但在给定事务句柄上执行
func (r *DayRepository) UpsertTx(tx *gorm.DB, rec *schema.DayRecord) error {
	horizonStart, horizonEnd, err := r.horizon(tx)
	if err != nil {
		return err
	}
	if rec.Date < horizonStart || rec.Date > horizonEnd {
		return fmt.Errorf("%w: %s 不在 [%s, %s]", ErrUnknownDate, rec.Date, horizonStart, horizonEnd)
	}

	// 回写库里取出的行（带主键）直接保存；新行按日期做 upsert
	if rec.ID != 0 {
		err = tx.Save(rec).Error
	} else {
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}},
			UpdateAll: true,
		}).Create(rec).Error
	}
	if err != nil {
		return fmt.Errorf("写入日记录失败: %w", err)
	}
	return nil
}

// Transaction 在事务中执行操作
func (r *DayRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
