package schema

import "time"

// SchemaMeta 记录数据库 schema 版本与账本日期范围，避免仅依赖 AutoMigrate 导致升级不可控。
// 表内仅维护单行（ID=1）；HorizonStart/HorizonEnd 为空表示账本尚未初始化。
type SchemaMeta struct {
	ID            int       `gorm:"primaryKey"`
	SchemaVersion int       `gorm:"not null"`
	HorizonStart  string    `gorm:"size:10"` // 账本起始日 YYYY-MM-DD
	HorizonEnd    string    `gorm:"size:10"` // 账本结束日 YYYY-MM-DD（含）
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (SchemaMeta) TableName() string {
	return "schema_meta"
}
