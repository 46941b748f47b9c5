package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/yuqie6/RideMirror/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenTestDB 打开内存 SQLite 并自动迁移所有表
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	// 内存库按连接隔离，必须限制为单连接
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&schema.SchemaMeta{},
		&schema.DayRecord{},
		&schema.FitFile{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	// schema_meta 单行由 NewDatabase 创建，测试库手工补上
	if err := db.Create(&schema.SchemaMeta{ID: 1, SchemaVersion: 1}).Error; err != nil {
		t.Fatalf("seed schema_meta: %v", err)
	}

	return db
}
