package schema

import "time"

// FitFile 已入库的活动文件审计行，按内容指纹去重
// 每个成功解析的文件恰好一行，只增不改；改名/移动后的同一文件不会再入库
type FitFile struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	FileMD5   string    `gorm:"size:32;uniqueIndex" json:"file_md5"` // 文件内容 MD5，去重唯一键
	FileName  string    `gorm:"size:256" json:"file_name"`           // 入库时的文件名（仅展示用）
	StartTime string    `gorm:"size:32" json:"start_time"`           // 活动开始时间
	EndTime   string    `gorm:"size:32;index" json:"end_time"`       // 活动结束时间
	MeanPower string    `gorm:"size:32" json:"mean_power"`           // 平均功率，格式化字符串
	NormPower string    `gorm:"size:32" json:"norm_power"`           // 标准化功率，格式化字符串
	TSS       string    `gorm:"column:tss;size:32" json:"tss"`       // 单次训练压力，格式化字符串
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (FitFile) TableName() string {
	return "fit_files"
}

// FitTimeFormat 审计行时间字段格式
const FitTimeFormat = "2006-01-02 15:04:05"
