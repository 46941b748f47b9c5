package schema

import "time"

// DayRecord 日历天训练负荷账本行，日期范围内每天一行
// 数据量级：千级（多年跨度，按需补零创建）
type DayRecord struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Date           string    `gorm:"size:10;uniqueIndex" json:"date"`   // YYYY-MM-DD，唯一键
	StartTimestamp int64     `gorm:"index" json:"start_timestamp"`      // 当天 00:00 Unix 时间戳（秒）
	EndTimestamp   int64     `gorm:"index" json:"end_timestamp"`        // 当天边界 Unix 时间戳（秒）
	ElapsedTime    float64   `gorm:"default:0" json:"elapsed_time"`     // 总耗时（秒）
	MovingTime     float64   `gorm:"default:0" json:"moving_time"`      // 运动时间（秒）
	MeanPower      float64   `gorm:"default:0" json:"mean_power"`       // 平均功率（瓦）
	NormPower      float64   `gorm:"default:0" json:"norm_power"`       // 标准化功率（瓦）
	Intensity      float64   `gorm:"default:0" json:"intensity"`        // 强度因子（NP/FTP）
	TSS            float64   `gorm:"column:tss;default:0" json:"tss"`   // 当日训练压力，同日多次骑行累加
	ATL            float64   `gorm:"column:atl;default:0" json:"atl"`   // 急性负荷：TSS 短窗口滑动平均（疲劳）
	CTL            float64   `gorm:"column:ctl;default:0" json:"ctl"`   // 慢性负荷：TSS 长窗口滑动平均（体能）
	TSB            float64   `gorm:"column:tsb;default:0" json:"tsb"`   // 负荷平衡 = CTL - ATL（状态）
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (DayRecord) TableName() string {
	return "day_records"
}

// DayDateFormat 账本日期键格式
const DayDateFormat = "2006-01-02"

// NewDayRecord 构造一条全零的账本行
func NewDayRecord(day time.Time) DayRecord {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return DayRecord{
		Date:           midnight.Format(DayDateFormat),
		StartTimestamp: midnight.Unix(),
		EndTimestamp:   midnight.Unix(),
	}
}
