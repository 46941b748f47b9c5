package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/yuqie6/RideMirror/internal/repository"
	"github.com/yuqie6/RideMirror/internal/schema"
)

// ReportService 只读报表视图，供绘图/终端输出消费
type ReportService struct {
	dayRepo  *repository.DayRepository
	fileRepo *repository.FitFileRepository
}

// NewReportService 创建报表服务
func NewReportService(dayRepo *repository.DayRepository, fileRepo *repository.FitFileRepository) *ReportService {
	return &ReportService{dayRepo: dayRepo, fileRepo: fileRepo}
}

// PowerRow 单次活动功率投影
type PowerRow struct {
	Date      string  `json:"date"`
	FileName  string  `json:"file_name"`
	MeanPower float64 `json:"mean_power"`
	NormPower float64 `json:"norm_power"`
	TSS       float64 `json:"tss"`
}

// DayReport 截止今天的 N 天日账本窗口，升序
func (s *ReportService) DayReport(ctx context.Context, days int) ([]schema.DayRecord, error) {
	if days <= 0 {
		return nil, fmt.Errorf("窗口天数必须为正: %d", days)
	}
	today := time.Now()
	from := today.AddDate(0, 0, -days).Format(schema.DayDateFormat)
	to := today.Format(schema.DayDateFormat)
	return s.dayRepo.GetRange(ctx, from, to)
}

// PowerReport 截止今天的 N 天活动功率窗口，按结束时间升序
func (s *ReportService) PowerReport(ctx context.Context, days int) ([]PowerRow, error) {
	if days <= 0 {
		return nil, fmt.Errorf("窗口天数必须为正: %d", days)
	}
	cutoff := time.Now().AddDate(0, 0, -days).Format(schema.FitTimeFormat)
	files, err := s.fileRepo.GetSince(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	rows := make([]PowerRow, 0, len(files))
	for _, f := range files {
		rows = append(rows, PowerRow{
			Date:      dateOnly(f.EndTime),
			FileName:  f.FileName,
			MeanPower: parseMetric(f.MeanPower),
			NormPower: parseMetric(f.NormPower),
			TSS:       parseMetric(f.TSS),
		})
	}
	return rows, nil
}

func dateOnly(endTime string) string {
	if len(endTime) >= len(schema.DayDateFormat) {
		return endTime[:len(schema.DayDateFormat)]
	}
	return endTime
}

// parseMetric 审计行指标是格式化字符串，解析失败按 0 处理
func parseMetric(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
