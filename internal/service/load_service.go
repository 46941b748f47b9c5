package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/yuqie6/RideMirror/internal/repository"
	"github.com/yuqie6/RideMirror/internal/schema"
	"gorm.io/gorm"
)

// DayDelta 单次入库运行内某个日历天的聚合增量。
// TSS 跨活动累加；快照字段取当天该运行内第一个活动。
type DayDelta struct {
	TSS        float64
	ElapsedSec float64
	MovingSec  float64
	MeanPower  float64
	NormPower  float64
	Intensity  float64
}

// LoadService 训练负荷滚动重算服务
type LoadService struct {
	dayRepo *repository.DayRepository
}

// NewLoadService 创建负荷服务
func NewLoadService(dayRepo *repository.DayRepository) *LoadService {
	return &LoadService{dayRepo: dayRepo}
}

// Recompute 应用日增量并重算受影响区间的 ATL/CTL/TSB，整体一个事务
func (s *LoadService) Recompute(ctx context.Context, deltas map[string]DayDelta, atlDays, ctlDays int) ([]string, error) {
	var touched []string
	err := s.dayRepo.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		touched, err = s.RecomputeTx(tx, deltas, atlDays, ctlDays)
		return err
	})
	return touched, err
}

// RecomputeTx 在给定事务内执行重算。
// 取数区间从最早增量日向前多拉 ctlDays 天，保证最长窗口有足够历史；
// 写回严格按日期升序，最早被触达日之前的行不动（其滚动值不可能变化）。
func (s *LoadService) RecomputeTx(tx *gorm.DB, deltas map[string]DayDelta, atlDays, ctlDays int) ([]string, error) {
	if len(deltas) == 0 {
		return nil, nil
	}
	if atlDays <= 0 || ctlDays <= 0 {
		return nil, fmt.Errorf("窗口天数必须为正: atl=%d ctl=%d", atlDays, ctlDays)
	}

	horizonStart, horizonEnd, err := s.dayRepo.HorizonTx(tx)
	if err != nil {
		return nil, err
	}

	dates := make([]string, 0, len(deltas))
	for date := range deltas {
		if date < horizonStart || date > horizonEnd {
			return nil, fmt.Errorf("%w: 活动落账日 %s 不在 [%s, %s]",
				repository.ErrUnknownDate, date, horizonStart, horizonEnd)
		}
		dates = append(dates, date)
	}
	sort.Strings(dates)
	minDate, maxDate := dates[0], dates[len(dates)-1]

	// 向前回溯最长窗口长度，窗口左缘收缩只会发生在账本起始日附近；
	// 向后延伸同样长度，最后一个增量日之后的滚动衰减也落库
	minDay, err := time.ParseInLocation(schema.DayDateFormat, minDate, time.Local)
	if err != nil {
		return nil, fmt.Errorf("解析日期失败: %w", err)
	}
	maxDay, err := time.ParseInLocation(schema.DayDateFormat, maxDate, time.Local)
	if err != nil {
		return nil, fmt.Errorf("解析日期失败: %w", err)
	}
	fromDate := minDay.AddDate(0, 0, -ctlDays).Format(schema.DayDateFormat)
	toDate := maxDay.AddDate(0, 0, ctlDays).Format(schema.DayDateFormat)

	records, err := s.dayRepo.GetRangeTx(tx, fromDate, toDate)
	if err != nil {
		return nil, err
	}

	// 应用增量并构建 TSS 序列
	series := make([]float64, len(records))
	firstTouched := -1
	for i := range records {
		if delta, ok := deltas[records[i].Date]; ok {
			applyDelta(&records[i], delta)
			if firstTouched < 0 {
				firstTouched = i
			}
		}
		series[i] = records[i].TSS
	}
	if firstTouched < 0 {
		return nil, nil
	}

	atlSeries, ctlSeries, tsbSeries := rollingLoads(series, atlDays, ctlDays)

	for i := firstTouched; i < len(records); i++ {
		records[i].ATL = atlSeries[i]
		records[i].CTL = ctlSeries[i]
		records[i].TSB = tsbSeries[i]
		if err := s.dayRepo.UpsertTx(tx, &records[i]); err != nil {
			return nil, err
		}
	}

	slog.Info("负荷重算完成",
		"touched_days", len(dates),
		"recomputed_days", len(records)-firstTouched,
		"range", fmt.Sprintf("%s..%s", records[firstTouched].Date, records[len(records)-1].Date))
	return dates, nil
}

// applyDelta TSS 原地累加（同一天可能已有历史数据）；快照字段仅在当天尚无数据时填入
func applyDelta(rec *schema.DayRecord, delta DayDelta) {
	rec.TSS += delta.TSS
	if rec.MeanPower == 0 && rec.NormPower == 0 {
		rec.ElapsedTime = delta.ElapsedSec
		rec.MovingTime = delta.MovingSec
		rec.MeanPower = delta.MeanPower
		rec.NormPower = delta.NormPower
		rec.Intensity = delta.Intensity
	}
}

// rollingLoads 由 TSS 序列计算滚动负荷序列，纯函数。
// 求和只覆盖本次取数区间内的值，除数恒为窗口长度：
// 窗口伸出区间左缘时有效样本变少而除数不变，属于刻意固定下来的边界口径。
func rollingLoads(tss []float64, atlDays, ctlDays int) (atl, ctl, tsb []float64) {
	n := len(tss)
	atl = make([]float64, n)
	ctl = make([]float64, n)
	tsb = make([]float64, n)

	for i := 0; i < n; i++ {
		atl[i] = windowSum(tss, i, atlDays) / float64(atlDays)
		ctl[i] = windowSum(tss, i, ctlDays) / float64(ctlDays)
		tsb[i] = ctl[i] - atl[i]
	}
	return atl, ctl, tsb
}

func windowSum(series []float64, end, window int) float64 {
	lo := end - window + 1
	if lo < 0 {
		lo = 0
	}
	var sum float64
	for _, v := range series[lo : end+1] {
		sum += v
	}
	return sum
}
