package activity

import (
	"fmt"
	"math"
	"os"

	"github.com/tormoder/fit"
)

const (
	invalidUint16 = 0xFFFF // FIT 协议 uint16 字段的无效值
	npWindowSec   = 30     // 标准化功率的滑动平均窗口（记录约 1Hz）
)

// FitSource 基于 FIT 二进制文件的活动摘要来源
type FitSource struct{}

// NewFitSource 创建来源
func NewFitSource() *FitSource {
	return &FitSource{}
}

// Summarize 解码 FIT 文件并提取摘要。
// 时长优先取 session 汇总字段，功率一律由采样记录重新计算，避免码表固件的汇总口径差异。
func (s *FitSource) Summarize(path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开活动文件失败: %w", err)
	}
	defer f.Close()

	fitFile, err := fit.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("解码 FIT 文件失败: %w", err)
	}
	act, err := fitFile.Activity()
	if err != nil {
		return nil, fmt.Errorf("读取活动数据失败: %w", err)
	}
	if len(act.Records) == 0 {
		return nil, fmt.Errorf("活动不含采样记录: %s", path)
	}

	summary := &Summary{
		StartTime: act.Records[0].Timestamp,
		EndTime:   act.Records[len(act.Records)-1].Timestamp,
	}
	summary.ElapsedSec = summary.EndTime.Sub(summary.StartTime).Seconds()
	summary.MovingSec = summary.ElapsedSec

	if len(act.Sessions) > 0 {
		sess := act.Sessions[0]
		if !sess.StartTime.IsZero() {
			summary.StartTime = sess.StartTime
		}
		if !sess.Timestamp.IsZero() {
			summary.EndTime = sess.Timestamp
		}
		if elapsed := sess.GetTotalElapsedTimeScaled(); elapsed > 0 && !math.IsNaN(elapsed) {
			summary.ElapsedSec = elapsed
		}
		if timer := sess.GetTotalTimerTimeScaled(); timer > 0 && !math.IsNaN(timer) {
			summary.MovingSec = timer
		}
	}

	powers := make([]float64, 0, len(act.Records))
	for _, rec := range act.Records {
		if rec.Power == invalidUint16 {
			continue
		}
		powers = append(powers, float64(rec.Power))
	}
	summary.MeanPower = meanPower(powers)
	summary.NormPower = normalizedPower(powers)

	return summary, nil
}

func meanPower(powers []float64) float64 {
	if len(powers) == 0 {
		return 0
	}
	var sum float64
	for _, p := range powers {
		sum += p
	}
	return sum / float64(len(powers))
}

// normalizedPower 30 秒滑动平均功率的四次方均值开四次方根
func normalizedPower(powers []float64) float64 {
	if len(powers) == 0 {
		return 0
	}

	var windowSum float64
	var quartSum float64
	for i, p := range powers {
		windowSum += p
		if i >= npWindowSec {
			windowSum -= powers[i-npWindowSec]
		}
		width := npWindowSec
		if i+1 < npWindowSec {
			width = i + 1
		}
		avg := windowSum / float64(width)
		quartSum += avg * avg * avg * avg
	}
	return math.Pow(quartSum/float64(len(powers)), 0.25)
}
