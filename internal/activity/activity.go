package activity

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"
)

// Summary 单次活动的摘要指标，由 Source 从活动文件提取
type Summary struct {
	StartTime  time.Time // 活动开始时间
	EndTime    time.Time // 活动结束时间（决定落账日期）
	ElapsedSec float64   // 总耗时（秒）
	MovingSec  float64   // 运动时间（秒）
	MeanPower  float64   // 平均功率（瓦）
	NormPower  float64   // 标准化功率（瓦）
}

// IntensityFactor 强度因子 = NP / FTP
func (s *Summary) IntensityFactor(ftp float64) float64 {
	if ftp <= 0 {
		return 0
	}
	return s.NormPower / ftp
}

// TrainingStress 单次训练压力 = 运动秒数 × NP × IF / (FTP × 3600) × 100
func (s *Summary) TrainingStress(ftp float64) float64 {
	if ftp <= 0 {
		return 0
	}
	return s.MovingSec * s.NormPower * s.IntensityFactor(ftp) / (ftp * 3600) * 100
}

// Source 活动摘要来源。入库逻辑只依赖该接口，测试用假实现替代二进制解析
type Source interface {
	Summarize(path string) (*Summary, error)
}

// Fingerprint 计算文件内容 MD5，作为去重指纹。
// 按内容而非文件名去重，改名或移动后的同一文件仍被识别为已处理。
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("打开文件失败: %w", err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("读取文件失败: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
