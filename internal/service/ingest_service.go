package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/yuqie6/RideMirror/internal/activity"
	"github.com/yuqie6/RideMirror/internal/repository"
	"github.com/yuqie6/RideMirror/internal/schema"
	"gorm.io/gorm"
)

// IngestConfig 入库参数
type IngestConfig struct {
	FTP     float64 // 功能阈值功率（瓦）
	ATLDays int     // 急性负荷窗口（天）
	CTLDays int     // 慢性负荷窗口（天）
	Workers int     // 指纹/解析并发数
}

// IngestResult 一次入库运行的结果
type IngestResult struct {
	TouchedDates []string // 收到新活动的日期，升序
	NewFiles     int      // 新入库文件数
	Failed       int      // 解析失败被跳过的文件数
}

// IngestService 活动文件入库服务
type IngestService struct {
	dayRepo  *repository.DayRepository
	fileRepo *repository.FitFileRepository
	source   activity.Source
	load     *LoadService
	cfg      IngestConfig
}

// NewIngestService 创建入库服务
func NewIngestService(
	dayRepo *repository.DayRepository,
	fileRepo *repository.FitFileRepository,
	source activity.Source,
	load *LoadService,
	cfg IngestConfig,
) *IngestService {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &IngestService{
		dayRepo:  dayRepo,
		fileRepo: fileRepo,
		source:   source,
		load:     load,
		cfg:      cfg,
	}
}

// fileOutcome 单个候选文件的并行处理结果
type fileOutcome struct {
	name    string
	md5sum  string
	summary *activity.Summary
	skipped bool // 指纹已入库
	failed  bool // 解析失败，下次运行重试
}

// Ingest 扫描目录、按指纹去重入库新活动并触发负荷重算。
// 对未变化目录重复运行是空操作；单个文件解析失败只跳过该文件。
// 指纹与解析按文件并行，按天聚合与所有写库保持单线程。
func (s *IngestService) Ingest(ctx context.Context, dir string) (*IngestResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("读取活动目录失败: %w", err)
	}

	var candidates []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		// 扩展名不匹配的文件直接忽略，不算错误
		if strings.EqualFold(filepath.Ext(entry.Name()), ".fit") {
			candidates = append(candidates, entry.Name())
		}
	}

	outcomes := s.processFiles(ctx, dir, candidates)

	// 聚合按目录枚举顺序单线程执行，保证“当天第一个活动”的口径确定
	result := &IngestResult{}
	deltas := make(map[string]DayDelta)
	seenMD5 := make(map[string]bool)
	var fitItems []schema.FitFile
	for _, out := range outcomes {
		if out.skipped {
			continue
		}
		// 同一次运行内容相同的两个文件只记第一个
		if out.md5sum != "" && seenMD5[out.md5sum] {
			continue
		}
		if out.failed {
			result.Failed++
			continue
		}
		seenMD5[out.md5sum] = true

		sum := out.summary
		tss := sum.TrainingStress(s.cfg.FTP)
		date := sum.EndTime.In(time.Local).Format(schema.DayDateFormat)

		delta, seen := deltas[date]
		delta.TSS += tss
		if !seen {
			delta.ElapsedSec = sum.ElapsedSec
			delta.MovingSec = sum.MovingSec
			delta.MeanPower = sum.MeanPower
			delta.NormPower = sum.NormPower
			delta.Intensity = sum.IntensityFactor(s.cfg.FTP)
		}
		deltas[date] = delta

		fitItems = append(fitItems, schema.FitFile{
			FileMD5:   out.md5sum,
			FileName:  out.name,
			StartTime: sum.StartTime.In(time.Local).Format(schema.FitTimeFormat),
			EndTime:   sum.EndTime.In(time.Local).Format(schema.FitTimeFormat),
			MeanPower: formatMetric(sum.MeanPower),
			NormPower: formatMetric(sum.NormPower),
			TSS:       formatMetric(tss),
		})
		result.NewFiles++
	}

	// 没有新活动就不碰账本
	if len(deltas) == 0 {
		slog.Info("无新活动文件", "dir", dir, "candidates", len(candidates), "failed", result.Failed)
		return result, nil
	}

	// 文件审计行与所有日行更新在同一事务内提交，崩溃不会出现“已记账文件、未记账压力”
	err = s.dayRepo.Transaction(ctx, func(tx *gorm.DB) error {
		for i := range fitItems {
			if err := s.fileRepo.InsertTx(tx, &fitItems[i]); err != nil {
				return err
			}
		}
		touched, err := s.load.RecomputeTx(tx, deltas, s.cfg.ATLDays, s.cfg.CTLDays)
		if err != nil {
			return err
		}
		result.TouchedDates = touched
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("入库完成",
		"new_files", result.NewFiles,
		"touched_days", len(result.TouchedDates),
		"failed", result.Failed)
	return result, nil
}

// processFiles 并行计算指纹并解析新文件，结果按候选顺序返回
func (s *IngestService) processFiles(ctx context.Context, dir string, candidates []string) []fileOutcome {
	outcomes := make([]fileOutcome, len(candidates))

	pool := pond.NewPool(s.cfg.Workers, pond.WithContext(ctx))
	for i, name := range candidates {
		i, name := i, name
		pool.Submit(func() {
			outcomes[i] = s.processFile(ctx, filepath.Join(dir, name))
		})
	}
	pool.StopAndWait()

	return outcomes
}

func (s *IngestService) processFile(ctx context.Context, path string) fileOutcome {
	out := fileOutcome{name: filepath.Base(path)}

	md5sum, err := activity.Fingerprint(path)
	if err != nil {
		slog.Warn("计算文件指纹失败，跳过", "file", out.name, "error", err)
		out.failed = true
		return out
	}
	out.md5sum = md5sum

	exists, err := s.fileRepo.HasFingerprint(ctx, md5sum)
	if err != nil {
		slog.Warn("查询文件指纹失败，跳过", "file", out.name, "error", err)
		out.failed = true
		return out
	}
	if exists {
		out.skipped = true
		return out
	}

	summary, err := s.source.Summarize(path)
	if err != nil {
		// 解析失败不落审计行，下次运行自动重试
		slog.Warn("解析活动文件失败，跳过", "file", out.name, "error", err)
		out.failed = true
		return out
	}
	out.summary = summary
	return out
}

// formatMetric 审计行指标按字符串存储（沿用历史账本格式）
func formatMetric(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
