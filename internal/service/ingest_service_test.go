package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yuqie6/RideMirror/internal/activity"
	"github.com/yuqie6/RideMirror/internal/repository"
	"github.com/yuqie6/RideMirror/internal/schema"
	"github.com/yuqie6/RideMirror/internal/testutil"
	"gorm.io/gorm"
)

// fakeSource 按文件名返回预置摘要，隔离 FIT 解析
type fakeSource struct {
	summaries map[string]*activity.Summary
	failures  map[string]bool
}

func (f *fakeSource) Summarize(path string) (*activity.Summary, error) {
	name := filepath.Base(path)
	if f.failures[name] {
		return nil, fmt.Errorf("坏文件: %s", name)
	}
	s, ok := f.summaries[name]
	if !ok {
		return nil, fmt.Errorf("未知文件: %s", name)
	}
	return s, nil
}

// mkSummary NP=200、FTP=200 时 TSS = movingSec/36
func mkSummary(end time.Time, movingSec float64) *activity.Summary {
	return &activity.Summary{
		StartTime:  end.Add(-time.Duration(movingSec) * time.Second),
		EndTime:    end,
		ElapsedSec: movingSec + 60,
		MovingSec:  movingSec,
		MeanPower:  180,
		NormPower:  200,
	}
}

type ingestFixture struct {
	db       *gorm.DB
	dayRepo  *repository.DayRepository
	fileRepo *repository.FitFileRepository
	source   *fakeSource
	svc      *IngestService
	dir      string
}

func newIngestFixture(t *testing.T, atlDays, ctlDays int) *ingestFixture {
	t.Helper()
	db := testutil.OpenTestDB(t)
	dayRepo := repository.NewDayRepository(db)
	fileRepo := repository.NewFitFileRepository(db)
	source := &fakeSource{
		summaries: make(map[string]*activity.Summary),
		failures:  make(map[string]bool),
	}
	svc := NewIngestService(dayRepo, fileRepo, source, NewLoadService(dayRepo), IngestConfig{
		FTP:     200,
		ATLDays: atlDays,
		CTLDays: ctlDays,
		Workers: 2,
	})
	return &ingestFixture{
		db:       db,
		dayRepo:  dayRepo,
		fileRepo: fileRepo,
		source:   source,
		svc:      svc,
		dir:      t.TempDir(),
	}
}

func (f *ingestFixture) writeFile(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(f.dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func (f *ingestFixture) dayRecord(t *testing.T, date string) schema.DayRecord {
	t.Helper()
	records, err := f.dayRepo.GetRange(context.Background(), date, date)
	if err != nil {
		t.Fatalf("GetRange error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records for %s, want 1", len(records), date)
	}
	return records[0]
}

func (f *ingestFixture) fitFileCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	if err := f.db.Model(&schema.FitFile{}).Count(&count).Error; err != nil {
		t.Fatalf("count error: %v", err)
	}
	return count
}

func TestIngestSameDayAdditivity(t *testing.T) {
	f := newIngestFixture(t, 3, 5)
	ctx := context.Background()

	if err := f.dayRepo.InitHorizon(ctx, "2024-01-01", "2024-01-31"); err != nil {
		t.Fatalf("InitHorizon error: %v", err)
	}

	// 同一天两次骑行：50 + 25，另有无关扩展名文件
	f.writeFile(t, "a.fit", "ride-a")
	f.writeFile(t, "b.fit", "ride-b")
	f.writeFile(t, "notes.txt", "not an activity")
	f.source.summaries["a.fit"] = mkSummary(time.Date(2024, 1, 5, 10, 0, 0, 0, time.Local), 1800)
	f.source.summaries["b.fit"] = mkSummary(time.Date(2024, 1, 5, 17, 0, 0, 0, time.Local), 900)

	result, err := f.svc.Ingest(ctx, f.dir)
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if result.NewFiles != 2 || result.Failed != 0 {
		t.Fatalf("result=%+v, want 2 new files", result)
	}
	if len(result.TouchedDates) != 1 || result.TouchedDates[0] != "2024-01-05" {
		t.Fatalf("touched=%v, want [2024-01-05]", result.TouchedDates)
	}

	rec := f.dayRecord(t, "2024-01-05")
	if !almostEqual(rec.TSS, 75) {
		t.Fatalf("tss=%v, want 75", rec.TSS)
	}
	// 快照字段取当天第一个活动（目录序 a.fit 在前）
	if rec.MovingTime != 1800 {
		t.Fatalf("moving=%v, want 1800 (first activity)", rec.MovingTime)
	}
	if got := f.fitFileCount(t); got != 2 {
		t.Fatalf("fit_files=%d, want 2", got)
	}
}

func TestIngestIdempotent(t *testing.T) {
	f := newIngestFixture(t, 7, 42)
	ctx := context.Background()

	if err := f.dayRepo.InitHorizon(ctx, "2024-01-01", "2024-12-31"); err != nil {
		t.Fatalf("InitHorizon error: %v", err)
	}
	f.writeFile(t, "a.fit", "ride-a")
	f.source.summaries["a.fit"] = mkSummary(time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local), 1800)

	if _, err := f.svc.Ingest(ctx, f.dir); err != nil {
		t.Fatalf("first Ingest error: %v", err)
	}
	before := f.dayRecord(t, "2024-03-10")

	// 目录未变化，重复运行必须是空操作
	result, err := f.svc.Ingest(ctx, f.dir)
	if err != nil {
		t.Fatalf("second Ingest error: %v", err)
	}
	if result.NewFiles != 0 || len(result.TouchedDates) != 0 {
		t.Fatalf("second run result=%+v, want no-op", result)
	}

	after := f.dayRecord(t, "2024-03-10")
	if before.TSS != after.TSS || before.ATL != after.ATL || before.CTL != after.CTL {
		t.Fatalf("second run changed ledger: before=%+v after=%+v", before, after)
	}
	if got := f.fitFileCount(t); got != 1 {
		t.Fatalf("fit_files=%d, want 1", got)
	}
}

func TestIngestRenamedFileStillDeduped(t *testing.T) {
	f := newIngestFixture(t, 7, 42)
	ctx := context.Background()

	if err := f.dayRepo.InitHorizon(ctx, "2024-01-01", "2024-12-31"); err != nil {
		t.Fatalf("InitHorizon error: %v", err)
	}
	f.writeFile(t, "a.fit", "ride-a")
	f.source.summaries["a.fit"] = mkSummary(time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local), 1800)

	if _, err := f.svc.Ingest(ctx, f.dir); err != nil {
		t.Fatalf("first Ingest error: %v", err)
	}
	before := f.dayRecord(t, "2024-03-10")

	// 改名不改内容，指纹不变
	if err := os.Rename(filepath.Join(f.dir, "a.fit"), filepath.Join(f.dir, "renamed.fit")); err != nil {
		t.Fatalf("rename: %v", err)
	}
	f.source.summaries["renamed.fit"] = f.source.summaries["a.fit"]

	result, err := f.svc.Ingest(ctx, f.dir)
	if err != nil {
		t.Fatalf("second Ingest error: %v", err)
	}
	if result.NewFiles != 0 {
		t.Fatalf("renamed file re-ingested: %+v", result)
	}
	if got := f.fitFileCount(t); got != 1 {
		t.Fatalf("fit_files=%d, want 1", got)
	}
	after := f.dayRecord(t, "2024-03-10")
	if before.TSS != after.TSS {
		t.Fatalf("renamed file changed tss: %v -> %v", before.TSS, after.TSS)
	}
}

func TestIngestParseFailureSkipsAndRetries(t *testing.T) {
	f := newIngestFixture(t, 7, 42)
	ctx := context.Background()

	if err := f.dayRepo.InitHorizon(ctx, "2024-01-01", "2024-12-31"); err != nil {
		t.Fatalf("InitHorizon error: %v", err)
	}
	f.writeFile(t, "good.fit", "ride-good")
	f.writeFile(t, "bad.fit", "ride-bad")
	f.source.summaries["good.fit"] = mkSummary(time.Date(2024, 5, 1, 8, 0, 0, 0, time.Local), 1800)
	f.source.failures["bad.fit"] = true

	result, err := f.svc.Ingest(ctx, f.dir)
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if result.NewFiles != 1 || result.Failed != 1 {
		t.Fatalf("result=%+v, want 1 new / 1 failed", result)
	}
	if got := f.fitFileCount(t); got != 1 {
		t.Fatalf("failed file was recorded: fit_files=%d, want 1", got)
	}

	// 文件修复后下次运行重试成功
	f.source.failures["bad.fit"] = false
	f.source.summaries["bad.fit"] = mkSummary(time.Date(2024, 5, 2, 8, 0, 0, 0, time.Local), 900)

	result, err = f.svc.Ingest(ctx, f.dir)
	if err != nil {
		t.Fatalf("retry Ingest error: %v", err)
	}
	if result.NewFiles != 1 || result.Failed != 0 {
		t.Fatalf("retry result=%+v, want 1 new / 0 failed", result)
	}
	rec := f.dayRecord(t, "2024-05-02")
	if !almostEqual(rec.TSS, 25) {
		t.Fatalf("retried tss=%v, want 25", rec.TSS)
	}
}

func TestIngestEmptyDirTouchesNothing(t *testing.T) {
	f := newIngestFixture(t, 7, 42)
	ctx := context.Background()

	if err := f.dayRepo.InitHorizon(ctx, "2024-01-01", "2024-12-31"); err != nil {
		t.Fatalf("InitHorizon error: %v", err)
	}

	result, err := f.svc.Ingest(ctx, f.dir)
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if result.NewFiles != 0 || len(result.TouchedDates) != 0 {
		t.Fatalf("result=%+v, want empty", result)
	}

	var count int64
	if err := f.db.Model(&schema.DayRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("count error: %v", err)
	}
	if count != 0 {
		t.Fatalf("no-op run wrote %d day rows", count)
	}
}

func TestIngestOutsideHorizonFails(t *testing.T) {
	f := newIngestFixture(t, 7, 42)
	ctx := context.Background()

	if err := f.dayRepo.InitHorizon(ctx, "2024-01-01", "2024-01-31"); err != nil {
		t.Fatalf("InitHorizon error: %v", err)
	}
	f.writeFile(t, "far.fit", "ride-far")
	f.source.summaries["far.fit"] = mkSummary(time.Date(2025, 6, 1, 8, 0, 0, 0, time.Local), 1800)

	_, err := f.svc.Ingest(ctx, f.dir)
	if !errors.Is(err, repository.ErrUnknownDate) {
		t.Fatalf("Ingest err=%v, want ErrUnknownDate", err)
	}
	// 整个事务回滚，审计行不落库
	if got := f.fitFileCount(t); got != 0 {
		t.Fatalf("fit_files=%d after rollback, want 0", got)
	}
}

func TestIngestDuplicateContentInOneRun(t *testing.T) {
	f := newIngestFixture(t, 7, 42)
	ctx := context.Background()

	if err := f.dayRepo.InitHorizon(ctx, "2024-01-01", "2024-12-31"); err != nil {
		t.Fatalf("InitHorizon error: %v", err)
	}
	// 两个文件字节相同，指纹一致，只记第一个
	f.writeFile(t, "a.fit", "same-content")
	f.writeFile(t, "copy.fit", "same-content")
	summary := mkSummary(time.Date(2024, 7, 1, 8, 0, 0, 0, time.Local), 1800)
	f.source.summaries["a.fit"] = summary
	f.source.summaries["copy.fit"] = summary

	result, err := f.svc.Ingest(ctx, f.dir)
	if err != nil {
		t.Fatalf("Ingest error: %v", err)
	}
	if result.NewFiles != 1 {
		t.Fatalf("NewFiles=%d, want 1", result.NewFiles)
	}
	if got := f.fitFileCount(t); got != 1 {
		t.Fatalf("fit_files=%d, want 1", got)
	}
	rec := f.dayRecord(t, "2024-07-01")
	if !almostEqual(rec.TSS, 50) {
		t.Fatalf("tss=%v, want 50 (counted once)", rec.TSS)
	}
}
