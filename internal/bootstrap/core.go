package bootstrap

import (
	"github.com/yuqie6/RideMirror/internal/activity"
	"github.com/yuqie6/RideMirror/internal/pkg/config"
	"github.com/yuqie6/RideMirror/internal/repository"
	"github.com/yuqie6/RideMirror/internal/service"
)

// Core 持有一次运行共享的核心依赖
type Core struct {
	Cfg *config.Config
	DB  *repository.Database

	Repos struct {
		Day     *repository.DayRepository
		FitFile *repository.FitFileRepository
	}

	Services struct {
		Ingest *service.IngestService
		Load   *service.LoadService
		Report *service.ReportService
	}
}

// NewCore 构建核心依赖
func NewCore(cfgPath string) (*Core, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	config.SetupLogger(cfg.App.LogLevel)

	db, err := repository.NewDatabase(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	c := &Core{Cfg: cfg, DB: db}

	// Repos
	c.Repos.Day = repository.NewDayRepository(db.DB)
	c.Repos.FitFile = repository.NewFitFileRepository(db.DB)

	// Services
	c.Services.Load = service.NewLoadService(c.Repos.Day)
	c.Services.Ingest = service.NewIngestService(
		c.Repos.Day,
		c.Repos.FitFile,
		activity.NewFitSource(),
		c.Services.Load,
		service.IngestConfig{
			FTP:     cfg.Training.FTP,
			ATLDays: cfg.Training.ATLDays,
			CTLDays: cfg.Training.CTLDays,
			Workers: cfg.Training.Workers,
		},
	)
	c.Services.Report = service.NewReportService(c.Repos.Day, c.Repos.FitFile)

	return c, nil
}

// Close 关闭核心依赖资源
func (c *Core) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
