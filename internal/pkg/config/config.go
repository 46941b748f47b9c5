package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Training TrainingConfig `mapstructure:"training"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Horizon  HorizonConfig  `mapstructure:"horizon"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
}

// TrainingConfig 训练负荷参数
type TrainingConfig struct {
	FTP      float64 `mapstructure:"ftp"`       // 功能阈值功率（瓦）
	CTLDays  int     `mapstructure:"ctl_days"`  // 慢性负荷窗口（天）
	ATLDays  int     `mapstructure:"atl_days"`  // 急性负荷窗口（天）
	PlotDays int     `mapstructure:"plot_days"` // 报表窗口（天）
	FitsDir  string  `mapstructure:"fits_dir"`  // 活动文件目录
	Workers  int     `mapstructure:"workers"`   // 文件解析并发数
}

// StorageConfig 存储配置
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// HorizonConfig 账本日期范围（首次运行时初始化）
type HorizonConfig struct {
	Start string `mapstructure:"start"` // YYYY-MM-DD
	End   string `mapstructure:"end"`   // YYYY-MM-DD（含）
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 默认查找路径
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// 支持环境变量
	v.SetEnvPrefix("RIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件
	notFound := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			notFound = true
			slog.Warn("配置文件未找到，使用默认配置",
				"ftp", v.GetFloat64("training.ftp"),
				"ctl_days", v.GetInt("training.ctl_days"),
				"atl_days", v.GetInt("training.atl_days"))
		} else {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		slog.Info("加载配置文件", "path", v.ConfigFileUsed())
	}

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 首次运行落一份默认配置，下次可直接改文件
	if notFound && configPath == "" {
		if path, err := DefaultConfigPath(); err == nil {
			if err := WriteFile(path, &cfg); err != nil {
				slog.Warn("写入默认配置失败", "path", path, "error", err)
			} else {
				slog.Info("已写入默认配置", "path", path)
			}
		}
	}

	// 处理相对路径
	cfg.Storage.DBPath = resolvePath(cfg.Storage.DBPath)
	cfg.Training.FitsDir = resolvePath(cfg.Training.FitsDir)

	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "ride-cli")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.log_level", "info")

	// Training
	v.SetDefault("training.ftp", 200.0)
	v.SetDefault("training.ctl_days", 42)
	v.SetDefault("training.atl_days", 7)
	v.SetDefault("training.plot_days", 30)
	v.SetDefault("training.fits_dir", "./fits")
	v.SetDefault("training.workers", 4)

	// Storage
	v.SetDefault("storage.db_path", "./data/ride.db")

	// Horizon
	v.SetDefault("horizon.start", "2022-01-01")
	v.SetDefault("horizon.end", "2030-12-31")
}

// resolvePath 解析相对路径为绝对路径
func resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	// 获取可执行文件目录
	exe, err := os.Executable()
	if err != nil {
		return path
	}

	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, path)
}

// SetupLogger 根据配置设置日志级别
func SetupLogger(level string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
