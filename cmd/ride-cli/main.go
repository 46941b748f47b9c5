package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/yuqie6/RideMirror/internal/bootstrap"
	"github.com/yuqie6/RideMirror/internal/pkg/buildinfo"
	"github.com/yuqie6/RideMirror/internal/repository"
)

var (
	cfgFile string
	core    *bootstrap.Core
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "ride",
		Short:   "RideMirror - 骑行训练负荷账本",
		Long:    `RideMirror 扫描 FIT 活动文件，维护按天索引的 TSS/ATL/CTL/TSB 训练负荷账本。`,
		Version: buildinfo.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var err error
			core, err = bootstrap.NewCore(cfgFile)
			if err != nil {
				slog.Error("初始化失败", "error", err)
				os.Exit(1)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if core != nil {
				core.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(powerCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runCmd 入库并重算负荷
func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "扫描活动目录，入库新文件并重算训练负荷",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			// 首次运行按配置初始化账本范围
			if err := ensureHorizon(ctx); err != nil {
				slog.Error("初始化账本范围失败", "error", err)
				os.Exit(1)
			}

			result, err := core.Services.Ingest.Ingest(ctx, core.Cfg.Training.FitsDir)
			if err != nil {
				slog.Error("入库失败", "error", err)
				os.Exit(1)
			}

			if result.Failed > 0 {
				fmt.Fprintf(os.Stderr, "⚠️  %d 个文件解析失败，下次运行将重试\n", result.Failed)
			}
			if result.NewFiles == 0 {
				fmt.Println("没有新活动文件")
				return
			}
			fmt.Printf("✅ 入库 %d 个文件，更新 %d 天\n", result.NewFiles, len(result.TouchedDates))
		},
	}
}

// initCmd 显式初始化账本日期范围
func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "初始化账本日期范围",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			start, end := core.Cfg.Horizon.Start, core.Cfg.Horizon.End
			if err := core.Repos.Day.InitHorizon(ctx, start, end); err != nil {
				if errors.Is(err, repository.ErrAlreadyInitialized) {
					fmt.Fprintln(os.Stderr, "❌ 账本已初始化")
				} else {
					slog.Error("初始化账本失败", "error", err)
				}
				os.Exit(1)
			}
			fmt.Printf("✅ 账本范围 %s..%s\n", start, end)
		},
	}
}

// reportCmd 输出日负荷窗口
func reportCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "输出最近 N 天的 TSS/ATL/CTL/TSB",
		Run: func(cmd *cobra.Command, args []string) {
			if days <= 0 {
				days = core.Cfg.Training.PlotDays
			}
			records, err := core.Services.Report.DayReport(context.Background(), days)
			if err != nil {
				slog.Error("查询日负荷失败", "error", err)
				os.Exit(1)
			}

			fmt.Printf("%-12s %8s %8s %8s %8s\n", "日期", "TSS", "ATL", "CTL", "TSB")
			for _, rec := range records {
				fmt.Printf("%-12s %8.1f %8.1f %8.1f %8.1f\n",
					rec.Date, rec.TSS, rec.ATL, rec.CTL, rec.TSB)
			}
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "窗口天数（默认取配置 plot_days）")
	return cmd
}

// powerCmd 输出单次活动功率窗口
func powerCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "power",
		Short: "输出最近 N 天每次活动的功率与 TSS",
		Run: func(cmd *cobra.Command, args []string) {
			if days <= 0 {
				days = core.Cfg.Training.PlotDays
			}
			rows, err := core.Services.Report.PowerReport(context.Background(), days)
			if err != nil {
				slog.Error("查询活动功率失败", "error", err)
				os.Exit(1)
			}

			fmt.Printf("%-12s %10s %10s %8s  %s\n", "日期", "均功率", "标准功率", "TSS", "文件")
			for _, row := range rows {
				fmt.Printf("%-12s %10.1f %10.1f %8.1f  %s\n",
					row.Date, row.MeanPower, row.NormPower, row.TSS, row.FileName)
			}
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "窗口天数（默认取配置 plot_days）")
	return cmd
}

// ensureHorizon 账本未初始化时按配置初始化
func ensureHorizon(ctx context.Context) error {
	_, _, err := core.Repos.Day.Horizon(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotInitialized) {
		return err
	}
	slog.Info("首次运行，初始化账本范围",
		"start", core.Cfg.Horizon.Start, "end", core.Cfg.Horizon.End)
	return core.Repos.Day.InitHorizon(ctx, core.Cfg.Horizon.Start, core.Cfg.Horizon.End)
}
