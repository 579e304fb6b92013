package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/taichu-system/rental-management/internal/config"
	"github.com/taichu-system/rental-management/internal/logger"
)

var configDir string

func main() {
	rootCmd := &cobra.Command{
		Use:   "rental-server",
		Short: "Rental application and tenancy service",
		// 不带子命令时直接启动服务
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "./configs", "directory containing config.yaml")

	rootCmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		reconcileCmd(),
		tokenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig 读取配置并初始化日志
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Logging.Level,
		Environment: cfg.Logging.Environment,
		ServiceName: cfg.Logging.ServiceName,
	}); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, nil
}
