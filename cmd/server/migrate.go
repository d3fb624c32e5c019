package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"student-portal/pkg/database"
)

func migrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "数据库迁移",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "回滚迁移",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSQLDB(*configPath, func(db *sql.DB, logger *zap.Logger) error {
				return database.RollbackMigrations(db, steps, logger)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "回滚的版本数")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "执行全部未应用的迁移",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSQLDB(*configPath, func(db *sql.DB, logger *zap.Logger) error {
					return database.RunMigrations(db, logger)
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "显示当前迁移版本",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSQLDB(*configPath, func(db *sql.DB, _ *zap.Logger) error {
					version, dirty, err := database.MigrationVersion(db)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

// withSQLDB 打开数据库连接执行 fn，结束后关闭
func withSQLDB(configPath string, fn func(*sql.DB, *zap.Logger) error) error {
	cfg, logger, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return fmt.Errorf("数据库连接失败: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	defer sqlDB.Close()

	return fn(sqlDB, logger)
}
