package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"student-portal/internal/dto"
	"student-portal/internal/repository"
	"student-portal/internal/service"
	"student-portal/pkg/database"
)

// createAdminCmd 初始化管理员账号；管理员不能通过 HTTP 注册
func createAdminCmd(configPath *string) *cobra.Command {
	var req dto.CreateSupervisorRequest

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "创建管理员账号",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(*configPath)
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

			users := service.NewUserService(repository.NewRepository(db), logger)
			admin, err := users.CreateAdmin(cmd.Context(), &req)
			if err != nil {
				return err
			}

			logger.Info("管理员账号已创建", zap.String("user_id", admin.ID), zap.String("username", admin.Username))
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", admin.Username, admin.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Username, "username", "", "用户名")
	cmd.Flags().StringVar(&req.Email, "email", "", "邮箱")
	cmd.Flags().StringVar(&req.Password, "password", "", "密码（至少 8 位）")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "Admin", "名字")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "姓氏")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
