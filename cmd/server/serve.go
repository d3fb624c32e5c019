package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"student-portal/internal/api/handler"
	"student-portal/internal/api/router"
	"student-portal/internal/repository"
	"student-portal/internal/service"
	"student-portal/pkg/database"
	"student-portal/pkg/jwt"
	"student-portal/pkg/metrics"
	"student-portal/pkg/mq"
	"student-portal/pkg/redis"
	"student-portal/pkg/storage"
)

func runServe(configPath string) error {
	// 1. 加载配置 / 初始化日志
	cfg, logger, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 2. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return fmt.Errorf("数据库连接失败: %w", err)
	}
	logger.Info("数据库连接成功")

	// 2.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	defer sqlDB.Close()
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	// 3. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 黑名单与登录限流将不可用", zap.Error(err))
		rdb = nil
	}
	var blacklist service.TokenBlacklist
	if rdb != nil {
		blacklist = rdb
		defer rdb.Close()
	}

	// 4. 对象存储（可选）
	var store storage.ObjectStore
	if cfg.Storage.Endpoint != "" {
		minioStore, err := storage.NewMinIOStore(&cfg.Storage, logger)
		if err != nil {
			logger.Warn("对象存储初始化失败，资料上传将不可用", zap.Error(err))
		} else {
			store = minioStore
		}
	}

	// 5. 事件发布（未配置时降级为 Noop）
	events := mq.NewNoopPublisher()
	if cfg.Broker.URL != "" {
		pub, err := mq.NewRabbitPublisher(&cfg.Broker, logger)
		if err != nil {
			logger.Warn("RabbitMQ 连接失败，项目事件将不会发布", zap.Error(err))
		} else {
			events = pub
		}
	}
	defer events.Close()

	// 6. 指标
	var m *metrics.Metrics
	if cfg.Feature.MetricsEnabled {
		m = metrics.New()
	}

	// 7. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(service.Deps{
		Config:    cfg,
		Repo:      repo,
		JWT:       jwt.NewManager(&cfg.Auth),
		Blacklist: blacklist,
		Store:     store,
		Events:    events,
		Metrics:   m,
		Logger:    logger,
	})
	h := handler.NewHandler(svc)

	// 8. 初始化路由
	engine := router.Setup(cfg, h, svc.Auth, rdb, m, logger)

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("HTTP 服务器异常: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	logger.Info("服务器已关闭")
	return nil
}
