/*
 * @author: sun977
 * @date: 2026.03.12
 * @description: 流量分析进程入口
 * @func: 初始化配置/日志/存储、装配分析管线、启动队列消费循环、等待中断信号
 */

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"traceguard/internal/analyzer"
	"traceguard/internal/config"
	"traceguard/internal/pkg/database"
	"traceguard/internal/pkg/logger"
	"traceguard/internal/redact"
	"traceguard/internal/repo/mysql"
	redisrepo "traceguard/internal/repo/redis"
	analyzersvc "traceguard/internal/service/analyzer"
	"traceguard/internal/service/webhook"
)

func main() {
	var (
		configPath = flag.String("config", "", "配置文件目录(默认 configs/)")
		env        = flag.String("env", "", "运行环境(development/test/production)")
	)
	flag.Parse()

	cfg := config.MustLoadConfig(*configPath, *env)

	if _, err := logger.InitLogger(&cfg.Log); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	logger.Infof("starting %s analyzer (env=%s)", cfg.App.Name, config.GetEnv())

	// 存储连接
	db, err := database.NewMySQLConnection(&cfg.Database.MySQL)
	if err != nil {
		logger.Errorf("failed to connect mysql: %v", err)
		os.Exit(1)
	}
	redisClient, err := database.NewRedisConnection(&cfg.Database.Redis)
	if err != nil {
		logger.Errorf("failed to connect redis: %v", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// 脱敏策略 [路径为空时返回空策略，所有流量原样入库]
	policy, err := redact.NewFilePolicyStore(cfg.Analyzer.RedactionPolicyPath)
	if err != nil {
		logger.Errorf("failed to load redaction policy: %v", err)
		os.Exit(1)
	}

	// 仓储与管线装配
	retryPolicy := mysql.RetryPolicy{
		MaxRetries: cfg.Analyzer.WriteMaxRetries,
		MinDelay:   cfg.Analyzer.WriteRetryMinDelay,
		MaxDelay:   cfg.Analyzer.WriteRetryMaxDelay,
	}
	registryCache := redisrepo.NewRegistryCache(redisClient, func() *config.DetectorConfig {
		return &config.GetConfig().Detector
	})
	webhookRepo := mysql.NewWebhookRepository(db)
	engine := analyzer.NewEngine(
		&cfg.Analyzer,
		registryCache,
		mysql.NewEndpointRepository(db),
		mysql.NewDataFieldRepository(db),
		mysql.NewAlertRepository(db),
		mysql.NewSpecRepository(db),
		mysql.NewHostRepository(db),
		mysql.NewTraceWriter(db, retryPolicy),
		webhook.NewDispatcher(&cfg.Webhook, webhookRepo),
		policy,
	)
	queue := redisrepo.NewTraceQueue(redisClient, cfg.Analyzer.QueueKey, cfg.Analyzer.QueueMaxDepth)
	consumer := analyzersvc.NewConsumer(&cfg.Analyzer, queue, engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 配置热更新：日志级别即时生效，检测器缓存失效，脱敏策略重载
	watcher, err := config.NewConfigWatcher(*configPath, *env)
	if err != nil {
		logger.Warnf("config hot reload disabled: %v", err)
	} else {
		watcher.AddCallback(func(oldCfg, newCfg *config.Config) error {
			if err := logger.LoggerInstance.UpdateConfig(&newCfg.Log); err != nil {
				logger.Warnf("failed to apply new log config: %v", err)
			}
			if err := registryCache.Invalidate(ctx); err != nil {
				logger.Warnf("failed to invalidate detector cache: %v", err)
			}
			if err := policy.Reload(); err != nil {
				logger.Warnf("failed to reload redaction policy: %v", err)
			}
			return nil
		})
		if err := watcher.Start(); err != nil {
			logger.Warnf("config hot reload disabled: %v", err)
		} else {
			defer watcher.Stop()
		}
	}

	// 消费循环
	done := make(chan error, 1)
	go func() {
		done <- consumer.Run(ctx)
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Info("shutdown signal received")
		cancel()
		<-done
	case err := <-done:
		if err != nil && ctx.Err() == nil {
			logger.Errorf("consumer exited unexpectedly: %v", err)
			os.Exit(1)
		}
	}
	logger.Info("analyzer exiting")
}
