/*
 * @author: sun977
 * @date: 2026.03.12
 * @description: 数据库迁移工具
 * @func: 建表迁移和测试数据初始化
 * @usage: go run main.go -env=test -seed=true -drop=true
 */

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/gorm"

	"traceguard/internal/config"
	"traceguard/internal/model"
	"traceguard/internal/pkg/database"
)

func main() {
	var (
		env     = flag.String("env", "test", "环境标识 (test, development, production)")
		drop    = flag.Bool("drop", false, "是否先删除表（危险操作）")
		seed    = flag.Bool("seed", false, "是否填充测试数据")
		cfgPath = flag.String("config", "", "配置文件目录(默认 configs/)")
	)
	flag.Parse()

	cfg := config.MustLoadConfig(*cfgPath, *env)

	db, err := database.NewMySQLConnection(&cfg.Database.MySQL)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	models := []interface{}{
		&model.ApiEndpoint{},
		&model.ApiTrace{},
		&model.DataField{},
		&model.Alert{},
		&model.OpenApiSpec{},
		&model.Webhook{},
		&model.Host{},
		&model.AggregateTraceDataHourly{},
	}

	if *drop {
		if cfg.App.IsProduction() {
			log.Fatal("Refusing to drop tables in production environment")
		}
		log.Printf("Dropping %d tables (env=%s)", len(models), *env)
		// 逆序删除，先删引用端点的表
		for i := len(models) - 1; i >= 0; i-- {
			if err := db.Migrator().DropTable(models[i]); err != nil {
				log.Fatalf("Failed to drop table: %v", err)
			}
		}
	}

	start := time.Now()
	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("Failed to migrate: %v", err)
	}
	log.Printf("Migrated %d tables in %v", len(models), time.Since(start))

	if *seed {
		if err := seedData(db); err != nil {
			log.Fatalf("Failed to seed data: %v", err)
		}
		log.Println("Seed data inserted")
	}

	fmt.Fprintln(os.Stdout, "Migration completed")
}

// seedData 填充测试数据
// 一个带参数模板的端点和一个订阅全部告警的Webhook，方便本地联调
func seedData(db *gorm.DB) error {
	now := time.Now()
	endpoint := &model.ApiEndpoint{
		Host:          "test.example.com",
		Method:        model.MethodGet,
		Path:          "/api/users/{param1}",
		PathRegex:     `^/api/users/[^/]+(/)*$`,
		NumberParams:  1,
		RiskScore:     model.RiskNone,
		FirstDetected: now,
		LastActive:    now,
	}
	if err := db.Where("host = ? AND method = ? AND path = ?",
		endpoint.Host, endpoint.Method, endpoint.Path).FirstOrCreate(endpoint).Error; err != nil {
		return fmt.Errorf("failed to seed endpoint: %w", err)
	}

	hook := &model.Webhook{
		URL:        "http://localhost:9000/alerts",
		MaxRetries: 3,
	}
	if err := db.Where("url = ?", hook.URL).FirstOrCreate(hook).Error; err != nil {
		return fmt.Errorf("failed to seed webhook: %w", err)
	}
	return nil
}
