package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"rexi-api/internal/config"
	"rexi-api/internal/infrastructure/persistence/postgres"
	"rexi-api/internal/wire"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting database bootstrap...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. 连接 PostgreSQL
	app, cleanup, err := wire.InitializeMigration(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer cleanup()

	// 3. 执行迁移（已执行的版本会跳过）
	if err := postgres.Migrate(ctx, app.PgClient.DB()); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	fmt.Println("Bootstrap completed successfully.")
}
