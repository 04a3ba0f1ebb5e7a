package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/habitflow/internal/config"
	"github.com/habitflow/internal/db"
	"github.com/habitflow/internal/handler"
	"github.com/habitflow/internal/router"
)

func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}

	// 可选的引导用户（通过环境变量提供时创建）
	if err := db.EnsureUser(cfg.SuperRootUserName, cfg.SuperRootPassword); err != nil {
		log.Fatalf("failed to ensure bootstrap user: %v", err)
	}

	api := handler.NewAPI(db.DB, cfg.DeviceID)

	// 设置并运行 Gin 服务器
	r := router.Setup(api, cfg.SessionSecret)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("failed to run server: %v", err)
	}
}
