package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/SlpAus/warcry-match-backend/api"
	"github.com/SlpAus/warcry-match-backend/internal/platform/config"
	"github.com/SlpAus/warcry-match-backend/internal/platform/database"
	"github.com/SlpAus/warcry-match-backend/internal/platform/health"
	"github.com/SlpAus/warcry-match-backend/internal/platform/shutdown"
	"github.com/SlpAus/warcry-match-backend/internal/platform/startup"
	"github.com/SlpAus/warcry-match-backend/pkg/lifecycle"
	"github.com/SlpAus/warcry-match-backend/pkg/token"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .env用于本地开发时注入环境变量，不存在则忽略
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("配置加载失败，无法启动: %v", err))
	}

	token.LoadSecretKey(cfg.Auth.TokenSecret)
	database.InitDB(cfg.Database.Sqlite)
	database.InitRedis(cfg.Database.Redis)

	// 执行应用首次启动初始化流程
	if err := startup.InitializeApplication(); err != nil {
		panic(fmt.Sprintf("应用初始化失败，无法启动: %v", err))
	}

	// 预热完成后记录Redis实例标识，此后run_id变化即触发缓存重建
	health.InitializeRunID()

	fmt.Println("正在执行启动后健康检查...")
	health.PerformCheck(startup.RebuildCache)

	// 异步启动后台的持续健康检查器
	manager := lifecycle.NewManager()
	healthHandle, err := manager.NewServiceHandle("redis-health-checker")
	if err != nil {
		panic(fmt.Sprintf("无法注册健康检查器: %v", err))
	}
	go health.StartRedisHealthCheck(healthHandle, startup.RebuildCache)

	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.Server.Cors.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.Cors.AllowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(corsConfig))

	api.SetupRoutes(r)

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: r,
	}

	go func() {
		fmt.Printf("服务器已准备就绪，开始监听 %s\n", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic("Failed to start server: " + err.Error())
		}
	}()

	// 阻塞等待停机信号
	coordinator := shutdown.NewCoordinator(manager)
	coordinator.ListenForSignalsAndShutdown(server)
}
