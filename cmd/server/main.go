package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/SlpAus/pyramid-lottery-backend/api"
	"github.com/SlpAus/pyramid-lottery-backend/internal/lottery"
	"github.com/SlpAus/pyramid-lottery-backend/internal/notification"
	"github.com/SlpAus/pyramid-lottery-backend/internal/payment"
	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/config"
	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/database"
	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/health"
	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/shutdown"
	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/startup"
	"github.com/SlpAus/pyramid-lottery-backend/internal/purchase"
	"github.com/SlpAus/pyramid-lottery-backend/pkg/lifecycle"
	"github.com/SlpAus/pyramid-lottery-backend/pkg/token"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("加载配置失败: %v", err))
	}

	// 回调签名密钥：未配置时随机生成（仅适合dev网关）
	token.SetSecretKey(cfg.Payment.WebhookSecret)

	database.InitDB(cfg.Database)
	database.InitRedis(cfg.Database.Redis)

	// 1. 阻塞式获取初始Run ID
	health.InitializeRunID()

	// 2. 执行应用首次启动初始化流程
	if err := startup.InitializeApplication(); err != nil {
		panic(fmt.Sprintf("应用初始化失败，无法启动: %v", err))
	}

	// 3. 阻塞式执行一次启动后健康检查
	fmt.Println("正在执行启动后健康检查...")
	health.PerformCheck()

	// 4. 装配业务模块
	notifier := notification.NewLogNotifier()

	var gateway payment.Gateway
	switch cfg.Payment.Provider {
	case "dev":
		gateway = payment.NewDevGateway(cfg.Payment.Currency)
	default:
		panic(fmt.Sprintf("未知的支付网关提供方: %s", cfg.Payment.Provider))
	}

	engine := lottery.NewEngine(notifier, cfg.Lottery.DrawLockTTL)
	lottery.InitEngine(engine)

	trigger := lottery.NewTrigger(engine, cfg.Lottery.SweepInterval)
	purchase.InitService(purchase.NewService(gateway, notifier, trigger))

	// 5. 启动后台服务：两级生命周期管理器支撑两阶段停机
	gracefulMgr := lifecycle.NewManager()
	forcefulMgr := lifecycle.NewManager()
	coordinator := shutdown.NewCoordinator(gracefulMgr, forcefulMgr)

	healthHandle, err := gracefulMgr.NewServiceHandle("redis-health-checker")
	if err != nil {
		panic(err)
	}
	go health.StartRedisHealthCheck(healthHandle)

	triggerHandle, err := gracefulMgr.NewServiceHandle("auto-draw-trigger")
	if err != nil {
		panic(err)
	}
	go trigger.Run(triggerHandle)

	// 6. 装配HTTP服务器
	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.Cors.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", purchase.SignatureHeader},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

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

	// 7. 阻塞等待停机信号
	coordinator.ListenForSignalsAndShutdown(server)
}
