// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qimen-smart-go/internal/config"
	"qimen-smart-go/internal/handler"
	"qimen-smart-go/internal/middleware"
	"qimen-smart-go/internal/model"
	"qimen-smart-go/internal/repository"
	"qimen-smart-go/internal/service"
	"qimen-smart-go/pkg/database"
	"qimen-smart-go/pkg/llm"
	"qimen-smart-go/pkg/log"
	"qimen-smart-go/pkg/qimenapi"
	"qimen-smart-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库和 Redis
	database.InitMySQL(cfg.Database.MySQL.DSN)
	if err := database.DB.AutoMigrate(&model.User{}); err != nil {
		log.Fatalf("用户表迁移失败: %v", err)
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)

	// 4. 初始化 Repository
	userRepository := repository.NewUserRepository(database.DB)
	stateRepository := repository.NewStateRepository(database.RDB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	qimenClient := qimenapi.NewClient(cfg.Qimen)
	llmClient := llm.NewClient(cfg.OpenAI)
	userService := service.NewUserService(userRepository, jwtManager)
	qimenService := service.NewQimenService(qimenClient, stateRepository)
	messageService := service.NewMessageService(stateRepository)
	conversationService := service.NewConversationService(stateRepository, qimenService, messageService)
	chatService := service.NewChatService(llmClient, conversationService)
	profileService := service.NewProfileService(stateRepository, qimenService)
	settingsService := service.NewSettingsService(stateRepository)

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 7. 注册路由
	qimenHandler := handler.NewQimenHandler(qimenClient, qimenService)
	aiHandler := handler.NewAIHandler(llmClient)
	conversationHandler := handler.NewConversationHandler(conversationService, chatService)
	messageHandler := handler.NewMessageHandler(messageService)
	profileHandler := handler.NewProfileHandler(profileService)
	settingsHandler := handler.NewSettingsHandler(settingsService)
	userHandler := handler.NewUserHandler(userService)
	wsHandler := handler.NewWSChatHandler(chatService, conversationService, userService, jwtManager)

	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", userHandler.RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", userHandler.GetProfile)
			}
		}

		// 排盘代理与 AI 代理：透传接口，不落任何用户状态
		apiV1.POST("/qimen/proxy", qimenHandler.Proxy)
		apiV1.POST("/ai/chat", aiHandler.Chat)

		// 排盘报告路由组，需要认证
		qimenGroup := apiV1.Group("/qimen")
		qimenGroup.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			qimenGroup.POST("/reports", qimenHandler.GenerateReport)
			qimenGroup.GET("/reports", qimenHandler.ListReports)
			qimenGroup.GET("/reports/current", qimenHandler.CurrentReport)
			qimenGroup.GET("/reports/:id", qimenHandler.GetReport)
			qimenGroup.DELETE("/reports/:id", qimenHandler.DeleteReport)
		}

		// 会话路由组，需要认证
		conversations := apiV1.Group("/conversations")
		conversations.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			conversations.GET("", conversationHandler.List)
			conversations.POST("", conversationHandler.Create)
			conversations.DELETE("", conversationHandler.ClearAll)
			conversations.GET("/:id", conversationHandler.Get)
			conversations.DELETE("/:id", conversationHandler.Delete)
			conversations.PUT("/:id/title", conversationHandler.Rename)
			conversations.PUT("/:id/active", conversationHandler.SetActive)
			conversations.POST("/:id/chat", conversationHandler.Chat)
		}

		// 全局消息路由组，需要认证
		messages := apiV1.Group("/messages")
		messages.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			messages.GET("", messageHandler.List)
			messages.POST("", messageHandler.Add)
			messages.DELETE("", messageHandler.Clear)
			messages.PATCH("/:id/append", messageHandler.Append)
		}

		// 档案路由组，需要认证
		profiles := apiV1.Group("/profiles")
		profiles.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			profiles.GET("/me", profileHandler.GetSelf)
			profiles.PUT("/me", profileHandler.UpdateSelf)
			profiles.POST("/me/birth-chart", profileHandler.GenerateSelfChart)
			profiles.GET("/saved", profileHandler.ListSaved)
			profiles.POST("/saved", profileHandler.CreateSaved)
			profiles.PUT("/saved/:id", profileHandler.UpdateSaved)
			profiles.DELETE("/saved/:id", profileHandler.DeleteSaved)
			profiles.POST("/saved/:id/birth-chart", profileHandler.GenerateSavedChart)
		}

		// 设置路由组，需要认证
		settings := apiV1.Group("/settings")
		settings.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			settings.GET("/theme", settingsHandler.GetTheme)
			settings.PUT("/theme", settingsHandler.SetTheme)
		}
	}

	// Chat 路由 (WebSocket)
	r.GET("/chat/:token", wsHandler.Handle)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
