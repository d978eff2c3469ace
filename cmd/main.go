package main

import (
  "fmt"
  "os"

  "github.com/spur-store/spur-chat-backend/internal/db"
  "github.com/spur-store/spur-chat-backend/internal/handlers"
  "github.com/spur-store/spur-chat-backend/internal/logger"
  "github.com/spur-store/spur-chat-backend/internal/observability"
  "github.com/spur-store/spur-chat-backend/internal/repos"
  "github.com/spur-store/spur-chat-backend/internal/server"
  "github.com/spur-store/spur-chat-backend/internal/services"
  "github.com/spur-store/spur-chat-backend/internal/socket"
  "github.com/spur-store/spur-chat-backend/internal/utils"
)

func main() {
  // Logger Setup
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Environment Variables
  log.Info("Attempting to load environment variables for Main now...")
  redisAddress := utils.GetEnv("REDIS_ADDRESS", "", log)
  redisPassword := utils.GetEnv("REDIS_PASSWORD", "", log)
  metricsNamespace := utils.GetEnv("METRICS_NAMESPACE", "spurchat", log)

  // Postgres Setup
  log.Info("Setting Up Postgres from Main now...")
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("DB init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()
  log.Info("Postgres Setup From Main Successful :)")

  // Metrics Setup
  metrics := observability.NewMetrics(metricsNamespace)

  // Repositories Setup
  log.Info("Setting Up Repositories from Main now...")
  conversationRepo := repos.NewConversationRepo(thePG, log)
  messageRepo := repos.NewMessageRepo(thePG, log)
  log.Info("Repositories Set Up From Main Successful :)")

  // Websocket Setup
  log.Info("Setting Up Websocket Hub From Main Now :)")
  wsHub := socket.NewHub(log)
  log.Info("Websocket Hub Set Up From Main Successful :)")

  // Redis PubSub (optional; single-node deployments skip it)
  var redisPubSub *socket.RedisPubSub
  if redisAddress != "" {
    log.Info("Setting Up Redis PubSub From Main Now :)")
    redisChanName := "spurchat_hub_broadcast"
    redisPubSub, err = socket.NewRedisPubSub(log, redisAddress, redisPassword, redisChanName)
    if err != nil {
      log.Warn("Failed to init redis pubsub", "error", err)
    } else {
      if err := redisPubSub.StartSubscriber(wsHub); err != nil {
        log.Warn("Failed to subscribe to Redis pub/sub", "error", err)
      } else {
        wsHub.SetRedisPubSub(redisPubSub)
        log.Info("Redis pubsub is active!")
      }
    }
  }

  // Services Setup
  log.Info("Setting up Services from Main now...")
  geminiService, err := services.NewGeminiService(log, services.GeminiConfigFromEnv(log), metrics)
  if err != nil {
    log.Error("Fatal error: Cannot init GeminiService", "error", err)
    os.Exit(1)
  }
  chatService := services.NewChatService(log, conversationRepo, messageRepo, geminiService, wsHub, metrics)
  log.Info("Services Set Up From Main Successful :)")

  // Handler Setup
  log.Info("Setting Up Handlers from Main now...")
  chatHandler := handlers.NewChatHandler(chatService)
  wsHandler := handlers.WsHandler(wsHub, log)
  log.Info("Handlers Set Up From Main Successful :)")

  // Router Setup
  log.Info("Setting Up Router from Main now...")
  router := server.NewRouter(server.RouterConfig{
    ChatHandler: chatHandler,
    WsHandler:   wsHandler,
  })
  log.Info("Router Set Up From Main Successful :)")

  port := utils.GetEnv("PORT", "5000", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }

  // On Shutdown
  if redisPubSub != nil {
    redisPubSub.Stop()
  }
}
