package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"

	"WChat/global"
	"WChat/logger"
	"WChat/middleware"
	roomh "WChat/module/room"
	userh "WChat/module/user"
	"WChat/service/chat"
	"WChat/service/gateway"
	"WChat/service/storage"
)

func main() {
	defer logger.Sync()

	if err := global.Load(os.Getenv("WCHAT_CONFIG")); err != nil {
		logger.Errorf("config load failed: %v", err)
		os.Exit(1)
	}
	cfg := global.Conf

	ctx := context.Background()
	store, err := storage.NewStore(ctx, storage.Config{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDatabase,
	})
	if err != nil {
		logger.Errorf("storage init failed: %v", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close(ctx) }()

	gw := gateway.NewGateway(gateway.Config{
		PingInterval:  cfg.PingInterval,
		ClientTimeout: cfg.ClientTimeout,
		SendQueueSize: cfg.SendQueueSize,
	}, nil, store) // authenticator wired below, it needs the service

	svc := chat.NewService(store, gw, global.JWTOptions())
	gw.SetAuthenticator(svc)

	var presence *storage.Presence
	if cfg.RedisAddr != "" {
		presence = storage.NewPresence(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer func() { _ = presence.Close() }()
		gw.SetPresenceHook(presence)
	}

	uh := userh.NewHandler(svc, presence)
	rh := roomh.NewHandler(svc)

	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/ws", gw.HandleWS)
	api.POST("/register", uh.Register)
	api.POST("/login", uh.Login)

	authed := api.Group("", middleware.Auth(svc.ValidateCredential))
	authed.PUT("/users/me", uh.UpdateMe)
	authed.GET("/users/:id/presence", uh.Presence)
	authed.GET("/rooms", rh.List)
	authed.POST("/rooms", rh.Create)
	authed.GET("/rooms/:id", rh.Get)
	authed.POST("/rooms/:id/join", rh.Join)
	authed.GET("/rooms/:id/messages", rh.ListMessages)
	authed.POST("/rooms/:id/messages", rh.CreateMessage)

	logger.Infof("[HTTP] listening on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		logger.Errorf("HTTP server failed: %v", err)
		os.Exit(1)
	}
}
