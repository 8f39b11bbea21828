package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/auth"
	"github.com/pulsechat/pulsechat-server/internal/config"
	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/store"
)

// NewServer builds the HTTP server with REST and WebSocket routes.
func NewServer(coordinator *core.Coordinator, authService *auth.Service, verifier *auth.Verifier, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	apiHandlers := NewAPIHandlers(authService, logger)
	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/register", apiHandlers.Register)
		authGroup.POST("/login", apiHandlers.Login)
		authGroup.POST("/refresh", apiHandlers.Refresh)
		authGroup.POST("/logout", apiHandlers.Logout)
	}

	roomHandlers := NewRoomHandlers(st, logger)
	messageHandlers := NewMessageHandlers(st, st, logger)
	userHandlers := NewUserHandlers(st, coordinator, logger)
	api := router.Group("/api", AuthMiddleware(authService, logger))
	{
		api.POST("/rooms", roomHandlers.CreateRoom)
		api.GET("/rooms", roomHandlers.ListRooms)
		api.GET("/messages", messageHandlers.ListMessages)
		api.GET("/messages/unread", messageHandlers.UnreadCount)
		api.GET("/chats", messageHandlers.ChatList)
		api.GET("/users", userHandlers.SearchUsers)
	}

	wsHandler := NewWSHandler(coordinator, verifier, cfg.EventBuffer, logger)
	router.GET("/ws", gin.WrapH(wsHandler))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
