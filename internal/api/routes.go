package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.GET("/health", handler.HealthCheck)

	api := router.Group("/api")
	{
		// Scans
		api.POST("/scan", handler.CreateScan)
		api.GET("/scans", handler.ListScans)
		api.GET("/scans/:id", handler.GetScan)
		api.POST("/scans/:id/retry", handler.RetryScan)
		api.DELETE("/scans/:id", handler.DeleteScan)

		// Users
		api.GET("/users", handler.ListUsers)
		api.POST("/users", handler.CreateUser)
		api.DELETE("/users/:id", handler.DeleteUser)
		api.POST("/users/deleteMany", handler.DeleteManyUsers)

		// Chats
		api.GET("/chats", handler.ListChats)
		api.POST("/chats", handler.CreateChat)
		api.DELETE("/chats/:id", handler.DeleteChat)
		api.POST("/chats/deleteMany", handler.DeleteManyChats)

		// Messages (same :id segment as the chat routes; gin requires one
		// param name per position)
		api.GET("/chats/:id/messages", handler.ListMessages)
		api.POST("/chats/:id/messages", handler.SendMessage)
	}
}
