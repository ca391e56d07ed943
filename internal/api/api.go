package api

import (
	"net/http"

	adminHandler "voicebot-server/internal/admin/handler"
	voicecallHandler "voicebot-server/internal/voicecall/handler"

	"github.com/gin-gonic/gin"
)

type API struct {
	router           *gin.RouterGroup
	voiceCallHandler voicecallHandler.Handler
	adminHandler     adminHandler.Handler
}

func New(router *gin.RouterGroup, voiceCallHandler voicecallHandler.Handler, adminHandler adminHandler.Handler) API {
	return API{
		router:           router,
		voiceCallHandler: voiceCallHandler,
		adminHandler:     adminHandler,
	}
}

func (a *API) RegisterRoutes() {
	a.Health()

	// Twilio webhook and media stream
	a.router.POST("/twilio/voice", a.voiceCallHandler.HandleAnswerCall)

	apiGroup := a.router.Group("/api")
	{
		apiGroup.GET("/phone/voice-agent", a.voiceCallHandler.HandleVoiceAgent)
		apiGroup.POST("/admin/login", a.adminHandler.HandleLogin)
	}

	protectedGroup := apiGroup.Group("/admin", a.adminHandler.HandleJWTMiddleware)
	{
		protectedGroup.GET("/settings", a.adminHandler.HandleGetSettings)
		protectedGroup.PUT("/settings", a.adminHandler.HandleUpdateSettings)
		protectedGroup.GET("/logs", a.adminHandler.HandleGetLogs)
	}

	aiGroup := apiGroup.Group("/ai", a.adminHandler.HandleJWTMiddleware)
	{
		aiGroup.POST("/tts", a.voiceCallHandler.HandleSynthesize)
		aiGroup.POST("/asr", a.voiceCallHandler.HandleTranscribe)
	}
}

func (a *API) Health() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
}
