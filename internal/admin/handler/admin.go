package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"voicebot-server/internal/admin/processor"
	"voicebot-server/internal/apierrors"
	"voicebot-server/internal/observability"
	"voicebot-server/internal/store"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	processor processor.AdminProcessor
	logger    *observability.Logger
}

func New(p processor.AdminProcessor, logger *observability.Logger) Handler {
	return Handler{processor: p, logger: logger}
}

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

func (h *Handler) HandleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "INVALID_REQUEST", "password is required")
		return
	}

	token, err := h.processor.Login(c.Request.Context(), req.Password)
	if err != nil {
		if errors.Is(err, processor.ErrInvalidCredentials) {
			apierrors.Unauthorized(c, "invalid credentials")
			return
		}
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *Handler) HandleJWTMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		apierrors.Unauthorized(c, "authorization token is missing or invalid")
		c.Abort()
		return
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if err := h.processor.ValidateToken(c.Request.Context(), token); err != nil {
		apierrors.Unauthorized(c, "invalid token")
		c.Abort()
		return
	}
	c.Next()
}

func (h *Handler) HandleGetSettings(c *gin.Context) {
	settings, err := h.processor.Settings(c.Request.Context())
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *Handler) HandleUpdateSettings(c *gin.Context) {
	var settings store.LiveSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		apierrors.BadRequest(c, "INVALID_REQUEST", "malformed settings payload")
		return
	}

	if err := h.processor.UpdateSettings(c.Request.Context(), settings); err != nil {
		if errors.Is(err, store.ErrInvalidSetting) {
			apierrors.BadRequest(c, "INVALID_SETTING", err.Error())
			return
		}
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *Handler) HandleGetLogs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			apierrors.BadRequest(c, "INVALID_REQUEST", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	events, err := h.processor.Logs(c.Request.Context(), c.Query("event"), c.Query("search"), limit)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
