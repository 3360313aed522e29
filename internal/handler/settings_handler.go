package handler

import (
	"errors"
	"net/http"

	"qimen-smart-go/internal/middleware"
	"qimen-smart-go/internal/service"
	"qimen-smart-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SettingsHandler 负责用户偏好设置的 API 请求。
type SettingsHandler struct {
	settingsService service.SettingsService
}

// NewSettingsHandler 创建一个新的 SettingsHandler 实例。
func NewSettingsHandler(settingsService service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// GetTheme 返回当前用户的主题偏好。
func (h *SettingsHandler) GetTheme(c *gin.Context) {
	theme, err := h.settingsService.GetTheme(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		log.Errorf("GetTheme: 读取主题偏好失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取主题偏好失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": gin.H{"theme": theme}, "message": "success"})
}

// SetThemeRequest 定义了设置主题 API 的请求体结构。
type SetThemeRequest struct {
	Theme service.ThemeMode `json:"theme" binding:"required"`
}

// SetTheme 更新当前用户的主题偏好。
func (h *SettingsHandler) SetTheme(c *gin.Context) {
	var req SetThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载：theme 不能为空"})
		return
	}

	if err := h.settingsService.SetTheme(c.Request.Context(), middleware.UserID(c), req.Theme); err != nil {
		if errors.Is(err, service.ErrInvalidTheme) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "主题只能是 light、dark 或 system"})
			return
		}
		log.Errorf("SetTheme: 保存主题偏好失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存主题偏好失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success"})
}
