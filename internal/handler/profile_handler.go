package handler

import (
	"errors"
	"net/http"

	"qimen-smart-go/internal/middleware"
	"qimen-smart-go/internal/model"
	"qimen-smart-go/internal/service"
	"qimen-smart-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ProfileHandler 负责命主档案与保存档案的 API 请求。
type ProfileHandler struct {
	profileService service.ProfileService
}

// NewProfileHandler 创建一个新的 ProfileHandler 实例。
func NewProfileHandler(profileService service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// GetSelf 返回当前用户的命主档案。
func (h *ProfileHandler) GetSelf(c *gin.Context) {
	profile, err := h.profileService.GetSelfProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		log.Errorf("GetSelfProfile: 读取档案失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取档案失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": profile, "message": "success"})
}

// UpdateSelf 更新当前用户的命主档案，命盘字段不在此处修改。
func (h *ProfileHandler) UpdateSelf(c *gin.Context) {
	var profile model.UserProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	updated, err := h.profileService.UpdateSelfProfile(c.Request.Context(), middleware.UserID(c), profile)
	if err != nil {
		log.Errorf("UpdateSelfProfile: 更新档案失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新档案失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": updated, "message": "success"})
}

// GenerateSelfChart 为命主档案重排命盘。
func (h *ProfileHandler) GenerateSelfChart(c *gin.Context) {
	report, err := h.profileService.GenerateSelfBirthChart(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, service.ErrNoBirthDate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "请先设置出生时间"})
			return
		}
		log.Errorf("GenerateSelfBirthChart: 排命盘失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "排命盘失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": report, "message": "success"})
}

// ListSaved 返回当前用户保存的他人档案列表。
func (h *ProfileHandler) ListSaved(c *gin.Context) {
	profiles, err := h.profileService.ListSavedProfiles(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		log.Errorf("ListSavedProfiles: 读取档案列表失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取档案列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": profiles, "message": "success"})
}

// CreateSaved 新建一份保存档案。
func (h *ProfileHandler) CreateSaved(c *gin.Context) {
	var profile model.PersonProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	created, err := h.profileService.CreateSavedProfile(c.Request.Context(), middleware.UserID(c), profile)
	if err != nil {
		log.Errorf("CreateSavedProfile: 创建档案失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建档案失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": created, "message": "success"})
}

// UpdateSaved 更新一份保存档案。
func (h *ProfileHandler) UpdateSaved(c *gin.Context) {
	var profile model.PersonProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}
	profile.ID = c.Param("id")

	updated, err := h.profileService.UpdateSavedProfile(c.Request.Context(), middleware.UserID(c), profile)
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "档案不存在"})
			return
		}
		log.Errorf("UpdateSavedProfile: 更新档案失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新档案失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": updated, "message": "success"})
}

// DeleteSaved 删除一份保存档案。
func (h *ProfileHandler) DeleteSaved(c *gin.Context) {
	if err := h.profileService.DeleteSavedProfile(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		log.Errorf("DeleteSavedProfile: 删除档案失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除档案失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success"})
}

// GenerateSavedChart 为指定的保存档案重排命盘。
func (h *ProfileHandler) GenerateSavedChart(c *gin.Context) {
	report, err := h.profileService.GenerateSavedBirthChart(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "档案不存在"})
			return
		}
		if errors.Is(err, service.ErrNoBirthDate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "该档案未设置出生时间"})
			return
		}
		log.Errorf("GenerateSavedBirthChart: 排命盘失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "排命盘失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": report, "message": "success"})
}
