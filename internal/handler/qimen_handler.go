// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"

	"qimen-smart-go/internal/middleware"
	"qimen-smart-go/internal/model"
	"qimen-smart-go/internal/service"
	"qimen-smart-go/pkg/log"
	"qimen-smart-go/pkg/qimenapi"

	"github.com/gin-gonic/gin"
)

// QimenHandler 负责排盘代理与排盘报告的 API 请求。
type QimenHandler struct {
	apiClient    qimenapi.Client
	qimenService service.QimenService
}

// NewQimenHandler 创建一个新的 QimenHandler 实例。
func NewQimenHandler(apiClient qimenapi.Client, qimenService service.QimenService) *QimenHandler {
	return &QimenHandler{apiClient: apiClient, qimenService: qimenService}
}

// Proxy 把排盘表单透传给上游 API。
// 服务端凭证覆盖表单中的 api_key，上游响应原样中继。
func (h *QimenHandler) Proxy(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的表单数据"})
		return
	}

	result, err := h.apiClient.Forward(c.Request.Context(), c.Request.PostForm)
	if err != nil {
		log.Errorf("Proxy: 调用排盘 API 失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "排盘服务暂时不可用"})
		return
	}

	if result.StatusCode < 200 || result.StatusCode >= 300 {
		log.Warnf("Proxy: 排盘 API 返回非 2xx 状态 [%d]", result.StatusCode)
		c.JSON(result.StatusCode, gin.H{
			"error":   "排盘请求失败",
			"details": string(result.Body),
		})
		return
	}

	c.Data(result.StatusCode, "application/json; charset=utf-8", result.Body)
}

// GenerateReport 排盘并写入当前用户的报告历史。
func (h *QimenHandler) GenerateReport(c *gin.Context) {
	var input model.QimenInput
	if err := c.ShouldBindJSON(&input); err != nil {
		log.Warnf("GenerateReport: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	report, err := h.qimenService.GenerateReport(c.Request.Context(), middleware.UserID(c), input)
	if err != nil {
		log.Errorf("GenerateReport: 生成报告失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成报告失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": report, "message": "success"})
}

// ListReports 返回当前用户的报告历史，最新的在前。
func (h *QimenHandler) ListReports(c *gin.Context) {
	reports, err := h.qimenService.ListReports(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		log.Errorf("ListReports: 读取报告历史失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取报告历史失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": reports, "message": "success"})
}

// GetReport 按 ID 返回一份历史报告。
func (h *QimenHandler) GetReport(c *gin.Context) {
	report, err := h.qimenService.GetReportByID(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		log.Errorf("GetReport: 读取报告失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取报告失败"})
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "报告不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": report, "message": "success"})
}

// DeleteReport 按 ID 删除一份历史报告。
func (h *QimenHandler) DeleteReport(c *gin.Context) {
	if err := h.qimenService.DeleteReport(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		log.Errorf("DeleteReport: 删除报告失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除报告失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success"})
}

// CurrentReport 返回当前选中的报告，未选中时 data 为 null。
func (h *QimenHandler) CurrentReport(c *gin.Context) {
	report := h.qimenService.CurrentReport(middleware.UserID(c))
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "data": report, "message": "success"})
}
