package v1

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/model"
	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/service/quote"
)

// Handler 报价 API 处理器
type Handler struct {
	svc *quote.Service
}

// NewHandler 创建报价 API 处理器
func NewHandler(svc *quote.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册报价 API 路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 启动态
	router.GET("/bootstrap", h.GetBootstrap)

	// 工作簿上传
	router.POST("/workbook", h.UploadWorkbook)

	// 报价计算与导出
	router.POST("/calculate", h.Calculate)
	router.POST("/export", h.Export)

	// 管理员设置
	router.GET("/settings", h.GetSettings)
	router.PUT("/settings", h.PutSettings)

	// 单元格映射
	router.PUT("/mapping", h.PutMapping)

	// 蓝图行覆盖
	router.GET("/overrides", h.GetOverrides)
	router.PUT("/overrides", h.PutOverrides)
}

// GetBootstrap 获取启动态汇总
// GET /api/bootstrap
func (h *Handler) GetBootstrap(c *gin.Context) {
	boot, err := h.svc.Bootstrap(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, boot)
}

// UploadWorkbook 上传定价工作簿
// POST /api/workbook
func (h *Handler) UploadWorkbook(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file in upload form"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("open upload: %v", err)})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("read upload: %v", err)})
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	info, err := h.svc.Upload(c.Request.Context(), fileHeader.Filename, mimeType, data)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

// Calculate 报价计算
// POST /api/calculate
func (h *Handler) Calculate(c *gin.Context) {
	var req model.CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	result, err := h.svc.Calculate(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Export 报价导出（计算表模式 xlsx，价目表模式 csv）
// POST /api/export
func (h *Handler) Export(c *gin.Context) {
	var req model.CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	out, err := h.svc.Export(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	c.Data(http.StatusOK, out.MimeType, out.Data)
}

// GetSettings 获取管理员设置
// GET /api/settings
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.svc.Settings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// PutSettings 整体保存管理员设置
// PUT /api/settings
func (h *Handler) PutSettings(c *gin.Context) {
	var settings model.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if err := h.svc.SaveSettings(&settings); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// PutMapping 深合并保存单元格映射补丁
// PUT /api/mapping
func (h *Handler) PutMapping(c *gin.Context) {
	var partial model.WorkbookMapping
	if err := c.ShouldBindJSON(&partial); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	merged, err := h.svc.SaveMapping(c.Request.Context(), partial)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, merged)
}

// GetOverrides 获取蓝图行覆盖
// GET /api/overrides
func (h *Handler) GetOverrides(c *gin.Context) {
	overrides, err := h.svc.Overrides()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if overrides == nil {
		overrides = []model.BlueprintOverride{}
	}
	c.JSON(http.StatusOK, overrides)
}

// PutOverrides 清洗后整体替换蓝图行覆盖
// PUT /api/overrides
func (h *Handler) PutOverrides(c *gin.Context) {
	var overrides []model.BlueprintOverride
	if err := c.ShouldBindJSON(&overrides); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	cleaned, err := h.svc.SaveOverrides(overrides)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if cleaned == nil {
		cleaned = []model.BlueprintOverride{}
	}
	c.JSON(http.StatusOK, cleaned)
}

// statusFor 配置/输入类错误归 4xx，其余归 500
func statusFor(err error) int {
	var mappingErr *model.MappingIncompleteError
	var columnErr *model.CriticalColumnMissingError
	var snapshotErr *model.SnapshotExtractionError
	switch {
	case errors.As(err, &mappingErr), errors.As(err, &columnErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &snapshotErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
