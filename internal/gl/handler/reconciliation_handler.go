package handler

import (
	"fmt"

	"github.com/bitfantasy/nimo-fin/internal/gl/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ReconciliationHandler 对账引擎处理器
type ReconciliationHandler struct {
	svc *service.ReconciliationService
}

func NewReconciliationHandler(svc *service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{svc: svc}
}

// ReconcileRequest 对账请求
type ReconcileRequest struct {
	Period string `json:"period" binding:"required"`
	Scope  string `json:"scope" binding:"required"`
}

// Reconcile 重算某期间某口径的对账记录
func (h *ReconciliationHandler) Reconcile(c *gin.Context) {
	var req ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	record, err := h.svc.Reconcile(c.Request.Context(), req.Period, req.Scope, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, record)
}

// Get 查询某期间某口径的对账记录
func (h *ReconciliationHandler) Get(c *gin.Context) {
	period := c.Query("period")
	scope := c.Query("scope")
	if period == "" || scope == "" {
		BadRequest(c, "period and scope are required")
		return
	}

	record, err := h.svc.Get(c.Request.Context(), period, scope)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, record)
}

// List 查询对账记录列表
func (h *ReconciliationHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"period": c.Query("period"),
		"scope":  c.Query("scope"),
	}

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, NewListResponse(items, page, pageSize, total))
}

// Scopes 查询已注册的对账口径
func (h *ReconciliationHandler) Scopes(c *gin.Context) {
	Success(c, gin.H{"scopes": service.ScopeCodes()})
}

func varianceThreshold(c *gin.Context) (decimal.Decimal, error) {
	raw := c.DefaultQuery("threshold", "0.01")
	return decimal.NewFromString(raw)
}

// Variances 查询差异报表
func (h *ReconciliationHandler) Variances(c *gin.Context) {
	period := c.Query("period")
	if period == "" {
		BadRequest(c, "period is required")
		return
	}
	threshold, err := varianceThreshold(c)
	if err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	items, err := h.svc.Variances(c.Request.Context(), period, threshold)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"period": period, "threshold": threshold, "items": items})
}

// ExportVariances 导出差异报表
func (h *ReconciliationHandler) ExportVariances(c *gin.Context) {
	period := c.Query("period")
	if period == "" {
		BadRequest(c, "period is required")
		return
	}
	threshold, err := varianceThreshold(c)
	if err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	f, err := h.svc.VarianceWorkbook(c.Request.Context(), period, threshold)
	if err != nil {
		ServiceError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"variance_report_%s.xlsx\"", period))
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write workbook: "+err.Error())
	}
}
