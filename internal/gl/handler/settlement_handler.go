package handler

import (
	"github.com/bitfantasy/nimo-fin/internal/gl/service"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// SettlementHandler 结算引擎处理器
type SettlementHandler struct {
	svc *service.SettlementService
}

func NewSettlementHandler(svc *service.SettlementService) *SettlementHandler {
	return &SettlementHandler{svc: svc}
}

// SettleRequest 结算请求
type SettleRequest struct {
	Period        string `json:"period" binding:"required"`
	CashAccountID string `json:"cash_account_id"`
}

// Settle 结算某期间
func (h *SettlementHandler) Settle(c *gin.Context) {
	var req SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	record, err := h.svc.Settle(c.Request.Context(), req.Period, req.CashAccountID, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, record)
}

// Get 获取结算单详情
func (h *SettlementHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		BadRequest(c, "Settlement ID is required")
		return
	}

	record, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, record)
}

// List 获取结算单列表
func (h *SettlementHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"period":    c.Query("period"),
		"status":    c.Query("status"),
		"direction": c.Query("direction"),
	}

	items, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, NewListResponse(items, page, pageSize, total))
}

// PaymentRequest 支付登记请求
type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Notes  string          `json:"notes"`
}

// RecordPayment 登记部分支付
func (h *SettlementHandler) RecordPayment(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		BadRequest(c, "Settlement ID is required")
		return
	}

	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	record, err := h.svc.RecordPayment(c.Request.Context(), id, req.Amount, GetUserID(c), req.Notes)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, record)
}
