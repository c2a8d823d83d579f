package handler

import (
	"github.com/bitfantasy/nimo-fin/internal/gl/entity"
	"github.com/bitfantasy/nimo-fin/internal/gl/service"
	"github.com/gin-gonic/gin"
)

// SourceHandler 源单据处理器
type SourceHandler struct {
	svc *service.SourceService
}

func NewSourceHandler(svc *service.SourceService) *SourceHandler {
	return &SourceHandler{svc: svc}
}

func sourceFilters(c *gin.Context) map[string]string {
	return map[string]string{
		"posting_status": c.Query("posting_status"),
		"from":           c.Query("from"),
		"to":             c.Query("to"),
	}
}

// get 按类型查询单个源单据
func (h *SourceHandler) get(c *gin.Context, sourceType string) {
	id := c.Param("id")
	if id == "" {
		BadRequest(c, "Source ID is required")
		return
	}

	m, err := h.svc.Get(c.Request.Context(), sourceType, id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, m)
}

// GetInvoice 获取销售发票详情
func (h *SourceHandler) GetInvoice(c *gin.Context) {
	h.get(c, entity.SourceTypeInvoice)
}

// GetPurchase 获取采购单详情
func (h *SourceHandler) GetPurchase(c *gin.Context) {
	h.get(c, entity.SourceTypePurchase)
}

// GetBankTransaction 获取银行流水详情
func (h *SourceHandler) GetBankTransaction(c *gin.Context) {
	h.get(c, entity.SourceTypeBankTransaction)
}

// GetDepreciationRun 获取折旧计提详情
func (h *SourceHandler) GetDepreciationRun(c *gin.Context) {
	h.get(c, entity.SourceTypeDepreciationRun)
}

// CreateInvoice 新建销售发票
func (h *SourceHandler) CreateInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	m, err := h.svc.CreateInvoice(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, m)
}

// ListInvoices 获取销售发票列表
func (h *SourceHandler) ListInvoices(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListInvoices(c.Request.Context(), page, pageSize, sourceFilters(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, NewListResponse(items, page, pageSize, total))
}

// CreatePurchase 新建采购单
func (h *SourceHandler) CreatePurchase(c *gin.Context) {
	var req service.CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	m, err := h.svc.CreatePurchase(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, m)
}

// ListPurchases 获取采购单列表
func (h *SourceHandler) ListPurchases(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListPurchases(c.Request.Context(), page, pageSize, sourceFilters(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, NewListResponse(items, page, pageSize, total))
}

// CreateBankTransaction 新建银行流水
func (h *SourceHandler) CreateBankTransaction(c *gin.Context) {
	var req service.CreateBankTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	m, err := h.svc.CreateBankTransaction(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, m)
}

// ListBankTransactions 获取银行流水列表
func (h *SourceHandler) ListBankTransactions(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := sourceFilters(c)
	filters["direction"] = c.Query("direction")

	items, total, err := h.svc.ListBankTransactions(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, NewListResponse(items, page, pageSize, total))
}

// CreateDepreciationRun 新建折旧计提
func (h *SourceHandler) CreateDepreciationRun(c *gin.Context) {
	var req service.CreateDepreciationRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	m, err := h.svc.CreateDepreciationRun(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, m)
}

// ListDepreciationRuns 获取折旧计提列表
func (h *SourceHandler) ListDepreciationRuns(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListDepreciationRuns(c.Request.Context(), page, pageSize, sourceFilters(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, NewListResponse(items, page, pageSize, total))
}
