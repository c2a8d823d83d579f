package handler

import (
	"github.com/bitfantasy/nimo-fin/internal/gl/service"
	"github.com/gin-gonic/gin"
)

// PostingHandler 过账引擎处理器
type PostingHandler struct {
	svc *service.PostingService
}

func NewPostingHandler(svc *service.PostingService) *PostingHandler {
	return &PostingHandler{svc: svc}
}

// PostRequest 过账请求
type PostRequest struct {
	SourceType string `json:"source_type" binding:"required"`
	SourceID   string `json:"source_id" binding:"required"`
}

// Post 将单个源单据过账
func (h *PostingHandler) Post(c *gin.Context) {
	var req PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	batch, err := h.svc.Post(c.Request.Context(), req.SourceType, req.SourceID, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, batch)
}

// GetBatch 获取分录批次详情
func (h *PostingHandler) GetBatch(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		BadRequest(c, "Batch ID is required")
		return
	}

	batch, err := h.svc.GetBatch(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, batch)
}

// ListBatches 获取分录批次列表
func (h *PostingHandler) ListBatches(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"source_type": c.Query("source_type"),
		"source_id":   c.Query("source_id"),
		"kind":        c.Query("kind"),
		"date_from":   c.Query("date_from"),
		"date_to":     c.Query("date_to"),
	}

	items, total, err := h.svc.ListBatches(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, NewListResponse(items, page, pageSize, total))
}

// Reverse 红冲分录批次
func (h *PostingHandler) Reverse(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		BadRequest(c, "Batch ID is required")
		return
	}

	batch, err := h.svc.Reverse(c.Request.Context(), id, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, batch)
}
