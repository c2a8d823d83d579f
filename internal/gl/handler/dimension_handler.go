package handler

import (
	"github.com/bitfantasy/nimo-fin/internal/gl/service"
	"github.com/gin-gonic/gin"
)

// DimensionHandler 维度目录处理器
type DimensionHandler struct {
	svc *service.DimensionService
}

func NewDimensionHandler(svc *service.DimensionService) *DimensionHandler {
	return &DimensionHandler{svc: svc}
}

// ListTypes 获取维度类型列表
func (h *DimensionHandler) ListTypes(c *gin.Context) {
	types, err := h.svc.ListTypes(c.Request.Context())
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"types": types})
}

// CreateType 新建维度类型
func (h *DimensionHandler) CreateType(c *gin.Context) {
	var req service.CreateTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	dt, err := h.svc.CreateType(c.Request.Context(), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, dt)
}

// ListValues 获取某维度类型下的维度值列表
func (h *DimensionHandler) ListValues(c *gin.Context) {
	typeCode := c.Param("code")
	if typeCode == "" {
		BadRequest(c, "Dimension type code is required")
		return
	}
	activeOnly := c.Query("active_only") == "true"

	values, err := h.svc.ListValues(c.Request.Context(), typeCode, activeOnly)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"values": values})
}

// CreateValue 新建维度值
func (h *DimensionHandler) CreateValue(c *gin.Context) {
	typeCode := c.Param("code")
	if typeCode == "" {
		BadRequest(c, "Dimension type code is required")
		return
	}

	var req service.CreateValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	dv, err := h.svc.CreateValue(c.Request.Context(), typeCode, &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, dv)
}

// DeactivateValue 停用维度值
func (h *DimensionHandler) DeactivateValue(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		BadRequest(c, "Dimension value ID is required")
		return
	}

	if err := h.svc.DeactivateValue(c.Request.Context(), id); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "Dimension value deactivated"})
}
