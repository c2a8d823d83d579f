package handler

import (
	"github.com/bitfantasy/nimo-fin/internal/gl/service"
	"github.com/gin-gonic/gin"
)

// AccountHandler 科目表处理器
type AccountHandler struct {
	svc *service.AccountService
}

func NewAccountHandler(svc *service.AccountService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

// List 获取科目列表
func (h *AccountHandler) List(c *gin.Context) {
	filters := map[string]string{
		"type":      c.Query("type"),
		"category":  c.Query("category"),
		"is_active": c.Query("is_active"),
	}

	accounts, err := h.svc.List(c.Request.Context(), filters)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"accounts": accounts})
}

// Tree 获取科目树
func (h *AccountHandler) Tree(c *gin.Context) {
	filters := map[string]string{
		"type":      c.Query("type"),
		"is_active": c.Query("is_active"),
	}

	roots, err := h.svc.Tree(c.Request.Context(), filters)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"accounts": roots})
}

// Get 获取科目详情
func (h *AccountHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		BadRequest(c, "Account ID is required")
		return
	}

	account, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, account)
}

// Create 新建科目
func (h *AccountHandler) Create(c *gin.Context) {
	var req service.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	account, err := h.svc.Create(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	Created(c, account)
}

// Update 更新科目
func (h *AccountHandler) Update(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		BadRequest(c, "Account ID is required")
		return
	}

	var req service.UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	account, err := h.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, account)
}

// Deactivate 停用科目
func (h *AccountHandler) Deactivate(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		BadRequest(c, "Account ID is required")
		return
	}

	if err := h.svc.Deactivate(c.Request.Context(), id); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "Account deactivated"})
}

// Delete 删除科目。有分录或下级科目时返回 409。
func (h *AccountHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		BadRequest(c, "Account ID is required")
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		ServiceError(c, err)
		return
	}
	Success(c, gin.H{"message": "Account deleted"})
}
