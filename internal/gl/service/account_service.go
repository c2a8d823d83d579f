package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-fin/internal/gl/entity"
	"github.com/bitfantasy/nimo-fin/internal/gl/repository"
	"github.com/google/uuid"
)

// AccountService 科目表维护
type AccountService struct {
	repos *repository.Repositories
}

func NewAccountService(repos *repository.Repositories) *AccountService {
	return &AccountService{repos: repos}
}

// CreateAccountRequest 新建科目请求
type CreateAccountRequest struct {
	Code      string  `json:"code" binding:"required"`
	Name      string  `json:"name" binding:"required"`
	Type      string  `json:"type" binding:"required"`
	Category  string  `json:"category"`
	ParentID  *string `json:"parent_id"`
	SortOrder int     `json:"sort_order"`
}

// Create 新建科目。父节点必须是 group 类科目。
func (s *AccountService) Create(ctx context.Context, req *CreateAccountRequest, userID string) (*entity.Account, error) {
	if !validAccountType(req.Type) {
		return nil, fmt.Errorf("invalid account type: %s", req.Type)
	}
	category := req.Category
	if category == "" {
		category = entity.AccountCategoryDetail
	}
	if category != entity.AccountCategoryGroup && category != entity.AccountCategoryDetail {
		return nil, fmt.Errorf("invalid account category: %s", category)
	}

	if req.ParentID != nil && *req.ParentID != "" {
		parent, err := s.repos.Account.FindByID(ctx, *req.ParentID)
		if err != nil {
			return nil, fmt.Errorf("find parent account: %w", err)
		}
		if parent.Category != entity.AccountCategoryGroup {
			return nil, fmt.Errorf("parent account %s is not a group account", parent.Code)
		}
		if parent.Type != req.Type {
			return nil, fmt.Errorf("account type %s does not match parent type %s", req.Type, parent.Type)
		}
	}

	now := time.Now()
	account := &entity.Account{
		ID:        uuid.New().String()[:32],
		Code:      req.Code,
		Name:      req.Name,
		Type:      req.Type,
		Category:  category,
		ParentID:  req.ParentID,
		IsActive:  true,
		SortOrder: req.SortOrder,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repos.Account.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// UpdateAccountRequest 更新科目请求。类型/分类/父节点一经建立不可改。
type UpdateAccountRequest struct {
	Name      *string `json:"name"`
	SortOrder *int    `json:"sort_order"`
	IsActive  *bool   `json:"is_active"`
}

// Update 更新科目
func (s *AccountService) Update(ctx context.Context, id string, req *UpdateAccountRequest) (*entity.Account, error) {
	account, err := s.repos.Account.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		account.Name = *req.Name
	}
	if req.SortOrder != nil {
		account.SortOrder = *req.SortOrder
	}
	if req.IsActive != nil {
		account.IsActive = *req.IsActive
	}
	account.UpdatedAt = time.Now()
	if err := s.repos.Account.Update(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Deactivate 停用科目。已有分录或下级科目的科目只能停用，永不删除。
func (s *AccountService) Deactivate(ctx context.Context, id string) error {
	account, err := s.repos.Account.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if isControlAccount(account.Code) {
		return ErrControlAccount
	}
	return s.repos.Account.Deactivate(ctx, id)
}

// Delete 删除科目。有分录行或下级科目时拒绝，保留历史分录完整性。
func (s *AccountService) Delete(ctx context.Context, id string) error {
	account, err := s.repos.Account.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if isControlAccount(account.Code) {
		return ErrControlAccount
	}
	hasLines, err := s.repos.Account.HasLines(ctx, id)
	if err != nil {
		return err
	}
	hasChildren, err := s.repos.Account.HasChildren(ctx, id)
	if err != nil {
		return err
	}
	if hasLines || hasChildren {
		return ErrAccountInUse
	}
	return s.repos.Account.Delete(ctx, id)
}

// Get 查询科目
func (s *AccountService) Get(ctx context.Context, id string) (*entity.Account, error) {
	return s.repos.Account.FindByID(ctx, id)
}

// List 按条件查询科目列表
func (s *AccountService) List(ctx context.Context, filters map[string]string) ([]entity.Account, error) {
	return s.repos.Account.FindAll(ctx, filters)
}

// Tree 科目树。根节点为无父节点的科目，子节点内存中组装。
func (s *AccountService) Tree(ctx context.Context, filters map[string]string) ([]entity.Account, error) {
	accounts, err := s.repos.Account.FindAll(ctx, filters)
	if err != nil {
		return nil, err
	}

	byParent := make(map[string][]entity.Account)
	var roots []entity.Account
	for _, a := range accounts {
		if a.ParentID == nil || *a.ParentID == "" {
			roots = append(roots, a)
		} else {
			byParent[*a.ParentID] = append(byParent[*a.ParentID], a)
		}
	}
	for i := range roots {
		attachChildren(&roots[i], byParent)
	}
	return roots, nil
}

func attachChildren(node *entity.Account, byParent map[string][]entity.Account) {
	children := byParent[node.ID]
	for i := range children {
		attachChildren(&children[i], byParent)
	}
	node.Children = children
}

// isControlAccount 结算引擎依赖的内置科目，不允许停用或删除
func isControlAccount(code string) bool {
	switch code {
	case entity.AccountCodeVATOutput, entity.AccountCodeVATInput, entity.AccountCodeSettlementCash:
		return true
	}
	return false
}

func validAccountType(t string) bool {
	switch t {
	case entity.AccountTypeAsset, entity.AccountTypeLiability, entity.AccountTypeIncome,
		entity.AccountTypeExpense, entity.AccountTypeEquity:
		return true
	}
	return false
}
