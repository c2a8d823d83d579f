package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-fin/internal/gl/entity"
	"github.com/bitfantasy/nimo-fin/internal/gl/repository"
	"github.com/bitfantasy/nimo-fin/internal/gl/testutil"
)

func setupAccountTest(t *testing.T) (*AccountService, *repository.Repositories) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	return NewAccountService(repos), repos
}

func TestCreateAccountUnderGroup(t *testing.T) {
	svc, _ := setupAccountTest(t)
	ctx := context.Background()

	group, err := svc.Create(ctx, &CreateAccountRequest{
		Code: "1000", Name: "资产", Type: entity.AccountTypeAsset, Category: entity.AccountCategoryGroup,
	}, "test-user-001")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	detail, err := svc.Create(ctx, &CreateAccountRequest{
		Code: "1002", Name: "银行存款", Type: entity.AccountTypeAsset, ParentID: &group.ID,
	}, "test-user-001")
	if err != nil {
		t.Fatalf("create detail: %v", err)
	}
	if !detail.Postable() {
		t.Error("detail account should be postable")
	}
	if group.Postable() {
		t.Error("group account should not be postable")
	}
}

func TestCreateAccountRejectsDetailParent(t *testing.T) {
	svc, _ := setupAccountTest(t)
	ctx := context.Background()

	detail, err := svc.Create(ctx, &CreateAccountRequest{
		Code: "1002", Name: "银行存款", Type: entity.AccountTypeAsset,
	}, "test-user-001")
	if err != nil {
		t.Fatalf("create detail: %v", err)
	}

	if _, err := svc.Create(ctx, &CreateAccountRequest{
		Code: "1002.01", Name: "结算户", Type: entity.AccountTypeAsset, ParentID: &detail.ID,
	}, "test-user-001"); err == nil {
		t.Fatal("expected error when parent is a detail account")
	}
}

func TestCreateAccountRejectsTypeMismatch(t *testing.T) {
	svc, _ := setupAccountTest(t)
	ctx := context.Background()

	group, err := svc.Create(ctx, &CreateAccountRequest{
		Code: "1000", Name: "资产", Type: entity.AccountTypeAsset, Category: entity.AccountCategoryGroup,
	}, "test-user-001")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	if _, err := svc.Create(ctx, &CreateAccountRequest{
		Code: "6001", Name: "收入", Type: entity.AccountTypeIncome, ParentID: &group.ID,
	}, "test-user-001"); err == nil {
		t.Fatal("expected error when child type differs from parent")
	}
}

func TestDeactivateAccountKeepsRow(t *testing.T) {
	svc, repos := setupAccountTest(t)
	ctx := context.Background()

	account, err := svc.Create(ctx, &CreateAccountRequest{
		Code: "6601", Name: "销售费用", Type: entity.AccountTypeExpense,
	}, "test-user-001")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Deactivate(ctx, account.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	got, err := repos.Account.FindByID(ctx, account.ID)
	if err != nil {
		t.Fatalf("account row deleted instead of deactivated: %v", err)
	}
	if got.IsActive {
		t.Error("account still active")
	}
	if got.Postable() {
		t.Error("deactivated account should not be postable")
	}
}

func TestDeactivateMissingAccount(t *testing.T) {
	svc, _ := setupAccountTest(t)

	if err := svc.Deactivate(context.Background(), "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteAccountGuards(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewAccountService(repos)
	ctx := context.Background()

	group, err := svc.Create(ctx, &CreateAccountRequest{
		Code: "1000", Name: "资产", Type: entity.AccountTypeAsset, Category: entity.AccountCategoryGroup,
	}, "test-user-001")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	detail, err := svc.Create(ctx, &CreateAccountRequest{
		Code: "1002", Name: "银行存款", Type: entity.AccountTypeAsset, ParentID: &group.ID,
	}, "test-user-001")
	if err != nil {
		t.Fatalf("create detail: %v", err)
	}

	if err := svc.Delete(ctx, group.ID); !errors.Is(err, ErrAccountInUse) {
		t.Fatalf("delete group with children: expected ErrAccountInUse, got %v", err)
	}

	// Write a ledger line against the detail account, then deletion must refuse.
	counter, err := svc.Create(ctx, &CreateAccountRequest{
		Code: "6001", Name: "主营业务收入", Type: entity.AccountTypeIncome,
	}, "test-user-001")
	if err != nil {
		t.Fatalf("create counter: %v", err)
	}
	seedControlActivity(t, db, detail.ID, counter.ID, "100.00", false, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))

	if err := svc.Delete(ctx, detail.ID); !errors.Is(err, ErrAccountInUse) {
		t.Fatalf("delete account with lines: expected ErrAccountInUse, got %v", err)
	}

	empty, err := svc.Create(ctx, &CreateAccountRequest{
		Code: "6601", Name: "销售费用", Type: entity.AccountTypeExpense,
	}, "test-user-001")
	if err != nil {
		t.Fatalf("create empty: %v", err)
	}
	if err := svc.Delete(ctx, empty.ID); err != nil {
		t.Fatalf("delete unused account: %v", err)
	}
	if _, err := repos.Account.FindByID(ctx, empty.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected account row gone, got %v", err)
	}
}

func TestControlAccountProtected(t *testing.T) {
	svc, _ := setupAccountTest(t)
	ctx := context.Background()

	vatOutput, err := svc.Create(ctx, &CreateAccountRequest{
		Code: entity.AccountCodeVATOutput, Name: "应交增值税-销项", Type: entity.AccountTypeLiability,
	}, "test-user-001")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Deactivate(ctx, vatOutput.ID); !errors.Is(err, ErrControlAccount) {
		t.Fatalf("deactivate control account: expected ErrControlAccount, got %v", err)
	}
	if err := svc.Delete(ctx, vatOutput.ID); !errors.Is(err, ErrControlAccount) {
		t.Fatalf("delete control account: expected ErrControlAccount, got %v", err)
	}
}

func TestAccountTree(t *testing.T) {
	svc, _ := setupAccountTest(t)
	ctx := context.Background()

	group, _ := svc.Create(ctx, &CreateAccountRequest{
		Code: "1000", Name: "资产", Type: entity.AccountTypeAsset, Category: entity.AccountCategoryGroup,
	}, "test-user-001")
	if _, err := svc.Create(ctx, &CreateAccountRequest{
		Code: "1002", Name: "银行存款", Type: entity.AccountTypeAsset, ParentID: &group.ID,
	}, "test-user-001"); err != nil {
		t.Fatalf("create child: %v", err)
	}

	roots, err := svc.Tree(ctx, nil)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if len(roots) != 1 {
		t.Fatalf("expected 1 root, got %d", len(roots))
	}
	if len(roots[0].Children) != 1 {
		t.Fatalf("expected 1 child under root, got %d", len(roots[0].Children))
	}
	if roots[0].Children[0].Code != "1002" {
		t.Errorf("unexpected child code: %s", roots[0].Children[0].Code)
	}
}
