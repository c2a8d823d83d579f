package service

import (
	"context"
	"testing"

	"github.com/bitfantasy/nimo-fin/internal/gl/entity"
	"github.com/bitfantasy/nimo-fin/internal/gl/repository"
	"github.com/bitfantasy/nimo-fin/internal/gl/testutil"
)

func setupDimensionTest(t *testing.T) (*DimensionService, *repository.Repositories) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	return NewDimensionService(repos), repos
}

func TestCreateValueHierarchy(t *testing.T) {
	svc, _ := setupDimensionTest(t)
	ctx := context.Background()

	if _, err := svc.CreateType(ctx, &CreateTypeRequest{
		Code: entity.DimensionCostCenter, Name: "成本中心", SupportsHierarchy: true,
	}); err != nil {
		t.Fatalf("create type: %v", err)
	}

	parent, err := svc.CreateValue(ctx, entity.DimensionCostCenter, &CreateValueRequest{
		Code: "cc-100", Name: "研发",
	})
	if err != nil {
		t.Fatalf("create parent value: %v", err)
	}

	child, err := svc.CreateValue(ctx, entity.DimensionCostCenter, &CreateValueRequest{
		Code: "cc-110", Name: "固件组", ParentID: &parent.ID,
	})
	if err != nil {
		t.Fatalf("create child value: %v", err)
	}
	if child.ParentID == nil || *child.ParentID != parent.ID {
		t.Error("child not linked to parent")
	}
}

func TestCreateValueRejectsHierarchyWhenUnsupported(t *testing.T) {
	svc, _ := setupDimensionTest(t)
	ctx := context.Background()

	if _, err := svc.CreateType(ctx, &CreateTypeRequest{
		Code: entity.DimensionProject, Name: "项目",
	}); err != nil {
		t.Fatalf("create type: %v", err)
	}
	parent, err := svc.CreateValue(ctx, entity.DimensionProject, &CreateValueRequest{
		Code: "prj-001", Name: "项目A",
	})
	if err != nil {
		t.Fatalf("create value: %v", err)
	}

	if _, err := svc.CreateValue(ctx, entity.DimensionProject, &CreateValueRequest{
		Code: "prj-002", Name: "子项目", ParentID: &parent.ID,
	}); err == nil {
		t.Fatal("expected error for hierarchy on flat type")
	}
}

func TestDeactivateValueKeepsRow(t *testing.T) {
	svc, repos := setupDimensionTest(t)
	ctx := context.Background()

	if _, err := svc.CreateType(ctx, &CreateTypeRequest{
		Code: entity.DimensionDepartment, Name: "部门",
	}); err != nil {
		t.Fatalf("create type: %v", err)
	}
	value, err := svc.CreateValue(ctx, entity.DimensionDepartment, &CreateValueRequest{
		Code: "dep-001", Name: "财务部",
	})
	if err != nil {
		t.Fatalf("create value: %v", err)
	}

	if err := svc.DeactivateValue(ctx, value.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	got, err := repos.Dimension.FindValueByID(ctx, value.ID)
	if err != nil {
		t.Fatalf("value row deleted instead of deactivated: %v", err)
	}
	if got.IsActive {
		t.Error("value still active")
	}

	// 停用值不再出现在 activeOnly 列表
	values, err := svc.ListValues(ctx, entity.DimensionDepartment, true)
	if err != nil {
		t.Fatalf("ListValues: %v", err)
	}
	for _, v := range values {
		if v.ID == value.ID {
			t.Error("deactivated value returned by active-only list")
		}
	}
}
