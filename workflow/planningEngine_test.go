package workflow

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func noBom(materialId int, asOf time.Time) ([]EngineBomLine, error) {
	return nil, nil
}

func intPtr(n int) *int { return &n }

func TestEngineNetsAgainstInventoryInDueDateOrder(t *testing.T) {
	input := EngineInput{
		Bucket: models.TimeBucketDay,
		Now:    day("2026-01-01"),
		Demands: []PlanDemandLine{
			{DemandItemId: 2, MaterialId: 1, Quantity: d("10"), DueDate: day("2026-02-10")},
			{DemandItemId: 1, MaterialId: 1, Quantity: d("5"), DueDate: day("2026-02-01")},
		},
		Materials: map[int]PlanMaterial{
			1: {Id: 1, CanBuy: true, PreferredSupplierId: intPtr(7), SafetyStock: d("2")},
		},
		Inventory: map[int]PlanInventory{
			1: {OnHand: d("10")},
		},
		BomLines: noBom,
	}
	result, err := RunPlanningEngine(input)
	if err != nil {
		t.Fatalf("RunPlanningEngine: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result.Items))
	}

	// earlier due date drains inventory first: 10 on hand - 2 safety = 8
	first := result.Items[0]
	if first.DemandItemId == nil || *first.DemandItemId != 1 {
		t.Fatalf("expected demand item 1 first, got %+v", first.DemandItemId)
	}
	if !first.NetQuantity.IsZero() || !first.PlannedQuantity.IsZero() {
		t.Fatalf("first demand should be fully covered, net=%s planned=%s",
			first.NetQuantity, first.PlannedQuantity)
	}
	if !first.AvailableInventory.Equal(d("5")) {
		t.Fatalf("first demand should allocate 5, got %s", first.AvailableInventory)
	}

	second := result.Items[1]
	if !second.AvailableInventory.Equal(d("3")) {
		t.Fatalf("second demand should allocate the remaining 3, got %s", second.AvailableInventory)
	}
	if !second.NetQuantity.Equal(d("7")) || !second.PlannedQuantity.Equal(d("7")) {
		t.Fatalf("second demand net/planned expected 7/7, got %s/%s",
			second.NetQuantity, second.PlannedQuantity)
	}
	if second.SuggestedAction != models.SuggestedActionBuy {
		t.Fatalf("expected buy, got %s", second.SuggestedAction)
	}
	if second.SupplierId == nil || *second.SupplierId != 7 {
		t.Fatalf("expected preferred supplier 7, got %+v", second.SupplierId)
	}
}

func TestEngineSafetyDeficitFoldsIntoFirstRequirementOnly(t *testing.T) {
	input := EngineInput{
		Bucket: models.TimeBucketDay,
		Now:    day("2026-01-01"),
		Demands: []PlanDemandLine{
			{DemandItemId: 1, MaterialId: 1, Quantity: d("3"), DueDate: day("2026-02-01")},
			{DemandItemId: 2, MaterialId: 1, Quantity: d("2"), DueDate: day("2026-02-05")},
		},
		Materials: map[int]PlanMaterial{
			1: {Id: 1, CanBuy: true, SafetyStock: d("5")},
		},
		Inventory: map[int]PlanInventory{
			1: {OnHand: d("1")},
		},
		BomLines: noBom,
	}
	result, err := RunPlanningEngine(input)
	if err != nil {
		t.Fatalf("RunPlanningEngine: %v", err)
	}
	// position 1 - safety 5 = -4: first net is 3 + 4 = 7
	if !result.Items[0].NetQuantity.Equal(d("7")) {
		t.Fatalf("first net expected 7, got %s", result.Items[0].NetQuantity)
	}
	// deficit must not be charged again
	if !result.Items[1].NetQuantity.Equal(d("2")) {
		t.Fatalf("second net expected 2, got %s", result.Items[1].NetQuantity)
	}
}

func TestEngineLotSizingOvershootCoversLaterDemand(t *testing.T) {
	input := EngineInput{
		Bucket: models.TimeBucketDay,
		Now:    day("2026-01-01"),
		Demands: []PlanDemandLine{
			{DemandItemId: 1, MaterialId: 1, Quantity: d("7"), DueDate: day("2026-02-01")},
			{DemandItemId: 2, MaterialId: 1, Quantity: d("3"), DueDate: day("2026-02-05")},
		},
		Materials: map[int]PlanMaterial{
			1: {Id: 1, CanBuy: true, MinLotQty: d("10")},
		},
		Inventory: map[int]PlanInventory{},
		BomLines:  noBom,
	}
	result, err := RunPlanningEngine(input)
	if err != nil {
		t.Fatalf("RunPlanningEngine: %v", err)
	}
	if !result.Items[0].PlannedQuantity.Equal(d("10")) {
		t.Fatalf("minimum lot expected 10, got %s", result.Items[0].PlannedQuantity)
	}
	// overshoot of 3 covers the second demand in full
	if !result.Items[1].NetQuantity.IsZero() {
		t.Fatalf("overshoot should cover later demand, net=%s", result.Items[1].NetQuantity)
	}
}

func TestEngineLotMultipleRoundsUp(t *testing.T) {
	input := EngineInput{
		Bucket: models.TimeBucketDay,
		Now:    day("2026-01-01"),
		Demands: []PlanDemandLine{
			{DemandItemId: 1, MaterialId: 1, Quantity: d("11"), DueDate: day("2026-02-01")},
		},
		Materials: map[int]PlanMaterial{
			1: {Id: 1, CanBuy: true, LotMultipleQty: d("5")},
		},
		Inventory: map[int]PlanInventory{},
		BomLines:  noBom,
	}
	result, err := RunPlanningEngine(input)
	if err != nil {
		t.Fatalf("RunPlanningEngine: %v", err)
	}
	if !result.Items[0].PlannedQuantity.Equal(d("15")) {
		t.Fatalf("expected 15, got %s", result.Items[0].PlannedQuantity)
	}
}

func TestEngineExplodesBomAndOffsetsComponentDueDates(t *testing.T) {
	bom := func(materialId int, asOf time.Time) ([]EngineBomLine, error) {
		if materialId == 1 {
			return []EngineBomLine{{ComponentId: 2, Quantity: d("2")}}, nil
		}
		return nil, nil
	}
	input := EngineInput{
		Bucket: models.TimeBucketDay,
		Now:    day("2026-01-01"),
		Demands: []PlanDemandLine{
			{DemandItemId: 1, MaterialId: 1, Quantity: d("4"), DueDate: day("2026-03-01")},
		},
		Materials: map[int]PlanMaterial{
			1: {Id: 1, CanMake: true, LeadTimeDays: 5},
			2: {Id: 2, CanBuy: true, LeadTimeDays: 3},
		},
		Inventory: map[int]PlanInventory{},
		BomLines:  bom,
	}
	result, err := RunPlanningEngine(input)
	if err != nil {
		t.Fatalf("RunPlanningEngine: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected parent plus component, got %d items", len(result.Items))
	}

	parent := result.Items[0]
	if parent.SuggestedAction != models.SuggestedActionMake {
		t.Fatalf("expected make, got %s", parent.SuggestedAction)
	}
	if !parent.SuggestedStartDate.Equal(day("2026-02-24")) {
		t.Fatalf("parent start expected 2026-02-24, got %s", parent.SuggestedStartDate)
	}

	component := result.Items[1]
	if component.BomLevel != 1 {
		t.Fatalf("component level expected 1, got %d", component.BomLevel)
	}
	if component.ParentIndex != 0 {
		t.Fatalf("component parent index expected 0, got %d", component.ParentIndex)
	}
	if !component.GrossQuantity.Equal(d("8")) {
		t.Fatalf("component gross expected 4*2=8, got %s", component.GrossQuantity)
	}
	// component is due when the parent starts
	if !component.DueDate.Equal(parent.SuggestedStartDate) {
		t.Fatalf("component due %s should equal parent start %s",
			component.DueDate, parent.SuggestedStartDate)
	}
	if component.DemandItemId != nil {
		t.Fatalf("component lines carry no demand item link")
	}
}

func TestEngineDetectsBomCycle(t *testing.T) {
	bom := func(materialId int, asOf time.Time) ([]EngineBomLine, error) {
		switch materialId {
		case 1:
			return []EngineBomLine{{ComponentId: 2, Quantity: d("1")}}, nil
		case 2:
			return []EngineBomLine{{ComponentId: 1, Quantity: d("1")}}, nil
		}
		return nil, nil
	}
	input := EngineInput{
		Bucket: models.TimeBucketDay,
		Now:    day("2026-01-01"),
		Demands: []PlanDemandLine{
			{DemandItemId: 1, MaterialId: 1, Quantity: d("1"), DueDate: day("2026-06-01")},
		},
		Materials: map[int]PlanMaterial{
			1: {Id: 1, CanMake: true},
			2: {Id: 2, CanMake: true},
		},
		Inventory: map[int]PlanInventory{},
		BomLines:  bom,
	}
	_, err := RunPlanningEngine(input)
	if err == nil {
		t.Fatal("expected a cycle error")
	}
	appErr, ok := utils.AsAppError(err)
	if !ok || appErr.Kind != utils.ErrorKindIntegrity {
		t.Fatalf("expected integrity error, got %v", err)
	}
	if appErr.Detail != "1 -> 2 -> 1" {
		t.Fatalf("cycle path expected \"1 -> 2 -> 1\", got %q", appErr.Detail)
	}
}

func TestEngineLateStartClampsToTodayWithWarning(t *testing.T) {
	input := EngineInput{
		Bucket: models.TimeBucketDay,
		Now:    day("2026-02-01"),
		Demands: []PlanDemandLine{
			{DemandItemId: 1, MaterialId: 1, Quantity: d("5"), DueDate: day("2026-02-03")},
		},
		Materials: map[int]PlanMaterial{
			1: {Id: 1, CanBuy: true, LeadTimeDays: 10},
		},
		Inventory: map[int]PlanInventory{},
		BomLines:  noBom,
	}
	result, err := RunPlanningEngine(input)
	if err != nil {
		t.Fatalf("RunPlanningEngine: %v", err)
	}
	if !result.Items[0].SuggestedStartDate.Equal(day("2026-02-01")) {
		t.Fatalf("start should clamp to today, got %s", result.Items[0].SuggestedStartDate)
	}
	found := false
	for _, w := range result.Warnings {
		if w.Kind == models.PlanWarningLateStart && w.ItemIndex == 0 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a late start warning, got %+v", result.Warnings)
	}
}

func TestEngineWarnsWhenMaterialHasNoSourcing(t *testing.T) {
	input := EngineInput{
		Bucket: models.TimeBucketDay,
		Now:    day("2026-01-01"),
		Demands: []PlanDemandLine{
			{DemandItemId: 1, MaterialId: 1, Quantity: d("5"), DueDate: day("2026-03-01")},
		},
		Materials: map[int]PlanMaterial{
			1: {Id: 1},
		},
		Inventory: map[int]PlanInventory{},
		BomLines:  noBom,
	}
	result, err := RunPlanningEngine(input)
	if err != nil {
		t.Fatalf("RunPlanningEngine: %v", err)
	}
	if result.Items[0].SuggestedAction != models.SuggestedActionNone {
		t.Fatalf("expected no action, got %s", result.Items[0].SuggestedAction)
	}
	found := false
	for _, w := range result.Warnings {
		if w.Kind == models.PlanWarningSourcing && w.MaterialId == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a sourcing warning, got %+v", result.Warnings)
	}
}

func TestEngineWeekBucketAlignsToMonday(t *testing.T) {
	input := EngineInput{
		Bucket: models.TimeBucketWeek,
		Now:    day("2026-01-01"),
		Demands: []PlanDemandLine{
			// 2026-02-05 is a Thursday
			{DemandItemId: 1, MaterialId: 1, Quantity: d("5"), DueDate: day("2026-02-05")},
		},
		Materials: map[int]PlanMaterial{
			1: {Id: 1, CanBuy: true},
		},
		Inventory: map[int]PlanInventory{},
		BomLines:  noBom,
	}
	result, err := RunPlanningEngine(input)
	if err != nil {
		t.Fatalf("RunPlanningEngine: %v", err)
	}
	if !result.Items[0].BucketDate.Equal(day("2026-02-02")) {
		t.Fatalf("bucket expected Monday 2026-02-02, got %s", result.Items[0].BucketDate)
	}
}

func TestEngineRejectsExcessiveDepth(t *testing.T) {
	// a chain deeper than MaxDepth without a cycle
	bom := func(materialId int, asOf time.Time) ([]EngineBomLine, error) {
		return []EngineBomLine{{ComponentId: materialId + 1, Quantity: d("1")}}, nil
	}
	materials := map[int]PlanMaterial{}
	for i := 1; i <= 10; i++ {
		materials[i] = PlanMaterial{Id: i, CanMake: true}
	}
	input := EngineInput{
		Bucket: models.TimeBucketDay,
		Now:    day("2026-01-01"),
		Demands: []PlanDemandLine{
			{DemandItemId: 1, MaterialId: 1, Quantity: d("1"), DueDate: day("2026-06-01")},
		},
		Materials: materials,
		Inventory: map[int]PlanInventory{},
		BomLines:  bom,
		MaxDepth:  3,
	}
	_, err := RunPlanningEngine(input)
	if err == nil {
		t.Fatal("expected an error")
	}
	appErr, ok := utils.AsAppError(err)
	if !ok || appErr.Kind != utils.ErrorKindIntegrity {
		t.Fatalf("expected integrity error, got %v", err)
	}
}
