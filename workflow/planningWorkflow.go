package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"gorm.io/gorm"
)

// A planning run reads the pool, nets against inventory and persists the
// result as one production plan, all under the tenant's planning lock and a
// wall-clock deadline.

type NewPlanRun struct {
	PlanType      models.PlanType   `json:"plan_type" binding:"required"`
	TimeBucket    models.TimeBucket `json:"time_bucket"`
	DemandItemIds []int             `json:"demand_item_ids"`
	Notes         string            `json:"notes"`
}

// RunPlan executes one planning run. With no explicit item selection every
// open pool line enters the run.
func RunPlan(ctx context.Context, input *NewPlanRun) (*models.ProductionPlan, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, utils.NewValidationError("tenant id is required")
	}

	deadline := config.PlanningDeadline()
	release, err := AcquirePlanningLock(ctx, tenantId, deadline+30*time.Second)
	if err != nil {
		return nil, err
	}
	defer release()

	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	items, err := selectDemandItems(runCtx, tenantId, input.DemandItemIds)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, utils.NewValidationError("no open demand selected for the run")
	}

	engineInput, err := buildEngineInput(runCtx, tenantId, input.TimeBucket, items)
	if err != nil {
		return nil, err
	}
	result, err := RunPlanningEngine(*engineInput)
	if err != nil {
		if runCtx.Err() != nil {
			return nil, utils.NewTemporaryError("planning run exceeded its deadline")
		}
		return nil, err
	}
	if runCtx.Err() != nil {
		return nil, utils.NewTemporaryError("planning run exceeded its deadline")
	}

	code, err := GenerateCode(ctx, "PLAN", nil, CodeExists[models.ProductionPlan](tenantId))
	if err != nil {
		return nil, err
	}

	bucket := input.TimeBucket
	if bucket == "" {
		bucket = models.TimeBucketDay
	}
	plan := &models.ProductionPlan{
		TenantId:       tenantId,
		Code:           code,
		PlanType:       input.PlanType,
		TimeBucket:     bucket,
		Status:         models.PlanStatusDraft,
		PlanDate:       utils.TruncateToDay(time.Now()),
		NeedsRecompute: utils.NewFalse(),
		Notes:          input.Notes,
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if err := tx.Create(plan).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := persistEngineResult(ctx, tx, tenantId, plan.ID, result); err != nil {
		tx.Rollback()
		return nil, err
	}
	itemIds := make([]int, 0, len(items))
	for _, item := range items {
		itemIds = append(itemIds, item.ID)
	}
	if err := markDemandItemsPushed(ctx, tx, tenantId, itemIds, plan.ID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := models.LogOperation(ctx, tx, tenantId, plan.ID, "ProductionPlan", models.OperationActionCreate, nil, plan); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return models.FetchPlanWithResults(ctx, tenantId, plan.ID)
}

func selectDemandItems(ctx context.Context, tenantId string, itemIds []int) ([]*models.DemandItem, error) {
	if len(itemIds) == 0 {
		return models.FetchOpenDemandItems(ctx, tenantId)
	}
	items, err := models.FetchDemandItems(ctx, tenantId, itemIds)
	if err != nil {
		return nil, err
	}
	if len(items) != len(utils.UniqueSlice(itemIds)) {
		return nil, utils.ErrorRecordNotFound
	}
	for _, item := range items {
		if item.PushedToComputation != nil && *item.PushedToComputation {
			return nil, utils.NewConflictError("demand item already consumed by a planning run", "")
		}
		if item.IsClosed != nil && *item.IsClosed {
			return nil, utils.NewConflictError("demand item is closed", "")
		}
	}
	return items, nil
}

// preferredBomLines collapses each alternative group to one member: the line
// with the lowest priority number wins, ties go to the lowest id. Ungrouped
// primary lines pass through; a line flagged alternative without a group has
// no primary to stand in for and is dropped.
func preferredBomLines(lines []*models.Bom) []*models.Bom {
	winners := make(map[int]*models.Bom)
	for _, line := range lines {
		if line.AlternativeGroupId == nil {
			continue
		}
		current, ok := winners[*line.AlternativeGroupId]
		if !ok || line.Priority < current.Priority ||
			(line.Priority == current.Priority && line.ID < current.ID) {
			winners[*line.AlternativeGroupId] = line
		}
	}
	result := make([]*models.Bom, 0, len(lines))
	for _, line := range lines {
		if line.AlternativeGroupId != nil {
			if winners[*line.AlternativeGroupId] == line {
				result = append(result, line)
			}
			continue
		}
		if line.IsAlternative != nil && *line.IsAlternative {
			continue
		}
		result = append(result, line)
	}
	return result
}

// buildEngineInput loads the material closure reachable through approved
// structures, plus each material's supply position.
func buildEngineInput(ctx context.Context, tenantId string, bucket models.TimeBucket, items []*models.DemandItem) (*EngineInput, error) {
	if bucket == "" {
		bucket = models.TimeBucketDay
	}
	now := time.Now()

	demands := make([]PlanDemandLine, 0, len(items))
	frontier := make([]int, 0, len(items))
	dates := map[time.Time]bool{utils.TruncateToDay(now): true}
	for _, item := range items {
		var salesOrderId *int
		var demand models.Demand
		if err := config.GetDB().WithContext(ctx).
			Where("tenant_id = ?", tenantId).
			First(&demand, item.DemandId).Error; err != nil {
			return nil, err
		}
		salesOrderId = demand.SalesOrderId
		demands = append(demands, PlanDemandLine{
			DemandItemId: item.ID,
			MaterialId:   item.MaterialId,
			Quantity:     item.RemainingQuantity(),
			DueDate:      utils.TruncateToDay(item.DeliveryDate),
			SalesOrderId: salesOrderId,
		})
		frontier = append(frontier, item.MaterialId)
		dates[utils.TruncateToDay(item.DeliveryDate)] = true
	}

	materials := make(map[int]PlanMaterial)
	inventory := make(map[int]PlanInventory)
	for len(frontier) > 0 {
		materialId := frontier[0]
		frontier = frontier[1:]
		if _, done := materials[materialId]; done {
			continue
		}
		material, err := utils.FetchModel[models.Material](ctx, tenantId, materialId)
		if err != nil {
			return nil, utils.NewIntegrityError("demand references unknown material", "")
		}
		canBuy, err := material.HasSupplierRelation(ctx)
		if err != nil {
			return nil, err
		}

		canMake := false
		components := map[int]bool{}
		for date := range dates {
			lines, err := models.ApprovedBomLines(ctx, tenantId, materialId, date)
			if err != nil {
				return nil, err
			}
			if len(lines) > 0 {
				canMake = true
			}
			for _, line := range preferredBomLines(lines) {
				components[line.ComponentId] = true
			}
		}
		for componentId := range components {
			frontier = append(frontier, componentId)
		}

		materials[materialId] = PlanMaterial{
			Id:                  materialId,
			LeadTimeDays:        material.LeadTimeDays,
			TransitTimeDays:     material.TransitTimeDays,
			SafetyStock:         material.SafetyStock,
			MinLotQty:           material.MinLotQty,
			LotMultipleQty:      material.LotMultipleQty,
			PreferredSupplierId: material.PreferredSupplierId,
			CanMake:             canMake,
			CanBuy:              canBuy,
		}

		onHand, err := models.AvailableInventory(ctx, tenantId, materialId)
		if err != nil {
			return nil, err
		}
		open, err := models.OpenReceiptQuantity(ctx, tenantId, materialId)
		if err != nil {
			return nil, err
		}
		inventory[materialId] = PlanInventory{OnHand: onHand, OpenReceipts: open}
	}

	return &EngineInput{
		Bucket:    bucket,
		Now:       now,
		Demands:   demands,
		Materials: materials,
		Inventory: inventory,
		BomLines: func(materialId int, asOf time.Time) ([]EngineBomLine, error) {
			lines, err := models.ApprovedBomLines(ctx, tenantId, materialId, asOf)
			if err != nil {
				return nil, err
			}
			lines = preferredBomLines(lines)
			result := make([]EngineBomLine, 0, len(lines))
			for _, line := range lines {
				result = append(result, EngineBomLine{ComponentId: line.ComponentId, Quantity: line.Quantity})
			}
			return result, nil
		},
	}, nil
}

// persistEngineResult writes items in engine order, then resolves parent
// links and warning references from the assigned ids.
func persistEngineResult(ctx context.Context, tx *gorm.DB, tenantId string, planId int, result *EngineResult) error {
	ids := make([]int, len(result.Items))
	for i, item := range result.Items {
		row := models.ProductionPlanItem{
			TenantId:           tenantId,
			PlanId:             planId,
			MaterialId:         item.MaterialId,
			BomLevel:           item.BomLevel,
			DemandItemId:       item.DemandItemId,
			SalesOrderId:       item.SalesOrderId,
			BucketDate:         item.BucketDate,
			DueDate:            item.DueDate,
			SuggestedStartDate: item.SuggestedStartDate,
			GrossQuantity:      item.GrossQuantity,
			AvailableInventory: item.AvailableInventory,
			SafetyStock:        item.SafetyStock,
			NetQuantity:        item.NetQuantity,
			PlannedQuantity:    item.PlannedQuantity,
			SuggestedAction:    item.SuggestedAction,
			SupplierId:         item.SupplierId,
			ExecutionStatus:    models.ExecutionStatusPending,
		}
		if item.ParentIndex >= 0 {
			parentId := ids[item.ParentIndex]
			row.ParentItemId = &parentId
		}
		if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
			return err
		}
		ids[i] = row.ID
	}
	for _, warning := range result.Warnings {
		row := models.PlanWarning{
			TenantId:   tenantId,
			PlanId:     planId,
			MaterialId: warning.MaterialId,
			Kind:       warning.Kind,
			Message:    warning.Message,
		}
		if warning.ItemIndex >= 0 && warning.ItemIndex < len(ids) {
			itemId := ids[warning.ItemIndex]
			row.PlanItemId = &itemId
		}
		if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

// WithdrawPlan releases the consumed pool lines and removes the plan. Draft
// children are cancelled along the way; blocked once any child left draft.
func WithdrawPlan(ctx context.Context, planId int) error {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return utils.NewValidationError("tenant id is required")
	}
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	plan, err := utils.FetchModelForUpdate[models.ProductionPlan](tx, tenantId, planId)
	if err != nil {
		tx.Rollback()
		return err
	}
	if err := resetGeneratedItems(ctx, tx, tenantId, planId); err != nil {
		tx.Rollback()
		return err
	}

	if err := releaseDemandItems(ctx, tx, tenantId, planId); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Where("tenant_id = ? AND plan_id = ?", tenantId, planId).
		Delete(&models.PlanWarning{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Where("tenant_id = ? AND plan_id = ?", tenantId, planId).
		Delete(&models.ProductionPlanItem{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Delete(plan).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := models.LogOperation(ctx, tx, tenantId, planId, "ProductionPlan", models.OperationActionDelete, plan, nil); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

var planStatusOrder = map[models.PlanStatus]int{
	models.PlanStatusDraft:     0,
	models.PlanStatusSubmitted: 1,
	models.PlanStatusApproved:  2,
	models.PlanStatusLocked:    3,
	models.PlanStatusExecuting: 4,
}

// AdvancePlanStatus moves the plan one step forward. Plan statuses only move
// forward; going back means withdrawing and re-running.
func AdvancePlanStatus(ctx context.Context, planId int, to models.PlanStatus) (*models.ProductionPlan, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, utils.NewValidationError("tenant id is required")
	}
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	plan, err := utils.FetchModelForUpdate[models.ProductionPlan](tx, tenantId, planId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	fromOrder, okFrom := planStatusOrder[plan.Status]
	toOrder, okTo := planStatusOrder[to]
	if !okFrom || !okTo || toOrder != fromOrder+1 {
		tx.Rollback()
		return nil, utils.NewBusinessLogicError("invalid plan status change",
			string(plan.Status)+" -> "+string(to))
	}
	if plan.NeedsRecompute != nil && *plan.NeedsRecompute && to != models.PlanStatusSubmitted {
		tx.Rollback()
		return nil, utils.NewBusinessLogicError("plan is stale", "recompute before advancing")
	}
	if err := tx.Model(plan).UpdateColumn("status", to).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := models.LogOperation(ctx, tx, tenantId, planId, "ProductionPlan", models.OperationActionTransition,
		map[string]interface{}{"status": plan.Status},
		map[string]interface{}{"status": to}); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	plan.Status = to
	return plan, nil
}

// RecomputePlan reruns the engine over the plan's own demand selection and
// replaces the stored result. Draft children generated from the old result
// are cancelled so the push can regenerate them; blocked once any child left
// draft.
func RecomputePlan(ctx context.Context, planId int) (*models.ProductionPlan, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, utils.NewValidationError("tenant id is required")
	}

	deadline := config.PlanningDeadline()
	release, err := AcquirePlanningLock(ctx, tenantId, deadline+30*time.Second)
	if err != nil {
		return nil, err
	}
	defer release()

	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	var items []*models.DemandItem
	if err := config.GetDB().WithContext(runCtx).
		Where("tenant_id = ? AND computation_id = ?", tenantId, planId).
		Order("delivery_date asc, material_id asc, id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, utils.NewBusinessLogicError("plan holds no demand", "")
	}

	plan, err := utils.FetchModel[models.ProductionPlan](runCtx, tenantId, planId)
	if err != nil {
		return nil, err
	}

	engineInput, err := buildEngineInput(runCtx, tenantId, plan.TimeBucket, items)
	if err != nil {
		return nil, err
	}
	result, err := RunPlanningEngine(*engineInput)
	if err != nil {
		return nil, err
	}
	if runCtx.Err() != nil {
		return nil, utils.NewTemporaryError("planning run exceeded its deadline")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if err := resetGeneratedItems(ctx, tx, tenantId, planId); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Where("tenant_id = ? AND plan_id = ?", tenantId, planId).
		Delete(&models.PlanWarning{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Where("tenant_id = ? AND plan_id = ?", tenantId, planId).
		Delete(&models.ProductionPlanItem{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := persistEngineResult(ctx, tx, tenantId, planId, result); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Model(&models.ProductionPlan{}).
		Where("tenant_id = ? AND id = ?", tenantId, planId).
		UpdateColumn("needs_recompute", false).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return models.FetchPlanWithResults(ctx, tenantId, planId)
}
