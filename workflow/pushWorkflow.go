package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"gorm.io/gorm"
)

// Push turns planned order lines into execution documents: make lines become
// draft work orders, buy lines append onto an open draft purchase order of
// the supplier. Pushing the same line twice is a no-op, the link fields make
// the operation idempotent. Generating drafts does not advance the plan;
// execution starts when a child leaves draft, not when it is created.

type PushResult struct {
	WorkOrderIds     []int `json:"work_order_ids"`
	PurchaseOrderIds []int `json:"purchase_order_ids"`
	SkippedItemIds   []int `json:"skipped_item_ids"`
	GeneratedItemIds []int `json:"generated_item_ids"`
}

// PushPlanItems generates execution documents for the selected plan lines,
// or for every pending line when the selection is empty.
func PushPlanItems(ctx context.Context, planId int, itemIds []int) (*PushResult, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, utils.NewValidationError("tenant id is required")
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	result, err := pushPlanItemsInTx(ctx, tx, tenantId, planId, itemIds)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return result, nil
}

func pushPlanItemsInTx(ctx context.Context, tx *gorm.DB, tenantId string, planId int, itemIds []int) (*PushResult, error) {
	plan, err := utils.FetchModelForUpdate[models.ProductionPlan](tx, tenantId, planId)
	if err != nil {
		return nil, err
	}
	if plan.Status != models.PlanStatusApproved && plan.Status != models.PlanStatusLocked && plan.Status != models.PlanStatusExecuting {
		return nil, utils.NewBusinessLogicError("plan is not ready for execution",
			"approve the plan before pushing")
	}
	if plan.NeedsRecompute != nil && *plan.NeedsRecompute {
		return nil, utils.NewBusinessLogicError("plan is stale", "recompute before pushing")
	}

	query := tx.Clauses(forUpdate()).
		Where("tenant_id = ? AND plan_id = ?", tenantId, planId)
	if len(itemIds) > 0 {
		query = query.Where("id IN ?", itemIds)
	}
	var items []*models.ProductionPlanItem
	if err := query.Order("bucket_date asc, material_id asc, id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, utils.ErrorRecordNotFound
	}

	result := &PushResult{}
	for _, item := range items {
		if item.ExecutionStatus != models.ExecutionStatusPending || item.PlannedQuantity.IsZero() {
			result.SkippedItemIds = append(result.SkippedItemIds, item.ID)
			continue
		}
		switch item.SuggestedAction {
		case models.SuggestedActionMake:
			workOrderId, err := pushToWorkOrder(ctx, tx, tenantId, item)
			if err != nil {
				return nil, err
			}
			result.WorkOrderIds = append(result.WorkOrderIds, workOrderId)
			result.GeneratedItemIds = append(result.GeneratedItemIds, item.ID)
		case models.SuggestedActionBuy:
			purchaseOrderId, err := pushToPurchaseOrder(ctx, tx, tenantId, item)
			if err != nil {
				return nil, err
			}
			result.PurchaseOrderIds = append(result.PurchaseOrderIds, purchaseOrderId)
			result.GeneratedItemIds = append(result.GeneratedItemIds, item.ID)
		default:
			result.SkippedItemIds = append(result.SkippedItemIds, item.ID)
		}
	}

	return result, nil
}

// childPinsPlan reports whether the execution document generated from a plan
// line pins the plan's stored result. Drafts can be cancelled and regenerated;
// anything further locks the plan in place.
func childPinsPlan(workOrderStatus *models.WorkOrderStatus, purchaseOrderStatus *models.DocumentStatus) bool {
	if workOrderStatus != nil && *workOrderStatus != models.WorkOrderStatusDraft {
		return true
	}
	if purchaseOrderStatus != nil && *purchaseOrderStatus != models.DocumentStatusDraft {
		return true
	}
	return false
}

// markPlanExecuting flips the owning plan to executing when a generated child
// leaves draft. Runs in the caller's transaction.
func markPlanExecuting(ctx context.Context, tx *gorm.DB, tenantId string, planItemId int) error {
	var item models.ProductionPlanItem
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantId, planItemId).
		First(&item).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	return tx.WithContext(ctx).Model(&models.ProductionPlan{}).
		Where("tenant_id = ? AND id = ? AND status IN ?", tenantId, item.PlanId,
			[]models.PlanStatus{models.PlanStatusApproved, models.PlanStatusLocked}).
		UpdateColumn("status", models.PlanStatusExecuting).Error
}

func pushToWorkOrder(ctx context.Context, tx *gorm.DB, tenantId string, item *models.ProductionPlanItem) (int, error) {
	code, err := GenerateCode(ctx, "WO", nil, CodeExists[models.WorkOrder](tenantId))
	if err != nil {
		return 0, err
	}
	route, err := models.ApprovedRouteForMaterial(ctx, tenantId, item.MaterialId)
	if err != nil {
		return 0, err
	}

	mode := models.ProductionModeMTS
	if item.SalesOrderId != nil {
		mode = models.ProductionModeMTO
	}
	order := models.WorkOrder{
		TenantId:          tenantId,
		Code:              code,
		MaterialId:        item.MaterialId,
		Quantity:          item.PlannedQuantity,
		Status:            models.WorkOrderStatusDraft,
		ProductionMode:    mode,
		SalesOrderId:      item.SalesOrderId,
		PlanItemId:        &item.ID,
		PlannedStartDate:  item.SuggestedStartDate,
		PlannedEndDate:    item.DueDate,
		IsFrozen:          utils.NewFalse(),
		ManuallyCompleted: utils.NewFalse(),
		Operations:        models.OperationsFromRoute(tenantId, route),
	}
	if route != nil {
		order.RouteId = &route.ID
	}
	allowJump := false
	for _, op := range order.Operations {
		if op.AllowJump != nil && *op.AllowJump {
			allowJump = true
		}
	}
	order.AllowOperationJump = &allowJump

	if err := tx.WithContext(ctx).Create(&order).Error; err != nil {
		return 0, err
	}
	if err := tx.Model(item).Updates(map[string]interface{}{
		"ExecutionStatus":   models.ExecutionStatusGenerated,
		"WorkOrderId":       order.ID,
		"WorkOrderQuantity": item.PlannedQuantity,
	}).Error; err != nil {
		return 0, err
	}
	if err := models.LogOperation(ctx, tx, tenantId, order.ID, "WorkOrder", models.OperationActionCreate, nil, &order); err != nil {
		return 0, err
	}
	return order.ID, nil
}

// purchaseDeliveryDate is when a buy line is expected to arrive: the
// suggested order start plus the material's transit time.
func purchaseDeliveryDate(start time.Time, transitDays int) time.Time {
	return start.AddDate(0, 0, transitDays)
}

func pushToPurchaseOrder(ctx context.Context, tx *gorm.DB, tenantId string, item *models.ProductionPlanItem) (int, error) {
	if item.SupplierId == nil {
		return 0, utils.NewBusinessLogicError("plan line has no supplier",
			"assign a supplier to the material before pushing")
	}
	supplier, err := utils.FetchModel[models.Supplier](ctx, tenantId, *item.SupplierId)
	if err != nil {
		return 0, utils.NewNotFoundError("supplier not found")
	}
	material, err := utils.FetchModel[models.Material](ctx, tenantId, item.MaterialId)
	if err != nil {
		return 0, utils.NewNotFoundError("material not found")
	}

	order, err := models.OpenDraftPurchaseOrder(ctx, tx, tenantId, supplier.ID, supplier.Currency)
	if err != nil {
		return 0, err
	}
	if order == nil {
		code, err := GenerateCode(ctx, "PO", nil, CodeExists[models.PurchaseOrder](tenantId))
		if err != nil {
			return 0, err
		}
		order = &models.PurchaseOrder{
			TenantId:       tenantId,
			Code:           code,
			SupplierId:     supplier.ID,
			Currency:       supplier.Currency,
			OrderDate:      utils.TruncateToDay(time.Now()),
			Status:         models.DocumentStatusDraft,
			DeliveryStatus: models.DeliveryStatusPending,
		}
		if err := tx.WithContext(ctx).Create(order).Error; err != nil {
			return 0, err
		}
		if err := models.LogOperation(ctx, tx, tenantId, order.ID, "PurchaseOrder", models.OperationActionCreate, nil, order); err != nil {
			return 0, err
		}
	}

	line := models.PurchaseOrderItem{
		TenantId:     tenantId,
		OrderId:      order.ID,
		MaterialId:   item.MaterialId,
		Quantity:     item.PlannedQuantity,
		DeliveryDate: purchaseDeliveryDate(item.SuggestedStartDate, material.TransitTimeDays),
		PlanItemId:   &item.ID,
	}
	if err := tx.WithContext(ctx).Create(&line).Error; err != nil {
		return 0, err
	}
	if err := tx.Model(item).Updates(map[string]interface{}{
		"ExecutionStatus":  models.ExecutionStatusGenerated,
		"PurchaseOrderId":  order.ID,
		"PurchaseOrderQty": item.PlannedQuantity,
	}).Error; err != nil {
		return 0, err
	}
	return order.ID, nil
}
