package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"gorm.io/gorm"
)

// Editing an audited upstream document fans out downstream. The selector
// decides per downstream plan what the edit is allowed to do; every step of
// one edit runs in a single tenant transaction.

type PropagationOutcome string

const (
	// apply the edit, downstream untouched
	PropagationApply PropagationOutcome = "apply"
	// apply the edit and flag the plan stale
	PropagationApplyAndFlag PropagationOutcome = "apply_and_flag"
	// refuse unless the caller forces
	PropagationBlocked PropagationOutcome = "blocked"
	// refuse always
	PropagationForbidden PropagationOutcome = "forbidden"
)

// SelectSourceItemsEdit is the selector row for "sales source items changed"
// against one downstream plan.
func SelectSourceItemsEdit(planStatus models.PlanStatus, force bool) PropagationOutcome {
	switch planStatus {
	case models.PlanStatusDraft:
		return PropagationApply
	case models.PlanStatusSubmitted:
		return PropagationApplyAndFlag
	case models.PlanStatusApproved, models.PlanStatusLocked:
		if force {
			return PropagationApplyAndFlag
		}
		return PropagationBlocked
	case models.PlanStatusExecuting:
		return PropagationForbidden
	}
	return PropagationApply
}

// SelectSourceUnaudit is the selector row for "source document leaves the
// audited state" against one downstream plan. Early-stage plans absorb the
// loss and get flagged stale; audited plans hold on to their demand.
func SelectSourceUnaudit(planStatus models.PlanStatus) PropagationOutcome {
	switch planStatus {
	case models.PlanStatusDraft, models.PlanStatusSubmitted:
		return PropagationApplyAndFlag
	case models.PlanStatusApproved, models.PlanStatusLocked, models.PlanStatusExecuting:
		return PropagationBlocked
	}
	return PropagationApplyAndFlag
}

// plansHoldingDemand lists the plans currently consuming any line of the
// demand mirror.
func plansHoldingDemand(ctx context.Context, tx *gorm.DB, tenantId string, demand *models.Demand) ([]*models.ProductionPlan, error) {
	if demand == nil {
		return nil, nil
	}
	var planIds []int
	for _, item := range demand.Items {
		if item.ComputationId != nil {
			planIds = append(planIds, *item.ComputationId)
		}
	}
	if len(planIds) == 0 {
		return nil, nil
	}
	var plans []*models.ProductionPlan
	if err := tx.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantId, utils.UniqueSlice(planIds)).
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

// propagateSourceItemsEdit applies the selector against every downstream plan
// and re-syncs the mirror when the edit survives.
func propagateSourceItemsEdit(ctx context.Context, tx *gorm.DB, tenantId string, source models.DemandSource, force bool) error {
	if force && !config.AllowForcedPropagation() {
		return utils.NewValidationError("forced propagation is disabled")
	}
	demand, err := models.DemandForSource(ctx, tx, tenantId, source.SourceType(), source.SourceId())
	if err != nil {
		return err
	}
	if demand == nil {
		return nil
	}
	plans, err := plansHoldingDemand(ctx, tx, tenantId, demand)
	if err != nil {
		return err
	}

	var flagPlanIds []int
	for _, plan := range plans {
		switch SelectSourceItemsEdit(plan.Status, force) {
		case PropagationForbidden:
			return utils.NewBusinessLogicError("upstream edit is forbidden",
				"plan "+plan.Code+" is executing")
		case PropagationBlocked:
			return utils.NewConflictError("upstream edit conflicts with a planning run",
				"plan "+plan.Code+" is "+string(plan.Status)+"; pass force to override")
		case PropagationApplyAndFlag:
			flagPlanIds = append(flagPlanIds, plan.ID)
			if force {
				config.GetLogger().WithField("tenant_id", tenantId).
					WithField("plan_id", plan.ID).
					WithField("source_type", source.SourceType()).
					WithField("source_id", source.SourceId()).
					Warn("forced propagation override")
			}
		}
	}
	if len(flagPlanIds) > 0 {
		if err := tx.WithContext(ctx).Model(&models.ProductionPlan{}).
			Where("tenant_id = ? AND id IN ?", tenantId, flagPlanIds).
			UpdateColumn("needs_recompute", true).Error; err != nil {
			return err
		}
	}
	return SyncDemandFromSource(ctx, tx, tenantId, source)
}

// syncSourceHeaderFields mirrors non-item header edits into the pool snapshot.
func syncSourceHeaderFields(ctx context.Context, tx *gorm.DB, tenantId string, source models.DemandSource) error {
	demand, err := models.DemandForSource(ctx, tx, tenantId, source.SourceType(), source.SourceId())
	if err != nil || demand == nil {
		return err
	}
	return tx.WithContext(ctx).Model(demand).
		UpdateColumn("source_code", source.SourceCode()).Error
}

// UpdateSalesForecast edits a forecast. Draft and rejected documents edit
// freely; audited ones run the propagation selector first.
func UpdateSalesForecast(ctx context.Context, id int, input *models.NewSalesForecast, force bool) (*models.SalesForecast, error) {
	return updateSalesSource[models.SalesForecast](ctx, id, force,
		func(ctx context.Context, tx *gorm.DB, tenantId string, forecast *models.SalesForecast) (bool, error) {
			if err := tx.WithContext(ctx).Model(forecast).Updates(map[string]interface{}{
				"Name":        input.Name,
				"PeriodStart": input.PeriodStart,
				"PeriodEnd":   input.PeriodEnd,
				"Notes":       input.Notes,
			}).Error; err != nil {
				return false, err
			}
			if input.Items == nil {
				return false, nil
			}
			items := make([]models.SalesForecastItem, 0, len(input.Items))
			for _, item := range input.Items {
				items = append(items, models.SalesForecastItem{
					ID:           item.ItemId,
					TenantId:     tenantId,
					MaterialId:   item.MaterialId,
					Quantity:     item.Quantity,
					Unit:         item.Unit,
					DeliveryDate: item.DeliveryDate,
					Notes:        item.Notes,
				})
			}
			if err := tx.WithContext(ctx).Model(forecast).
				Session(&gorm.Session{FullSaveAssociations: true, SkipHooks: true}).
				Association("Items").
				Unscoped().Replace(&items); err != nil {
				return false, err
			}
			return true, nil
		})
}

// UpdateSalesOrder edits an order with the same propagation rules.
func UpdateSalesOrder(ctx context.Context, id int, input *models.NewSalesOrder, force bool) (*models.SalesOrder, error) {
	return updateSalesSource[models.SalesOrder](ctx, id, force,
		func(ctx context.Context, tx *gorm.DB, tenantId string, order *models.SalesOrder) (bool, error) {
			if err := tx.WithContext(ctx).Model(order).Updates(map[string]interface{}{
				"CustomerName": input.CustomerName,
				"CustomerCode": input.CustomerCode,
				"Notes":        input.Notes,
			}).Error; err != nil {
				return false, err
			}
			if input.Items == nil {
				return false, nil
			}
			items := make([]models.SalesOrderItem, 0, len(input.Items))
			for _, item := range input.Items {
				items = append(items, models.SalesOrderItem{
					ID:           item.ItemId,
					TenantId:     tenantId,
					MaterialId:   item.MaterialId,
					Quantity:     item.Quantity,
					Unit:         item.Unit,
					UnitPrice:    item.UnitPrice,
					Amount:       item.UnitPrice.Mul(item.Quantity).Round(2),
					DeliveryDate: item.DeliveryDate,
					Notes:        item.Notes,
				})
			}
			if err := tx.WithContext(ctx).Model(order).
				Session(&gorm.Session{FullSaveAssociations: true, SkipHooks: true}).
				Association("Items").
				Unscoped().Replace(&items); err != nil {
				return false, err
			}
			return true, nil
		})
}

// updateSalesSource is the shared edit saga: lock the document, apply the
// mutation, then propagate when the document is audited. The mutation
// callback reports whether items changed.
func updateSalesSource[T any](
	ctx context.Context,
	id int,
	force bool,
	mutate func(ctx context.Context, tx *gorm.DB, tenantId string, doc *T) (bool, error),
) (*T, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, utils.NewValidationError("tenant id is required")
	}
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	doc, err := utils.FetchModelForUpdate[T](tx, tenantId, id, "Items")
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	holder, isLifecycle := any(doc).(models.LifecycleDocument)
	if !isLifecycle {
		tx.Rollback()
		return nil, utils.NewIntegrityError("document does not carry a lifecycle", "")
	}
	status := holder.CurrentStatus()
	switch status {
	case models.DocumentStatusCancelled, models.DocumentStatusClosed:
		tx.Rollback()
		return nil, utils.NewBusinessLogicError("document can no longer be edited", string(status))
	}

	before, err := utils.FetchModel[T](ctx, tenantId, id, "Items")
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	itemsChanged, err := mutate(ctx, tx, tenantId, doc)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if status == models.DocumentStatusAudited {
		refreshed, err := utils.FetchModelForUpdate[T](tx, tenantId, id, "Items")
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		source, isSource := any(refreshed).(models.DemandSource)
		if !isSource {
			tx.Rollback()
			return nil, utils.NewIntegrityError("document has no demand source", "")
		}
		if itemsChanged {
			if err := propagateSourceItemsEdit(ctx, tx, tenantId, source, force); err != nil {
				tx.Rollback()
				return nil, err
			}
		} else {
			if err := syncSourceHeaderFields(ctx, tx, tenantId, source); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}

	if err := models.LogOperation(ctx, tx, tenantId, id, holder.DocumentType(), models.OperationActionUpdate, before, doc); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return utils.FetchModel[T](ctx, tenantId, id, "Items")
}

// resetGeneratedItems cancels the draft children generated from a plan's
// lines and resets those lines to pending. Conflicts as soon as any child has
// left draft, because from then on the stored result is pinned.
func resetGeneratedItems(ctx context.Context, tx *gorm.DB, tenantId string, planId int) error {
	var items []*models.ProductionPlanItem
	if err := tx.WithContext(ctx).
		Where("tenant_id = ? AND plan_id = ? AND execution_status <> ?",
			tenantId, planId, models.ExecutionStatusPending).
		Find(&items).Error; err != nil {
		return err
	}
	for _, item := range items {
		if item.WorkOrderId != nil {
			order, err := utils.FetchModelForUpdate[models.WorkOrder](tx, tenantId, *item.WorkOrderId)
			if err != nil {
				return err
			}
			if childPinsPlan(&order.Status, nil) {
				return utils.NewConflictError("plan has active children",
					"work order "+order.Code+" is "+string(order.Status))
			}
			if err := tx.Model(order).UpdateColumn("status", models.WorkOrderStatusCancelled).Error; err != nil {
				return err
			}
		}
		if item.PurchaseOrderId != nil {
			order, err := utils.FetchModelForUpdate[models.PurchaseOrder](tx, tenantId, *item.PurchaseOrderId)
			if err != nil {
				return err
			}
			if childPinsPlan(nil, &order.Status) {
				return utils.NewConflictError("plan has active children",
					"purchase order "+order.Code+" is "+string(order.Status))
			}
			if err := tx.Where("tenant_id = ? AND order_id = ? AND plan_item_id = ?",
				tenantId, order.ID, item.ID).
				Delete(&models.PurchaseOrderItem{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(item).Updates(map[string]interface{}{
			"ExecutionStatus":   models.ExecutionStatusPending,
			"WorkOrderId":       nil,
			"WorkOrderQuantity": decimalZero(),
			"PurchaseOrderId":   nil,
			"PurchaseOrderQty":  decimalZero(),
		}).Error; err != nil {
			return err
		}
	}
	return nil
}

// UnauditPlan walks an approved plan back to submitted. Allowed only while
// every generated child is still draft; those children are cancelled and the
// lines reset so a later push can regenerate them.
func UnauditPlan(ctx context.Context, planId int) (*models.ProductionPlan, error) {
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
	if plan.Status != models.PlanStatusApproved && plan.Status != models.PlanStatusLocked && plan.Status != models.PlanStatusExecuting {
		tx.Rollback()
		return nil, utils.NewBusinessLogicError("plan is not audited", string(plan.Status))
	}

	if err := resetGeneratedItems(ctx, tx, tenantId, planId); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Model(plan).UpdateColumn("status", models.PlanStatusSubmitted).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := models.LogOperation(ctx, tx, tenantId, planId, "ProductionPlan", models.OperationActionTransition,
		map[string]interface{}{"status": plan.Status},
		map[string]interface{}{"status": models.PlanStatusSubmitted}); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	plan.Status = models.PlanStatusSubmitted
	return plan, nil
}
