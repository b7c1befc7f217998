package workflow

import (
	"context"
	"strconv"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// The demand pool mirrors audited upstream documents. Auditing creates or
// reactivates the mirror, editing an audited document re-syncs it, unauditing
// deactivates it. Lines already pushed into a planning run are never silently
// rewritten: the owning plans get flagged for recompute instead.

func init() {
	for _, docType := range []string{"SalesForecast", "SalesOrder"} {
		registerEffect(docType, func(ctx context.Context, tx *gorm.DB, tenantId string, docId int, from, to models.DocumentStatus) error {
			switch {
			case to == models.DocumentStatusAudited:
				source, err := loadDemandSource(ctx, tx, tenantId, docType, docId)
				if err != nil {
					return err
				}
				return SyncDemandFromSource(ctx, tx, tenantId, source)
			case from == models.DocumentStatusAudited:
				source, err := loadDemandSource(ctx, tx, tenantId, docType, docId)
				if err != nil {
					return err
				}
				return DeactivateDemandForSource(ctx, tx, tenantId, source)
			}
			return nil
		})
		registerGuard(docType, func(ctx context.Context, tx *gorm.DB, tenantId string, docId int, from, to models.DocumentStatus) error {
			if from != models.DocumentStatusAudited {
				return nil
			}
			source, err := loadDemandSource(ctx, tx, tenantId, docType, docId)
			if err != nil {
				return err
			}
			return guardNoPushedDemand(ctx, tx, tenantId, source)
		})
	}
}

func loadDemandSource(ctx context.Context, tx *gorm.DB, tenantId string, docType string, docId int) (models.DemandSource, error) {
	switch docType {
	case "SalesForecast":
		var forecast models.SalesForecast
		if err := tx.WithContext(ctx).Preload("Items").
			Where("tenant_id = ?", tenantId).
			First(&forecast, docId).Error; err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		return &forecast, nil
	case "SalesOrder":
		var order models.SalesOrder
		if err := tx.WithContext(ctx).Preload("Items").
			Where("tenant_id = ?", tenantId).
			First(&order, docId).Error; err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		return &order, nil
	}
	return nil, utils.NewIntegrityError("document type has no demand source", docType)
}

// guardNoPushedDemand vetoes leaving the audited state while an audited plan
// holds any of the pool lines. Plans still in draft or submitted absorb the
// unaudit; the deactivation effect flags them stale instead.
func guardNoPushedDemand(ctx context.Context, tx *gorm.DB, tenantId string, source models.DemandSource) error {
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
	for _, plan := range plans {
		if SelectSourceUnaudit(plan.Status) == PropagationBlocked {
			return utils.NewBusinessLogicError("demand is consumed by an audited plan",
				"plan "+plan.Code+" is "+string(plan.Status)+"; withdraw it before unauditing the source document")
		}
	}
	return nil
}

// SyncDemandFromSource makes the pool mirror match the source items. New
// lines appear, vanished unpushed lines go away, changed lines are updated.
// A pushed line that changed or vanished flags its plans for recompute.
func SyncDemandFromSource(ctx context.Context, tx *gorm.DB, tenantId string, source models.DemandSource) error {
	demand, err := models.DemandForSource(ctx, tx, tenantId, source.SourceType(), source.SourceId())
	if err != nil {
		return err
	}
	if demand == nil {
		demand = &models.Demand{
			TenantId:     tenantId,
			SourceType:   source.SourceType(),
			SourceId:     source.SourceId(),
			SourceCode:   source.SourceCode(),
			Mode:         source.Mode(),
			SalesOrderId: source.SalesOrderId(),
			IsActive:     utils.NewTrue(),
		}
		if err := tx.WithContext(ctx).Create(demand).Error; err != nil {
			return err
		}
	} else if demand.IsActive == nil || !*demand.IsActive {
		if err := tx.WithContext(ctx).Model(demand).
			UpdateColumn("is_active", true).Error; err != nil {
			return err
		}
	}

	existing := make(map[int]*models.DemandItem, len(demand.Items))
	for i := range demand.Items {
		existing[demand.Items[i].SourceItemId] = &demand.Items[i]
	}

	var staleItemIds []int
	seen := make(map[int]bool)
	for _, sourceItem := range source.SourceItems() {
		seen[sourceItem.SourceItemId] = true
		current, ok := existing[sourceItem.SourceItemId]
		if !ok {
			item := models.DemandItem{
				TenantId:            tenantId,
				DemandId:            demand.ID,
				SourceItemId:        sourceItem.SourceItemId,
				MaterialId:          sourceItem.MaterialId,
				Quantity:            sourceItem.Quantity,
				Unit:                sourceItem.Unit,
				DeliveryDate:        sourceItem.DeliveryDate,
				PushedToComputation: utils.NewFalse(),
				IsClosed:            utils.NewFalse(),
				Notes:               sourceItem.Notes,
			}
			if err := tx.WithContext(ctx).Create(&item).Error; err != nil {
				return err
			}
			continue
		}

		changed := !current.Quantity.Equal(sourceItem.Quantity) ||
			!current.DeliveryDate.Equal(sourceItem.DeliveryDate) ||
			current.MaterialId != sourceItem.MaterialId
		if !changed {
			continue
		}
		if demandSyncConflict(current.DeliveredQuantity, sourceItem.Quantity) {
			if err := recordDemandConflict(ctx, tx, tenantId, current, sourceItem.Quantity); err != nil {
				return err
			}
		}
		if current.PushedToComputation != nil && *current.PushedToComputation {
			staleItemIds = append(staleItemIds, current.ID)
		}
		if err := tx.WithContext(ctx).Model(current).Updates(map[string]interface{}{
			"MaterialId":   sourceItem.MaterialId,
			"Quantity":     sourceItem.Quantity,
			"DeliveryDate": sourceItem.DeliveryDate,
			"Notes":        sourceItem.Notes,
		}).Error; err != nil {
			return err
		}
	}

	for sourceItemId, current := range existing {
		if seen[sourceItemId] {
			continue
		}
		if current.PushedToComputation != nil && *current.PushedToComputation {
			staleItemIds = append(staleItemIds, current.ID)
			if demandSyncConflict(current.DeliveredQuantity, decimal.Zero) {
				if err := recordDemandConflict(ctx, tx, tenantId, current, decimal.Zero); err != nil {
					return err
				}
			}
			if err := tx.WithContext(ctx).Model(current).
				UpdateColumn("is_closed", true).Error; err != nil {
				return err
			}
			continue
		}
		if err := tx.WithContext(ctx).Delete(current).Error; err != nil {
			return err
		}
	}

	return models.MarkPlansNeedRecompute(ctx, tx, tenantId, staleItemIds)
}

// demandSyncConflict reports whether an incoming quantity undercuts what was
// already delivered against the line.
func demandSyncConflict(delivered, incoming decimal.Decimal) bool {
	return incoming.LessThan(delivered)
}

// recordDemandConflict surfaces a source edit that undercuts the delivered
// quantity. The warning lands on the plan holding the line; an unplanned line
// has no plan to pin it to and is only logged.
func recordDemandConflict(ctx context.Context, tx *gorm.DB, tenantId string, item *models.DemandItem, incoming decimal.Decimal) error {
	if item.ComputationId == nil {
		config.GetLogger().WithField("tenant_id", tenantId).
			WithField("demand_item_id", item.ID).
			WithField("delivered", item.DeliveredQuantity.String()).
			WithField("incoming", incoming.String()).
			Warn("demand edit undercuts delivered quantity")
		return nil
	}
	warning := models.PlanWarning{
		TenantId:   tenantId,
		PlanId:     *item.ComputationId,
		MaterialId: item.MaterialId,
		Kind:       models.PlanWarningConflict,
		Message: "demand line " + strconv.Itoa(item.ID) + " reduced to " + incoming.String() +
			" below delivered quantity " + item.DeliveredQuantity.String(),
	}
	return tx.WithContext(ctx).Create(&warning).Error
}

// DeactivateDemandForSource retires the mirror when the source leaves the
// audited state. Draft and submitted plans still holding its lines are
// flagged for recompute; the guard already blocked everything further.
func DeactivateDemandForSource(ctx context.Context, tx *gorm.DB, tenantId string, source models.DemandSource) error {
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
		if SelectSourceUnaudit(plan.Status) == PropagationApplyAndFlag {
			flagPlanIds = append(flagPlanIds, plan.ID)
		}
	}
	if len(flagPlanIds) > 0 {
		if err := tx.WithContext(ctx).Model(&models.ProductionPlan{}).
			Where("tenant_id = ? AND id IN ?", tenantId, flagPlanIds).
			UpdateColumn("needs_recompute", true).Error; err != nil {
			return err
		}
	}
	return tx.WithContext(ctx).Model(demand).UpdateColumn("is_active", false).Error
}

// CreateDemandFromSalesOrder mirrors an audited sales order into the pool on
// demand, outside the audit hook. Re-running it re-syncs the same mirror, so
// the call is idempotent.
func CreateDemandFromSalesOrder(ctx context.Context, salesOrderId int) (*models.Demand, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, utils.NewValidationError("tenant id is required")
	}
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	source, err := loadDemandSource(ctx, tx, tenantId, "SalesOrder", salesOrderId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if !source.IsAudited() {
		tx.Rollback()
		return nil, utils.NewBusinessLogicError("sales order is not audited",
			"audit the order before pulling it into the pool")
	}
	if err := SyncDemandFromSource(ctx, tx, tenantId, source); err != nil {
		tx.Rollback()
		return nil, err
	}
	demand, err := models.DemandForSource(ctx, tx, tenantId, source.SourceType(), source.SourceId())
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return demand, nil
}

// PushDemandToComputation reopens the demand's closed but undelivered lines
// so the next planning run picks them up. Lines a run already holds stay
// untouched.
func PushDemandToComputation(ctx context.Context, demandId int) (*models.Demand, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, utils.NewValidationError("tenant id is required")
	}
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	demand, err := utils.FetchModelForUpdate[models.Demand](tx, tenantId, demandId, "Items")
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if demand.IsActive == nil || !*demand.IsActive {
		tx.Rollback()
		return nil, utils.NewBusinessLogicError("demand is inactive",
			"re-audit the source document first")
	}
	for i := range demand.Items {
		item := &demand.Items[i]
		if item.IsClosed == nil || !*item.IsClosed {
			continue
		}
		if item.PushedToComputation != nil && *item.PushedToComputation {
			continue
		}
		if item.RemainingQuantity().IsZero() {
			continue
		}
		if err := tx.WithContext(ctx).Model(item).
			UpdateColumn("is_closed", false).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return utils.FetchModel[models.Demand](ctx, tenantId, demandId, "Items")
}

// WithdrawDemandFromComputation takes a demand out of planning consideration
// by closing its open lines. Refused while a planning run holds any line.
func WithdrawDemandFromComputation(ctx context.Context, demandId int) (*models.Demand, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, utils.NewValidationError("tenant id is required")
	}
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	demand, err := utils.FetchModelForUpdate[models.Demand](tx, tenantId, demandId, "Items")
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	for _, item := range demand.Items {
		if item.PushedToComputation != nil && *item.PushedToComputation {
			tx.Rollback()
			return nil, utils.NewConflictError("demand is consumed by a planning run",
				"withdraw the plan before withdrawing the demand")
		}
	}
	if err := tx.WithContext(ctx).Model(&models.DemandItem{}).
		Where("tenant_id = ? AND demand_id = ?", tenantId, demandId).
		UpdateColumn("is_closed", true).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return utils.FetchModel[models.Demand](ctx, tenantId, demandId, "Items")
}

// markDemandItemsPushed flips the pool lines a planning run consumed.
func markDemandItemsPushed(ctx context.Context, tx *gorm.DB, tenantId string, itemIds []int, planId int) error {
	if len(itemIds) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Model(&models.DemandItem{}).
		Where("tenant_id = ? AND id IN ?", tenantId, itemIds).
		Updates(map[string]interface{}{
			"pushed_to_computation": true,
			"computation_id":        planId,
		}).Error
}

// releaseDemandItems undoes the push when a planning run is withdrawn.
func releaseDemandItems(ctx context.Context, tx *gorm.DB, tenantId string, planId int) error {
	return tx.WithContext(ctx).Model(&models.DemandItem{}).
		Where("tenant_id = ? AND computation_id = ?", tenantId, planId).
		Updates(map[string]interface{}{
			"pushed_to_computation": false,
			"computation_id":        nil,
		}).Error
}
