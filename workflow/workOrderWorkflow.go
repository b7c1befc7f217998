package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Work order execution. The status machine is draft -> released ->
// in_progress -> completed, with cancel reachable until production is booked.
// Frozen orders refuse reporting until unfrozen.

func ReleaseWorkOrder(ctx context.Context, id int) (*models.WorkOrder, error) {
	return changeWorkOrderStatus(ctx, id, models.WorkOrderStatusDraft, models.WorkOrderStatusReleased, nil)
}

func StartWorkOrder(ctx context.Context, id int) (*models.WorkOrder, error) {
	now := time.Now()
	return changeWorkOrderStatus(ctx, id, models.WorkOrderStatusReleased, models.WorkOrderStatusInProgress,
		map[string]interface{}{"ActualStartDate": &now})
}

func changeWorkOrderStatus(ctx context.Context, id int, from models.WorkOrderStatus, to models.WorkOrderStatus, extra map[string]interface{}) (*models.WorkOrder, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, utils.NewValidationError("tenant id is required")
	}
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	order, err := utils.FetchModelForUpdate[models.WorkOrder](tx, tenantId, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if order.Status != from {
		tx.Rollback()
		return nil, utils.NewBusinessLogicError("invalid work order status change",
			string(order.Status)+" -> "+string(to))
	}
	updates := map[string]interface{}{"Status": to}
	for k, v := range extra {
		updates[k] = v
	}
	if err := tx.Model(order).Updates(updates).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	// a plan-generated order leaving draft starts the owning plan's execution
	if from == models.WorkOrderStatusDraft && order.PlanItemId != nil {
		if err := markPlanExecuting(ctx, tx, tenantId, *order.PlanItemId); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := models.LogOperation(ctx, tx, tenantId, id, "WorkOrder", models.OperationActionTransition,
		map[string]interface{}{"status": from},
		map[string]interface{}{"status": to}); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	order.Status = to
	return order, nil
}

// FreezeWorkOrder suspends reporting without losing state.
func FreezeWorkOrder(ctx context.Context, id int, frozen bool) (*models.WorkOrder, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, utils.NewValidationError("tenant id is required")
	}
	order, err := utils.FetchModel[models.WorkOrder](ctx, tenantId, id)
	if err != nil {
		return nil, err
	}
	if order.Status == models.WorkOrderStatusCompleted || order.Status == models.WorkOrderStatusCancelled {
		return nil, utils.NewBusinessLogicError("work order already finished", string(order.Status))
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(order).
		UpdateColumn("is_frozen", frozen).Error; err != nil {
		return nil, err
	}
	order.IsFrozen = &frozen
	return order, nil
}

type NewReporting struct {
	OperationId       int             `json:"operation_id" binding:"required"`
	Quantity          decimal.Decimal `json:"quantity"`
	DefectiveQuantity decimal.Decimal `json:"defective_quantity"`
	Finished          *bool           `json:"finished"`
	Notes             string          `json:"notes"`
}

// ReportWorkOrder books production against one operation. Quantity-type
// operations accumulate quantities; status-type operations only flip
// finished. Sequence is enforced unless the operation allows jumping.
func ReportWorkOrder(ctx context.Context, workOrderId int, input *NewReporting) (*models.ReportingRecord, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, utils.NewValidationError("tenant id is required")
	}
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	order, err := utils.FetchModelForUpdate[models.WorkOrder](tx, tenantId, workOrderId, "Operations")
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if order.Status != models.WorkOrderStatusInProgress {
		tx.Rollback()
		return nil, utils.NewBusinessLogicError("work order is not in progress", string(order.Status))
	}
	if order.IsFrozen != nil && *order.IsFrozen {
		tx.Rollback()
		return nil, utils.NewBusinessLogicError("work order is frozen", "")
	}

	var operation *models.WorkOrderOperation
	for i := range order.Operations {
		if order.Operations[i].ID == input.OperationId {
			operation = &order.Operations[i]
			break
		}
	}
	if operation == nil {
		tx.Rollback()
		return nil, utils.NewNotFoundError("operation not found on the work order")
	}

	allowJump := operation.AllowJump != nil && *operation.AllowJump
	if !allowJump {
		for _, prior := range order.Operations {
			if prior.Sequence < operation.Sequence && (prior.IsFinished == nil || !*prior.IsFinished) {
				tx.Rollback()
				return nil, utils.NewBusinessLogicError("earlier operation not finished",
					prior.Name)
			}
		}
	}

	switch operation.ReportingType {
	case models.ReportingTypeQuantity:
		if input.Quantity.LessThanOrEqual(decimal.Zero) && input.DefectiveQuantity.LessThanOrEqual(decimal.Zero) {
			tx.Rollback()
			return nil, utils.NewValidationError("reporting quantity must be positive")
		}
	case models.ReportingTypeStatus:
		if input.Finished == nil || !*input.Finished {
			tx.Rollback()
			return nil, utils.NewValidationError("status operations report by finishing")
		}
	}

	username, _ := utils.GetUsernameFromContext(ctx)
	record := models.ReportingRecord{
		TenantId:          tenantId,
		WorkOrderId:       order.ID,
		OperationId:       operation.ID,
		Quantity:          input.Quantity,
		DefectiveQuantity: input.DefectiveQuantity,
		ReportedBy:        username,
		ReportedAt:        time.Now(),
		Notes:             input.Notes,
	}
	if err := tx.Create(&record).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	opUpdates := map[string]interface{}{
		"ReportedQuantity":  operation.ReportedQuantity.Add(input.Quantity),
		"DefectiveQuantity": operation.DefectiveQuantity.Add(input.DefectiveQuantity),
	}
	finished := input.Finished != nil && *input.Finished
	if operation.ReportingType == models.ReportingTypeQuantity {
		if operation.ReportedQuantity.Add(input.Quantity).GreaterThanOrEqual(order.Quantity) {
			finished = true
		}
	}
	if finished {
		opUpdates["IsFinished"] = true
	}
	if err := tx.Model(operation).Updates(opUpdates).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if input.DefectiveQuantity.GreaterThan(decimal.Zero) {
		defect := models.DefectRecord{
			TenantId:    tenantId,
			WorkOrderId: order.ID,
			MaterialId:  order.MaterialId,
			Quantity:    input.DefectiveQuantity,
			Reason:      input.Notes,
			IsResolved:  utils.NewFalse(),
		}
		if err := tx.Create(&defect).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	// last operation's good quantity is the order's completed output
	lastSeq := 0
	for _, op := range order.Operations {
		if op.Sequence > lastSeq {
			lastSeq = op.Sequence
		}
	}
	if operation.Sequence == lastSeq && input.Quantity.GreaterThan(decimal.Zero) {
		completed := order.CompletedQuantity.Add(input.Quantity)
		if err := tx.Model(order).UpdateColumn("completed_quantity", completed).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// CompleteWorkOrder finishes an order whose operations are all done.
// Manual completion skips that check for orders that finished off-system;
// the flag stays on the record.
func CompleteWorkOrder(ctx context.Context, id int, manual bool) (*models.WorkOrder, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, utils.NewValidationError("tenant id is required")
	}
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	order, err := utils.FetchModelForUpdate[models.WorkOrder](tx, tenantId, id, "Operations")
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if order.Status != models.WorkOrderStatusInProgress && order.Status != models.WorkOrderStatusReleased {
		tx.Rollback()
		return nil, utils.NewBusinessLogicError("work order cannot complete", string(order.Status))
	}
	if !manual {
		for _, op := range order.Operations {
			if op.IsFinished == nil || !*op.IsFinished {
				tx.Rollback()
				return nil, utils.NewBusinessLogicError("operations still open",
					"complete manually to override")
			}
		}
	}

	now := time.Now()
	updates := map[string]interface{}{
		"Status":        models.WorkOrderStatusCompleted,
		"ActualEndDate": &now,
	}
	if manual {
		updates["ManuallyCompleted"] = true
	}
	if err := tx.Model(order).Updates(updates).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := markPlanItemDone(ctx, tx, tenantId, order); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := models.LogOperation(ctx, tx, tenantId, id, "WorkOrder", models.OperationActionTransition,
		map[string]interface{}{"status": order.Status},
		map[string]interface{}{"status": models.WorkOrderStatusCompleted, "manual": manual}); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	order.Status = models.WorkOrderStatusCompleted
	return order, nil
}

// markPlanItemDone closes the plan line that generated this order.
func markPlanItemDone(ctx context.Context, tx *gorm.DB, tenantId string, order *models.WorkOrder) error {
	if order.PlanItemId == nil {
		return nil
	}
	return tx.WithContext(ctx).Model(&models.ProductionPlanItem{}).
		Where("tenant_id = ? AND id = ?", tenantId, *order.PlanItemId).
		UpdateColumn("execution_status", models.ExecutionStatusDone).Error
}

// CancelWorkOrder drops an order that never produced anything. Orders with
// reporting records can only be completed, manually if need be.
func CancelWorkOrder(ctx context.Context, id int) (*models.WorkOrder, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, utils.NewValidationError("tenant id is required")
	}
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()

	order, err := utils.FetchModelForUpdate[models.WorkOrder](tx, tenantId, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if order.Status == models.WorkOrderStatusCompleted || order.Status == models.WorkOrderStatusCancelled {
		tx.Rollback()
		return nil, utils.NewBusinessLogicError("work order already finished", string(order.Status))
	}
	var reported int64
	if err := tx.Model(&models.ReportingRecord{}).
		Where("tenant_id = ? AND work_order_id = ?", tenantId, id).
		Count(&reported).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if reported > 0 {
		tx.Rollback()
		return nil, utils.NewBusinessLogicError("work order has reporting records",
			"complete it manually instead of cancelling")
	}

	if err := tx.Model(order).UpdateColumn("status", models.WorkOrderStatusCancelled).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if order.PlanItemId != nil {
		if err := tx.Model(&models.ProductionPlanItem{}).
			Where("tenant_id = ? AND id = ?", tenantId, *order.PlanItemId).
			Updates(map[string]interface{}{
				"ExecutionStatus":   models.ExecutionStatusPending,
				"WorkOrderId":       nil,
				"WorkOrderQuantity": decimalZero(),
			}).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := models.LogOperation(ctx, tx, tenantId, id, "WorkOrder", models.OperationActionTransition,
		map[string]interface{}{"status": order.Status},
		map[string]interface{}{"status": models.WorkOrderStatusCancelled}); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	order.Status = models.WorkOrderStatusCancelled
	return order, nil
}
