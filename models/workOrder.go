package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WorkOrder drives shop-floor execution. Orders born from a planning run keep
// the plan item link; MTO orders also carry the sales order all the way down.
type WorkOrder struct {
	ID                 int                  `gorm:"primary_key" json:"id"`
	Uuid               string               `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId           string               `gorm:"index;not null" json:"tenant_id"`
	Code               string               `gorm:"size:100;not null" json:"code"`
	MaterialId         int                  `gorm:"index;not null" json:"material_id"`
	Quantity           decimal.Decimal      `gorm:"type:decimal(18,4);not null" json:"quantity"`
	CompletedQuantity  decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0" json:"completed_quantity"`
	Unit               string               `gorm:"size:20" json:"unit"`
	Status             WorkOrderStatus      `gorm:"type:enum('draft','released','in_progress','completed','cancelled');not null;default:'draft'" json:"status"`
	ProductionMode     ProductionMode       `gorm:"type:enum('MTS','MTO');not null;default:'MTS'" json:"production_mode"`
	SalesOrderId       *int                 `gorm:"index" json:"sales_order_id"`
	PlanItemId         *int                 `gorm:"index" json:"plan_item_id"`
	RouteId            *int                 `gorm:"index" json:"route_id"`
	PlannedStartDate   time.Time            `gorm:"not null" json:"planned_start_date"`
	PlannedEndDate     time.Time            `gorm:"not null" json:"planned_end_date"`
	ActualStartDate    *time.Time           `json:"actual_start_date"`
	ActualEndDate      *time.Time           `json:"actual_end_date"`
	IsFrozen           *bool                `gorm:"not null;default:false" json:"is_frozen"`
	ManuallyCompleted  *bool                `gorm:"not null;default:false" json:"manually_completed"`
	AllowOperationJump *bool                `gorm:"not null;default:false" json:"allow_operation_jump"`
	Notes              string               `gorm:"type:text" json:"notes"`
	Operations         []WorkOrderOperation `gorm:"foreignKey:WorkOrderId" json:"operations"`
	CreatedAt          time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt       `gorm:"index" json:"deleted_at"`
}

// WorkOrderOperation is the route snapshot taken at creation. Later route
// edits never touch running orders.
type WorkOrderOperation struct {
	ID                int             `gorm:"primary_key" json:"id"`
	TenantId          string          `gorm:"index;not null" json:"tenant_id"`
	WorkOrderId       int             `gorm:"index;not null" json:"work_order_id"`
	Sequence          int             `gorm:"not null" json:"sequence"`
	Name              string          `gorm:"size:255;not null" json:"name"`
	StandardTime      decimal.Decimal `gorm:"type:decimal(18,4);default:0" json:"standard_time"`
	SetupTime         decimal.Decimal `gorm:"type:decimal(18,4);default:0" json:"setup_time"`
	ReportingType     ReportingType   `gorm:"type:enum('quantity','status');not null;default:'quantity'" json:"reporting_type"`
	AllowJump         *bool           `gorm:"not null;default:false" json:"allow_jump"`
	ReportedQuantity  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"reported_quantity"`
	DefectiveQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"defective_quantity"`
	IsFinished        *bool           `gorm:"not null;default:false" json:"is_finished"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewWorkOrder struct {
	MaterialId       int             `json:"material_id" binding:"required"`
	Quantity         decimal.Decimal `json:"quantity" binding:"required,dgt0"`
	Unit             string          `json:"unit"`
	ProductionMode   ProductionMode  `json:"production_mode"`
	SalesOrderId     *int            `json:"sales_order_id"`
	PlannedStartDate time.Time       `json:"planned_start_date" binding:"required"`
	PlannedEndDate   time.Time       `json:"planned_end_date" binding:"required"`
	Notes            string          `json:"notes"`
}

func (w *WorkOrder) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&w.Uuid)
	return nil
}

func (w WorkOrder) GetId() int { return w.ID }

func (input *NewWorkOrder) validate(ctx context.Context, tenantId string) error {
	if err := utils.ValidateResourceId[Material](ctx, tenantId, input.MaterialId); err != nil {
		return utils.NewNotFoundError("material not found")
	}
	if input.Quantity.LessThanOrEqual(decimal.Zero) {
		return utils.NewValidationError("quantity must be positive")
	}
	if input.PlannedEndDate.Before(input.PlannedStartDate) {
		return utils.NewValidationError("planned end must not precede planned start")
	}
	if input.ProductionMode == ProductionModeMTO {
		if input.SalesOrderId == nil {
			return utils.NewValidationError("MTO work order requires a sales order")
		}
		if err := utils.ValidateResourceId[SalesOrder](ctx, tenantId, *input.SalesOrderId); err != nil {
			return utils.NewNotFoundError("sales order not found")
		}
	}
	return nil
}

// OperationsFromRoute snapshots the route operations onto a new work order.
func OperationsFromRoute(tenantId string, route *Route) []WorkOrderOperation {
	if route == nil {
		return nil
	}
	operations := make([]WorkOrderOperation, 0, len(route.Operations))
	for _, op := range route.Operations {
		operations = append(operations, WorkOrderOperation{
			TenantId:      tenantId,
			Sequence:      op.Sequence,
			Name:          op.Name,
			StandardTime:  op.StandardTime,
			SetupTime:     op.SetupTime,
			ReportingType: op.ReportingType,
			AllowJump:     orFalse(op.AllowJump),
			IsFinished:    utils.NewFalse(),
		})
	}
	return operations
}

// CreateWorkOrder builds a manual draft order, copying the approved route of
// the material when one exists.
func CreateWorkOrder(ctx context.Context, input *NewWorkOrder, code string) (*WorkOrder, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, tenantId); err != nil {
		return nil, err
	}
	mode := input.ProductionMode
	if mode == "" {
		mode = ProductionModeMTS
	}
	route, err := ApprovedRouteForMaterial(ctx, tenantId, input.MaterialId)
	if err != nil {
		return nil, err
	}

	order := WorkOrder{
		TenantId:          tenantId,
		Code:              code,
		MaterialId:        input.MaterialId,
		Quantity:          input.Quantity,
		Unit:              input.Unit,
		Status:            WorkOrderStatusDraft,
		ProductionMode:    mode,
		SalesOrderId:      input.SalesOrderId,
		PlannedStartDate:  input.PlannedStartDate,
		PlannedEndDate:    input.PlannedEndDate,
		IsFrozen:          utils.NewFalse(),
		ManuallyCompleted: utils.NewFalse(),
		Notes:             input.Notes,
		Operations:        OperationsFromRoute(tenantId, route),
	}
	if route != nil {
		order.RouteId = &route.ID
		allowJump := false
		for _, op := range route.Operations {
			if op.AllowJump != nil && *op.AllowJump {
				allowJump = true
			}
		}
		order.AllowOperationJump = &allowJump
	} else {
		order.AllowOperationJump = utils.NewFalse()
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := LogOperation(ctx, tx, tenantId, order.ID, "WorkOrder", OperationActionCreate, nil, &order); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// HasReportingRecords tells whether any production was ever booked against the
// order; such orders can no longer be cancelled.
func (w *WorkOrder) HasReportingRecords(ctx context.Context) (bool, error) {
	count, err := utils.ResourceCountWhere[ReportingRecord](ctx, w.TenantId, "work_order_id = ?", w.ID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
