package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Picking issues material out of a warehouse, normally against a work order.
// Only audited pickings count toward inventory.
type Picking struct {
	ID            int            `gorm:"primary_key" json:"id"`
	Uuid          string         `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId      string         `gorm:"index;not null" json:"tenant_id"`
	Code          string         `gorm:"size:100;not null" json:"code"`
	PickingDate   time.Time      `gorm:"not null" json:"picking_date"`
	WorkOrderId   *int           `gorm:"index" json:"work_order_id"`
	Status        DocumentStatus `gorm:"type:enum('draft','submitted','pending_review','audited','rejected','cancelled','closed');not null;default:'draft'" json:"status"`
	Notes         string         `gorm:"type:text" json:"notes"`
	Reviewer      string         `gorm:"size:100" json:"reviewer"`
	ReviewedAt    *time.Time     `json:"reviewed_at"`
	ReviewComment string         `gorm:"size:500" json:"review_comment"`
	Items         []PickingItem  `gorm:"foreignKey:PickingId" json:"items"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

type PickingItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	TenantId    string          `gorm:"index;not null" json:"tenant_id"`
	PickingId   int             `gorm:"index;not null" json:"picking_id"`
	MaterialId  int             `gorm:"index;not null" json:"material_id"`
	WarehouseId int             `gorm:"index;not null" json:"warehouse_id"`
	BatchNo     string          `gorm:"size:100" json:"batch_no"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	Unit        string          `gorm:"size:20" json:"unit"`
	Notes       string          `gorm:"size:500" json:"notes"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPicking struct {
	PickingDate time.Time        `json:"picking_date"`
	WorkOrderId *int             `json:"work_order_id"`
	Notes       string           `json:"notes"`
	Items       []NewPickingItem `json:"items" binding:"required"`
}

type NewPickingItem struct {
	MaterialId  int             `json:"material_id" binding:"required"`
	WarehouseId int             `json:"warehouse_id" binding:"required"`
	BatchNo     string          `json:"batch_no"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required"`
	Unit        string          `json:"unit"`
	Notes       string          `json:"notes"`
}

func (p *Picking) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&p.Uuid)
	return nil
}

func (p Picking) GetId() int { return p.ID }

func (input *NewPicking) validate(ctx context.Context, tenantId string) error {
	if len(input.Items) == 0 {
		return utils.NewValidationError("picking requires at least one item")
	}
	if input.WorkOrderId != nil {
		if err := utils.ValidateResourceId[WorkOrder](ctx, tenantId, *input.WorkOrderId); err != nil {
			return utils.NewNotFoundError("work order not found")
		}
	}
	for _, item := range input.Items {
		if err := utils.ValidateResourceId[Material](ctx, tenantId, item.MaterialId); err != nil {
			return utils.NewNotFoundError("material not found")
		}
		if err := utils.ValidateResourceId[Warehouse](ctx, tenantId, item.WarehouseId); err != nil {
			return utils.NewNotFoundError("warehouse not found")
		}
		if item.Quantity.LessThanOrEqual(decimal.Zero) {
			return utils.NewValidationError("item quantity must be positive")
		}
	}
	return nil
}

func CreatePicking(ctx context.Context, input *NewPicking, code string) (*Picking, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, tenantId); err != nil {
		return nil, err
	}
	pickingDate := input.PickingDate
	if pickingDate.IsZero() {
		pickingDate = utils.TruncateToDay(time.Now())
	}
	items := make([]PickingItem, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, PickingItem{
			TenantId:    tenantId,
			MaterialId:  item.MaterialId,
			WarehouseId: item.WarehouseId,
			BatchNo:     item.BatchNo,
			Quantity:    item.Quantity,
			Unit:        item.Unit,
			Notes:       item.Notes,
		})
	}
	picking := Picking{
		TenantId:    tenantId,
		Code:        code,
		PickingDate: pickingDate,
		WorkOrderId: input.WorkOrderId,
		Status:      DocumentStatusDraft,
		Notes:       input.Notes,
		Items:       items,
	}
	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&picking).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := LogOperation(ctx, tx, tenantId, picking.ID, "Picking", OperationActionCreate, nil, &picking); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &picking, nil
}
