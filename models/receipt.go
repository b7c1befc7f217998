package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Receipt books material into a warehouse. Purchase receipts link their
// purchase order items; production receipts link the finishing work order.
// Only audited receipts count toward inventory.
type Receipt struct {
	ID            int            `gorm:"primary_key" json:"id"`
	Uuid          string         `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId      string         `gorm:"index;not null" json:"tenant_id"`
	Code          string         `gorm:"size:100;not null" json:"code"`
	ReceiptDate   time.Time      `gorm:"not null" json:"receipt_date"`
	Status        DocumentStatus `gorm:"type:enum('draft','submitted','pending_review','audited','rejected','cancelled','closed');not null;default:'draft'" json:"status"`
	Notes         string         `gorm:"type:text" json:"notes"`
	Reviewer      string         `gorm:"size:100" json:"reviewer"`
	ReviewedAt    *time.Time     `json:"reviewed_at"`
	ReviewComment string         `gorm:"size:500" json:"review_comment"`
	Items         []ReceiptItem  `gorm:"foreignKey:ReceiptId" json:"items"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

type ReceiptItem struct {
	ID                  int             `gorm:"primary_key" json:"id"`
	TenantId            string          `gorm:"index;not null" json:"tenant_id"`
	ReceiptId           int             `gorm:"index;not null" json:"receipt_id"`
	MaterialId          int             `gorm:"index;not null" json:"material_id"`
	WarehouseId         int             `gorm:"index;not null" json:"warehouse_id"`
	BatchNo             string          `gorm:"size:100" json:"batch_no"`
	Quantity            decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	Unit                string          `gorm:"size:20" json:"unit"`
	ExpiryDate          *time.Time      `json:"expiry_date"`
	PurchaseOrderItemId *int            `gorm:"index" json:"purchase_order_item_id"`
	WorkOrderId         *int            `gorm:"index" json:"work_order_id"`
	Notes               string          `gorm:"size:500" json:"notes"`
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewReceipt struct {
	ReceiptDate time.Time        `json:"receipt_date"`
	Notes       string           `json:"notes"`
	Items       []NewReceiptItem `json:"items" binding:"required"`
}

type NewReceiptItem struct {
	MaterialId          int             `json:"material_id" binding:"required"`
	WarehouseId         int             `json:"warehouse_id" binding:"required"`
	BatchNo             string          `json:"batch_no"`
	Quantity            decimal.Decimal `json:"quantity" binding:"required"`
	Unit                string          `json:"unit"`
	ExpiryDate          *time.Time      `json:"expiry_date"`
	PurchaseOrderItemId *int            `json:"purchase_order_item_id"`
	WorkOrderId         *int            `json:"work_order_id"`
	Notes               string          `json:"notes"`
}

func (r *Receipt) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&r.Uuid)
	return nil
}

func (r Receipt) GetId() int { return r.ID }

func (input *NewReceipt) validate(ctx context.Context, tenantId string) error {
	if len(input.Items) == 0 {
		return utils.NewValidationError("receipt requires at least one item")
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

func CreateReceipt(ctx context.Context, input *NewReceipt, code string) (*Receipt, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, tenantId); err != nil {
		return nil, err
	}
	receiptDate := input.ReceiptDate
	if receiptDate.IsZero() {
		receiptDate = utils.TruncateToDay(time.Now())
	}
	items := make([]ReceiptItem, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, ReceiptItem{
			TenantId:            tenantId,
			MaterialId:          item.MaterialId,
			WarehouseId:         item.WarehouseId,
			BatchNo:             item.BatchNo,
			Quantity:            item.Quantity,
			Unit:                item.Unit,
			ExpiryDate:          item.ExpiryDate,
			PurchaseOrderItemId: item.PurchaseOrderItemId,
			WorkOrderId:         item.WorkOrderId,
			Notes:               item.Notes,
		})
	}
	receipt := Receipt{
		TenantId:    tenantId,
		Code:        code,
		ReceiptDate: receiptDate,
		Status:      DocumentStatusDraft,
		Notes:       input.Notes,
		Items:       items,
	}
	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&receipt).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := LogOperation(ctx, tx, tenantId, receipt.ID, "Receipt", OperationActionCreate, nil, &receipt); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}
