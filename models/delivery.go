package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Delivery ships finished goods against a sales order. Auditing a delivery
// rolls delivered quantities up into the order and the demand pool.
type Delivery struct {
	ID            int            `gorm:"primary_key" json:"id"`
	Uuid          string         `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId      string         `gorm:"index;not null" json:"tenant_id"`
	Code          string         `gorm:"size:100;not null" json:"code"`
	SalesOrderId  int            `gorm:"index;not null" json:"sales_order_id"`
	DeliveryDate  time.Time      `gorm:"not null" json:"delivery_date"`
	Status        DocumentStatus `gorm:"type:enum('draft','submitted','pending_review','audited','rejected','cancelled','closed');not null;default:'draft'" json:"status"`
	Notes         string         `gorm:"type:text" json:"notes"`
	Reviewer      string         `gorm:"size:100" json:"reviewer"`
	ReviewedAt    *time.Time     `json:"reviewed_at"`
	ReviewComment string         `gorm:"size:500" json:"review_comment"`
	Items         []DeliveryItem `gorm:"foreignKey:DeliveryId" json:"items"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

type DeliveryItem struct {
	ID               int             `gorm:"primary_key" json:"id"`
	TenantId         string          `gorm:"index;not null" json:"tenant_id"`
	DeliveryId       int             `gorm:"index;not null" json:"delivery_id"`
	SalesOrderItemId int             `gorm:"index;not null" json:"sales_order_item_id"`
	MaterialId       int             `gorm:"index;not null" json:"material_id"`
	WarehouseId      int             `gorm:"index;not null" json:"warehouse_id"`
	BatchNo          string          `gorm:"size:100" json:"batch_no"`
	Quantity         decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	Unit             string          `gorm:"size:20" json:"unit"`
	Notes            string          `gorm:"size:500" json:"notes"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewDelivery struct {
	SalesOrderId int               `json:"sales_order_id" binding:"required"`
	DeliveryDate time.Time         `json:"delivery_date"`
	Notes        string            `json:"notes"`
	Items        []NewDeliveryItem `json:"items" binding:"required"`
}

type NewDeliveryItem struct {
	SalesOrderItemId int             `json:"sales_order_item_id" binding:"required"`
	WarehouseId      int             `json:"warehouse_id" binding:"required"`
	BatchNo          string          `json:"batch_no"`
	Quantity         decimal.Decimal `json:"quantity" binding:"required"`
	Unit             string          `json:"unit"`
	Notes            string          `json:"notes"`
}

func (d *Delivery) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&d.Uuid)
	return nil
}

func (d Delivery) GetId() int { return d.ID }

func CreateDelivery(ctx context.Context, input *NewDelivery, code string) (*Delivery, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	order, err := utils.FetchModel[SalesOrder](ctx, tenantId, input.SalesOrderId, "Items")
	if err != nil {
		return nil, utils.NewNotFoundError("sales order not found")
	}
	if order.Status != DocumentStatusAudited {
		return nil, utils.NewBusinessLogicError("only audited sales orders can be delivered", "")
	}
	orderItems := make(map[int]SalesOrderItem, len(order.Items))
	for _, item := range order.Items {
		orderItems[item.ID] = item
	}
	if len(input.Items) == 0 {
		return nil, utils.NewValidationError("delivery requires at least one item")
	}
	items := make([]DeliveryItem, 0, len(input.Items))
	for _, item := range input.Items {
		orderItem, ok := orderItems[item.SalesOrderItemId]
		if !ok {
			return nil, utils.NewValidationError("item does not belong to the sales order")
		}
		if err := utils.ValidateResourceId[Warehouse](ctx, tenantId, item.WarehouseId); err != nil {
			return nil, utils.NewNotFoundError("warehouse not found")
		}
		if item.Quantity.LessThanOrEqual(decimal.Zero) {
			return nil, utils.NewValidationError("item quantity must be positive")
		}
		remaining := orderItem.Quantity.Sub(orderItem.DeliveredQuantity)
		if item.Quantity.GreaterThan(remaining) {
			return nil, utils.NewBusinessLogicError("delivery exceeds undelivered order quantity", "")
		}
		items = append(items, DeliveryItem{
			TenantId:         tenantId,
			SalesOrderItemId: item.SalesOrderItemId,
			MaterialId:       orderItem.MaterialId,
			WarehouseId:      item.WarehouseId,
			BatchNo:          item.BatchNo,
			Quantity:         item.Quantity,
			Unit:             item.Unit,
			Notes:            item.Notes,
		})
	}
	deliveryDate := input.DeliveryDate
	if deliveryDate.IsZero() {
		deliveryDate = utils.TruncateToDay(time.Now())
	}
	delivery := Delivery{
		TenantId:     tenantId,
		Code:         code,
		SalesOrderId: input.SalesOrderId,
		DeliveryDate: deliveryDate,
		Status:       DocumentStatusDraft,
		Notes:        input.Notes,
		Items:        items,
	}
	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&delivery).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := LogOperation(ctx, tx, tenantId, delivery.ID, "Delivery", OperationActionCreate, nil, &delivery); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}
