package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseOrder collects buy-side requirements per supplier. The push
// pipeline appends onto an open draft order of the same supplier and currency
// instead of opening a new one each run.
type PurchaseOrder struct {
	ID             int                 `gorm:"primary_key" json:"id"`
	Uuid           string              `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	TenantId       string              `gorm:"index;not null" json:"tenant_id"`
	Code           string              `gorm:"size:100;not null" json:"code"`
	SupplierId     int                 `gorm:"index;not null" json:"supplier_id"`
	Currency       string              `gorm:"size:10;not null;default:'CNY'" json:"currency"`
	OrderDate      time.Time           `gorm:"not null" json:"order_date"`
	Status         DocumentStatus      `gorm:"type:enum('draft','submitted','pending_review','audited','rejected','cancelled','closed');not null;default:'draft'" json:"status"`
	DeliveryStatus DeliveryStatus      `gorm:"type:enum('pending','partial','delivered');not null;default:'pending'" json:"delivery_status"`
	Notes          string              `gorm:"type:text" json:"notes"`
	Reviewer       string              `gorm:"size:100" json:"reviewer"`
	ReviewedAt     *time.Time          `json:"reviewed_at"`
	ReviewComment  string              `gorm:"size:500" json:"review_comment"`
	Items          []PurchaseOrderItem `gorm:"foreignKey:OrderId" json:"items"`
	CreatedAt      time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt      `gorm:"index" json:"deleted_at"`
}

type PurchaseOrderItem struct {
	ID               int             `gorm:"primary_key" json:"id"`
	TenantId         string          `gorm:"index;not null" json:"tenant_id"`
	OrderId          int             `gorm:"index;not null" json:"order_id"`
	MaterialId       int             `gorm:"index;not null" json:"material_id"`
	Quantity         decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	ReceivedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"received_quantity"`
	Unit             string          `gorm:"size:20" json:"unit"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"unit_price"`
	Amount           decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"amount"`
	DeliveryDate     time.Time       `gorm:"not null" json:"delivery_date"`
	PlanItemId       *int            `gorm:"index" json:"plan_item_id"`
	Notes            string          `gorm:"size:500" json:"notes"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPurchaseOrder struct {
	SupplierId int                    `json:"supplier_id" binding:"required"`
	Currency   string                 `json:"currency"`
	OrderDate  time.Time              `json:"order_date"`
	Notes      string                 `json:"notes"`
	Items      []NewPurchaseOrderItem `json:"items"`
}

type NewPurchaseOrderItem struct {
	MaterialId   int             `json:"material_id" binding:"required"`
	Quantity     decimal.Decimal `json:"quantity" binding:"required"`
	Unit         string          `json:"unit"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	DeliveryDate time.Time       `json:"delivery_date" binding:"required"`
	Notes        string          `json:"notes"`
}

func (o *PurchaseOrder) BeforeCreate(tx *gorm.DB) error {
	ensureUuid(&o.Uuid)
	return nil
}

func (o PurchaseOrder) GetId() int { return o.ID }

func (input *NewPurchaseOrder) validate(ctx context.Context, tenantId string) error {
	if err := utils.ValidateResourceId[Supplier](ctx, tenantId, input.SupplierId); err != nil {
		return utils.NewNotFoundError("supplier not found")
	}
	for _, item := range input.Items {
		if err := utils.ValidateResourceId[Material](ctx, tenantId, item.MaterialId); err != nil {
			return utils.NewNotFoundError("material not found")
		}
		if item.Quantity.LessThanOrEqual(decimal.Zero) {
			return utils.NewValidationError("item quantity must be positive")
		}
	}
	return nil
}

func CreatePurchaseOrder(ctx context.Context, input *NewPurchaseOrder, code string) (*PurchaseOrder, error) {
	tenantId, err := tenantIdFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, tenantId); err != nil {
		return nil, err
	}
	orderDate := input.OrderDate
	if orderDate.IsZero() {
		orderDate = utils.TruncateToDay(time.Now())
	}
	currency := input.Currency
	if currency == "" {
		currency = "CNY"
	}
	items := make([]PurchaseOrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, PurchaseOrderItem{
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
	order := PurchaseOrder{
		TenantId:       tenantId,
		Code:           code,
		SupplierId:     input.SupplierId,
		Currency:       currency,
		OrderDate:      orderDate,
		Status:         DocumentStatusDraft,
		DeliveryStatus: DeliveryStatusPending,
		Notes:          input.Notes,
		Items:          items,
	}
	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := LogOperation(ctx, tx, tenantId, order.ID, "PurchaseOrder", OperationActionCreate, nil, &order); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// OpenDraftPurchaseOrder finds the draft order of one supplier and currency
// that the push pipeline may append onto, nil when none is open. Takes an
// update lock so two concurrent pushes cannot both append.
func OpenDraftPurchaseOrder(ctx context.Context, tx *gorm.DB, tenantId string, supplierId int, currency string) (*PurchaseOrder, error) {
	var order PurchaseOrder
	err := tx.WithContext(ctx).
		Clauses(forUpdateClause()).
		Where("tenant_id = ? AND supplier_id = ? AND currency = ? AND status = ?",
			tenantId, supplierId, currency, DocumentStatusDraft).
		Order("id asc").
		First(&order).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// RecordPurchaseReceipt adds received quantity onto one item and refreshes
// the order delivery status inside the caller's transaction.
func RecordPurchaseReceipt(ctx context.Context, tx *gorm.DB, tenantId string, orderItemId int, quantity decimal.Decimal) error {
	var item PurchaseOrderItem
	if err := tx.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantId, orderItemId).
		First(&item).Error; err != nil {
		return utils.ErrorRecordNotFound
	}
	received := item.ReceivedQuantity.Add(quantity)
	if err := tx.WithContext(ctx).Model(&item).
		UpdateColumn("ReceivedQuantity", received).Error; err != nil {
		return err
	}

	var items []PurchaseOrderItem
	if err := tx.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenantId, item.OrderId).
		Find(&items).Error; err != nil {
		return err
	}
	status := DeliveryStatusDelivered
	anyReceived := false
	for _, it := range items {
		if it.ReceivedQuantity.GreaterThan(decimal.Zero) {
			anyReceived = true
		}
		if it.ReceivedQuantity.LessThan(it.Quantity) {
			status = DeliveryStatusPartial
		}
	}
	if !anyReceived {
		status = DeliveryStatusPending
	}
	return tx.WithContext(ctx).Model(&PurchaseOrder{}).
		Where("tenant_id = ? AND id = ?", tenantId, item.OrderId).
		UpdateColumn("delivery_status", status).Error
}
